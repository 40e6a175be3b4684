package cache

import (
	"context"
	"encoding/json"
	"net/http"
)

// HealthStatus summarizes the state of the cache tiers.
type HealthStatus string

const (
	// HealthOK means the primary store answered a ping.
	HealthOK HealthStatus = "ok"

	// HealthDegraded means the primary store is down and the fallback tier serves.
	HealthDegraded HealthStatus = "degraded"

	// HealthError means the primary store looked connected but the ping failed.
	HealthError HealthStatus = "error"
)

// Health is the result of HealthCheck.
type Health struct {
	Status   HealthStatus   `json:"status"`
	Primary  PrimaryHealth  `json:"primary"`
	Fallback FallbackHealth `json:"fallback"`
}

// PrimaryHealth describes the primary store.
type PrimaryHealth struct {
	Connected bool    `json:"connected"`
	State     string  `json:"state"`
	LatencyMs float64 `json:"latency_ms,omitempty"`
	Error     string  `json:"error,omitempty"`
}

// FallbackHealth describes the in-memory tier.
type FallbackHealth struct {
	Entries  int `json:"entries"`
	Capacity int `json:"capacity"`
}

// HealthCheck pings the primary store. It reports failures in the result
// and never returns an error.
func (m *Manager) HealthCheck(ctx context.Context) Health {
	h := Health{
		Status: HealthDegraded,
		Primary: PrimaryHealth{
			Connected: m.primaryReady(),
			State:     m.primaryState(),
		},
		Fallback: FallbackHealth{
			Entries:  m.fallback.Size(),
			Capacity: m.fallback.Capacity(),
		},
	}

	if !h.Primary.Connected {
		return h
	}

	latency, err := m.primary.Ping(ctx)
	if err != nil {
		h.Status = HealthError
		h.Primary.Error = err.Error()
		m.logger.Warn().Err(err).Msg("Primary store health check failed")
		return h
	}

	h.Status = HealthOK
	h.Primary.LatencyMs = float64(latency.Microseconds()) / 1000
	return h
}

// HealthHandler serves HealthCheck as JSON. It answers 503 when the status is
// HealthError; a degraded cache is still usable and answers 200.
func HealthHandler(m *Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h := m.HealthCheck(r.Context())
		status := http.StatusOK
		if h.Status == HealthError {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, h)
	}
}

// StatsHandler serves Stats as JSON.
func StatsHandler(m *Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, m.Stats())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
