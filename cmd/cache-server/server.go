package main

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/Sternrassler/ais-cache/pkg/cache"
	"github.com/Sternrassler/ais-cache/pkg/metrics"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// Admin endpoints are limited per client address.
const (
	adminRateLimit  = 30
	adminRateWindow = time.Minute
)

func newRouter(m *cache.Manager, logger zerolog.Logger) http.Handler {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(requestLogger(logger))

	router.Get("/health", healthHandler)
	router.Get("/ready", cache.HealthHandler(m))
	router.Get("/stats", cache.StatsHandler(m))
	router.Method(http.MethodGet, "/metrics", metrics.Handler())

	router.Route("/admin/cache", func(r chi.Router) {
		r.Use(rateLimit(m, adminRateLimit, adminRateWindow))
		r.Post("/invalidate/{namespace}", invalidateHandler(m, logger))
		r.Post("/clear", clearHandler(m, logger))
		r.Post("/stats/reset", resetStatsHandler(m))
		r.Post("/reconnect", reconnectHandler(m, logger))
	})

	return router
}

// healthHandler answers liveness checks. Readiness is served by /ready.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func invalidateHandler(m *cache.Manager, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		namespace := chi.URLParam(r, "namespace")
		m.InvalidateNamespace(r.Context(), namespace)
		logger.Info().
			Str("namespace", namespace).
			Str("request_id", chimiddleware.GetReqID(r.Context())).
			Msg("Namespace invalidated via admin API")
		writeJSON(w, http.StatusOK, map[string]any{
			"namespace": namespace,
			"version":   m.Stats().Versions[namespace],
		})
	}
}

func clearHandler(m *cache.Manager, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deleted := m.ClearAll(r.Context())
		logger.Info().
			Int64("deleted", deleted).
			Str("request_id", chimiddleware.GetReqID(r.Context())).
			Msg("Cache cleared via admin API")
		writeJSON(w, http.StatusOK, map[string]any{"deleted": deleted})
	}
}

func resetStatsHandler(m *cache.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m.ResetStats()
		writeJSON(w, http.StatusOK, m.Stats())
	}
}

func reconnectHandler(m *cache.Manager, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := m.ForceReconnect(r.Context()); err != nil {
			logger.Warn().Err(err).Msg("Forced reconnect failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{
				"state": m.Stats().PrimaryState,
				"error": err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"state": m.Stats().PrimaryState})
	}
}

// rateLimit rejects requests over limit per client address and window with
// 429. The limiter fails open, so an unreachable primary store lets every
// request through.
func rateLimit(m *cache.Manager, limit int, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res := m.CheckRateLimit(r.Context(), "admin:"+clientHost(r), limit, window)

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			if !res.Allowed {
				w.Header().Set("Retry-After", strconv.Itoa(res.ResetInSeconds()))
				writeJSON(w, http.StatusTooManyRequests, map[string]any{"error": "rate limit exceeded"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientHost returns the client address without its port so that every
// connection from one host shares a rate limit bucket. RealIP may already have
// replaced RemoteAddr with a bare address.
func clientHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("request_id", chimiddleware.GetReqID(r.Context())).
				Str("remote_addr", r.RemoteAddr).
				Msg("HTTP request")
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
