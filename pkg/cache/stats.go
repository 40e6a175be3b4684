package cache

import (
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// Stats is a point-in-time snapshot of the cache counters.
type Stats struct {
	Hits         int64 `json:"hits"`
	Misses       int64 `json:"misses"`
	Sets         int64 `json:"sets"`
	Deletes      int64 `json:"deletes"`
	Errors       int64 `json:"errors"`
	FallbackUses int64 `json:"fallback_uses"`

	// HitRate is hits/(hits+misses)*100 rounded to two decimals, 0 before any read.
	HitRate float64 `json:"hit_rate"`

	PrimaryConnected bool   `json:"primary_connected"`
	PrimaryState     string `json:"primary_state"`

	// Versions holds the last namespace versions seen by this process.
	Versions map[string]int64 `json:"versions"`

	UptimeSeconds int64 `json:"uptime_seconds"`

	FallbackEntries   int    `json:"fallback_entries"`
	FallbackCapacity  int    `json:"fallback_capacity"`
	FallbackEvictions uint64 `json:"fallback_evictions"`
}

// counters are the process-wide statistics. Each field is updated atomically.
type counters struct {
	hits         atomic.Int64
	misses       atomic.Int64
	sets         atomic.Int64
	deletes      atomic.Int64
	errors       atomic.Int64
	fallbackUses atomic.Int64
}

func (c *counters) reset() {
	c.hits.Store(0)
	c.misses.Store(0)
	c.sets.Store(0)
	c.deletes.Store(0)
	c.errors.Store(0)
	c.fallbackUses.Store(0)
}

// HitRate returns hits as a percentage of all reads rounded to two decimals.
func HitRate(hits, misses int64) float64 {
	total := hits + misses
	if total == 0 {
		return 0
	}
	return math.Round(float64(hits)/float64(total)*100*100) / 100
}

// versionTable remembers namespace versions for the stats snapshot.
type versionTable struct {
	mu       sync.RWMutex
	versions map[string]int64
}

func newVersionTable() *versionTable {
	return &versionTable{versions: make(map[string]int64)}
}

func (v *versionTable) record(namespace string, version int64) {
	v.mu.Lock()
	v.versions[namespace] = version
	v.mu.Unlock()
}

func (v *versionTable) reset() {
	v.mu.Lock()
	v.versions = make(map[string]int64)
	v.mu.Unlock()
}

func (v *versionTable) snapshot() map[string]int64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make(map[string]int64, len(v.versions))
	for ns, ver := range v.versions {
		out[ns] = ver
	}
	return out
}

// Stats returns a snapshot of the counters and tier state.
func (m *Manager) Stats() Stats {
	m.fallback.SweepExpired()
	m.syncFallbackMetrics()

	hits := m.counters.hits.Load()
	misses := m.counters.misses.Load()

	s := Stats{
		Hits:              hits,
		Misses:            misses,
		Sets:              m.counters.sets.Load(),
		Deletes:           m.counters.deletes.Load(),
		Errors:            m.counters.errors.Load(),
		FallbackUses:      m.counters.fallbackUses.Load(),
		HitRate:           HitRate(hits, misses),
		PrimaryConnected:  m.primaryReady(),
		PrimaryState:      m.primaryState(),
		Versions:          m.versions.snapshot(),
		UptimeSeconds:     int64(time.Since(m.startedAt) / time.Second),
		FallbackEntries:   m.fallback.Size(),
		FallbackCapacity:  m.fallback.Capacity(),
		FallbackEvictions: m.fallback.Evictions(),
	}
	return s
}

// ResetStats zeroes the counters. Uptime, versions and Prometheus counters
// are not affected.
func (m *Manager) ResetStats() {
	m.counters.reset()
	m.logger.Info().Msg("Cache statistics reset")
}
