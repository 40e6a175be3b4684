package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Tier labels.
const (
	tierPrimary  = "primary"
	tierFallback = "fallback"
)

var (
	// CacheHits tracks cache hits by tier (primary, fallback)
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ais_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"tier"},
	)

	// CacheMisses tracks reads that missed both tiers
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ais_cache_misses_total",
			Help: "Total number of cache misses",
		},
	)

	// CacheSets tracks writes
	CacheSets = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ais_cache_sets_total",
			Help: "Total number of cache writes",
		},
	)

	// CacheDeletes tracks explicit deletes
	CacheDeletes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ais_cache_deletes_total",
			Help: "Total number of cache deletes",
		},
	)

	// CacheErrors tracks swallowed cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ais_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete", "version", "invalidate", "clear", "encode", "decode"
	)

	// FallbackUses tracks reads served by the fallback tier
	FallbackUses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ais_cache_fallback_uses_total",
			Help: "Total number of reads served from the in-memory fallback tier",
		},
	)

	// FallbackEntries tracks the live entry count of the fallback tier
	FallbackEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ais_cache_fallback_entries",
			Help: "Current number of live entries in the in-memory fallback tier",
		},
	)

	// Evictions tracks capacity evictions in the fallback tier
	Evictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ais_cache_evictions_total",
			Help: "Total number of entries evicted from the fallback tier at capacity",
		},
	)

	// Invalidations tracks namespace invalidations
	Invalidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ais_cache_invalidations_total",
			Help: "Total number of namespace invalidations",
		},
		[]string{"namespace"},
	)
)
