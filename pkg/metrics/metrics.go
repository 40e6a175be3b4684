// Package metrics provides the Prometheus registry and HTTP handler for the
// cache. All metrics are defined in their respective packages (cache,
// primary, ratelimit) to maintain modularity and avoid circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the Prometheus registerer used by the cache packages.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the Prometheus gatherer matching Registry.
var Gatherer = prometheus.DefaultGatherer

// Handler serves the registered metrics in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Names lists every metric exported by the cache packages.
var Names = []string{
	"ais_cache_hits_total",
	"ais_cache_misses_total",
	"ais_cache_sets_total",
	"ais_cache_deletes_total",
	"ais_cache_errors_total",
	"ais_cache_fallback_uses_total",
	"ais_cache_fallback_entries",
	"ais_cache_evictions_total",
	"ais_cache_invalidations_total",
	"ais_primary_connected",
	"ais_primary_reconnect_attempts_total",
	"ais_primary_errors_total",
	"ais_ratelimit_decisions_total",
	"ais_ratelimit_ttl_repairs_total",
}

// Metrics Documentation
//
// Cache Metrics (pkg/cache):
//   - ais_cache_hits_total{tier="primary|fallback"} (Counter): Cache hits by tier
//   - ais_cache_misses_total (Counter): Reads that missed both tiers
//   - ais_cache_sets_total (Counter): Cache writes
//   - ais_cache_deletes_total (Counter): Explicit deletes
//   - ais_cache_errors_total{operation} (Counter): Swallowed errors by operation
//   - ais_cache_fallback_uses_total (Counter): Reads served from memory
//   - ais_cache_fallback_entries (Gauge): Live entries in memory
//   - ais_cache_evictions_total (Counter): Capacity evictions in memory
//   - ais_cache_invalidations_total{namespace} (Counter): Namespace invalidations
//
// Primary Store Metrics (pkg/primary):
//   - ais_primary_connected (Gauge): 1 while the primary store is ready
//   - ais_primary_reconnect_attempts_total (Counter): Reconnect attempts
//   - ais_primary_errors_total{class="transient|fatal|command"} (Counter): Command errors by class
//
// Rate Limit Metrics (pkg/ratelimit):
//   - ais_ratelimit_decisions_total{result="allowed|rejected|fail_open"} (Counter): Decisions
//   - ais_ratelimit_ttl_repairs_total (Counter): Counters re-armed after losing their expiry
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(ais_cache_hits_total[5m])) /
//   (sum(rate(ais_cache_hits_total[5m])) + sum(rate(ais_cache_misses_total[5m])))
//
//   # Share of reads served from memory
//   rate(ais_cache_fallback_uses_total[5m]) / sum(rate(ais_cache_hits_total[5m]))
//
//   # Primary store down
//   ais_primary_connected == 0
//
//   # Rate limiter failing open
//   rate(ais_ratelimit_decisions_total{result="fail_open"}[5m]) > 0
