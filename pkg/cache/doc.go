// Package cache provides a two-tier cache: a shared Redis primary store in
// front of a bounded in-memory fallback.
//
// The manager implements the following behavior:
//
// - Reads try the primary store and fall back to memory on a miss or failure
// - Writes always land in memory and best-effort in the primary store
// - Namespace invalidation in O(1) through per-namespace version counters
// - Deterministic keys from a hash of the call parameters
// - No cache failure is ever returned to the caller
// - Prometheus metrics and a stats snapshot for observability
//
// # Basic Usage
//
//	manager := cache.NewManager(cache.DefaultConfig(), logger)
//	manager.Start(ctx)
//	defer manager.Shutdown(context.Background())
//
//	params := map[string]any{"originId": 1, "destinationId": 2}
//	manager.Set(ctx, "search", params, flights, 2*time.Minute)
//
//	flights, ok := cache.Get[[]Flight](ctx, manager, "search", params)
//	if !ok {
//		// Cache miss - load from the source of truth
//	}
//
// # Get or Load
//
//	flights, err := cache.Remember(ctx, manager, "search", params, 2*time.Minute,
//		func(ctx context.Context) ([]Flight, error) {
//			return repo.Search(ctx, params)
//		})
//
// # Keys
//
//	ais:search:v3:9f86d081884c7d65   entry (namespace, version, params hash)
//	ais:version:search               namespace version counter
//	ais:session:42                   raw key (SetRaw/GetRaw)
//	ais:ratelimit:10.0.0.1           rate limit counter
//
// Parameters are canonicalized by sorting top-level object keys before
// hashing. Nested objects are hashed as encoded.
//
// # Invalidation
//
// InvalidateNamespace bumps the namespace version in the primary store, so
// every previously derived key becomes unreachable without a scan. The
// fallback tier has no versions and is swept by key pattern instead. The
// two tiers may briefly disagree; the fallback can serve data the primary
// already invalidated until it expires.
//
// # Metrics
//
// The cache manager exports Prometheus metrics:
//
//   - ais_cache_hits_total{tier} - Cache hits by tier (primary, fallback)
//   - ais_cache_misses_total - Cache misses
//   - ais_cache_sets_total - Cache writes
//   - ais_cache_deletes_total - Cache deletes
//   - ais_cache_errors_total{operation} - Swallowed operation errors
//   - ais_cache_fallback_uses_total - Reads served from memory
//   - ais_cache_fallback_entries - Live entries in memory
//   - ais_cache_evictions_total - Capacity evictions in memory
//   - ais_cache_invalidations_total{namespace} - Namespace invalidations
package cache
