package travelcache

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Sternrassler/ais-cache/pkg/pagination"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// ReferenceDatasets are the datasets loaded by WarmReferenceData, each cached
// in the namespace of the same name.
var ReferenceDatasets = []string{NamespaceAirports, NamespaceAirlines, NamespaceCities}

// referenceParams is the single entry of each reference namespace.
const referenceParams = "all"

// CacheAirports caches the full airport list.
func (f *Facade) CacheAirports(ctx context.Context, airports any) {
	f.cacheReference(ctx, NamespaceAirports, airports)
}

// GetCachedAirports decodes the cached airport list into dest.
func (f *Facade) GetCachedAirports(ctx context.Context, dest any) bool {
	return f.cache.Load(ctx, NamespaceAirports, referenceParams, dest)
}

// CacheAirlines caches the full airline list.
func (f *Facade) CacheAirlines(ctx context.Context, airlines any) {
	f.cacheReference(ctx, NamespaceAirlines, airlines)
}

// GetCachedAirlines decodes the cached airline list into dest.
func (f *Facade) GetCachedAirlines(ctx context.Context, dest any) bool {
	return f.cache.Load(ctx, NamespaceAirlines, referenceParams, dest)
}

// CacheCities caches the full city list.
func (f *Facade) CacheCities(ctx context.Context, cities any) {
	f.cacheReference(ctx, NamespaceCities, cities)
}

// GetCachedCities decodes the cached city list into dest.
func (f *Facade) GetCachedCities(ctx context.Context, dest any) bool {
	return f.cache.Load(ctx, NamespaceCities, referenceParams, dest)
}

// InvalidateReferenceData drops airports, airlines and cities.
func (f *Facade) InvalidateReferenceData(ctx context.Context) {
	for _, ns := range ReferenceDatasets {
		f.cache.InvalidateNamespace(ctx, ns)
	}
}

func (f *Facade) cacheReference(ctx context.Context, namespace string, value any) {
	f.cache.Set(ctx, namespace, referenceParams, value, TTLReference)
}

// WarmReport is the outcome of WarmReferenceData.
type WarmReport struct {
	// Loaded maps each cached dataset to its item count.
	Loaded map[string]int
	// Failed maps each dataset that was not cached to the reason.
	Failed   map[string]error
	Duration time.Duration
}

// Err summarizes the failures, or returns nil when every dataset was cached.
func (r WarmReport) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	names := make([]string, 0, len(r.Failed))
	for name := range r.Failed {
		names = append(names, name)
	}
	sort.Strings(names)
	return fmt.Errorf("reference warm-up failed for %v: %w", names, r.Failed[names[0]])
}

// WarmReferenceData loads every reference dataset from source and caches it
// with the reference TTL. Datasets load in parallel, and the pages of each
// dataset are fetched with a bounded worker pool. Each page must be a JSON
// array; the pages are concatenated in order.
//
// A dataset is cached only when all of its pages loaded. Failures are
// reported, never fatal: callers fall back to the source on a cache miss.
func (f *Facade) WarmReferenceData(ctx context.Context, source pagination.PageFetcher, cfg pagination.Config, logger zerolog.Logger) WarmReport {
	start := time.Now()
	fetcher := pagination.NewBatchFetcher(source, cfg, logger)

	report := WarmReport{
		Loaded: make(map[string]int),
		Failed: make(map[string]error),
	}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(len(ReferenceDatasets))
	for _, dataset := range ReferenceDatasets {
		dataset := dataset
		g.Go(func() error {
			items, err := loadDataset(gctx, fetcher, dataset)
			if err != nil {
				logger.Warn().Err(err).Str("dataset", dataset).Msg("Reference data warm-up failed")
				mu.Lock()
				report.Failed[dataset] = err
				mu.Unlock()
				return nil
			}

			f.cacheReference(gctx, dataset, items)
			mu.Lock()
			report.Loaded[dataset] = len(items)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	report.Duration = time.Since(start)
	logger.Info().
		Int("loaded", len(report.Loaded)).
		Int("failed", len(report.Failed)).
		Dur("duration", report.Duration).
		Msg("Reference data warm-up complete")
	return report
}

func loadDataset(ctx context.Context, fetcher *pagination.BatchFetcher, dataset string) ([]json.RawMessage, error) {
	pages, err := fetcher.FetchAllPages(ctx, dataset)
	if err != nil {
		return nil, err
	}

	items := make([]json.RawMessage, 0)
	for i, page := range pages {
		var chunk []json.RawMessage
		if err := json.Unmarshal(page, &chunk); err != nil {
			return nil, fmt.Errorf("decode %s page %d: %w", dataset, i+1, err)
		}
		items = append(items, chunk...)
	}
	return items, nil
}
