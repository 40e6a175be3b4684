// Package pagination provides parallel batch fetching of paginated datasets
package pagination

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Config holds batch fetcher configuration
type Config struct {
	// MaxConcurrency is the maximum number of parallel page fetches
	MaxConcurrency int
	// Timeout per page fetch
	Timeout time.Duration
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 4,
		Timeout:        10 * time.Second,
	}
}

// PageFetcher is implemented by data sources that serve a dataset page by page
type PageFetcher interface {
	// FetchPage fetches a single page (1-based) and returns data + total page count
	FetchPage(ctx context.Context, dataset string, page int) (data []byte, totalPages int, err error)
}

// PageError records a failed page
type PageError struct {
	Page int
	Err  error
}

func (e PageError) Error() string {
	return fmt.Sprintf("page %d: %v", e.Page, e.Err)
}

func (e PageError) Unwrap() error {
	return e.Err
}

// BatchFetcher fetches all pages of a dataset with a bounded worker pool
type BatchFetcher struct {
	fetcher PageFetcher
	config  Config
	logger  zerolog.Logger
}

// NewBatchFetcher creates a new batch fetcher
func NewBatchFetcher(fetcher PageFetcher, config Config, logger zerolog.Logger) *BatchFetcher {
	defaults := DefaultConfig()
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = defaults.MaxConcurrency
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}

	return &BatchFetcher{
		fetcher: fetcher,
		config:  config,
		logger:  logger,
	}
}

// FetchAllPages fetches every page of dataset. The first page is fetched
// alone to learn the page count; the rest run in parallel.
//
// Returns the pages in order. When some pages fail, the pages that succeeded
// are returned together with an error listing the failures.
func (bf *BatchFetcher) FetchAllPages(ctx context.Context, dataset string) ([][]byte, error) {
	start := time.Now()

	first, totalPages, err := bf.fetchPage(ctx, dataset, 1)
	if err != nil {
		return nil, fmt.Errorf("fetch first page of %s: %w", dataset, err)
	}
	if totalPages < 1 {
		totalPages = 1
	}

	pages := make([][]byte, totalPages)
	pages[0] = first

	var (
		mu     sync.Mutex
		failed []error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bf.config.MaxConcurrency)
	for page := 2; page <= totalPages; page++ {
		page := page
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			data, _, err := bf.fetchPage(gctx, dataset, page)
			if err != nil {
				bf.logger.Warn().Err(err).Str("dataset", dataset).Int("page", page).Msg("Page fetch failed")
				mu.Lock()
				failed = append(failed, PageError{Page: page, Err: err})
				mu.Unlock()
				// Other pages are still worth having.
				return nil
			}
			pages[page-1] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return compact(pages), fmt.Errorf("fetch %s: %w", dataset, err)
	}

	if len(failed) > 0 {
		return compact(pages), fmt.Errorf("fetch %s: partial data (%d/%d pages): %w",
			dataset, totalPages-len(failed), totalPages, errors.Join(failed...))
	}

	bf.logger.Debug().
		Str("dataset", dataset).
		Int("pages", totalPages).
		Dur("duration", time.Since(start)).
		Msg("Fetch complete")

	return pages, nil
}

func (bf *BatchFetcher) fetchPage(ctx context.Context, dataset string, page int) ([]byte, int, error) {
	pageCtx, cancel := context.WithTimeout(ctx, bf.config.Timeout)
	defer cancel()
	return bf.fetcher.FetchPage(pageCtx, dataset, page)
}

// compact drops missing pages, keeping order
func compact(pages [][]byte) [][]byte {
	out := pages[:0:0]
	for _, p := range pages {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}
