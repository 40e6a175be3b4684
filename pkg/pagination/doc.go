// Package pagination provides parallel batch fetching for paginated datasets.
//
// Reference data (airports, airlines, cities) is served by upstream sources
// page by page. This package fetches the first page to learn the page count
// and then fetches the remaining pages with a bounded worker pool.
//
// Example usage:
//
//	fetcher := pagination.NewBatchFetcher(source, pagination.DefaultConfig(), logger)
//	pages, err := fetcher.FetchAllPages(ctx, "airports")
//
// The batch fetcher:
//   - Fetches first page to determine total pages
//   - Runs at most MaxConcurrency page fetches at once
//   - Applies a timeout to every page
//   - Returns pages in order, with partial data and an error when pages fail
package pagination
