// Package pagination walks the certificate search API page by page.
//
// The search API returns no total-pages field, so the fetcher requests pages
// strictly in order and treats a short page (fewer records than the page
// size) as the last one. A result set that is an exact multiple of the page
// size therefore costs one extra request that comes back empty.
//
// Example usage:
//
//	fetcher, err := pagination.NewFetcher(searchClient, search.DefaultCriteria())
//	result, err := fetcher.FetchAll(ctx)
//
// The fetcher:
//   - Requests page 0, 1, 2, ... sequentially, never in parallel
//   - Appends records in server order across pages
//   - Stops on the first short page
//   - Stops on a failed page (non-2xx or malformed body) and keeps what it has
//   - Returns transport faults to the caller together with the partial result
package pagination
