package pagination

import (
	"context"
	"fmt"
	"time"

	"github.com/Sternrassler/vaas-cert-export/pkg/client"
	"github.com/Sternrassler/vaas-cert-export/pkg/search"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for pagination.
var (
	pagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vaas_pages_fetched_total",
		Help: "Total search pages requested by outcome",
	}, []string{"outcome"})

	certificatesFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vaas_certificates_fetched_total",
		Help: "Total certificate records accumulated across pages",
	})
)

// progressEvery controls how often a progress line is logged.
const progressEvery = 50

// PageSearcher is the interface the search client must implement for
// single-page fetching.
type PageSearcher interface {
	Search(ctx context.Context, req search.Request) (*search.Response, error)
}

// Result is everything gathered by one pagination run.
type Result struct {
	// Records holds all records in page order, then server order within a page.
	Records []search.Record

	// Pages is the number of page requests issued, including a failed one.
	Pages int

	// Failure is the page failure that ended the run early, nil if the run
	// ended on a short page.
	Failure error
}

// Truncated reports whether a failed page cut the run short.
func (r *Result) Truncated() bool {
	return r.Failure != nil
}

// Fetcher pages through a search sequentially.
type Fetcher struct {
	searcher PageSearcher
	criteria search.Criteria
	logger   zerolog.Logger
}

// NewFetcher creates a new fetcher for the given criteria.
func NewFetcher(searcher PageSearcher, criteria search.Criteria) (*Fetcher, error) {
	if searcher == nil {
		return nil, fmt.Errorf("searcher is required")
	}
	if err := criteria.Validate(); err != nil {
		return nil, fmt.Errorf("invalid search criteria: %w", err)
	}

	return &Fetcher{
		searcher: searcher,
		criteria: criteria,
		logger:   log.With().Str("component", "pagination").Logger(),
	}, nil
}

// WithLogger returns a copy of the fetcher that logs to logger.
func (f *Fetcher) WithLogger(logger zerolog.Logger) *Fetcher {
	clone := *f
	clone.logger = logger
	return &clone
}

// FetchAll requests pages until a short page or a failed page.
//
// A failed page (see client.IsPageFailure) is recorded in Result.Failure and
// is not returned as an error. Any other error is a transport fault: it is
// returned together with the partial result so the caller can decide, but the
// run must be treated as aborted.
func (f *Fetcher) FetchAll(ctx context.Context) (*Result, error) {
	start := time.Now()
	result := &Result{}

	f.logger.Info().
		Str("status_filter", f.criteria.StatusFilter).
		Str("sort_field", f.criteria.SortField).
		Str("sort_direction", string(f.criteria.SortDirection)).
		Int("page_size", f.criteria.PageSize).
		Msg("Starting certificate search")

	for page := 0; ; page++ {
		result.Pages++
		resp, err := f.searcher.Search(ctx, f.criteria.Request(page))
		if err != nil {
			if client.IsPageFailure(err) {
				pagesTotal.WithLabelValues("failed").Inc()
				result.Failure = fmt.Errorf("page %d: %w", page, err)
				f.logger.Warn().
					Err(err).
					Int("page", page).
					Int("records", len(result.Records)).
					Msg("Page fetch failed - keeping partial results")
				break
			}

			pagesTotal.WithLabelValues("aborted").Inc()
			f.logger.Error().
				Err(err).
				Int("page", page).
				Int("records", len(result.Records)).
				Msg("Page fetch aborted")
			return result, fmt.Errorf("fetch page %d: %w", page, err)
		}

		pagesTotal.WithLabelValues("ok").Inc()
		result.Records = append(result.Records, resp.Certificates...)
		certificatesFetchedTotal.Add(float64(len(resp.Certificates)))

		f.logger.Debug().
			Int("page", page).
			Int("count", resp.Count).
			Int("total", len(result.Records)).
			Msg("Page fetched")

		if result.Pages%progressEvery == 0 {
			f.logger.Info().
				Int("pages", result.Pages).
				Int("records", len(result.Records)).
				Msg("Fetch progress")
		}

		// Short page: the server has nothing after this one.
		if resp.Count < f.criteria.PageSize {
			break
		}
	}

	f.logger.Info().
		Int("pages", result.Pages).
		Int("records", len(result.Records)).
		Bool("truncated", result.Truncated()).
		Dur("duration", time.Since(start)).
		Msg("Fetch complete")

	return result, nil
}
