// Package client provides the HTTP client for the certificate inventory
// search API, with error classification and request metrics.
package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/vaas-cert-export/pkg/search"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for search requests.
var (
	searchRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vaas_search_requests_total",
		Help: "Total certificate search requests by HTTP status",
	}, []string{"status"})

	searchRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "vaas_search_request_duration_seconds",
		Help:    "Certificate search request duration in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	})

	searchErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vaas_search_errors_total",
		Help: "Total certificate search errors by class",
	}, []string{"class"})
)

// Base URLs of the public regions.
const (
	RegionUS = "us"
	RegionEU = "eu"

	BaseURLUS = "https://api.venafi.cloud"
	BaseURLEU = "https://api.venafi.eu"
)

// DefaultAPIKeyHeader carries the API key on every request.
const DefaultAPIKeyHeader = "tppl-api-key"

// maxErrorBody caps how much of a failed response is kept for the error message.
const maxErrorBody = 512

// RegionBaseURL returns the base URL for a region name.
func RegionBaseURL(region string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(region)) {
	case "", RegionUS:
		return BaseURLUS, nil
	case RegionEU:
		return BaseURLEU, nil
	default:
		return "", fmt.Errorf("unknown region %q (want %s or %s)", region, RegionUS, RegionEU)
	}
}

// Client talks to the certificate search endpoint.
type Client struct {
	httpClient *http.Client
	endpoint   string
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL of the service, e.g. https://api.venafi.cloud
	BaseURL string

	// APIKey is sent in the APIKeyHeader header (REQUIRED)
	APIKey string

	// APIKeyHeader defaults to tppl-api-key
	APIKeyHeader string

	// Timeout bounds each request, including reading the body
	Timeout time.Duration

	// UserAgent header, optional
	UserAgent string
}

// DefaultConfig returns a configuration for the US region with a 30s timeout.
func DefaultConfig(apiKey string) Config {
	return Config{
		BaseURL:      BaseURLUS,
		APIKey:       apiKey,
		APIKeyHeader: DefaultAPIKeyHeader,
		Timeout:      30 * time.Second,
		UserAgent:    "vaas-cert-export",
	}
}

// New creates a new search client.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}

	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}

	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", cfg.BaseURL)
	}

	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be > 0 (got %s)", cfg.Timeout)
	}

	if cfg.APIKeyHeader == "" {
		cfg.APIKeyHeader = DefaultAPIKeyHeader
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{MinVersion: tls.VersionTLS12}

	return &Client{
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		endpoint: base.String() + search.Path,
		config:   cfg,
		logger:   log.With().Str("component", "search-client").Logger(),
	}, nil
}

// Endpoint returns the full search URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Search posts one search request and decodes the page it returns.
//
// A non-2xx status or an undecodable body yields a *SearchError; the caller
// may treat that page as failed and carry on. Any other error is a transport
// fault (timeout, DNS, refused connection, TLS) and is returned wrapped.
func (c *Client) Search(ctx context.Context, req search.Request) (*search.Response, error) {
	startTime := time.Now()
	defer func() {
		searchRequestDuration.Observe(time.Since(startTime).Seconds())
	}()

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode search request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(c.config.APIKeyHeader, c.config.APIKey)
	if c.config.UserAgent != "" {
		httpReq.Header.Set("User-Agent", c.config.UserAgent)
	}

	c.logger.Debug().
		Int("page", req.Paging.PageNumber).
		Int("page_size", req.Paging.PageSize).
		Msg("Executing search request")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		errClass := c.classifyError(nil, err)
		searchErrorsTotal.WithLabelValues(string(errClass)).Inc()
		searchRequestsTotal.WithLabelValues("network_error").Inc()
		c.logger.Error().Err(err).Int("page", req.Paging.PageNumber).Msg("Search request failed")
		return nil, fmt.Errorf("search page %d: %w", req.Paging.PageNumber, err)
	}
	defer resp.Body.Close()

	searchRequestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		errClass := c.classifyError(resp, nil)
		searchErrorsTotal.WithLabelValues(string(errClass)).Inc()

		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Warn().
			Int("page", req.Paging.PageNumber).
			Int("status", resp.StatusCode).
			Str("error_class", string(errClass)).
			Msg("Search request rejected")

		return nil, &SearchError{
			StatusCode: resp.StatusCode,
			ErrorClass: errClass,
			Message:    strings.TrimSpace(resp.Status + " " + string(snippet)),
		}
	}

	// A body cut short of its Content-Length, or a timeout while reading it,
	// fails here rather than as a decode error.
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		searchErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		c.logger.Error().Err(err).Int("page", req.Paging.PageNumber).Msg("Search response body read failed")
		return nil, fmt.Errorf("read search page %d: %w", req.Paging.PageNumber, err)
	}

	page, err := search.DecodeResponse(bytes.NewReader(raw))
	if err != nil {
		searchErrorsTotal.WithLabelValues(string(ErrorClassDecode)).Inc()
		c.logger.Warn().
			Err(err).
			Int("page", req.Paging.PageNumber).
			Msg("Search response could not be decoded")

		return nil, &SearchError{
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassDecode,
			Message:    "invalid response body",
			Err:        err,
		}
	}

	c.logger.Debug().
		Int("page", req.Paging.PageNumber).
		Int("count", page.Count).
		Int("records", len(page.Certificates)).
		Msg("Search page received")

	return page, nil
}

// classifyError categorizes an error for observability and handling.
func (c *Client) classifyError(resp *http.Response, err error) ErrorClass {
	if err != nil {
		return ErrorClassNetwork
	}

	switch {
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return ErrorClassClient
	case resp.StatusCode >= 500:
		return ErrorClassServer
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		// 1xx/3xx that the transport did not resolve
		return ErrorClassServer
	default:
		return ""
	}
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
