// Package testutil provides testing utilities for the certificate export.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/Sternrassler/vaas-cert-export/pkg/search"
)

// TestAPIKey is the key MockInventory expects unless changed.
const TestAPIKey = "test-api-key"

const tpplHeader = "tppl-api-key"

// MockResponse overrides the answer for one page.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockInventory is a configurable mock of the certificate search service.
// It pages through its records according to each request's paging block.
type MockInventory struct {
	server *httptest.Server
	mu     sync.RWMutex

	records   []string
	overrides map[int]MockResponse
	apiKey    string

	// Tracking
	requests          []search.Request
	lastRequestHeader http.Header
}

// NewMockInventory starts a plain HTTP mock serving the given raw JSON records.
func NewMockInventory(records ...string) *MockInventory {
	m := newMock(records)
	m.server = httptest.NewServer(http.HandlerFunc(m.handle))
	return m
}

// NewTLSMockInventory starts the mock behind a self-signed TLS certificate.
func NewTLSMockInventory(records ...string) *MockInventory {
	m := newMock(records)
	m.server = httptest.NewTLSServer(http.HandlerFunc(m.handle))
	return m
}

func newMock(records []string) *MockInventory {
	return &MockInventory{
		records:   records,
		overrides: make(map[int]MockResponse),
		apiKey:    TestAPIKey,
	}
}

// URL returns the mock server base URL.
func (m *MockInventory) URL() string {
	return m.server.URL
}

// Client returns an HTTP client that trusts the mock's certificate.
func (m *MockInventory) Client() *http.Client {
	return m.server.Client()
}

// Close shuts down the mock server.
func (m *MockInventory) Close() {
	m.server.Close()
}

// SetAPIKey changes the expected API key. Empty accepts any key.
func (m *MockInventory) SetAPIKey(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.apiKey = key
}

// SetPageResponse makes the given zero-based page answer with resp
// instead of records.
func (m *MockInventory) SetPageResponse(page int, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overrides[page] = resp
}

// RequestCount returns the number of search requests received.
func (m *MockInventory) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.requests)
}

// Requests returns the decoded search bodies in arrival order.
func (m *MockInventory) Requests() []search.Request {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]search.Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// LastRequestHeader returns the headers of the most recent request.
func (m *MockInventory) LastRequestHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastRequestHeader
}

func (m *MockInventory) handle(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != search.Path {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req search.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"errors":[{"message":"invalid body"}]}`, http.StatusBadRequest)
		return
	}

	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.lastRequestHeader = r.Header.Clone()
	apiKey := m.apiKey
	override, hasOverride := m.overrides[req.Paging.PageNumber]
	m.mu.Unlock()

	if apiKey != "" && r.Header.Get(tpplHeader) != apiKey {
		http.Error(w, `{"errors":[{"message":"invalid api key"}]}`, http.StatusUnauthorized)
		return
	}

	if hasOverride {
		writeResponse(w, override)
		return
	}

	writeResponse(w, NewPageResponse(m.page(req.Paging)...))
}

// page slices the record list the way the real service pages results.
func (m *MockInventory) page(p search.Paging) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if p.PageSize <= 0 || p.PageNumber < 0 {
		return nil
	}
	start := p.PageNumber * p.PageSize
	if start >= len(m.records) {
		return nil
	}
	end := start + p.PageSize
	if end > len(m.records) {
		end = len(m.records)
	}
	return m.records[start:end]
}

func writeResponse(w http.ResponseWriter, resp MockResponse) {
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

// NewPageResponse creates a 200 OK page holding the given raw JSON records.
func NewPageResponse(records ...string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       fmt.Sprintf(`{"certificates":[%s],"count":%d}`, strings.Join(records, ","), len(records)),
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"errors":[{"code":10000,"message":"internal server error"}]}`,
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
	}
}

// NewMalformedResponse creates a 200 OK response that is missing "count".
func NewMalformedResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       `{"certificates":[]}`,
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
	}
}

// Cert builds a raw JSON certificate record with fields in the given order.
// Pairs are key, value; values are JSON-encoded.
func Cert(pairs ...any) string {
	var b strings.Builder
	b.WriteByte('{')
	for i := 0; i+1 < len(pairs); i += 2 {
		if i > 0 {
			b.WriteByte(',')
		}
		key, _ := json.Marshal(fmt.Sprint(pairs[i]))
		value, _ := json.Marshal(pairs[i+1])
		b.Write(key)
		b.WriteByte(':')
		b.Write(value)
	}
	b.WriteByte('}')
	return b.String()
}
