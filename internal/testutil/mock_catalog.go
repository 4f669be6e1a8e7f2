// Package testutil provides a mock enterprise catalog service for tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"
)

// Paths served by MockCatalog.
const (
	TokenPath   = "/oauth2/access_token"
	APIBasePath = "/api/v1"
)

// MockResponse defines the behavior for a mock endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockCatalog is a configurable mock catalog service with an OAuth token
// endpoint.
type MockCatalog struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc
	token    MockResponse

	// Tracking
	RequestCount      int
	TokenRequestCount int
	LastRequestHeader http.Header
	Requests          []string
}

// NewMockCatalog starts a mock catalog server.
func NewMockCatalog() *MockCatalog {
	mock := &MockCatalog{
		handlers: make(map[string]http.HandlerFunc),
		token:    NewTokenResponse("mock-token", 3600),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == TokenPath {
			mock.mu.Lock()
			mock.TokenRequestCount++
			resp := mock.token
			mock.mu.Unlock()

			writeResponse(w, resp)
			return
		}

		mock.mu.Lock()
		mock.RequestCount++
		mock.LastRequestHeader = r.Header.Clone()
		mock.Requests = append(mock.Requests, r.Method+" "+r.URL.RequestURI())
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		if exists {
			handler(w, r)
			return
		}

		writeResponse(w, MockResponse{
			StatusCode: http.StatusNotFound,
			Body:       `{"detail": "Not found."}`,
			Headers:    map[string]string{"Content-Type": "application/json"},
		})
	}))

	return mock
}

// URL returns the mock server root, usable as the OAuth provider URL.
func (m *MockCatalog) URL() string {
	return m.server.URL
}

// APIBase returns the catalog API root.
func (m *MockCatalog) APIBase() string {
	return m.server.URL + APIBasePath
}

// Close shuts down the mock server.
func (m *MockCatalog) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockCatalog) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.TokenRequestCount = 0
	m.LastRequestHeader = nil
	m.Requests = nil
}

// SetHandler sets a custom handler for a path.
func (m *MockCatalog) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a fixed response for a path.
func (m *MockCatalog) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, _ *http.Request) {
		writeResponse(w, resp)
	})
}

// SetTokenResponse replaces the token endpoint response.
func (m *MockCatalog) SetTokenResponse(resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = resp
}

// SetContainsResponse configures the contains_content_items endpoint of a catalog.
func (m *MockCatalog) SetContainsResponse(catalogID string, resp MockResponse) {
	m.SetResponse(fmt.Sprintf("%s/enterprise_catalogs/%s/contains_content_items/", APIBasePath, catalogID), resp)
}

// SetDistinctQueriesResponse configures the distinct-catalog-queries endpoint.
func (m *MockCatalog) SetDistinctQueriesResponse(resp MockResponse) {
	m.SetResponse(APIBasePath+"/distinct-catalog-queries/", resp)
}

// CatalogPath is the listing path for a catalog.
func CatalogPath(catalogID string) string {
	return fmt.Sprintf("%s/enterprise_catalogs/%s", APIBasePath, catalogID)
}

// Entry is one item of a catalog listing page.
type Entry struct {
	ContentType string   `json:"content_type"`
	CourseRuns  []RunKey `json:"course_runs"`
}

// RunKey is a course run reference.
type RunKey struct {
	Key string `json:"key"`
}

// Course builds a course entry with the given run keys.
func Course(runKeys ...string) Entry {
	runs := make([]RunKey, 0, len(runKeys))
	for _, key := range runKeys {
		runs = append(runs, RunKey{Key: key})
	}
	return Entry{ContentType: "course", CourseRuns: runs}
}

// Program builds a non-course entry.
func Program() Entry {
	return Entry{ContentType: "program", CourseRuns: []RunKey{}}
}

// SetCourseListing serves pages of a catalog listing. Page 1 is the bare
// catalog URL; later pages are linked as ?page=N absolute URLs.
func (m *MockCatalog) SetCourseListing(catalogID string, pages ...[]Entry) {
	path := CatalogPath(catalogID)

	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		page := 1
		if p := r.URL.Query().Get("page"); p != "" {
			n, err := strconv.Atoi(p)
			if err != nil || n < 1 {
				http.Error(w, "bad page", http.StatusBadRequest)
				return
			}
			page = n
		}
		if page > len(pages) {
			http.Error(w, `{"detail": "Invalid page."}`, http.StatusNotFound)
			return
		}

		var next *string
		if page < len(pages) {
			link := fmt.Sprintf("%s%s?page=%d", m.server.URL, path, page+1)
			next = &link
		}

		body, _ := json.Marshal(struct {
			Count   int     `json:"count"`
			Next    *string `json:"next"`
			Results []Entry `json:"results"`
		}{Count: len(pages[page-1]), Next: next, Results: pages[page-1]})

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(body)
	})
}

// GetRequestCount returns the number of catalog API requests.
func (m *MockCatalog) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetTokenRequestCount returns the number of token requests.
func (m *MockCatalog) GetTokenRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.TokenRequestCount
}

// GetLastRequestHeader returns the headers of the latest catalog API request.
func (m *MockCatalog) GetLastRequestHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.LastRequestHeader
}

// GetRequests returns "METHOD /path?query" for every catalog API request.
func (m *MockCatalog) GetRequests() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.Requests...)
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

// NewJSONResponse creates a 200 OK JSON response.
func NewJSONResponse(body string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       body,
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

// NewTokenResponse creates a client-credentials token response.
func NewTokenResponse(accessToken string, expiresIn int) MockResponse {
	return NewJSONResponse(fmt.Sprintf(
		`{"access_token": %q, "token_type": "JWT", "expires_in": %d, "scope": "read write"}`,
		accessToken, expiresIn))
}

// NewUnauthorizedResponse creates a 401 response.
func NewUnauthorizedResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusUnauthorized,
		Body:       `{"detail": "Authentication credentials were not provided."}`,
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "Internal server error"}`,
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}
