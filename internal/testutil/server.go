package testutil

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// MockUpstream is an httptest server standing in for one upstream data API.
// It counts requests per path so tests can assert that cooldown and cache
// short-circuits made no network call at all.
type MockUpstream struct {
	*httptest.Server
	t        *testing.T
	mu       sync.Mutex
	handlers map[string]http.HandlerFunc
	counts   map[string]int
	total    int
}

// NewMockUpstream creates a mock upstream server.
// The server is automatically closed when the test completes.
func NewMockUpstream(t *testing.T) *MockUpstream {
	t.Helper()

	m := &MockUpstream{
		t:        t,
		handlers: make(map[string]http.HandlerFunc),
		counts:   make(map[string]int),
	}

	m.Server = httptest.NewServer(http.HandlerFunc(m.handle))
	t.Cleanup(m.Server.Close)
	return m
}

func (m *MockUpstream) handle(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.counts[r.URL.Path]++
	m.total++
	handler, exists := m.handlers[r.URL.Path]
	m.mu.Unlock()

	if exists {
		handler(w, r)
		return
	}

	ReplyJSON(w, http.StatusOK, map[string]any{})
}

// On registers a handler for a GET request path (query string ignored).
func (m *MockUpstream) On(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// Calls returns how many requests hit the given path.
func (m *MockUpstream) Calls(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[path]
}

// TotalCalls returns how many requests hit the server in total.
func (m *MockUpstream) TotalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.total
}

// BaseURL returns the server's base URL.
func (m *MockUpstream) BaseURL() string {
	return m.Server.URL
}
