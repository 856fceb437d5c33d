// Package exchangetest provides a recording HTTP server that replays
// exchange payloads for adapter tests.
package exchangetest

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"exconnect/internal/adapters/exchanges"
)

// Now is the fixed clock reading handed to adapters under test.
var Now = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// Recorded is one request received by the server.
type Recorded struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   string
}

type route struct {
	status int
	body   string
}

// Server routes by URL path and records every request.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	routes   map[string]route
	requests []Recorded
}

// NewServer starts a server closed at test cleanup.
func NewServer(t testing.TB) *Server {
	t.Helper()
	s := &Server{routes: map[string]route{}}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

// Handle answers path with a 200 and body.
func (s *Server) Handle(path, body string) {
	s.HandleStatus(path, http.StatusOK, body)
}

// HandleStatus answers path with status and body.
func (s *Server) HandleStatus(path string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes[path] = route{status: status, body: body}
}

// Requests returns a copy of the recorded requests.
func (s *Server) Requests() []Recorded {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Recorded, len(s.requests))
	copy(out, s.requests)
	return out
}

// Last returns the most recent request.
func (s *Server) Last() Recorded {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		return Recorded{}
	}
	return s.requests[len(s.requests)-1]
}

// Count returns how many requests hit path.
func (s *Server) Count(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.requests {
		if r.Path == path {
			n++
		}
	}
	return n
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	s.mu.Lock()
	s.requests = append(s.requests, Recorded{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.RawQuery,
		Header: r.Header.Clone(),
		Body:   string(body),
	})
	rt, ok := s.routes[r.URL.Path]
	s.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rt.status)
	_, _ = io.WriteString(w, rt.body)
}

// Config points an adapter at the server with rate limiting off and a fixed clock.
func Config(s *Server, creds exchanges.Credentials) exchanges.Config {
	return exchanges.Config{
		Credentials:      creds,
		BaseURL:          s.URL,
		HTTPClient:       s.Client(),
		DisableRateLimit: true,
		Now:              func() time.Time { return Now },
	}
}

// Keys are throwaway credentials for signed-endpoint tests.
var Keys = exchanges.Credentials{APIKey: "test-key", Secret: "test-secret", UID: "42", Password: "pass"}
