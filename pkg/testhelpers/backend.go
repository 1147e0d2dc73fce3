// Package testhelpers provides utilities for testing argo-explorer components.
package testhelpers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/argo-explorer/dashboard/pkg/apiurl"
)

// RecordedRequest is one request received by a FakeBackend.
type RecordedRequest struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte
}

// FakeBackend is an httptest server standing in for the ARGO backend.
// Routes are keyed by "METHOD /path" (query string ignored) and may be
// replaced while the server runs. Unknown routes answer 404 with a FastAPI
// style {"detail": "Not Found"} body.
type FakeBackend struct {
	Server *httptest.Server

	mu       sync.Mutex
	routes   map[string]http.HandlerFunc
	requests []RecordedRequest
}

// NewFakeBackend starts a fake backend that is closed when the test ends.
func NewFakeBackend(t testing.TB) *FakeBackend {
	t.Helper()

	f := &FakeBackend{routes: make(map[string]http.HandlerFunc)}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.Server.Close)
	return f
}

// URL returns the server's base URL.
func (f *FakeBackend) URL() string {
	return f.Server.URL
}

// Resolver returns a resolver whose override points at the fake backend.
func (f *FakeBackend) Resolver() *apiurl.Resolver {
	store := apiurl.NewMemoryStore()
	_ = store.Set(f.URL())
	return apiurl.NewResolver(apiurl.Options{Default: f.URL(), Store: store, Development: true})
}

// Handle registers h for pattern ("GET /health").
func (f *FakeBackend) Handle(pattern string, h http.HandlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes[pattern] = h
}

// JSON registers a route answering status with body encoded as JSON.
func (f *FakeBackend) JSON(pattern string, status int, body any) {
	f.Handle(pattern, func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, status, body)
	})
}

// Status registers a route answering status with an empty body.
func (f *FakeBackend) Status(pattern string, status int) {
	f.Handle(pattern, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	})
}

// Requests returns a copy of every request received so far.
func (f *FakeBackend) Requests() []RecordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]RecordedRequest(nil), f.requests...)
}

// Count returns how many requests matched "METHOD /path".
func (f *FakeBackend) Count(pattern string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for _, r := range f.requests {
		if r.Method+" "+r.Path == pattern {
			n++
		}
	}
	return n
}

// LastRequest returns the most recent request matching pattern.
func (f *FakeBackend) LastRequest(pattern string) (RecordedRequest, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := len(f.requests) - 1; i >= 0; i-- {
		r := f.requests[i]
		if r.Method+" "+r.Path == pattern {
			return r, true
		}
	}
	return RecordedRequest{}, false
}

func (f *FakeBackend) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	rec := RecordedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.Query(),
		Header: r.Header.Clone(),
		Body:   body,
	}

	f.mu.Lock()
	f.requests = append(f.requests, rec)
	h, ok := f.routes[r.Method+" "+r.URL.Path]
	f.mu.Unlock()

	if !ok {
		WriteJSON(w, http.StatusNotFound, map[string]string{"detail": "Not Found"})
		return
	}

	r.Body = io.NopCloser(bytes.NewReader(body))
	h(w, r)
}

// WriteJSON writes body as a JSON response.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
