package testutil

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
)

// Route describes how Server answers requests for one path
type Route struct {
	Body        []byte
	ContentType string // Defaults to application/octet-stream
	Disposition string // Content-Disposition header, if any
	Redirect    string // Redirect target path; other fields are ignored
	Status      int    // Status for both HEAD and GET; defaults to 200

	// AdvertisedSize overrides the Content-Length of HEAD responses when non-zero
	AdvertisedSize int64

	// OmitLength streams GET bodies chunked and sends HEAD without Content-Length
	OmitLength bool
}

// Server is an httptest server over a fixed set of routes that counts requests
type Server struct {
	*httptest.Server

	mu     sync.Mutex
	routes map[string]Route
	heads  map[string]int
	gets   map[string]int
}

// NewServer starts a Server and registers its shutdown with t.Cleanup
func NewServer(t *testing.T, routes map[string]Route) *Server {
	t.Helper()

	s := &Server{
		routes: routes,
		heads:  make(map[string]int),
		gets:   make(map[string]int),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

// Gets returns the number of GET requests received for path
func (s *Server) Gets(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gets[path]
}

// Heads returns the number of HEAD requests received for path
func (s *Server) Heads(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.heads[path]
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	route, ok := s.routes[r.URL.Path]
	switch r.Method {
	case http.MethodHead:
		s.heads[r.URL.Path]++
	case http.MethodGet:
		s.gets[r.URL.Path]++
	}
	s.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	if route.Redirect != "" {
		http.Redirect(w, r, route.Redirect, http.StatusFound)
		return
	}

	contentType := route.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	if route.Disposition != "" {
		w.Header().Set("Content-Disposition", route.Disposition)
	}

	status := route.Status
	if status == 0 {
		status = http.StatusOK
	}

	if r.Method == http.MethodHead {
		if !route.OmitLength {
			size := int64(len(route.Body))
			if route.AdvertisedSize != 0 {
				size = route.AdvertisedSize
			}
			w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
		}
		w.WriteHeader(status)
		return
	}

	if route.OmitLength {
		w.WriteHeader(status)
		half := len(route.Body) / 2
		_, _ = w.Write(route.Body[:half])
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		_, _ = w.Write(route.Body[half:])
		return
	}

	w.Header().Set("Content-Length", strconv.Itoa(len(route.Body)))
	w.WriteHeader(status)
	_, _ = w.Write(route.Body)
}
