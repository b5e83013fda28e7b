package testserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Paths served by Server
const (
	PathJSON   = "/api/users"
	PathJS     = "/assets/app.js"
	PathCSS    = "/assets/style.css"
	PathImage  = "/images/photo.png"
	PathHTML   = "/index.html"
	PathText   = "/robots.txt"
	PathBinary = "/files/blob.bin"
	PathStream = "/stream"
	PathStatus = "/status/"

	// PathRedirect + "{n}" redirects n times with 302 before landing on
	// the ?to= path, PathJSON by default
	PathRedirect = "/redirect/"
)

// ImageSize is the Content-Length of PathImage
const ImageSize = 2048

// Server is an httptest server with one endpoint per content type, optional
// per-path delays and errors, and a streaming endpoint without
// Content-Length.
type Server struct {
	server         *httptest.Server
	requestCount   int32
	mu             sync.RWMutex
	errorResponses map[string]int
	delays         map[string]time.Duration
}

// New starts a Server
func New() *Server {
	s := &Server{
		errorResponses: make(map[string]int),
		delays:         make(map[string]time.Duration),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(PathJSON, s.wrap(s.handleJSON))
	mux.HandleFunc(PathJS, s.wrap(s.handleStatic("application/javascript", "console.log('ok');\n")))
	mux.HandleFunc(PathCSS, s.wrap(s.handleStatic("text/css", "body { margin: 0; }\n")))
	mux.HandleFunc(PathImage, s.wrap(s.handleImage))
	mux.HandleFunc(PathHTML, s.wrap(s.handleStatic("text/html; charset=utf-8", "<!doctype html><title>ok</title>\n")))
	mux.HandleFunc(PathText, s.wrap(s.handleStatic("text/plain; charset=utf-8", "User-agent: *\n")))
	mux.HandleFunc(PathBinary, s.wrap(s.handleStatic("application/octet-stream", "\x00\x01\x02\x03")))
	mux.HandleFunc(PathStream, s.wrap(s.handleStream))
	mux.HandleFunc(PathStatus, s.wrap(s.handleStatus))
	mux.HandleFunc(PathRedirect, s.wrap(s.handleRedirect))

	s.server = httptest.NewServer(mux)
	return s
}

// wrap counts the request and applies configured delays and errors
func (s *Server) wrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&s.requestCount, 1)

		if delay := s.getDelay(r.URL.Path); delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}

		if code := s.getErrorResponse(r.URL.Path); code > 0 {
			s.sendError(w, code)
			return
		}

		next(w, r)
	}
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	data, _ := json.Marshal([]map[string]interface{}{
		{"id": 1, "name": "ada"},
		{"id": 2, "name": "grace"},
	})
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)
}

func (s *Server) handleStatic(contentType, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		w.Write([]byte(body))
	}
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(ImageSize))
	w.Write(Payload(ImageSize))
}

// handleStream writes ?bytes=N bytes in flushed chunks so the response has
// no Content-Length
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(r.URL.Query().Get("bytes"))
	if err != nil || n < 0 {
		n = 1536
	}

	w.Header().Set("Content-Type", "text/plain")
	flusher, _ := w.(http.Flusher)

	data := Payload(n)
	const chunk = 512
	for len(data) > 0 {
		size := chunk
		if len(data) < size {
			size = len(data)
		}
		w.Write(data[:size])
		data = data[size:]
		if flusher != nil {
			flusher.Flush()
		}
	}
}

// handleStatus answers /status/{code} with that code
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	code, err := strconv.Atoi(strings.TrimPrefix(r.URL.Path, PathStatus))
	if err != nil || code < 100 || code > 599 {
		code = http.StatusBadRequest
	}
	s.sendError(w, code)
}

// handleRedirect answers /redirect/{n} with a 302 to /redirect/{n-1}, and
// /redirect/0 with a 302 to the ?to= target
func (s *Server) handleRedirect(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(strings.TrimPrefix(r.URL.Path, PathRedirect))
	if err != nil || n < 0 {
		s.sendError(w, http.StatusBadRequest)
		return
	}

	target := r.URL.Query().Get("to")
	if target == "" {
		target = PathJSON
	}
	if n > 0 {
		target = fmt.Sprintf("%s%d?%s", PathRedirect, n-1, r.URL.RawQuery)
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// sendError sends a JSON error body
func (s *Server) sendError(w http.ResponseWriter, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": http.StatusText(code),
		"status":  "fail",
	})
}

// Payload returns n deterministic bytes
func Payload(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i % 256)
	}
	return data
}

// SetErrorResponse makes path answer with code
func (s *Server) SetErrorResponse(path string, code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errorResponses[path] = code
}

// ClearErrorResponse removes the error configured for path
func (s *Server) ClearErrorResponse(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.errorResponses, path)
}

// SetDelay delays every response on path
func (s *Server) SetDelay(path string, delay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays[path] = delay
}

func (s *Server) getErrorResponse(path string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.errorResponses[path]
}

func (s *Server) getDelay(path string) time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.delays[path]
}

// URL returns the base URL of the server
func (s *Server) URL() string {
	return s.server.URL
}

// Endpoint returns the absolute URL of path
func (s *Server) Endpoint(path string) string {
	return s.server.URL + path
}

// StreamURL returns the streaming endpoint for a body of n bytes
func (s *Server) StreamURL(n int) string {
	return fmt.Sprintf("%s%s?bytes=%d", s.server.URL, PathStream, n)
}

// RedirectURL returns a URL redirecting hops times before landing on to
func (s *Server) RedirectURL(hops int, to string) string {
	u := fmt.Sprintf("%s%s%d", s.server.URL, PathRedirect, hops)
	if to != "" {
		u += "?to=" + url.QueryEscape(to)
	}
	return u
}

// Client returns a client for the server with its own transport
func (s *Server) Client() *http.Client {
	return s.server.Client()
}

// RequestCount returns the number of requests served
func (s *Server) RequestCount() int {
	return int(atomic.LoadInt32(&s.requestCount))
}

// ResetCounters zeroes the request counter
func (s *Server) ResetCounters() {
	atomic.StoreInt32(&s.requestCount, 0)
}

// Close shuts down the server
func (s *Server) Close() {
	s.server.Close()
}
