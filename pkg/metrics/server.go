package metrics

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"
)

// Server exposes the scrape endpoint, and any probes registered on it, on a
// port separate from the API so scrapes bypass rate limiting and timeouts.
type Server struct {
	mux    *http.ServeMux
	paths  []string
	server *http.Server
}

// NewServer builds a server for port with GET /metrics mounted.
func NewServer(port int) *Server {
	s := &Server{mux: http.NewServeMux()}
	s.Handle("/metrics", Handler())
	s.mux.HandleFunc("GET /{$}", s.index)
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// Handle mounts h under GET path. Call it before Start.
func (s *Server) Handle(path string, h http.Handler) {
	s.mux.Handle("GET "+path, h)
	s.paths = append(s.paths, path)
}

// Handler returns the server's routes, for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start serves in the background.
func (s *Server) Start() {
	go func() {
		slog.Info("metrics server listening", "addr", s.server.Addr, "paths", s.paths)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server error", "error", err)
		}
	}()
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) index(w http.ResponseWriter, r *http.Request) {
	paths := slices.Sorted(slices.Values(s.paths))
	var b strings.Builder
	b.WriteString("<html><body><h1>Fragment Matcher</h1><ul>")
	for _, p := range paths {
		fmt.Fprintf(&b, `<li><a href="%s">%s</a></li>`, html.EscapeString(p), html.EscapeString(p))
	}
	b.WriteString("</ul></body></html>")
	w.Header().Set("Content-Type", "text/html")
	fmt.Fprint(w, b.String())
}
