package observability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// ServerOptions configures the metrics and health endpoint.
type ServerOptions struct {
	Addr        string
	MetricsPath string
	// Status adds fields to the /health response, e.g. session counts.
	Status func(ctx context.Context) map[string]any
}

// Server serves Prometheus metrics and a JSON health check.
type Server struct {
	options   ServerOptions
	server    *http.Server
	startTime time.Time

	mu       sync.Mutex
	listener net.Listener
}

// NewServer creates a metrics server. Call Start to begin serving.
func NewServer(options ServerOptions) *Server {
	if options.MetricsPath == "" {
		options.MetricsPath = "/metrics"
	}

	s := &Server{options: options}

	mux := http.NewServeMux()
	mux.Handle(options.MetricsPath, MetricsHandler())
	mux.HandleFunc("/health", s.handleHealth)

	s.server = &http.Server{
		Addr:              options.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start listens and serves until Stop is called.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.options.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.options.Addr, err)
	}

	s.mu.Lock()
	s.listener = ln
	s.startTime = time.Now()
	s.mu.Unlock()

	log.Info().
		Str("addr", ln.Addr().String()).
		Str("path", s.options.MetricsPath).
		Msg("Starting metrics server")

	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server failed: %w", err)
	}
	return nil
}

// Addr returns the bound address once Start is listening.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown metrics server: %w", err)
	}
	log.Info().Msg("Metrics server stopped")
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.mu.Lock()
	started := s.startTime
	s.mu.Unlock()

	response := map[string]any{
		"status":    "ok",
		"uptime":    time.Since(started).Seconds(),
		"timestamp": time.Now().UnixMilli(),
	}
	if s.options.Status != nil {
		for k, v := range s.options.Status(r.Context()) {
			response[k] = v
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(response)
}
