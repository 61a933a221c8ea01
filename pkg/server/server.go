// Package server exposes the operational HTTP endpoint: Prometheus
// metrics, a store-backed health check, and job record lookups.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"helios-hq/aegis/pkg/config"
	"helios-hq/aegis/pkg/jobs"
	"helios-hq/aegis/pkg/store"
	"helios-hq/aegis/pkg/telemetry/metrics"
)

// Server is the operational HTTP server. It never carries admitted
// traffic; the admission layer itself is a library embedded by its host.
type Server struct {
	cfg        config.OpsConfig
	store      store.Store
	dispatcher *jobs.Dispatcher
	provider   *metrics.Provider
	logger     *slog.Logger

	httpServer   *http.Server
	shutdownOnce sync.Once
	mu           sync.RWMutex
	running      bool
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger. Default: slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithDispatcher enables the /jobs/{id} lookup endpoint.
func WithDispatcher(d *jobs.Dispatcher) Option {
	return func(s *Server) { s.dispatcher = d }
}

// WithMetrics enables the /metrics endpoint.
func WithMetrics(p *metrics.Provider) Option {
	return func(s *Server) { s.provider = p }
}

// New creates the operational server over the shared store.
func New(cfg *config.OpsConfig, st store.Store, opts ...Option) *Server {
	s := &Server{
		cfg:    *cfg,
		store:  st,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "ops")
	return s
}

// Start runs the server and blocks until the context is canceled or the
// listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server: already running")
	}
	s.running = true

	s.httpServer = &http.Server{
		Addr:         s.cfg.ListenAddress,
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("ops server listening", "address", s.cfg.ListenAddress)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server: listen on %s: %w", s.cfg.ListenAddress, err)
		}
	}()

	select {
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	}
}

// Shutdown drains in-flight requests within the configured timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		if !s.running {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
		defer cancel()

		if s.httpServer != nil {
			if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
				shutdownErr = fmt.Errorf("server: shutdown: %w", err)
			}
		}

		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		s.logger.Info("ops server stopped")
	})
	return shutdownErr
}

// IsRunning reports whether the listener is active.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Handler returns the route table. Exposed for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	if s.provider != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(s.provider.Registry(), promhttp.HandlerOpts{}))
	}
	if s.dispatcher != nil {
		mux.HandleFunc("/jobs/", s.handleJobLookup)
	}
	return mux
}

// handleHealth reports store reachability. The store is the only hard
// dependency, so its ping is the whole health check.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.logger.Warn("health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleJobLookup serves the persisted record for one job id.
func (s *Server) handleJobLookup(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/jobs/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}

	job, err := s.dispatcher.Lookup(r.Context(), id)
	if errors.Is(err, jobs.ErrJobNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "job not found"})
		return
	}
	if err != nil {
		s.logger.Error("job lookup failed", "job_id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "lookup failed"})
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
