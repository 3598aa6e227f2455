// Package server exposes the definition search over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sanonone/termgraph/internal/config"
	"github.com/sanonone/termgraph/pkg/definitions"
	"github.com/sanonone/termgraph/pkg/uts"
)

// Searcher is the search surface served over HTTP. *definitions.Searcher implements it.
type Searcher interface {
	SearchDefinitions(ctx context.Context, cui string, opts definitions.SearchOptions) ([]uts.Concept, error)
	FindDefinedConcepts(ctx context.Context, req definitions.FindRequest) ([]uts.Concept, error)
}

// Server holds the HTTP interface and the searcher behind it.
type Server struct {
	searcher Searcher
	// defaults seed every request before its query parameters are applied.
	defaults definitions.SearchOptions
	logger   *slog.Logger

	httpServer      *http.Server
	shutdownTimeout time.Duration
}

// NewServer builds the router and the underlying http.Server.
func NewServer(searcher Searcher, cfg config.ServerConfig, defaults definitions.SearchOptions, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		searcher:        searcher,
		defaults:        defaults,
		logger:          logger,
		shutdownTimeout: cfg.ShutdownTimeout,
	}
	if s.shutdownTimeout <= 0 {
		s.shutdownTimeout = 5 * time.Second
	}
	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Handler returns the routed handler with its middleware chain:
// RequestID -> Recovery -> Logging -> routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.RequestIDMiddleware)
	r.Use(s.RecoveryMiddleware)
	r.Use(s.LoggingMiddleware)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "endpoint not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Get("/healthz", s.handleHealthz)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/concepts/{cui}/definitions", s.handleSearchDefinitions)
		r.Get("/defined-concepts", s.handleFindDefinedConcepts)
	})
	return r
}

// Run serves until Shutdown is called.
func (s *Server) Run() error {
	s.logger.Info("HTTP server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server startup failed: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight searches.
func (s *Server) Shutdown() {
	s.logger.Info("Starting graceful shutdown of HTTP Server...")

	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}
}
