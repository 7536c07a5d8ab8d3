// Package api exposes the history service over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/roach88/rewind/internal/history"
)

const (
	// HeaderUser names the acting user of a mutating request.
	HeaderUser = "X-Rewind-User"
	// HeaderReason carries an optional reason for the change.
	HeaderReason = "X-Rewind-Reason"
)

// Server serves the record history API together with /metrics and
// /health.
type Server struct {
	svc     *history.Service
	metrics http.Handler
	logger  *slog.Logger
	server  *http.Server
}

// NewServer creates a server listening on addr. metrics may be nil, in
// which case /metrics is not registered.
func NewServer(addr string, svc *history.Service, metrics http.Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		svc:     svc,
		metrics: metrics,
		logger:  logger,
	}
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the routed handler wrapped in panic recovery and
// request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /records", s.handleCreate)
	mux.HandleFunc("GET /records", s.handleList)
	mux.HandleFunc("GET /records/{id}", s.handleGet)
	mux.HandleFunc("PUT /records/{id}", s.handleSave)
	mux.HandleFunc("DELETE /records/{id}", s.handleDelete)
	mux.HandleFunc("GET /records/{id}/history", s.handleHistory)
	mux.HandleFunc("GET /records/{id}/verify", s.handleVerify)
	mux.HandleFunc("GET /records/{id}/versions/{version}", s.handleStateAt)
	mux.HandleFunc("GET /records/{id}/versions/{version}/changes", s.handleChanges)
	mux.HandleFunc("POST /records/{id}/versions/{version}/undo", s.handleUndo)

	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "rewind"})
	})

	return logRequests(s.logger, recoverPanics(s.logger, mux))
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("starting api server", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down api server")
	return s.server.Shutdown(ctx)
}
