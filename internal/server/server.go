// Package server owns the HTTP listener lifecycle, from Start through
// graceful drain on shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/mentionwatch/mentionwatch/internal/config"
	"log/slog"
)

// Server hosts the REST and metrics surface.
type Server struct {
	logger *slog.Logger
	http   *http.Server
	grace  time.Duration
}

// New builds the server around the handler. Slow-client protection comes from
// the configured read/write timeouts; idle keep-alive connections are recycled
// on a multiple of the read timeout.
func New(cfg config.ServerConfig, logger *slog.Logger, handler http.Handler) *Server {
	return &Server{
		logger: logger,
		http: &http.Server{
			Addr:              net.JoinHostPort("", cfg.Port),
			Handler:           handler,
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       4 * cfg.ReadTimeout,
		},
		grace: cfg.ShutdownTimeout,
	}
}

// Start listens and serves until Shutdown is called. A server closed through
// Shutdown returns nil, not ErrServerClosed.
func (s *Server) Start() error {
	s.logger.Info("http server listening",
		"addr", s.http.Addr,
		"read_timeout", s.http.ReadTimeout,
		"write_timeout", s.http.WriteTimeout)

	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return fmt.Errorf("http listen: %w", err)
}

// Shutdown drains in-flight requests, giving up after the configured grace
// period.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.grace)
	defer cancel()

	s.logger.Info("http server draining", "grace", s.grace)
	if err := s.http.Shutdown(ctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
