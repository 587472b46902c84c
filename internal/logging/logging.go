// Package logging builds the process-wide slog.Logger. Every record carries a
// service attribute; subsystems derive component-tagged children so connector
// and pipeline lines can be filtered apart.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/mentionwatch/mentionwatch/internal/config"
)

const serviceName = "mentionwatch"

// New constructs the root logger writing to stdout.
func New(cfg config.LoggingConfig) (*slog.Logger, error) {
	return NewWithWriter(cfg, os.Stdout)
}

// NewWithWriter constructs the root logger writing to w. Split out from New so
// tests can capture output.
func NewWithWriter(cfg config.LoggingConfig, w io.Writer) (*slog.Logger, error) {
	opts := &slog.HandlerOptions{Level: cfg.Level}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		return nil, fmt.Errorf("unsupported log format: %s", cfg.Format)
	}

	return slog.New(handler).With("service", serviceName), nil
}

// ForComponent derives a child logger tagged with the subsystem name.
func ForComponent(logger *slog.Logger, name string) *slog.Logger {
	return logger.With("component", name)
}
