// Package logger builds the service's zerolog logger.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/akave-ai/nbstreamer/internal/config"
)

// New returns a logger writing to stderr. Development and log_format=console
// get a human-readable console writer, everything else gets JSON lines.
func New(cfg *config.Config) zerolog.Logger {
	return NewWithWriter(cfg, os.Stderr)
}

func NewWithWriter(cfg *config.Config, w io.Writer) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	obs := cfg.Observability
	if obs == nil {
		obs = config.DefaultObservabilityConfig()
	}
	if cfg.IsDevelopment() || obs.LogFormat == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).
		Level(obs.Level()).
		With().
		Timestamp().
		Str("service", obs.ServiceName).
		Str("env", obs.Environment).
		Logger()
}
