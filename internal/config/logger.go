package config

import (
	"io"
	"log/slog"
	"os"
)

// SetupLogger builds the process logger for env and installs it as the slog default.
// local and dev log text at debug level; prod logs JSON at info level.
func SetupLogger(env string) *slog.Logger {
	logger := NewLogger(env, os.Stderr)
	slog.SetDefault(logger)
	return logger
}

// NewLogger builds a logger for env that writes to w
func NewLogger(env string, w io.Writer) *slog.Logger {
	switch env {
	case EnvProd:
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}))
	default:
		return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
}
