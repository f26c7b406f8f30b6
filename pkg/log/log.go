// Package log configures the process-wide structured logger.
package log

import (
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
)

// Setup installs the default slog logger. Format "pretty" uses a tint
// handler for local development; anything else logs plain text.
func Setup(logLevel, format string) {
	var level slog.Level

	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler

	if format == "pretty" {
		handler = tint.NewHandler(os.Stderr, &tint.Options{Level: level})
	} else {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}

	slog.SetDefault(slog.New(handler))
}

// WithModule returns the default logger scoped to a component name.
func WithModule(module string) *slog.Logger {
	return slog.With("module", module)
}
