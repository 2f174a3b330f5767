// Package logger sets up dagml-demo's structured logger, adapted from the
// teacher's internal/infrastructure/logger.Setup (slog.JSONHandler keyed
// off a string level).
package logger

import (
	"log/slog"
	"os"
	"strings"
)

// Setup builds a JSON slog.Logger at the given level ("debug", "info",
// "warn" or "error"; anything else falls back to info) and installs it as
// slog.Default so library code that logs via the top-level slog functions
// picks it up too.
func Setup(level string) *slog.Logger {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: l})
	log := slog.New(handler)
	slog.SetDefault(log)
	return log
}
