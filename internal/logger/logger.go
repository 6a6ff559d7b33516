// Package logger builds the structured loggers used across the orchestrator.
package logger

import (
	"log/slog"
	"os"

	"go.uber.org/zap"
)

// New creates a structured JSON logger, the orchestrator's default since the
// push_relations/process_tasks rewrite.
func New(serviceName string) *slog.Logger {
	level := levelFromString(os.Getenv("LOG_LEVEL"))

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(handler).With(slog.String("service", serviceName))
}

func levelFromString(s string) slog.Level {
	switch s {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLegacy builds a zap production logger tagged with serviceName. Neither
// entry command calls it: the --informed (USE_INFORMED) path logs through
// the slog logger from New like every other path.
func NewLegacy(serviceName string) *zap.Logger {
	l, err := zap.NewProduction(zap.Fields(zap.String("service", serviceName)))
	if err != nil {
		// zap.NewProduction only fails on a broken encoder config; fall back
		// to a logger that still works rather than crash the legacy path.
		return zap.NewNop()
	}
	return l
}
