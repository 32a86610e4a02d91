package app

import (
	"log/slog"
	"os"
)

// NewLogger picks the process-wide slog handler from the environment:
// JSON at INFO for prod, text at DEBUG everywhere else. Room and store
// code receive this logger through their constructors; nothing logs
// through the global default.
func NewLogger(env string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelDebug}
	var handler slog.Handler
	if env == "prod" {
		opts.Level = slog.LevelInfo
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}
