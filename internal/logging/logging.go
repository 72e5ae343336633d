// Package logging bootstraps the process-wide slog logger.
package logging

import (
	"log/slog"
	"os"
	"strings"

	"github.com/gearforge/gearforge/internal/config"
)

// Init configures and installs the default slog logger according to cfg,
// returning it so callers don't have to re-fetch slog.Default().
func Init(cfg config.LogConfig) *slog.Logger {
	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level(cfg.Level)}
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	logger := slog.New(handler).With("service", "gearforge")
	slog.SetDefault(logger)
	return logger
}

func level(s string) slog.Leveler {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
