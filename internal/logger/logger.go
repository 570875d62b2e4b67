package logger

import (
	"log/slog"
	"os"
	"strings"

	"github.com/trayyy/trayyy/backend-go/internal/config"
)

// New builds the process-wide logger: JSON in production so log shippers
// can parse it, human-readable text everywhere else.
func New(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	switch strings.ToLower(cfg.AppEnv) {
	case "production":
		handler = slog.NewJSONHandler(os.Stdout, opts)
	default:
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler).With("service", "trayyy")

	slog.SetDefault(logger)

	return logger
}
