package workflow

import (
	"errors"
	"log/slog"
	"os"
	"strings"

	"github.com/aravindh-murugesan/snapsentry-go/internal/cloud"
	"github.com/aravindh-murugesan/snapsentry-go/internal/policy"
	"github.com/lmittmann/tint"
)

// SetupLogger configures the application-wide logger.
// It uses "tint" for colorized, structured logging that is easy to read in terminals.
func SetupLogger(level string, provider string) *slog.Logger {
	handler := tint.NewHandler(os.Stderr, &tint.Options{
		Level: ParseLevel(level),
	})

	return slog.New(handler).With("provider", provider)
}

// ParseLevel maps a level name onto slog levels, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

// errorKind names the class of a pass failure for logs and alerts.
func errorKind(err error) string {
	var providerErr *cloud.ProviderError
	switch {
	case err == nil:
		return ""
	case policy.IsConfigError(err):
		return "config"
	case errors.As(err, &providerErr):
		return "provider"
	default:
		return "internal"
	}
}
