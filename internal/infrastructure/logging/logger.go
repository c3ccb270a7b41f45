package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/FrancescoVaiani/edgehog-device-runtime/internal/infrastructure/config"
)

// Logger is the structured logger shared by every subsystem of the agent.
//
// It embeds *slog.Logger, so the full slog API is available directly,
// and a *Logger (or any child produced by With) satisfies the small
// Logger interfaces the subsystem packages declare.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Logger struct {
	*slog.Logger
}

// New builds a Logger from the logging section of the agent configuration.
//
// Every record carries two default fields, service=edgehog and the build
// version, so a collector fed by several units can attribute records to
// this agent and to a specific release.
//
// Parameters:
//   - cfg: Logging configuration (level, format, output)
//   - version: Build version stamped on every record
//
// Returns:
//   - *Logger: Ready to use, never nil
func New(cfg config.LoggingConfig, version string) *Logger {
	handler := newHandler(cfg).WithAttrs([]slog.Attr{
		slog.String("service", "edgehog"),
		slog.String("version", version),
	})

	return &Logger{Logger: slog.New(handler)}
}

// newHandler selects the output stream and record format.
//
// The agent normally runs as a systemd unit, where stdout and stderr
// both land in the journal; the output option matters when running
// interactively during development.
func newHandler(cfg config.LoggingConfig) slog.Handler {
	var w io.Writer = os.Stdout
	if strings.EqualFold(cfg.Output, "stderr") {
		w = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	if strings.EqualFold(cfg.Format, "text") {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}

// parseLevel maps the configured level string onto slog's levels.
// Anything unrecognised falls back to info rather than failing startup.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Default returns the logger used before the configuration file has
// been read: JSON to stdout at info level, version "dev". Config
// loading itself reports problems through this.
func Default() *Logger {
	return New(config.LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	}, "dev")
}

// With returns a child Logger carrying extra default attributes.
//
// Startup hands each subsystem its own component field this way:
//
//	transport := log.With("component", "transport")
//
// Parameters:
//   - args: Key-value pairs added to every record of the child
//
// Returns:
//   - *Logger: New logger, the receiver is unchanged
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}
