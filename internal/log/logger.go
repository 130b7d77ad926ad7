package log

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	once   sync.Once
	logger *slog.Logger
)

// ParseLevel maps a config level name onto a slog level.
// Unknown names fall back to INFO.
func ParseLevel(level string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Setup initializes the global logger writing JSON lines to w.
// A nil w writes to stderr; the TUI passes a log file instead since it owns the terminal.
func Setup(level string, w io.Writer) {
	once.Do(func() {
		if w == nil {
			w = os.Stderr
		}
		opts := &slog.HandlerOptions{
			Level: ParseLevel(level),
		}
		logger = slog.New(slog.NewJSONHandler(w, opts))
		slog.SetDefault(logger)
	})
}

// Get returns the configured logger, or a default one if Setup hasn't been called.
func Get() *slog.Logger {
	if logger == nil {
		Setup("INFO", nil)
	}
	return logger
}

// WithComponent returns a logger with the component field set.
func WithComponent(name string) *slog.Logger {
	return Get().With(slog.String("component", name))
}

// WithGeneration returns a logger with the generation field set.
func WithGeneration(gen uint64) *slog.Logger {
	return Get().With(slog.Uint64("generation", gen))
}

// WithRun returns a logger scoped to a single command run.
func WithRun(runID string, slot int) *slog.Logger {
	return Get().With(slog.String("run_id", runID), slog.Int("slot", slot))
}

// Info logs at INFO level.
func Info(msg string, args ...any) {
	Get().Info(msg, args...)
}

// Debug logs at DEBUG level.
func Debug(msg string, args ...any) {
	Get().Debug(msg, args...)
}

// Warn logs at WARN level.
func Warn(msg string, args ...any) {
	Get().Warn(msg, args...)
}

// Error logs at ERROR level.
func Error(msg string, args ...any) {
	Get().Error(msg, args...)
}
