package observability

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/couchcryptid/warehouse-etl/internal/config"
	slogmulti "github.com/samber/slog-multi"
)

// NewLogger builds the service logger from config. When LOG_FILE is set, records
// are also appended to that file as JSON. The returned cleanup closes the file.
func NewLogger(cfg *config.Config) (*slog.Logger, func() error) {
	level := ParseLevel(cfg.LogLevel)
	primary := newHandler(os.Stderr, cfg.LogFormat, level)

	if cfg.LogFile == "" {
		return slog.New(primary), func() error { return nil }
	}

	file, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		logger := slog.New(primary)
		logger.Error("failed to open log file, using stderr only", "error", err, "file", cfg.LogFile)
		return logger, func() error { return nil }
	}

	return NewLoggerWithWriters(os.Stderr, file, cfg.LogFormat, level), file.Close
}

// NewLoggerWithWriters fans records out to a primary writer in the configured
// format and a secondary writer as JSON.
func NewLoggerWithWriters(primary, secondary io.Writer, format string, level slog.Level) *slog.Logger {
	return slog.New(slogmulti.Fanout(
		newHandler(primary, format, level),
		slog.NewJSONHandler(secondary, &slog.HandlerOptions{Level: level}),
	))
}

// ParseLevel maps a LOG_LEVEL value to a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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

func newHandler(w io.Writer, format string, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(format, "text") {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}
