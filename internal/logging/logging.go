// Package logging provides structured logging for shell sessions. It wraps
// log/slog to produce JSON logs with run and stage attributes.
package logging

import (
	"io"
	"log/slog"
	"strings"
)

// Log levels accepted by New.
const (
	LevelDebug = "DEBUG"
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

// New creates a JSON logger writing to w at the given level. Unknown levels
// default to INFO.
func New(w io.Writer, level string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}

	return slog.New(slog.NewJSONHandler(w, opts))
}

// Nop returns a logger that discards everything.
func Nop() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

// WithRun returns a child logger tagging every entry with the run ID.
func WithRun(log *slog.Logger, runID string) *slog.Logger {
	return log.With(slog.String("run_id", runID))
}

// WithStage returns a child logger tagging every entry with a stage.
func WithStage(log *slog.Logger, index int, name string) *slog.Logger {
	return log.With(slog.Int("stage", index), slog.String("cmd", name))
}

func parseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case LevelDebug:
		return slog.LevelDebug
	case LevelInfo:
		return slog.LevelInfo
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
