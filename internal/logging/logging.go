// Package logging builds the structured, colorized loggers used by the
// echoview command and handed to views for render diagnostics.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/lmittmann/tint"
)

// Level represents a log level selected on the command line.
type Level slog.Level

const (
	// LevelDebug enables per-render diagnostics.
	LevelDebug Level = Level(slog.LevelDebug)
	// LevelInfo is the default level.
	LevelInfo Level = Level(slog.LevelInfo)
	// LevelWarn logs warnings and errors only.
	LevelWarn Level = Level(slog.LevelWarn)
	// LevelError logs errors only.
	LevelError Level = Level(slog.LevelError)
)

// ParseLevel converts a textual log level into a Level value. Unknown text
// falls back to info.
func ParseLevel(value string) Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// NewLogger constructs a slog.Logger with a tint handler at the given level.
func NewLogger(w io.Writer, level Level) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}

	handler := tint.NewHandler(w, &tint.Options{
		Level: slog.Level(level),
	})

	return slog.New(handler)
}
