package logging

import (
	"log/slog"
	"strings"
)

// Writer forwards line-oriented output from libraries that only know
// io.Writer (such as Echo's internal logger) into slog.
type Writer struct {
	logger *slog.Logger
}

// NewWriter constructs a Writer bound to the provided logger.
func NewWriter(logger *slog.Logger) *Writer {
	return &Writer{logger: logger}
}

// Write logs the given bytes as single lines at info level.
func (w *Writer) Write(p []byte) (int, error) {
	if w.logger != nil {
		for _, line := range strings.Split(strings.TrimRight(string(p), "\n"), "\n") {
			if line != "" {
				w.logger.Info(line)
			}
		}
	}
	return len(p), nil
}
