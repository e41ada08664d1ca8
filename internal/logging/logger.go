// Package logging wraps log/slog with a JSON handler, so every log line
// the service emits carries its key/value attributes as structured fields.
package logging

import (
	"log/slog"
	"os"
)

// New returns a JSON slog.Logger writing to os.Stderr at the given level.
func New(level slog.Level) *slog.Logger {
	h := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slog.New(h)
}
