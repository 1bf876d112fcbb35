package logger

import (
	"io"
	"log/slog"
	"os"
)

// New returns the service's JSON logger on stdout. Debug level also records the
// call site.
func New(level slog.Level) *slog.Logger {
	return newWith(os.Stdout, level)
}

func newWith(w io.Writer, level slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:     level,
		AddSource: level <= slog.LevelDebug,
	})
	return slog.New(handler).With("service", "landingforge")
}
