package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Init builds the process logger on stdout, installs it as the slog default
// and returns it. format is "json" or anything else for text.
func Init(debug bool, format string) *slog.Logger {
	log := New(os.Stdout, debug, format)
	slog.SetDefault(log)
	return log
}

// New builds a logger writing to w.
func New(w io.Writer, debug bool, format string) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
