// Package logging configures the process-wide slog logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// level is shared by every handler New installs so it can change at runtime.
var level = new(slog.LevelVar)

// New initializes a new slog logger on stdout and sets it as the default.
// LOG_FORMAT selects "text" (default) or "json" and LOG_LEVEL the minimum
// level (default "info").
func New() {
	NewWithWriter(os.Stdout)
}

// NewWithWriter is New writing to w.
func NewWithWriter(w io.Writer) {
	if l, ok := ParseLevel(os.Getenv("LOG_LEVEL")); ok {
		level.Set(l)
	} else {
		level.Set(slog.LevelInfo)
	}

	var handler slog.Handler
	switch strings.ToLower(os.Getenv("LOG_FORMAT")) {
	case "json":
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	default:
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{
			Level:     level,
			AddSource: true,
		})
	}

	slog.SetDefault(slog.New(handler))
}

// Level returns the current minimum level.
func Level() slog.Level {
	return level.Level()
}

// SetLevel changes the minimum level of the default logger.
func SetLevel(l slog.Level) {
	level.Set(l)
}

// ParseLevel maps debug, info, warn and error (any case) to a slog level.
func ParseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	return slog.LevelInfo, false
}
