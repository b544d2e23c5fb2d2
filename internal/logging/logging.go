// Package logging wires structured logging for the indexing pipeline: a
// slog.Logger writing to stderr by default, or to a rotating file
// (gopkg.in/natefinch/lumberjack.v2) when pkgs.logFile is configured.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/git-pkgs/git-pkgs/internal/config"
)

// New builds a slog.Logger from the current config singleton. Call after
// config.Initialize(); safe to call with no config loaded (falls back to
// stderr at info level).
func New() *slog.Logger {
	var w io.Writer = os.Stderr
	if path := config.LogFile(); path != "" {
		w = &lumberjack.Logger{
			Filename:   path,
			MaxSize:    50, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}
	}

	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: parseLevel(config.LogLevel()),
	})
	return slog.New(handler)
}

func parseLevel(s string) slog.Level {
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
