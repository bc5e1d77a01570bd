package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Log is the process-wide logger. Nil until Init is called; the helpers
// below are no-ops in that state so packages can log from tests freely.
var Log *slog.Logger

// Init installs a text handler on stdout at the given level
// ("debug", "info", "warn", "error"). An empty level reads LOG_LEVEL.
func Init(level string) {
	InitWriter(os.Stdout, level)
}

// InitWriter is Init with an explicit sink.
func InitWriter(w io.Writer, level string) {
	lvl := strings.ToLower(strings.TrimSpace(level))
	if lvl == "" {
		lvl = strings.ToLower(strings.TrimSpace(os.Getenv("LOG_LEVEL")))
	}
	Log = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: parseLevel(lvl)}))
}

func parseLevel(lvl string) slog.Level {
	switch lvl {
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

func Debug(msg string, args ...any) {
	if Log == nil {
		return
	}
	Log.Debug(msg, args...)
}

func Info(msg string, args ...any) {
	if Log == nil {
		return
	}
	Log.Info(msg, args...)
}

func Warn(msg string, args ...any) {
	if Log == nil {
		return
	}
	Log.Warn(msg, args...)
}

func Error(msg string, args ...any) {
	if Log == nil {
		return
	}
	Log.Error(msg, args...)
}
