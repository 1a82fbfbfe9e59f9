package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Logger is the project's structured logger: slog with a JSON handler so
// every service emits one log shape.
type Logger struct {
	*slog.Logger
}

// New builds a Logger at the given level name. Unknown names fall back
// to info.
func New(level string) *Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(level),
	})
	return &Logger{Logger: slog.New(handler)}
}

// Default is New("info"), for callers that have no configuration in hand.
func Default() *Logger {
	return New("info")
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
