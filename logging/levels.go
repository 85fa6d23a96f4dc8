package logging

import (
	"log/slog"
	"strings"

	"github.com/giygas/cureid-api/config"
)

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// ConsoleLevel is the configured level, except under test where only errors are printed.
func ConsoleLevel(env config.Environment, level string) slog.Level {
	if env == config.EnvTest {
		return slog.LevelError
	}
	return parseLogLevel(level)
}

// FileLevel keeps debug records, including store operation stats, in the log file.
func FileLevel() slog.Level {
	return slog.LevelDebug
}
