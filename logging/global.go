// Package logging provides the process-wide slog logger. Records go to the
// console as text and to a weekly rotating file as JSON.
package logging

import (
	"log/slog"
	"os"
	"sync"

	"github.com/giygas/cureid-api/config"
)

// LoggingService owns the configured logger and its rotating file.
type LoggingService struct {
	Logger   *slog.Logger
	rotating *RotatingLogger
}

// DefaultLoggingService is set by InitLogger. Package-level helpers fall back
// to a stderr logger while it is nil.
var DefaultLoggingService *LoggingService

// Options configures InitLogger.
type Options struct {
	Dir            string
	Env            config.Environment
	Level          string
	RetentionWeeks int
	MaxFileSize    int64
}

// InitLogger builds the global logger and installs it as the slog default.
// When the log directory cannot be used the logger writes to the console only.
func InitLogger(opts Options) *LoggingService {
	consoleHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: ConsoleLevel(opts.Env, opts.Level),
	})

	service := &LoggingService{}
	rotating, err := NewRotatingLogger(opts.Dir, "cureid", opts.RetentionWeeks, opts.MaxFileSize)
	if err != nil {
		service.Logger = slog.New(consoleHandler)
		service.Logger.Error("File logging disabled", "dir", opts.Dir, "error", err)
	} else {
		fileHandler := slog.NewJSONHandler(rotating, &slog.HandlerOptions{Level: FileLevel()})
		service.Logger = slog.New(&multiHandler{handlers: []slog.Handler{consoleHandler, fileHandler}})
		service.rotating = rotating
	}

	DefaultLoggingService = service
	slog.SetDefault(service.Logger)
	return service
}

// Close flushes and closes the log file.
func (s *LoggingService) Close() error {
	if s == nil || s.rotating == nil {
		return nil
	}
	return s.rotating.Close()
}

var (
	fallbackOnce sync.Once
	fallback     *slog.Logger
)

func current() *slog.Logger {
	if DefaultLoggingService != nil && DefaultLoggingService.Logger != nil {
		return DefaultLoggingService.Logger
	}
	fallbackOnce.Do(func() {
		fallback = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	})
	return fallback
}

// Logger returns the global logger.
func Logger() *slog.Logger {
	return current()
}

func Info(msg string, args ...any) {
	current().Info(msg, args...)
}

func Error(msg string, args ...any) {
	current().Error(msg, args...)
}

func Warn(msg string, args ...any) {
	current().Warn(msg, args...)
}

func Debug(msg string, args ...any) {
	current().Debug(msg, args...)
}
