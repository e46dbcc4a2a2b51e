// Package utils provides utility functions including logging.
package utils

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger is the global structured logger instance. It starts as the slog
// default so packages can log before InitLogger runs.
var Logger = slog.Default()

// InitLogger initializes the structured logger with JSON output.
func InitLogger(env, service, level string) {
	InitLoggerTo(os.Stdout, env, service, level)
}

// InitLoggerTo is InitLogger writing to w.
func InitLoggerTo(w io.Writer, env, service, level string) {
	opts := &slog.HandlerOptions{
		Level: ParseLevel(level),
	}

	handler := slog.NewJSONHandler(w, opts)
	Logger = slog.New(handler).With(
		slog.String("service", service),
		slog.String("env", env),
	)

	slog.SetDefault(Logger)

	Logger.Info("logger initialized",
		slog.String("level", opts.Level.Level().String()),
	)
}

// ParseLevel maps a level name to a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

// Info logs an info level message with optional key-value pairs.
func Info(msg string, args ...any) {
	Logger.Info(msg, args...)
}

// Error logs an error level message with optional key-value pairs.
func Error(msg string, args ...any) {
	Logger.Error(msg, args...)
}

// Debug logs a debug level message with optional key-value pairs.
func Debug(msg string, args ...any) {
	Logger.Debug(msg, args...)
}

// Warn logs a warning level message with optional key-value pairs.
func Warn(msg string, args ...any) {
	Logger.Warn(msg, args...)
}
