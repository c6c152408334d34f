// Package log provides the structured logging interface used across pricecast.
//
// The interface is slog-compatible so the backend can be swapped, and the
// default backend is zerolog. Pipeline stages and estimators log through
// named child loggers carrying the standard attribute keys from attributes.go:
//
//	logger := log.GetLoggerWithName("pipeline").With(
//	    log.RunIDKey, runID,
//	)
//	logger.Info("Finished stage",
//	    log.StageKey, "normalize",
//	    log.SamplesKey, 1482535,
//	    log.DurationMsKey, 812,
//	)
package log

import (
	"context"
)

// Logger defines a structured logging interface compatible with Go's log/slog.
//
// Fields are alternating key/value pairs. When the first field passed to
// Error is an error value, it is logged under the "error" key and its stack
// trace (if any) is attached.
type Logger interface {
	Debug(msg string, fields ...any)
	Info(msg string, fields ...any)
	Warn(msg string, fields ...any)
	Error(msg string, fields ...any)

	// With returns a new Logger with the given fields pre-populated.
	With(fields ...any) Logger

	// Enabled reports whether the logger emits log records at the given level.
	// Use it to skip building expensive fields.
	Enabled(ctx context.Context, level Level) bool
}

// Level represents a logging level, compatible with slog.Level.
type Level int

// Standard logging levels, values are compatible with slog.Level.
const (
	LevelDebug Level = -4
	LevelInfo  Level = 0
	LevelWarn  Level = 4
	LevelError Level = 8
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a textual level ("debug", "info", "warn", "error").
func ParseLevel(s string) (Level, bool) {
	switch s {
	case "debug", "DEBUG":
		return LevelDebug, true
	case "info", "INFO", "":
		return LevelInfo, true
	case "warn", "warning", "WARN":
		return LevelWarn, true
	case "error", "ERROR":
		return LevelError, true
	}
	return LevelInfo, false
}

// LoggerProvider creates and configures loggers. It allows tests to swap
// the global backend with SetProvider.
type LoggerProvider interface {
	// GetLogger returns the default logger instance.
	GetLogger() Logger

	// GetLoggerWithName returns a logger with a specific name/component identifier.
	GetLoggerWithName(name string) Logger

	// SetLevel sets the minimum log level for all loggers created by this provider.
	SetLevel(level Level)
}
