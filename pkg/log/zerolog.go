package log

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	perrors "github.com/YuminosukeSato/pricecast/pkg/errors"
)

const (
	errorFieldKey      = "error"
	stacktraceFieldKey = "stacktrace"
	componentFieldKey  = "component"
)

var (
	providerMu sync.RWMutex
	provider   LoggerProvider = NewZerologProvider(os.Stderr, LevelInfo, false)
)

// GetLogger returns the default logger of the global provider.
func GetLogger() Logger {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return provider.GetLogger()
}

// GetLoggerWithName returns a named logger of the global provider.
func GetLoggerWithName(name string) Logger {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return provider.GetLoggerWithName(name)
}

// SetLevel changes the minimum level of the global provider.
func SetLevel(level Level) {
	providerMu.RLock()
	defer providerMu.RUnlock()
	provider.SetLevel(level)
}

// SetProvider replaces the global provider and returns the previous one.
func SetProvider(p LoggerProvider) LoggerProvider {
	providerMu.Lock()
	defer providerMu.Unlock()
	prev := provider
	provider = p
	return prev
}

// Setup installs a zerolog provider writing to w. format is "json" or
// "console". Library warnings (convergence, empty vocabulary) are routed
// through the same backend.
func Setup(level string, format string, w io.Writer) error {
	lvl, ok := ParseLevel(level)
	if !ok {
		return perrors.NewValidationError("logging.level", "unknown log level", level)
	}
	if w == nil {
		w = os.Stderr
	}
	var console bool
	switch format {
	case "", "json":
	case "console":
		console = true
	default:
		return perrors.NewValidationError("logging.format", "must be json or console", format)
	}

	p := NewZerologProvider(w, lvl, console)
	SetProvider(p)

	warnLogger := p.GetLoggerWithName("warnings")
	perrors.SetZerologWarnFunc(func(warning error) {
		warnLogger.Warn(warning.Error(), "warning", warning)
	})
	return nil
}

// ZerologProvider is the default LoggerProvider backed by zerolog.
type ZerologProvider struct {
	base  zerolog.Logger
	level *levelHolder
}

type levelHolder struct {
	mu    sync.RWMutex
	level Level
}

func (h *levelHolder) get() Level {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.level
}

func (h *levelHolder) set(l Level) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.level = l
}

// NewZerologProvider creates a provider writing JSON lines (or a human
// readable console format) to w.
func NewZerologProvider(w io.Writer, level Level, console bool) *ZerologProvider {
	out := w
	if console {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	base := zerolog.New(out).With().Timestamp().Logger()
	return &ZerologProvider{
		base:  base,
		level: &levelHolder{level: level},
	}
}

// GetLogger implements LoggerProvider.
func (p *ZerologProvider) GetLogger() Logger {
	return &zerologLogger{logger: p.base, level: p.level}
}

// GetLoggerWithName implements LoggerProvider.
func (p *ZerologProvider) GetLoggerWithName(name string) Logger {
	return &zerologLogger{
		logger: p.base.With().Str(componentFieldKey, name).Logger(),
		level:  p.level,
	}
}

// SetLevel implements LoggerProvider.
func (p *ZerologProvider) SetLevel(level Level) {
	p.level.set(level)
}

type zerologLogger struct {
	logger zerolog.Logger
	level  *levelHolder
}

func (l *zerologLogger) Debug(msg string, fields ...any) {
	l.emit(LevelDebug, msg, fields)
}

func (l *zerologLogger) Info(msg string, fields ...any) {
	l.emit(LevelInfo, msg, fields)
}

func (l *zerologLogger) Warn(msg string, fields ...any) {
	l.emit(LevelWarn, msg, fields)
}

func (l *zerologLogger) Error(msg string, fields ...any) {
	l.emit(LevelError, msg, fields)
}

func (l *zerologLogger) With(fields ...any) Logger {
	ctx := l.logger.With()
	for i := 0; i+1 < len(fields); i += 2 {
		ctx = ctx.Interface(fmt.Sprint(fields[i]), fieldValue(fields[i+1]))
	}
	return &zerologLogger{logger: ctx.Logger(), level: l.level}
}

func (l *zerologLogger) Enabled(_ context.Context, level Level) bool {
	return level >= l.level.get()
}

func (l *zerologLogger) emit(level Level, msg string, fields []any) {
	if level < l.level.get() {
		return
	}
	var event *zerolog.Event
	switch level {
	case LevelDebug:
		event = l.logger.Debug()
	case LevelInfo:
		event = l.logger.Info()
	case LevelWarn:
		event = l.logger.Warn()
	default:
		event = l.logger.Error()
	}

	if len(fields) > 0 {
		if err, ok := fields[0].(error); ok {
			event = event.AnErr(errorFieldKey, err)
			if st := extractStacktrace(err); st != "" {
				event = event.Str(stacktraceFieldKey, st)
			}
			fields = fields[1:]
		}
	}

	for i := 0; i+1 < len(fields); i += 2 {
		key := fmt.Sprint(fields[i])
		switch v := fields[i+1].(type) {
		case zerolog.LogObjectMarshaler:
			event = event.Object(key, v)
		case error:
			event = event.AnErr(key, v)
		case string:
			event = event.Str(key, v)
		case int:
			event = event.Int(key, v)
		case int64:
			event = event.Int64(key, v)
		case float64:
			event = event.Float64(key, v)
		case bool:
			event = event.Bool(key, v)
		case time.Duration:
			event = event.Dur(key, v)
		default:
			event = event.Interface(key, v)
		}
	}
	event.Msg(msg)
}

func fieldValue(v any) any {
	if err, ok := v.(error); ok {
		return err.Error()
	}
	return v
}

// extractStacktrace returns the first safe detail recorded by
// cockroachdb/errors, which holds the stack of WithStack-wrapped errors.
func extractStacktrace(err error) string {
	safeDetails := errors.GetSafeDetails(err).SafeDetails
	if len(safeDetails) > 0 {
		return safeDetails[0]
	}
	return ""
}
