package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

type contextFieldsKey struct{}

// NewContext returns a copy of ctx carrying fields that WithContext will attach
// to every entry. Fields already on ctx are kept unless overwritten.
func NewContext(ctx context.Context, fields Fields) context.Context {
	merged := make(Fields)
	for k, v := range FieldsFromContext(ctx) {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return context.WithValue(ctx, contextFieldsKey{}, merged)
}

// FieldsFromContext returns the fields stored by NewContext, or nil.
func FieldsFromContext(ctx context.Context) Fields {
	if ctx == nil {
		return nil
	}
	fields, _ := ctx.Value(contextFieldsKey{}).(Fields)
	return fields
}

// ZerologLogger implements Logger interface using zerolog
type ZerologLogger struct {
	mu       sync.RWMutex
	logger   zerolog.Logger
	level    Level
	fields   Fields
	context  context.Context
	errorKey string
	config   *LoggerConfig
	file     *os.File
}

// NewLoggerWithConfig creates a new ZerologLogger writing JSON lines to the configured file
func NewLoggerWithConfig(config *LoggerConfig) (*ZerologLogger, error) {
	var (
		out  io.Writer
		file *os.File
	)
	if config.FilePath == StderrPath {
		out = os.Stderr
	} else {
		f, err := os.OpenFile(config.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", config.FilePath, err)
		}
		out, file = f, f
	}

	// global level stays at the lowest so the per-instance level always takes effect
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	zctx := zerolog.New(out).With().
		Timestamp().
		Str("service", config.ServiceName).
		Str("logger", config.LoggerName)
	if config.ComponentName != "" {
		zctx = zctx.Str("component", config.ComponentName)
	}
	logger := zctx.Logger().Level(levelToZerolog(config.Level))

	return &ZerologLogger{
		logger:   logger,
		level:    config.Level,
		fields:   make(Fields),
		errorKey: "error",
		config:   config,
		file:     file,
	}, nil
}

// Close closes the log file
func (z *ZerologLogger) Close() error {
	z.mu.Lock()
	defer z.mu.Unlock()

	if z.file != nil {
		err := z.file.Close()
		z.file = nil
		return err
	}
	return nil
}

// SetLevel sets the logging level
func (z *ZerologLogger) SetLevel(level Level) {
	z.mu.Lock()
	defer z.mu.Unlock()
	z.level = level
	z.logger = z.logger.Level(levelToZerolog(level))
}

// GetLevel returns the current logging level
func (z *ZerologLogger) GetLevel() Level {
	z.mu.RLock()
	defer z.mu.RUnlock()
	return z.level
}

// IsLevelEnabled checks if the given level is enabled
func (z *ZerologLogger) IsLevelEnabled(level Level) bool {
	z.mu.RLock()
	defer z.mu.RUnlock()
	return level >= z.level
}

func levelToZerolog(level Level) zerolog.Level {
	switch level {
	case DebugLevel:
		return zerolog.DebugLevel
	case InfoLevel:
		return zerolog.InfoLevel
	case WarnLevel:
		return zerolog.WarnLevel
	case ErrorLevel:
		return zerolog.ErrorLevel
	case FatalLevel:
		return zerolog.FatalLevel
	case PanicLevel:
		return zerolog.PanicLevel
	default:
		return zerolog.InfoLevel
	}
}

// getEvent creates a zerolog event carrying the logger fields
func (z *ZerologLogger) getEvent(level Level) *zerolog.Event {
	var event *zerolog.Event

	switch level {
	case DebugLevel:
		event = z.logger.Debug()
	case InfoLevel:
		event = z.logger.Info()
	case WarnLevel:
		event = z.logger.Warn()
	case ErrorLevel:
		event = z.logger.Error()
	case FatalLevel:
		event = z.logger.Fatal()
	case PanicLevel:
		event = z.logger.Panic()
	default:
		event = z.logger.Info()
	}

	z.mu.RLock()
	for key, value := range z.fields {
		event = event.Interface(key, value)
	}
	z.mu.RUnlock()

	return event
}

func (z *ZerologLogger) Debug(msg string) { z.Log(DebugLevel, msg) }
func (z *ZerologLogger) Info(msg string)  { z.Log(InfoLevel, msg) }
func (z *ZerologLogger) Warn(msg string)  { z.Log(WarnLevel, msg) }
func (z *ZerologLogger) Error(msg string) { z.Log(ErrorLevel, msg) }
func (z *ZerologLogger) Fatal(msg string) { z.getEvent(FatalLevel).Msg(msg) }
func (z *ZerologLogger) Panic(msg string) { z.getEvent(PanicLevel).Msg(msg) }

func (z *ZerologLogger) Debugf(format string, args ...interface{}) {
	z.Logf(DebugLevel, format, args...)
}
func (z *ZerologLogger) Infof(format string, args ...interface{}) {
	z.Logf(InfoLevel, format, args...)
}
func (z *ZerologLogger) Warnf(format string, args ...interface{}) {
	z.Logf(WarnLevel, format, args...)
}
func (z *ZerologLogger) Errorf(format string, args ...interface{}) {
	z.Logf(ErrorLevel, format, args...)
}
func (z *ZerologLogger) Fatalf(format string, args ...interface{}) {
	z.getEvent(FatalLevel).Msgf(format, args...)
}
func (z *ZerologLogger) Panicf(format string, args ...interface{}) {
	z.getEvent(PanicLevel).Msgf(format, args...)
}

func (z *ZerologLogger) Debugw(msg string, keysAndValues ...interface{}) {
	z.Logw(DebugLevel, msg, keysAndValues...)
}
func (z *ZerologLogger) Infow(msg string, keysAndValues ...interface{}) {
	z.Logw(InfoLevel, msg, keysAndValues...)
}
func (z *ZerologLogger) Warnw(msg string, keysAndValues ...interface{}) {
	z.Logw(WarnLevel, msg, keysAndValues...)
}
func (z *ZerologLogger) Errorw(msg string, keysAndValues ...interface{}) {
	z.Logw(ErrorLevel, msg, keysAndValues...)
}
func (z *ZerologLogger) Fatalw(msg string, keysAndValues ...interface{}) {
	z.WithFields(keysAndValuesToFields(keysAndValues...)).Fatal(msg)
}
func (z *ZerologLogger) Panicw(msg string, keysAndValues ...interface{}) {
	z.WithFields(keysAndValuesToFields(keysAndValues...)).Panic(msg)
}

// WithFields returns a child logger with the extra fields
func (z *ZerologLogger) WithFields(fields Fields) Logger {
	newLogger := z.Clone().(*ZerologLogger)
	newLogger.mu.Lock()
	for k, v := range fields {
		newLogger.fields[k] = v
	}
	newLogger.mu.Unlock()
	return newLogger
}

func (z *ZerologLogger) WithField(key string, value interface{}) Logger {
	return z.WithFields(Fields{key: value})
}

func (z *ZerologLogger) WithError(err error) Logger {
	if err == nil {
		return z
	}
	return z.WithField(z.errorKey, err.Error())
}

// WithContext returns a child logger bound to ctx, carrying any fields stored with NewContext
func (z *ZerologLogger) WithContext(ctx context.Context) Logger {
	newLogger := z.WithFields(FieldsFromContext(ctx)).(*ZerologLogger)
	newLogger.context = ctx
	newLogger.logger = newLogger.logger.With().Ctx(ctx).Logger()
	return newLogger
}

func (z *ZerologLogger) Log(level Level, msg string) {
	if !z.IsLevelEnabled(level) {
		return
	}
	z.getEvent(level).Msg(msg)
}

func (z *ZerologLogger) Logf(level Level, format string, args ...interface{}) {
	if !z.IsLevelEnabled(level) {
		return
	}
	z.getEvent(level).Msgf(format, args...)
}

func (z *ZerologLogger) Logw(level Level, msg string, keysAndValues ...interface{}) {
	if !z.IsLevelEnabled(level) {
		return
	}
	z.WithFields(keysAndValuesToFields(keysAndValues...)).Log(level, msg)
}

// Clone creates a copy of the logger sharing the same output
func (z *ZerologLogger) Clone() Logger {
	z.mu.RLock()
	defer z.mu.RUnlock()

	newFields := make(Fields)
	for k, v := range z.fields {
		newFields[k] = v
	}

	return &ZerologLogger{
		logger:   z.logger,
		level:    z.level,
		fields:   newFields,
		context:  z.context,
		errorKey: z.errorKey,
		config:   z.config,
		file:     z.file,
	}
}
