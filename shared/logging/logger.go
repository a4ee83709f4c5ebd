package logging

import (
	"context"
	"fmt"
	"strings"
)

// Level represents the logging level
type Level int

const (
	// DebugLevel logs are typically voluminous, and are usually disabled in production
	DebugLevel Level = iota
	// InfoLevel is the default logging priority
	InfoLevel
	// WarnLevel logs are more important than Info, but don't need individual human review
	WarnLevel
	// ErrorLevel logs are high-priority. If the service is running smoothly, it shouldn't generate any error-level logs
	ErrorLevel
	// FatalLevel logs a message, then calls os.Exit(1)
	FatalLevel
	// PanicLevel logs a message, then panics
	PanicLevel
)

// StderrPath selects the process stderr instead of a log file.
const StderrPath = "stderr"

// String returns the string representation of the log level
func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	case FatalLevel:
		return "FATAL"
	case PanicLevel:
		return "PANIC"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a config string to a Level. Unknown values map to InfoLevel.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DebugLevel
	case "info":
		return InfoLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	case "fatal":
		return FatalLevel
	case "panic":
		return PanicLevel
	default:
		return InfoLevel
	}
}

// Fields represents structured logging fields
type Fields map[string]interface{}

// Logger defines the interface for structured logging
type Logger interface {
	// Level control
	SetLevel(level Level)
	GetLevel() Level
	IsLevelEnabled(level Level) bool

	// Basic logging methods
	Debug(msg string)
	Info(msg string)
	Warn(msg string)
	Error(msg string)
	Fatal(msg string)
	Panic(msg string)

	// Formatted logging methods (printf-style)
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Fatalf(format string, args ...interface{})
	Panicf(format string, args ...interface{})

	// Key/value logging methods
	Debugw(msg string, keysAndValues ...interface{})
	Infow(msg string, keysAndValues ...interface{})
	Warnw(msg string, keysAndValues ...interface{})
	Errorw(msg string, keysAndValues ...interface{})
	Fatalw(msg string, keysAndValues ...interface{})
	Panicw(msg string, keysAndValues ...interface{})

	// Structured logging with fields
	WithFields(fields Fields) Logger
	WithField(key string, value interface{}) Logger
	WithError(err error) Logger

	// Context-aware logging
	WithContext(ctx context.Context) Logger

	// Log at specific level
	Log(level Level, msg string)
	Logf(level Level, format string, args ...interface{})
	Logw(level Level, msg string, keysAndValues ...interface{})

	// Clone creates a copy of the logger
	Clone() Logger

	// Close closes the logger and releases any resources
	Close() error
}

// keysAndValuesToFields pairs up a flat key/value list. A trailing key without value is dropped.
func keysAndValuesToFields(keysAndValues ...interface{}) Fields {
	fields := make(Fields)
	for i := 0; i < len(keysAndValues); i += 2 {
		if i+1 < len(keysAndValues) {
			key := fmt.Sprintf("%v", keysAndValues[i])
			fields[key] = keysAndValues[i+1]
		}
	}
	return fields
}

// LoggerConfig holds configuration for creating loggers
type LoggerConfig struct {
	Level         Level  // Log level (Debug, Info, Warn, Error, Fatal, Panic)
	FilePath      string // Complete path of the log file, or StderrPath
	LoggerName    string // Name identifier for the logger instance
	ComponentName string // Component/module name for structured logging
	ServiceName   string // Service name for structured logging
}

// DefaultConfig returns the default logger configuration
func DefaultConfig() *LoggerConfig {
	return &LoggerConfig{
		Level:         InfoLevel,
		FilePath:      "/tmp/todo-service.log",
		LoggerName:    "default",
		ComponentName: "application",
		ServiceName:   "todo-service",
	}
}

// Validate validates the logger configuration
func (c *LoggerConfig) Validate() error {
	if c.FilePath == "" {
		return fmt.Errorf("file path is required, use %q to log to stderr", StderrPath)
	}
	if c.LoggerName == "" {
		return fmt.Errorf("logger name is required")
	}
	if c.ServiceName == "" {
		return fmt.Errorf("service name is required")
	}
	return nil
}

// NewLogger creates a new logger with the given configuration.
// The zerolog implementation is the only backend.
func NewLogger(config *LoggerConfig) (Logger, error) {
	if config == nil {
		config = DefaultConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid logger configuration: %w", err)
	}

	logger, err := NewLoggerWithConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return logger, nil
}
