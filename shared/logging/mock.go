package logging

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// LogEntry is one captured call on a MockLogger
type LogEntry struct {
	Level   Level
	Message string
	Fields  Fields
}

// mockSink is shared by a MockLogger and every child derived from it, so
// entries written through WithField/WithContext are visible to the test.
type mockSink struct {
	mu      sync.RWMutex
	entries []LogEntry
}

// MockLogger implements the Logger interface and captures entries for verification
type MockLogger struct {
	mu     sync.RWMutex
	level  Level
	fields Fields
	sink   *mockSink

	// ShouldPanic makes Panic* calls panic after capturing the entry
	ShouldPanic bool
}

// NewMockLogger creates a mock logger at debug level
func NewMockLogger() *MockLogger {
	return &MockLogger{
		level:  DebugLevel,
		fields: make(Fields),
		sink:   &mockSink{},
	}
}

func (m *MockLogger) SetLevel(level Level) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.level = level
}

func (m *MockLogger) GetLevel() Level {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.level
}

func (m *MockLogger) IsLevelEnabled(level Level) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return level >= m.level
}

func (m *MockLogger) Debug(msg string) { m.log(DebugLevel, msg, nil) }
func (m *MockLogger) Info(msg string)  { m.log(InfoLevel, msg, nil) }
func (m *MockLogger) Warn(msg string)  { m.log(WarnLevel, msg, nil) }
func (m *MockLogger) Error(msg string) { m.log(ErrorLevel, msg, nil) }

// Fatal is captured but never exits the test binary
func (m *MockLogger) Fatal(msg string) { m.log(FatalLevel, msg, nil) }

func (m *MockLogger) Panic(msg string) {
	m.log(PanicLevel, msg, nil)
	if m.ShouldPanic {
		panic(msg)
	}
}

func (m *MockLogger) Debugf(format string, args ...interface{}) {
	m.log(DebugLevel, fmt.Sprintf(format, args...), nil)
}
func (m *MockLogger) Infof(format string, args ...interface{}) {
	m.log(InfoLevel, fmt.Sprintf(format, args...), nil)
}
func (m *MockLogger) Warnf(format string, args ...interface{}) {
	m.log(WarnLevel, fmt.Sprintf(format, args...), nil)
}
func (m *MockLogger) Errorf(format string, args ...interface{}) {
	m.log(ErrorLevel, fmt.Sprintf(format, args...), nil)
}
func (m *MockLogger) Fatalf(format string, args ...interface{}) {
	m.Fatal(fmt.Sprintf(format, args...))
}
func (m *MockLogger) Panicf(format string, args ...interface{}) {
	m.Panic(fmt.Sprintf(format, args...))
}

func (m *MockLogger) Debugw(msg string, keysAndValues ...interface{}) {
	m.log(DebugLevel, msg, keysAndValuesToFields(keysAndValues...))
}
func (m *MockLogger) Infow(msg string, keysAndValues ...interface{}) {
	m.log(InfoLevel, msg, keysAndValuesToFields(keysAndValues...))
}
func (m *MockLogger) Warnw(msg string, keysAndValues ...interface{}) {
	m.log(WarnLevel, msg, keysAndValuesToFields(keysAndValues...))
}
func (m *MockLogger) Errorw(msg string, keysAndValues ...interface{}) {
	m.log(ErrorLevel, msg, keysAndValuesToFields(keysAndValues...))
}
func (m *MockLogger) Fatalw(msg string, keysAndValues ...interface{}) {
	m.log(FatalLevel, msg, keysAndValuesToFields(keysAndValues...))
}
func (m *MockLogger) Panicw(msg string, keysAndValues ...interface{}) {
	m.log(PanicLevel, msg, keysAndValuesToFields(keysAndValues...))
	if m.ShouldPanic {
		panic(msg)
	}
}

func (m *MockLogger) WithFields(fields Fields) Logger {
	child := m.Clone().(*MockLogger)
	for k, v := range fields {
		child.fields[k] = v
	}
	return child
}

func (m *MockLogger) WithField(key string, value interface{}) Logger {
	return m.WithFields(Fields{key: value})
}

func (m *MockLogger) WithError(err error) Logger {
	if err == nil {
		return m
	}
	return m.WithFields(Fields{"error": err.Error()})
}

// WithContext attaches the fields stored on ctx by NewContext
func (m *MockLogger) WithContext(ctx context.Context) Logger {
	return m.WithFields(FieldsFromContext(ctx))
}

func (m *MockLogger) Log(level Level, msg string) { m.log(level, msg, nil) }

func (m *MockLogger) Logf(level Level, format string, args ...interface{}) {
	m.log(level, fmt.Sprintf(format, args...), nil)
}

func (m *MockLogger) Logw(level Level, msg string, keysAndValues ...interface{}) {
	m.log(level, msg, keysAndValuesToFields(keysAndValues...))
}

// Clone returns a child sharing the capture sink
func (m *MockLogger) Clone() Logger {
	m.mu.RLock()
	defer m.mu.RUnlock()

	fields := make(Fields, len(m.fields))
	for k, v := range m.fields {
		fields[k] = v
	}
	return &MockLogger{
		level:       m.level,
		fields:      fields,
		sink:        m.sink,
		ShouldPanic: m.ShouldPanic,
	}
}

func (m *MockLogger) Close() error { return nil }

func (m *MockLogger) log(level Level, msg string, extra Fields) {
	if !m.IsLevelEnabled(level) {
		return
	}

	m.mu.RLock()
	all := make(Fields, len(m.fields)+len(extra))
	for k, v := range m.fields {
		all[k] = v
	}
	m.mu.RUnlock()
	for k, v := range extra {
		all[k] = v
	}

	m.sink.mu.Lock()
	m.sink.entries = append(m.sink.entries, LogEntry{Level: level, Message: msg, Fields: all})
	m.sink.mu.Unlock()
}

// GetLogEntries returns a copy of every captured entry
func (m *MockLogger) GetLogEntries() []LogEntry {
	m.sink.mu.RLock()
	defer m.sink.mu.RUnlock()
	entries := make([]LogEntry, len(m.sink.entries))
	copy(entries, m.sink.entries)
	return entries
}

func (m *MockLogger) GetLogEntriesByLevel(level Level) []LogEntry {
	var out []LogEntry
	for _, e := range m.GetLogEntries() {
		if e.Level == level {
			out = append(out, e)
		}
	}
	return out
}

// HasLogEntry reports an exact message match at level
func (m *MockLogger) HasLogEntry(level Level, message string) bool {
	for _, e := range m.GetLogEntriesByLevel(level) {
		if e.Message == message {
			return true
		}
	}
	return false
}

func (m *MockLogger) HasLogEntryContaining(level Level, text string) bool {
	for _, e := range m.GetLogEntriesByLevel(level) {
		if strings.Contains(e.Message, text) {
			return true
		}
	}
	return false
}

func (m *MockLogger) HasLogEntryWithField(level Level, key string, value interface{}) bool {
	for _, e := range m.GetLogEntriesByLevel(level) {
		if v, ok := e.Fields[key]; ok && v == value {
			return true
		}
	}
	return false
}

func (m *MockLogger) ClearLogEntries() {
	m.sink.mu.Lock()
	m.sink.entries = nil
	m.sink.mu.Unlock()
}

func (m *MockLogger) GetLogCount() int {
	m.sink.mu.RLock()
	defer m.sink.mu.RUnlock()
	return len(m.sink.entries)
}
