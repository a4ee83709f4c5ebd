package logging

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testLoggerName    = "test-logger"
	testComponentName = "test-component"
	testServiceName   = "test-service"
)

func newFileLogger(t *testing.T, level Level) (*ZerologLogger, string) {
	t.Helper()
	logFile := filepath.Join(t.TempDir(), "test.log")
	logger, err := NewLoggerWithConfig(&LoggerConfig{
		Level:         level,
		FilePath:      logFile,
		LoggerName:    testLoggerName,
		ComponentName: testComponentName,
		ServiceName:   testServiceName,
	})
	require.NoError(t, err)
	t.Cleanup(func() { logger.Close() })
	return logger, logFile
}

func readLines(t *testing.T, path string) []map[string]interface{} {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if line == "" {
			continue
		}
		var m map[string]interface{}
		require.NoError(t, sonic.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":   DebugLevel,
		"INFO":    InfoLevel,
		"warning": WarnLevel,
		" warn ":  WarnLevel,
		"error":   ErrorLevel,
		"fatal":   FatalLevel,
		"panic":   PanicLevel,
		"bogus":   InfoLevel,
		"":        InfoLevel,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLoggerConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.FilePath = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), StderrPath)

	cfg = DefaultConfig()
	cfg.ServiceName = ""
	assert.Error(t, cfg.Validate())

	_, err = NewLogger(&LoggerConfig{FilePath: StderrPath})
	assert.Error(t, err)
}

func TestNewLoggerWithConfigFileError(t *testing.T) {
	_, err := NewLoggerWithConfig(&LoggerConfig{
		FilePath:    "/invalid/path/test.log",
		LoggerName:  testLoggerName,
		ServiceName: testServiceName,
	})
	assert.Error(t, err)
}

func TestNewLoggerStderr(t *testing.T) {
	logger, err := NewLogger(&LoggerConfig{
		Level:       InfoLevel,
		FilePath:    StderrPath,
		LoggerName:  testLoggerName,
		ServiceName: testServiceName,
	})
	require.NoError(t, err)
	assert.NoError(t, logger.Close())
	// closing twice must not close the process stderr
	assert.NoError(t, logger.Close())
}

func TestZerologLoggerWritesStampedFields(t *testing.T) {
	logger, logFile := newFileLogger(t, InfoLevel)

	logger.Debug("dropped")
	logger.Infow("todo created", "todoId", "abc")
	logger.WithError(errors.New("boom")).Error("failed")

	lines := readLines(t, logFile)
	require.Len(t, lines, 2)

	assert.Equal(t, "todo created", lines[0]["message"])
	assert.Equal(t, "abc", lines[0]["todoId"])
	assert.Equal(t, testServiceName, lines[0]["service"])
	assert.Equal(t, testComponentName, lines[0]["component"])
	assert.Equal(t, testLoggerName, lines[0]["logger"])

	assert.Equal(t, "error", lines[1]["level"])
	assert.Equal(t, "boom", lines[1]["error"])
}

func TestZerologLoggerSetLevel(t *testing.T) {
	logger, logFile := newFileLogger(t, ErrorLevel)
	assert.False(t, logger.IsLevelEnabled(InfoLevel))

	logger.Info("hidden")
	logger.SetLevel(DebugLevel)
	assert.Equal(t, DebugLevel, logger.GetLevel())
	logger.Debugf("visible %d", 1)

	lines := readLines(t, logFile)
	require.Len(t, lines, 1)
	assert.Equal(t, "visible 1", lines[0]["message"])
}

func TestZerologLoggerFormattedLevels(t *testing.T) {
	logger, logFile := newFileLogger(t, DebugLevel)

	logger.Debugf("d%d", 1)
	logger.Infof("i%d", 2)
	logger.Warnf("w%d", 3)
	logger.Errorf("e%d", 4)

	lines := readLines(t, logFile)
	require.Len(t, lines, 4)
	for i, want := range []struct{ level, msg string }{
		{"debug", "d1"}, {"info", "i2"}, {"warn", "w3"}, {"error", "e4"},
	} {
		assert.Equal(t, want.level, lines[i]["level"])
		assert.Equal(t, want.msg, lines[i]["message"])
	}
}

func TestZerologLoggerWithContextFields(t *testing.T) {
	logger, logFile := newFileLogger(t, DebugLevel)

	ctx := NewContext(context.Background(), Fields{"traceId": "t-1"})
	ctx = NewContext(ctx, Fields{"actor": "alice"})
	logger.WithContext(ctx).Info("with context")

	// the parent is not affected by the child's fields
	logger.Info("plain")

	lines := readLines(t, logFile)
	require.Len(t, lines, 2)
	assert.Equal(t, "t-1", lines[0]["traceId"])
	assert.Equal(t, "alice", lines[0]["actor"])
	assert.NotContains(t, lines[1], "traceId")
}

func TestFieldsFromContextEmpty(t *testing.T) {
	assert.Nil(t, FieldsFromContext(context.Background()))
}

func TestKeysAndValuesToFieldsOddLength(t *testing.T) {
	f := keysAndValuesToFields("a", 1, "b")
	assert.Equal(t, Fields{"a": 1}, f)
}
