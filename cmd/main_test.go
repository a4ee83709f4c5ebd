package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"todoservice/internal/app"
	"todoservice/internal/config"
	"todoservice/shared/logging"
)

const (
	healthEndpoint = "/health"
	todosEndpoint  = "/api/custom_plugin/todos"
)

func writeServiceHome(t *testing.T, configYAML string) string {
	t.Helper()
	home := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(home, "conf"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(home, "conf", "config.yaml"), []byte(configYAML), 0644))
	t.Setenv("SERVICE_HOME", home)
	for _, key := range []string{"SERVER_PORT", "DATASTORE_BACKEND", "EVENTS_BACKEND", "ACTIVITY_BACKEND", "LOG_FILE_NAME", "ES_INDEX_PREFIX", "OPENSEARCH_INDEX_PREFIX"} {
		t.Setenv(key, "")
	}
	return home
}

const localYAML = `
server:
  host: 127.0.0.1
  port: 18080
  readTimeout: 3
  writeTimeout: 4
logging:
  level: debug
  fileName: stderr
datastore:
  backend: local
events:
  backend: local
activity:
  backend: local
metrics:
  enabled: false
`

func TestLoadConfigFromServiceHome(t *testing.T) {
	writeServiceHome(t, localYAML)

	cfg := loadConfig()
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 18080, cfg.Server.Port)
	assert.Equal(t, "local", cfg.Datastore.Backend)
	assert.False(t, cfg.Metrics.Enabled)
}

func TestNewServer(t *testing.T) {
	cfg := &config.RawConfig{Server: config.RawServerConfig{Host: "0.0.0.0", Port: 9000, ReadTimeout: 3, WriteTimeout: 4}}
	srv := newServer(cfg, http.NotFoundHandler())

	assert.Equal(t, "0.0.0.0:9000", srv.Addr)
	assert.Equal(t, 3*time.Second, srv.ReadTimeout)
	assert.Equal(t, 4*time.Second, srv.WriteTimeout)
}

func TestServedRoutes(t *testing.T) {
	writeServiceHome(t, localYAML)
	cfg := loadConfig()

	application, err := app.NewApplication(cfg, logging.NewMockLogger())
	require.NoError(t, err)
	require.NoError(t, application.Start())
	defer application.Shutdown()

	srv := httptest.NewServer(newServer(cfg, application.Handler()).Handler)
	defer srv.Close()

	testCases := []struct {
		method         string
		path           string
		body           string
		expectedStatus int
	}{
		{http.MethodGet, healthEndpoint, "", http.StatusOK},
		{http.MethodGet, todosEndpoint, "", http.StatusOK},
		{http.MethodPost, todosEndpoint, `{"title":"t","status":"planned","priority":"low"}`, http.StatusOK},
		{http.MethodPost, todosEndpoint, `{"title":"t"}`, http.StatusBadRequest},
		{http.MethodGet, todosEndpoint + "/missing", "", http.StatusNotFound},
		{http.MethodGet, "/metrics", "", http.StatusNotFound},
	}

	for _, tc := range testCases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			req, err := http.NewRequest(tc.method, srv.URL+tc.path, strings.NewReader(tc.body))
			require.NoError(t, err)
			req.Header.Set("Content-Type", "application/json")
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tc.expectedStatus, resp.StatusCode)
		})
	}
}

func TestShutdownClosesApplication(t *testing.T) {
	writeServiceHome(t, localYAML)
	cfg := loadConfig()
	logger := logging.NewMockLogger()

	application, err := app.NewApplication(cfg, logger)
	require.NoError(t, err)
	require.NoError(t, application.Start())

	shutdown(newServer(cfg, application.Handler()), application)

	assert.ErrorIs(t, application.Context().Err(), context.Canceled)
	assert.False(t, logger.HasLogEntryContaining(logging.ErrorLevel, "shutdown"))
}

func TestInitLoggerSettingsUsesLogDir(t *testing.T) {
	logDir := filepath.Join(t.TempDir(), "logs")
	t.Setenv("SERVICE_LOG_DIR", logDir)

	cfg := &config.RawConfig{Logging: config.RawLoggingConfig{Level: "info", FileName: "todo.log", LoggerName: "main", ServiceName: "todo-service"}}
	logger := initLoggerSettings(cfg)
	defer logger.Close()

	assert.Equal(t, filepath.Join(logDir, "todo.log"), cfg.Logging.FileName)
	assert.DirExists(t, logDir)

	cfg.Logging.FileName = logging.StderrPath
	stderrLogger := initLoggerSettings(cfg)
	defer stderrLogger.Close()
	assert.Equal(t, logging.StderrPath, cfg.Logging.FileName)
}

func TestLoadEnvFile(t *testing.T) {
	if isRunningInContainer() {
		t.Skip("container detection short-circuits .env loading")
	}
	home := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(home, ".env"), []byte("TODO_DOTENV_LOADED=loaded\n"), 0644))
	t.Setenv("SERVICE_HOME", home)
	t.Setenv("TODO_DOTENV_LOADED", "")
	require.NoError(t, os.Unsetenv("TODO_DOTENV_LOADED"))

	loadEnvFile()

	assert.Equal(t, "loaded", os.Getenv("TODO_DOTENV_LOADED"))
}

func TestIsRunningInContainer(t *testing.T) {
	t.Setenv("KUBERNETES_SERVICE_HOST", "10.0.0.1")
	assert.True(t, isRunningInContainer())

	t.Setenv("KUBERNETES_SERVICE_HOST", "")
	t.Setenv("CONTAINER", "true")
	assert.True(t, isRunningInContainer())
}
