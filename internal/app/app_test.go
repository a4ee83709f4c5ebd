package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"todoservice/internal/activity"
	"todoservice/internal/config"
	"todoservice/internal/todo"
	"todoservice/shared/datastore"
	"todoservice/shared/logging"
)

func localConfig(t *testing.T) *config.RawConfig {
	t.Helper()
	t.Setenv("SERVICE_HOME", t.TempDir())
	t.Setenv("ES_INDEX_PREFIX", "")
	t.Setenv("OPENSEARCH_INDEX_PREFIX", "")
	return &config.RawConfig{
		Server: config.RawServerConfig{
			Host:           "localhost",
			Port:           8080,
			AllowedOrigins: []string{"*"},
			ForwardHeaders: []string{"Authorization"},
		},
		Datastore: config.RawDatastoreConfig{Backend: datastore.BackendLocal, Index: "todos"},
		Events:    config.RawEventsConfig{Backend: "local"},
		Activity:  config.RawActivityConfig{Backend: "local"},
		Metrics:   config.RawMetricsConfig{Enabled: true},
	}
}

func newTestApp(t *testing.T, cfg *config.RawConfig) (*Application, *logging.MockLogger) {
	t.Helper()
	logger := logging.NewMockLogger()
	app, err := NewApplication(cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Shutdown() })
	return app, logger
}

func TestNewApplication(t *testing.T) {
	cfg := localConfig(t)
	app, logger := newTestApp(t, cfg)

	assert.Same(t, cfg, app.Config())
	assert.Same(t, logger, app.Logger())
	assert.NotNil(t, app.Context())
	assert.IsType(t, &datastore.LocalClient{}, app.Datastore())
	assert.NotNil(t, app.MetricsCollector())
	assert.NoError(t, app.Context().Err())
}

func TestNewApplicationRejectsUnknownBackends(t *testing.T) {
	logger := logging.NewMockLogger()

	cfg := localConfig(t)
	cfg.Datastore.Backend = "cassandra"
	_, err := NewApplication(cfg, logger)
	assert.ErrorContains(t, err, "datastore")

	cfg = localConfig(t)
	cfg.Events.Backend = "rabbitmq"
	_, err = NewApplication(cfg, logger)
	assert.ErrorContains(t, err, "event producer")

	cfg = localConfig(t)
	cfg.Activity.Backend = "redis"
	_, err = NewApplication(cfg, logger)
	assert.ErrorContains(t, err, "activity store")
}

func TestStartEnsuresIndex(t *testing.T) {
	app, logger := newTestApp(t, localConfig(t))

	require.NoError(t, app.Start())
	assert.True(t, logger.HasLogEntry(logging.InfoLevel, "Todo index ready"))

	exists, err := app.Datastore().IndexExists(app.Context(), todo.DefaultIndex)
	require.NoError(t, err)
	assert.True(t, exists)

	assert.Error(t, app.MetricsCollector().Start(), "collector already running")
}

func TestHandlerServesTodosAndRecordsActivity(t *testing.T) {
	app, _ := newTestApp(t, localConfig(t))
	require.NoError(t, app.Start())
	handler := app.Handler()

	req := httptest.NewRequest(http.MethodPost, "/api/custom_plugin/todos",
		strings.NewReader(`{"title":"Ship it","status":"planned","priority":"high","tags":["release"]}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var created todo.Todo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)
	assert.Equal(t, "Ship it", created.Title)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/custom_plugin/todos/"+created.ID+"/activity", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var entries []activity.Entry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, todo.EventCreated, entries[0].Type)
	assert.Equal(t, created.ID, entries[0].TodoID)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsDisabled(t *testing.T) {
	cfg := localConfig(t)
	cfg.Metrics.Enabled = false
	app, _ := newTestApp(t, cfg)

	assert.Nil(t, app.MetricsCollector())
	require.NoError(t, app.Start())

	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestShutdown(t *testing.T) {
	logger := logging.NewMockLogger()
	app, err := NewApplication(localConfig(t), logger)
	require.NoError(t, err)
	require.NoError(t, app.Start())

	require.NoError(t, app.Shutdown())
	assert.ErrorIs(t, app.Context().Err(), context.Canceled)
	assert.True(t, logger.HasLogEntry(logging.InfoLevel, "Application shutdown completed"))
	assert.False(t, logger.HasLogEntryContaining(logging.ErrorLevel, "Error"))
}
