package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"todoservice/shared/logging"
)

func newTestCollector() *MetricsCollector {
	return NewMetricsCollector(logging.NewMockLogger(), MetricsConfig{})
}

func requestEvent(method, route, status string, d time.Duration) *MetricEvent {
	return &MetricEvent{
		Type:      MetricTypeTiming,
		Name:      EventRequestCompleted,
		Value:     float64(d.Milliseconds()),
		Labels:    map[string]string{"method": method, "route": route, "status": status},
		Timestamp: time.Now(),
		Duration:  d,
	}
}

func TestNewMetricsCollectorDefaults(t *testing.T) {
	mc := newTestCollector()
	def := DefaultMetricsConfig()
	assert.Equal(t, def.MaxEvents, mc.maxEvents)
	assert.Equal(t, def.RetentionPeriod, mc.retentionPeriod)
	assert.Equal(t, def.ChannelBufferSize, cap(mc.metricsChan))
}

func TestRouteAggregation(t *testing.T) {
	mc := newTestCollector()
	mc.processMetricEvent(requestEvent("GET", "/todos/{id}", "200", 10*time.Millisecond))
	mc.processMetricEvent(requestEvent("GET", "/todos/{id}", "404", 30*time.Millisecond))
	mc.processMetricEvent(requestEvent("POST", "/todos", "500", 20*time.Millisecond))
	mc.processMetricEvent(&MetricEvent{Type: MetricTypeCounter, Name: EventBackendError, Value: 1, Timestamp: time.Now()})
	mc.processMetricEvent(&MetricEvent{Type: MetricTypeCounter, Name: EventTodoMutated, Value: 1,
		Labels: map[string]string{"type": "created"}, Timestamp: time.Now()})

	m := mc.GetMetrics()
	assert.Equal(t, int64(3), m.TotalRequests)
	assert.Equal(t, int64(1), m.ClientErrors)
	assert.Equal(t, int64(1), m.ServerErrors)
	assert.Equal(t, int64(1), m.BackendErrors)
	assert.Equal(t, int64(1), m.Mutations["created"])
	assert.Equal(t, 20*time.Millisecond, m.AverageLatency)

	get := m.Routes["GET /todos/{id}"]
	require.NotNil(t, get)
	assert.Equal(t, int64(2), get.Count)
	assert.Equal(t, int64(1), get.ClientErrors)
	assert.Equal(t, 10*time.Millisecond, get.MinLatency)
	assert.Equal(t, 30*time.Millisecond, get.MaxLatency)
	assert.Equal(t, 20*time.Millisecond, get.AverageLatency)

	// the copy is detached from the collector
	get.Count = 99
	assert.Equal(t, int64(2), mc.GetMetrics().Routes["GET /todos/{id}"].Count)
}

func TestSummariesKeyedByLabels(t *testing.T) {
	mc := newTestCollector()
	mc.processMetricEvent(requestEvent("GET", "/todos", "200", 4*time.Millisecond))
	mc.processMetricEvent(requestEvent("GET", "/todos", "200", 8*time.Millisecond))
	mc.processMetricEvent(requestEvent("GET", "/todos", "500", 2*time.Millisecond))

	summaries := mc.GetSummaries()
	require.Len(t, summaries, 2)
	ok := summaries["timing:request.completed:method=GET:route=/todos:status=200"]
	require.NotNil(t, ok)
	assert.Equal(t, int64(2), ok.Count)
	assert.Equal(t, float64(4), ok.Min)
	assert.Equal(t, float64(8), ok.Max)
	assert.Equal(t, float64(6), ok.Avg)
}

func TestMaxEventsAndRecentEvents(t *testing.T) {
	mc := NewMetricsCollector(logging.NewMockLogger(), MetricsConfig{MaxEvents: 2})
	for _, status := range []string{"200", "201", "204"} {
		mc.processMetricEvent(requestEvent("GET", "/todos", status, time.Millisecond))
	}
	assert.Equal(t, 2, mc.EventCount())

	recent := mc.GetRecentEvents(1)
	require.Len(t, recent, 1)
	assert.Equal(t, "204", recent[0].Labels["status"])
	assert.Len(t, mc.GetRecentEvents(0), 2)
}

func TestCleanupOldMetrics(t *testing.T) {
	logger := logging.NewMockLogger()
	mc := NewMetricsCollector(logger, MetricsConfig{RetentionPeriod: time.Minute})
	old := requestEvent("GET", "/todos", "200", time.Millisecond)
	old.Timestamp = time.Now().Add(-time.Hour)
	mc.processMetricEvent(old)
	mc.processMetricEvent(requestEvent("GET", "/health", "200", time.Millisecond))

	mc.cleanupOldMetrics(time.Now())
	assert.Equal(t, 1, mc.EventCount())
	assert.Len(t, mc.GetSummaries(), 1)
	assert.True(t, logger.HasLogEntryContaining(logging.InfoLevel, "Cleaned up 1 old metric events"))
}

func TestStartSendStop(t *testing.T) {
	mc := newTestCollector()
	mc.SendMetric(requestEvent("GET", "/todos", "200", time.Millisecond))
	assert.Zero(t, mc.EventCount(), "events before Start are dropped")

	require.NoError(t, mc.Start())
	assert.Error(t, mc.Start())

	mc.SendMetric(requestEvent("GET", "/todos", "200", time.Millisecond))
	require.Eventually(t, func() bool { return mc.EventCount() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, mc.Stop())
	require.NoError(t, mc.Stop())
	mc.SendMetric(requestEvent("GET", "/todos", "200", time.Millisecond))
	assert.Equal(t, 1, mc.EventCount())
}

func TestDumpMetricsLogsRoutes(t *testing.T) {
	logger := logging.NewMockLogger()
	mc := NewMetricsCollector(logger, MetricsConfig{})
	mc.processMetricEvent(requestEvent("DELETE", "/todos/{id}", "200", time.Millisecond))
	mc.processMetricEvent(&MetricEvent{Name: EventTodoMutated, Labels: map[string]string{"type": "deleted"}, Timestamp: time.Now()})

	mc.dumpMetrics()
	assert.True(t, logger.HasLogEntry(logging.InfoLevel, "Service metrics summary"))
	assert.True(t, logger.HasLogEntryWithField(logging.InfoLevel, "route", "DELETE /todos/{id}"))
	assert.True(t, logger.HasLogEntryWithField(logging.InfoLevel, "deleted", int64(1)))
}
