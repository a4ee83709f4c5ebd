package metrics

import (
	"strconv"
	"time"
)

// MetricsHelper provides convenient methods for sending metrics on behalf
// of one component
type MetricsHelper struct {
	collector *MetricsCollector
	component string
}

// NewMetricsHelper creates a new metrics helper for a component. A nil
// collector turns every Record call into a no-op.
func NewMetricsHelper(collector *MetricsCollector, component string) *MetricsHelper {
	return &MetricsHelper{
		collector: collector,
		component: component,
	}
}

func (mh *MetricsHelper) send(event *MetricEvent) {
	if mh == nil || mh.collector == nil {
		return
	}
	if event.Labels == nil {
		event.Labels = make(map[string]string)
	}
	event.Labels["component"] = mh.component
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	mh.collector.SendMetric(event)
}

// RecordRequest records one served request. route is the mux pattern, not
// the raw path, so ids do not explode the label space.
func (mh *MetricsHelper) RecordRequest(method, route string, status int, duration time.Duration) {
	mh.send(&MetricEvent{
		Type:     MetricTypeTiming,
		Name:     EventRequestCompleted,
		Value:    float64(duration.Milliseconds()),
		Labels:   map[string]string{"method": method, "route": route, "status": strconv.Itoa(status)},
		Duration: duration,
	})
}

// RecordBackendError records a failed datastore operation
func (mh *MetricsHelper) RecordBackendError(operation string) {
	mh.send(&MetricEvent{
		Type:   MetricTypeCounter,
		Name:   EventBackendError,
		Value:  1,
		Labels: map[string]string{"operation": operation},
	})
}

// RecordMutation records a successful create, update or delete
func (mh *MetricsHelper) RecordMutation(kind string) {
	mh.send(&MetricEvent{
		Type:   MetricTypeCounter,
		Name:   EventTodoMutated,
		Value:  1,
		Labels: map[string]string{"type": kind},
	})
}

// RecordGauge records a gauge metric
func (mh *MetricsHelper) RecordGauge(name string, value float64, labels map[string]string) {
	mh.send(&MetricEvent{Type: MetricTypeGauge, Name: name, Value: value, Labels: copyLabels(labels)})
}

func copyLabels(labels map[string]string) map[string]string {
	out := make(map[string]string, len(labels)+1)
	for k, v := range labels {
		out[k] = v
	}
	return out
}

// GetCollector returns the underlying metrics collector
func (mh *MetricsHelper) GetCollector() *MetricsCollector {
	return mh.collector
}
