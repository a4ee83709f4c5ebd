package metrics

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"todoservice/shared/logging"
)

// MetricType defines the type of metric
type MetricType string

const (
	MetricTypeCounter   MetricType = "counter"
	MetricTypeGauge     MetricType = "gauge"
	MetricTypeHistogram MetricType = "histogram"
	MetricTypeTiming    MetricType = "timing"
)

// Event names understood by the aggregation
const (
	EventRequestCompleted = "request.completed"
	EventBackendError     = "backend.error"
	EventTodoMutated      = "todo.mutated"
)

// MetricEvent represents a single metric event
type MetricEvent struct {
	Type      MetricType        `json:"type"`
	Name      string            `json:"name"`
	Value     float64           `json:"value"`
	Labels    map[string]string `json:"labels"`
	Timestamp time.Time         `json:"timestamp"`
	Duration  time.Duration     `json:"duration,omitempty"`
}

// MetricSummary represents aggregated metrics for a time window
type MetricSummary struct {
	Name       string            `json:"name"`
	Type       MetricType        `json:"type"`
	Count      int64             `json:"count"`
	Sum        float64           `json:"sum"`
	Min        float64           `json:"min"`
	Max        float64           `json:"max"`
	Avg        float64           `json:"avg"`
	Labels     map[string]string `json:"labels"`
	WindowSize time.Duration     `json:"windowSize"`
	LastUpdate time.Time         `json:"lastUpdate"`
}

// ServiceMetrics holds the totals for the whole HTTP surface
type ServiceMetrics struct {
	TotalRequests  int64                      `json:"totalRequests"`
	ClientErrors   int64                      `json:"clientErrors"`
	ServerErrors   int64                      `json:"serverErrors"`
	BackendErrors  int64                      `json:"backendErrors"`
	Mutations      map[string]int64           `json:"mutations"`
	AverageLatency time.Duration              `json:"averageLatency"`
	Routes         map[string]*RequestMetrics `json:"routes"`
	StartedAt      time.Time                  `json:"startedAt"`
	LastUpdated    time.Time                  `json:"lastUpdated"`
}

// RequestMetrics holds metrics for one route pattern
type RequestMetrics struct {
	Route          string        `json:"route"`
	Count          int64         `json:"count"`
	ClientErrors   int64         `json:"clientErrors"`
	ServerErrors   int64         `json:"serverErrors"`
	AverageLatency time.Duration `json:"averageLatency"`
	MinLatency     time.Duration `json:"minLatency"`
	MaxLatency     time.Duration `json:"maxLatency"`
	TotalLatency   time.Duration `json:"totalLatency"`
	LastRequest    time.Time     `json:"lastRequest"`
}

// MetricsCollector manages metrics collection and aggregation
type MetricsCollector struct {
	mu                sync.RWMutex
	logger            logging.Logger
	metricsChan       chan *MetricEvent
	ctx               context.Context
	cancel            context.CancelFunc
	retentionPeriod   time.Duration
	aggregationWindow time.Duration

	events         []*MetricEvent
	summaries      map[string]*MetricSummary
	serviceMetrics *ServiceMetrics

	maxEvents    int
	dumpInterval time.Duration
	started      bool
	done         sync.WaitGroup
}

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector(logger logging.Logger, config MetricsConfig) *MetricsCollector {
	ctx, cancel := context.WithCancel(context.Background())
	defaults := DefaultMetricsConfig()
	if config.ChannelBufferSize <= 0 {
		config.ChannelBufferSize = defaults.ChannelBufferSize
	}
	if config.RetentionPeriod <= 0 {
		config.RetentionPeriod = defaults.RetentionPeriod
	}
	if config.MaxEvents <= 0 {
		config.MaxEvents = defaults.MaxEvents
	}
	if config.DumpInterval <= 0 {
		config.DumpInterval = defaults.DumpInterval
	}

	now := time.Now()
	return &MetricsCollector{
		logger:            logger.WithField("component", "metrics"),
		metricsChan:       make(chan *MetricEvent, config.ChannelBufferSize),
		ctx:               ctx,
		cancel:            cancel,
		retentionPeriod:   config.RetentionPeriod,
		aggregationWindow: config.AggregationWindow,
		maxEvents:         config.MaxEvents,
		dumpInterval:      config.DumpInterval,
		events:            make([]*MetricEvent, 0),
		summaries:         make(map[string]*MetricSummary),
		serviceMetrics: &ServiceMetrics{
			Mutations:   make(map[string]int64),
			Routes:      make(map[string]*RequestMetrics),
			StartedAt:   now,
			LastUpdated: now,
		},
	}
}

// MetricsConfig holds configuration for the metrics collector
type MetricsConfig struct {
	ChannelBufferSize int           `json:"channelBufferSize"`
	RetentionPeriod   time.Duration `json:"retentionPeriod"`
	AggregationWindow time.Duration `json:"aggregationWindow"`
	MaxEvents         int           `json:"maxEvents"`
	DumpInterval      time.Duration `json:"dumpInterval"`
}

// DefaultMetricsConfig returns default configuration
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		ChannelBufferSize: 1000,
		RetentionPeriod:   10 * time.Minute,
		AggregationWindow: 1 * time.Minute,
		MaxEvents:         10000,
		DumpInterval:      30 * time.Second,
	}
}

// Start begins the metrics collection process
func (mc *MetricsCollector) Start() error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if mc.started {
		return fmt.Errorf("metrics collector already started")
	}
	mc.started = true

	mc.done.Add(3)
	go mc.processMetrics()
	go mc.periodicDump()
	go mc.periodicCleanup()

	mc.logger.Info("Metrics collector started")
	return nil
}

// Stop stops the collection and waits for the background goroutines
func (mc *MetricsCollector) Stop() error {
	mc.mu.Lock()
	if !mc.started {
		mc.mu.Unlock()
		return nil
	}
	mc.started = false
	mc.cancel()
	mc.mu.Unlock()

	mc.done.Wait()
	mc.logger.Info("Metrics collector stopped")
	return nil
}

// SendMetric hands an event to the collector without blocking. Events are
// dropped when the collector is not running or the buffer is full.
func (mc *MetricsCollector) SendMetric(event *MetricEvent) {
	mc.mu.RLock()
	started := mc.started
	mc.mu.RUnlock()
	if !started {
		return
	}

	select {
	case mc.metricsChan <- event:
	default:
		mc.logger.Warn("Metrics channel is full, dropping metric event")
	}
}

func (mc *MetricsCollector) processMetrics() {
	defer mc.done.Done()
	for {
		select {
		case <-mc.ctx.Done():
			mc.drain()
			return
		case event := <-mc.metricsChan:
			if event != nil {
				mc.processMetricEvent(event)
			}
		}
	}
}

// drain folds in whatever was buffered before Stop
func (mc *MetricsCollector) drain() {
	for {
		select {
		case event := <-mc.metricsChan:
			if event != nil {
				mc.processMetricEvent(event)
			}
		default:
			return
		}
	}
}

func (mc *MetricsCollector) processMetricEvent(event *MetricEvent) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.events = append(mc.events, event)
	if len(mc.events) > mc.maxEvents {
		mc.events = mc.events[len(mc.events)-mc.maxEvents:]
	}

	mc.updateSummary(event)
	mc.updateServiceMetrics(event)
}

func (mc *MetricsCollector) updateSummary(event *MetricEvent) {
	key := mc.getSummaryKey(event)

	summary, exists := mc.summaries[key]
	if !exists {
		summary = &MetricSummary{
			Name:       event.Name,
			Type:       event.Type,
			Labels:     event.Labels,
			Min:        event.Value,
			Max:        event.Value,
			WindowSize: mc.aggregationWindow,
		}
		mc.summaries[key] = summary
	}

	summary.Count++
	summary.Sum += event.Value
	summary.Avg = summary.Sum / float64(summary.Count)
	summary.LastUpdate = event.Timestamp

	if event.Value < summary.Min {
		summary.Min = event.Value
	}
	if event.Value > summary.Max {
		summary.Max = event.Value
	}
}

func (mc *MetricsCollector) updateServiceMetrics(event *MetricEvent) {
	sm := mc.serviceMetrics
	switch event.Name {
	case EventRequestCompleted:
		sm.TotalRequests++
		status := event.Labels["status"]
		clientErr := len(status) == 3 && status[0] == '4'
		serverErr := len(status) == 3 && status[0] == '5'
		if clientErr {
			sm.ClientErrors++
		}
		if serverErr {
			sm.ServerErrors++
		}
		sm.AverageLatency += (event.Duration - sm.AverageLatency) / time.Duration(sm.TotalRequests)
		mc.updateRouteMetrics(event.Labels["method"]+" "+event.Labels["route"], event, clientErr, serverErr)
	case EventBackendError:
		sm.BackendErrors++
	case EventTodoMutated:
		sm.Mutations[event.Labels["type"]]++
	}
	sm.LastUpdated = time.Now()
}

func (mc *MetricsCollector) updateRouteMetrics(route string, event *MetricEvent, clientErr, serverErr bool) {
	rm, exists := mc.serviceMetrics.Routes[route]
	if !exists {
		rm = &RequestMetrics{Route: route}
		mc.serviceMetrics.Routes[route] = rm
	}

	rm.Count++
	rm.LastRequest = event.Timestamp
	if clientErr {
		rm.ClientErrors++
	}
	if serverErr {
		rm.ServerErrors++
	}
	rm.TotalLatency += event.Duration
	rm.AverageLatency = time.Duration(int64(rm.TotalLatency) / rm.Count)
	if rm.MinLatency == 0 || event.Duration < rm.MinLatency {
		rm.MinLatency = event.Duration
	}
	if event.Duration > rm.MaxLatency {
		rm.MaxLatency = event.Duration
	}
}

// getSummaryKey generates a unique key for metric summaries
func (mc *MetricsCollector) getSummaryKey(event *MetricEvent) string {
	key := fmt.Sprintf("%s:%s", event.Type, event.Name)

	var keys []string
	for k := range event.Labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		key += fmt.Sprintf(":%s=%s", k, event.Labels[k])
	}
	return key
}

func (mc *MetricsCollector) periodicDump() {
	defer mc.done.Done()
	ticker := time.NewTicker(mc.dumpInterval)
	defer ticker.Stop()

	for {
		select {
		case <-mc.ctx.Done():
			return
		case <-ticker.C:
			mc.dumpMetrics()
		}
	}
}

func (mc *MetricsCollector) periodicCleanup() {
	defer mc.done.Done()
	ticker := time.NewTicker(mc.retentionPeriod / 2)
	defer ticker.Stop()

	for {
		select {
		case <-mc.ctx.Done():
			return
		case <-ticker.C:
			mc.cleanupOldMetrics(time.Now())
		}
	}
}

// dumpMetrics writes the current totals and per-route figures to the log
func (mc *MetricsCollector) dumpMetrics() {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	sm := mc.serviceMetrics
	mc.logger.WithFields(logging.Fields{
		"totalRequests":  sm.TotalRequests,
		"clientErrors":   sm.ClientErrors,
		"serverErrors":   sm.ServerErrors,
		"backendErrors":  sm.BackendErrors,
		"averageLatency": sm.AverageLatency.String(),
	}).Info("Service metrics summary")

	for route, rm := range sm.Routes {
		mc.logger.WithFields(logging.Fields{
			"route":          route,
			"count":          rm.Count,
			"clientErrors":   rm.ClientErrors,
			"serverErrors":   rm.ServerErrors,
			"averageLatency": rm.AverageLatency.String(),
			"minLatency":     rm.MinLatency.String(),
			"maxLatency":     rm.MaxLatency.String(),
		}).Info("Route metrics")
	}

	if len(sm.Mutations) > 0 {
		fields := logging.Fields{}
		for kind, n := range sm.Mutations {
			fields[kind] = n
		}
		mc.logger.WithFields(fields).Info("Todo mutations")
	}
}

// cleanupOldMetrics drops events and summaries older than the retention period
func (mc *MetricsCollector) cleanupOldMetrics(now time.Time) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	cutoff := now.Add(-mc.retentionPeriod)

	filtered := make([]*MetricEvent, 0, len(mc.events))
	for _, event := range mc.events {
		if event.Timestamp.After(cutoff) {
			filtered = append(filtered, event)
		}
	}
	removed := len(mc.events) - len(filtered)
	mc.events = filtered

	for key, summary := range mc.summaries {
		if summary.LastUpdate.Before(cutoff) {
			delete(mc.summaries, key)
		}
	}

	if removed > 0 {
		mc.logger.Infof("Cleaned up %d old metric events", removed)
	}
}

// GetMetrics returns a copy of the current totals
func (mc *MetricsCollector) GetMetrics() *ServiceMetrics {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	metrics := *mc.serviceMetrics
	metrics.Routes = make(map[string]*RequestMetrics, len(mc.serviceMetrics.Routes))
	for k, v := range mc.serviceMetrics.Routes {
		routeCopy := *v
		metrics.Routes[k] = &routeCopy
	}
	metrics.Mutations = make(map[string]int64, len(mc.serviceMetrics.Mutations))
	for k, v := range mc.serviceMetrics.Mutations {
		metrics.Mutations[k] = v
	}
	return &metrics
}

// GetSummaries returns current metric summaries
func (mc *MetricsCollector) GetSummaries() map[string]*MetricSummary {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	summaries := make(map[string]*MetricSummary, len(mc.summaries))
	for k, v := range mc.summaries {
		summaryCopy := *v
		summaries[k] = &summaryCopy
	}
	return summaries
}

// GetRecentEvents returns up to limit of the newest events, oldest first
func (mc *MetricsCollector) GetRecentEvents(limit int) []*MetricEvent {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	if limit <= 0 || limit > len(mc.events) {
		limit = len(mc.events)
	}

	start := len(mc.events) - limit
	events := make([]*MetricEvent, limit)
	copy(events, mc.events[start:])
	return events
}

// EventCount returns the number of retained events
func (mc *MetricsCollector) EventCount() int {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return len(mc.events)
}
