package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

// MetricsCollector records the outcome of a probe run on its own registry,
// so a run can be pushed or inspected without touching the global one.
type MetricsCollector struct {
	registry *prometheus.Registry

	stepDuration  *prometheus.HistogramVec
	stepCounter   *prometheus.CounterVec
	responseBytes *prometheus.GaugeVec

	renderTime *prometheus.GaugeVec
	geoRank    *prometheus.GaugeVec
	gridPoints *prometheus.GaugeVec

	lastRunSuccess   prometheus.Gauge
	lastRunTimestamp prometheus.Gauge

	circuitState    *prometheus.GaugeVec
	circuitFailures *prometheus.CounterVec
}

// NewMetricsCollector creates a collector backed by a fresh registry
func NewMetricsCollector() *MetricsCollector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	mc := &MetricsCollector{registry: reg}

	mc.stepDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "geogrid_probe_step_duration_seconds",
			Help:    "Wall time of each probe step",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"step", "outcome"},
	)

	mc.stepCounter = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geogrid_probe_steps_total",
			Help: "Probe steps by outcome (succeeded, failed, skipped)",
		},
		[]string{"step", "outcome"},
	)

	mc.responseBytes = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "geogrid_probe_response_bytes",
			Help: "Size of the last response body per step",
		},
		[]string{"step"},
	)

	mc.renderTime = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "geogrid_probe_render_time_seconds",
			Help: "Server reported render time (X-Render-Time)",
		},
		[]string{"step"},
	)

	mc.geoRank = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "geogrid_probe_georank",
			Help: "Server reported GeoRank (X-GeoRank)",
		},
		[]string{"step"},
	)

	mc.gridPoints = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "geogrid_probe_grid_points",
			Help: "Server reported grid point count (X-Grid-Points)",
		},
		[]string{"step"},
	)

	mc.lastRunSuccess = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "geogrid_probe_last_run_success",
			Help: "1 when every step of the last run succeeded, 0 otherwise",
		},
	)

	mc.lastRunTimestamp = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "geogrid_probe_last_run_timestamp_seconds",
			Help: "Unix time the last run finished",
		},
	)

	mc.circuitState = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state: 0=closed, 1=half-open, 2=open",
		},
		[]string{"service", "component"},
	)

	mc.circuitFailures = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_failures_total",
			Help: "Times the circuit breaker opened",
		},
		[]string{"service", "component"},
	)

	return mc
}

// Registry exposes the underlying registry for gathering and tests
func (mc *MetricsCollector) Registry() *prometheus.Registry {
	return mc.registry
}

// RecordStep records one step's outcome and duration
func (mc *MetricsCollector) RecordStep(step, outcome string, duration time.Duration) {
	mc.stepCounter.WithLabelValues(step, outcome).Inc()
	if outcome != "skipped" {
		mc.stepDuration.WithLabelValues(step, outcome).Observe(duration.Seconds())
	}
}

// SetResponseBytes sets the body size seen by a step
func (mc *MetricsCollector) SetResponseBytes(step string, n int) {
	mc.responseBytes.WithLabelValues(step).Set(float64(n))
}

// SetRenderTime sets the server reported render time
func (mc *MetricsCollector) SetRenderTime(step string, d time.Duration) {
	mc.renderTime.WithLabelValues(step).Set(d.Seconds())
}

// SetGeoRank sets the server reported GeoRank
func (mc *MetricsCollector) SetGeoRank(step string, v float64) {
	mc.geoRank.WithLabelValues(step).Set(v)
}

// SetGridPoints sets the server reported grid point count
func (mc *MetricsCollector) SetGridPoints(step string, n float64) {
	mc.gridPoints.WithLabelValues(step).Set(n)
}

// RecordRun marks the end of a run
func (mc *MetricsCollector) RecordRun(ok bool, at time.Time) {
	if ok {
		mc.lastRunSuccess.Set(1)
	} else {
		mc.lastRunSuccess.Set(0)
	}
	mc.lastRunTimestamp.Set(float64(at.Unix()))
}

// SetCircuitBreakerState sets circuit breaker state (0=closed, 1=half-open, 2=open)
func (mc *MetricsCollector) SetCircuitBreakerState(service, component string, state float64) {
	mc.circuitState.WithLabelValues(service, component).Set(state)
}

// IncrementCircuitBreakerFailures counts breaker openings
func (mc *MetricsCollector) IncrementCircuitBreakerFailures(service, component string) {
	mc.circuitFailures.WithLabelValues(service, component).Inc()
}

// Push sends the registry to a Prometheus Pushgateway under job, grouped by instance.
func (mc *MetricsCollector) Push(ctx context.Context, gatewayURL, job, instance string) error {
	pusher := push.New(gatewayURL, job).Gatherer(mc.registry)
	if instance != "" {
		pusher = pusher.Grouping("instance", instance)
	}
	return pusher.PushContext(ctx)
}

// LatencyTracker records named checkpoints relative to a start time
type LatencyTracker struct {
	startTime   time.Time
	checkpoints map[string]time.Duration
	mu          sync.RWMutex
}

// NewLatencyTracker creates a new latency tracker
func NewLatencyTracker() *LatencyTracker {
	return &LatencyTracker{
		startTime:   time.Now(),
		checkpoints: make(map[string]time.Duration),
	}
}

// Checkpoint records the elapsed time under name
func (lt *LatencyTracker) Checkpoint(name string) {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	lt.checkpoints[name] = time.Since(lt.startTime)
}

// GetDuration returns the duration since start
func (lt *LatencyTracker) GetDuration() time.Duration {
	return time.Since(lt.startTime)
}

// GetCheckpoint returns the duration at a specific checkpoint
func (lt *LatencyTracker) GetCheckpoint(name string) (time.Duration, bool) {
	lt.mu.RLock()
	defer lt.mu.RUnlock()
	duration, ok := lt.checkpoints[name]
	return duration, ok
}
