package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordStepCountsOutcomes(t *testing.T) {
	mc := NewMetricsCollector()

	mc.RecordStep("health", "succeeded", 20*time.Millisecond)
	mc.RecordStep("render", "failed", time.Second)
	mc.RecordStep("render_base64", "skipped", 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(mc.stepCounter.WithLabelValues("health", "succeeded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(mc.stepCounter.WithLabelValues("render", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(mc.stepCounter.WithLabelValues("render_base64", "skipped")))
	// skipped steps have no duration sample
	assert.Equal(t, 2, testutil.CollectAndCount(mc.stepDuration))
}

func TestRenderGaugesAndRun(t *testing.T) {
	mc := NewMetricsCollector()

	mc.SetResponseBytes("render", 2048)
	mc.SetRenderTime("render", 1250*time.Millisecond)
	mc.SetGeoRank("render", 4.25)
	mc.SetGridPoints("render", 81)
	mc.RecordRun(true, time.Unix(1700000000, 0))

	assert.Equal(t, 2048.0, testutil.ToFloat64(mc.responseBytes.WithLabelValues("render")))
	assert.InDelta(t, 1.25, testutil.ToFloat64(mc.renderTime.WithLabelValues("render")), 1e-9)
	assert.Equal(t, 4.25, testutil.ToFloat64(mc.geoRank.WithLabelValues("render")))
	assert.Equal(t, 81.0, testutil.ToFloat64(mc.gridPoints.WithLabelValues("render")))
	assert.Equal(t, 1.0, testutil.ToFloat64(mc.lastRunSuccess))
	assert.Equal(t, 1700000000.0, testutil.ToFloat64(mc.lastRunTimestamp))

	mc.RecordRun(false, time.Now())
	assert.Equal(t, 0.0, testutil.ToFloat64(mc.lastRunSuccess))
}

func TestCircuitBreakerMetrics(t *testing.T) {
	mc := NewMetricsCollector()

	mc.SetCircuitBreakerState("geogrid-probe", "probe", 2)
	mc.IncrementCircuitBreakerFailures("geogrid-probe", "probe")

	expected := `
# HELP circuit_breaker_state Circuit breaker state: 0=closed, 1=half-open, 2=open
# TYPE circuit_breaker_state gauge
circuit_breaker_state{component="probe",service="geogrid-probe"} 2
`
	require.NoError(t, testutil.GatherAndCompare(mc.Registry(), strings.NewReader(expected), "circuit_breaker_state"))
	assert.Equal(t, 1.0, testutil.ToFloat64(mc.circuitFailures.WithLabelValues("geogrid-probe", "probe")))
}

func TestPushSendsRegistry(t *testing.T) {
	var (
		gotPath string
		gotBody string
	)
	gw := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusOK)
	}))
	defer gw.Close()

	mc := NewMetricsCollector()
	mc.RecordRun(true, time.Now())

	require.NoError(t, mc.Push(context.Background(), gw.URL, "geogrid_probe", "local"))
	assert.Equal(t, "/metrics/job/geogrid_probe/instance/local", gotPath)
	assert.NotEmpty(t, gotBody)
}

func TestPushReportsGatewayError(t *testing.T) {
	gw := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer gw.Close()

	mc := NewMetricsCollector()
	assert.Error(t, mc.Push(context.Background(), gw.URL, "geogrid_probe", ""))
}

func TestLatencyTracker(t *testing.T) {
	lt := NewLatencyTracker()
	lt.Checkpoint("root")

	d, ok := lt.GetCheckpoint("root")
	assert.True(t, ok)
	assert.GreaterOrEqual(t, lt.GetDuration(), d)
	_, ok = lt.GetCheckpoint("missing")
	assert.False(t, ok)
}
