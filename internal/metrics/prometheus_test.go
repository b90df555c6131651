package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPrometheusCollector_Register(t *testing.T) {
	registry := prometheus.NewRegistry()
	pc := NewPrometheusCollector("test")
	if err := pc.Register(registry); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := pc.Register(registry); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}
}

func TestPrometheusCollector_Records(t *testing.T) {
	pc := NewPrometheusCollector("test")

	pc.RecordOperation("analytics", true, 10*time.Millisecond)
	pc.RecordOperation("analytics", false, 5*time.Millisecond)
	pc.RecordStoreQuery(true, time.Millisecond)
	pc.RecordAnomalies(3)
	pc.RecordCacheLookup(true)
	pc.RecordCacheLookup(false)
	pc.RecordCacheLookup(false)
	pc.RecordCircuitState("store", CircuitOpen)
	pc.RecordHTTPRequest("/api/analytics/data", 200, time.Millisecond)

	if got := testutil.ToFloat64(pc.operations.WithLabelValues("analytics", "error")); got != 1 {
		t.Errorf("error operations = %v, want 1", got)
	}
	if got := testutil.ToFloat64(pc.anomalies); got != 3 {
		t.Errorf("anomalies = %v, want 3", got)
	}
	if got := testutil.ToFloat64(pc.cacheLookups.WithLabelValues("miss")); got != 2 {
		t.Errorf("cache misses = %v, want 2", got)
	}
	if got := testutil.ToFloat64(pc.circuitState.WithLabelValues("store")); got != float64(CircuitOpen) {
		t.Errorf("circuit state = %v, want %v", got, float64(CircuitOpen))
	}
}

func TestCircuitStateString(t *testing.T) {
	cases := map[CircuitState]string{
		CircuitClosed:    "closed",
		CircuitOpen:      "open",
		CircuitHalfOpen:  "half-open",
		CircuitState(42): "unknown",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", state, got, want)
		}
	}
}
