package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector implements Collector for Prometheus.
type PrometheusCollector struct {
	operations       *prometheus.CounterVec
	operationLatency *prometheus.HistogramVec
	anomalies        prometheus.Counter

	storeQueries      *prometheus.CounterVec
	storeQueryLatency prometheus.Histogram
	circuitState      *prometheus.GaugeVec

	cacheLookups *prometheus.CounterVec

	httpRequests *prometheus.HistogramVec
}

// NewPrometheusCollector creates a new Prometheus metrics collector.
func NewPrometheusCollector(namespace string) *PrometheusCollector {
	return &PrometheusCollector{
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Total number of analytics operations by outcome",
			},
			[]string{"operation", "outcome"},
		),
		operationLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Latency of analytics operations",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		anomalies: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "anomalies_flagged_total",
				Help:      "Total number of transactions flagged as spending anomalies",
			},
		),
		storeQueries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_queries_total",
				Help:      "Total number of transaction store queries by outcome",
			},
			[]string{"outcome"},
		),
		storeQueryLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "store_query_duration_seconds",
				Help:      "Latency of transaction store queries",
				Buckets:   prometheus.DefBuckets,
			},
		),
		circuitState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "store_circuit_state",
				Help:      "Circuit breaker state (0=closed, 1=open, 2=half-open)",
			},
			[]string{"breaker"},
		),
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_lookups_total",
				Help:      "Response cache lookups by result",
			},
			[]string{"result"},
		),
		httpRequests: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency by route and status",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route", "status"},
		),
	}
}

// Register registers all collectors with the given registry.
func (pc *PrometheusCollector) Register(registry prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		pc.operations,
		pc.operationLatency,
		pc.anomalies,
		pc.storeQueries,
		pc.storeQueryLatency,
		pc.circuitState,
		pc.cacheLookups,
		pc.httpRequests,
	}
	for _, collector := range collectors {
		if err := registry.Register(collector); err != nil {
			return err
		}
	}
	return nil
}

func (pc *PrometheusCollector) RecordOperation(op string, success bool, duration time.Duration) {
	pc.operations.WithLabelValues(op, outcome(success)).Inc()
	pc.operationLatency.WithLabelValues(op).Observe(duration.Seconds())
}

func (pc *PrometheusCollector) RecordAnomalies(count int) {
	pc.anomalies.Add(float64(count))
}

func (pc *PrometheusCollector) RecordStoreQuery(success bool, duration time.Duration) {
	pc.storeQueries.WithLabelValues(outcome(success)).Inc()
	pc.storeQueryLatency.Observe(duration.Seconds())
}

func (pc *PrometheusCollector) RecordCircuitState(name string, state CircuitState) {
	pc.circuitState.WithLabelValues(name).Set(float64(state))
}

func (pc *PrometheusCollector) RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	pc.cacheLookups.WithLabelValues(result).Inc()
}

func (pc *PrometheusCollector) RecordHTTPRequest(route string, status int, duration time.Duration) {
	pc.httpRequests.WithLabelValues(route, strconv.Itoa(status)).Observe(duration.Seconds())
}

func outcome(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
