package metrics

import "time"

// Collector defines the interface for collecting analytics service metrics.
// Implementations can export metrics to various backends.
type Collector interface {
	// Engine operations (analytics, trends, forecast, categories)
	RecordOperation(op string, success bool, duration time.Duration)
	RecordAnomalies(count int)

	// Store queries
	RecordStoreQuery(success bool, duration time.Duration)
	RecordCircuitState(name string, state CircuitState)

	// Response cache
	RecordCacheLookup(hit bool)

	// HTTP surface
	RecordHTTPRequest(route string, status int, duration time.Duration)
}

// CircuitState represents the state of a circuit breaker.
type CircuitState int

const (
	// CircuitClosed means the circuit breaker is allowing requests through.
	CircuitClosed CircuitState = iota
	// CircuitOpen means the circuit breaker is blocking requests.
	CircuitOpen
	// CircuitHalfOpen means the circuit breaker is testing if the store has recovered.
	CircuitHalfOpen
)

// String returns the string representation of the circuit state.
func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// NoOpCollector is the default collector when metrics are not needed.
type NoOpCollector struct{}

func (NoOpCollector) RecordOperation(op string, success bool, duration time.Duration)    {}
func (NoOpCollector) RecordAnomalies(count int)                                          {}
func (NoOpCollector) RecordStoreQuery(success bool, duration time.Duration)              {}
func (NoOpCollector) RecordCircuitState(name string, state CircuitState)                 {}
func (NoOpCollector) RecordCacheLookup(hit bool)                                         {}
func (NoOpCollector) RecordHTTPRequest(route string, status int, duration time.Duration) {}
