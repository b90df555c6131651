package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"finance-analytics-backend/internal/analytics"
	"finance-analytics-backend/internal/logging"
	"finance-analytics-backend/internal/metrics"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// ErrCircuitOpen is returned while the breaker rejects store queries.
var ErrCircuitOpen = errors.New("transaction store unavailable: circuit open")

// Pinger is implemented by stores that can report connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ResilientConfig configures the circuit breaker and query timeout.
type ResilientConfig struct {
	// Name labels the breaker in logs and metrics
	Name string
	// Timeout bounds each query; zero disables it
	Timeout time.Duration
	// MaxFailures is the number of consecutive failures that opens the circuit
	MaxFailures uint32
	// OpenTimeout is how long the circuit stays open before probing again
	OpenTimeout time.Duration
	// HalfOpenRequests is the number of trial requests allowed while half-open
	HalfOpenRequests uint32
}

// DefaultResilientConfig returns the defaults used by the service.
func DefaultResilientConfig() ResilientConfig {
	return ResilientConfig{
		Name:             "transactions",
		Timeout:          10 * time.Second,
		MaxFailures:      5,
		OpenTimeout:      30 * time.Second,
		HalfOpenRequests: 1,
	}
}

// ResilientStore wraps a Store with circuit breaker and timeout protection.
type ResilientStore struct {
	store   analytics.Store
	cb      *gobreaker.CircuitBreaker
	name    string
	timeout time.Duration
	metrics metrics.Collector
	logger  *logging.Logger
}

// NewResilientStore decorates store. A nil collector or logger disables that
// concern.
func NewResilientStore(store analytics.Store, config ResilientConfig, logger *logging.Logger, collector metrics.Collector) *ResilientStore {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	if collector == nil {
		collector = metrics.NoOpCollector{}
	}
	if config.Name == "" {
		config.Name = "transactions"
	}
	maxFailures := config.MaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}

	rs := &ResilientStore{
		store:   store,
		name:    config.Name,
		timeout: config.Timeout,
		metrics: collector,
		logger:  logger.Named("store").With(zap.String("breaker", config.Name)),
	}

	rs.logger.Info("resilient store initialized",
		zap.Duration("timeout", config.Timeout),
		zap.Uint32("max_failures", maxFailures),
		zap.Duration("open_timeout", config.OpenTimeout),
	)

	settings := gobreaker.Settings{
		Name:        config.Name,
		MaxRequests: config.HalfOpenRequests,
		Timeout:     config.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		// Context cancellation is not a store failure.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			rs.logger.Warn("circuit breaker state changed",
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)

			var state metrics.CircuitState
			switch to {
			case gobreaker.StateClosed:
				state = metrics.CircuitClosed
			case gobreaker.StateHalfOpen:
				state = metrics.CircuitHalfOpen
			case gobreaker.StateOpen:
				state = metrics.CircuitOpen
			}
			rs.metrics.RecordCircuitState(name, state)
		},
	}

	rs.cb = gobreaker.NewCircuitBreaker(settings)
	collector.RecordCircuitState(config.Name, metrics.CircuitClosed)

	return rs
}

// QueryTransactions runs the query through the breaker with the configured
// timeout.
func (rs *ResilientStore) QueryTransactions(ctx context.Context, ownerID string, q analytics.Query) ([]analytics.Transaction, error) {
	start := time.Now()

	if rs.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, rs.timeout)
		defer cancel()
	}

	result, err := rs.cb.Execute(func() (interface{}, error) {
		return rs.store.QueryTransactions(ctx, ownerID, q)
	})

	duration := time.Since(start)
	rs.metrics.RecordStoreQuery(err == nil, duration)

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			rs.logger.Warn("circuit breaker open - query rejected", logging.Owner(ownerID))
			return nil, fmt.Errorf("%w: %w", ErrCircuitOpen, err)
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			rs.logger.Warn("query timeout",
				logging.Owner(ownerID),
				zap.Duration("timeout", rs.timeout),
				zap.Duration("elapsed", duration),
			)
			return nil, err
		}
		if !errors.Is(err, context.Canceled) {
			rs.logger.Error("query failed",
				logging.Owner(ownerID),
				zap.Duration("duration", duration),
				zap.Error(err),
			)
		}
		return nil, err
	}

	txs, _ := result.([]analytics.Transaction)
	return txs, nil
}

// Ping forwards to the wrapped store when it can report connectivity.
func (rs *ResilientStore) Ping(ctx context.Context) error {
	if p, ok := rs.store.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// State returns the current breaker state.
func (rs *ResilientStore) State() metrics.CircuitState {
	switch rs.cb.State() {
	case gobreaker.StateOpen:
		return metrics.CircuitOpen
	case gobreaker.StateHalfOpen:
		return metrics.CircuitHalfOpen
	default:
		return metrics.CircuitClosed
	}
}

var _ analytics.Store = (*ResilientStore)(nil)
