package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"finance-analytics-backend/internal/logging"
	"finance-analytics-backend/internal/metrics"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Loader reads through a Cache. Concurrent misses for the same owner and key
// share one computation. Cache failures degrade to a recomputation and are
// never returned to the caller.
type Loader struct {
	cache   Cache
	ttl     time.Duration
	group   singleflight.Group
	logger  *logging.Logger
	metrics metrics.Collector
}

// NewLoader creates a loader storing entries for ttl.
func NewLoader(c Cache, ttl time.Duration, logger *logging.Logger, collector metrics.Collector) *Loader {
	if c == nil {
		c = Noop{}
	}
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	if collector == nil {
		collector = metrics.NoOpCollector{}
	}
	return &Loader{
		cache:   c,
		ttl:     ttl,
		logger:  logger.Named("cache"),
		metrics: collector,
	}
}

// Invalidate drops the cached entries of owner.
func (l *Loader) Invalidate(ctx context.Context, owner string) error {
	return l.cache.Invalidate(ctx, owner)
}

// Load returns the cached value for owner and key, or computes it with fn,
// stores it and returns it. Errors from fn are returned and never cached.
//
// The owner's generation is read before anything else and keys both the
// stored entry and the shared computation, so an invalidation that lands
// while fn runs discards its result and later callers start a fresh one.
// fn runs detached from the caller's cancellation because other callers may
// be waiting on the same computation.
func Load[T any](ctx context.Context, l *Loader, owner, key string, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	gen, err := l.cache.Generation(ctx, owner)
	cacheable := err == nil
	if !cacheable {
		l.logger.Warn("cache read failed", logging.Owner(owner), zap.String("key", key), zap.Error(err))
	} else {
		data, err := l.cache.Get(ctx, owner, key)
		switch {
		case err == nil:
			var cached T
			decodeErr := json.Unmarshal(data, &cached)
			if decodeErr == nil {
				l.metrics.RecordCacheLookup(true)
				return cached, nil
			}
			l.logger.Warn("discarding undecodable cache entry", logging.Owner(owner), zap.String("key", key), zap.Error(decodeErr))
		case !IsMiss(err):
			l.logger.Warn("cache read failed", logging.Owner(owner), zap.String("key", key), zap.Error(err))
		}
	}
	l.metrics.RecordCacheLookup(false)

	flight := fmt.Sprintf("%s\x00%d\x00%s", owner, gen, key)
	if !cacheable {
		flight = owner + "\x00uncached\x00" + key
	}

	v, err, shared := l.group.Do(flight, func() (interface{}, error) {
		fctx := context.WithoutCancel(ctx)
		value, err := fn(fctx)
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", key, err)
		}
		if cacheable {
			if err := l.cache.Set(fctx, owner, key, gen, data, l.ttl); err != nil {
				l.logger.Warn("cache write failed", logging.Owner(owner), zap.String("key", key), zap.Error(err))
			}
		}
		return data, nil
	})
	if err != nil {
		return zero, err
	}
	if shared {
		l.logger.Debug("coalesced load", logging.Owner(owner), zap.String("key", key))
	}

	var out T
	if err := json.Unmarshal(v.([]byte), &out); err != nil {
		return zero, fmt.Errorf("decode %s: %w", key, err)
	}
	return out, nil
}
