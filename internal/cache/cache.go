// Package cache holds analytics responses per owner so repeated reads within
// the TTL skip the store. Entries are opaque JSON documents.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"
)

var (
	// ErrMiss is returned when a key is absent or expired.
	ErrMiss = errors.New("cache: miss")

	// ErrInvalidKey is returned for empty or malformed owners and keys.
	ErrInvalidKey = errors.New("cache: invalid key")
)

// Cache stores encoded responses scoped by owner id. Every owner has a
// generation that Invalidate advances; a value is written under the
// generation that was current when its computation started, so results
// computed before an invalidation are never served after it.
type Cache interface {
	// Generation returns the owner's current generation.
	Generation(ctx context.Context, owner string) (int64, error)
	// Get returns the value for key in the current generation or ErrMiss.
	Get(ctx context.Context, owner, key string) ([]byte, error)
	// Set stores value for ttl as part of generation gen. The write is lost
	// when gen is no longer current.
	Set(ctx context.Context, owner, key string, gen int64, value []byte, ttl time.Duration) error
	// Invalidate drops every entry of owner and advances its generation.
	Invalidate(ctx context.Context, owner string) error
}

// IsMiss reports whether err is a cache miss.
func IsMiss(err error) bool {
	return errors.Is(err, ErrMiss)
}

// Key joins request parts into a canonical cache key.
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}

// validateKey rejects empty keys and keys with control characters.
func validateKey(key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	if len(key) > 250 {
		return fmt.Errorf("%w: key too long (max 250 characters)", ErrInvalidKey)
	}
	for _, r := range key {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: key contains control character", ErrInvalidKey)
		}
	}
	return nil
}

// Noop never stores anything.
type Noop struct{}

func (Noop) Generation(ctx context.Context, owner string) (int64, error) {
	return 0, nil
}

func (Noop) Get(ctx context.Context, owner, key string) ([]byte, error) {
	return nil, ErrMiss
}

func (Noop) Set(ctx context.Context, owner, key string, gen int64, value []byte, ttl time.Duration) error {
	return nil
}

func (Noop) Invalidate(ctx context.Context, owner string) error {
	return nil
}
