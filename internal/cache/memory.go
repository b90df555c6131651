package cache

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryCache is a process-local Cache. Expiry is checked against the
// supplied clock on read, so tests control time explicitly.
type MemoryCache struct {
	mu          sync.Mutex
	now         func() time.Time
	owners      map[string]map[string]entry
	generations map[string]int64
}

// NewMemoryCache creates an empty cache. A nil clock means time.Now.
func NewMemoryCache(now func() time.Time) *MemoryCache {
	if now == nil {
		now = time.Now
	}
	return &MemoryCache{
		now:         now,
		owners:      make(map[string]map[string]entry),
		generations: make(map[string]int64),
	}
}

func (c *MemoryCache) Generation(ctx context.Context, owner string) (int64, error) {
	if err := validateKey(owner); err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generations[owner], nil
}

func (c *MemoryCache) Get(ctx context.Context, owner, key string) ([]byte, error) {
	if err := validateKey(owner); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entries := c.owners[owner]
	e, ok := entries[key]
	if !ok {
		return nil, ErrMiss
	}
	if !c.now().Before(e.expiresAt) {
		delete(entries, key)
		return nil, ErrMiss
	}
	return e.value, nil
}

func (c *MemoryCache) Set(ctx context.Context, owner, key string, gen int64, value []byte, ttl time.Duration) error {
	if err := validateKey(owner); err != nil {
		return err
	}
	if err := validateKey(key); err != nil {
		return err
	}
	if ttl <= 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.generations[owner] != gen {
		return nil
	}
	entries, ok := c.owners[owner]
	if !ok {
		entries = make(map[string]entry)
		c.owners[owner] = entries
	}
	c.purge(entries)
	entries[key] = entry{value: value, expiresAt: c.now().Add(ttl)}
	return nil
}

func (c *MemoryCache) Invalidate(ctx context.Context, owner string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.owners, owner)
	c.generations[owner]++
	return nil
}

// Len returns the number of live entries for owner.
func (c *MemoryCache) Len(owner string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	entries := c.owners[owner]
	c.purge(entries)
	return len(entries)
}

// purge drops expired entries. Callers hold mu.
func (c *MemoryCache) purge(entries map[string]entry) {
	now := c.now()
	for k, e := range entries {
		if !now.Before(e.expiresAt) {
			delete(entries, k)
		}
	}
}
