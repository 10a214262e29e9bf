// Package cache keeps time-bounded snapshots of exchange reads.
//
// The cache is best effort: two callers that find the same entry stale both
// run the fetcher and the last write wins. Fetchers are idempotent reads, so
// this only costs an extra upstream call. Entries are never evicted.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"spotrelay/internal/logger"
)

// Category groups entries that share a TTL policy.
type Category string

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Fetcher loads a fresh value.
type Fetcher[T any] func(ctx context.Context) (T, error)

type entryKey struct {
	category Category
	key      string
}

type entry struct {
	value     any
	fetchedAt time.Time
}

// Cache stores one value per (category, key).
type Cache struct {
	clock Clock

	mu      sync.RWMutex
	entries map[entryKey]entry
}

// New builds an empty cache. A nil clock falls back to the system clock.
func New(clock Clock) *Cache {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Cache{
		clock:   clock,
		entries: make(map[entryKey]entry),
	}
}

// Get returns the cached value for (category, key) when it is younger than
// ttl, otherwise runs fetch, stores the result and returns it. Fetch errors
// are returned as-is and leave the previous entry untouched.
func Get[T any](ctx context.Context, c *Cache, category Category, key string, ttl time.Duration, fetch Fetcher[T]) (T, error) {
	var zero T
	if c == nil {
		return zero, fmt.Errorf("cache not initialized")
	}
	k := entryKey{category: category, key: key}
	if v, ok := c.lookup(k, ttl); ok {
		if typed, ok := v.(T); ok {
			return typed, nil
		}
	}
	value, err := fetch(ctx)
	if err != nil {
		return zero, err
	}
	c.store(k, value)
	logger.Debugf("[cache] refreshed %s/%s", category, key)
	return value, nil
}

func (c *Cache) lookup(k entryKey, ttl time.Duration) (any, bool) {
	c.mu.RLock()
	e, ok := c.entries[k]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.clock.Now().Sub(e.fetchedAt) >= ttl {
		return nil, false
	}
	return e.value, true
}

func (c *Cache) store(k entryKey, value any) {
	now := c.clock.Now()
	c.mu.Lock()
	c.entries[k] = entry{value: value, fetchedAt: now}
	c.mu.Unlock()
}

// Invalidate drops a single entry so the next Get refetches.
func (c *Cache) Invalidate(category Category, key string) {
	c.mu.Lock()
	delete(c.entries, entryKey{category: category, key: key})
	c.mu.Unlock()
}

// Len returns the number of stored entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
