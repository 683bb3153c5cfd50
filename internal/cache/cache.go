// Package cache provides a generic in-memory TTL cache.
package cache

import (
	"context"
	"sync"
	"time"
)

type item[V any] struct {
	value     V
	expiresAt time.Time
}

func (i item[V]) expired(now time.Time) bool {
	return !i.expiresAt.IsZero() && !now.Before(i.expiresAt)
}

type options struct {
	now func() time.Time
}

// Option configures a Cache.
type Option func(*options)

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// Cache maps keys to values that expire. Expired entries are dropped on read,
// by DeleteExpired, and by the background janitor when one is running.
type Cache[K comparable, V any] struct {
	mu    sync.RWMutex
	items map[K]item[V]
	now   func() time.Time

	stop      chan struct{}
	closeOnce sync.Once
}

// New creates a cache. A positive cleanupInterval starts a janitor goroutine
// that must be stopped with Close.
func New[K comparable, V any](cleanupInterval time.Duration, opts ...Option) *Cache[K, V] {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Cache[K, V]{
		items: make(map[K]item[V]),
		now:   o.now,
		stop:  make(chan struct{}),
	}
	if cleanupInterval > 0 {
		go c.janitor(cleanupInterval)
	}
	return c
}

// Get returns a live value. An expired entry is removed and reported as a miss.
func (c *Cache[K, V]) Get(_ context.Context, key K) (V, bool) {
	c.mu.RLock()
	it, ok := c.items[key]
	c.mu.RUnlock()

	var zero V
	if !ok {
		return zero, false
	}
	if it.expired(c.now()) {
		c.mu.Lock()
		if cur, still := c.items[key]; still && cur.expired(c.now()) {
			delete(c.items, key)
		}
		c.mu.Unlock()
		return zero, false
	}
	return it.value, true
}

// Set stores value for ttl. A non-positive ttl never expires.
func (c *Cache[K, V]) Set(ctx context.Context, key K, value V, ttl time.Duration) {
	var deadline time.Time
	if ttl > 0 {
		deadline = c.now().Add(ttl)
	}
	c.SetUntil(ctx, key, value, deadline)
}

// SetUntil stores value until deadline. A zero deadline never expires.
func (c *Cache[K, V]) SetUntil(_ context.Context, key K, value V, deadline time.Time) {
	c.mu.Lock()
	c.items[key] = item[V]{value: value, expiresAt: deadline}
	c.mu.Unlock()
}

// Delete removes key.
func (c *Cache[K, V]) Delete(_ context.Context, key K) {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
}

// DeleteExpired removes every expired entry and returns how many were removed.
func (c *Cache[K, V]) DeleteExpired() int {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for k, it := range c.items {
		if it.expired(now) {
			delete(c.items, k)
			removed++
		}
	}
	return removed
}

// Values returns a copy of all live values in no particular order.
func (c *Cache[K, V]) Values() []V {
	now := c.now()

	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]V, 0, len(c.items))
	for _, it := range c.items {
		if !it.expired(now) {
			out = append(out, it.value)
		}
	}
	return out
}

// Len returns the number of stored entries, including expired ones not yet purged.
func (c *Cache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Close stops the janitor. It is safe to call more than once.
func (c *Cache[K, V]) Close() {
	c.closeOnce.Do(func() { close(c.stop) })
}

func (c *Cache[K, V]) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.DeleteExpired()
		case <-c.stop:
			return
		}
	}
}
