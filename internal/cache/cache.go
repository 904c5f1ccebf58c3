// Package cache provides a small in-process TTL cache with an injectable
// clock so that expiry can be tested without sleeping.
package cache

import (
	"sync"
	"time"
)

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall clock.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time { return time.Now() }

// FakeClock is a manually advanced Clock for tests.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFakeClock returns a FakeClock set to now.
func NewFakeClock(now time.Time) *FakeClock {
	return &FakeClock{now: now}
}

// Now implements Clock.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type item[V any] struct {
	value   V
	expires time.Time
}

// minSweep is the size at which Set first drops expired entries.
const minSweep = 64

// TTL is a concurrency-safe map whose entries expire ttl after being set.
// A ttl of zero disables caching: Get always misses. Set drops expired
// entries whenever the map has doubled since the last sweep, so memory
// stays proportional to the live entries.
type TTL[K comparable, V any] struct {
	mu      sync.RWMutex
	items   map[K]item[V]
	ttl     time.Duration
	clock   Clock
	sweepAt int
}

// NewTTL creates a cache. A nil clock means SystemClock.
func NewTTL[K comparable, V any](ttl time.Duration, clock Clock) *TTL[K, V] {
	if clock == nil {
		clock = SystemClock{}
	}
	return &TTL[K, V]{
		items:   make(map[K]item[V]),
		ttl:     ttl,
		clock:   clock,
		sweepAt: minSweep,
	}
}

// Get returns the cached value for key if it has not expired.
func (c *TTL[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	it, ok := c.items[key]
	c.mu.RUnlock()
	if !ok || !c.clock.Now().Before(it.expires) {
		var zero V
		return zero, false
	}
	return it.value, true
}

// Set stores value under key.
func (c *TTL[K, V]) Set(key K, value V) {
	if c.ttl <= 0 {
		return
	}
	now := c.clock.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = item[V]{value: value, expires: now.Add(c.ttl)}
	if len(c.items) >= c.sweepAt {
		c.purge(now)
		c.sweepAt = max(minSweep, 2*len(c.items))
	}
}

// Delete removes key.
func (c *TTL[K, V]) Delete(key K) {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
}

// Purge drops expired entries and returns how many were removed.
func (c *TTL[K, V]) Purge() int {
	now := c.clock.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.purge(now)
}

func (c *TTL[K, V]) purge(now time.Time) int {
	n := 0
	for k, it := range c.items {
		if !now.Before(it.expires) {
			delete(c.items, k)
			n++
		}
	}
	return n
}

// Len returns the number of stored entries, expired or not.
func (c *TTL[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
