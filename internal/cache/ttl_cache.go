// Package cache holds a small in-memory TTL cache used to soften read-heavy
// lookups, such as the audit worker resolving channel mappings per hotel.
package cache

import (
	"sync"
	"time"

	"github.com/amitpo23/medici-web03012026-sub001/internal/clock"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// TTL is a map with per-entry expiry. Time flows through the injected clock
// so expiry is testable without sleeping.
type TTL[K comparable, V any] struct {
	clk clock.Clock

	mu    sync.RWMutex
	items map[K]entry[V]
}

func NewTTL[K comparable, V any](clk clock.Clock) *TTL[K, V] {
	return &TTL[K, V]{
		clk:   clk,
		items: make(map[K]entry[V]),
	}
}

// Get returns the cached value when present and not yet expired.
func (c *TTL[K, V]) Get(key K) (V, bool) {
	var zero V

	c.mu.RLock()
	item, ok := c.items[key]
	c.mu.RUnlock()
	if !ok {
		return zero, false
	}
	if !item.expiresAt.IsZero() && c.clk.Now().After(item.expiresAt) {
		c.Delete(key)
		return zero, false
	}
	return item.value, true
}

// Set stores a value for ttl. A non-positive ttl stores it without expiry.
func (c *TTL[K, V]) Set(key K, value V, ttl time.Duration) {
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = c.clk.Now().Add(ttl)
	}
	c.mu.Lock()
	c.items[key] = entry[V]{value: value, expiresAt: expiresAt}
	c.mu.Unlock()
}

func (c *TTL[K, V]) Delete(key K) {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
}
