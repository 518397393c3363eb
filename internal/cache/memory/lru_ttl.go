// Package memory provides a small in-process cache with least-recently-used
// eviction and a per-entry TTL. It backs the server's rendered-diagram cache,
// which holds at most a few hundred entries, so eviction scans the map
// instead of maintaining a linked list.
package memory

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
	touched   uint64
}

// Cache is a threadsafe LRU+TTL cache. A nil *Cache is a valid no-op cache.
type Cache[K comparable, V any] struct {
	mu         sync.Mutex
	items      map[K]*entry[V]
	maxEntries int
	ttl        time.Duration
	clock      uint64
}

// New builds a cache holding at most maxEntries live values, each expiring
// ttl after its last Set.
func New[K comparable, V any](maxEntries int, ttl time.Duration) *Cache[K, V] {
	if maxEntries <= 0 {
		maxEntries = 1
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Cache[K, V]{
		items:      make(map[K]*entry[V]),
		maxEntries: maxEntries,
		ttl:        ttl,
	}
}

func (c *Cache[K, V]) Get(key K) (V, bool) {
	var zero V
	if c == nil {
		return zero, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	ent, ok := c.items[key]
	if !ok {
		return zero, false
	}
	if time.Now().After(ent.expiresAt) {
		delete(c.items, key)
		return zero, false
	}
	c.clock++
	ent.touched = c.clock
	return ent.value, true
}

func (c *Cache[K, V]) Set(key K, value V) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clock++
	c.items[key] = &entry[V]{
		value:     value,
		expiresAt: time.Now().Add(c.ttl),
		touched:   c.clock,
	}
	if len(c.items) > c.maxEntries {
		c.evictLocked()
	}
}

func (c *Cache[K, V]) Delete(key K) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

func (c *Cache[K, V]) Clear() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[K]*entry[V])
}

// evictLocked drops expired entries first, then the least recently touched
// until the cache fits its entry budget.
func (c *Cache[K, V]) evictLocked() {
	now := time.Now()
	for k, ent := range c.items {
		if now.After(ent.expiresAt) {
			delete(c.items, k)
		}
	}
	for len(c.items) > c.maxEntries {
		var oldest K
		oldestTouch := c.clock + 1
		for k, ent := range c.items {
			if ent.touched < oldestTouch {
				oldestTouch = ent.touched
				oldest = k
			}
		}
		delete(c.items, oldest)
	}
}
