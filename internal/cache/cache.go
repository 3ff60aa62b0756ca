// Package cache provides a TTL-keyed store of prior step outputs.
package cache

import (
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const DefaultMaxSize = 256

type entry struct {
	value    string
	storedAt time.Time
	ttl      time.Duration
}

// Cache is a bounded LRU with a per-entry TTL. A Get after expiry behaves
// exactly like a Get for a key that was never inserted. Last-writer-wins per
// key; safe for concurrent readers and writers.
type Cache struct {
	lru *lru.Cache[string, entry]
	now func() time.Time
}

// New creates a cache holding at most maxSize entries.
func New(maxSize int) (*Cache, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	inner, err := lru.New[string, entry](maxSize)
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}
	return &Cache{lru: inner, now: time.Now}, nil
}

// Get returns the value for key, or miss when absent or expired. An expired
// entry is removed on the way out.
func (c *Cache) Get(key string) (string, bool) {
	e, ok := c.lru.Get(key)
	if !ok {
		return "", false
	}
	if e.ttl > 0 && c.now().Sub(e.storedAt) >= e.ttl {
		c.lru.Remove(key)
		return "", false
	}
	return e.value, true
}

// Put stores value under key, overwriting unconditionally. A non-positive ttl
// means the entry never expires (it can still be evicted by the LRU bound).
func (c *Cache) Put(key, value string, ttl time.Duration) {
	c.lru.Add(key, entry{value: value, storedAt: c.now(), ttl: ttl})
}

// Len returns the number of live entries, counting not-yet-collected expired ones.
func (c *Cache) Len() int { return c.lru.Len() }
