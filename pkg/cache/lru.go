// Package cache provides a small in-memory TTL cache for serialized
// FeatureCollections of closed versions. Closed versions are immutable, so
// a cached snapshot can never go stale; the TTL only bounds memory held for
// versions nobody queries anymore.
package cache

import (
	"sync"
	"time"
)

// entry holds a cached snapshot with its expiry and insertion order.
type entry struct {
	value      []byte
	expiresAt  time.Time
	insertedAt time.Time
}

// SnapshotCache is a thread-safe cache with TTL and max-size eviction.
// At capacity the oldest entry by insertion time is evicted; expired
// entries are lazily dropped on Get.
type SnapshotCache struct {
	mu      sync.Mutex
	items   map[string]*entry
	maxSize int
	ttl     time.Duration
}

// New creates a SnapshotCache with the given maximum size and TTL.
// maxSize must be >= 1; a non-positive ttl falls back to five minutes.
func New(maxSize int, ttl time.Duration) *SnapshotCache {
	if maxSize < 1 {
		maxSize = 1
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &SnapshotCache{
		items:   make(map[string]*entry, maxSize),
		maxSize: maxSize,
		ttl:     ttl,
	}
}

// Get retrieves a cached snapshot by key. Returns (nil, false) if the key
// is missing or expired.
func (c *SnapshotCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if !ok {
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		delete(c.items, key)
		return nil, false
	}
	return e.value, true
}

// Set stores a snapshot, evicting the oldest entry when at capacity.
func (c *SnapshotCache) Set(key string, value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if _, ok := c.items[key]; !ok && len(c.items) >= c.maxSize {
		c.evictOldest()
	}
	c.items[key] = &entry{
		value:      value,
		expiresAt:  now.Add(c.ttl),
		insertedAt: now,
	}
}

// Len returns the number of cached entries, including not-yet-evicted
// expired ones.
func (c *SnapshotCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// evictOldest removes the entry with the earliest insertion time.
// Caller must hold the lock.
func (c *SnapshotCache) evictOldest() {
	var oldestKey string
	var oldestAt time.Time
	for k, e := range c.items {
		if oldestKey == "" || e.insertedAt.Before(oldestAt) {
			oldestKey = k
			oldestAt = e.insertedAt
		}
	}
	if oldestKey != "" {
		delete(c.items, oldestKey)
	}
}
