// Package cache provides a generic in-memory key/value store with per-entry
// time-based expiry. Keys are namespaced "{switch_ip}:{feature}" so all cached
// data for one device can be dropped in a single call after a write.
package cache

import (
	"strings"
	"sync"
	"time"
)

// Default TTLs per cached feature.
const (
	TTLListing    = 300 * time.Second // interface/VLAN listings
	TTLOverview   = 60 * time.Second  // device overview
	TTLCapability = 60 * time.Second  // capability sets
)

type entry[V any] struct {
	value     V
	createdAt time.Time
	expiresAt time.Time
}

// Cache is a thread-safe TTL cache. The zero value is not usable; use New.
type Cache[V any] struct {
	mu         sync.Mutex
	entries    map[string]entry[V]
	defaultTTL time.Duration

	now func() time.Time
}

// New creates a cache with the given default TTL.
func New[V any](defaultTTL time.Duration) *Cache[V] {
	return &Cache[V]{
		entries:    make(map[string]entry[V]),
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
}

// SetClock overrides the time source. Intended for tests.
func (c *Cache[V]) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// SetDefaultTTL replaces the default TTL for subsequent Set calls.
// Existing entries keep their original expiry.
func (c *Cache[V]) SetDefaultTTL(ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.defaultTTL = ttl
}

// Get returns the value for key if present and not expired.
// Expired entries are removed on read.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	if c.now().After(e.expiresAt) {
		delete(c.entries, key)
		return zero, false
	}
	return e.value, true
}

// Set stores value under key. A non-positive ttl uses the cache default.
func (c *Cache[V]) Set(key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.entries[key] = entry[V]{
		value:     value,
		createdAt: now,
		expiresAt: now.Add(ttl),
	}
}

// GetOrSet returns the cached value for key, or invokes fetch exactly once,
// stores the result, and returns it. A fetch error is returned without
// caching anything.
func (c *Cache[V]) GetOrSet(key string, ttl time.Duration, fetch func() (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	v, err := fetch()
	if err != nil {
		var zero V
		return zero, err
	}
	c.Set(key, v, ttl)
	return v, nil
}

// Invalidate removes a single key.
func (c *Cache[V]) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// InvalidatePattern removes all keys containing pattern as a substring and
// returns the number removed.
func (c *Cache[V]) InvalidatePattern(pattern string) int {
	return c.invalidateMatching(func(key string) bool {
		return strings.Contains(key, pattern)
	})
}

// InvalidatePrefix removes all keys starting with prefix and returns the
// number removed. Called with "{switch_ip}:" after any mutating operation
// succeeds so stale reads are never served for that device; anchoring at the
// key start keeps "1.2.3.4:" from matching inside "11.2.3.4:" keys.
func (c *Cache[V]) InvalidatePrefix(prefix string) int {
	return c.invalidateMatching(func(key string) bool {
		return strings.HasPrefix(key, prefix)
	})
}

func (c *Cache[V]) invalidateMatching(match func(string) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key := range c.entries {
		if match(key) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// CleanupExpired proactively removes expired entries and returns the count.
func (c *Cache[V]) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Clear removes all entries.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry[V])
}

// Stats reports entry counts for monitoring.
type Stats struct {
	TotalEntries   int `json:"total_entries"`
	ActiveEntries  int `json:"active_entries"`
	ExpiredEntries int `json:"expired_entries"`
}

// Stats returns counts of total, active, and expired entries.
func (c *Cache[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	s := Stats{TotalEntries: len(c.entries)}
	for _, e := range c.entries {
		if now.After(e.expiresAt) {
			s.ExpiredEntries++
		}
	}
	s.ActiveEntries = s.TotalEntries - s.ExpiredEntries
	return s
}

// Key builds the namespaced cache key for a switch feature.
func Key(switchIP, feature string) string {
	return switchIP + ":" + feature
}
