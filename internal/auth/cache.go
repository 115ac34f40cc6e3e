// ABOUTME: Bounded TTL cache for token introspection results.
// ABOUTME: Expires lazily on read; evicts the oldest tenth in a batch when full.

package auth

import (
	"math"
	"sort"
	"sync"
	"time"
)

// cacheEntry stores an introspection result and when it was cached.
type cacheEntry struct {
	result   *IntrospectionResult
	cachedAt time.Time
}

// IntrospectionCache is a bounded, TTL-based cache of introspection results
// keyed by raw bearer token. Entries expire lazily on read; there is no
// background sweep. Callers must only Put active results — a revoked token
// must never keep authenticating from cache.
//
// Eviction ranks by insertion time, not last use: introspection results are
// never re-validated on hit, so age since caching is the staleness that matters.
type IntrospectionCache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry
	ttl     time.Duration
	maxSize int
}

// NewIntrospectionCache creates a cache with the given TTL and maximum size.
func NewIntrospectionCache(ttl time.Duration, maxSize int) *IntrospectionCache {
	return &IntrospectionCache{
		entries: make(map[string]*cacheEntry),
		ttl:     ttl,
		maxSize: maxSize,
	}
}

// Get returns the cached result for a token, or false if absent or expired.
// Expired entries are deleted on read.
func (c *IntrospectionCache) Get(token string) (*IntrospectionResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[token]
	if !ok {
		return nil, false
	}
	if time.Since(entry.cachedAt) > c.ttl {
		delete(c.entries, token)
		return nil, false
	}
	return entry.result, true
}

// Put stores an introspection result for a token. If the cache is at
// capacity, the oldest tenth of entries (by cachedAt) is evicted first, so
// the size bound is never exceeded even transiently.
func (c *IntrospectionCache) Put(token string, result *IntrospectionResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[token]; !exists && len(c.entries) >= c.maxSize {
		c.evictOldest(evictionCount(c.maxSize))
	}

	c.entries[token] = &cacheEntry{
		result:   result,
		cachedAt: time.Now(),
	}
}

// Size returns the number of cached entries.
func (c *IntrospectionCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// evictOldest removes the n oldest entries by cachedAt. Must be called with mu held.
func (c *IntrospectionCache) evictOldest(n int) {
	type aged struct {
		token    string
		cachedAt time.Time
	}
	all := make([]aged, 0, len(c.entries))
	for token, entry := range c.entries {
		all = append(all, aged{token: token, cachedAt: entry.cachedAt})
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].cachedAt.Before(all[j].cachedAt)
	})

	if n > len(all) {
		n = len(all)
	}
	for _, a := range all[:n] {
		delete(c.entries, a.token)
	}
}

// evictionCount returns how many entries to evict when a cache of the given
// capacity fills up: the oldest ten percent, rounded up.
func evictionCount(maxSize int) int {
	return int(math.Ceil(float64(maxSize) * 0.1))
}
