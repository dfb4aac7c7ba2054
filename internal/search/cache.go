package search

import (
	"sync"
	"time"

	"github.com/user/parley/internal/clock"
	"github.com/user/parley/pkg/backend"
)

type cacheEntry struct {
	results    backend.SearchResults
	insertedAt time.Time
}

// Cache holds search results keyed by request hash. Entries live for a
// TTL from insertion. Past the size bound the oldest-inserted entry is
// evicted: eviction order is strictly insertion order, and a cache hit
// does not refresh an entry's position.
type Cache struct {
	mu         sync.Mutex
	clk        clock.Clock
	ttl        time.Duration
	maxEntries int
	entries    map[string]cacheEntry
	order      []string
}

func NewCache(clk clock.Clock, ttl time.Duration, maxEntries int) *Cache {
	return &Cache{
		clk:        clk,
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[string]cacheEntry),
	}
}

func cloneResults(r backend.SearchResults) backend.SearchResults {
	r.Hits = append([]backend.SearchHit(nil), r.Hits...)
	return r
}

// Get returns the cached results for key if the entry is still fresh.
// An expired entry is dropped on access.
func (c *Cache) Get(key string) (backend.SearchResults, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return backend.SearchResults{}, false
	}
	if c.clk.Now().Sub(e.insertedAt) >= c.ttl {
		c.removeLocked(key)
		return backend.SearchResults{}, false
	}
	return cloneResults(e.results), true
}

// Put stores results under key, evicting the oldest-inserted entries
// past the size bound. Re-putting an existing key counts as a new
// insertion.
func (c *Cache) Put(key string, results backend.SearchResults) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; ok {
		c.removeFromOrderLocked(key)
	}
	c.entries[key] = cacheEntry{results: cloneResults(results), insertedAt: c.clk.Now()}
	c.order = append(c.order, key)

	for c.maxEntries > 0 && len(c.entries) > c.maxEntries {
		oldest := c.order[0]
		c.removeLocked(oldest)
	}
}

// Invalidate drops the entry for key, if any.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(key)
}

// InvalidateAll empties the cache.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
	c.order = nil
}

// Sweep removes every expired entry and reports how many were dropped.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clk.Now()
	removed := 0
	for _, key := range append([]string(nil), c.order...) {
		if e, ok := c.entries[key]; ok && now.Sub(e.insertedAt) >= c.ttl {
			c.removeLocked(key)
			removed++
		}
	}
	return removed
}

// SetLimits updates the TTL and size bound, evicting oldest entries if
// the new bound is smaller.
func (c *Cache) SetLimits(ttl time.Duration, maxEntries int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ttl = ttl
	c.maxEntries = maxEntries
	for c.maxEntries > 0 && len(c.entries) > c.maxEntries {
		c.removeLocked(c.order[0])
	}
}

// Len returns the number of entries held, expired ones included.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) removeLocked(key string) {
	if _, ok := c.entries[key]; !ok {
		return
	}
	delete(c.entries, key)
	c.removeFromOrderLocked(key)
}

func (c *Cache) removeFromOrderLocked(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}
