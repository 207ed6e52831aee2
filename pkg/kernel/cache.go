package kernel

import "sync"

// FIFOCache is a fixed-size cache with first-in-first-out eviction:
// when a Put would exceed the configured limit, the oldest surviving
// key is dropped, regardless of how recently it was read. This mirrors
// the compiled-workflow and resolved-step caches described in §5 —
// neither needs recency-aware eviction since workflow documents and
// resolved loop bodies don't exhibit meaningful access skew once
// compiled.
type FIFOCache[V any] struct {
	mu    sync.Mutex
	limit int
	order []string
	items map[string]V
}

// NewFIFOCache returns a cache bounded to limit entries. A non-positive
// limit means unbounded.
func NewFIFOCache[V any](limit int) *FIFOCache[V] {
	return &FIFOCache[V]{
		limit: limit,
		items: make(map[string]V),
	}
}

// Get returns the cached value for key, if present.
func (c *FIFOCache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.items[key]
	return v, ok
}

// Put inserts or overwrites key's value, evicting the oldest entry if
// the cache is at capacity and key is new.
func (c *FIFOCache[V]) Put(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.items[key]; !exists {
		c.order = append(c.order, key)
		if c.limit > 0 && len(c.order) > c.limit {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.items, oldest)
		}
	}
	c.items[key] = value
}

// Len reports the current entry count.
func (c *FIFOCache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
