// Package memorycache provides the in-memory verdict cache used by
// perms.CachedBackend: a bounded number of check verdicts with LRU
// eviction and per-entry TTL. A cached verdict is a single boolean, so
// the capacity bound is an entry count rather than a byte budget.
package memorycache

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/daisylb/bridgekeeper/pkg/cache"
)

// verdict is one cached entry: the stored value and its expiry.
type verdict struct {
	key       string
	value     interface{}
	expiresAt time.Time
}

// Cache is an LRU verdict cache with TTL expiry. It implements
// cache.Cache.
type Cache struct {
	mu         sync.Mutex
	items      map[string]*list.Element
	recency    *list.List // front = most recently used
	maxEntries int
	ttl        time.Duration

	hits        uint64
	misses      uint64
	keysAdded   uint64
	keysEvicted uint64
}

// Config holds configuration for the verdict cache.
type Config struct {
	// MaxEntries bounds the number of cached verdicts. The least
	// recently used entry is evicted when the bound is exceeded.
	MaxEntries int

	// DefaultTTL applies when Set is called with a zero TTL.
	DefaultTTL time.Duration
}

// New creates a verdict cache.
func New(config *Config) (*Cache, error) {
	if config.MaxEntries <= 0 {
		return nil, fmt.Errorf("max entries must be positive, got %d", config.MaxEntries)
	}
	return &Cache{
		items:      make(map[string]*list.Element),
		recency:    list.New(),
		maxEntries: config.MaxEntries,
		ttl:        config.DefaultTTL,
	}, nil
}

// Get retrieves a cached verdict and marks it recently used. Expired
// entries are dropped on access.
func (c *Cache) Get(ctx context.Context, key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		c.misses++
		return nil, false
	}
	v := elem.Value.(*verdict)
	if time.Now().After(v.expiresAt) {
		c.remove(elem)
		c.misses++
		return nil, false
	}
	c.recency.MoveToFront(elem)
	c.hits++
	return v.value, true
}

// Set stores a verdict. A zero ttl falls back to the configured
// default.
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.ttl
	}
	expiresAt := time.Now().Add(ttl)

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		v := elem.Value.(*verdict)
		v.value = value
		v.expiresAt = expiresAt
		c.recency.MoveToFront(elem)
		return nil
	}

	elem := c.recency.PushFront(&verdict{key: key, value: value, expiresAt: expiresAt})
	c.items[key] = elem
	c.keysAdded++

	for len(c.items) > c.maxEntries {
		oldest := c.recency.Back()
		if oldest == nil {
			break
		}
		c.remove(oldest)
		c.keysEvicted++
	}
	return nil
}

// Delete drops one verdict.
func (c *Cache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.items[key]; ok {
		c.remove(elem)
	}
	return nil
}

// Clear drops every verdict, for example after a permission-affecting
// data change.
func (c *Cache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*list.Element)
	c.recency.Init()
	return nil
}

// Close releases resources. The memory cache holds none.
func (c *Cache) Close() error { return nil }

// Metrics returns cache statistics.
func (c *Cache) Metrics() *cache.Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return &cache.Metrics{
		Hits:        c.hits,
		Misses:      c.misses,
		KeysAdded:   c.keysAdded,
		KeysEvicted: c.keysEvicted,
	}
}

// Len returns the current number of cached verdicts.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// remove must be called with the lock held.
func (c *Cache) remove(elem *list.Element) {
	c.recency.Remove(elem)
	delete(c.items, elem.Value.(*verdict).key)
}
