// Package metrics aggregates permission decision and cache statistics
// and exports them to Prometheus.
package metrics

import (
	"sync"
	"sync/atomic"

	"github.com/daisylb/bridgekeeper/pkg/cache"
	"github.com/daisylb/bridgekeeper/pkg/cache/memorycache"
)

// Collector collects permission decision metrics. It implements
// perms.Recorder, so it can be attached to a permission backend with
// SetRecorder.
type Collector struct {
	checks  sync.Map // map[string]*uint64 - permission -> check count
	denials sync.Map // map[string]*uint64 - permission -> denied count
	filters sync.Map // map[string]*uint64 - permission -> filter count
	errors  sync.Map // map[string]*uint64 - permission -> error count

	// Cache reference (optional, for querying cache-specific metrics)
	cache cache.Cache
}

// CacheMetrics holds verdict cache performance metrics.
type CacheMetrics struct {
	Hits        uint64
	Misses      uint64
	HitRate     float64
	KeysCurrent int64
	Evictions   uint64
}

// DecisionMetrics holds permission decision metrics keyed by permission
// name.
type DecisionMetrics struct {
	CheckCounts  map[string]uint64
	DenialCounts map[string]uint64
	FilterCounts map[string]uint64
	ErrorCounts  map[string]uint64
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{}
}

// SetCache sets the cache instance for collecting cache metrics.
func (c *Collector) SetCache(cache cache.Cache) {
	c.cache = cache
}

// RecordCheck records the verdict of a boolean permission check.
func (c *Collector) RecordCheck(name string, allowed bool) {
	atomic.AddUint64(c.getOrCreateCounter(&c.checks, name), 1)
	if !allowed {
		atomic.AddUint64(c.getOrCreateCounter(&c.denials, name), 1)
	}
}

// RecordFilter records one collection filtering.
func (c *Collector) RecordFilter(name string) {
	atomic.AddUint64(c.getOrCreateCounter(&c.filters, name), 1)
}

// RecordError records a failed permission evaluation.
func (c *Collector) RecordError(name string) {
	atomic.AddUint64(c.getOrCreateCounter(&c.errors, name), 1)
}

// GetCacheMetrics returns current cache metrics.
func (c *Collector) GetCacheMetrics() *CacheMetrics {
	if c.cache == nil {
		return &CacheMetrics{}
	}

	metrics := c.cache.Metrics()
	if metrics == nil {
		return &CacheMetrics{}
	}

	result := &CacheMetrics{
		Hits:      metrics.Hits,
		Misses:    metrics.Misses,
		HitRate:   metrics.HitRate(),
		Evictions: metrics.KeysEvicted,
	}

	// Current key count is only known for the in-memory implementation.
	if memCache, ok := c.cache.(*memorycache.Cache); ok {
		result.KeysCurrent = int64(memCache.Len())
	}

	return result
}

// GetDecisionMetrics returns current permission decision metrics.
func (c *Collector) GetDecisionMetrics() *DecisionMetrics {
	result := &DecisionMetrics{
		CheckCounts:  make(map[string]uint64),
		DenialCounts: make(map[string]uint64),
		FilterCounts: make(map[string]uint64),
		ErrorCounts:  make(map[string]uint64),
	}

	collect := func(m *sync.Map, into map[string]uint64) {
		m.Range(func(key, value interface{}) bool {
			into[key.(string)] = atomic.LoadUint64(value.(*uint64))
			return true
		})
	}
	collect(&c.checks, result.CheckCounts)
	collect(&c.denials, result.DenialCounts)
	collect(&c.filters, result.FilterCounts)
	collect(&c.errors, result.ErrorCounts)

	return result
}

// getOrCreateCounter gets or creates a counter for the given key.
func (c *Collector) getOrCreateCounter(m *sync.Map, key string) *uint64 {
	val, _ := m.LoadOrStore(key, new(uint64))
	return val.(*uint64)
}
