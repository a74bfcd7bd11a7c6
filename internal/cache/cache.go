// Package cache provides a bounded in-process cache with hit/miss
// accounting. Eviction is delegated to a Strategy.
package cache

import (
	"sync/atomic"

	"github.com/discochess/irwin/internal/stats"
)

// Strategy stores entries and decides what to evict.
type Strategy[K comparable, V any] interface {
	Get(key K) (V, bool)
	// Add stores value and reports whether an entry was evicted.
	Add(key K, value V) bool
	Remove(key K) bool
	Len() int
}

// Stats contains cache statistics.
type Stats struct {
	Hits   int64
	Misses int64
	Size   int // Current number of entries
}

// HitRate returns the cache hit rate as a percentage.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total) * 100
}

// Cache is a thread-safe cache when its strategy is.
type Cache[K comparable, V any] struct {
	strategy  Strategy[K, V]
	collector stats.Collector

	hits   atomic.Int64
	misses atomic.Int64
}

// New creates a cache with the given eviction strategy.
// The collector is optional; if nil, a no-op collector is used.
func New[K comparable, V any](strategy Strategy[K, V], collector stats.Collector) *Cache[K, V] {
	if collector == nil {
		collector = stats.NewNoop()
	}
	return &Cache[K, V]{
		strategy:  strategy,
		collector: collector,
	}
}

// Get returns the cached value for key.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	val, ok := c.strategy.Get(key)
	if ok {
		c.hits.Add(1)
		c.collector.IncCounter(stats.MetricCacheHits, 1)
		return val, true
	}
	c.misses.Add(1)
	c.collector.IncCounter(stats.MetricCacheMisses, 1)
	return val, false
}

// Peek returns the cached value for key without counting a hit or miss.
func (c *Cache[K, V]) Peek(key K) (V, bool) {
	return c.strategy.Get(key)
}

// Set stores value under key.
func (c *Cache[K, V]) Set(key K, value V) {
	c.strategy.Add(key, value)
	c.collector.SetGauge(stats.MetricCacheSize, float64(c.strategy.Len()))
}

// Remove drops key from the cache.
func (c *Cache[K, V]) Remove(key K) {
	c.strategy.Remove(key)
	c.collector.SetGauge(stats.MetricCacheSize, float64(c.strategy.Len()))
}

// Stats returns current cache statistics.
func (c *Cache[K, V]) Stats() Stats {
	return Stats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Size:   c.strategy.Len(),
	}
}

// Len returns the number of items in the cache.
func (c *Cache[K, V]) Len() int {
	return c.strategy.Len()
}
