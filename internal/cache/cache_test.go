package cache_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/discochess/irwin/internal/cache"
	"github.com/discochess/irwin/internal/cache/lru"
	"github.com/discochess/irwin/internal/stats"
	promstats "github.com/discochess/irwin/internal/stats/prometheus"
)

func newLRU(t *testing.T, capacity int) *lru.Strategy[bool, string] {
	t.Helper()
	s, err := lru.New[bool, string](capacity)
	if err != nil {
		t.Fatalf("lru.New() error = %v", err)
	}
	return s
}

func TestCache_GetSet(t *testing.T) {
	c := cache.New[bool, string](newLRU(t, 2), nil)

	if _, ok := c.Get(true); ok {
		t.Error("Get() should return false for missing key")
	}

	c.Set(true, "fresh")
	got, ok := c.Get(true)
	if !ok || got != "fresh" {
		t.Errorf("Get() = %q, %v, want %q, true", got, ok, "fresh")
	}

	c.Remove(true)
	if _, ok := c.Get(true); ok {
		t.Error("Get() should return false after Remove")
	}
}

func TestCache_Stats(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := cache.New[bool, string](newLRU(t, 2), promstats.New(reg))

	c.Set(false, "loaded")
	c.Get(false)
	c.Get(true)

	s := c.Stats()
	if s.Hits != 1 || s.Misses != 1 || s.Size != 1 {
		t.Errorf("Stats() = %+v, want 1 hit, 1 miss, size 1", s)
	}
	if s.HitRate() != 50 {
		t.Errorf("HitRate() = %v, want 50", s.HitRate())
	}
	if got := counterValue(t, reg, stats.MetricCacheHits); got != 1 {
		t.Errorf("%s = %v, want 1", stats.MetricCacheHits, got)
	}
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, f := range families {
		if f.GetName() == name {
			return f.GetMetric()[0].GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %s not registered", name)
	return 0
}

func TestCache_LRUEviction(t *testing.T) {
	c := cache.New[bool, string](newLRU(t, 1), nil)

	c.Set(false, "loaded")
	c.Set(true, "fresh")

	if _, ok := c.Get(false); ok {
		t.Error("Get(false) should return false after eviction")
	}
	if _, ok := c.Get(true); !ok {
		t.Error("Get(true) should return true")
	}
}

func TestStats_HitRateEmpty(t *testing.T) {
	if got := (cache.Stats{}).HitRate(); got != 0 {
		t.Errorf("HitRate() = %v, want 0", got)
	}
}

func TestLRU_InvalidCapacity(t *testing.T) {
	for _, capacity := range []int{0, -1} {
		if _, err := lru.New[bool, string](capacity); err == nil {
			t.Errorf("lru.New(%d) should return error", capacity)
		}
	}
}

// mapStrategy never evicts.
type mapStrategy map[int]string

func (m mapStrategy) Get(key int) (string, bool) { v, ok := m[key]; return v, ok }
func (m mapStrategy) Add(key int, value string) bool {
	m[key] = value
	return false
}
func (m mapStrategy) Remove(key int) bool {
	_, ok := m[key]
	delete(m, key)
	return ok
}
func (m mapStrategy) Len() int { return len(m) }

func TestCache_InjectableStrategy(t *testing.T) {
	c := cache.New[int, string](mapStrategy{}, nil)

	for i := 0; i < 10; i++ {
		c.Set(i, "v")
	}
	if c.Len() != 10 {
		t.Errorf("Len() = %d, want 10", c.Len())
	}
}

func TestCache_PeekSkipsStats(t *testing.T) {
	c := cache.New[bool, string](newLRU(t, 2), nil)
	c.Set(true, "fresh")

	if got, ok := c.Peek(true); !ok || got != "fresh" {
		t.Errorf("Peek() = %q, %v, want %q, true", got, ok, "fresh")
	}
	c.Peek(false)

	if s := c.Stats(); s.Hits != 0 || s.Misses != 0 {
		t.Errorf("Stats() = %+v, want no hits or misses", s)
	}
}
