// Package prometheus provides a stats collector backed by Prometheus
// metrics. Metrics are created and registered on first use.
package prometheus

import (
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/discochess/irwin/internal/stats"
)

// Collector implements stats.Collector using Prometheus metrics.
type Collector struct {
	registry prometheus.Registerer

	mu         sync.RWMutex
	counters   map[string]prometheus.Counter
	gauges     map[string]prometheus.Gauge
	histograms map[string]prometheus.Histogram
}

var _ stats.Collector = (*Collector)(nil)

// TrainingBuckets are the histogram buckets for training durations in
// seconds, from one second to roughly four hours.
var TrainingBuckets = prometheus.ExponentialBuckets(1, 4, 8)

// New creates a new Prometheus collector.
// If registry is nil, prometheus.DefaultRegisterer is used.
func New(registry prometheus.Registerer) *Collector {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	return &Collector{
		registry:   registry,
		counters:   make(map[string]prometheus.Counter),
		gauges:     make(map[string]prometheus.Gauge),
		histograms: make(map[string]prometheus.Histogram),
	}
}

func (c *Collector) IncCounter(name string, delta int64) {
	lookup(c, c.counters, name, func() prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: stats.Help(name)})
	}).Add(float64(delta))
}

func (c *Collector) SetGauge(name string, value float64) {
	lookup(c, c.gauges, name, func() prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{Name: name, Help: stats.Help(name)})
	}).Set(value)
}

func (c *Collector) ObserveHistogram(name string, value float64) {
	lookup(c, c.histograms, name, func() prometheus.Histogram {
		buckets := prometheus.DefBuckets
		if name == stats.MetricTrainingSeconds {
			buckets = TrainingBuckets
		}
		return prometheus.NewHistogram(prometheus.HistogramOpts{Name: name, Help: stats.Help(name), Buckets: buckets})
	}).Observe(value)
}

// lookup returns the metric cached under name, creating and registering
// it on first use. A metric already registered elsewhere under the same
// name is adopted.
func lookup[M prometheus.Collector](c *Collector, metrics map[string]M, name string, create func() M) M {
	c.mu.RLock()
	m, ok := metrics[name]
	c.mu.RUnlock()
	if ok {
		return m
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if m, ok = metrics[name]; ok {
		return m
	}

	m = create()
	if err := c.registry.Register(m); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(M); ok {
				m = existing
			}
		}
	}
	metrics[name] = m
	return m
}
