// Package prom exports cache.Metrics signals as Prometheus metrics.
package prom

import (
	"github.com/IvanBrykalov/approxcache/cache"
	"github.com/prometheus/client_golang/prometheus"
)

// Adapter implements cache.Metrics on top of Prometheus collectors.
// All Prometheus metric types are goroutine-safe.
type Adapter struct {
	hits    prometheus.Counter
	misses  prometheus.Counter
	evicts  prometheus.Counter
	size    prometheus.Gauge
	victims prometheus.Histogram
}

// New constructs and registers the adapter's collectors.
//   - reg:         registry (nil => prometheus.DefaultRegisterer)
//   - ns, sub:     namespace and subsystem
//   - constLabels: static labels for every metric (may be nil)
func New(reg prometheus.Registerer, ns, sub string, constLabels prometheus.Labels) *Adapter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	a := &Adapter{
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "hits_total",
			Help:        "Cache hits",
			ConstLabels: constLabels,
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "misses_total",
			Help:        "Cache misses",
			ConstLabels: constLabels,
		}),
		evicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "evictions_total",
			Help:        "Entries evicted to stay within capacity",
			ConstLabels: constLabels,
		}),
		size: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "size_entries",
			Help:        "Number of live entries",
			ConstLabels: constLabels,
		}),
		victims: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "victim_search_steps",
			Help:        "Positions visited by one victim search or partition sweep",
			Buckets:     prometheus.ExponentialBuckets(1, 4, 8),
			ConstLabels: constLabels,
		}),
	}
	reg.MustRegister(a.hits, a.misses, a.evicts, a.size, a.victims)
	return a
}

// Hit increments the hit counter.
func (a *Adapter) Hit() { a.hits.Inc() }

// Miss increments the miss counter.
func (a *Adapter) Miss() { a.misses.Inc() }

// Evict increments the eviction counter.
func (a *Adapter) Evict() { a.evicts.Inc() }

// Size sets the live entry gauge.
func (a *Adapter) Size(entries int) { a.size.Set(float64(entries)) }

// VictimSearch observes the length of one victim search.
func (a *Adapter) VictimSearch(steps int) { a.victims.Observe(float64(steps)) }

var _ cache.Metrics = (*Adapter)(nil)
