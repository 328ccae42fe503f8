package cache

import "github.com/IvanBrykalov/approxcache/internal/util"

// Metrics exposes cache-level observability hooks.
// Implementations must be safe for concurrent use; hooks are called on the
// hot path and never under an engine lock.
type Metrics interface {
	Hit()
	Miss()
	// Evict is signalled once per entry removed by capacity eviction.
	Evict()
	// Size reports the live-count after a mutation.
	Size(entries int)
	// VictimSearch reports how many list/ring positions one victim search
	// (LRU) or one partition sweep (LFU) visited.
	VictimSearch(steps int)
}

// NoopMetrics is the default Metrics implementation and does nothing.
type NoopMetrics struct{}

func (NoopMetrics) Hit()             {}
func (NoopMetrics) Miss()            {}
func (NoopMetrics) Evict()           {}
func (NoopMetrics) Size(int)         {}
func (NoopMetrics) VictimSearch(int) {}

var _ Metrics = NoopMetrics{}

// counters are the per-engine lifetime counters behind Stats.
type counters struct {
	hits   util.PaddedAtomicInt64
	misses util.PaddedAtomicInt64
	evicts util.PaddedAtomicInt64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evicts.Load(),
	}
}
