package cache

import (
	"fmt"
	"log/slog"

	"github.com/IvanBrykalov/approxcache/internal/util"
)

const (
	minSegments = 16
	maxSegments = 1 << 14
	// minSegmentSlots is the smallest per-partition table.
	minSegmentSlots = 1 << 7
)

// LFU is the partitioned approximate-frequency (clock / second-chance)
// engine. The keyspace is split into a power-of-two number of partitions,
// each with its own table, clock ring and mutex, so writers on different
// partitions never contend.
//
// One spread hash serves two lookups: its high bits pick the partition and
// its low bits pick the bucket inside it.
type LFU[K comparable, V any] struct {
	capacity int64
	segments []*segment[K, V]
	segMask  uint32
	segShift uint

	hasher  func(K) uint64
	metrics Metrics
	onEvict func(K, V)
	log     *slog.Logger

	_          util.CacheLinePad
	size       util.PaddedAtomicInt64
	nextVictim util.PaddedAtomicUint32
	stats      counters
}

// NewLFU builds a partitioned frequency cache.
//
// The partition count is Concurrency rounded up to a power of two and
// clamped to [16, 16384]. Each partition gets the next power of two of
// capacity/(partitions*0.75) slots; construction fails if that is below 128.
func NewLFU[K comparable, V any](opt Options[K, V]) (*LFU[K, V], error) {
	if opt.Capacity <= 0 {
		return nil, &ConfigError{Field: "Capacity", Value: opt.Capacity, Reason: "must be positive"}
	}
	opt = opt.withDefaults()

	parts := partitionCount(opt.Concurrency)
	want := int(float64(opt.Capacity)/(float64(parts)*loadFactor)) + 1
	if want < minSegmentSlots {
		return nil, &ConfigError{
			Field:  "Capacity",
			Value:  opt.Capacity,
			Reason: fmt.Sprintf("must be greater than %d for %d partitions", parts*minSegmentSlots, parts),
		}
	}
	slots := int(util.NextPow2(uint64(want)))

	c := &LFU[K, V]{
		capacity: int64(opt.Capacity),
		segments: make([]*segment[K, V], parts),
		segMask:  uint32(parts - 1),
		segShift: 32 - util.Log2(uint64(parts)),
		hasher:   opt.Hasher,
		metrics:  opt.Metrics,
		onEvict:  opt.OnEvict,
		log:      opt.Logger,
	}
	for i := range c.segments {
		c.segments[i] = newSegment[K, V](slots)
	}
	c.log.Debug("lfu cache created",
		slog.Int("capacity", opt.Capacity),
		slog.Int("partitions", parts),
		slog.Int("slots", slots))
	return c, nil
}

// Size returns the live entry count.
func (c *LFU[K, V]) Size() int {
	if n := c.size.Load(); n > 0 {
		return int(n)
	}
	return 0
}

// Stats returns a snapshot of hit/miss/eviction counters.
func (c *LFU[K, V]) Stats() Stats { return c.stats.snapshot() }

// Partitions returns the number of partitions.
func (c *LFU[K, V]) Partitions() int { return len(c.segments) }

// Get looks k up without taking any lock; a hit bumps the visit counter.
func (c *LFU[K, V]) Get(k K) (V, bool, error) {
	var zero V
	if err := checkKey(k); err != nil {
		return zero, false, err
	}
	h := c.spread(k)
	if e := c.segmentFor(h).find(h, k); e != nil {
		bumpVisits(e)
		c.stats.hits.Add(1)
		c.metrics.Hit()
		return *e.val.Load(), true, nil
	}
	c.stats.misses.Add(1)
	c.metrics.Miss()
	return zero, false, nil
}

// Put inserts or replaces k under its partition mutex. Crossing capacity
// triggers round-robin partition sweeps until one evicts.
func (c *LFU[K, V]) Put(k K, v V) (V, bool, error) {
	var zero V
	if err := checkEntry(k, v); err != nil {
		return zero, false, err
	}
	h := c.spread(k)
	if old, ok := c.segmentFor(h).put(h, k, &v); ok {
		return *old, true, nil
	}
	if c.size.Add(1) > c.capacity {
		c.evict()
	}
	c.metrics.Size(c.Size())
	return zero, false, nil
}

// Remove unlinks k from its partition.
func (c *LFU[K, V]) Remove(k K) (V, bool, error) {
	var zero V
	if err := checkKey(k); err != nil {
		return zero, false, err
	}
	h := c.spread(k)
	old, ok := c.segmentFor(h).remove(h, k)
	if !ok {
		return zero, false, nil
	}
	c.size.Add(-1)
	c.metrics.Size(c.Size())
	return *old, true, nil
}

// evict sweeps partitions round-robin until one yields a victim. Each sweep
// is bounded; a sweep without a victim leaves its cursor where it stopped,
// so repeated passes make progress. The loop also ends if concurrent
// removals bring the cache back under capacity, or after a full round of
// empty partitions.
func (c *LFU[K, V]) evict() {
	empty := 0
	for c.size.Load() > c.capacity {
		idx := c.nextVictim.Add(1) - 1
		v, steps := c.segments[idx&c.segMask].sweep()
		c.metrics.VictimSearch(steps)
		if v == nil {
			if steps > 0 {
				empty = 0
				continue
			}
			if empty++; empty >= len(c.segments) {
				c.log.Warn("lfu: over capacity with every partition empty",
					slog.Int64("size", c.size.Load()),
					slog.Int64("capacity", c.capacity))
				return
			}
			continue
		}
		c.size.Add(-1)
		c.stats.evicts.Add(1)
		c.metrics.Evict()
		if c.onEvict != nil {
			c.onEvict(v.key, *v.val.Load())
		}
		return
	}
}

// partitionCount rounds a concurrency hint up to a power of two within
// [minSegments, maxSegments].
func partitionCount(hint int) int {
	return int(util.NextPow2(uint64(util.Clamp(hint, minSegments, maxSegments))))
}

func (c *LFU[K, V]) spread(k K) uint32 {
	return util.SpreadAvalanche(util.Fold32(c.hasher(k)))
}

func (c *LFU[K, V]) segmentFor(h uint32) *segment[K, V] {
	return c.segments[(h>>c.segShift)&c.segMask]
}
