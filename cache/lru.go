package cache

import (
	"log/slog"

	"github.com/IvanBrykalov/approxcache/internal/util"
)

const (
	// minLRUCapacity is the exclusive lower bound on LRU capacity; below it
	// the victim batch degenerates.
	minLRUCapacity = 50
	loadFactor     = 0.75
)

// LRU is the approximate-recency ("3Q") engine: one fixed-size hash table
// with a mutex per bucket, and one global eviction list under its own mutex.
//
// Reads take no lock and never reorder the list; they only stamp the
// entry's last-visit time. Every batch visits the three recency windows roll
// forward, giving victim searches a fresh threshold without a background
// clock.
type LRU[K comparable, V any] struct {
	capacity int64
	batch    int
	buckets  []lruBucket[K, V]
	list     threeQ[K, V]

	hasher  func(K) uint64
	clock   Clock
	metrics Metrics
	onEvict func(K, V)
	log     *slog.Logger

	_      util.CacheLinePad
	size   util.PaddedAtomicInt64
	visits util.PaddedAtomicInt64
	stats  counters
}

// NewLRU builds an approximate-recency cache. Capacity must exceed 50.
// The table holds capacity/0.75 buckets and is never resized; the victim
// batch (and visit window) is (capacity-4)/3.
func NewLRU[K comparable, V any](opt Options[K, V]) (*LRU[K, V], error) {
	if opt.Capacity <= minLRUCapacity {
		return nil, &ConfigError{Field: "Capacity", Value: opt.Capacity, Reason: "must be greater than 50"}
	}
	opt = opt.withDefaults()

	tableSize := int(float64(opt.Capacity) / loadFactor)
	c := &LRU[K, V]{
		capacity: int64(opt.Capacity),
		batch:    (opt.Capacity - 4) / 3,
		buckets:  make([]lruBucket[K, V], tableSize),
		hasher:   opt.Hasher,
		clock:    opt.Clock,
		metrics:  opt.Metrics,
		onEvict:  opt.OnEvict,
		log:      opt.Logger,
	}
	c.log.Debug("lru cache created",
		slog.Int("capacity", opt.Capacity),
		slog.Int("buckets", tableSize),
		slog.Int("batch", c.batch))
	return c, nil
}

// Size returns the live entry count.
func (c *LRU[K, V]) Size() int {
	if n := c.size.Load(); n > 0 {
		return int(n)
	}
	return 0
}

// Stats returns a snapshot of hit/miss/eviction counters.
func (c *LRU[K, V]) Stats() Stats { return c.stats.snapshot() }

// Get looks k up without taking any lock. A hit refreshes the entry's
// last-visit time.
func (c *LRU[K, V]) Get(k K) (V, bool, error) {
	var zero V
	if err := checkKey(k); err != nil {
		return zero, false, err
	}
	h := c.spread(k)
	if e := c.bucketFor(h).find(h, k); e != nil {
		e.lastVisit.Store(c.clock.NowUnixNano())
		c.addVisit()
		c.stats.hits.Add(1)
		c.metrics.Hit()
		return *e.val.Load(), true, nil
	}
	c.stats.misses.Add(1)
	c.metrics.Miss()
	return zero, false, nil
}

// Put inserts or replaces k. A replacement swaps the value slot in one
// atomic store. A new entry is linked into its chain under the bucket mutex
// and, after that mutex is released, onto the list head under the list
// mutex. If the live-count then exceeds capacity, a victim is evicted inline.
func (c *LRU[K, V]) Put(k K, v V) (V, bool, error) {
	var zero V
	if err := checkEntry(k, v); err != nil {
		return zero, false, err
	}
	h := c.spread(k)
	b := c.bucketFor(h)
	now := c.clock.NowUnixNano()

	b.mu.Lock()
	if e := b.find(h, k); e != nil {
		e.lastVisit.Store(now)
		old := e.val.Swap(&v)
		b.mu.Unlock()
		c.addVisit()
		return *old, true, nil
	}
	e := &lruEntry[K, V]{key: k, hash: h}
	e.val.Store(&v)
	e.lastVisit.Store(now)
	b.push(e)
	b.mu.Unlock()

	// A concurrent Remove may already have unlinked e; then add refuses it
	// and the Remove's decrement pairs with the increment below.
	c.list.add(e)
	c.addVisit()

	if c.size.Add(1) > c.capacity {
		c.evict()
	}
	c.metrics.Size(c.Size())
	return zero, false, nil
}

// Remove unlinks k from its chain, then from the eviction list.
func (c *LRU[K, V]) Remove(k K) (V, bool, error) {
	var zero V
	if err := checkKey(k); err != nil {
		return zero, false, err
	}
	h := c.spread(k)
	b := c.bucketFor(h)

	b.mu.Lock()
	e := b.find(h, k)
	if e == nil {
		b.mu.Unlock()
		return zero, false, nil
	}
	b.unlink(e)
	b.mu.Unlock()

	c.list.remove(e)
	c.size.Add(-1)
	c.metrics.Size(c.Size())
	return *e.val.Load(), true, nil
}

// evict runs victim searches until the live-count is back within capacity.
// A victim already removed by a concurrent Remove does not count; that
// Remove did its own decrement, so the loop re-checks the size.
func (c *LRU[K, V]) evict() {
	for c.size.Load() > c.capacity {
		v, steps := c.list.findVictim(c.batch)
		c.metrics.VictimSearch(steps)
		if v == nil {
			c.log.Warn("lru: over capacity with empty eviction list",
				slog.Int64("size", c.size.Load()),
				slog.Int64("capacity", c.capacity))
			return
		}
		if !c.unlinkVictim(v) {
			continue
		}
		c.size.Add(-1)
		c.stats.evicts.Add(1)
		c.metrics.Evict()
		if c.onEvict != nil {
			c.onEvict(v.key, *v.val.Load())
		}
	}
}

// unlinkVictim removes a victim (already off the list) from its chain.
// It reports false if a concurrent Remove got there first.
func (c *LRU[K, V]) unlinkVictim(v *lruEntry[K, V]) bool {
	b := c.bucketFor(v.hash)
	b.mu.Lock()
	defer b.mu.Unlock()

	if v.dead.Load() {
		return false
	}
	b.unlink(v)
	return true
}

// addVisit counts one visit and rolls the windows every batch visits.
func (c *LRU[K, V]) addVisit() {
	if n := c.visits.Add(1); n >= int64(c.batch) && c.visits.CompareAndSwap(n, 0) {
		c.list.pushWindow(c.clock.NowUnixNano())
	}
}

func (c *LRU[K, V]) spread(k K) uint32 {
	return util.SpreadXorShift(util.Fold32(c.hasher(k)))
}

func (c *LRU[K, V]) bucketFor(h uint32) *lruBucket[K, V] {
	return &c.buckets[h%uint32(len(c.buckets))]
}
