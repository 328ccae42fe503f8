package cache

import (
	"math"
	"sync"
	"sync/atomic"
)

// lfuEntry is an intrusive node living in one bucket chain and one clock
// ring of its partition. Sentinels use the same type with a zero key.
type lfuEntry[K comparable, V any] struct {
	hash uint32
	key  K
	val  atomic.Pointer[V]

	// visits is bumped by Get without a lock and decremented by sweeps.
	visits atomic.Int32

	// Circular hash chain anchored at the bucket sentinel. chainNext is
	// loaded by lock-free readers; chainPrev is only touched under the
	// partition mutex.
	chainPrev *lfuEntry[K, V]
	chainNext atomic.Pointer[lfuEntry[K, V]]

	// Clock ring, guarded by the partition mutex.
	ringPrev *lfuEntry[K, V]
	ringNext *lfuEntry[K, V]
}

func newSentinel[K comparable, V any]() *lfuEntry[K, V] {
	s := &lfuEntry[K, V]{}
	s.chainPrev = s
	s.chainNext.Store(s)
	return s
}

// segment is one independently locked partition: a sentinel-headed table
// and a sentinel-headed clock ring covered by a single mutex.
type segment[K comparable, V any] struct {
	mu    sync.Mutex
	table []*lfuEntry[K, V]
	mask  uint32
	clock *lfuEntry[K, V] // ring sentinel; its position is the sweep cursor
	live  int             // guarded by mu
}

func newSegment[K comparable, V any](slots int) *segment[K, V] {
	s := &segment[K, V]{
		table: make([]*lfuEntry[K, V], slots),
		mask:  uint32(slots - 1),
		clock: &lfuEntry[K, V]{},
	}
	for i := range s.table {
		s.table[i] = newSentinel[K, V]()
	}
	s.clock.ringPrev = s.clock
	s.clock.ringNext = s.clock
	return s
}

func (s *segment[K, V]) entryFor(hash uint32) *lfuEntry[K, V] {
	return s.table[hash&s.mask]
}

// find walks the bucket chain without a lock. Unlinked entries keep their
// chainNext, which always leads back to the sentinel.
func (s *segment[K, V]) find(hash uint32, k K) *lfuEntry[K, V] {
	head := s.entryFor(hash)
	for e := head.chainNext.Load(); e != head; e = e.chainNext.Load() {
		if e.hash == hash && e.key == k {
			return e
		}
	}
	return nil
}

// put replaces the value of an existing entry or links a new one with one
// visit. It returns the previous value when k was present.
func (s *segment[K, V]) put(hash uint32, k K, v *V) (*V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e := s.find(hash, k); e != nil {
		bumpVisits(e)
		return e.val.Swap(v), true
	}

	e := &lfuEntry[K, V]{hash: hash, key: k}
	e.visits.Store(1)
	e.val.Store(v)

	head := s.entryFor(hash)
	first := head.chainNext.Load()
	e.chainPrev = head
	e.chainNext.Store(first)
	first.chainPrev = e
	head.chainNext.Store(e)

	// New entries go right after the cursor, the last position a sweep reaches.
	ringInsertAfter(e, s.clock)
	s.live++
	return nil, false
}

// remove unlinks k from both structures and returns its value.
func (s *segment[K, V]) remove(hash uint32, k K) (*V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.find(hash, k)
	if e == nil {
		return nil, false
	}
	s.chainUnlink(e)
	ringUnlink(e)
	return e.val.Load(), true
}

// size returns the live entries of this partition.
func (s *segment[K, V]) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live
}

// sweep runs one clock pass from the cursor backwards, decrementing visit
// counters, and evicts the first entry that reaches zero. A pass visits at
// most live/3+3 entries; when the cap is hit the cursor is parked at the
// current position so the next pass resumes there.
//
// The victim, if any, has left both its chain and the ring when sweep
// returns. steps is the number of entries examined.
func (s *segment[K, V]) sweep() (victim *lfuEntry[K, V], steps int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	limit := s.live/3 + 3
	for cur := s.clock.ringPrev; cur != s.clock; cur = cur.ringPrev {
		if steps == limit {
			ringUnlink(s.clock)
			ringInsertAfter(s.clock, cur)
			return nil, steps
		}
		steps++

		if cur.visits.Add(-1) > 0 {
			continue
		}
		s.chainUnlink(cur)
		if cur.ringNext == s.clock {
			ringUnlink(cur)
		} else {
			// The cursor takes the victim's slot so the walked span is not
			// swept again on the next pass.
			ringUnlink(s.clock)
			s.clock.ringPrev, s.clock.ringNext = cur.ringPrev, cur.ringNext
			cur.ringPrev.ringNext = s.clock
			cur.ringNext.ringPrev = s.clock
			cur.ringPrev, cur.ringNext = nil, nil
		}
		return cur, steps
	}
	return nil, steps
}

// chainUnlink removes e from its chain; e.chainNext is left intact for
// readers still standing on e. s.mu held.
func (s *segment[K, V]) chainUnlink(e *lfuEntry[K, V]) {
	next := e.chainNext.Load()
	e.chainPrev.chainNext.Store(next)
	next.chainPrev = e.chainPrev
	s.live--
}

func ringInsertAfter[K comparable, V any](e, after *lfuEntry[K, V]) {
	e.ringPrev = after
	e.ringNext = after.ringNext
	after.ringNext.ringPrev = e
	after.ringNext = e
}

func ringUnlink[K comparable, V any](e *lfuEntry[K, V]) {
	e.ringPrev.ringNext = e.ringNext
	e.ringNext.ringPrev = e.ringPrev
}

// bumpVisits counts a hit, saturating instead of wrapping negative.
func bumpVisits[K comparable, V any](e *lfuEntry[K, V]) {
	if e.visits.Load() < math.MaxInt32 {
		e.visits.Add(1)
	}
}
