package cache

import (
	"sync"
	"sync/atomic"
)

// lruEntry is an intrusive node with two independent memberships: its
// bucket's hash chain and the global eviction list. Both memberships are
// created by Put and torn down together by Remove or eviction.
type lruEntry[K comparable, V any] struct {
	key  K
	hash uint32 // spread hash

	val       atomic.Pointer[V]
	lastVisit atomic.Int64 // UnixNano, written by Get without coordination

	// dead is set under the bucket mutex when the entry leaves its chain.
	// The list reads it under the list mutex to refuse a late insert.
	dead atomic.Bool

	// Hash chain. chainNext is loaded by lock-free readers; chainPrev is
	// only touched under the bucket mutex.
	chainPrev *lruEntry[K, V]
	chainNext atomic.Pointer[lruEntry[K, V]]

	// Eviction list (head = newest, tail = oldest); guarded by threeQ.mu.
	listPrev *lruEntry[K, V]
	listNext *lruEntry[K, V]
	inList   bool
}

// lruBucket is one table slot: a nil-terminated chain and the mutex that
// serializes mutation of it.
type lruBucket[K comparable, V any] struct {
	mu   sync.Mutex
	head atomic.Pointer[lruEntry[K, V]]
}

// find walks the chain without a lock. Entries unlinked concurrently keep
// their chainNext, so a reader standing on one still reaches the chain end.
func (b *lruBucket[K, V]) find(hash uint32, k K) *lruEntry[K, V] {
	for e := b.head.Load(); e != nil; e = e.chainNext.Load() {
		if e.hash == hash && e.key == k {
			return e
		}
	}
	return nil
}

// push links e at the chain head. b.mu held.
func (b *lruBucket[K, V]) push(e *lruEntry[K, V]) {
	h := b.head.Load()
	e.chainPrev = nil
	e.chainNext.Store(h)
	if h != nil {
		h.chainPrev = e
	}
	b.head.Store(e)
}

// unlink removes e from the chain and marks it dead. b.mu held.
func (b *lruBucket[K, V]) unlink(e *lruEntry[K, V]) {
	next := e.chainNext.Load()
	if e.chainPrev == nil {
		b.head.Store(next)
	} else {
		e.chainPrev.chainNext.Store(next)
	}
	if next != nil {
		next.chainPrev = e.chainPrev
	}
	e.dead.Store(true)
}

// threeQ is the global eviction list plus three rolling timestamp windows
// (t0 newest boundary, t2 oldest). An entry whose last visit is at or before
// t2 has not been touched for three windows and may be evicted.
type threeQ[K comparable, V any] struct {
	mu     sync.Mutex
	head   *lruEntry[K, V]
	tail   *lruEntry[K, V]
	walked int // steps since the last window push made by a victim walk

	t0, t1, t2 atomic.Int64
}

// pushWindow rolls the windows forward by one. Concurrent pushes may
// interleave; the windows only need to be roughly ordered.
func (q *threeQ[K, V]) pushWindow(ts int64) {
	q.t2.Store(q.t1.Load())
	q.t1.Store(q.t0.Load())
	q.t0.Store(ts)
}

// add links e at the list head unless it was removed from its chain in the
// meantime. It reports whether e was linked.
func (q *threeQ[K, V]) add(e *lruEntry[K, V]) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if e.dead.Load() {
		return false
	}
	e.listPrev = nil
	e.listNext = q.head
	if q.head != nil {
		q.head.listPrev = e
	}
	q.head = e
	if q.tail == nil {
		q.tail = e
	}
	e.inList = true
	return true
}

// remove unlinks e if it is still on the list.
func (q *threeQ[K, V]) remove(e *lruEntry[K, V]) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if e.inList {
		q.unlinkLocked(e)
	}
}

func (q *threeQ[K, V]) unlinkLocked(e *lruEntry[K, V]) {
	if e.listPrev != nil {
		e.listPrev.listNext = e.listNext
	} else {
		q.head = e.listNext
	}
	if e.listNext != nil {
		e.listNext.listPrev = e.listPrev
	} else {
		q.tail = e.listPrev
	}
	e.listPrev, e.listNext = nil, nil
	e.inList = false
}

// findVictim walks from the tail toward the head and detaches the first
// entry whose last visit is at or before the oldest window. Every batch
// steps without a hit the windows roll forward to the timestamp under the
// cursor, so the threshold catches up with the walk.
//
// The walked span (entries newer than the threshold, past the victim) is
// rotated to the head, so the next search resumes where this one stopped.
// If the walk reaches the head, the tail is taken so an over-capacity put
// always finds a victim on a non-empty list.
//
// It returns nil only when the list is empty.
func (q *threeQ[K, V]) findVictim(batch int) (victim *lruEntry[K, V], steps int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	threshold := q.t2.Load()
	for cur := q.tail; cur != nil; cur = cur.listPrev {
		steps++
		ts := cur.lastVisit.Load()
		if ts <= threshold {
			q.rotateAfter(cur)
			q.unlinkLocked(cur)
			return cur, steps
		}
		q.walked++
		if q.walked >= batch {
			q.walked = 0
			q.pushWindow(ts)
			threshold = q.t2.Load()
		}
	}
	if q.tail == nil {
		return nil, steps
	}
	victim = q.tail
	q.unlinkLocked(victim)
	return victim, steps
}

// rotateAfter moves the span (cur, tail] to the head of the list so that
// cur becomes the tail. q.mu held.
func (q *threeQ[K, V]) rotateAfter(cur *lruEntry[K, V]) {
	if cur == q.tail {
		return
	}
	first, last := cur.listNext, q.tail

	cur.listNext = nil
	first.listPrev = nil
	q.tail = cur

	last.listNext = q.head
	q.head.listPrev = last
	q.head = first
}
