package cache

// Cache is the contract shared by both engines.
// All methods are safe for concurrent use by multiple goroutines.
//
// A key or value whose dynamic value is nil (nil interface, pointer, map,
// slice, chan or func) is rejected with an error wrapping ErrInvalidArgument
// before anything is mutated.
type Cache[K comparable, V any] interface {
	// Size returns a snapshot of the live entry count. Under concurrent
	// writers it may be briefly stale but converges to the true count.
	Size() int

	// Get returns the value for k and whether it was present. It never blocks.
	Get(k K) (V, bool, error)

	// Put associates v with k and returns the previous value, if any.
	// Inserting a new key may evict another entry as a side effect.
	Put(k K, v V) (old V, replaced bool, err error)

	// Remove deletes k and returns the removed value, if any.
	Remove(k K) (old V, removed bool, err error)
}

// Stats is a snapshot of an engine's lifetime counters.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
}

var (
	_ Cache[string, int] = (*LRU[string, int])(nil)
	_ Cache[string, int] = (*LFU[string, int])(nil)
)
