// Package cache provides two bounded, concurrent, in-memory key/value caches
// that approximate classical eviction policies without taking a lock on reads.
//
// Engines
//
//   - LRU ("3Q"): one shared hash table with a mutex per bucket and a single
//     global eviction list. Reads only stamp a last-visit time; the list is
//     never reordered on read. A victim search walks the list from its tail
//     and evicts the first entry older than the oldest of three rolling
//     timestamp windows.
//
//   - LFU (clock / second chance): the keyspace is split into power-of-two
//     partitions, each a self-contained table plus eviction ring under one
//     mutex. Reads bump a visit counter; a sweep walks the ring decrementing
//     counters and evicts the first entry that reaches zero.
//
// Both implement the four-operation Cache contract (Size, Get, Put, Remove).
// Neither engine supports iteration, bulk operations or resizing.
//
// Concurrency
//
// Get never blocks. Values are published with a single atomic store, so a
// reader always sees a complete old or new value. Put and Remove lock one
// bucket (LRU) or one partition (LFU); the LRU engine releases the bucket
// mutex before it takes the list mutex, so no goroutine ever holds both.
// Eviction runs inline on the goroutine whose Put crossed capacity and each
// victim search is bounded to a fixed number of steps.
//
// Recency timestamps and visit counters are updated without coordination
// between readers. Eviction order is therefore approximate.
//
// Basic usage
//
//	c, err := cache.NewLRU[string, []byte](cache.Options[string, []byte]{Capacity: 10_000})
//	if err != nil {
//	    return err
//	}
//	_, _, _ = c.Put("a", []byte("1"))
//	if v, ok, _ := c.Get("a"); ok {
//	    _ = v
//	}
//
// Partitioned frequency engine
//
//	c, err := cache.NewLFU[string, string](cache.Options[string, string]{
//	    Capacity:    1 << 20,
//	    Concurrency: 64,
//	})
//
// Loading through a cache (singleflight)
//
//	l := cache.NewLoading[string, string](c, func(ctx context.Context, k string) (string, error) {
//	    return fetch(ctx, k)
//	})
//	v, err := l.GetOrLoad(ctx, "key")
//
// Exporting metrics
//
//	m := prom.New(nil, "approxcache", "demo", nil)
//	c, err := cache.NewLRU[string, []byte](cache.Options[string, []byte]{Capacity: 10_000, Metrics: m})
package cache
