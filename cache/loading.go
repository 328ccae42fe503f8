package cache

import (
	"context"

	"github.com/IvanBrykalov/approxcache/internal/singleflight"
)

// LoaderFunc fetches the value for a key missing from the cache.
type LoaderFunc[K comparable, V any] func(ctx context.Context, k K) (V, error)

// Loading wraps a Cache with read-through loading. Concurrent misses for
// the same key share a single loader call.
type Loading[K comparable, V any] struct {
	Cache[K, V]

	load LoaderFunc[K, V]
	sf   singleflight.Group[K, V]
}

// NewLoading wraps c. A nil load makes GetOrLoad return ErrNoLoader on miss.
func NewLoading[K comparable, V any](c Cache[K, V], load LoaderFunc[K, V]) *Loading[K, V] {
	return &Loading[K, V]{Cache: c, load: load}
}

// GetOrLoad returns the cached value for k, or loads it, stores it and
// returns it. Loader errors are returned as is and nothing is cached.
func (l *Loading[K, V]) GetOrLoad(ctx context.Context, k K) (V, error) {
	v, ok, err := l.Get(k)
	if err != nil || ok {
		return v, err
	}
	if l.load == nil {
		var zero V
		return zero, ErrNoLoader
	}

	v, _, err = l.sf.Do(ctx, k, func(ctx context.Context) (V, error) {
		// Another flight may have filled the key while we queued.
		if v, ok, err := l.Get(k); err != nil || ok {
			return v, err
		}
		v, err := l.load(ctx, k)
		if err != nil {
			return v, err
		}
		if _, _, err := l.Put(k, v); err != nil {
			return v, err
		}
		return v, nil
	})
	return v, err
}
