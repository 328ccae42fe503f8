// Package singleflight coalesces concurrent calls that share a key.
package singleflight

import (
	"context"
	"fmt"
	"sync"
)

// Group runs at most one fn per key at a time; concurrent callers for the
// same key wait for and share that result. The zero value is ready to use.
type Group[K comparable, V any] struct {
	mu sync.Mutex
	m  map[K]*call[V]
}

type call[V any] struct {
	done chan struct{} // closed after val/err are set
	val  V
	err  error
}

// PanicError is returned to every waiter when the leader's fn panics.
type PanicError struct{ Value any }

func (p *PanicError) Error() string { return fmt.Sprintf("singleflight: fn panicked: %v", p.Value) }

// Do runs fn for key unless a call is already in flight, in which case it
// waits for that call. shared reports whether the result came from another
// caller's fn.
//
// A follower whose ctx ends returns ctx.Err() without affecting the leader.
// The leader passes its own ctx to fn.
func (g *Group[K, V]) Do(ctx context.Context, key K, fn func(context.Context) (V, error)) (v V, shared bool, err error) {
	g.mu.Lock()
	if g.m == nil {
		g.m = make(map[K]*call[V])
	}
	if c, ok := g.m[key]; ok {
		g.mu.Unlock()
		select {
		case <-c.done:
			return c.val, true, c.err
		case <-ctx.Done():
			var zero V
			return zero, true, ctx.Err()
		}
	}
	c := &call[V]{done: make(chan struct{})}
	g.m[key] = c
	g.mu.Unlock()

	g.run(ctx, key, c, fn)
	return c.val, false, c.err
}

func (g *Group[K, V]) run(ctx context.Context, key K, c *call[V], fn func(context.Context) (V, error)) {
	defer func() {
		if r := recover(); r != nil {
			c.err = &PanicError{Value: r}
		}
		close(c.done)

		g.mu.Lock()
		delete(g.m, key)
		g.mu.Unlock()
	}()
	c.val, c.err = fn(ctx)
}
