package cache

import (
	"context"
	"math/rand"
	"runtime"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// T goroutines inserting N distinct keys below capacity end with Size()==N.
func TestRace_NoDoubleCounting(t *testing.T) {
	for _, p := range policies {
		t.Run(p.String(), func(t *testing.T) {
			const (
				workers = 8
				perW    = 1000
			)
			c := newTestCache[string, int](t, p, 16_384)

			var g errgroup.Group
			for w := 0; w < workers; w++ {
				g.Go(func() error {
					for i := 0; i < perW; i++ {
						if _, _, err := c.Put("w"+strconv.Itoa(w)+":"+strconv.Itoa(i), i); err != nil {
							return err
						}
					}
					return nil
				})
			}
			require.NoError(t, g.Wait())
			assert.Equal(t, workers*perW, c.Size())

			for w := 0; w < workers; w++ {
				for i := 0; i < perW; i++ {
					v, ok, _ := c.Get("w" + strconv.Itoa(w) + ":" + strconv.Itoa(i))
					require.True(t, ok)
					require.Equal(t, i, v)
				}
			}
		})
	}
}

// A mixed Put/Get/Remove workload over a keyspace larger than capacity.
// Should pass under -race; afterwards the live-count matches the
// structures exactly.
func TestRace_MixedWorkload(t *testing.T) {
	for _, p := range policies {
		t.Run(p.String(), func(t *testing.T) {
			const capacity = 2048
			c := newTestCache[string, []byte](t, p, capacity)

			workers := 4 * runtime.GOMAXPROCS(0)
			keyspace := 10 * capacity
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()

			g, ctx := errgroup.WithContext(ctx)
			for w := 0; w < workers; w++ {
				g.Go(func() error {
					r := rand.New(rand.NewSource(int64(w) * 9973))
					for ctx.Err() == nil {
						k := "k:" + strconv.Itoa(r.Intn(keyspace))
						var err error
						switch n := r.Intn(100); {
						case n < 10:
							_, _, err = c.Remove(k)
						case n < 40:
							_, _, err = c.Put(k, []byte(k))
						default:
							var v []byte
							var ok bool
							v, ok, err = c.Get(k)
							if ok && string(v) != k {
								t.Errorf("key %q returned %q", k, v)
							}
						}
						if err != nil {
							return err
						}
					}
					return nil
				})
			}
			require.NoError(t, g.Wait())

			assert.LessOrEqual(t, c.Size(), capacity)
			switch e := c.(type) {
			case *LRU[string, []byte]:
				chain, list := lruCounts(e)
				assert.Equal(t, e.Size(), chain)
				assert.Equal(t, e.Size(), list)
			case *LFU[string, []byte]:
				assert.Equal(t, e.Size(), sumSegments(e))
			}
		})
	}
}

// Readers never observe a torn or foreign value while writers replace it.
func TestRace_ValuePublication(t *testing.T) {
	for _, p := range policies {
		t.Run(p.String(), func(t *testing.T) {
			type payload struct{ a, b int }
			c := newTestCache[int, payload](t, p, 2048)
			for k := 0; k < 64; k++ {
				_, _, _ = c.Put(k, payload{k, k})
			}

			var wg sync.WaitGroup
			stop := make(chan struct{})
			for w := 0; w < 4; w++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for i := 0; ; i++ {
						select {
						case <-stop:
							return
						default:
						}
						k := i % 64
						_, _, _ = c.Put(k, payload{k + i*64, k + i*64})
					}
				}()
			}
			for i := 0; i < 200_000; i++ {
				k := i % 64
				v, ok, _ := c.Get(k)
				require.True(t, ok)
				require.Equal(t, v.a, v.b, "torn value")
				require.Equal(t, k, v.a%64, "value from another key")
			}
			close(stop)
			wg.Wait()
		})
	}
}

func lruCounts[K comparable, V any](c *LRU[K, V]) (chain, list int) {
	for i := range c.buckets {
		for e := c.buckets[i].head.Load(); e != nil; e = e.chainNext.Load() {
			chain++
		}
	}
	for e := c.list.head; e != nil; e = e.listNext {
		list++
	}
	return chain, list
}
