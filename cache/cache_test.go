package cache

import (
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tickClock advances by one nanosecond per read, so every stamp is distinct
// and ordered by call sequence.
type tickClock struct{ t atomic.Int64 }

func (c *tickClock) NowUnixNano() int64 { return c.t.Add(1) }

// recMetrics records signals for assertions; safe for concurrent use.
type recMetrics struct {
	hits, misses, evicts atomic.Int64
	searches             atomic.Int64
	maxSteps             atomic.Int64
	lastSize             atomic.Int64
}

func (m *recMetrics) Hit()             { m.hits.Add(1) }
func (m *recMetrics) Miss()            { m.misses.Add(1) }
func (m *recMetrics) Evict()           { m.evicts.Add(1) }
func (m *recMetrics) Size(entries int) { m.lastSize.Store(int64(entries)) }
func (m *recMetrics) VictimSearch(steps int) {
	m.searches.Add(1)
	for {
		cur := m.maxSteps.Load()
		if int64(steps) <= cur || m.maxSteps.CompareAndSwap(cur, int64(steps)) {
			return
		}
	}
}

var policies = []Policy{PolicyLRU, PolicyLFU}

// newTestCache builds an engine with a capacity both engines accept
// (the LFU needs at least 16*128*0.75 entries).
func newTestCache[K comparable, V any](t testing.TB, p Policy, capacity int) Cache[K, V] {
	t.Helper()
	c, err := New[K, V](Options[K, V]{Policy: p, Capacity: capacity, Concurrency: 16})
	require.NoError(t, err)
	return c
}

func TestContract_RoundTripUpdateRemove(t *testing.T) {
	t.Parallel()

	for _, p := range policies {
		t.Run(p.String(), func(t *testing.T) {
			t.Parallel()

			c := newTestCache[string, int](t, p, 2048)
			assert.Equal(t, 0, c.Size())

			old, replaced, err := c.Put("a", 1)
			require.NoError(t, err)
			assert.False(t, replaced)
			assert.Zero(t, old)

			v, ok, err := c.Get("a")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, 1, v)

			old, replaced, err = c.Put("a", 2)
			require.NoError(t, err)
			assert.True(t, replaced)
			assert.Equal(t, 1, old)
			assert.Equal(t, 1, c.Size(), "update must not change size")

			v, ok, _ = c.Get("a")
			require.True(t, ok)
			assert.Equal(t, 2, v)

			old, removed, err := c.Remove("a")
			require.NoError(t, err)
			assert.True(t, removed)
			assert.Equal(t, 2, old)
			assert.Equal(t, 0, c.Size())

			_, ok, _ = c.Get("a")
			assert.False(t, ok)

			_, removed, err = c.Remove("a")
			require.NoError(t, err)
			assert.False(t, removed)
			assert.Equal(t, 0, c.Size())
		})
	}
}

func TestContract_NilRejection(t *testing.T) {
	t.Parallel()

	for _, p := range policies {
		t.Run(p.String(), func(t *testing.T) {
			t.Parallel()

			c := newTestCache[*string, []byte](t, p, 2048)
			k := new(string)

			_, _, err := c.Get(nil)
			require.ErrorIs(t, err, ErrInvalidArgument)

			_, _, err = c.Put(nil, []byte("v"))
			require.ErrorIs(t, err, ErrInvalidArgument)

			_, _, err = c.Put(k, nil)
			require.ErrorIs(t, err, ErrInvalidArgument)

			_, _, err = c.Remove(nil)
			require.ErrorIs(t, err, ErrInvalidArgument)

			assert.Equal(t, 0, c.Size(), "rejected calls must not mutate")
			_, ok, err := c.Get(k)
			require.NoError(t, err)
			assert.False(t, ok)

			// An empty, non-nil slice is a value.
			_, _, err = c.Put(k, []byte{})
			require.NoError(t, err)
			assert.Equal(t, 1, c.Size())
		})
	}
}

func TestContract_InterfaceKeys(t *testing.T) {
	t.Parallel()

	for _, p := range policies {
		t.Run(p.String(), func(t *testing.T) {
			t.Parallel()

			c := newTestCache[any, any](t, p, 2048)

			_, _, err := c.Put(nil, 1)
			require.ErrorIs(t, err, ErrInvalidArgument)
			_, _, err = c.Put(1, nil)
			require.ErrorIs(t, err, ErrInvalidArgument)

			_, _, err = c.Put(1, "int key")
			require.NoError(t, err)
			_, _, err = c.Put("1", "string key")
			require.NoError(t, err)

			v, ok, _ := c.Get(1)
			require.True(t, ok)
			assert.Equal(t, "int key", v)
			v, ok, _ = c.Get("1")
			require.True(t, ok)
			assert.Equal(t, "string key", v)
		})
	}
}

// Inserting well past capacity keeps the size bounded after every Put.
func TestContract_CapacityInvariant(t *testing.T) {
	t.Parallel()

	for _, p := range policies {
		t.Run(p.String(), func(t *testing.T) {
			t.Parallel()

			const capacity = 2048
			c := newTestCache[int, int](t, p, capacity)
			for i := 0; i < 3*capacity; i++ {
				_, _, err := c.Put(i, i)
				require.NoError(t, err)
				require.LessOrEqual(t, c.Size(), capacity, "after put %d", i)
			}
			assert.Equal(t, capacity, c.Size())
		})
	}
}

// Hot keys read between inserts should survive a scan of cold keys.
func TestContract_HotKeysSurviveScan(t *testing.T) {
	t.Parallel()

	for _, p := range policies {
		t.Run(p.String(), func(t *testing.T) {
			t.Parallel()

			const capacity = 2048
			c := newTestCache[string, int](t, p, capacity)
			hot := make([]string, 64)
			for i := range hot {
				hot[i] = "hot:" + strconv.Itoa(i)
				_, _, _ = c.Put(hot[i], i)
			}
			for i := 0; i < 4*capacity; i++ {
				_, _, _ = c.Put("cold:"+strconv.Itoa(i), i)
				if i%16 == 0 {
					for _, k := range hot {
						_, _, _ = c.Get(k)
					}
				}
			}

			survived := 0
			for _, k := range hot {
				if _, ok, _ := c.Get(k); ok {
					survived++
				}
			}
			assert.Greater(t, survived, len(hot)/2, "most hot keys should survive")
		})
	}
}

func TestContract_OnEvict(t *testing.T) {
	t.Parallel()

	for _, p := range policies {
		t.Run(p.String(), func(t *testing.T) {
			t.Parallel()

			var mu sync.Mutex
			evicted := make(map[int]int)
			c, err := New[int, int](Options[int, int]{
				Policy:      p,
				Capacity:    2048,
				Concurrency: 16,
				OnEvict: func(k, v int) {
					mu.Lock()
					evicted[k] = v
					mu.Unlock()
				},
			})
			require.NoError(t, err)

			for i := 0; i < 2048+100; i++ {
				_, _, _ = c.Put(i, i*10)
			}
			_, _, _ = c.Remove(2147) // explicit removal is not an eviction

			mu.Lock()
			defer mu.Unlock()
			require.Len(t, evicted, 100)
			for k, v := range evicted {
				assert.Equal(t, k*10, v)
				_, ok, _ := c.Get(k)
				assert.False(t, ok, "evicted key %d still readable", k)
			}
			assert.NotContains(t, evicted, 2147)
		})
	}
}

func TestNew_UnknownPolicy(t *testing.T) {
	t.Parallel()

	c, err := New[string, string](Options[string, string]{Policy: Policy(42), Capacity: 100})
	require.Error(t, err)
	assert.Nil(t, c)

	var cfg *ConfigError
	require.ErrorAs(t, err, &cfg)
	assert.Equal(t, "Policy", cfg.Field)
	assert.True(t, errors.Is(err, ErrInvalidArgument))
}

func TestNew_ConstructionErrorIsNilInterface(t *testing.T) {
	t.Parallel()

	c, err := New[string, string](Options[string, string]{Policy: PolicyLRU, Capacity: 10})
	require.ErrorIs(t, err, ErrInvalidArgument)
	assert.Nil(t, c)
}

func TestParsePolicy(t *testing.T) {
	t.Parallel()

	p, err := ParsePolicy("lru")
	require.NoError(t, err)
	assert.Equal(t, PolicyLRU, p)

	p, err = ParsePolicy("clock")
	require.NoError(t, err)
	assert.Equal(t, PolicyLFU, p)

	_, err = ParsePolicy("arc")
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestIsNil(t *testing.T) {
	t.Parallel()

	var (
		p  *int
		m  map[string]int
		s  []int
		ch chan int
		fn func()
		i  any
	)
	assert.True(t, isNil(p))
	assert.True(t, isNil(m))
	assert.True(t, isNil(s))
	assert.True(t, isNil(ch))
	assert.True(t, isNil(fn))
	assert.True(t, isNil(i))

	assert.False(t, isNil(0))
	assert.False(t, isNil(""))
	assert.False(t, isNil(struct{}{}))
	assert.False(t, isNil([]int{}))
	assert.False(t, isNil(new(int)))
	assert.False(t, isNil(any(3)))
}
