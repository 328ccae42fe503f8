package cache

import (
	"log/slog"
	"time"

	"github.com/IvanBrykalov/approxcache/internal/util"
)

// Policy selects the engine built by New.
type Policy int

const (
	// PolicyLRU builds the approximate-recency (3Q) engine.
	PolicyLRU Policy = iota
	// PolicyLFU builds the partitioned approximate-frequency (clock) engine.
	PolicyLFU
)

// String implements fmt.Stringer.
func (p Policy) String() string {
	switch p {
	case PolicyLRU:
		return "lru"
	case PolicyLFU:
		return "lfu"
	default:
		return "unknown"
	}
}

// ParsePolicy maps "lru" / "lfu" to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "lru", "3q":
		return PolicyLRU, nil
	case "lfu", "clock":
		return PolicyLFU, nil
	}
	return 0, &ConfigError{Field: "Policy", Value: s, Reason: "want lru or lfu"}
}

// Clock provides time in UnixNano; useful for deterministic tests.
type Clock interface{ NowUnixNano() int64 }

type wallClock struct{}

func (wallClock) NowUnixNano() int64 { return time.Now().UnixNano() }

// Options configures an engine. Zero values are safe; defaults are applied
// by the constructors:
//   - nil Hasher   => util.HashKey (xxhash for strings/ints, maphash otherwise)
//   - nil Clock    => wall clock
//   - nil Metrics  => NoopMetrics
//   - nil Logger   => discard
//   - Concurrency <= 0 => derived from GOMAXPROCS (LFU only)
type Options[K comparable, V any] struct {
	// Capacity is the entry count limit. The LRU engine requires > 50; the
	// LFU engine requires enough room for 128 slots per partition.
	Capacity int

	// Concurrency estimates the number of concurrently writing goroutines.
	// The LFU engine rounds it up to a power of two in [16, 16384] to pick
	// its partition count. Ignored by the LRU engine.
	Concurrency int

	// Policy selects the engine built by New.
	Policy Policy

	// Hasher produces the raw 64-bit hash of a key. It must be deterministic.
	Hasher func(K) uint64

	// Clock is the time source for recency stamps (LRU only).
	Clock Clock

	// Metrics receives Hit/Miss/Evict/Size/VictimSearch signals.
	Metrics Metrics

	// OnEvict is called for every entry removed by capacity eviction, after
	// the entry has left both of its structures and no engine lock is held.
	// Explicit Remove does not trigger it.
	OnEvict func(k K, v V)

	// Logger receives construction details (Debug) and eviction anomalies (Warn).
	Logger *slog.Logger
}

func (o Options[K, V]) withDefaults() Options[K, V] {
	if o.Hasher == nil {
		o.Hasher = util.HashKey[K]
	}
	if o.Clock == nil {
		o.Clock = wallClock{}
	}
	if o.Metrics == nil {
		o.Metrics = NoopMetrics{}
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	if o.Concurrency <= 0 {
		o.Concurrency = util.ReasonableConcurrency()
	}
	return o
}
