package util

import "runtime"

// ReasonableConcurrency picks a default concurrency hint for the partitioned
// engine from CPU parallelism: nextPow2(4*GOMAXPROCS). The engine clamps the
// result to its own partition bounds.
func ReasonableConcurrency() int {
	p := runtime.GOMAXPROCS(0)
	if p < 1 {
		p = 1
	}
	return int(NextPow2(uint64(p * 4)))
}

// Clamp bounds x to [lo, hi].
func Clamp(x, lo, hi int) int {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// Log2 returns the exponent of a power of two (Log2(1) == 0).
// The result is undefined for values that are not powers of two.
func Log2(x uint64) uint {
	var n uint
	for x > 1 {
		x >>= 1
		n++
	}
	return n
}
