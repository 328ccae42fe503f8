// Package util contains internal helpers (hashing, sizing, padding).
//revive:disable:var-naming  // allow 'util' as an internal helpers package name
package util

import (
	"encoding/binary"
	"hash/maphash"

	"github.com/cespare/xxhash/v2"
)

// seed keys the maphash fallback. It is fixed for the life of the process,
// so a key always lands in the same bucket.
var seed = maphash.MakeSeed()

// HashKey returns a 64-bit raw hash for any comparable key.
// Strings and integer widths go through xxhash; every other comparable type
// (structs, arrays, pointers, interfaces) falls back to maphash.Comparable.
func HashKey[K comparable](k K) uint64 {
	switch v := any(k).(type) {
	case string:
		return xxhash.Sum64String(v)
	case int:
		return hashUint64(uint64(v))
	case int64:
		return hashUint64(uint64(v))
	case int32:
		return hashUint64(uint64(uint32(v)))
	case int16:
		return hashUint64(uint64(uint16(v)))
	case int8:
		return hashUint64(uint64(uint8(v)))
	case uint:
		return hashUint64(uint64(v))
	case uint64:
		return hashUint64(v)
	case uint32:
		return hashUint64(uint64(v))
	case uint16:
		return hashUint64(uint64(v))
	case uint8:
		return hashUint64(uint64(v))
	case uintptr:
		return hashUint64(uint64(v))
	default:
		return maphash.Comparable(seed, k)
	}
}

func hashUint64(u uint64) uint64 {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], u)
	return xxhash.Sum64(b[:])
}

// Fold32 folds a 64-bit hash into the 32-bit raw hash the spread functions
// operate on. Both halves contribute so no input bits are dropped.
func Fold32(h uint64) uint32 {
	return uint32(h) ^ uint32(h>>32)
}

// SpreadXorShift is the supplemental mix used by the recency engine.
// Hashes that differ only by constant multiples at each bit position end up
// with a bounded number of collisions (about 8 at a 0.75 load factor).
func SpreadXorShift(h uint32) uint32 {
	h ^= (h >> 20) ^ (h >> 12)
	return h ^ (h >> 7) ^ (h >> 4)
}

// SpreadAvalanche is a single-word Wang/Jenkins variant used by the
// partitioned frequency engine. High bits select the partition and low bits
// select the bucket, so both ends of the word must be well mixed.
func SpreadAvalanche(h uint32) uint32 {
	h += (h << 15) ^ 0xffffcd7d
	h ^= h >> 10
	h += h << 3
	h ^= h >> 6
	h += (h << 2) + (h << 14)
	return h ^ (h >> 16)
}
