// Package ordering allocates fractional order keys for blocks. Keys are
// float64 values; a new key is always computed from its neighbors so that
// inserting a block never renumbers its siblings.
package ordering

import (
	"math"

	"github.com/google/uuid"
)

// Gap is the spacing between consecutive keys after an append or a reindex.
const Gap = 1.0

// MinRelativeGap is the smallest neighbor gap, relative to the key
// magnitude, that Between may still subdivide. Below it the project
// should be reindexed first.
const MinRelativeGap = 1e-9

// MaxKey is the largest usable key. Above it float64 can no longer
// represent key+Gap as a distinct value.
const MaxKey = float64(1 << 52)

// Append returns the key for a block placed after last, or Gap when the
// project is empty.
func Append(last *float64) float64 {
	if last == nil {
		return Gap
	}
	return *last + Gap
}

// BeforeFirst returns the key for a block placed before first.
func BeforeFirst(first float64) float64 {
	return first / 2
}

// Between returns a key strictly between low and high. A nil bound means
// there is no neighbor on that side.
func Between(low, high *float64) float64 {
	switch {
	case low != nil && high != nil:
		return (*low + *high) / 2
	case low != nil:
		return *low + Gap
	case high != nil:
		return BeforeFirst(*high)
	default:
		return Gap
	}
}

// Exhausted reports whether Between(low, high) would not leave a usable
// gap on both sides of the new key. A missing low bound counts as zero.
// Appending exhausts once the next key would pass MaxKey.
func Exhausted(low, high *float64) bool {
	if high == nil {
		if low == nil {
			return false
		}
		next := *low + Gap
		return !(next > *low) || next > MaxKey
	}
	lo := 0.0
	if low != nil {
		lo = *low
	}
	hi := *high
	mid := Between(low, high)
	if !(mid > lo && mid < hi) {
		return true
	}
	return hi-lo < MinRelativeGap*math.Max(1, math.Abs(hi))
}

// Sequence returns n keys spaced by Gap, starting at Gap.
func Sequence(n int) []float64 {
	keys := make([]float64, n)
	for i := range keys {
		keys[i] = Gap * float64(i+1)
	}
	return keys
}

// Reindex assigns Gap*(i+1) to ids in their given order.
func Reindex(ids []uuid.UUID) map[uuid.UUID]float64 {
	keys := Sequence(len(ids))
	out := make(map[uuid.UUID]float64, len(ids))
	for i, id := range ids {
		out[id] = keys[i]
	}
	return out
}

// Valid reports whether key can be used as an order key.
func Valid(key float64) bool {
	return !math.IsNaN(key) && key > 0 && key <= MaxKey
}
