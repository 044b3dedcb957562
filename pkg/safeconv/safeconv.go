// Package safeconv provides checked integer conversions between the widths
// used by handles, bounds and counters.
package safeconv

import "math"

// MaxInt is the maximum value for int type (platform-dependent).
const MaxInt = int(^uint(0) >> 1)

// MaxUint32 is the maximum value for uint32 type.
const MaxUint32 = uint32(math.MaxUint32)

// MustIntToUint32 converts int to uint32, panics on bounds violation.
// Use only when bounds violations are logically impossible.
func MustIntToUint32(v int) uint32 {
	if v < 0 || v > int(MaxUint32) {
		panic("safeconv: int to uint32 out of bounds")
	}

	return uint32(v)
}

// ToUint32 converts v to uint32, reporting false when it does not fit.
func ToUint32(v int64) (uint32, bool) {
	if v < 0 || v > int64(MaxUint32) {
		return 0, false
	}

	return uint32(v), true
}

// SafeInt64 converts uint64 to int64, clamping at math.MaxInt64.
func SafeInt64(v uint64) int64 {
	if v > math.MaxInt64 {
		return math.MaxInt64
	}

	return int64(v)
}
