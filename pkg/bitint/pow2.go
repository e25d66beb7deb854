// Package bitint provides power-of-2 helpers for FFT window validation and
// buffer sizing. All operations are constant time with no allocations, so
// they are safe to call from real-time code.
package bitint

import "math/bits"

// NextPowerOfTwo returns the next power of 2 >= size. Exact powers of 2 are
// preserved; the size-1 keeps them from doubling. Zero and negatives map
// to 1.
func NextPowerOfTwo(size int) int {
	if size <= 0 {
		return 1
	}

	// bits.Len on uint tracks the platform's int width, so large 64-bit
	// inputs are not truncated.
	return 1 << bits.Len(uint(size-1))
}

// IsPowerOfTwo reports whether n is a positive power of 2. Powers of 2 have
// exactly one bit set, so n&(n-1) clears it to zero.
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}
