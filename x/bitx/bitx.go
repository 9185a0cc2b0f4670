package bitx

import "golang.org/x/exp/constraints"

// Mask returns a value with the low n bits set. n larger than the width of T
// saturates to all ones; n <= 0 yields zero.
func Mask[T constraints.Unsigned](n int) T {
	var all T
	all = ^all
	width := 0
	for v := all; v != 0; v >>= 1 {
		width++
	}
	if n >= width {
		return all
	}
	if n <= 0 {
		return 0
	}
	return (T(1) << n) - 1
}

// Bit returns a value with only bit n set.
func Bit[T constraints.Unsigned](n int) T {
	return T(1) << n
}

// Has reports whether bit n of v is set.
func Has[T constraints.Unsigned](v T, n int) bool {
	return v&(T(1)<<n) != 0
}

// Set returns v with bit n forced to level.
func Set[T constraints.Unsigned](v T, n int, level bool) T {
	if level {
		return v | T(1)<<n
	}
	return v &^ (T(1) << n)
}
