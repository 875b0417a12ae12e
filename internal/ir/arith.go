package ir

import "math"

// Integer arithmetic is checked: a result outside int64 reports ok=false
// instead of wrapping.

// AddInt returns a+b.
func AddInt(a, b IRInt) (IRInt, bool) {
	s := a + b
	if (b > 0 && s < a) || (b < 0 && s > a) {
		return 0, false
	}
	return s, true
}

// SubInt returns a-b.
func SubInt(a, b IRInt) (IRInt, bool) {
	d := a - b
	if (b > 0 && d > a) || (b < 0 && d < a) {
		return 0, false
	}
	return d, true
}

// MulInt returns a*b.
func MulInt(a, b IRInt) (IRInt, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	if (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		return 0, false
	}
	p := a * b
	if p/b != a {
		return 0, false
	}
	return p, true
}

// DivInt returns a/b truncated toward zero. b must be non-zero.
func DivInt(a, b IRInt) (IRInt, bool) {
	if a == math.MinInt64 && b == -1 {
		return 0, false
	}
	return a / b, true
}

// NegInt returns -a.
func NegInt(a IRInt) (IRInt, bool) {
	if a == math.MinInt64 {
		return 0, false
	}
	return -a, true
}
