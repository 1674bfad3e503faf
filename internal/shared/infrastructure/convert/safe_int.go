// Package convert holds the integer narrowing used where driver and
// time APIs want a smaller type than the configuration supplies.
package convert

import (
	"fmt"
	"math"
)

// ToInt32 narrows v, failing when it does not fit.
func ToInt32(v int) (int32, error) {
	if v > math.MaxInt32 || v < math.MinInt32 {
		return 0, fmt.Errorf("integer overflow: %d does not fit in int32", v)
	}
	return int32(v), nil
}

// ClampInt32 narrows v, saturating at the int32 bounds. Pool sizes use it.
func ClampInt32(v int) int32 {
	switch {
	case v > math.MaxInt32:
		return math.MaxInt32
	case v < math.MinInt32:
		return math.MinInt32
	}
	return int32(v)
}

// MaxShift is the largest shift Shift returns; 1<<MaxShift still fits in int64.
const MaxShift = 62

// Shift turns a retry count into a shift amount in [0, MaxShift].
func Shift(n int) uint {
	if n <= 0 {
		return 0
	}
	return uint(min(n, MaxShift))
}
