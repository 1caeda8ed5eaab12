package conv

import (
	"errors"
	"fmt"
	"math"
)

// Integer is any built-in integer type.
type Integer interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}

// ErrOverflow is wrapped by every failed conversion.
var ErrOverflow = errors.New("conv: integer overflow")

// ToUint32 converts v to uint32, failing if it is negative or too large.
func ToUint32[T Integer](v T) (uint32, error) {
	if v < 0 || uint64(v) > math.MaxUint32 {
		return 0, fmt.Errorf("%w: %d does not fit uint32", ErrOverflow, v)
	}
	return uint32(v), nil
}

// ToInt converts v to int, failing if it does not fit.
func ToInt[T Integer](v T) (int, error) {
	if v < 0 {
		if int64(v) < math.MinInt {
			return 0, fmt.Errorf("%w: %d does not fit int", ErrOverflow, v)
		}
		return int(v), nil
	}
	if uint64(v) > math.MaxInt {
		return 0, fmt.Errorf("%w: %d does not fit int", ErrOverflow, v)
	}
	return int(v), nil
}
