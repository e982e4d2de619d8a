package formulas

import "math"

// epsilon replaces denominators that may legitimately be zero. Indicators
// must never emit NaN or Inf.
const epsilon = 1e-10

// isNaN checks if a float64 is NaN
func isNaN(f float64) bool {
	return f != f
}

// last returns a pointer to the final value of a talib output series,
// or nil when the series is empty or ends in NaN.
func last(vals []float64) *float64 {
	if len(vals) == 0 {
		return nil
	}
	v := vals[len(vals)-1]
	if isNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// clip bounds a value to [lo, hi].
func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// clipPtr clips through a pointer, passing nil through.
func clipPtr(v *float64, lo, hi float64) *float64 {
	if v == nil {
		return nil
	}
	c := clip(*v, lo, hi)
	return &c
}
