package formulas

// PivotPoints holds classic floor-trader pivot levels derived from the
// previous bar's high, low and close.
type PivotPoints struct {
	Pivot       float64 `json:"pivot"`
	Support1    float64 `json:"support_1"`
	Support2    float64 `json:"support_2"`
	Resistance1 float64 `json:"resistance_1"`
	Resistance2 float64 `json:"resistance_2"`
}

// CalculatePivotPoints computes pivot, two support and two resistance levels
// from a single bar:
//   P  = (H + L + C) / 3
//   R1 = 2P - L, S1 = 2P - H
//   R2 = P + (H - L), S2 = P - (H - L)
func CalculatePivotPoints(high, low, close float64) PivotPoints {
	p := (high + low + close) / 3
	return PivotPoints{
		Pivot:       p,
		Support1:    2*p - high,
		Support2:    p - (high - low),
		Resistance1: 2*p - low,
		Resistance2: p + (high - low),
	}
}

// CalculateSwingHigh returns the highest high over the last window bars,
// or nil when fewer bars are available.
func CalculateSwingHigh(highs []float64, window int) *float64 {
	if len(highs) < window || window <= 0 {
		return nil
	}
	tail := highs[len(highs)-window:]
	high := tail[0]
	for _, h := range tail {
		if h > high {
			high = h
		}
	}
	return &high
}

// CalculateSwingLow returns the lowest low over the last window bars,
// or nil when fewer bars are available.
func CalculateSwingLow(lows []float64, window int) *float64 {
	if len(lows) < window || window <= 0 {
		return nil
	}
	tail := lows[len(lows)-window:]
	low := tail[0]
	for _, l := range tail {
		if l < low {
			low = l
		}
	}
	return &low
}
