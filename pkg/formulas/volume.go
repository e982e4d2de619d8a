package formulas

import (
	"github.com/markcheno/go-talib"
)

// CalculateVWAP calculates the Volume Weighted Average Price over the whole
// supplied window: sum(typical price x volume) / sum(volume).
//
// Accumulators are float64, which carries ~15 significant digits; large
// cumulative volume magnitudes survive without overflow.
func CalculateVWAP(highs, lows, closes []float64, volumes []int64) *float64 {
	n := len(closes)
	if n == 0 || len(highs) != n || len(lows) != n || len(volumes) != n {
		return nil
	}

	var pvSum, volSum float64
	for i := 0; i < n; i++ {
		typical := (highs[i] + lows[i] + closes[i]) / 3
		v := float64(volumes[i])
		pvSum += typical * v
		volSum += v
	}

	if volSum < epsilon {
		return nil
	}
	vwap := pvSum / volSum
	return &vwap
}

// CalculateOBV calculates On-Balance Volume: a running total of volume
// signed by the direction of the close-to-close move.
func CalculateOBV(closes []float64, volumes []int64) *float64 {
	if len(closes) < 2 || len(closes) != len(volumes) {
		return nil
	}

	vols := make([]float64, len(volumes))
	for i, v := range volumes {
		vols[i] = float64(v)
	}

	return last(talib.Obv(closes, vols))
}

// CalculateVPT calculates the Volume Price Trend accumulator:
// VPT[i] = VPT[i-1] + volume x (close[i] - close[i-1]) / close[i-1].
func CalculateVPT(closes []float64, volumes []int64) *float64 {
	if len(closes) < 2 || len(closes) != len(volumes) {
		return nil
	}

	var vpt float64
	for i := 1; i < len(closes); i++ {
		prev := closes[i-1]
		if prev < epsilon {
			continue
		}
		vpt += float64(volumes[i]) * (closes[i] - prev) / prev
	}

	return &vpt
}
