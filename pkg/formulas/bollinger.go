package formulas

import (
	"github.com/markcheno/go-talib"
)

// BollingerResult holds the current Bollinger Band values.
type BollingerResult struct {
	Upper  float64 `json:"upper"`
	Middle float64 `json:"middle"`
	Lower  float64 `json:"lower"`
	// PctB is the literal position of the close within the bands:
	// (close - lower) / (upper - lower). It may exceed [0, 1] when price
	// trades outside the bands.
	PctB float64 `json:"pct_b"`
}

// CalculateBollinger calculates Bollinger Bands over the given period with
// the given standard-deviation multiplier (typically 20, 2).
//
// Returns nil when the series is shorter than the period.
func CalculateBollinger(closes []float64, period int, dev float64) *BollingerResult {
	if len(closes) < period {
		return nil
	}

	upper, middle, lower := talib.BBands(closes, period, dev, dev, talib.SMA)

	u, m, l := last(upper), last(middle), last(lower)
	if u == nil || m == nil || l == nil {
		return nil
	}

	width := *u - *l
	if width < epsilon {
		width = epsilon
	}
	pctB := (closes[len(closes)-1] - *l) / width

	return &BollingerResult{Upper: *u, Middle: *m, Lower: *l, PctB: pctB}
}
