package formulas

import (
	"github.com/markcheno/go-talib"
)

// MACDResult holds the three MACD output series' current values.
type MACDResult struct {
	MACD      float64 `json:"macd"`
	Signal    float64 `json:"signal"`
	Histogram float64 `json:"histogram"`
}

// CalculateMACD calculates Moving Average Convergence Divergence.
//
// Standard parameters are (12, 26, 9): MACD line = EMA(12) - EMA(26),
// signal = EMA(9) of the MACD line, histogram = MACD - signal.
//
// Returns nil when the series is shorter than slow + signal periods.
func CalculateMACD(closes []float64, fast, slow, signal int) *MACDResult {
	if len(closes) < slow+signal {
		return nil
	}

	macd, sig, hist := talib.Macd(closes, fast, slow, signal)

	m, s, h := last(macd), last(sig), last(hist)
	if m == nil || s == nil || h == nil {
		return nil
	}

	return &MACDResult{MACD: *m, Signal: *s, Histogram: *h}
}
