package formulas

import (
	"github.com/markcheno/go-talib"
)

// StochasticResult holds the current slow stochastic oscillator values.
type StochasticResult struct {
	K float64 `json:"k"`
	D float64 `json:"d"`
}

// CalculateStochastic calculates the slow Stochastic Oscillator with the
// classic (14, 3) parameters: %K over kPeriod bars smoothed by a 3-bar SMA,
// %D a dPeriod SMA of %K. Both values are clipped to [0, 100].
func CalculateStochastic(highs, lows, closes []float64, kPeriod, dPeriod int) *StochasticResult {
	if len(closes) < kPeriod+dPeriod || len(highs) != len(closes) || len(lows) != len(closes) {
		return nil
	}

	slowK, slowD := talib.Stoch(highs, lows, closes, kPeriod, dPeriod, talib.SMA, dPeriod, talib.SMA)

	k, d := last(slowK), last(slowD)
	if k == nil || d == nil {
		return nil
	}

	return &StochasticResult{K: clip(*k, 0, 100), D: clip(*d, 0, 100)}
}
