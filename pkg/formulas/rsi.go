package formulas

import (
	"github.com/markcheno/go-talib"
)

// CalculateRSI calculates the Relative Strength Index with Wilder smoothing.
//
// RSI Formula:
//   RSI = 100 - (100 / (1 + RS))
//   where RS = Wilder-smoothed Average Gain / Average Loss over N periods
//
// Returns the current RSI value clipped to [0, 100], or nil if there are
// fewer than N+1 closes.
func CalculateRSI(closes []float64, length int) *float64 {
	if len(closes) < length+1 {
		return nil
	}

	// talib uses Wilder's smoothing internally, matching the classic RSI.
	return clipPtr(last(talib.Rsi(closes, length)), 0, 100)
}
