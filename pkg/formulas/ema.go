package formulas

import (
	"github.com/markcheno/go-talib"
)

// CalculateEMA calculates the Exponential Moving Average for the given period.
//
// Returns the current EMA value or nil if the series is shorter than the
// period.
func CalculateEMA(closes []float64, period int) *float64 {
	if len(closes) < period {
		return nil
	}
	return last(talib.Ema(closes, period))
}

// CalculateSMA calculates the Simple Moving Average for the given period.
func CalculateSMA(closes []float64, period int) *float64 {
	if len(closes) < period {
		return nil
	}
	return last(talib.Sma(closes, period))
}
