package formulas

import (
	"github.com/markcheno/go-talib"
)

// CalculateATR calculates the Average True Range with Wilder smoothing.
//
// Returns nil when fewer than period+1 bars are available.
func CalculateATR(highs, lows, closes []float64, period int) *float64 {
	if len(closes) < period+1 || len(highs) != len(closes) || len(lows) != len(closes) {
		return nil
	}
	return last(talib.Atr(highs, lows, closes, period))
}

// CalculateADX calculates the Average Directional Index: DX first, then
// Wilder smoothing over the period. Clipped to [0, 100].
//
// ADX needs roughly 2x the period of bars before the first value appears.
func CalculateADX(highs, lows, closes []float64, period int) *float64 {
	if len(closes) < 2*period+1 || len(highs) != len(closes) || len(lows) != len(closes) {
		return nil
	}
	return clipPtr(last(talib.Adx(highs, lows, closes, period)), 0, 100)
}

// CalculateCCI calculates the Commodity Channel Index with the classic
// 0.015 scaling factor. Clipped to [-300, 300].
func CalculateCCI(highs, lows, closes []float64, period int) *float64 {
	if len(closes) < period || len(highs) != len(closes) || len(lows) != len(closes) {
		return nil
	}
	return clipPtr(last(talib.Cci(highs, lows, closes, period)), -300, 300)
}
