// Package charts assembles the full daily indicator set from an ordered
// price history. All math lives in pkg/formulas; this service only handles
// slicing, minimum-history policy and field assembly.
package charts

import (
	"github.com/rs/zerolog"

	"github.com/aristath/marketpipe/internal/domain"
	"github.com/aristath/marketpipe/pkg/formulas"
)

// Service computes indicators for one ticker's bar history.
type Service struct {
	minBars    int
	targetBars int
	log        zerolog.Logger
}

// NewService creates a new chart service. minBars is the hard floor below
// which every indicator is reported as insufficient data.
func NewService(minBars, targetBars int, log zerolog.Logger) *Service {
	return &Service{
		minBars:    minBars,
		targetBars: targetBars,
		log:        log.With().Str("component", "charts").Logger(),
	}
}

// TargetBars returns the preferred history length for fetch planning.
func (s *Service) TargetBars() int { return s.targetBars }

// Compute derives the full indicator set from bars ordered oldest first.
// With fewer than minBars bars every field stays nil; individual indicators
// that need more history than is available also stay nil.
func (s *Service) Compute(bars []domain.Bar) *domain.IndicatorSet {
	set := &domain.IndicatorSet{}
	if len(bars) < s.minBars {
		return set
	}

	highs := make([]float64, len(bars))
	lows := make([]float64, len(bars))
	closes := make([]float64, len(bars))
	volumes := make([]int64, len(bars))
	for i, b := range bars {
		highs[i] = b.High
		lows[i] = b.Low
		closes[i] = b.Close
		volumes[i] = b.Volume
	}

	set.EMA20 = formulas.CalculateEMA(closes, 20)
	set.EMA50 = formulas.CalculateEMA(closes, 50)
	set.EMA100 = formulas.CalculateEMA(closes, 100)
	set.EMA200 = formulas.CalculateEMA(closes, 200)

	set.RSI14 = formulas.CalculateRSI(closes, 14)
	if macd := formulas.CalculateMACD(closes, 12, 26, 9); macd != nil {
		set.MACD = &macd.MACD
		set.MACDSignal = &macd.Signal
		set.MACDHist = &macd.Histogram
	}

	if bb := formulas.CalculateBollinger(closes, 20, 2); bb != nil {
		set.BollingerUpper = &bb.Upper
		set.BollingerMiddle = &bb.Middle
		set.BollingerLower = &bb.Lower
		set.BollingerPctB = &bb.PctB
	}

	set.ATR14 = formulas.CalculateATR(highs, lows, closes, 14)
	set.ADX14 = formulas.CalculateADX(highs, lows, closes, 14)
	set.CCI20 = formulas.CalculateCCI(highs, lows, closes, 20)
	if stoch := formulas.CalculateStochastic(highs, lows, closes, 14, 3); stoch != nil {
		set.StochK = &stoch.K
		set.StochD = &stoch.D
	}

	set.VWAP = formulas.CalculateVWAP(highs, lows, closes, volumes)
	set.OBV = formulas.CalculateOBV(closes, volumes)
	set.VPT = formulas.CalculateVPT(closes, volumes)

	latest := bars[len(bars)-1]
	pivots := formulas.CalculatePivotPoints(latest.High, latest.Low, latest.Close)
	set.PivotPoint = &pivots.Pivot
	set.Support1 = &pivots.Support1
	set.Support2 = &pivots.Support2
	set.Resistance1 = &pivots.Resistance1
	set.Resistance2 = &pivots.Resistance2

	set.SwingHigh5 = formulas.CalculateSwingHigh(highs, 5)
	set.SwingLow5 = formulas.CalculateSwingLow(lows, 5)
	set.SwingHigh10 = formulas.CalculateSwingHigh(highs, 10)
	set.SwingLow10 = formulas.CalculateSwingLow(lows, 10)
	set.SwingHigh20 = formulas.CalculateSwingHigh(highs, 20)
	set.SwingLow20 = formulas.CalculateSwingLow(lows, 20)

	set.High52Week = formulas.Calculate52WeekHigh(highs)
	set.Low52Week = formulas.Calculate52WeekLow(lows)

	return set
}
