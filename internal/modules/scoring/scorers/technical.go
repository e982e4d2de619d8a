package scorers

import (
	"math"

	"github.com/aristath/marketpipe/internal/domain"
)

// TechnicalScorer scores trend alignment, momentum, trend strength and band
// position from the latest indicator set.
type TechnicalScorer struct{}

// NewTechnicalScorer creates a new technical scorer.
func NewTechnicalScorer() *TechnicalScorer {
	return &TechnicalScorer{}
}

// Calculate scores the indicator set against the current price.
// Components: Trend (35%), Momentum (30%), Strength (15%), Band position (20%).
func (ts *TechnicalScorer) Calculate(ind *domain.IndicatorSet, price float64, t *Tracker) float64 {
	trend := ts.trend(ind, price, t)
	momentum := ts.momentum(ind, t)
	strength := ts.strength(ind, t)
	band := ts.bandPosition(ind, t)

	return toScore(trend*0.35 + momentum*0.30 + strength*0.15 + band*0.20)
}

// trend checks the EMA stack: price above EMA20 above EMA50 above EMA200 is
// a fully aligned uptrend.
func (ts *TechnicalScorer) trend(ind *domain.IndicatorSet, price float64, t *Tracker) float64 {
	ema20 := t.Value("ema_20", ind.EMA20, price)
	ema50 := t.Value("ema_50", ind.EMA50, price)
	ema200 := t.Value("ema_200", ind.EMA200, price)

	score := 0.0
	if price > ema20 {
		score += 0.25
	}
	if ema20 > ema50 {
		score += 0.35
	}
	if ema50 > ema200 {
		score += 0.40
	}
	return score
}

// momentum blends RSI distance from oversold and the MACD histogram sign.
func (ts *TechnicalScorer) momentum(ind *domain.IndicatorSet, t *Tracker) float64 {
	rsi := t.Value("rsi_14", ind.RSI14, 50)
	hist := t.Value("macd_hist", ind.MACDHist, 0)

	// RSI around 55-65 is ideal momentum; deep oversold and overbought both
	// lose points.
	rsiScore := 1 - math.Abs(rsi-60)/60
	rsiScore = clamp01(rsiScore)

	histScore := 0.5
	if hist > 0 {
		histScore = 1.0
	} else if hist < 0 {
		histScore = 0.0
	}
	return rsiScore*0.6 + histScore*0.4
}

// strength uses ADX: below 20 is no trend, 40+ is a strong one.
func (ts *TechnicalScorer) strength(ind *domain.IndicatorSet, t *Tracker) float64 {
	adx := t.Value("adx_14", ind.ADX14, 20)
	return clamp01((adx - 10) / 30)
}

// bandPosition rewards a close in the upper half of the Bollinger bands
// without being extended beyond them.
func (ts *TechnicalScorer) bandPosition(ind *domain.IndicatorSet, t *Tracker) float64 {
	pctB := t.Value("bollinger_pct_b", ind.BollingerPctB, 0.5)
	if pctB > 1.1 || pctB < -0.1 {
		return 0.2
	}
	return clamp01(0.3 + pctB*0.6)
}
