package scorers

import (
	"math"

	"github.com/aristath/marketpipe/internal/domain"
)

// VWAPScorer scores price position against VWAP and the pivot-derived
// support/resistance ladder: above VWAP near support is the best posture,
// below VWAP pressed against resistance the worst.
type VWAPScorer struct{}

// NewVWAPScorer creates a new VWAP support/resistance scorer.
func NewVWAPScorer() *VWAPScorer {
	return &VWAPScorer{}
}

// Calculate scores the latest indicator set against the current price.
// Components: VWAP position (50%), Support proximity (30%), Resistance headroom (20%).
func (vw *VWAPScorer) Calculate(ind *domain.IndicatorSet, price float64, t *Tracker) float64 {
	if price <= 0 {
		return 50
	}

	vwapScore := vw.vwapPosition(ind, price, t)
	supportScore := vw.supportProximity(ind, price, t)
	headroom := vw.resistanceHeadroom(ind, price, t)

	return toScore(vwapScore*0.50 + supportScore*0.30 + headroom*0.20)
}

// vwapPosition rewards trading above VWAP, saturating at 3% either side.
func (vw *VWAPScorer) vwapPosition(ind *domain.IndicatorSet, price float64, t *Tracker) float64 {
	vwap := t.Value("vwap", ind.VWAP, price)
	if vwap <= 0 {
		return 0.5
	}
	deviation := (price - vwap) / vwap
	return clamp01(0.5 + deviation/0.06)
}

// supportProximity rewards a close sitting near (within 3% of) the first
// support level, where downside is structurally bounded.
func (vw *VWAPScorer) supportProximity(ind *domain.IndicatorSet, price float64, t *Tracker) float64 {
	if !t.Have("support_1", ind.Support1) || *ind.Support1 <= 0 {
		return 0.5
	}
	distance := math.Abs(price-*ind.Support1) / price
	if price < *ind.Support1 {
		// Trading below support is a breakdown.
		return 0.1
	}
	return clamp01(1 - distance/0.06)
}

// resistanceHeadroom rewards room to run before the first resistance.
func (vw *VWAPScorer) resistanceHeadroom(ind *domain.IndicatorSet, price float64, t *Tracker) float64 {
	if !t.Have("resistance_1", ind.Resistance1) || *ind.Resistance1 <= 0 {
		return 0.5
	}
	if price >= *ind.Resistance1 {
		// Already through resistance; breakout handled by the signal scorer.
		return 0.7
	}
	headroom := (*ind.Resistance1 - price) / price
	return clamp01(headroom / 0.05)
}
