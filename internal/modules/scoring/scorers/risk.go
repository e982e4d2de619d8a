package scorers

import (
	"github.com/aristath/marketpipe/internal/domain"
	"github.com/aristath/marketpipe/pkg/formulas"
)

// Sectors whose names appear here get the growth-stock risk multiplier.
var growthSectors = map[string]bool{
	"Technology":             true,
	"Communication Services": true,
	"Consumer Cyclical":      true,
}

// Market-cap tiers in absolute dollars.
const (
	smallCapCeiling = 2e9
	midCapCeiling   = 10e9
)

// RiskScorer scores downside risk on a 0-100 scale where HIGHER means
// SAFER, so the component composes with the others without sign flips.
// Technical volatility sets the base; sector, cap tier and valuation
// extremes multiply the riskiness up.
type RiskScorer struct{}

// NewRiskScorer creates a new risk scorer.
func NewRiskScorer() *RiskScorer {
	return &RiskScorer{}
}

// Calculate scores risk from volatility, realized price behavior and
// structural multipliers. closes is the daily close series, oldest first.
func (rs *RiskScorer) Calculate(ind *domain.IndicatorSet, closes []float64, price float64, sector string, marketCap *float64, pe *float64, t *Tracker) float64 {
	risk := rs.volatilityRisk(ind, price, t)

	if len(closes) >= 30 {
		risk = risk*0.5 + rs.realizedRisk(closes)*0.25 + rs.drawdownRisk(closes)*0.25
	}

	// Structural multipliers scale riskiness, never reduce it.
	multiplier := 1.0
	if growthSectors[sector] {
		multiplier *= 1.15
	}
	multiplier *= rs.capTierMultiplier(marketCap, t)
	multiplier *= rs.valuationMultiplier(pe, t)

	risk = clamp01(risk * multiplier)
	return toScore(1 - risk)
}

// volatilityRisk derives base riskiness in [0,1] from ATR relative to price
// and Bollinger band width.
func (rs *RiskScorer) volatilityRisk(ind *domain.IndicatorSet, price float64, t *Tracker) float64 {
	atr := t.Value("atr_14", ind.ATR14, 0)
	if price <= 0 {
		return 0.5
	}

	// ATR at 1% of price is calm, 6%+ is violent.
	atrPct := atr / price
	risk := clamp01((atrPct - 0.01) / 0.05)

	if t.Have("bollinger_upper", ind.BollingerUpper) && t.Have("bollinger_lower", ind.BollingerLower) {
		width := (*ind.BollingerUpper - *ind.BollingerLower) / price
		// Band width at 4% of price is calm, 20%+ is violent.
		bandRisk := clamp01((width - 0.04) / 0.16)
		risk = risk*0.6 + bandRisk*0.4
	}
	return risk
}

// realizedRisk maps annualized volatility of daily returns to [0,1]. 15%
// annualized is calm, 60%+ is violent.
func (rs *RiskScorer) realizedRisk(closes []float64) float64 {
	vol := formulas.AnnualizedVolatility(formulas.CalculateReturns(closes))
	return clamp01((vol - 0.15) / 0.45)
}

// drawdownRisk maps the worst peak-to-trough loss to [0,1]. A 10% drawdown
// is routine, 50%+ is a broken chart.
func (rs *RiskScorer) drawdownRisk(closes []float64) float64 {
	dd := formulas.CalculateMaxDrawdown(closes)
	if dd == nil {
		return 0.5
	}
	return clamp01((*dd - 0.10) / 0.40)
}

func (rs *RiskScorer) capTierMultiplier(marketCap *float64, t *Tracker) float64 {
	if !t.Have("market_cap", marketCap) {
		return 1.1
	}
	switch {
	case *marketCap < smallCapCeiling:
		return 1.3
	case *marketCap < midCapCeiling:
		return 1.1
	default:
		return 1.0
	}
}

// valuationMultiplier amplifies risk for extreme multiples; a missing or
// negative PE (loss-maker) is itself an extreme.
func (rs *RiskScorer) valuationMultiplier(pe *float64, t *Tracker) float64 {
	if !t.Have("pe", pe) {
		return 1.2
	}
	switch {
	case *pe > 80:
		return 1.3
	case *pe > 40:
		return 1.15
	default:
		return 1.0
	}
}
