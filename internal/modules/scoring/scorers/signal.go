package scorers

import (
	"github.com/aristath/marketpipe/internal/domain"
)

// SignalScorer scores short-horizon entry quality: momentum, breakout
// proximity and volume confirmation.
type SignalScorer struct{}

// NewSignalScorer creates a new trading signal scorer.
func NewSignalScorer() *SignalScorer {
	return &SignalScorer{}
}

// Calculate scores the latest indicator set.
// Components: Momentum (40%), Breakout (35%), Volume confirmation (25%).
func (ss *SignalScorer) Calculate(ind *domain.IndicatorSet, price float64, t *Tracker) float64 {
	momentum := ss.momentum(ind, t)
	breakout := ss.breakout(ind, price, t)
	volume := ss.volumeConfirmation(ind, t)

	return toScore(momentum*0.40 + breakout*0.35 + volume*0.25)
}

// momentum pairs the stochastic crossover with the MACD histogram.
func (ss *SignalScorer) momentum(ind *domain.IndicatorSet, t *Tracker) float64 {
	k := t.Value("stoch_k", ind.StochK, 50)
	d := t.Value("stoch_d", ind.StochD, 50)
	hist := t.Value("macd_hist", ind.MACDHist, 0)

	score := 0.5
	if k > d && k < 80 {
		// Bullish crossover that is not already overbought.
		score = 0.8
	} else if k < d && k > 20 {
		score = 0.2
	}
	if hist > 0 {
		score += 0.2
	}
	return clamp01(score)
}

// breakout measures the close against the 20-bar swing high and the first
// resistance level.
func (ss *SignalScorer) breakout(ind *domain.IndicatorSet, price float64, t *Tracker) float64 {
	if price <= 0 {
		return 0.5
	}

	score := 0.5
	if t.Have("swing_high_20", ind.SwingHigh20) && *ind.SwingHigh20 > 0 {
		// Within 2% of the swing high or above it counts as a breakout zone.
		proximity := price / *ind.SwingHigh20
		switch {
		case proximity >= 1.0:
			score = 1.0
		case proximity >= 0.98:
			score = 0.8
		default:
			score = clamp01(proximity - 0.5)
		}
	}
	if t.Have("resistance_1", ind.Resistance1) && price > *ind.Resistance1 {
		score = clamp01(score + 0.15)
	}
	return score
}

// volumeConfirmation uses the OBV sign as a cheap proxy for accumulation.
func (ss *SignalScorer) volumeConfirmation(ind *domain.IndicatorSet, t *Tracker) float64 {
	obv := t.Value("obv", ind.OBV, 0)
	vpt := t.Value("vpt", ind.VPT, 0)

	score := 0.5
	if obv > 0 {
		score += 0.25
	} else if obv < 0 {
		score -= 0.25
	}
	if vpt > 0 {
		score += 0.25
	} else if vpt < 0 {
		score -= 0.25
	}
	return clamp01(score)
}
