package scorers

import (
	"math"

	"github.com/aristath/marketpipe/internal/domain"
)

// FundamentalHealthScorer blends profitability, leverage, liquidity and
// growth into one 0-100 health score.
type FundamentalHealthScorer struct{}

// NewFundamentalHealthScorer creates a new fundamental health scorer.
func NewFundamentalHealthScorer() *FundamentalHealthScorer {
	return &FundamentalHealthScorer{}
}

// Calculate scores the ratio row.
// Components: Profitability (40%), Leverage (25%), Liquidity (15%), Growth (20%).
func (fs *FundamentalHealthScorer) Calculate(r *domain.RatioRow, t *Tracker) float64 {
	profitability := fs.profitability(r, t)
	leverage := fs.leverage(r, t)
	liquidity := fs.liquidity(r, t)
	growth := fs.growth(r, t)

	return toScore(profitability*0.40 + leverage*0.25 + liquidity*0.15 + growth*0.20)
}

// profitability scores ROE (50%) and net margin (50%), both higher = better.
func (fs *FundamentalHealthScorer) profitability(r *domain.RatioRow, t *Tracker) float64 {
	roe := t.Value("roe", r.ROE, 0.10)
	margin := t.Value("net_margin", r.NetMargin, 0.05)

	// ROE of 20%+ saturates; negative ROE bottoms out.
	roeScore := clamp01(roe / 0.20)
	marginScore := clamp01(0.5 + margin*2.5)
	if margin < 0 {
		marginScore = math.Max(0, 0.5+margin*2)
	}
	return roeScore*0.5 + marginScore*0.5
}

// leverage scores debt/equity, lower = better, capped at 4.
func (fs *FundamentalHealthScorer) leverage(r *domain.RatioRow, t *Tracker) float64 {
	de := t.Value("debt_to_equity", r.DebtToEquity, 1.0)
	de = math.Min(4, math.Max(0, de))
	return 1 - de/4
}

// liquidity scores the current ratio, 2.0 and above is fully healthy.
func (fs *FundamentalHealthScorer) liquidity(r *domain.RatioRow, t *Tracker) float64 {
	cr := t.Value("current_ratio", r.CurrentRatio, 1.0)
	return clamp01(cr / 2)
}

// growth scores YoY revenue and earnings growth; 20%+ saturates.
func (fs *FundamentalHealthScorer) growth(r *domain.RatioRow, t *Tracker) float64 {
	revenue := t.Value("revenue_growth_yoy", r.RevenueGrowthYoY, 0)
	earnings := t.Value("earnings_growth_yoy", r.EarningsGrowthYoY, 0)

	revScore := clamp01(0.5 + revenue/0.4)
	earnScore := clamp01(0.5 + earnings/0.4)
	return revScore*0.5 + earnScore*0.5
}
