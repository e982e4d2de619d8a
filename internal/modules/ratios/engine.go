// Package ratios derives financial ratios from a fundamentals snapshot and
// a current price. Every ratio is nullable: a missing input, a denominator
// that must be positive but is not, or a value outside the sector's
// plausibility range all yield nil instead of a number.
package ratios

import (
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/marketpipe/internal/config"
	"github.com/aristath/marketpipe/internal/domain"
)

// Engine computes ratio rows. Sector plausibility ranges come from the
// pipeline config.
type Engine struct {
	cfg *config.Pipeline
	log zerolog.Logger
}

// NewEngine creates a new ratio engine.
func NewEngine(cfg *config.Pipeline, log zerolog.Logger) *Engine {
	return &Engine{
		cfg: cfg,
		log: log.With().Str("component", "ratios").Logger(),
	}
}

// Compute derives the full ratio row. prior may be nil; growth ratios then
// stay nil. price must be the current per-share price.
func (e *Engine) Compute(snap *domain.FundamentalSnapshot, prior *domain.FundamentalSnapshot, price float64, sector string, asOf time.Time) domain.RatioRow {
	row := domain.RatioRow{
		Ticker:   snap.Ticker,
		AsOfDate: asOf,
	}
	if price <= 0 {
		return row
	}

	eps := e.effectiveEPS(snap)
	bvps := e.effectiveBookValue(snap)
	marketCap := e.effectiveMarketCap(snap, price)
	ev := e.effectiveEnterpriseValue(snap, marketCap)

	// Valuation
	row.PE = e.plausible(sector, "pe", divPositive(price, eps))
	row.PB = e.plausible(sector, "pb", divPositive(price, bvps))
	if marketCap != nil {
		row.PS = e.plausible(sector, "ps", divPositive(*marketCap, snap.Revenue))
	}
	if ev != nil {
		row.EVToEBITDA = e.plausible(sector, "ev_to_ebitda", divPositive(*ev, snap.EBITDA))
	}
	row.GrahamNum = grahamNumber(eps, bvps)

	// Profitability
	row.ROE = e.plausible(sector, "roe", ratio(snap.NetIncome, positive(snap.TotalEquity)))
	row.ROA = e.plausible(sector, "roa", ratio(snap.NetIncome, positive(snap.TotalAssets)))
	row.ROIC = e.plausible(sector, "roic", roic(snap))
	row.GrossMargin = grossMargin(snap)
	row.OperatingMargin = ratio(snap.OperatingIncome, positive(snap.Revenue))
	row.NetMargin = ratio(snap.NetIncome, positive(snap.Revenue))

	// Health
	row.DebtToEquity = e.plausible(sector, "debt_to_equity", ratio(snap.TotalDebt, positive(snap.TotalEquity)))
	row.CurrentRatio = e.plausible(sector, "current_ratio", ratio(snap.CurrentAssets, positive(snap.CurrentLiabilities)))
	// Quick ratio and interest coverage need inventory and interest expense,
	// which the snapshot field set does not carry; they stay nil.
	row.AltmanZ = altmanZ(snap, marketCap)

	// Efficiency. Inventory and receivables turnover stay nil for the same
	// reason as the quick ratio.
	row.AssetTurnover = ratio(snap.Revenue, positive(snap.TotalAssets))

	// Growth YoY
	if prior != nil {
		row.RevenueGrowthYoY = growth(snap.Revenue, prior.Revenue)
		row.EarningsGrowthYoY = growth(snap.NetIncome, prior.NetIncome)
		row.FCFGrowthYoY = growth(snap.FreeCashFlow, prior.FreeCashFlow)
	}

	// PEG needs both PE and positive earnings growth.
	if row.PE != nil && row.EarningsGrowthYoY != nil && *row.EarningsGrowthYoY > 0 {
		peg := *row.PE / (*row.EarningsGrowthYoY * 100)
		row.PEG = e.plausible(sector, "peg", &peg)
	}

	// Quality. Cash conversion cycle needs inventory and receivables; nil.
	row.FCFToNetIncome = ratio(snap.FreeCashFlow, positive(snap.NetIncome))

	// Market
	row.MarketCap = marketCap
	row.EnterpriseValue = ev

	return row
}

// effectiveEPS returns reported diluted EPS, or derives it from net income
// and shares outstanding when absent.
func (e *Engine) effectiveEPS(snap *domain.FundamentalSnapshot) *float64 {
	if snap.EPSDiluted != nil {
		return snap.EPSDiluted
	}
	return ratio(snap.NetIncome, positive(snap.SharesOutstanding))
}

func (e *Engine) effectiveBookValue(snap *domain.FundamentalSnapshot) *float64 {
	if snap.BookValuePerShare != nil {
		return snap.BookValuePerShare
	}
	return ratio(snap.TotalEquity, positive(snap.SharesOutstanding))
}

func (e *Engine) effectiveMarketCap(snap *domain.FundamentalSnapshot, price float64) *float64 {
	if snap.MarketCap != nil {
		return snap.MarketCap
	}
	if snap.SharesOutstanding != nil && *snap.SharesOutstanding > 0 {
		mc := price * *snap.SharesOutstanding
		return &mc
	}
	return nil
}

// effectiveEnterpriseValue prefers the reported EV and falls back to
// market cap plus total debt (the snapshot carries no cash position).
func (e *Engine) effectiveEnterpriseValue(snap *domain.FundamentalSnapshot, marketCap *float64) *float64 {
	if snap.EnterpriseValue != nil {
		return snap.EnterpriseValue
	}
	if marketCap != nil && snap.TotalDebt != nil {
		ev := *marketCap + *snap.TotalDebt
		return &ev
	}
	return nil
}

// plausible nulls a value outside the sector's configured range.
func (e *Engine) plausible(sector, name string, v *float64) *float64 {
	if v == nil {
		return nil
	}
	rng, ok := e.cfg.RangeFor(sector, name)
	if !ok {
		return v
	}
	if *v < rng.Min || *v > rng.Max {
		return nil
	}
	return v
}

// ratio returns num/den, nil when either side is missing.
func ratio(num, den *float64) *float64 {
	if num == nil || den == nil || *den == 0 {
		return nil
	}
	v := *num / *den
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// divPositive returns num/den only when den is present and positive.
func divPositive(num float64, den *float64) *float64 {
	if den == nil || *den <= 0 {
		return nil
	}
	v := num / *den
	return &v
}

// positive filters a pointer down to strictly positive values.
func positive(v *float64) *float64 {
	if v == nil || *v <= 0 {
		return nil
	}
	return v
}

// growth returns (current - prior) / |prior|.
func growth(current, prior *float64) *float64 {
	if current == nil || prior == nil || *prior == 0 {
		return nil
	}
	v := (*current - *prior) / math.Abs(*prior)
	return &v
}

func grossMargin(snap *domain.FundamentalSnapshot) *float64 {
	if snap.Revenue == nil || *snap.Revenue <= 0 || snap.CostOfGoodsSold == nil {
		return nil
	}
	v := (*snap.Revenue - *snap.CostOfGoodsSold) / *snap.Revenue
	return &v
}

// roic approximates return on invested capital as operating income over
// equity plus debt.
func roic(snap *domain.FundamentalSnapshot) *float64 {
	if snap.OperatingIncome == nil || snap.TotalEquity == nil || snap.TotalDebt == nil {
		return nil
	}
	invested := *snap.TotalEquity + *snap.TotalDebt
	if invested <= 0 {
		return nil
	}
	v := *snap.OperatingIncome / invested
	return &v
}

// grahamNumber is sqrt(22.5 * EPS * BVPS), defined only when both are
// positive.
func grahamNumber(eps, bvps *float64) *float64 {
	if eps == nil || *eps <= 0 || bvps == nil || *bvps <= 0 {
		return nil
	}
	v := math.Sqrt(22.5 * *eps * *bvps)
	return &v
}

// altmanZ computes the Z-score on the four terms the field set supports;
// the retained-earnings term is omitted because no provider serves it.
// Liabilities are approximated as assets minus equity.
func altmanZ(snap *domain.FundamentalSnapshot, marketCap *float64) *float64 {
	if snap.TotalAssets == nil || *snap.TotalAssets <= 0 {
		return nil
	}
	if snap.CurrentAssets == nil || snap.CurrentLiabilities == nil ||
		snap.OperatingIncome == nil || snap.Revenue == nil ||
		snap.TotalEquity == nil || marketCap == nil {
		return nil
	}

	ta := *snap.TotalAssets
	liabilities := ta - *snap.TotalEquity
	if liabilities <= 0 {
		return nil
	}

	workingCapital := *snap.CurrentAssets - *snap.CurrentLiabilities
	z := 1.2*(workingCapital/ta) +
		3.3*(*snap.OperatingIncome/ta) +
		0.6*(*marketCap/liabilities) +
		1.0*(*snap.Revenue/ta)
	return &z
}
