package scorers

import (
	"math"

	"github.com/aristath/marketpipe/internal/domain"
)

// ValueScorer scores how cheap the stock is relative to its fundamentals:
// lower valuation multiples score higher, plus a Graham-number margin of
// safety when one can be computed.
type ValueScorer struct{}

// NewValueScorer creates a new value scorer.
func NewValueScorer() *ValueScorer {
	return &ValueScorer{}
}

// Calculate scores valuation.
// Components: PE (30%), PB (20%), EV/EBITDA (20%), PEG (10%), Graham margin (20%).
func (vs *ValueScorer) Calculate(r *domain.RatioRow, price float64, t *Tracker) float64 {
	pe := t.Value("pe", r.PE, 20)
	pb := t.Value("pb", r.PB, 3)
	evEbitda := t.Value("ev_to_ebitda", r.EVToEBITDA, 12)
	peg := t.Value("peg", r.PEG, 2)

	// Inverse scales: a PE of 10 or below is full marks, 40+ is zero.
	peScore := inverseScale(pe, 10, 40)
	pbScore := inverseScale(pb, 1, 8)
	evScore := inverseScale(evEbitda, 6, 25)
	pegScore := inverseScale(peg, 1, 3)

	graham := vs.grahamMargin(r, price, t)

	return toScore(peScore*0.30 + pbScore*0.20 + evScore*0.20 + pegScore*0.10 + graham*0.20)
}

// grahamMargin scores price against the Graham number: trading at or below
// it is full marks, 50% above it is zero.
func (vs *ValueScorer) grahamMargin(r *domain.RatioRow, price float64, t *Tracker) float64 {
	if !t.Have("graham_number", r.GrahamNum) || price <= 0 {
		return 0.5
	}
	premium := (price - *r.GrahamNum) / *r.GrahamNum
	return clamp01(1 - premium*2)
}

// inverseScale maps v linearly from [best, worst] onto [1, 0].
func inverseScale(v, best, worst float64) float64 {
	if worst <= best {
		return 0.5
	}
	v = math.Max(best, math.Min(worst, v))
	return 1 - (v-best)/(worst-best)
}
