package scorers

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aristath/marketpipe/internal/domain"
)

func f(v float64) *float64 { return &v }

func TestTrackerBooksImputedAndSkippedInputs(t *testing.T) {
	tr := &Tracker{}

	assert.Equal(t, 1.0, tr.Confidence())

	assert.Equal(t, 0.42, tr.Value("roe", f(0.42), 0.10))
	assert.Equal(t, 0.10, tr.Value("net_margin", nil, 0.10))
	assert.True(t, tr.Have("pe", f(18)))
	assert.False(t, tr.Have("peg", nil))

	assert.InDelta(t, 0.5, tr.Confidence(), 1e-9)
	assert.Equal(t, []string{"net_margin", "peg"}, tr.Missing())
	assert.Equal(t, []string{"net_margin"}, tr.Estimated())
}

func TestFundamentalHealthOrdersStrongAboveWeak(t *testing.T) {
	strong := &domain.RatioRow{
		ROE:               f(0.30),
		NetMargin:         f(0.22),
		DebtToEquity:      f(0.3),
		CurrentRatio:      f(2.5),
		RevenueGrowthYoY:  f(0.25),
		EarningsGrowthYoY: f(0.30),
	}
	weak := &domain.RatioRow{
		ROE:               f(-0.05),
		NetMargin:         f(-0.10),
		DebtToEquity:      f(3.5),
		CurrentRatio:      f(0.6),
		RevenueGrowthYoY:  f(-0.20),
		EarningsGrowthYoY: f(-0.40),
	}

	scorer := NewFundamentalHealthScorer()
	strongScore := scorer.Calculate(strong, &Tracker{})
	weakScore := scorer.Calculate(weak, &Tracker{})

	assert.Greater(t, strongScore, weakScore)
	assert.Greater(t, strongScore, 70.0)
	assert.Less(t, weakScore, 30.0)
}

func TestValueScorerPrefersCheapMultiples(t *testing.T) {
	cheap := &domain.RatioRow{PE: f(8), PB: f(0.9), EVToEBITDA: f(5), PEG: f(0.8), GrahamNum: f(150)}
	rich := &domain.RatioRow{PE: f(60), PB: f(12), EVToEBITDA: f(35), PEG: f(4), GrahamNum: f(40)}

	scorer := NewValueScorer()
	cheapScore := scorer.Calculate(cheap, 100, &Tracker{})
	richScore := scorer.Calculate(rich, 100, &Tracker{})

	assert.Greater(t, cheapScore, richScore)
}

func TestRiskScorerHigherMeansSafer(t *testing.T) {
	calm := &domain.IndicatorSet{
		ATR14:          f(1.0), // 1% of price
		BollingerUpper: f(102),
		BollingerLower: f(98),
	}
	violent := &domain.IndicatorSet{
		ATR14:          f(7.0),
		BollingerUpper: f(115),
		BollingerLower: f(85),
	}

	// Flat series: zero realized volatility, zero drawdown.
	flat := make([]float64, 60)
	for i := range flat {
		flat[i] = 100
	}
	// Sawtooth with a deep crash.
	crashed := make([]float64, 60)
	for i := range crashed {
		crashed[i] = 100 - float64(i%2)*8
	}
	crashed[59] = 45

	scorer := NewRiskScorer()
	bigCap := f(50e9)
	safe := scorer.Calculate(calm, flat, 100, "Utilities", bigCap, f(15), &Tracker{})
	risky := scorer.Calculate(violent, crashed, 100, "Technology", f(500e6), f(120), &Tracker{})

	assert.Greater(t, safe, risky)
	assert.Greater(t, safe, 60.0)
	assert.Less(t, risky, 40.0)
}

func TestRiskScorerNeutralWithoutPrice(t *testing.T) {
	scorer := NewRiskScorer()
	score := scorer.Calculate(&domain.IndicatorSet{}, nil, 0, "", nil, nil, &Tracker{})
	assert.GreaterOrEqual(t, score, 0.0)
	assert.LessOrEqual(t, score, 100.0)
}

func TestVWAPScorerRewardsPriceAboveVWAPNearSupport(t *testing.T) {
	ind := &domain.IndicatorSet{
		VWAP:        f(98),
		Support1:    f(99),
		Resistance1: f(110),
	}
	scorer := NewVWAPScorer()

	nearSupport := scorer.Calculate(ind, 100, &Tracker{})
	belowSupport := scorer.Calculate(ind, 95, &Tracker{})

	assert.Greater(t, nearSupport, belowSupport)
}
