package scoring

import (
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/marketpipe/internal/config"
	"github.com/aristath/marketpipe/internal/database"
	"github.com/aristath/marketpipe/internal/database/repositories"
	"github.com/aristath/marketpipe/internal/domain"
	"github.com/aristath/marketpipe/internal/modules/charts"
)

func f(v float64) *float64 { return &v }

func newTestService(t *testing.T) (*Service, *repositories.Gateway) {
	t.Helper()

	db, err := database.NewInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate())

	cfg := config.DefaultPipeline()
	gateway := repositories.NewGateway(db.Conn(), time.Second, zerolog.Nop())
	chartSvc := charts.NewService(cfg.MinHistoryBars, cfg.TargetHistoryBars, zerolog.Nop())

	return NewService(gateway, chartSvc, cfg, zerolog.Nop()), gateway
}

func seedBars(t *testing.T, g *repositories.Gateway, ticker string, n int) {
	t.Helper()
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		base := 100.0 + float64(i)*0.3 + 2*math.Sin(float64(i)/7)
		bar := domain.Bar{
			Date:   start.AddDate(0, 0, i),
			Open:   base - 0.5,
			High:   base + 1,
			Low:    base - 1,
			Close:  base,
			Volume: 5000 + int64(i)*10,
		}
		require.NoError(t, g.Prices.Upsert(ticker, bar, nil))
	}
}

func seedRatios(t *testing.T, g *repositories.Gateway, ticker string) {
	t.Helper()
	require.NoError(t, g.Ratios.Upsert(domain.RatioRow{
		Ticker:            ticker,
		AsOfDate:          time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC),
		PE:                f(18),
		PB:                f(4),
		EVToEBITDA:        f(11),
		PEG:               f(1.4),
		GrahamNum:         f(120),
		ROE:               f(0.22),
		NetMargin:         f(0.18),
		DebtToEquity:      f(0.8),
		CurrentRatio:      f(1.6),
		RevenueGrowthYoY:  f(0.12),
		EarningsGrowthYoY: f(0.15),
		MarketCap:         f(50e9),
	}))
}

func TestScoreTickerCompositeIsWeightedSum(t *testing.T) {
	svc, g := newTestService(t)
	require.NoError(t, g.Instruments.Upsert(domain.Instrument{Ticker: "AAPL", Name: "Apple", Sector: "Technology", Active: true}))
	seedBars(t, g, "AAPL", 200)
	seedRatios(t, g, "AAPL")

	row, err := svc.ScoreTicker("AAPL", time.Date(2026, 8, 21, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	cfg := config.DefaultPipeline()
	expected := cfg.ScoringWeights["fundamental"]*row.FundamentalHealth +
		cfg.ScoringWeights["technical"]*row.TechnicalHealth +
		cfg.ScoringWeights["value"]*row.ValueInvestment +
		cfg.ScoringWeights["signal"]*row.TradingSignal +
		cfg.ScoringWeights["risk"]*row.Risk +
		cfg.ScoringWeights["vwap_sr"]*row.VWAPSupportResist

	assert.InDelta(t, expected, row.Composite, 1e-6)
	assert.Equal(t, domain.GradeFor(row.Composite), row.Grade)
	assert.Equal(t, ScoreVersion, row.Version)

	for _, component := range []float64{
		row.FundamentalHealth, row.ValueInvestment, row.TechnicalHealth,
		row.TradingSignal, row.Risk, row.VWAPSupportResist, row.Composite,
	} {
		assert.GreaterOrEqual(t, component, 0.0)
		assert.LessOrEqual(t, component, 100.0)
	}
}

func TestScoreTickerRichInputsAreHighConfidence(t *testing.T) {
	svc, g := newTestService(t)
	require.NoError(t, g.Instruments.Upsert(domain.Instrument{Ticker: "AAPL", Name: "Apple", Sector: "Technology", Active: true}))
	seedBars(t, g, "AAPL", 200)
	seedRatios(t, g, "AAPL")

	row, err := svc.ScoreTicker("AAPL", time.Now())
	require.NoError(t, err)

	assert.False(t, row.LowConfidence)
	assert.GreaterOrEqual(t, row.DataConfidence, 0.70)
}

func TestScoreTickerThinInputsAreFlaggedLowConfidence(t *testing.T) {
	svc, g := newTestService(t)
	require.NoError(t, g.Instruments.Upsert(domain.Instrument{Ticker: "THIN", Name: "Thin Co", Sector: "", Active: true}))
	// Enough bars for a price but not for any indicator.
	seedBars(t, g, "THIN", 10)

	row, err := svc.ScoreTicker("THIN", time.Now())
	require.NoError(t, err)

	assert.True(t, row.LowConfidence)
	assert.Less(t, row.DataConfidence, 0.70)
	assert.NotEmpty(t, row.MissingFields)
	assert.NotEmpty(t, row.EstimatedFields)
	assert.Contains(t, row.EstimatedFields, "rsi_14")
	assert.Contains(t, row.EstimatedFields, "pe")
}

func TestScoreTickerNoBarsIsInsufficientData(t *testing.T) {
	svc, g := newTestService(t)
	require.NoError(t, g.Instruments.Upsert(domain.Instrument{Ticker: "EMPTY", Name: "Empty", Active: true}))

	_, err := svc.ScoreTicker("EMPTY", time.Now())
	assert.ErrorIs(t, err, domain.ErrInsufficientData)
}

func TestScoreAndPersistWritesCurrentAndHistory(t *testing.T) {
	svc, g := newTestService(t)
	require.NoError(t, g.Instruments.Upsert(domain.Instrument{Ticker: "AAPL", Name: "Apple", Sector: "Technology", Active: true}))
	seedBars(t, g, "AAPL", 200)
	seedRatios(t, g, "AAPL")

	asOf := time.Date(2026, 8, 21, 0, 0, 0, 0, time.UTC)
	row, err := svc.ScoreAndPersist("AAPL", asOf)
	require.NoError(t, err)

	current, err := g.Scores.Current("AAPL")
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.InDelta(t, row.Composite, current.Composite, 1e-6)

	count, err := g.Scores.HistoryCount("AAPL")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
