package repositories

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/marketpipe/internal/database"
	"github.com/aristath/marketpipe/internal/domain"
)

func newTestGateway(t *testing.T) *Gateway {
	t.Helper()

	db, err := database.NewInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.Migrate())

	return NewGateway(db.Conn(), time.Second, zerolog.Nop())
}

func seedInstrument(t *testing.T, g *Gateway, ticker string) {
	t.Helper()
	require.NoError(t, g.Instruments.Upsert(domain.Instrument{
		Ticker: ticker,
		Name:   ticker + " Inc",
		Sector: "Technology",
		Active: true,
	}))
}

func f(v float64) *float64 { return &v }

func TestInstrumentUpsertAndGet(t *testing.T) {
	g := newTestGateway(t)
	seedInstrument(t, g, "AAPL")

	inst, err := g.Instruments.Get("aapl")
	require.NoError(t, err)
	require.NotNil(t, inst)
	assert.Equal(t, "AAPL", inst.Ticker)
	assert.Equal(t, "Technology", inst.Sector)
	assert.True(t, inst.Active)

	missing, err := g.Instruments.Get("ZZZZ")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestPriceUpsertDoesNotNullExistingIndicators(t *testing.T) {
	g := newTestGateway(t)
	seedInstrument(t, g, "AAPL")

	date := time.Date(2026, 8, 21, 0, 0, 0, 0, time.UTC)
	bar := domain.Bar{Date: date, Open: 100, High: 105, Low: 99, Close: 104, Volume: 1000}

	// First write carries RSI; second write for the same day carries none.
	require.NoError(t, g.Prices.Upsert("AAPL", bar, &domain.IndicatorSet{RSI14: f(55.25)}))
	require.NoError(t, g.Prices.Upsert("AAPL", bar, nil))

	rsi, _, _, err := g.Prices.Oscillators("AAPL", date)
	require.NoError(t, err)
	require.NotNil(t, rsi)
	assert.InDelta(t, 55.25, *rsi, 1e-9)
}

func TestPriceOscillatorScalingRoundTrip(t *testing.T) {
	g := newTestGateway(t)
	seedInstrument(t, g, "AAPL")

	date := time.Date(2026, 8, 21, 0, 0, 0, 0, time.UTC)
	bar := domain.Bar{Date: date, Open: 100, High: 105, Low: 99, Close: 104, Volume: 1000}
	require.NoError(t, g.Prices.Upsert("AAPL", bar, &domain.IndicatorSet{
		RSI14: f(67.89),
		ADX14: f(23.4),
		CCI20: f(-150.55),
	}))

	rsi, adx, cci, err := g.Prices.Oscillators("AAPL", date)
	require.NoError(t, err)
	require.NotNil(t, rsi)
	require.NotNil(t, adx)
	require.NotNil(t, cci)
	assert.InDelta(t, 67.89, *rsi, 0.005)
	assert.InDelta(t, 23.4, *adx, 0.005)
	assert.InDelta(t, -150.55, *cci, 0.005)
}

func TestBarsReturnsOldestFirst(t *testing.T) {
	g := newTestGateway(t)
	seedInstrument(t, g, "AAPL")

	for i := 0; i < 5; i++ {
		date := time.Date(2026, 8, 10+i, 0, 0, 0, 0, time.UTC)
		bar := domain.Bar{Date: date, Open: 100, High: 101, Low: 99, Close: float64(100 + i), Volume: 10}
		require.NoError(t, g.Prices.Upsert("AAPL", bar, nil))
	}

	bars, err := g.Prices.Bars("AAPL", 3)
	require.NoError(t, err)
	require.Len(t, bars, 3)
	assert.True(t, bars[0].Date.Before(bars[1].Date))
	assert.Equal(t, 104.0, bars[2].Close)
}

func TestTickersUnderBarCountOrdersLeastDataFirst(t *testing.T) {
	g := newTestGateway(t)
	seedInstrument(t, g, "AAA")
	seedInstrument(t, g, "BBB")
	seedInstrument(t, g, "CCC")

	addBars := func(ticker string, n int) {
		for i := 0; i < n; i++ {
			date := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i)
			require.NoError(t, g.Prices.Upsert(ticker, domain.Bar{
				Date: date, Open: 1, High: 1, Low: 1, Close: 1, Volume: 1,
			}, nil))
		}
	}
	addBars("AAA", 5)
	addBars("BBB", 2)
	// CCC has no bars at all.

	tickers, err := g.Prices.TickersUnderBarCount(10)
	require.NoError(t, err)
	assert.Equal(t, []string{"CCC", "BBB", "AAA"}, tickers)
}

func TestFundamentalsProvenanceRoundTrip(t *testing.T) {
	g := newTestGateway(t)
	seedInstrument(t, g, "AAPL")

	snap := domain.FundamentalSnapshot{
		Ticker:          "AAPL",
		FiscalPeriodEnd: time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC),
		Source:          "yahoo",
	}
	snap.Set(domain.FieldRevenue, 1e9, domain.Provenance{Source: "yahoo", Confidence: 0.9})
	snap.Set(domain.FieldSharesOutstanding, 5e8, domain.Provenance{Source: "finnhub", Confidence: 0.8})

	require.NoError(t, g.Fundamentals.Upsert(snap))

	got, err := g.Fundamentals.Latest("AAPL")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.InDelta(t, 1e9, *got.Revenue, 1)
	assert.Equal(t, "yahoo", got.Provenance[domain.FieldRevenue].Source)
	assert.Equal(t, "finnhub", got.Provenance[domain.FieldSharesOutstanding].Source)
	assert.Nil(t, got.NetIncome)
}

func TestTickersMissingRequired(t *testing.T) {
	g := newTestGateway(t)
	seedInstrument(t, g, "FULL")
	seedInstrument(t, g, "PART")
	seedInstrument(t, g, "NONE")

	full := domain.FundamentalSnapshot{
		Ticker:          "FULL",
		FiscalPeriodEnd: time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC),
		Source:          "yahoo",
	}
	for _, field := range domain.RequiredFundamentalFields {
		full.Set(field, 100, domain.Provenance{Source: "yahoo", Confidence: 0.9})
	}
	require.NoError(t, g.Fundamentals.Upsert(full))

	part := domain.FundamentalSnapshot{
		Ticker:          "PART",
		FiscalPeriodEnd: time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC),
		Source:          "yahoo",
	}
	part.Set(domain.FieldRevenue, 100, domain.Provenance{Source: "yahoo", Confidence: 0.9})
	require.NoError(t, g.Fundamentals.Upsert(part))

	missing, err := g.Fundamentals.TickersMissingRequired()
	require.NoError(t, err)
	assert.Equal(t, []string{"NONE", "PART"}, missing)
}

func TestScoreUpsertIsIdempotentPerDay(t *testing.T) {
	g := newTestGateway(t)
	seedInstrument(t, g, "AAPL")

	row := domain.ScoreRow{
		Ticker:            "AAPL",
		AsOfDate:          time.Date(2026, 8, 21, 0, 0, 0, 0, time.UTC),
		FundamentalHealth: 70,
		ValueInvestment:   60,
		TechnicalHealth:   55,
		TradingSignal:     50,
		Risk:              40,
		VWAPSupportResist: 65,
		Composite:         58.5,
		Grade:             domain.GradeNeutral,
		DataConfidence:    0.85,
		Version:           "v1",
	}

	require.NoError(t, g.Scores.Upsert(row))
	require.NoError(t, g.Scores.Upsert(row))

	current, err := g.Scores.Current("AAPL")
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, 58.5, current.Composite)
	assert.Equal(t, domain.GradeNeutral, current.Grade)

	// Two writes on the same day collapse to one history row; a new day
	// appends.
	count, err := g.Scores.HistoryCount("AAPL")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	row.AsOfDate = row.AsOfDate.AddDate(0, 0, 1)
	require.NoError(t, g.Scores.Upsert(row))
	count, err = g.Scores.HistoryCount("AAPL")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestDeleteTickerRemovesAllChildRows(t *testing.T) {
	g := newTestGateway(t)
	seedInstrument(t, g, "ZZZZ")

	date := time.Date(2026, 8, 21, 0, 0, 0, 0, time.UTC)
	require.NoError(t, g.Prices.Upsert("ZZZZ", domain.Bar{
		Date: date, Open: 1, High: 1, Low: 1, Close: 1, Volume: 1,
	}, nil))
	require.NoError(t, g.Scores.Upsert(domain.ScoreRow{
		Ticker: "ZZZZ", AsOfDate: date, Grade: domain.GradeNeutral, Version: "v1",
	}))
	require.NoError(t, g.Analyst.Upsert(domain.AnalystConsensus{
		Ticker: "ZZZZ", AsOfDate: date, Hold: 3, ConsensusScore: 0.5, Source: "yahoo",
	}))

	require.NoError(t, g.DeleteTicker("ZZZZ"))

	inst, err := g.Instruments.Get("ZZZZ")
	require.NoError(t, err)
	assert.Nil(t, inst)

	bars, err := g.Prices.Bars("ZZZZ", 10)
	require.NoError(t, err)
	assert.Empty(t, bars)

	score, err := g.Scores.Current("ZZZZ")
	require.NoError(t, err)
	assert.Nil(t, score)
}

func TestTransactionsHonorConfiguredDeadline(t *testing.T) {
	db, err := database.NewInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate())

	g := NewGateway(db.Conn(), time.Nanosecond, zerolog.Nop())
	seedInstrument(t, g, "AAPL")

	// An expired deadline must fail the transactional writes instead of
	// running them unbounded.
	err = g.Scores.Upsert(domain.ScoreRow{
		Ticker: "AAPL", AsOfDate: time.Date(2026, 8, 21, 0, 0, 0, 0, time.UTC),
		Grade: domain.GradeNeutral, Version: "v1",
	})
	assert.Error(t, err)

	assert.Error(t, g.DeleteTicker("AAPL"))
}

func TestEarningsWindowSelection(t *testing.T) {
	g := newTestGateway(t)
	seedInstrument(t, g, "NEAR")
	seedInstrument(t, g, "FAR")

	day := time.Date(2026, 8, 21, 0, 0, 0, 0, time.UTC)
	require.NoError(t, g.Earnings.Upsert(domain.EarningsEvent{
		Ticker: "NEAR", EventDate: day.AddDate(0, 0, 3), Source: "finnhub",
	}))
	require.NoError(t, g.Earnings.Upsert(domain.EarningsEvent{
		Ticker: "FAR", EventDate: day.AddDate(0, 0, 30), Source: "finnhub",
	}))

	tickers, err := g.Earnings.TickersWithEarningsWithin(day, 7)
	require.NoError(t, err)
	assert.Equal(t, []string{"NEAR"}, tickers)
}

func TestRunSummaryPersistence(t *testing.T) {
	g := newTestGateway(t)

	now := time.Now()
	require.NoError(t, g.Runs.Insert(now, now.Add(-time.Minute), now, `{"status":"done"}`))

	summary, err := g.Runs.LatestSummary()
	require.NoError(t, err)
	assert.Equal(t, `{"status":"done"}`, summary)
}
