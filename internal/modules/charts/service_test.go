package charts

import (
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/marketpipe/internal/domain"
)

func makeBars(n int) []domain.Bar {
	bars := make([]domain.Bar, n)
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range bars {
		// Gentle uptrend with a small oscillation so indicators have texture.
		base := 100.0 + float64(i)*0.5 + 2*math.Sin(float64(i)/5)
		bars[i] = domain.Bar{
			Date:   start.AddDate(0, 0, i),
			Open:   base - 0.5,
			High:   base + 1,
			Low:    base - 1,
			Close:  base,
			Volume: 1000 + int64(i),
		}
	}
	return bars
}

func TestComputeBelowMinimumHistoryIsAllNil(t *testing.T) {
	s := NewService(100, 200, zerolog.Nop())

	set := s.Compute(makeBars(99))
	assert.Nil(t, set.EMA20)
	assert.Nil(t, set.RSI14)
	assert.Nil(t, set.MACD)
	assert.Nil(t, set.VWAP)
	assert.Nil(t, set.PivotPoint)
	assert.Nil(t, set.High52Week)
}

func TestComputeFullSetAt200Bars(t *testing.T) {
	s := NewService(100, 200, zerolog.Nop())

	set := s.Compute(makeBars(200))

	require.NotNil(t, set.EMA20)
	require.NotNil(t, set.EMA50)
	require.NotNil(t, set.EMA100)
	require.NotNil(t, set.RSI14)
	require.NotNil(t, set.MACD)
	require.NotNil(t, set.MACDSignal)
	require.NotNil(t, set.MACDHist)
	require.NotNil(t, set.BollingerUpper)
	require.NotNil(t, set.BollingerPctB)
	require.NotNil(t, set.ATR14)
	require.NotNil(t, set.ADX14)
	require.NotNil(t, set.CCI20)
	require.NotNil(t, set.StochK)
	require.NotNil(t, set.StochD)
	require.NotNil(t, set.VWAP)
	require.NotNil(t, set.OBV)
	require.NotNil(t, set.VPT)
	require.NotNil(t, set.PivotPoint)
	require.NotNil(t, set.SwingHigh20)
	require.NotNil(t, set.High52Week)
	require.NotNil(t, set.Low52Week)

	// Bounded indicators come back clipped.
	assert.GreaterOrEqual(t, *set.RSI14, 0.0)
	assert.LessOrEqual(t, *set.RSI14, 100.0)
	assert.GreaterOrEqual(t, *set.ADX14, 0.0)
	assert.LessOrEqual(t, *set.ADX14, 100.0)
	assert.GreaterOrEqual(t, *set.CCI20, -300.0)
	assert.LessOrEqual(t, *set.CCI20, 300.0)

	// The uptrend keeps the short EMA above the long one.
	assert.Greater(t, *set.EMA20, *set.EMA100)
}

func TestComputeIndicatorsNeedingMoreHistoryStayNil(t *testing.T) {
	s := NewService(100, 200, zerolog.Nop())

	// 120 bars clears the floor but not EMA200.
	set := s.Compute(makeBars(120))
	require.NotNil(t, set.EMA100)
	assert.Nil(t, set.EMA200)
}

func TestComputeFiftyTwoWeekRangeUsesIntradayExtremes(t *testing.T) {
	s := NewService(100, 200, zerolog.Nop())
	bars := makeBars(150)

	var maxClose, minClose float64 = 0, math.MaxFloat64
	for _, b := range bars {
		maxClose = math.Max(maxClose, b.Close)
		minClose = math.Min(minClose, b.Close)
	}

	set := s.Compute(bars)
	require.NotNil(t, set.High52Week)
	require.NotNil(t, set.Low52Week)

	// Each bar's High sits above its Close and its Low below, so a range
	// computed from closes alone would land strictly inside these.
	assert.Greater(t, *set.High52Week, maxClose)
	assert.Less(t, *set.Low52Week, minClose)
	assert.InDelta(t, maxClose+1, *set.High52Week, 1e-9)
	assert.InDelta(t, minClose-1, *set.Low52Week, 1e-9)
}

func TestComputePivotArithmetic(t *testing.T) {
	s := NewService(100, 200, zerolog.Nop())
	bars := makeBars(150)
	latest := bars[len(bars)-1]

	set := s.Compute(bars)
	require.NotNil(t, set.PivotPoint)

	p := (latest.High + latest.Low + latest.Close) / 3
	assert.InDelta(t, p, *set.PivotPoint, 1e-9)
	assert.InDelta(t, 2*p-latest.High, *set.Support1, 1e-9)
	assert.InDelta(t, 2*p-latest.Low, *set.Resistance1, 1e-9)
}
