package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newNYCalendar(t *testing.T) *TradingCalendar {
	t.Helper()
	cal, err := NewTradingCalendar("America/New_York", nil, nil)
	require.NoError(t, err)
	return cal
}

func TestIsTradingDay(t *testing.T) {
	cal := newNYCalendar(t)

	tests := []struct {
		name     string
		date     time.Time
		expected bool
	}{
		{"regular friday", time.Date(2026, 8, 21, 12, 0, 0, 0, time.UTC), true},
		{"saturday", time.Date(2026, 8, 22, 12, 0, 0, 0, time.UTC), false},
		{"sunday", time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC), false},
		{"christmas", time.Date(2026, 12, 25, 12, 0, 0, 0, time.UTC), false},
		{"thanksgiving", time.Date(2026, 11, 26, 12, 0, 0, 0, time.UTC), false},
		{"day after thanksgiving", time.Date(2026, 11, 27, 12, 0, 0, 0, time.UTC), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, cal.IsTradingDay(tt.date))
		})
	}
}

func TestIsTradingDayEvaluatesInMarketTimezone(t *testing.T) {
	cal := newNYCalendar(t)

	// Saturday 01:00 UTC is still Friday evening in New York.
	fridayEvening := time.Date(2026, 8, 22, 1, 0, 0, 0, time.UTC)
	assert.True(t, cal.IsTradingDay(fridayEvening))
}

func TestExtraHolidaysCloseTheMarket(t *testing.T) {
	cal, err := NewTradingCalendar("America/New_York", []string{"2026-08-21"}, nil)
	require.NoError(t, err)
	assert.False(t, cal.IsTradingDay(time.Date(2026, 8, 21, 12, 0, 0, 0, time.UTC)))
}

func TestExtraHolidayRejectsMalformedDate(t *testing.T) {
	_, err := NewTradingCalendar("America/New_York", []string{"Aug 21"}, nil)
	assert.Error(t, err)
}

func TestTodayIsMidnightInMarketTimezone(t *testing.T) {
	clock := func() time.Time {
		// 02:30 UTC on the 22nd is 22:30 on the 21st in New York.
		return time.Date(2026, 8, 22, 2, 30, 0, 0, time.UTC)
	}
	cal, err := NewTradingCalendar("America/New_York", nil, clock)
	require.NoError(t, err)

	today := cal.Today()
	assert.Equal(t, 21, today.Day())
	assert.Equal(t, 0, today.Hour())
	assert.Equal(t, "America/New_York", today.Location().String())
}
