package scheduler

import (
	"fmt"
	"time"
)

// usMarketHolidays2026 are the NYSE/NASDAQ full-closure dates for 2026.
var usMarketHolidays2026 = []string{
	"2026-01-01", // New Year's Day
	"2026-01-19", // MLK Day
	"2026-02-16", // Presidents Day
	"2026-04-03", // Good Friday
	"2026-05-25", // Memorial Day
	"2026-06-19", // Juneteenth
	"2026-07-03", // Independence Day (observed)
	"2026-09-07", // Labor Day
	"2026-11-26", // Thanksgiving
	"2026-12-25", // Christmas
}

// TradingCalendar decides whether the market trades on a given date.
// Weekends and fixed full-closure holidays close the market; everything
// else is a trading day.
type TradingCalendar struct {
	loc      *time.Location
	holidays map[string]bool
	clock    func() time.Time
}

// NewTradingCalendar builds a calendar for the given IANA timezone. The
// built-in US closure dates always apply; extraHolidays ("2006-01-02"
// strings) add to them.
func NewTradingCalendar(timezone string, extraHolidays []string, clock func() time.Time) (*TradingCalendar, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %q: %w", timezone, err)
	}
	if clock == nil {
		clock = time.Now
	}

	holidays := make(map[string]bool, len(usMarketHolidays2026)+len(extraHolidays))
	for _, d := range usMarketHolidays2026 {
		holidays[d] = true
	}
	for _, d := range extraHolidays {
		if _, err := time.Parse("2006-01-02", d); err != nil {
			return nil, fmt.Errorf("invalid holiday date %q: %w", d, err)
		}
		holidays[d] = true
	}

	return &TradingCalendar{loc: loc, holidays: holidays, clock: clock}, nil
}

// Today returns the current date at midnight in the market timezone.
func (c *TradingCalendar) Today() time.Time {
	now := c.clock().In(c.loc)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, c.loc)
}

// IsTradingDay reports whether the market is open on the date of t,
// evaluated in the market timezone.
func (c *TradingCalendar) IsTradingDay(t time.Time) bool {
	local := t.In(c.loc)
	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return !c.holidays[local.Format("2006-01-02")]
}
