package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/marketpipe/internal/domain"
)

// EarningsRepository handles the earnings_calendar table.
type EarningsRepository struct {
	*BaseRepository
}

// NewEarningsRepository creates a new earnings repository
func NewEarningsRepository(db *sql.DB, log zerolog.Logger) *EarningsRepository {
	return &EarningsRepository{
		BaseRepository: NewBase(db, log.With().Str("repo", "earnings").Logger()),
	}
}

// Upsert replaces the (ticker, event_date) row.
func (r *EarningsRepository) Upsert(ev domain.EarningsEvent) error {
	_, err := r.db.Exec(`
		INSERT OR REPLACE INTO earnings_calendar (ticker, event_date, reported, source)
		VALUES (?, ?, ?, ?)`,
		normalizeTicker(ev.Ticker), ev.EventDate.Format("2006-01-02"), ev.Reported, ev.Source)
	if err != nil {
		return fmt.Errorf("failed to upsert earnings event for %s: %w", ev.Ticker, err)
	}
	return nil
}

// TickersWithEarningsWithin returns active tickers with an earnings event
// inside [day-window, day+window], ticker ascending.
func (r *EarningsRepository) TickersWithEarningsWithin(day time.Time, window int) ([]string, error) {
	from := day.AddDate(0, 0, -window).Format("2006-01-02")
	to := day.AddDate(0, 0, window).Format("2006-01-02")

	rows, err := r.db.Query(`
		SELECT DISTINCT e.ticker
		FROM earnings_calendar e
		JOIN stocks s ON s.ticker = e.ticker AND s.active = 1
		WHERE e.event_date BETWEEN ? AND ?
		ORDER BY e.ticker ASC`, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query earnings window: %w", err)
	}
	defer rows.Close()

	var tickers []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("failed to scan earnings ticker: %w", err)
		}
		tickers = append(tickers, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating earnings tickers: %w", err)
	}
	return tickers, nil
}

// Events returns all calendar entries for a ticker, nearest first.
func (r *EarningsRepository) Events(ticker string) ([]domain.EarningsEvent, error) {
	rows, err := r.db.Query(`
		SELECT ticker, event_date, reported, source
		FROM earnings_calendar WHERE ticker = ?
		ORDER BY event_date ASC`, normalizeTicker(ticker))
	if err != nil {
		return nil, fmt.Errorf("failed to query earnings events: %w", err)
	}
	defer rows.Close()

	var events []domain.EarningsEvent
	for rows.Next() {
		var (
			ev      domain.EarningsEvent
			dateStr string
		)
		if err := rows.Scan(&ev.Ticker, &dateStr, &ev.Reported, &ev.Source); err != nil {
			return nil, fmt.Errorf("failed to scan earnings event: %w", err)
		}
		date, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			return nil, fmt.Errorf("bad event_date: %w", err)
		}
		ev.EventDate = date
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating earnings events: %w", err)
	}
	return events, nil
}
