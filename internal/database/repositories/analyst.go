package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/marketpipe/internal/domain"
)

// AnalystRepository handles the analyst_rating_trends table.
type AnalystRepository struct {
	*BaseRepository
}

// NewAnalystRepository creates a new analyst repository
func NewAnalystRepository(db *sql.DB, log zerolog.Logger) *AnalystRepository {
	return &AnalystRepository{
		BaseRepository: NewBase(db, log.With().Str("repo", "analyst").Logger()),
	}
}

// Upsert replaces the (ticker, as_of_date) row.
func (r *AnalystRepository) Upsert(c domain.AnalystConsensus) error {
	_, err := r.db.Exec(`
		INSERT OR REPLACE INTO analyst_rating_trends (
			ticker, as_of_date, strong_buy, buy, hold, sell, strong_sell,
			consensus_score, mean_target_price, median_target_price, source
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		normalizeTicker(c.Ticker), c.AsOfDate.Format("2006-01-02"),
		c.StrongBuy, c.Buy, c.Hold, c.Sell, c.StrongSell,
		c.ConsensusScore, nullFloat(c.MeanTargetPrice), nullFloat(c.MedianTargetPrice), c.Source)
	if err != nil {
		return fmt.Errorf("failed to upsert analyst consensus for %s: %w", c.Ticker, err)
	}
	return nil
}

// Latest returns the most recent consensus for a ticker, nil when absent.
func (r *AnalystRepository) Latest(ticker string) (*domain.AnalystConsensus, error) {
	row := r.db.QueryRow(`
		SELECT ticker, as_of_date, strong_buy, buy, hold, sell, strong_sell,
			consensus_score, mean_target_price, median_target_price, source
		FROM analyst_rating_trends WHERE ticker = ?
		ORDER BY as_of_date DESC LIMIT 1`, normalizeTicker(ticker))

	var (
		c       domain.AnalystConsensus
		dateStr string
		mean    sql.NullFloat64
		median  sql.NullFloat64
	)
	err := row.Scan(&c.Ticker, &dateStr, &c.StrongBuy, &c.Buy, &c.Hold, &c.Sell, &c.StrongSell,
		&c.ConsensusScore, &mean, &median, &c.Source)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan analyst consensus: %w", err)
	}

	date, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		return nil, fmt.Errorf("bad as_of_date in analyst_rating_trends: %w", err)
	}
	c.AsOfDate = date
	c.MeanTargetPrice = floatPtr(mean)
	c.MedianTargetPrice = floatPtr(median)

	return &c, nil
}
