package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Gateway bundles the table repositories behind one handle and owns the
// multi-table operations: score writes (current + history in one
// transaction, via ScoreRepository) and ticker deletion in foreign-key
// order.
type Gateway struct {
	Instruments  *InstrumentRepository
	Prices       *PriceRepository
	Fundamentals *FundamentalsRepository
	Ratios       *RatioRepository
	Scores       *ScoreRepository
	Analyst      *AnalystRepository
	Earnings     *EarningsRepository
	Runs         *RunRepository

	db        *sql.DB
	txTimeout time.Duration
	log       zerolog.Logger
}

// NewGateway creates the persistence gateway over one database connection.
// txTimeout bounds each multi-table transaction; zero means no deadline.
func NewGateway(db *sql.DB, txTimeout time.Duration, log zerolog.Logger) *Gateway {
	return &Gateway{
		Instruments:  NewInstrumentRepository(db, log),
		Prices:       NewPriceRepository(db, log),
		Fundamentals: NewFundamentalsRepository(db, log),
		Ratios:       NewRatioRepository(db, log),
		Scores:       NewScoreRepository(db, txTimeout, log),
		Analyst:      NewAnalystRepository(db, log),
		Earnings:     NewEarningsRepository(db, log),
		Runs:         NewRunRepository(db, log),
		db:           db,
		txTimeout:    txTimeout,
		log:          log.With().Str("component", "gateway").Logger(),
	}
}

// txContext bounds one write transaction with the configured deadline.
func txContext(d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.Background(), func() {}
	}
	return context.WithTimeout(context.Background(), d)
}

// DeleteTicker removes an instrument and all of its child rows in a single
// transaction. Children go first so the stocks foreign keys never dangle;
// any failure rolls the whole deletion back.
func (g *Gateway) DeleteTicker(ticker string) error {
	t := normalizeTicker(ticker)

	ctx, cancel := txContext(g.txTimeout)
	defer cancel()

	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin delete transaction: %w", err)
	}
	defer tx.Rollback()

	// Child tables in declared foreign-key order, parent last.
	tables := []string{
		"daily_charts",
		"company_fundamentals",
		"financial_ratios",
		"earnings_calendar",
		"company_scores_current",
		"company_scores_historical",
		"analyst_rating_trends",
		"stocks",
	}
	for _, table := range tables {
		if _, err := tx.Exec(fmt.Sprintf("DELETE FROM %s WHERE ticker = ?", table), t); err != nil {
			return fmt.Errorf("failed to delete %s rows for %s: %w", table, ticker, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete for %s: %w", ticker, err)
	}

	g.log.Info().Str("ticker", t).Msg("Ticker removed")
	return nil
}
