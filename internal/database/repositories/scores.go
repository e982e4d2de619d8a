package repositories

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/marketpipe/internal/domain"
)

// ScoreRepository handles company_scores_current and
// company_scores_historical. The current row is an upsert; history is
// append-only. Both writes happen in a single transaction.
type ScoreRepository struct {
	*BaseRepository
	txTimeout time.Duration
}

// NewScoreRepository creates a new score repository. txTimeout bounds the
// two-table write transaction; zero means no deadline.
func NewScoreRepository(db *sql.DB, txTimeout time.Duration, log zerolog.Logger) *ScoreRepository {
	return &ScoreRepository{
		BaseRepository: NewBase(db, log.With().Str("repo", "scores").Logger()),
		txTimeout:      txTimeout,
	}
}

// Upsert writes the current row and appends to history atomically.
func (r *ScoreRepository) Upsert(row domain.ScoreRow) error {
	ctx, cancel := txContext(r.txTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin score transaction: %w", err)
	}
	defer tx.Rollback()

	if err := r.upsertIn(tx, row); err != nil {
		return err
	}

	return tx.Commit()
}

// UpsertIn writes both score rows inside an existing transaction. The
// gateway uses this for its per-ticker transactions.
func (r *ScoreRepository) UpsertIn(tx *sql.Tx, row domain.ScoreRow) error {
	return r.upsertIn(tx, row)
}

func (r *ScoreRepository) upsertIn(e execer, row domain.ScoreRow) error {
	missing, err := json.Marshal(emptyIfNil(row.MissingFields))
	if err != nil {
		return fmt.Errorf("failed to marshal missing fields: %w", err)
	}
	estimated, err := json.Marshal(emptyIfNil(row.EstimatedFields))
	if err != nil {
		return fmt.Errorf("failed to marshal estimated fields: %w", err)
	}

	ticker := normalizeTicker(row.Ticker)
	date := row.AsOfDate.Format("2006-01-02")

	_, err = e.Exec(`
		INSERT INTO company_scores_current (
			ticker, as_of_date,
			fundamental_health, value_investment, technical_health,
			trading_signal, risk, vwap_sr, composite, grade,
			data_confidence, low_confidence, missing_fields, estimated_fields, version
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(ticker) DO UPDATE SET
			as_of_date = excluded.as_of_date,
			fundamental_health = excluded.fundamental_health,
			value_investment = excluded.value_investment,
			technical_health = excluded.technical_health,
			trading_signal = excluded.trading_signal,
			risk = excluded.risk,
			vwap_sr = excluded.vwap_sr,
			composite = excluded.composite,
			grade = excluded.grade,
			data_confidence = excluded.data_confidence,
			low_confidence = excluded.low_confidence,
			missing_fields = excluded.missing_fields,
			estimated_fields = excluded.estimated_fields,
			version = excluded.version`,
		ticker, date,
		row.FundamentalHealth, row.ValueInvestment, row.TechnicalHealth,
		row.TradingSignal, row.Risk, row.VWAPSupportResist, row.Composite, string(row.Grade),
		row.DataConfidence, row.LowConfidence, string(missing), string(estimated), row.Version)
	if err != nil {
		return fmt.Errorf("failed to upsert current score for %s: %w", row.Ticker, err)
	}

	_, err = e.Exec(`
		INSERT INTO company_scores_historical (
			ticker, as_of_date,
			fundamental_health, value_investment, technical_health,
			trading_signal, risk, vwap_sr, composite, grade,
			data_confidence, low_confidence, missing_fields, estimated_fields, version
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(ticker, as_of_date) DO UPDATE SET
			fundamental_health = excluded.fundamental_health,
			value_investment = excluded.value_investment,
			technical_health = excluded.technical_health,
			trading_signal = excluded.trading_signal,
			risk = excluded.risk,
			vwap_sr = excluded.vwap_sr,
			composite = excluded.composite,
			grade = excluded.grade,
			data_confidence = excluded.data_confidence,
			low_confidence = excluded.low_confidence,
			missing_fields = excluded.missing_fields,
			estimated_fields = excluded.estimated_fields,
			version = excluded.version`,
		ticker, date,
		row.FundamentalHealth, row.ValueInvestment, row.TechnicalHealth,
		row.TradingSignal, row.Risk, row.VWAPSupportResist, row.Composite, string(row.Grade),
		row.DataConfidence, row.LowConfidence, string(missing), string(estimated), row.Version)
	if err != nil {
		return fmt.Errorf("failed to record historical score for %s: %w", row.Ticker, err)
	}

	return nil
}

// Current returns the current score row for a ticker, nil when absent.
func (r *ScoreRepository) Current(ticker string) (*domain.ScoreRow, error) {
	row := r.db.QueryRow(scoreSelect+` WHERE ticker = ?`, normalizeTicker(ticker))
	return scanScore(row)
}

// AllCurrent returns every current score row ordered by composite
// descending. Used by the status API.
func (r *ScoreRepository) AllCurrent() ([]domain.ScoreRow, error) {
	rows, err := r.db.Query(scoreSelect + ` ORDER BY composite DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query current scores: %w", err)
	}
	defer rows.Close()

	var out []domain.ScoreRow
	for rows.Next() {
		score, err := scanScoreRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *score)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating scores: %w", err)
	}
	return out, nil
}

// HistoryCount returns the number of historical rows for a ticker.
func (r *ScoreRepository) HistoryCount(ticker string) (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM company_scores_historical WHERE ticker = ?`,
		normalizeTicker(ticker)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count score history: %w", err)
	}
	return count, nil
}

const scoreSelect = `
	SELECT ticker, as_of_date,
		fundamental_health, value_investment, technical_health,
		trading_signal, risk, vwap_sr, composite, grade,
		data_confidence, low_confidence, missing_fields, estimated_fields, version
	FROM company_scores_current`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanScore(row *sql.Row) (*domain.ScoreRow, error) {
	score, err := scanScoreFrom(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return score, err
}

func scanScoreRows(rows *sql.Rows) (*domain.ScoreRow, error) {
	return scanScoreFrom(rows)
}

func scanScoreFrom(s rowScanner) (*domain.ScoreRow, error) {
	var (
		score     domain.ScoreRow
		dateStr   string
		grade     string
		missing   string
		estimated string
	)
	err := s.Scan(&score.Ticker, &dateStr,
		&score.FundamentalHealth, &score.ValueInvestment, &score.TechnicalHealth,
		&score.TradingSignal, &score.Risk, &score.VWAPSupportResist,
		&score.Composite, &grade,
		&score.DataConfidence, &score.LowConfidence, &missing, &estimated, &score.Version)
	if err != nil {
		return nil, err
	}

	date, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		return nil, fmt.Errorf("bad as_of_date in scores: %w", err)
	}
	score.AsOfDate = date
	score.Grade = domain.Grade(grade)

	if err := json.Unmarshal([]byte(missing), &score.MissingFields); err != nil {
		return nil, fmt.Errorf("bad missing_fields JSON: %w", err)
	}
	if err := json.Unmarshal([]byte(estimated), &score.EstimatedFields); err != nil {
		return nil, fmt.Errorf("bad estimated_fields JSON: %w", err)
	}

	return &score, nil
}

func emptyIfNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
