package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// RunRepository persists pipeline run summaries so the status API can serve
// the last run across restarts.
type RunRepository struct {
	*BaseRepository
}

// NewRunRepository creates a new run repository
func NewRunRepository(db *sql.DB, log zerolog.Logger) *RunRepository {
	return &RunRepository{
		BaseRepository: NewBase(db, log.With().Str("repo", "runs").Logger()),
	}
}

// Insert stores a finished run's summary JSON.
func (r *RunRepository) Insert(runDate time.Time, startedAt, finishedAt time.Time, summaryJSON string) error {
	_, err := r.db.Exec(`
		INSERT INTO pipeline_runs (run_date, started_at, finished_at, summary)
		VALUES (?, ?, ?, ?)`,
		runDate.Format("2006-01-02"),
		startedAt.UTC().Format(time.RFC3339),
		finishedAt.UTC().Format(time.RFC3339),
		summaryJSON)
	if err != nil {
		return fmt.Errorf("failed to insert pipeline run: %w", err)
	}
	return nil
}

// LatestSummary returns the most recent run summary JSON, "" when no run has
// been recorded yet.
func (r *RunRepository) LatestSummary() (string, error) {
	var summary string
	err := r.db.QueryRow(`
		SELECT summary FROM pipeline_runs ORDER BY id DESC LIMIT 1`).Scan(&summary)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query latest run: %w", err)
	}
	return summary, nil
}
