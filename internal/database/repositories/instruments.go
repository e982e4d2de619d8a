package repositories

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/aristath/marketpipe/internal/domain"
)

// InstrumentRepository handles the stocks table.
type InstrumentRepository struct {
	*BaseRepository
}

// NewInstrumentRepository creates a new instrument repository
func NewInstrumentRepository(db *sql.DB, log zerolog.Logger) *InstrumentRepository {
	return &InstrumentRepository{
		BaseRepository: NewBase(db, log.With().Str("repo", "instruments").Logger()),
	}
}

// Upsert inserts an instrument or updates its descriptive fields.
func (r *InstrumentRepository) Upsert(inst domain.Instrument) error {
	_, err := r.db.Exec(`
		INSERT INTO stocks (ticker, name, sector, asset_class, active)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(ticker) DO UPDATE SET
			name = excluded.name,
			sector = excluded.sector,
			asset_class = excluded.asset_class,
			active = excluded.active`,
		normalizeTicker(inst.Ticker), inst.Name, inst.Sector, inst.AssetClass, inst.Active)
	if err != nil {
		return fmt.Errorf("failed to upsert instrument %s: %w", inst.Ticker, err)
	}
	return nil
}

// Get returns an instrument by ticker, nil when absent.
func (r *InstrumentRepository) Get(ticker string) (*domain.Instrument, error) {
	row := r.db.QueryRow(`
		SELECT ticker, name, sector, asset_class, active, added_at
		FROM stocks WHERE ticker = ?`, normalizeTicker(ticker))

	var inst domain.Instrument
	err := row.Scan(&inst.Ticker, &inst.Name, &inst.Sector, &inst.AssetClass, &inst.Active, &inst.AddedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query instrument %s: %w", ticker, err)
	}
	return &inst, nil
}

// GetAllActive returns all active instruments ordered by ticker. The stable
// order keeps priority selection deterministic across runs.
func (r *InstrumentRepository) GetAllActive() ([]domain.Instrument, error) {
	rows, err := r.db.Query(`
		SELECT ticker, name, sector, asset_class, active, added_at
		FROM stocks WHERE active = 1 ORDER BY ticker ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query active instruments: %w", err)
	}
	defer rows.Close()

	var instruments []domain.Instrument
	for rows.Next() {
		var inst domain.Instrument
		if err := rows.Scan(&inst.Ticker, &inst.Name, &inst.Sector, &inst.AssetClass, &inst.Active, &inst.AddedAt); err != nil {
			return nil, fmt.Errorf("failed to scan instrument: %w", err)
		}
		instruments = append(instruments, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating instruments: %w", err)
	}
	return instruments, nil
}

func normalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}
