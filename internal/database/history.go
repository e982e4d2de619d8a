package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // CGO SQLite driver for read-only archives
	"github.com/rs/zerolog"

	"github.com/aristath/marketpipe/internal/domain"
)

// HistoryArchive reads per-ticker price archive files. These are legacy
// SQLite databases produced by earlier collection runs; the backfill
// priority drains them before spending API budget on the same bars.
type HistoryArchive struct {
	dir string
	log zerolog.Logger
}

// NewHistoryArchive creates an archive reader rooted at dir.
func NewHistoryArchive(dir string, log zerolog.Logger) *HistoryArchive {
	return &HistoryArchive{
		dir: dir,
		log: log.With().Str("component", "history_archive").Logger(),
	}
}

// Bars returns up to limit daily bars for a ticker, oldest first.
// A missing archive file is not an error; it returns (nil, nil).
func (h *HistoryArchive) Bars(ticker string, limit int) ([]domain.Bar, error) {
	path := h.archivePath(ticker)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}

	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("failed to open archive for %s: %w", ticker, err)
	}
	defer db.Close()

	rows, err := db.Query(`
		SELECT date, open_price, high_price, low_price, close_price, volume
		FROM daily_prices
		ORDER BY date DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query archive for %s: %w", ticker, err)
	}
	defer rows.Close()

	var bars []domain.Bar
	for rows.Next() {
		var (
			dateStr string
			bar     domain.Bar
			volume  sql.NullInt64
		)
		if err := rows.Scan(&dateStr, &bar.Open, &bar.High, &bar.Low, &bar.Close, &volume); err != nil {
			return nil, fmt.Errorf("failed to scan archive bar: %w", err)
		}
		date, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			h.log.Warn().Str("ticker", ticker).Str("date", dateStr).Msg("Skipping archive bar with bad date")
			continue
		}
		bar.Date = date
		if volume.Valid {
			bar.Volume = volume.Int64
		}
		bars = append(bars, bar)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating archive bars: %w", err)
	}

	// Reverse to oldest-first, the order every engine expects.
	for i, j := 0, len(bars)-1; i < j; i, j = i+1, j-1 {
		bars[i], bars[j] = bars[j], bars[i]
	}

	return bars, nil
}

func (h *HistoryArchive) archivePath(ticker string) string {
	name := strings.ReplaceAll(ticker, ".", "_")
	return filepath.Join(h.dir, name+".db")
}
