// Package universe manages the set of tracked instruments: seeding from the
// configured source file and warm backfill from local history archives
// before any API budget is spent.
package universe

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/aristath/marketpipe/internal/database"
	"github.com/aristath/marketpipe/internal/database/repositories"
	"github.com/aristath/marketpipe/internal/domain"
)

// SeedEntry is one instrument in the universe seed file.
type SeedEntry struct {
	Ticker     string `json:"ticker"`
	Name       string `json:"name"`
	Sector     string `json:"sector"`
	AssetClass string `json:"asset_class,omitempty"`
}

// Service owns universe membership.
type Service struct {
	instruments *repositories.InstrumentRepository
	prices      *repositories.PriceRepository
	archive     *database.HistoryArchive
	log         zerolog.Logger
}

// NewService creates a new universe service. archive may be nil when no
// local history directory is configured.
func NewService(instruments *repositories.InstrumentRepository, prices *repositories.PriceRepository, archive *database.HistoryArchive, log zerolog.Logger) *Service {
	return &Service{
		instruments: instruments,
		prices:      prices,
		archive:     archive,
		log:         log.With().Str("component", "universe").Logger(),
	}
}

// SeedFromFile loads the JSON seed file and upserts every entry as an
// active instrument. Returns how many instruments were written.
func (s *Service) SeedFromFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read universe seed %s: %w", path, err)
	}

	var entries []SeedEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return 0, fmt.Errorf("failed to parse universe seed %s: %w", path, err)
	}

	count := 0
	for _, e := range entries {
		ticker := strings.ToUpper(strings.TrimSpace(e.Ticker))
		if ticker == "" {
			continue
		}
		assetClass := e.AssetClass
		if assetClass == "" {
			assetClass = "EQUITY"
		}
		err := s.instruments.Upsert(domain.Instrument{
			Ticker:     ticker,
			Name:       e.Name,
			Sector:     e.Sector,
			AssetClass: assetClass,
			Active:     true,
		})
		if err != nil {
			return count, fmt.Errorf("failed to seed %s: %w", ticker, err)
		}
		count++
	}

	s.log.Info().Int("instruments", count).Str("source", path).Msg("Universe seeded")
	return count, nil
}

// ActiveTickers returns the current universe, ticker ascending.
func (s *Service) ActiveTickers() ([]string, error) {
	instruments, err := s.instruments.GetAllActive()
	if err != nil {
		return nil, err
	}
	tickers := make([]string, 0, len(instruments))
	for _, inst := range instruments {
		tickers = append(tickers, inst.Ticker)
	}
	return tickers, nil
}

// WarmBackfill copies bars for a ticker from the local history archive into
// the main store, free of API budget. Returns how many bars were written; a
// ticker with no archive file backfills zero bars without error.
func (s *Service) WarmBackfill(ticker string, limit int) (int, error) {
	if s.archive == nil {
		return 0, nil
	}

	bars, err := s.archive.Bars(ticker, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to read archive for %s: %w", ticker, err)
	}

	written := 0
	for _, bar := range bars {
		if err := s.prices.Upsert(ticker, bar, nil); err != nil {
			return written, fmt.Errorf("failed to backfill %s: %w", ticker, err)
		}
		written++
	}

	if written > 0 {
		s.log.Debug().Str("ticker", ticker).Int("bars", written).Msg("Warm backfill from archive")
	}
	return written, nil
}
