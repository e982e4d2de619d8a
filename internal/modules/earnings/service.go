// Package earnings syncs the earnings calendar used to prioritize
// fundamentals refreshes around report dates.
package earnings

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/marketpipe/internal/clients"
	"github.com/aristath/marketpipe/internal/database/repositories"
)

// Service fetches and persists earnings calendar windows.
type Service struct {
	router *clients.Router
	repo   *repositories.EarningsRepository
	log    zerolog.Logger
}

// NewService creates a new earnings service.
func NewService(router *clients.Router, repo *repositories.EarningsRepository, log zerolog.Logger) *Service {
	return &Service{
		router: router,
		repo:   repo,
		log:    log.With().Str("component", "earnings").Logger(),
	}
}

// SyncWindow fetches all earnings events inside [day-window, day+window]
// and upserts them. Returns how many events were stored.
func (s *Service) SyncWindow(ctx context.Context, day time.Time, windowDays int) (int, error) {
	events, source, err := s.router.Earnings(ctx, clients.EarningsRequest{
		From: day.AddDate(0, 0, -windowDays),
		To:   day.AddDate(0, 0, windowDays),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to fetch earnings calendar: %w", err)
	}

	stored := 0
	for _, ev := range events {
		if ev.Source == "" {
			ev.Source = source
		}
		if err := s.repo.Upsert(ev); err != nil {
			return stored, fmt.Errorf("failed to store earnings event for %s: %w", ev.Ticker, err)
		}
		stored++
	}

	s.log.Info().Int("events", stored).Str("source", source).Msg("Earnings calendar synced")
	return stored, nil
}

// TickersInWindow returns active tickers with an event inside the window,
// ticker ascending.
func (s *Service) TickersInWindow(day time.Time, windowDays int) ([]string, error) {
	return s.repo.TickersWithEarningsWithin(day, windowDays)
}
