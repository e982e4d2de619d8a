// Package analyst syncs recommendation distributions and condenses them
// into a single consensus score per ticker.
package analyst

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/marketpipe/internal/clients"
	"github.com/aristath/marketpipe/internal/database/repositories"
	"github.com/aristath/marketpipe/internal/domain"
	"github.com/aristath/marketpipe/pkg/formulas"
)

// Service fetches and persists analyst consensus rows.
type Service struct {
	router *clients.Router
	repo   *repositories.AnalystRepository
	log    zerolog.Logger
}

// NewService creates a new analyst service.
func NewService(router *clients.Router, repo *repositories.AnalystRepository, log zerolog.Logger) *Service {
	return &Service{
		router: router,
		repo:   repo,
		log:    log.With().Str("component", "analyst").Logger(),
	}
}

// SyncTicker fetches the latest recommendation distribution for one ticker
// and stores it with its derived consensus score.
func (s *Service) SyncTicker(ctx context.Context, ticker string, asOf time.Time) error {
	consensus, source, err := s.router.AnalystRatings(ctx, ticker)
	if err != nil {
		return fmt.Errorf("failed to fetch analyst ratings for %s: %w", ticker, err)
	}

	consensus.AsOfDate = asOf
	consensus.Source = source
	consensus.ConsensusScore = ConsensusScore(*consensus)
	consensus.MeanTargetPrice, consensus.MedianTargetPrice = normalizeTargets(consensus)

	if err := s.repo.Upsert(*consensus); err != nil {
		return fmt.Errorf("failed to persist analyst consensus for %s: %w", ticker, err)
	}
	return nil
}

// ConsensusScore condenses the rating distribution to [0, 1]: 1.0 is a
// unanimous strong buy, 0.5 is all-hold, 0.0 a unanimous strong sell. An
// empty distribution scores a neutral 0.5.
func ConsensusScore(c domain.AnalystConsensus) float64 {
	total := c.Total()
	if total == 0 {
		return 0.5
	}
	// Weighted on a -2..+2 scale, then shifted to 0..1.
	weighted := float64(2*c.StrongBuy+c.Buy-c.Sell-2*c.StrongSell) / float64(2*total)
	return (weighted + 1) / 2
}

// normalizeTargets fills a missing mean or median from whatever target
// prices the provider did return, so downstream consumers always get both
// when either exists.
func normalizeTargets(c *domain.AnalystConsensus) (mean, median *float64) {
	mean, median = c.MeanTargetPrice, c.MedianTargetPrice
	if mean != nil && median != nil {
		return mean, median
	}

	var targets []float64
	if mean != nil {
		targets = append(targets, *mean)
	}
	if median != nil {
		targets = append(targets, *median)
	}
	if len(targets) == 0 {
		return nil, nil
	}

	m := formulas.Mean(targets)
	md := formulas.Median(targets)
	if mean == nil {
		mean = &m
	}
	if median == nil {
		median = &md
	}
	return mean, median
}
