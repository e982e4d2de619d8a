// Package delisting removes tickers that no longer exist upstream. Removal
// requires positive agreement: at least N providers answering not_found and
// zero providers answering ok. Throttled, failing or unauthenticated
// providers contribute no evidence either way, so a degraded run can never
// delist anything by accident.
package delisting

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/marketpipe/internal/clients"
)

// deleter is the slice of the persistence gateway the reaper needs.
type deleter interface {
	DeleteTicker(ticker string) error
}

// prober is the slice of the router the reaper needs.
type prober interface {
	ProbeAll(ctx context.Context, ticker string) map[string]clients.Outcome
}

// Reaper probes tickers for continued existence and removes confirmed
// delistings.
type Reaper struct {
	router       prober
	gateway      deleter
	minAgreement int
	log          zerolog.Logger
}

// NewReaper creates a new reaper. minAgreement is the number of distinct
// providers that must answer not_found before a ticker is removed.
func NewReaper(router prober, gateway deleter, minAgreement int, log zerolog.Logger) *Reaper {
	return &Reaper{
		router:       router,
		gateway:      gateway,
		minAgreement: minAgreement,
		log:          log.With().Str("component", "reaper").Logger(),
	}
}

// ShouldDelist applies the agreement rule to a set of provider verdicts.
func (r *Reaper) ShouldDelist(verdicts map[string]clients.Outcome) bool {
	notFound := 0
	for _, outcome := range verdicts {
		switch outcome {
		case clients.OutcomeOK:
			// Any provider that still knows the ticker vetoes removal.
			return false
		case clients.OutcomeNotFound:
			notFound++
		}
	}
	return notFound >= r.minAgreement
}

// Evaluate probes one ticker across all providers and deletes it when the
// agreement rule is met. Returns whether the ticker was removed.
func (r *Reaper) Evaluate(ctx context.Context, ticker string) (bool, error) {
	verdicts := r.router.ProbeAll(ctx, ticker)
	if !r.ShouldDelist(verdicts) {
		return false, nil
	}

	if err := r.gateway.DeleteTicker(ticker); err != nil {
		return false, fmt.Errorf("failed to delist %s: %w", ticker, err)
	}

	r.log.Info().
		Str("ticker", ticker).
		Int("not_found_verdicts", len(verdicts)).
		Msg("Ticker delisted")
	return true, nil
}

// Reap evaluates every candidate in order and returns the tickers removed.
// A probe or delete failure on one ticker is logged and does not stop the
// sweep.
func (r *Reaper) Reap(ctx context.Context, tickers []string) []string {
	var delisted []string
	for _, ticker := range tickers {
		if ctx.Err() != nil {
			break
		}
		removed, err := r.Evaluate(ctx, ticker)
		if err != nil {
			r.log.Warn().Str("ticker", ticker).Err(err).Msg("Delisting evaluation failed")
			continue
		}
		if removed {
			delisted = append(delisted, ticker)
		}
	}
	return delisted
}
