package clients

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/aristath/marketpipe/internal/domain"
)

// ErrNotFound means every capable provider answered and none knows the
// ticker. It is distinct from ErrAllProvidersFailed, where at least one
// provider errored instead of answering.
var (
	ErrNotFound           = errors.New("ticker not found on any provider")
	ErrAllProvidersFailed = errors.New("all providers failed")
)

// Budget limits how many upstream calls a run may make. TrySpend returns
// false once the budget is gone; the router then stops issuing calls.
// Refund hands back a spend that never reached a provider, so the budget
// and the pools' call totals stay in step.
type Budget interface {
	TrySpend() bool
	Refund()
}

// Provider pairs an adapter with its key pool, its circuit breaker and the
// confidence attached to fields it sources.
type Provider struct {
	Adapter        Adapter
	Pool           *Pool
	Breaker        *gobreaker.CircuitBreaker
	BaseConfidence float64
}

// NewProvider wraps an adapter with a breaker that opens after five
// consecutive failed calls and probes again after a minute.
func NewProvider(adapter Adapter, pool *Pool, baseConfidence float64) *Provider {
	return &Provider{
		Adapter: adapter,
		Pool:    pool,
		Breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    adapter.Name(),
			Timeout: time.Minute,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
		BaseConfidence: baseConfidence,
	}
}

// Router fans each query out over the configured providers in order,
// advancing on anything other than ok. It owns failover policy; adapters
// stay single-shot and the pools own budgets.
type Router struct {
	providers   []*Provider
	budget      Budget
	callTimeout time.Duration
	log         zerolog.Logger
	now         func() time.Time
}

// NewRouter builds a router over providers in priority order. budget may be
// nil when no run-level cap applies; callTimeout of zero leaves single
// adapter calls bounded only by the caller's context.
func NewRouter(providers []*Provider, budget Budget, callTimeout time.Duration, log zerolog.Logger) *Router {
	return &Router{
		providers:   providers,
		budget:      budget,
		callTimeout: callTimeout,
		log:         log.With().Str("component", "router").Logger(),
		now:         time.Now,
	}
}

// callContext bounds one adapter call so a hung upstream cannot eat the
// whole priority deadline.
func (r *Router) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.callTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.callTimeout)
}

// CallTotals returns the number of upstream calls made per provider.
func (r *Router) CallTotals() map[string]int64 {
	totals := make(map[string]int64, len(r.providers))
	for _, p := range r.providers {
		totals[p.Adapter.Name()] = p.Pool.TotalCalls()
	}
	return totals
}

// AllPoolsExhausted reports whether no provider has a usable credential.
// The orchestrator treats this as a hard stop for the run.
func (r *Router) AllPoolsExhausted() bool {
	for _, p := range r.providers {
		if !p.Pool.Exhausted() {
			return false
		}
	}
	return true
}

// do runs one query against providers in order until one returns ok.
// call performs the provider-specific request and stashes its payload in the
// caller's closure.
func (r *Router) do(ctx context.Context, cap Capability, call func(ctx context.Context, a Adapter, key string) (Outcome, error)) (string, error) {
	var (
		lastErr     error
		sawNotFound bool
		attempted   bool
	)

	for _, p := range r.providers {
		if !Has(p.Adapter, cap) {
			continue
		}
		if p.Breaker.State() == gobreaker.StateOpen {
			continue
		}

		// Spend the budget before a credential leaves the pool: Acquire
		// counts toward the per-provider call totals, and a call the budget
		// refuses must not appear there.
		if r.budget != nil && !r.budget.TrySpend() {
			return "", domain.ErrBudgetExhausted
		}
		key, err := p.Pool.Acquire()
		if err != nil {
			if r.budget != nil {
				r.budget.Refund()
			}
			lastErr = err
			continue
		}
		attempted = true

		cctx, cancel := r.callContext(ctx)
		var outcome Outcome
		_, cbErr := p.Breaker.Execute(func() (interface{}, error) {
			var callErr error
			outcome, callErr = call(cctx, p.Adapter, key)
			if outcome == OutcomeOK || outcome == OutcomeNotFound {
				return nil, nil
			}
			if callErr == nil {
				callErr = fmt.Errorf("%s returned %s", p.Adapter.Name(), outcome)
			}
			return nil, callErr
		})
		cancel()

		if ctx.Err() != nil {
			p.Pool.Report(key, OutcomeTransient)
			return "", ctx.Err()
		}
		p.Pool.Report(key, outcome)

		switch outcome {
		case OutcomeOK:
			return p.Adapter.Name(), nil
		case OutcomeNotFound:
			sawNotFound = true
		default:
			lastErr = cbErr
			r.log.Warn().
				Str("provider", p.Adapter.Name()).
				Str("capability", string(cap)).
				Str("outcome", string(outcome)).
				Err(cbErr).
				Msg("Provider call failed, trying next")
		}
	}

	if sawNotFound && lastErr == nil {
		return "", ErrNotFound
	}
	if !attempted && errors.Is(lastErr, domain.ErrNoCredentialAvailable) {
		return "", domain.ErrNoCredentialAvailable
	}
	if lastErr != nil {
		return "", fmt.Errorf("%w: %v", ErrAllProvidersFailed, lastErr)
	}
	return "", ErrAllProvidersFailed
}

// Quote fetches the current price with ordered failover.
func (r *Router) Quote(ctx context.Context, ticker string) (*Quote, string, error) {
	var quote *Quote
	source, err := r.do(ctx, CapPriceQuote, func(ctx context.Context, a Adapter, key string) (Outcome, error) {
		q, outcome, err := a.GetQuote(ctx, key, ticker)
		if outcome == OutcomeOK {
			quote = q
		}
		return outcome, err
	})
	if err != nil {
		return nil, "", err
	}
	return quote, source, nil
}

// History fetches daily bars with ordered failover.
func (r *Router) History(ctx context.Context, req HistoryRequest) ([]domain.Bar, string, error) {
	var bars []domain.Bar
	source, err := r.do(ctx, CapPriceHistory, func(ctx context.Context, a Adapter, key string) (Outcome, error) {
		b, outcome, err := a.GetHistory(ctx, key, req)
		if outcome == OutcomeOK {
			bars = b
		}
		return outcome, err
	})
	if err != nil {
		return nil, "", err
	}
	return bars, source, nil
}

// Earnings fetches calendar events with ordered failover.
func (r *Router) Earnings(ctx context.Context, req EarningsRequest) ([]domain.EarningsEvent, string, error) {
	var events []domain.EarningsEvent
	source, err := r.do(ctx, CapEarningsCalendar, func(ctx context.Context, a Adapter, key string) (Outcome, error) {
		ev, outcome, err := a.GetEarnings(ctx, key, req)
		if outcome == OutcomeOK {
			events = ev
		}
		return outcome, err
	})
	if err != nil {
		return nil, "", err
	}
	return events, source, nil
}

// AnalystRatings fetches the recommendation distribution with ordered
// failover.
func (r *Router) AnalystRatings(ctx context.Context, ticker string) (*domain.AnalystConsensus, string, error) {
	var consensus *domain.AnalystConsensus
	source, err := r.do(ctx, CapAnalystRatings, func(ctx context.Context, a Adapter, key string) (Outcome, error) {
		c, outcome, err := a.GetAnalystRatings(ctx, key, ticker)
		if outcome == OutcomeOK {
			consensus = c
		}
		return outcome, err
	})
	if err != nil {
		return nil, "", err
	}
	return consensus, source, nil
}

// FetchResult describes how a fundamentals snapshot was assembled.
type FetchResult struct {
	SourcePrimary string
	SourcesUsed   []string
	FieldsMissing []domain.Field
	SuccessRate   float64
}

// stalenessFactor discounts a provider's base confidence by the age of the
// fiscal period behind its numbers: full trust through one year (annual
// filing cadence), fading linearly to half trust at three years and held
// there. An unknown period end is treated as somewhat stale, not fresh.
func stalenessFactor(periodEnd, now time.Time) float64 {
	const year = 365 * 24 * time.Hour
	if periodEnd.IsZero() {
		return 0.75
	}
	age := now.Sub(periodEnd)
	switch {
	case age <= year:
		return 1
	case age >= 3*year:
		return 0.5
	default:
		return 1 - 0.5*float64(age-year)/float64(2*year)
	}
}

// Fundamentals assembles a snapshot with field-level fallback: the first
// provider that answers becomes the primary source, then each further
// provider is asked only for the fields still missing. Every populated field
// carries the provenance of the provider that supplied it, with the
// provider's base confidence attenuated by the filing's staleness.
func (r *Router) Fundamentals(ctx context.Context, ticker string) (*domain.FundamentalSnapshot, FetchResult, error) {
	snap := &domain.FundamentalSnapshot{Ticker: strings.ToUpper(strings.TrimSpace(ticker))}
	result := FetchResult{}

	missing := append([]domain.Field(nil), domain.AllFundamentalFields...)

	var (
		lastErr     error
		sawNotFound bool
	)

	for _, p := range r.providers {
		if len(missing) == 0 {
			break
		}
		if !Has(p.Adapter, CapFundamentals) {
			continue
		}
		if p.Breaker.State() == gobreaker.StateOpen {
			continue
		}

		if r.budget != nil && !r.budget.TrySpend() {
			return nil, result, domain.ErrBudgetExhausted
		}
		key, err := p.Pool.Acquire()
		if err != nil {
			if r.budget != nil {
				r.budget.Refund()
			}
			lastErr = err
			continue
		}

		cctx, cancel := r.callContext(ctx)
		var (
			payload *FundamentalsPayload
			outcome Outcome
		)
		_, cbErr := p.Breaker.Execute(func() (interface{}, error) {
			var callErr error
			payload, outcome, callErr = p.Adapter.GetFundamentals(cctx, key, FundamentalsRequest{
				Ticker: snap.Ticker,
				Fields: missing,
			})
			if outcome == OutcomeOK || outcome == OutcomeNotFound {
				return nil, nil
			}
			if callErr == nil {
				callErr = fmt.Errorf("%s returned %s", p.Adapter.Name(), outcome)
			}
			return nil, callErr
		})
		cancel()

		if ctx.Err() != nil {
			p.Pool.Report(key, OutcomeTransient)
			return nil, result, ctx.Err()
		}
		p.Pool.Report(key, outcome)

		switch outcome {
		case OutcomeOK:
			name := p.Adapter.Name()
			if result.SourcePrimary == "" {
				result.SourcePrimary = name
				snap.Source = name
				snap.FiscalPeriodEnd = payload.FiscalPeriodEnd
			}
			if snap.FiscalPeriodEnd.IsZero() {
				snap.FiscalPeriodEnd = payload.FiscalPeriodEnd
			}

			confidence := p.BaseConfidence * stalenessFactor(payload.FiscalPeriodEnd, r.now())
			contributed := false
			for _, field := range missing {
				v, ok := payload.Values[field]
				if !ok {
					continue
				}
				snap.Set(field, v, domain.Provenance{Source: name, Confidence: confidence})
				contributed = true
			}
			if contributed {
				result.SourcesUsed = append(result.SourcesUsed, name)
			}

			remaining := missing[:0]
			for _, field := range missing {
				if _, ok := payload.Values[field]; !ok {
					remaining = append(remaining, field)
				}
			}
			missing = remaining
		case OutcomeNotFound:
			sawNotFound = true
		default:
			lastErr = cbErr
			r.log.Warn().
				Str("provider", p.Adapter.Name()).
				Str("ticker", snap.Ticker).
				Str("outcome", string(outcome)).
				Err(cbErr).
				Msg("Fundamentals provider failed, trying next")
		}
	}

	result.FieldsMissing = missing
	total := len(domain.AllFundamentalFields)
	result.SuccessRate = float64(total-len(missing)) / float64(total)

	if result.SourcePrimary == "" {
		if sawNotFound && lastErr == nil {
			return nil, result, ErrNotFound
		}
		if lastErr != nil {
			if errors.Is(lastErr, domain.ErrNoCredentialAvailable) {
				return nil, result, domain.ErrNoCredentialAvailable
			}
			return nil, result, fmt.Errorf("%w: %v", ErrAllProvidersFailed, lastErr)
		}
		return nil, result, ErrAllProvidersFailed
	}
	return snap, result, nil
}

// ProbeAll asks every probe-capable provider whether a ticker still exists
// and returns each provider's verdict. Providers with no usable credential
// or an open breaker are left out of the map entirely so the caller never
// counts a skipped probe as evidence.
func (r *Router) ProbeAll(ctx context.Context, ticker string) map[string]Outcome {
	verdicts := make(map[string]Outcome)

	for _, p := range r.providers {
		if !Has(p.Adapter, CapExistenceProbe) {
			continue
		}
		if p.Breaker.State() == gobreaker.StateOpen {
			continue
		}

		if r.budget != nil && !r.budget.TrySpend() {
			break
		}
		key, err := p.Pool.Acquire()
		if err != nil {
			if r.budget != nil {
				r.budget.Refund()
			}
			continue
		}

		cctx, cancel := r.callContext(ctx)
		var outcome Outcome
		p.Breaker.Execute(func() (interface{}, error) {
			var probeErr error
			outcome, probeErr = p.Adapter.ProbeExistence(cctx, key, ticker)
			if outcome == OutcomeOK || outcome == OutcomeNotFound {
				return nil, nil
			}
			return nil, probeErr
		})
		cancel()

		if ctx.Err() != nil {
			p.Pool.Report(key, OutcomeTransient)
			break
		}
		p.Pool.Report(key, outcome)
		verdicts[p.Adapter.Name()] = outcome
	}

	return verdicts
}
