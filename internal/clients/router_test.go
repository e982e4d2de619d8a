package clients

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/marketpipe/internal/domain"
)

// stubAdapter is a scriptable provider for router tests.
type stubAdapter struct {
	name         string
	capabilities []Capability

	quoteOutcome Outcome
	quote        *Quote

	fundamentalsOutcome Outcome
	fundamentals        map[domain.Field]float64
	periodEnd           time.Time

	probeOutcome Outcome

	calls int
}

func (s *stubAdapter) Name() string               { return s.name }
func (s *stubAdapter) Capabilities() []Capability { return s.capabilities }

func (s *stubAdapter) GetQuote(_ context.Context, _ string, ticker string) (*Quote, Outcome, error) {
	s.calls++
	if s.quoteOutcome != OutcomeOK {
		return nil, s.quoteOutcome, nil
	}
	if s.quote != nil {
		return s.quote, OutcomeOK, nil
	}
	return &Quote{Ticker: ticker, Price: 100}, OutcomeOK, nil
}

func (s *stubAdapter) GetHistory(_ context.Context, _ string, _ HistoryRequest) ([]domain.Bar, Outcome, error) {
	return nil, OutcomeTransient, nil
}

func (s *stubAdapter) GetFundamentals(_ context.Context, _ string, req FundamentalsRequest) (*FundamentalsPayload, Outcome, error) {
	s.calls++
	if s.fundamentalsOutcome != OutcomeOK {
		return nil, s.fundamentalsOutcome, nil
	}
	periodEnd := s.periodEnd
	if periodEnd.IsZero() {
		periodEnd = time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC)
	}
	payload := &FundamentalsPayload{
		Ticker:          req.Ticker,
		FiscalPeriodEnd: periodEnd,
		Values:          make(map[domain.Field]float64),
	}
	for _, field := range req.Fields {
		if v, ok := s.fundamentals[field]; ok {
			payload.Values[field] = v
		}
	}
	if len(payload.Values) == 0 {
		return nil, OutcomeNotFound, nil
	}
	return payload, OutcomeOK, nil
}

func (s *stubAdapter) GetEarnings(_ context.Context, _ string, _ EarningsRequest) ([]domain.EarningsEvent, Outcome, error) {
	return nil, OutcomeTransient, nil
}

func (s *stubAdapter) GetAnalystRatings(_ context.Context, _ string, _ string) (*domain.AnalystConsensus, Outcome, error) {
	return nil, OutcomeTransient, nil
}

func (s *stubAdapter) ProbeExistence(_ context.Context, _ string, _ string) (Outcome, error) {
	s.calls++
	return s.probeOutcome, nil
}

func newTestProvider(a *stubAdapter, keys ...string) *Provider {
	return NewProvider(a, NewPool(a.name, keys, 0, 0, nil, zerolog.Nop()), 0.9)
}

func newTestRouter(budget Budget, providers ...*Provider) *Router {
	return NewRouter(providers, budget, 0, zerolog.Nop())
}

func TestRouterFailsOverToSecondary(t *testing.T) {
	primary := &stubAdapter{name: "primary", capabilities: []Capability{CapPriceQuote}, quoteOutcome: OutcomeTransient}
	secondary := &stubAdapter{name: "secondary", capabilities: []Capability{CapPriceQuote}, quoteOutcome: OutcomeOK}

	r := newTestRouter(nil, newTestProvider(primary, "k1"), newTestProvider(secondary, "k2"))

	quote, source, err := r.Quote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "secondary", source)
	assert.Equal(t, 100.0, quote.Price)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, secondary.calls)
}

func TestRouterReportsNotFoundWhenAllAgree(t *testing.T) {
	a := &stubAdapter{name: "a", capabilities: []Capability{CapPriceQuote}, quoteOutcome: OutcomeNotFound}
	b := &stubAdapter{name: "b", capabilities: []Capability{CapPriceQuote}, quoteOutcome: OutcomeNotFound}

	r := newTestRouter(nil, newTestProvider(a, "k1"), newTestProvider(b, "k2"))

	_, _, err := r.Quote(context.Background(), "GONE")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRouterSkipsIncapableProviders(t *testing.T) {
	noQuotes := &stubAdapter{name: "no-quotes", capabilities: []Capability{CapFundamentals}}
	quotes := &stubAdapter{name: "quotes", capabilities: []Capability{CapPriceQuote}, quoteOutcome: OutcomeOK}

	r := newTestRouter(nil, newTestProvider(noQuotes, "k1"), newTestProvider(quotes, "k2"))

	_, source, err := r.Quote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "quotes", source)
	assert.Equal(t, 0, noQuotes.calls)
}

func TestRouterSurfacesNoCredential(t *testing.T) {
	keyless := &stubAdapter{name: "keyless", capabilities: []Capability{CapPriceQuote}, quoteOutcome: OutcomeOK}

	r := newTestRouter(nil, newTestProvider(keyless))

	_, _, err := r.Quote(context.Background(), "AAPL")
	assert.ErrorIs(t, err, domain.ErrNoCredentialAvailable)
	assert.True(t, r.AllPoolsExhausted())
}

type fixedBudget struct {
	remaining int
}

func (b *fixedBudget) TrySpend() bool {
	if b.remaining <= 0 {
		return false
	}
	b.remaining--
	return true
}

func (b *fixedBudget) Refund() { b.remaining++ }

func TestRouterStopsWhenBudgetExhausted(t *testing.T) {
	a := &stubAdapter{name: "a", capabilities: []Capability{CapPriceQuote}, quoteOutcome: OutcomeOK}

	r := newTestRouter(&fixedBudget{remaining: 1}, newTestProvider(a, "k1"))

	_, _, err := r.Quote(context.Background(), "AAPL")
	require.NoError(t, err)

	_, _, err = r.Quote(context.Background(), "MSFT")
	assert.ErrorIs(t, err, domain.ErrBudgetExhausted)
	assert.Equal(t, 1, a.calls)
}

func TestRouterCallTotalsStayWithinBudget(t *testing.T) {
	a := &stubAdapter{name: "a", capabilities: []Capability{CapPriceQuote}, quoteOutcome: OutcomeOK}

	r := newTestRouter(&fixedBudget{remaining: 1}, newTestProvider(a, "k1"))

	_, _, err := r.Quote(context.Background(), "AAPL")
	require.NoError(t, err)
	_, _, err = r.Quote(context.Background(), "MSFT")
	assert.ErrorIs(t, err, domain.ErrBudgetExhausted)

	// A denied spend never reaches a pool, so reported totals cannot
	// overrun the budget.
	var reported int64
	for _, n := range r.CallTotals() {
		reported += n
	}
	assert.Equal(t, int64(1), reported)
}

func TestRouterRefundsSpendWithoutCredential(t *testing.T) {
	keyless := &stubAdapter{name: "keyless", capabilities: []Capability{CapPriceQuote}, quoteOutcome: OutcomeOK}
	budget := &fixedBudget{remaining: 1}

	r := newTestRouter(budget, newTestProvider(keyless))

	_, _, err := r.Quote(context.Background(), "AAPL")
	assert.ErrorIs(t, err, domain.ErrNoCredentialAvailable)
	assert.Equal(t, 1, budget.remaining)
}

// slowAdapter hangs until its call context is cancelled.
type slowAdapter struct {
	stubAdapter
}

func (s *slowAdapter) GetQuote(ctx context.Context, _ string, _ string) (*Quote, Outcome, error) {
	<-ctx.Done()
	return nil, OutcomeTransient, ctx.Err()
}

func TestRouterBoundsSlowAdapterCalls(t *testing.T) {
	slow := &slowAdapter{stubAdapter{name: "slow", capabilities: []Capability{CapPriceQuote}}}
	fallback := &stubAdapter{name: "fallback", capabilities: []Capability{CapPriceQuote}, quoteOutcome: OutcomeOK}

	r := NewRouter([]*Provider{
		NewProvider(slow, NewPool("slow", []string{"k1"}, 0, 0, nil, zerolog.Nop()), 0.9),
		newTestProvider(fallback, "k2"),
	}, nil, 25*time.Millisecond, zerolog.Nop())

	start := time.Now()
	_, source, err := r.Quote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "fallback", source)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestFundamentalsFieldLevelFallback(t *testing.T) {
	primary := &stubAdapter{
		name:                "primary",
		capabilities:        []Capability{CapFundamentals},
		fundamentalsOutcome: OutcomeOK,
		fundamentals: map[domain.Field]float64{
			domain.FieldRevenue:   1e9,
			domain.FieldMarketCap: 5e9,
		},
	}
	secondary := &stubAdapter{
		name:                "secondary",
		capabilities:        []Capability{CapFundamentals},
		fundamentalsOutcome: OutcomeOK,
		fundamentals: map[domain.Field]float64{
			domain.FieldRevenue:           2e9, // must not overwrite primary's value
			domain.FieldNetIncome:         1e8,
			domain.FieldSharesOutstanding: 1e8,
		},
	}

	r := newTestRouter(nil, newTestProvider(primary, "k1"), newTestProvider(secondary, "k2"))

	snap, result, err := r.Fundamentals(context.Background(), "aapl")
	require.NoError(t, err)
	require.NotNil(t, snap)

	assert.Equal(t, "AAPL", snap.Ticker)
	assert.Equal(t, "primary", result.SourcePrimary)
	assert.Equal(t, []string{"primary", "secondary"}, result.SourcesUsed)

	require.NotNil(t, snap.Revenue)
	assert.InDelta(t, 1e9, *snap.Revenue, 1)
	assert.Equal(t, "primary", snap.Provenance[domain.FieldRevenue].Source)
	assert.Equal(t, "secondary", snap.Provenance[domain.FieldNetIncome].Source)

	// Fields no provider serves stay missing and dent the success rate.
	assert.Contains(t, result.FieldsMissing, domain.FieldTotalAssets)
	total := len(domain.AllFundamentalFields)
	assert.InDelta(t, float64(4)/float64(total), result.SuccessRate, 1e-9)
}

func TestFundamentalsConfidenceFadesWithStaleFilings(t *testing.T) {
	values := map[domain.Field]float64{domain.FieldRevenue: 1e9}
	fresh := &stubAdapter{
		name:                "fresh",
		capabilities:        []Capability{CapFundamentals},
		fundamentalsOutcome: OutcomeOK,
		fundamentals:        values,
		periodEnd:           time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC),
	}
	stale := &stubAdapter{
		name:                "stale",
		capabilities:        []Capability{CapFundamentals},
		fundamentalsOutcome: OutcomeOK,
		fundamentals:        values,
		periodEnd:           time.Date(2022, 12, 31, 0, 0, 0, 0, time.UTC),
	}
	now := func() time.Time { return time.Date(2026, 8, 21, 0, 0, 0, 0, time.UTC) }

	confidenceFor := func(a *stubAdapter) float64 {
		r := newTestRouter(nil, newTestProvider(a, "k1"))
		r.now = now
		snap, _, err := r.Fundamentals(context.Background(), "AAPL")
		require.NoError(t, err)
		return snap.Provenance[domain.FieldRevenue].Confidence
	}

	// A recent filing keeps the provider's base confidence; a filing more
	// than three years old is discounted to half of it.
	assert.InDelta(t, 0.9, confidenceFor(fresh), 1e-9)
	assert.InDelta(t, 0.45, confidenceFor(stale), 1e-9)
}

func TestFundamentalsNotFoundEverywhere(t *testing.T) {
	a := &stubAdapter{name: "a", capabilities: []Capability{CapFundamentals}, fundamentalsOutcome: OutcomeNotFound}

	r := newTestRouter(nil, newTestProvider(a, "k1"))

	_, _, err := r.Fundamentals(context.Background(), "GONE")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestProbeAllOmitsProvidersWithoutCredentials(t *testing.T) {
	alive := &stubAdapter{name: "alive", capabilities: []Capability{CapExistenceProbe}, probeOutcome: OutcomeNotFound}
	keyless := &stubAdapter{name: "keyless", capabilities: []Capability{CapExistenceProbe}, probeOutcome: OutcomeOK}

	r := newTestRouter(nil, newTestProvider(alive, "k1"), newTestProvider(keyless))

	verdicts := r.ProbeAll(context.Background(), "ZZZZ")
	assert.Equal(t, map[string]Outcome{"alive": OutcomeNotFound}, verdicts)
	assert.Equal(t, 0, keyless.calls)
}
