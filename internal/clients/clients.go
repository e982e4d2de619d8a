// Package clients defines the provider contract shared by every market-data
// adapter and the routing layer that drives them. Adapters translate one
// provider's API into the canonical types below and classify every response
// into an Outcome; they never retry, never sleep, and never pick keys. Key
// budgets live in the Pool, failover policy lives in the Router.
package clients

import (
	"context"
	"time"

	"github.com/aristath/marketpipe/internal/domain"
)

// Capability names one kind of query an adapter can serve.
type Capability string

const (
	CapPriceQuote       Capability = "price_quote"
	CapPriceHistory     Capability = "price_history"
	CapFundamentals     Capability = "fundamentals_snapshot"
	CapEarningsCalendar Capability = "earnings_calendar"
	CapAnalystRatings   Capability = "analyst_recommendations"
	CapExistenceProbe   Capability = "existence_probe"
)

// Outcome classifies an adapter call for the router and the key pool. The
// distinction matters: not_found counts toward delisting agreement,
// rate_limited exhausts the credential's minute budget, auth_error disables
// the credential for the rest of the run, and transient_error just moves the
// router to the next provider.
type Outcome string

const (
	OutcomeOK          Outcome = "ok"
	OutcomeNotFound    Outcome = "not_found"
	OutcomeRateLimited Outcome = "rate_limited"
	OutcomeTransient   Outcome = "transient_error"
	OutcomeAuthError   Outcome = "auth_error"
)

// Quote is a current-price snapshot.
type Quote struct {
	Ticker        string
	Price         float64
	PreviousClose *float64
	Currency      string
	AsOf          time.Time
}

// HistoryRequest bounds a daily-bar fetch.
type HistoryRequest struct {
	Ticker string
	From   time.Time
	To     time.Time
}

// FundamentalsRequest asks for a subset of fields. An empty Fields slice
// means all fields the provider can serve; the router narrows it to the
// still-missing fields during fallback.
type FundamentalsRequest struct {
	Ticker string
	Fields []domain.Field
}

// FundamentalsPayload carries whatever fields the provider returned, each
// with the value keyed by canonical field name. Fields the provider does not
// publish are simply absent.
type FundamentalsPayload struct {
	Ticker          string
	FiscalPeriodEnd time.Time
	Values          map[domain.Field]float64
}

// EarningsRequest bounds a calendar fetch around one day.
type EarningsRequest struct {
	From time.Time
	To   time.Time
}

// Adapter is one upstream market-data provider. Every method takes the
// credential chosen by the pool, performs exactly one logical request, and
// reports what happened through the Outcome; err carries detail for logging
// and is non-nil only when Outcome is not ok and not not_found.
//
// An adapter only has to implement the capabilities it declares; the router
// never calls a method outside Capabilities().
type Adapter interface {
	Name() string
	Capabilities() []Capability

	GetQuote(ctx context.Context, key string, ticker string) (*Quote, Outcome, error)
	GetHistory(ctx context.Context, key string, req HistoryRequest) ([]domain.Bar, Outcome, error)
	GetFundamentals(ctx context.Context, key string, req FundamentalsRequest) (*FundamentalsPayload, Outcome, error)
	GetEarnings(ctx context.Context, key string, req EarningsRequest) ([]domain.EarningsEvent, Outcome, error)
	GetAnalystRatings(ctx context.Context, key string, ticker string) (*domain.AnalystConsensus, Outcome, error)

	// ProbeExistence answers only "does this ticker still exist upstream".
	// It must map provider-side throttling to rate_limited rather than
	// not_found so the reaper never delists on a throttled probe.
	ProbeExistence(ctx context.Context, key string, ticker string) (Outcome, error)
}

// ClassifyStatus maps an HTTP status code to the shared outcome taxonomy.
// Adapters refine this with provider-specific body checks (some providers
// answer 200 with an empty payload for unknown tickers).
func ClassifyStatus(code int) Outcome {
	switch {
	case code == 200:
		return OutcomeOK
	case code == 401 || code == 403:
		return OutcomeAuthError
	case code == 404:
		return OutcomeNotFound
	case code == 429:
		return OutcomeRateLimited
	default:
		return OutcomeTransient
	}
}

// Has reports whether an adapter declares a capability.
func Has(a Adapter, c Capability) bool {
	for _, have := range a.Capabilities() {
		if have == c {
			return true
		}
	}
	return false
}

// restricted narrows an adapter's declared capabilities to a configured
// subset without touching its call methods.
type restricted struct {
	Adapter
	caps []Capability
}

func (r *restricted) Capabilities() []Capability { return r.caps }

// Restrict limits an adapter to the intersection of its own capabilities
// and allowed. An empty allowed list leaves the adapter untouched.
func Restrict(a Adapter, allowed []Capability) Adapter {
	if len(allowed) == 0 {
		return a
	}
	var caps []Capability
	for _, c := range allowed {
		if Has(a, c) {
			caps = append(caps, c)
		}
	}
	return &restricted{Adapter: a, caps: caps}
}
