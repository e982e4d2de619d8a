// Package pipeline runs the daily ingestion and scoring cycle as a
// sequential priority state machine: INIT, P1 through P6, REAP, DONE.
// Priorities never overlap each other; inside one priority, ticker work
// fans out to a bounded worker group. Priorities 1-4 are critical but
// guarded, 5 and 6 are explicitly non-critical.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/aristath/marketpipe/internal/clients"
	"github.com/aristath/marketpipe/internal/config"
	"github.com/aristath/marketpipe/internal/database/repositories"
	"github.com/aristath/marketpipe/internal/domain"
	"github.com/aristath/marketpipe/internal/modules/analyst"
	"github.com/aristath/marketpipe/internal/modules/charts"
	"github.com/aristath/marketpipe/internal/modules/delisting"
	"github.com/aristath/marketpipe/internal/modules/earnings"
	"github.com/aristath/marketpipe/internal/modules/ratios"
	"github.com/aristath/marketpipe/internal/modules/scoring"
	"github.com/aristath/marketpipe/internal/modules/universe"
)

// Calendar answers what day it is and whether the market trades on it.
type Calendar interface {
	Today() time.Time
	IsTradingDay(t time.Time) bool
}

// Status is the outcome of one priority.
type Status string

const (
	StatusDone    Status = "done"
	StatusPartial Status = "partial"
	StatusSkipped Status = "skipped"
)

// PriorityResult is one priority's entry in the run summary.
type PriorityResult struct {
	Name      string `json:"name"`
	Status    Status `json:"status"`
	Reason    string `json:"reason,omitempty"`
	Processed int    `json:"processed"`
	Failed    int    `json:"failed"`
}

// RunSummary is the structured result of one full pipeline run.
type RunSummary struct {
	RunDate       string           `json:"run_date"`
	StartedAt     time.Time        `json:"started_at"`
	FinishedAt    time.Time        `json:"finished_at"`
	Priorities    []PriorityResult `json:"priorities"`
	ReapCompleted bool             `json:"reap_completed"`
	Delisted      []string         `json:"delisted,omitempty"`
	ProviderCalls map[string]int64 `json:"provider_calls"`
	LowConfidence []string         `json:"low_confidence,omitempty"`
	BudgetLeft    int64            `json:"budget_left"`
	HardStop      bool             `json:"hard_stop"`
	HardStopWhy   string           `json:"hard_stop_reason,omitempty"`
}

// ExitCode maps the summary to a process exit status: non-zero only when a
// hard stop fired or the reap sweep never completed.
func (s *RunSummary) ExitCode() int {
	if s.HardStop || !s.ReapCompleted {
		return 1
	}
	return 0
}

// Config wires the orchestrator's collaborators.
type Config struct {
	Log      zerolog.Logger
	Pipeline *config.Pipeline
	Calendar Calendar
	Router   *clients.Router
	Gateway  *repositories.Gateway
	Universe *universe.Service
	Charts   *charts.Service
	Ratios   *ratios.Engine
	Scoring  *scoring.Service
	Analyst  *analyst.Service
	Earnings *earnings.Service
	Reaper   *delisting.Reaper
	Budget   *Budget
	Clock    func() time.Time
}

// Orchestrator drives one pipeline run end to end.
type Orchestrator struct {
	log      zerolog.Logger
	cfg      *config.Pipeline
	calendar Calendar
	router   *clients.Router
	gateway  *repositories.Gateway
	universe *universe.Service
	charts   *charts.Service
	ratios   *ratios.Engine
	scoring  *scoring.Service
	analyst  *analyst.Service
	earnings *earnings.Service
	reaper   *delisting.Reaper
	budget   *Budget
	clock    func() time.Time
}

// New creates a new orchestrator.
func New(cfg Config) *Orchestrator {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Orchestrator{
		log:      cfg.Log.With().Str("job", "daily_pipeline").Logger(),
		cfg:      cfg.Pipeline,
		calendar: cfg.Calendar,
		router:   cfg.Router,
		gateway:  cfg.Gateway,
		universe: cfg.Universe,
		charts:   cfg.Charts,
		ratios:   cfg.Ratios,
		scoring:  cfg.Scoring,
		analyst:  cfg.Analyst,
		earnings: cfg.Earnings,
		reaper:   cfg.Reaper,
		budget:   cfg.Budget,
		clock:    clock,
	}
}

// runState is the per-run mutable state shared by workers. It is owned by
// one Run invocation and passed explicitly; nothing here outlives the run.
type runState struct {
	mu            sync.Mutex
	updated       map[string]bool
	notFound      map[string]bool
	lowConfidence map[string]bool
	hardStop      bool
	hardStopWhy   string
}

func newRunState() *runState {
	return &runState{
		updated:       make(map[string]bool),
		notFound:      make(map[string]bool),
		lowConfidence: make(map[string]bool),
	}
}

func (st *runState) markUpdated(ticker string) {
	st.mu.Lock()
	st.updated[ticker] = true
	st.mu.Unlock()
}

func (st *runState) markNotFound(ticker string) {
	st.mu.Lock()
	st.notFound[ticker] = true
	st.mu.Unlock()
}

func (st *runState) markLowConfidence(ticker string) {
	st.mu.Lock()
	st.lowConfidence[ticker] = true
	st.mu.Unlock()
}

func (st *runState) setHardStop(why string) {
	st.mu.Lock()
	if !st.hardStop {
		st.hardStop = true
		st.hardStopWhy = why
	}
	st.mu.Unlock()
}

func (st *runState) hardStopped() bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.hardStop
}

func (st *runState) sortedKeys(m map[string]bool) []string {
	st.mu.Lock()
	defer st.mu.Unlock()
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Run executes one full pipeline cycle and returns the summary. force
// bypasses the trading-day guard on P1.
func (o *Orchestrator) Run(ctx context.Context, force bool) *RunSummary {
	started := o.clock()
	runDate := o.calendar.Today()

	ctx, cancel := context.WithTimeout(ctx, o.cfg.RunHardCap.Std())
	defer cancel()

	st := newRunState()
	summary := &RunSummary{
		RunDate:   runDate.Format("2006-01-02"),
		StartedAt: started,
	}

	o.log.Info().Str("run_date", summary.RunDate).Bool("force", force).Msg("Starting daily pipeline")

	type priority struct {
		name     string
		needsAPI bool
		fn       func(ctx context.Context, st *runState, runDate time.Time) (int, int, error)
	}
	priorities := []priority{
		{"P1", true, o.runPriceTechnicals},
		{"P2", true, o.runEarningsFundamentals},
		{"P3", true, o.runBackfill},
		{"P4", true, o.runMissingFundamentals},
		{"P5", false, o.runScoring},
		{"P6", true, o.runAnalystRatings},
	}

	for _, p := range priorities {
		switch {
		case st.hardStopped():
			summary.Priorities = append(summary.Priorities, PriorityResult{Name: p.name, Status: StatusSkipped, Reason: "hard_stop"})
			continue
		case ctx.Err() != nil:
			summary.Priorities = append(summary.Priorities, PriorityResult{Name: p.name, Status: StatusSkipped, Reason: "cancelled"})
			continue
		case p.name == "P1" && !force && !o.calendar.IsTradingDay(runDate):
			o.log.Info().Str("run_date", summary.RunDate).Msg("Not a trading day, skipping price sync")
			summary.Priorities = append(summary.Priorities, PriorityResult{Name: p.name, Status: StatusSkipped, Reason: "non_trading_day"})
			continue
		case p.needsAPI && o.budget.Exhausted():
			summary.Priorities = append(summary.Priorities, PriorityResult{Name: p.name, Status: StatusSkipped, Reason: "budget_exhausted"})
			continue
		}
		summary.Priorities = append(summary.Priorities, o.runPriority(ctx, p.name, st, runDate, p.fn))
	}

	// REAP only runs when the pipeline was not hard-stopped or cancelled;
	// delisting on a degraded run is how good tickers get lost.
	if !st.hardStopped() && ctx.Err() == nil {
		candidates := st.sortedKeys(st.notFound)
		summary.Delisted = o.reaper.Reap(ctx, candidates)
		summary.ReapCompleted = ctx.Err() == nil
	}

	summary.FinishedAt = o.clock()
	summary.ProviderCalls = o.router.CallTotals()
	summary.LowConfidence = st.sortedKeys(st.lowConfidence)
	summary.BudgetLeft = o.budget.Remaining()
	summary.HardStop = st.hardStopped()
	summary.HardStopWhy = st.hardStopWhy

	o.persistSummary(runDate, summary)

	o.log.Info().
		Str("run_date", summary.RunDate).
		Dur("elapsed", summary.FinishedAt.Sub(summary.StartedAt)).
		Bool("hard_stop", summary.HardStop).
		Int("delisted", len(summary.Delisted)).
		Msg("Daily pipeline finished")
	return summary
}

// runPriority runs one priority under its configured deadline and
// translates the result into done / partial / skipped.
func (o *Orchestrator) runPriority(ctx context.Context, name string, st *runState, runDate time.Time, fn func(context.Context, *runState, time.Time) (int, int, error)) PriorityResult {
	deadline := o.cfg.PriorityDeadlines[name].Std()
	pctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	start := o.clock()
	processed, failed, err := fn(pctx, st, runDate)

	result := PriorityResult{Name: name, Status: StatusDone, Processed: processed, Failed: failed}
	switch {
	case errors.Is(err, domain.ErrBudgetExhausted):
		result.Status = StatusPartial
		result.Reason = "budget_exhausted"
	case st.hardStopped():
		result.Status = StatusPartial
		result.Reason = "hard_stop"
	case pctx.Err() != nil:
		result.Status = StatusPartial
		result.Reason = "deadline"
	case err != nil:
		result.Status = StatusPartial
		result.Reason = err.Error()
	case failed > 0:
		result.Status = StatusPartial
		result.Reason = "ticker_failures"
	}

	o.log.Info().
		Str("priority", name).
		Str("status", string(result.Status)).
		Str("reason", result.Reason).
		Int("processed", processed).
		Int("failed", failed).
		Dur("elapsed", o.clock().Sub(start)).
		Msg("Priority finished")
	return result
}

// forEach fans tickers out to at most WorkerConcurrency workers. Worker
// errors are classified here: not_found feeds the delisting candidates,
// budget exhaustion stops the whole group, credential starvation across all
// providers raises the hard stop.
func (o *Orchestrator) forEach(ctx context.Context, st *runState, tickers []string, fn func(ctx context.Context, ticker string) error) (int, int, error) {
	var (
		mu        sync.Mutex
		processed int
		failed    int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.WorkerConcurrency)

	for _, ticker := range tickers {
		if gctx.Err() != nil || st.hardStopped() {
			break
		}
		ticker := ticker
		g.Go(func() error {
			err := fn(gctx, ticker)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				processed++
			case errors.Is(err, clients.ErrNotFound):
				// The ticker resolved to "gone everywhere"; that is an
				// answer, not a failure.
				st.markNotFound(ticker)
				processed++
			case errors.Is(err, domain.ErrBudgetExhausted):
				return err
			case errors.Is(err, domain.ErrNoCredentialAvailable):
				if o.router.AllPoolsExhausted() {
					st.setHardStop("no_credential_available")
					return err
				}
				failed++
			case gctx.Err() != nil:
				// Cancelled mid-flight; the deadline handling upstairs
				// reports the partial.
			default:
				failed++
				o.log.Warn().Str("ticker", ticker).Err(err).Msg("Ticker processing failed")
			}
			return nil
		})
	}

	err := g.Wait()
	return processed, failed, err
}

// runPriceTechnicals is P1: refresh recent bars for the full universe and
// recompute the indicator set on top of stored history.
func (o *Orchestrator) runPriceTechnicals(ctx context.Context, st *runState, runDate time.Time) (int, int, error) {
	tickers, err := o.universe.ActiveTickers()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to load universe: %w", err)
	}

	return o.forEach(ctx, st, tickers, func(ctx context.Context, ticker string) error {
		bars, _, err := o.router.History(ctx, clients.HistoryRequest{
			Ticker: ticker,
			From:   runDate.AddDate(0, 0, -10),
			To:     runDate.AddDate(0, 0, 1),
		})
		if err != nil {
			return err
		}
		for _, bar := range bars {
			if err := o.gateway.Prices.Upsert(ticker, bar, nil); err != nil {
				return err
			}
		}

		stored, err := o.gateway.Prices.Bars(ticker, o.charts.TargetBars())
		if err != nil {
			return err
		}
		if len(stored) == 0 {
			return domain.ErrInsufficientData
		}

		// Bars must land before indicators keyed to the latest date.
		ind := o.charts.Compute(stored)
		latest := stored[len(stored)-1]
		if err := o.gateway.Prices.Upsert(ticker, latest, ind); err != nil {
			return err
		}

		st.markUpdated(ticker)
		return nil
	})
}

// runEarningsFundamentals is P2: refresh fundamentals for tickers with an
// earnings event inside the configured window.
func (o *Orchestrator) runEarningsFundamentals(ctx context.Context, st *runState, runDate time.Time) (int, int, error) {
	if _, err := o.earnings.SyncWindow(ctx, runDate, o.cfg.EarningsWindowDays); err != nil {
		// A stale calendar still selects from previously stored events.
		o.log.Warn().Err(err).Msg("Earnings calendar sync failed, using stored events")
	}

	tickers, err := o.earnings.TickersInWindow(runDate, o.cfg.EarningsWindowDays)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to select earnings window: %w", err)
	}

	return o.forEach(ctx, st, tickers, func(ctx context.Context, ticker string) error {
		return o.refreshFundamentals(ctx, st, ticker, runDate)
	})
}

// runBackfill is P3: bring thin tickers up to the minimum bar count,
// archive first, API second, least data first.
func (o *Orchestrator) runBackfill(ctx context.Context, st *runState, runDate time.Time) (int, int, error) {
	tickers, err := o.gateway.Prices.TickersUnderBarCount(o.cfg.MinHistoryBars)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to select backfill candidates: %w", err)
	}

	return o.forEach(ctx, st, tickers, func(ctx context.Context, ticker string) error {
		if _, err := o.universe.WarmBackfill(ticker, o.cfg.TargetHistoryBars); err != nil {
			o.log.Warn().Str("ticker", ticker).Err(err).Msg("Archive backfill failed, falling back to API")
		}

		count, err := o.gateway.Prices.CountBars(ticker)
		if err != nil {
			return err
		}
		if count >= o.cfg.MinHistoryBars {
			st.markUpdated(ticker)
			return nil
		}

		// Calendar days run about 1.4x trading days; double covers gaps.
		bars, _, err := o.router.History(ctx, clients.HistoryRequest{
			Ticker: ticker,
			From:   runDate.AddDate(0, 0, -2*o.cfg.TargetHistoryBars),
			To:     runDate.AddDate(0, 0, 1),
		})
		if err != nil {
			return err
		}
		for _, bar := range bars {
			if err := o.gateway.Prices.Upsert(ticker, bar, nil); err != nil {
				return err
			}
		}
		st.markUpdated(ticker)
		return nil
	})
}

// runMissingFundamentals is P4: refresh tickers with any required
// fundamental field still null.
func (o *Orchestrator) runMissingFundamentals(ctx context.Context, st *runState, runDate time.Time) (int, int, error) {
	tickers, err := o.gateway.Fundamentals.TickersMissingRequired()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to select incomplete fundamentals: %w", err)
	}

	return o.forEach(ctx, st, tickers, func(ctx context.Context, ticker string) error {
		return o.refreshFundamentals(ctx, st, ticker, runDate)
	})
}

// runScoring is P5 (non-critical, local CPU): rescore every ticker whose
// inputs changed this run.
func (o *Orchestrator) runScoring(ctx context.Context, st *runState, runDate time.Time) (int, int, error) {
	tickers := st.sortedKeys(st.updated)

	return o.forEach(ctx, st, tickers, func(_ context.Context, ticker string) error {
		row, err := o.scoring.ScoreAndPersist(ticker, runDate)
		if err != nil {
			return err
		}
		if row.LowConfidence {
			st.markLowConfidence(ticker)
		}
		return nil
	})
}

// runAnalystRatings is P6 (non-critical): sync the recommendation
// distribution across the full universe.
func (o *Orchestrator) runAnalystRatings(ctx context.Context, st *runState, runDate time.Time) (int, int, error) {
	tickers, err := o.universe.ActiveTickers()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to load universe: %w", err)
	}

	return o.forEach(ctx, st, tickers, func(ctx context.Context, ticker string) error {
		return o.analyst.SyncTicker(ctx, ticker, runDate)
	})
}

// refreshFundamentals fetches a fundamentals snapshot with field-level
// fallback, persists it and derives the ratio row from it. Ratios always
// land after the fundamentals row they came from.
func (o *Orchestrator) refreshFundamentals(ctx context.Context, st *runState, ticker string, runDate time.Time) error {
	snap, result, err := o.router.Fundamentals(ctx, ticker)
	if err != nil {
		return err
	}
	if err := o.gateway.Fundamentals.Upsert(*snap); err != nil {
		return err
	}
	if len(result.FieldsMissing) > 0 {
		o.log.Debug().
			Str("ticker", ticker).
			Int("fields_missing", len(result.FieldsMissing)).
			Float64("success_rate", result.SuccessRate).
			Msg("Fundamentals snapshot incomplete")
	}

	bars, err := o.gateway.Prices.Bars(ticker, 1)
	if err != nil {
		return err
	}
	if len(bars) > 0 {
		sector := ""
		if inst, err := o.gateway.Instruments.Get(ticker); err == nil && inst != nil {
			sector = inst.Sector
		}
		prior, err := o.gateway.Fundamentals.Prior(ticker, snap.FiscalPeriodEnd)
		if err != nil {
			return err
		}
		row := o.ratios.Compute(snap, prior, bars[len(bars)-1].Close, sector, runDate)
		if err := o.gateway.Ratios.Upsert(row); err != nil {
			return err
		}
	}

	st.markUpdated(ticker)
	return nil
}

// persistSummary stores the run summary for the status API; failure to
// persist never fails the run itself.
func (o *Orchestrator) persistSummary(runDate time.Time, summary *RunSummary) {
	data, err := json.Marshal(summary)
	if err != nil {
		o.log.Error().Err(err).Msg("Failed to marshal run summary")
		return
	}
	if err := o.gateway.Runs.Insert(runDate, summary.StartedAt, summary.FinishedAt, string(data)); err != nil {
		o.log.Error().Err(err).Msg("Failed to persist run summary")
	}
}
