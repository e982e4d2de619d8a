// Package scoring assembles the component scores into the composite score
// row persisted for each ticker.
package scoring

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/marketpipe/internal/config"
	"github.com/aristath/marketpipe/internal/database/repositories"
	"github.com/aristath/marketpipe/internal/domain"
	"github.com/aristath/marketpipe/internal/modules/charts"
	"github.com/aristath/marketpipe/internal/modules/scoring/scorers"
)

// ScoreVersion tags persisted rows with the scoring methodology revision.
const ScoreVersion = "v1"

// Service computes and persists composite scores.
type Service struct {
	gateway *repositories.Gateway
	charts  *charts.Service
	cfg     *config.Pipeline
	log     zerolog.Logger

	fundamental *scorers.FundamentalHealthScorer
	value       *scorers.ValueScorer
	technical   *scorers.TechnicalScorer
	signal      *scorers.SignalScorer
	risk        *scorers.RiskScorer
	vwap        *scorers.VWAPScorer
}

// NewService creates a new scoring service.
func NewService(gateway *repositories.Gateway, chartSvc *charts.Service, cfg *config.Pipeline, log zerolog.Logger) *Service {
	return &Service{
		gateway:     gateway,
		charts:      chartSvc,
		cfg:         cfg,
		log:         log.With().Str("component", "scoring").Logger(),
		fundamental: scorers.NewFundamentalHealthScorer(),
		value:       scorers.NewValueScorer(),
		technical:   scorers.NewTechnicalScorer(),
		signal:      scorers.NewSignalScorer(),
		risk:        scorers.NewRiskScorer(),
		vwap:        scorers.NewVWAPScorer(),
	}
}

// ScoreTicker computes the score row for one ticker from stored data. The
// row is always produced when a price exists; thin inputs lower
// data_confidence and flip low_confidence instead of blocking the score.
func (s *Service) ScoreTicker(ticker string, asOf time.Time) (*domain.ScoreRow, error) {
	bars, err := s.gateway.Prices.Bars(ticker, s.charts.TargetBars())
	if err != nil {
		return nil, fmt.Errorf("failed to load bars for %s: %w", ticker, err)
	}
	if len(bars) == 0 {
		return nil, domain.ErrInsufficientData
	}
	price := bars[len(bars)-1].Close

	ind := s.charts.Compute(bars)

	ratioRow, err := s.gateway.Ratios.Latest(ticker)
	if err != nil {
		return nil, fmt.Errorf("failed to load ratios for %s: %w", ticker, err)
	}
	if ratioRow == nil {
		ratioRow = &domain.RatioRow{Ticker: ticker}
	}

	sector := ""
	if inst, err := s.gateway.Instruments.Get(ticker); err == nil && inst != nil {
		sector = inst.Sector
	}

	tracker := &scorers.Tracker{}

	row := &domain.ScoreRow{
		Ticker:   ticker,
		AsOfDate: asOf,
		Version:  ScoreVersion,
	}
	row.FundamentalHealth = s.fundamental.Calculate(ratioRow, tracker)
	row.ValueInvestment = s.value.Calculate(ratioRow, price, tracker)
	row.TechnicalHealth = s.technical.Calculate(ind, price, tracker)
	row.TradingSignal = s.signal.Calculate(ind, price, tracker)
	closes := make([]float64, len(bars))
	for i, bar := range bars {
		closes[i] = bar.Close
	}
	row.Risk = s.risk.Calculate(ind, closes, price, sector, ratioRow.MarketCap, ratioRow.PE, tracker)
	row.VWAPSupportResist = s.vwap.Calculate(ind, price, tracker)

	row.Composite = s.cfg.Weight("fundamental")*row.FundamentalHealth +
		s.cfg.Weight("technical")*row.TechnicalHealth +
		s.cfg.Weight("value")*row.ValueInvestment +
		s.cfg.Weight("signal")*row.TradingSignal +
		s.cfg.Weight("risk")*row.Risk +
		s.cfg.Weight("vwap_sr")*row.VWAPSupportResist
	row.Grade = domain.GradeFor(row.Composite)

	row.DataConfidence = tracker.Confidence()
	row.LowConfidence = row.DataConfidence < s.cfg.ConfidenceThreshold
	row.MissingFields = tracker.Missing()
	row.EstimatedFields = tracker.Estimated()

	return row, nil
}

// ScoreAndPersist computes the row and writes current + historical in one
// transaction.
func (s *Service) ScoreAndPersist(ticker string, asOf time.Time) (*domain.ScoreRow, error) {
	row, err := s.ScoreTicker(ticker, asOf)
	if err != nil {
		return nil, err
	}
	if err := s.gateway.Scores.Upsert(*row); err != nil {
		return nil, fmt.Errorf("failed to persist score for %s: %w", ticker, err)
	}

	s.log.Debug().
		Str("ticker", ticker).
		Float64("composite", row.Composite).
		Str("grade", string(row.Grade)).
		Bool("low_confidence", row.LowConfidence).
		Msg("Score persisted")
	return row, nil
}
