package repositories

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/marketpipe/internal/domain"
)

// FundamentalsRepository handles the company_fundamentals table. Field
// provenance is stored as a JSON column alongside the values.
type FundamentalsRepository struct {
	*BaseRepository
}

// NewFundamentalsRepository creates a new fundamentals repository
func NewFundamentalsRepository(db *sql.DB, log zerolog.Logger) *FundamentalsRepository {
	return &FundamentalsRepository{
		BaseRepository: NewBase(db, log.With().Str("repo", "fundamentals").Logger()),
	}
}

// Upsert writes one snapshot row keyed by (ticker, fiscal_period_end, source).
func (r *FundamentalsRepository) Upsert(snap domain.FundamentalSnapshot) error {
	provJSON, err := json.Marshal(snap.Provenance)
	if err != nil {
		return fmt.Errorf("failed to marshal provenance: %w", err)
	}

	_, err = r.db.Exec(`
		INSERT INTO company_fundamentals (
			ticker, fiscal_period_end, source,
			revenue, net_income, total_assets, total_debt, total_equity,
			current_assets, current_liabilities, cost_of_goods_sold,
			operating_income, ebitda, free_cash_flow, shares_outstanding,
			market_cap, enterprise_value, eps_diluted, book_value_per_share,
			provenance, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, datetime('now'))
		ON CONFLICT(ticker, fiscal_period_end, source) DO UPDATE SET
			revenue = COALESCE(excluded.revenue, company_fundamentals.revenue),
			net_income = COALESCE(excluded.net_income, company_fundamentals.net_income),
			total_assets = COALESCE(excluded.total_assets, company_fundamentals.total_assets),
			total_debt = COALESCE(excluded.total_debt, company_fundamentals.total_debt),
			total_equity = COALESCE(excluded.total_equity, company_fundamentals.total_equity),
			current_assets = COALESCE(excluded.current_assets, company_fundamentals.current_assets),
			current_liabilities = COALESCE(excluded.current_liabilities, company_fundamentals.current_liabilities),
			cost_of_goods_sold = COALESCE(excluded.cost_of_goods_sold, company_fundamentals.cost_of_goods_sold),
			operating_income = COALESCE(excluded.operating_income, company_fundamentals.operating_income),
			ebitda = COALESCE(excluded.ebitda, company_fundamentals.ebitda),
			free_cash_flow = COALESCE(excluded.free_cash_flow, company_fundamentals.free_cash_flow),
			shares_outstanding = COALESCE(excluded.shares_outstanding, company_fundamentals.shares_outstanding),
			market_cap = COALESCE(excluded.market_cap, company_fundamentals.market_cap),
			enterprise_value = COALESCE(excluded.enterprise_value, company_fundamentals.enterprise_value),
			eps_diluted = COALESCE(excluded.eps_diluted, company_fundamentals.eps_diluted),
			book_value_per_share = COALESCE(excluded.book_value_per_share, company_fundamentals.book_value_per_share),
			provenance = excluded.provenance,
			updated_at = datetime('now')`,
		normalizeTicker(snap.Ticker), snap.FiscalPeriodEnd.Format("2006-01-02"), snap.Source,
		nullFloat(snap.Revenue), nullFloat(snap.NetIncome), nullFloat(snap.TotalAssets),
		nullFloat(snap.TotalDebt), nullFloat(snap.TotalEquity), nullFloat(snap.CurrentAssets),
		nullFloat(snap.CurrentLiabilities), nullFloat(snap.CostOfGoodsSold),
		nullFloat(snap.OperatingIncome), nullFloat(snap.EBITDA), nullFloat(snap.FreeCashFlow),
		nullFloat(snap.SharesOutstanding), nullFloat(snap.MarketCap),
		nullFloat(snap.EnterpriseValue), nullFloat(snap.EPSDiluted),
		nullFloat(snap.BookValuePerShare), string(provJSON))
	if err != nil {
		return fmt.Errorf("failed to upsert fundamentals for %s: %w", snap.Ticker, err)
	}
	return nil
}

// Latest returns the most recent snapshot for a ticker (any source),
// nil when none exists.
func (r *FundamentalsRepository) Latest(ticker string) (*domain.FundamentalSnapshot, error) {
	return r.snapshotBefore(ticker, "9999-12-31")
}

// Prior returns the most recent snapshot strictly before the given period
// end. Used for YoY growth ratios.
func (r *FundamentalsRepository) Prior(ticker string, periodEnd time.Time) (*domain.FundamentalSnapshot, error) {
	return r.snapshotBefore(ticker, periodEnd.Format("2006-01-02"))
}

func (r *FundamentalsRepository) snapshotBefore(ticker, before string) (*domain.FundamentalSnapshot, error) {
	row := r.db.QueryRow(`
		SELECT ticker, fiscal_period_end, source,
			revenue, net_income, total_assets, total_debt, total_equity,
			current_assets, current_liabilities, cost_of_goods_sold,
			operating_income, ebitda, free_cash_flow, shares_outstanding,
			market_cap, enterprise_value, eps_diluted, book_value_per_share,
			provenance
		FROM company_fundamentals
		WHERE ticker = ? AND fiscal_period_end < ?
		ORDER BY fiscal_period_end DESC LIMIT 1`,
		normalizeTicker(ticker), before)

	return scanSnapshot(row)
}

func scanSnapshot(row *sql.Row) (*domain.FundamentalSnapshot, error) {
	var (
		snap      domain.FundamentalSnapshot
		periodStr string
		provJSON  string
		vals      [16]sql.NullFloat64
	)
	err := row.Scan(&snap.Ticker, &periodStr, &snap.Source,
		&vals[0], &vals[1], &vals[2], &vals[3], &vals[4], &vals[5], &vals[6],
		&vals[7], &vals[8], &vals[9], &vals[10], &vals[11], &vals[12],
		&vals[13], &vals[14], &vals[15], &provJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan fundamentals: %w", err)
	}

	period, err := time.Parse("2006-01-02", periodStr)
	if err != nil {
		return nil, fmt.Errorf("bad fiscal_period_end: %w", err)
	}
	snap.FiscalPeriodEnd = period

	snap.Revenue = floatPtr(vals[0])
	snap.NetIncome = floatPtr(vals[1])
	snap.TotalAssets = floatPtr(vals[2])
	snap.TotalDebt = floatPtr(vals[3])
	snap.TotalEquity = floatPtr(vals[4])
	snap.CurrentAssets = floatPtr(vals[5])
	snap.CurrentLiabilities = floatPtr(vals[6])
	snap.CostOfGoodsSold = floatPtr(vals[7])
	snap.OperatingIncome = floatPtr(vals[8])
	snap.EBITDA = floatPtr(vals[9])
	snap.FreeCashFlow = floatPtr(vals[10])
	snap.SharesOutstanding = floatPtr(vals[11])
	snap.MarketCap = floatPtr(vals[12])
	snap.EnterpriseValue = floatPtr(vals[13])
	snap.EPSDiluted = floatPtr(vals[14])
	snap.BookValuePerShare = floatPtr(vals[15])

	if provJSON != "" {
		if err := json.Unmarshal([]byte(provJSON), &snap.Provenance); err != nil {
			return nil, fmt.Errorf("bad provenance JSON: %w", err)
		}
	}

	return &snap, nil
}

// TickersMissingRequired returns active tickers whose latest snapshot is
// missing any required field (or that have no snapshot at all), ticker
// ascending.
func (r *FundamentalsRepository) TickersMissingRequired() ([]string, error) {
	rows, err := r.db.Query(`SELECT ticker FROM stocks WHERE active = 1 ORDER BY ticker ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query instruments: %w", err)
	}
	defer rows.Close()

	var all []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("failed to scan ticker: %w", err)
		}
		all = append(all, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tickers: %w", err)
	}

	var missing []string
	for _, ticker := range all {
		snap, err := r.Latest(ticker)
		if err != nil {
			return nil, err
		}
		if snap == nil || len(snap.MissingRequired()) > 0 {
			missing = append(missing, ticker)
		}
	}
	return missing, nil
}
