package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/marketpipe/internal/domain"
)

// RatioRepository handles the financial_ratios table.
type RatioRepository struct {
	*BaseRepository
}

// NewRatioRepository creates a new ratio repository
func NewRatioRepository(db *sql.DB, log zerolog.Logger) *RatioRepository {
	return &RatioRepository{
		BaseRepository: NewBase(db, log.With().Str("repo", "ratios").Logger()),
	}
}

// Upsert replaces the (ticker, as_of_date) row.
func (r *RatioRepository) Upsert(row domain.RatioRow) error {
	_, err := r.db.Exec(`
		INSERT OR REPLACE INTO financial_ratios (
			ticker, as_of_date,
			pe, pb, ps, ev_to_ebitda, peg, graham_number,
			roe, roa, roic, gross_margin, operating_margin, net_margin,
			debt_to_equity, current_ratio, quick_ratio, interest_coverage, altman_z,
			asset_turnover, inventory_turnover, receivables_turnover,
			revenue_growth_yoy, earnings_growth_yoy, fcf_growth_yoy,
			fcf_to_net_income, cash_conversion_cycle,
			market_cap, enterprise_value
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		normalizeTicker(row.Ticker), row.AsOfDate.Format("2006-01-02"),
		nullFloat(row.PE), nullFloat(row.PB), nullFloat(row.PS),
		nullFloat(row.EVToEBITDA), nullFloat(row.PEG), nullFloat(row.GrahamNum),
		nullFloat(row.ROE), nullFloat(row.ROA), nullFloat(row.ROIC),
		nullFloat(row.GrossMargin), nullFloat(row.OperatingMargin), nullFloat(row.NetMargin),
		nullFloat(row.DebtToEquity), nullFloat(row.CurrentRatio), nullFloat(row.QuickRatio),
		nullFloat(row.InterestCoverage), nullFloat(row.AltmanZ),
		nullFloat(row.AssetTurnover), nullFloat(row.InventoryTurnover), nullFloat(row.ReceivablesTurnover),
		nullFloat(row.RevenueGrowthYoY), nullFloat(row.EarningsGrowthYoY), nullFloat(row.FCFGrowthYoY),
		nullFloat(row.FCFToNetIncome), nullFloat(row.CashConversionCycle),
		nullFloat(row.MarketCap), nullFloat(row.EnterpriseValue))
	if err != nil {
		return fmt.Errorf("failed to upsert ratios for %s: %w", row.Ticker, err)
	}
	return nil
}

// Latest returns the most recent ratio row for a ticker, nil when absent.
func (r *RatioRepository) Latest(ticker string) (*domain.RatioRow, error) {
	row := r.db.QueryRow(`
		SELECT ticker, as_of_date,
			pe, pb, ps, ev_to_ebitda, peg, graham_number,
			roe, roa, roic, gross_margin, operating_margin, net_margin,
			debt_to_equity, current_ratio, quick_ratio, interest_coverage, altman_z,
			asset_turnover, inventory_turnover, receivables_turnover,
			revenue_growth_yoy, earnings_growth_yoy, fcf_growth_yoy,
			fcf_to_net_income, cash_conversion_cycle,
			market_cap, enterprise_value
		FROM financial_ratios WHERE ticker = ?
		ORDER BY as_of_date DESC LIMIT 1`, normalizeTicker(ticker))

	var (
		out     domain.RatioRow
		dateStr string
		vals    [27]sql.NullFloat64
	)
	err := row.Scan(&out.Ticker, &dateStr,
		&vals[0], &vals[1], &vals[2], &vals[3], &vals[4], &vals[5],
		&vals[6], &vals[7], &vals[8], &vals[9], &vals[10], &vals[11],
		&vals[12], &vals[13], &vals[14], &vals[15], &vals[16],
		&vals[17], &vals[18], &vals[19],
		&vals[20], &vals[21], &vals[22],
		&vals[23], &vals[24],
		&vals[25], &vals[26])
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan ratios: %w", err)
	}

	date, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		return nil, fmt.Errorf("bad as_of_date: %w", err)
	}
	out.AsOfDate = date

	out.PE = floatPtr(vals[0])
	out.PB = floatPtr(vals[1])
	out.PS = floatPtr(vals[2])
	out.EVToEBITDA = floatPtr(vals[3])
	out.PEG = floatPtr(vals[4])
	out.GrahamNum = floatPtr(vals[5])
	out.ROE = floatPtr(vals[6])
	out.ROA = floatPtr(vals[7])
	out.ROIC = floatPtr(vals[8])
	out.GrossMargin = floatPtr(vals[9])
	out.OperatingMargin = floatPtr(vals[10])
	out.NetMargin = floatPtr(vals[11])
	out.DebtToEquity = floatPtr(vals[12])
	out.CurrentRatio = floatPtr(vals[13])
	out.QuickRatio = floatPtr(vals[14])
	out.InterestCoverage = floatPtr(vals[15])
	out.AltmanZ = floatPtr(vals[16])
	out.AssetTurnover = floatPtr(vals[17])
	out.InventoryTurnover = floatPtr(vals[18])
	out.ReceivablesTurnover = floatPtr(vals[19])
	out.RevenueGrowthYoY = floatPtr(vals[20])
	out.EarningsGrowthYoY = floatPtr(vals[21])
	out.FCFGrowthYoY = floatPtr(vals[22])
	out.FCFToNetIncome = floatPtr(vals[23])
	out.CashConversionCycle = floatPtr(vals[24])
	out.MarketCap = floatPtr(vals[25])
	out.EnterpriseValue = floatPtr(vals[26])

	return &out, nil
}
