package database

import "fmt"

// migrations run in order inside one transaction. Keep them idempotent:
// CREATE TABLE IF NOT EXISTS only, no destructive statements.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS stocks (
		ticker      TEXT PRIMARY KEY,
		name        TEXT NOT NULL DEFAULT '',
		sector      TEXT NOT NULL DEFAULT '',
		asset_class TEXT NOT NULL DEFAULT 'EQUITY',
		active      INTEGER NOT NULL DEFAULT 1,
		added_at    TEXT NOT NULL DEFAULT (date('now'))
	)`,

	// Bounded oscillator columns (rsi_14, adx_14, cci_20, stoch_*) are stored
	// as INTEGER x100; the repositories apply the transform on write and
	// reverse it on read. Engines always deal in unscaled values.
	`CREATE TABLE IF NOT EXISTS daily_charts (
		ticker TEXT NOT NULL REFERENCES stocks(ticker),
		date   TEXT NOT NULL,
		open   REAL NOT NULL,
		high   REAL NOT NULL,
		low    REAL NOT NULL,
		close  REAL NOT NULL,
		volume INTEGER NOT NULL,
		adj_close REAL,

		ema_20  REAL, ema_50  REAL, ema_100 REAL, ema_200 REAL,
		rsi_14 INTEGER,
		macd REAL, macd_signal REAL, macd_hist REAL,
		bollinger_upper REAL, bollinger_middle REAL, bollinger_lower REAL,
		bollinger_pct_b REAL,
		atr_14 REAL,
		adx_14 INTEGER,
		cci_20 INTEGER,
		stoch_k INTEGER, stoch_d INTEGER,
		vwap REAL,
		obv NUMERIC(18,4),
		vpt NUMERIC(18,4),
		pivot_point REAL, support_1 REAL, support_2 REAL,
		resistance_1 REAL, resistance_2 REAL,
		swing_high_5 REAL, swing_low_5 REAL,
		swing_high_10 REAL, swing_low_10 REAL,
		swing_high_20 REAL, swing_low_20 REAL,
		high_52_week REAL, low_52_week REAL,

		PRIMARY KEY (ticker, date)
	)`,

	`CREATE TABLE IF NOT EXISTS company_fundamentals (
		ticker            TEXT NOT NULL REFERENCES stocks(ticker),
		fiscal_period_end TEXT NOT NULL,
		source            TEXT NOT NULL,

		revenue REAL, net_income REAL, total_assets REAL, total_debt REAL,
		total_equity REAL, current_assets REAL, current_liabilities REAL,
		cost_of_goods_sold REAL, operating_income REAL, ebitda REAL,
		free_cash_flow REAL, shares_outstanding REAL, market_cap REAL,
		enterprise_value REAL, eps_diluted REAL, book_value_per_share REAL,

		provenance TEXT NOT NULL DEFAULT '{}', -- JSON: field -> {source, confidence}
		updated_at TEXT NOT NULL DEFAULT (datetime('now')),

		PRIMARY KEY (ticker, fiscal_period_end, source)
	)`,

	`CREATE TABLE IF NOT EXISTS financial_ratios (
		ticker     TEXT NOT NULL REFERENCES stocks(ticker),
		as_of_date TEXT NOT NULL,

		pe REAL, pb REAL, ps REAL, ev_to_ebitda REAL, peg REAL,
		graham_number REAL,
		roe REAL, roa REAL, roic REAL,
		gross_margin REAL, operating_margin REAL, net_margin REAL,
		debt_to_equity REAL, current_ratio REAL, quick_ratio REAL,
		interest_coverage REAL, altman_z REAL,
		asset_turnover REAL, inventory_turnover REAL, receivables_turnover REAL,
		revenue_growth_yoy REAL, earnings_growth_yoy REAL, fcf_growth_yoy REAL,
		fcf_to_net_income REAL, cash_conversion_cycle REAL,
		market_cap REAL, enterprise_value REAL,

		PRIMARY KEY (ticker, as_of_date)
	)`,

	`CREATE TABLE IF NOT EXISTS earnings_calendar (
		ticker     TEXT NOT NULL REFERENCES stocks(ticker),
		event_date TEXT NOT NULL,
		reported   INTEGER NOT NULL DEFAULT 0,
		source     TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (ticker, event_date)
	)`,

	// Grade columns take strings up to 20 chars ("Strong Sell" etc).
	`CREATE TABLE IF NOT EXISTS company_scores_current (
		ticker     TEXT PRIMARY KEY REFERENCES stocks(ticker),
		as_of_date TEXT NOT NULL,

		fundamental_health REAL NOT NULL,
		value_investment   REAL NOT NULL,
		technical_health   REAL NOT NULL,
		trading_signal     REAL NOT NULL,
		risk               REAL NOT NULL,
		vwap_sr            REAL NOT NULL,
		composite          REAL NOT NULL,
		grade              VARCHAR(20) NOT NULL,

		data_confidence  REAL NOT NULL,
		low_confidence   INTEGER NOT NULL DEFAULT 0,
		missing_fields   TEXT NOT NULL DEFAULT '[]',
		estimated_fields TEXT NOT NULL DEFAULT '[]',
		version          TEXT NOT NULL DEFAULT ''
	)`,

	// Append-only; no upserts here.
	`CREATE TABLE IF NOT EXISTS company_scores_historical (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		ticker     TEXT NOT NULL REFERENCES stocks(ticker),
		as_of_date TEXT NOT NULL,

		fundamental_health REAL NOT NULL,
		value_investment   REAL NOT NULL,
		technical_health   REAL NOT NULL,
		trading_signal     REAL NOT NULL,
		risk               REAL NOT NULL,
		vwap_sr            REAL NOT NULL,
		composite          REAL NOT NULL,
		grade              VARCHAR(20) NOT NULL,

		data_confidence  REAL NOT NULL,
		low_confidence   INTEGER NOT NULL DEFAULT 0,
		missing_fields   TEXT NOT NULL DEFAULT '[]',
		estimated_fields TEXT NOT NULL DEFAULT '[]',
		version          TEXT NOT NULL DEFAULT '',
		created_at       TEXT NOT NULL DEFAULT (datetime('now'))
	)`,

	`CREATE TABLE IF NOT EXISTS analyst_rating_trends (
		ticker     TEXT NOT NULL REFERENCES stocks(ticker),
		as_of_date TEXT NOT NULL,

		strong_buy  INTEGER NOT NULL DEFAULT 0,
		buy         INTEGER NOT NULL DEFAULT 0,
		hold        INTEGER NOT NULL DEFAULT 0,
		sell        INTEGER NOT NULL DEFAULT 0,
		strong_sell INTEGER NOT NULL DEFAULT 0,

		consensus_score     REAL NOT NULL DEFAULT 0,
		mean_target_price   REAL,
		median_target_price REAL,
		source              TEXT NOT NULL DEFAULT '',

		PRIMARY KEY (ticker, as_of_date)
	)`,

	`CREATE TABLE IF NOT EXISTS pipeline_runs (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		run_date   TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		summary    TEXT NOT NULL DEFAULT '{}' -- JSON run summary
	)`,

	`CREATE INDEX IF NOT EXISTS idx_daily_charts_date ON daily_charts(date)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_scores_hist_ticker ON company_scores_historical(ticker, as_of_date)`,
	`CREATE INDEX IF NOT EXISTS idx_earnings_date ON earnings_calendar(event_date)`,
}

// Migrate creates the schema.
func (db *DB) Migrate() error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin migration: %w", err)
	}
	defer tx.Rollback()

	for i, stmt := range migrations {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("migration %d failed: %w", i, err)
		}
	}

	return tx.Commit()
}
