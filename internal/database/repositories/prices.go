package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/marketpipe/internal/domain"
)

// PriceRepository handles the daily_charts table.
//
// The x100 integer scaling for bounded oscillator columns is applied here
// and only here: engines emit unscaled values, reads reverse the transform.
type PriceRepository struct {
	*BaseRepository
}

// NewPriceRepository creates a new price repository
func NewPriceRepository(db *sql.DB, log zerolog.Logger) *PriceRepository {
	return &PriceRepository{
		BaseRepository: NewBase(db, log.With().Str("repo", "prices").Logger()),
	}
}

// Upsert writes one (ticker, date) row. A partial indicator set is
// acceptable: NULL values in the incoming set never overwrite previously
// populated columns (COALESCE keeps the stored value).
func (r *PriceRepository) Upsert(ticker string, bar domain.Bar, ind *domain.IndicatorSet) error {
	if ind == nil {
		ind = &domain.IndicatorSet{}
	}

	_, err := r.db.Exec(`
		INSERT INTO daily_charts (
			ticker, date, open, high, low, close, volume, adj_close,
			ema_20, ema_50, ema_100, ema_200,
			rsi_14, macd, macd_signal, macd_hist,
			bollinger_upper, bollinger_middle, bollinger_lower, bollinger_pct_b,
			atr_14, adx_14, cci_20, stoch_k, stoch_d,
			vwap, obv, vpt,
			pivot_point, support_1, support_2, resistance_1, resistance_2,
			swing_high_5, swing_low_5, swing_high_10, swing_low_10,
			swing_high_20, swing_low_20, high_52_week, low_52_week
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?,
			?, ?, ?, ?,
			?, ?, ?, ?,
			?, ?, ?, ?,
			?, ?, ?, ?, ?,
			?, ?, ?,
			?, ?, ?, ?, ?,
			?, ?, ?, ?,
			?, ?, ?, ?)
		ON CONFLICT(ticker, date) DO UPDATE SET
			open = excluded.open, high = excluded.high,
			low = excluded.low, close = excluded.close,
			volume = excluded.volume,
			adj_close = COALESCE(excluded.adj_close, daily_charts.adj_close),
			ema_20 = COALESCE(excluded.ema_20, daily_charts.ema_20),
			ema_50 = COALESCE(excluded.ema_50, daily_charts.ema_50),
			ema_100 = COALESCE(excluded.ema_100, daily_charts.ema_100),
			ema_200 = COALESCE(excluded.ema_200, daily_charts.ema_200),
			rsi_14 = COALESCE(excluded.rsi_14, daily_charts.rsi_14),
			macd = COALESCE(excluded.macd, daily_charts.macd),
			macd_signal = COALESCE(excluded.macd_signal, daily_charts.macd_signal),
			macd_hist = COALESCE(excluded.macd_hist, daily_charts.macd_hist),
			bollinger_upper = COALESCE(excluded.bollinger_upper, daily_charts.bollinger_upper),
			bollinger_middle = COALESCE(excluded.bollinger_middle, daily_charts.bollinger_middle),
			bollinger_lower = COALESCE(excluded.bollinger_lower, daily_charts.bollinger_lower),
			bollinger_pct_b = COALESCE(excluded.bollinger_pct_b, daily_charts.bollinger_pct_b),
			atr_14 = COALESCE(excluded.atr_14, daily_charts.atr_14),
			adx_14 = COALESCE(excluded.adx_14, daily_charts.adx_14),
			cci_20 = COALESCE(excluded.cci_20, daily_charts.cci_20),
			stoch_k = COALESCE(excluded.stoch_k, daily_charts.stoch_k),
			stoch_d = COALESCE(excluded.stoch_d, daily_charts.stoch_d),
			vwap = COALESCE(excluded.vwap, daily_charts.vwap),
			obv = COALESCE(excluded.obv, daily_charts.obv),
			vpt = COALESCE(excluded.vpt, daily_charts.vpt),
			pivot_point = COALESCE(excluded.pivot_point, daily_charts.pivot_point),
			support_1 = COALESCE(excluded.support_1, daily_charts.support_1),
			support_2 = COALESCE(excluded.support_2, daily_charts.support_2),
			resistance_1 = COALESCE(excluded.resistance_1, daily_charts.resistance_1),
			resistance_2 = COALESCE(excluded.resistance_2, daily_charts.resistance_2),
			swing_high_5 = COALESCE(excluded.swing_high_5, daily_charts.swing_high_5),
			swing_low_5 = COALESCE(excluded.swing_low_5, daily_charts.swing_low_5),
			swing_high_10 = COALESCE(excluded.swing_high_10, daily_charts.swing_high_10),
			swing_low_10 = COALESCE(excluded.swing_low_10, daily_charts.swing_low_10),
			swing_high_20 = COALESCE(excluded.swing_high_20, daily_charts.swing_high_20),
			swing_low_20 = COALESCE(excluded.swing_low_20, daily_charts.swing_low_20),
			high_52_week = COALESCE(excluded.high_52_week, daily_charts.high_52_week),
			low_52_week = COALESCE(excluded.low_52_week, daily_charts.low_52_week)`,
		normalizeTicker(ticker), bar.Date.Format("2006-01-02"),
		bar.Open, bar.High, bar.Low, bar.Close, bar.Volume, nullableAdjClose(bar),
		nullFloat(ind.EMA20), nullFloat(ind.EMA50), nullFloat(ind.EMA100), nullFloat(ind.EMA200),
		scaled100(ind.RSI14), nullFloat(ind.MACD), nullFloat(ind.MACDSignal), nullFloat(ind.MACDHist),
		nullFloat(ind.BollingerUpper), nullFloat(ind.BollingerMiddle), nullFloat(ind.BollingerLower), nullFloat(ind.BollingerPctB),
		nullFloat(ind.ATR14), scaled100(ind.ADX14), scaled100(ind.CCI20), scaled100(ind.StochK), scaled100(ind.StochD),
		nullFloat(ind.VWAP), nullFloat(ind.OBV), nullFloat(ind.VPT),
		nullFloat(ind.PivotPoint), nullFloat(ind.Support1), nullFloat(ind.Support2),
		nullFloat(ind.Resistance1), nullFloat(ind.Resistance2),
		nullFloat(ind.SwingHigh5), nullFloat(ind.SwingLow5),
		nullFloat(ind.SwingHigh10), nullFloat(ind.SwingLow10),
		nullFloat(ind.SwingHigh20), nullFloat(ind.SwingLow20),
		nullFloat(ind.High52Week), nullFloat(ind.Low52Week))
	if err != nil {
		return fmt.Errorf("failed to upsert price %s/%s: %w", ticker, bar.Date.Format("2006-01-02"), err)
	}
	return nil
}

// Bars returns up to limit bars for a ticker, oldest first.
func (r *PriceRepository) Bars(ticker string, limit int) ([]domain.Bar, error) {
	rows, err := r.db.Query(`
		SELECT date, open, high, low, close, volume, adj_close
		FROM (
			SELECT date, open, high, low, close, volume, adj_close
			FROM daily_charts WHERE ticker = ?
			ORDER BY date DESC LIMIT ?
		) ORDER BY date ASC`, normalizeTicker(ticker), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query bars for %s: %w", ticker, err)
	}
	defer rows.Close()

	var bars []domain.Bar
	for rows.Next() {
		var (
			dateStr  string
			bar      domain.Bar
			adjClose sql.NullFloat64
		)
		if err := rows.Scan(&dateStr, &bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.Volume, &adjClose); err != nil {
			return nil, fmt.Errorf("failed to scan bar: %w", err)
		}
		date, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			return nil, fmt.Errorf("bad date in daily_charts: %w", err)
		}
		bar.Date = date
		if adjClose.Valid {
			bar.AdjClose = adjClose.Float64
		}
		bars = append(bars, bar)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bars: %w", err)
	}
	return bars, nil
}

// CountBars returns the number of stored bars for a ticker.
func (r *PriceRepository) CountBars(ticker string) (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM daily_charts WHERE ticker = ?`,
		normalizeTicker(ticker)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count bars for %s: %w", ticker, err)
	}
	return count, nil
}

// TickersUnderBarCount returns active tickers with fewer than minBars bars,
// least data first then ticker ascending. This is the backfill selection
// rule, so the order must be deterministic.
func (r *PriceRepository) TickersUnderBarCount(minBars int) ([]string, error) {
	rows, err := r.db.Query(`
		SELECT s.ticker, COUNT(d.date) AS bars
		FROM stocks s
		LEFT JOIN daily_charts d ON d.ticker = s.ticker
		WHERE s.active = 1
		GROUP BY s.ticker
		HAVING bars < ?
		ORDER BY bars ASC, s.ticker ASC`, minBars)
	if err != nil {
		return nil, fmt.Errorf("failed to query backfill candidates: %w", err)
	}
	defer rows.Close()

	var tickers []string
	for rows.Next() {
		var ticker string
		var bars int
		if err := rows.Scan(&ticker, &bars); err != nil {
			return nil, fmt.Errorf("failed to scan backfill candidate: %w", err)
		}
		tickers = append(tickers, ticker)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating backfill candidates: %w", err)
	}
	return tickers, nil
}

// Oscillators returns the stored (unscaled) bounded oscillator values for a
// row. Used by tests to verify the scaling transform round-trips.
func (r *PriceRepository) Oscillators(ticker string, date time.Time) (rsi, adx, cci *float64, err error) {
	var rsiRaw, adxRaw, cciRaw sql.NullInt64
	err = r.db.QueryRow(`
		SELECT rsi_14, adx_14, cci_20 FROM daily_charts
		WHERE ticker = ? AND date = ?`,
		normalizeTicker(ticker), date.Format("2006-01-02")).Scan(&rsiRaw, &adxRaw, &cciRaw)
	if err == sql.ErrNoRows {
		return nil, nil, nil, nil
	}
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to query oscillators: %w", err)
	}
	return unscaled100(rsiRaw), unscaled100(adxRaw), unscaled100(cciRaw), nil
}

func nullableAdjClose(bar domain.Bar) interface{} {
	if bar.AdjClose == 0 {
		return nil
	}
	return bar.AdjClose
}
