package domain

import "time"

// Instrument is a tracked equity in the universe.
// Created by seeding; retired only by the delisting reaper.
type Instrument struct {
	Ticker     string `json:"ticker"`
	Name       string `json:"name"`
	Sector     string `json:"sector,omitempty"`
	AssetClass string `json:"asset_class,omitempty"` // EQUITY, ETF, UNKNOWN
	Active     bool   `json:"active"`
	AddedAt    string `json:"added_at,omitempty"` // ISO date
}

// Bar is a single OHLCV price point.
type Bar struct {
	Date     time.Time `json:"date"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   int64     `json:"volume"`
	AdjClose float64   `json:"adj_close,omitempty"`
}

// IndicatorSet holds the computed technical indicators for one (ticker, date).
// Every field is nullable: nil means "insufficient data", never zero.
type IndicatorSet struct {
	EMA20  *float64 `json:"ema_20,omitempty"`
	EMA50  *float64 `json:"ema_50,omitempty"`
	EMA100 *float64 `json:"ema_100,omitempty"`
	EMA200 *float64 `json:"ema_200,omitempty"`

	RSI14      *float64 `json:"rsi_14,omitempty"`
	MACD       *float64 `json:"macd,omitempty"`
	MACDSignal *float64 `json:"macd_signal,omitempty"`
	MACDHist   *float64 `json:"macd_hist,omitempty"`

	BollingerUpper  *float64 `json:"bollinger_upper,omitempty"`
	BollingerMiddle *float64 `json:"bollinger_middle,omitempty"`
	BollingerLower  *float64 `json:"bollinger_lower,omitempty"`
	BollingerPctB   *float64 `json:"bollinger_pct_b,omitempty"` // literal position, may exceed [0,1]

	ATR14  *float64 `json:"atr_14,omitempty"`
	ADX14  *float64 `json:"adx_14,omitempty"`
	CCI20  *float64 `json:"cci_20,omitempty"`
	StochK *float64 `json:"stoch_k,omitempty"`
	StochD *float64 `json:"stoch_d,omitempty"`

	VWAP *float64 `json:"vwap,omitempty"`
	OBV  *float64 `json:"obv,omitempty"`
	VPT  *float64 `json:"vpt,omitempty"`

	PivotPoint  *float64 `json:"pivot_point,omitempty"`
	Support1    *float64 `json:"support_1,omitempty"`
	Support2    *float64 `json:"support_2,omitempty"`
	Resistance1 *float64 `json:"resistance_1,omitempty"`
	Resistance2 *float64 `json:"resistance_2,omitempty"`

	SwingHigh5  *float64 `json:"swing_high_5,omitempty"`
	SwingLow5   *float64 `json:"swing_low_5,omitempty"`
	SwingHigh10 *float64 `json:"swing_high_10,omitempty"`
	SwingLow10  *float64 `json:"swing_low_10,omitempty"`
	SwingHigh20 *float64 `json:"swing_high_20,omitempty"`
	SwingLow20  *float64 `json:"swing_low_20,omitempty"`
	High52Week  *float64 `json:"high_52_week,omitempty"`
	Low52Week   *float64 `json:"low_52_week,omitempty"`
}

// Field names a fundamental snapshot column. Used as the key of the
// provenance map so that every populated value carries its source.
type Field string

const (
	FieldRevenue            Field = "revenue"
	FieldNetIncome          Field = "net_income"
	FieldTotalAssets        Field = "total_assets"
	FieldTotalDebt          Field = "total_debt"
	FieldTotalEquity        Field = "total_equity"
	FieldCurrentAssets      Field = "current_assets"
	FieldCurrentLiabilities Field = "current_liabilities"
	FieldCostOfGoodsSold    Field = "cost_of_goods_sold"
	FieldOperatingIncome    Field = "operating_income"
	FieldEBITDA             Field = "ebitda"
	FieldFreeCashFlow       Field = "free_cash_flow"
	FieldSharesOutstanding  Field = "shares_outstanding"
	FieldMarketCap          Field = "market_cap"
	FieldEnterpriseValue    Field = "enterprise_value"
	FieldEPSDiluted         Field = "eps_diluted"
	FieldBookValuePerShare  Field = "book_value_per_share"
)

// RequiredFundamentalFields is the set a snapshot must populate before the
// failover router stops querying further providers.
var RequiredFundamentalFields = []Field{
	FieldRevenue,
	FieldNetIncome,
	FieldTotalAssets,
	FieldTotalDebt,
	FieldTotalEquity,
	FieldSharesOutstanding,
	FieldMarketCap,
	FieldEPSDiluted,
}

// AllFundamentalFields lists every snapshot column in a stable order.
var AllFundamentalFields = []Field{
	FieldRevenue, FieldNetIncome, FieldTotalAssets, FieldTotalDebt,
	FieldTotalEquity, FieldCurrentAssets, FieldCurrentLiabilities,
	FieldCostOfGoodsSold, FieldOperatingIncome, FieldEBITDA,
	FieldFreeCashFlow, FieldSharesOutstanding, FieldMarketCap,
	FieldEnterpriseValue, FieldEPSDiluted, FieldBookValuePerShare,
}

// Provenance records where a fundamental field value came from and how much
// it is trusted (per-provider base confidence attenuated by staleness).
type Provenance struct {
	Source     string  `json:"source"`
	Confidence float64 `json:"confidence"` // 0..1
}

// FundamentalSnapshot is one fiscal-period fundamentals row.
// Unique by (ticker, fiscal_period_end, source).
type FundamentalSnapshot struct {
	Ticker          string    `json:"ticker"`
	FiscalPeriodEnd time.Time `json:"fiscal_period_end"`
	Source          string    `json:"source"` // primary source tag for the row

	Revenue            *float64 `json:"revenue,omitempty"`
	NetIncome          *float64 `json:"net_income,omitempty"`
	TotalAssets        *float64 `json:"total_assets,omitempty"`
	TotalDebt          *float64 `json:"total_debt,omitempty"`
	TotalEquity        *float64 `json:"total_equity,omitempty"`
	CurrentAssets      *float64 `json:"current_assets,omitempty"`
	CurrentLiabilities *float64 `json:"current_liabilities,omitempty"`
	CostOfGoodsSold    *float64 `json:"cost_of_goods_sold,omitempty"`
	OperatingIncome    *float64 `json:"operating_income,omitempty"`
	EBITDA             *float64 `json:"ebitda,omitempty"`
	FreeCashFlow       *float64 `json:"free_cash_flow,omitempty"`
	SharesOutstanding  *float64 `json:"shares_outstanding,omitempty"`
	MarketCap          *float64 `json:"market_cap,omitempty"`
	EnterpriseValue    *float64 `json:"enterprise_value,omitempty"`
	EPSDiluted         *float64 `json:"eps_diluted,omitempty"`
	BookValuePerShare  *float64 `json:"book_value_per_share,omitempty"`

	Provenance map[Field]Provenance `json:"provenance,omitempty"`
}

// Get returns the snapshot value for a named field.
func (s *FundamentalSnapshot) Get(f Field) *float64 {
	switch f {
	case FieldRevenue:
		return s.Revenue
	case FieldNetIncome:
		return s.NetIncome
	case FieldTotalAssets:
		return s.TotalAssets
	case FieldTotalDebt:
		return s.TotalDebt
	case FieldTotalEquity:
		return s.TotalEquity
	case FieldCurrentAssets:
		return s.CurrentAssets
	case FieldCurrentLiabilities:
		return s.CurrentLiabilities
	case FieldCostOfGoodsSold:
		return s.CostOfGoodsSold
	case FieldOperatingIncome:
		return s.OperatingIncome
	case FieldEBITDA:
		return s.EBITDA
	case FieldFreeCashFlow:
		return s.FreeCashFlow
	case FieldSharesOutstanding:
		return s.SharesOutstanding
	case FieldMarketCap:
		return s.MarketCap
	case FieldEnterpriseValue:
		return s.EnterpriseValue
	case FieldEPSDiluted:
		return s.EPSDiluted
	case FieldBookValuePerShare:
		return s.BookValuePerShare
	}
	return nil
}

// Set stores a value for a named field along with its provenance.
func (s *FundamentalSnapshot) Set(f Field, v float64, p Provenance) {
	val := v
	switch f {
	case FieldRevenue:
		s.Revenue = &val
	case FieldNetIncome:
		s.NetIncome = &val
	case FieldTotalAssets:
		s.TotalAssets = &val
	case FieldTotalDebt:
		s.TotalDebt = &val
	case FieldTotalEquity:
		s.TotalEquity = &val
	case FieldCurrentAssets:
		s.CurrentAssets = &val
	case FieldCurrentLiabilities:
		s.CurrentLiabilities = &val
	case FieldCostOfGoodsSold:
		s.CostOfGoodsSold = &val
	case FieldOperatingIncome:
		s.OperatingIncome = &val
	case FieldEBITDA:
		s.EBITDA = &val
	case FieldFreeCashFlow:
		s.FreeCashFlow = &val
	case FieldSharesOutstanding:
		s.SharesOutstanding = &val
	case FieldMarketCap:
		s.MarketCap = &val
	case FieldEnterpriseValue:
		s.EnterpriseValue = &val
	case FieldEPSDiluted:
		s.EPSDiluted = &val
	case FieldBookValuePerShare:
		s.BookValuePerShare = &val
	default:
		return
	}
	if s.Provenance == nil {
		s.Provenance = make(map[Field]Provenance)
	}
	s.Provenance[f] = p
}

// MissingRequired returns the required fields not yet populated.
func (s *FundamentalSnapshot) MissingRequired() []Field {
	var missing []Field
	for _, f := range RequiredFundamentalFields {
		if s.Get(f) == nil {
			missing = append(missing, f)
		}
	}
	return missing
}

// RatioRow holds the derived financial ratios for one (ticker, as_of_date).
// Every ratio is nullable: nil means "input missing or implausible".
type RatioRow struct {
	Ticker   string    `json:"ticker"`
	AsOfDate time.Time `json:"as_of_date"`

	// Valuation
	PE         *float64 `json:"pe,omitempty"`
	PB         *float64 `json:"pb,omitempty"`
	PS         *float64 `json:"ps,omitempty"`
	EVToEBITDA *float64 `json:"ev_to_ebitda,omitempty"`
	PEG        *float64 `json:"peg,omitempty"`
	GrahamNum  *float64 `json:"graham_number,omitempty"`

	// Profitability
	ROE             *float64 `json:"roe,omitempty"`
	ROA             *float64 `json:"roa,omitempty"`
	ROIC            *float64 `json:"roic,omitempty"`
	GrossMargin     *float64 `json:"gross_margin,omitempty"`
	OperatingMargin *float64 `json:"operating_margin,omitempty"`
	NetMargin       *float64 `json:"net_margin,omitempty"`

	// Health
	DebtToEquity     *float64 `json:"debt_to_equity,omitempty"`
	CurrentRatio     *float64 `json:"current_ratio,omitempty"`
	QuickRatio       *float64 `json:"quick_ratio,omitempty"`
	InterestCoverage *float64 `json:"interest_coverage,omitempty"`
	AltmanZ          *float64 `json:"altman_z,omitempty"`

	// Efficiency
	AssetTurnover       *float64 `json:"asset_turnover,omitempty"`
	InventoryTurnover   *float64 `json:"inventory_turnover,omitempty"`
	ReceivablesTurnover *float64 `json:"receivables_turnover,omitempty"`

	// Growth (YoY, requires prior-period snapshot)
	RevenueGrowthYoY  *float64 `json:"revenue_growth_yoy,omitempty"`
	EarningsGrowthYoY *float64 `json:"earnings_growth_yoy,omitempty"`
	FCFGrowthYoY      *float64 `json:"fcf_growth_yoy,omitempty"`

	// Quality
	FCFToNetIncome      *float64 `json:"fcf_to_net_income,omitempty"`
	CashConversionCycle *float64 `json:"cash_conversion_cycle,omitempty"`

	// Market
	MarketCap       *float64 `json:"market_cap,omitempty"`
	EnterpriseValue *float64 `json:"enterprise_value,omitempty"`
}

// AnalystConsensus holds analyst rating counts for one (ticker, as_of_date).
type AnalystConsensus struct {
	Ticker   string    `json:"ticker"`
	AsOfDate time.Time `json:"as_of_date"`

	StrongBuy  int `json:"strong_buy"`
	Buy        int `json:"buy"`
	Hold       int `json:"hold"`
	Sell       int `json:"sell"`
	StrongSell int `json:"strong_sell"`

	ConsensusScore    float64  `json:"consensus_score"` // 0..1, 1 = unanimous strong buy
	MeanTargetPrice   *float64 `json:"mean_target_price,omitempty"`
	MedianTargetPrice *float64 `json:"median_target_price,omitempty"`
	Source            string   `json:"source"`
}

// Total returns the number of analysts counted.
func (a *AnalystConsensus) Total() int {
	return a.StrongBuy + a.Buy + a.Hold + a.Sell + a.StrongSell
}

// Grade is a five-level categorical label derived from a 0-100 score.
type Grade string

const (
	GradeStrongSell Grade = "Strong Sell"
	GradeSell       Grade = "Sell"
	GradeNeutral    Grade = "Neutral"
	GradeBuy        Grade = "Buy"
	GradeStrongBuy  Grade = "Strong Buy"
)

// GradeFor maps a 0-100 score to its grade bucket.
func GradeFor(score float64) Grade {
	switch {
	case score < 20:
		return GradeStrongSell
	case score < 40:
		return GradeSell
	case score < 60:
		return GradeNeutral
	case score < 80:
		return GradeBuy
	default:
		return GradeStrongBuy
	}
}

// ScoreRow holds component and composite scores for one (ticker, as_of_date).
// Components are all on a 0-100 scale.
type ScoreRow struct {
	Ticker   string    `json:"ticker"`
	AsOfDate time.Time `json:"as_of_date"`

	FundamentalHealth float64 `json:"fundamental_health"`
	ValueInvestment   float64 `json:"value_investment"`
	TechnicalHealth   float64 `json:"technical_health"`
	TradingSignal     float64 `json:"trading_signal"`
	Risk              float64 `json:"risk"`
	VWAPSupportResist float64 `json:"vwap_sr"`

	Composite float64 `json:"composite"`
	Grade     Grade   `json:"grade"`

	DataConfidence  float64  `json:"data_confidence"` // populated / required inputs
	LowConfidence   bool     `json:"low_confidence"`
	MissingFields   []string `json:"missing_fields,omitempty"`
	EstimatedFields []string `json:"estimated_fields,omitempty"`
	Version         string   `json:"version"`
}

// EarningsEvent is an entry in the earnings calendar.
// Unique by (ticker, event_date).
type EarningsEvent struct {
	Ticker    string    `json:"ticker"`
	EventDate time.Time `json:"event_date"`
	Reported  bool      `json:"reported"`
	Source    string    `json:"source"`
}
