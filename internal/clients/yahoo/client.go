// Package yahoo implements the provider adapter for Yahoo Finance. Yahoo
// needs no API key; the credential handed in by the pool is accepted and
// ignored so the pool can still meter call volume per pseudo-key.
package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/marketpipe/internal/clients"
	"github.com/aristath/marketpipe/internal/domain"
)

const (
	quoteURL   = "https://query1.finance.yahoo.com/v7/finance/quote"
	chartURL   = "https://query1.finance.yahoo.com/v8/finance/chart/"
	summaryURL = "https://query1.finance.yahoo.com/v10/finance/quoteSummary/"
)

// Client is the Yahoo Finance adapter.
type Client struct {
	client *http.Client
	log    zerolog.Logger
}

// NewClient creates a new Yahoo Finance client.
func NewClient(log zerolog.Logger) *Client {
	return &Client{
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: log.With().Str("client", "yahoo").Logger(),
	}
}

// Name implements clients.Adapter.
func (c *Client) Name() string { return "yahoo" }

// Capabilities implements clients.Adapter. Yahoo has no earnings-calendar
// endpoint worth using; finnhub covers that.
func (c *Client) Capabilities() []clients.Capability {
	return []clients.Capability{
		clients.CapPriceQuote,
		clients.CapPriceHistory,
		clients.CapFundamentals,
		clients.CapAnalystRatings,
		clients.CapExistenceProbe,
	}
}

type quoteResponse struct {
	QuoteResponse struct {
		Result []map[string]interface{} `json:"result"`
		Error  interface{}              `json:"error"`
	} `json:"quoteResponse"`
}

// GetQuote fetches the current price via the v7 quote API.
func (c *Client) GetQuote(ctx context.Context, _ string, ticker string) (*clients.Quote, clients.Outcome, error) {
	info, outcome, err := c.getQuoteInfo(ctx, ticker)
	if outcome != clients.OutcomeOK {
		return nil, outcome, err
	}

	price := getFloat64(info, "regularMarketPrice")
	if price == nil {
		return nil, clients.OutcomeNotFound, nil
	}

	return &clients.Quote{
		Ticker:        ticker,
		Price:         *price,
		PreviousClose: getFloat64(info, "regularMarketPreviousClose"),
		Currency:      getString(info, "currency", "USD"),
		AsOf:          time.Now().UTC(),
	}, clients.OutcomeOK, nil
}

// GetHistory fetches daily bars via the v8 chart API, bounded by unix
// period1/period2 timestamps.
func (c *Client) GetHistory(ctx context.Context, _ string, req clients.HistoryRequest) ([]domain.Bar, clients.Outcome, error) {
	params := url.Values{}
	params.Add("interval", "1d")
	params.Add("period1", strconv.FormatInt(req.From.Unix(), 10))
	params.Add("period2", strconv.FormatInt(req.To.Unix(), 10))

	reqURL := chartURL + url.QueryEscape(req.Ticker) + "?" + params.Encode()

	body, outcome, err := c.get(ctx, reqURL)
	if outcome != clients.OutcomeOK {
		return nil, outcome, err
	}

	var result struct {
		Chart struct {
			Result []struct {
				Timestamp  []int64 `json:"timestamp"`
				Indicators struct {
					Quote []struct {
						Open   []*float64 `json:"open"`
						High   []*float64 `json:"high"`
						Low    []*float64 `json:"low"`
						Close  []*float64 `json:"close"`
						Volume []*int64   `json:"volume"`
					} `json:"quote"`
					AdjClose []struct {
						AdjClose []*float64 `json:"adjclose"`
					} `json:"adjclose"`
				} `json:"indicators"`
			} `json:"result"`
			Error interface{} `json:"error"`
		} `json:"chart"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, clients.OutcomeTransient, fmt.Errorf("failed to parse chart response: %w", err)
	}
	if result.Chart.Error != nil {
		return nil, clients.OutcomeNotFound, nil
	}
	if len(result.Chart.Result) == 0 || len(result.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, clients.OutcomeNotFound, nil
	}

	chart := result.Chart.Result[0]
	quote := chart.Indicators.Quote[0]

	var adjClose []*float64
	if len(chart.Indicators.AdjClose) > 0 {
		adjClose = chart.Indicators.AdjClose[0].AdjClose
	}

	var bars []domain.Bar
	for i, ts := range chart.Timestamp {
		if i >= len(quote.Open) || i >= len(quote.High) || i >= len(quote.Low) || i >= len(quote.Close) {
			continue
		}
		// Yahoo nulls out partial days; skip them entirely.
		if quote.Open[i] == nil || quote.High[i] == nil || quote.Low[i] == nil || quote.Close[i] == nil {
			continue
		}
		bar := domain.Bar{
			Date:  time.Unix(ts, 0).UTC().Truncate(24 * time.Hour),
			Open:  *quote.Open[i],
			High:  *quote.High[i],
			Low:   *quote.Low[i],
			Close: *quote.Close[i],
		}
		if i < len(quote.Volume) && quote.Volume[i] != nil {
			bar.Volume = *quote.Volume[i]
		}
		if i < len(adjClose) && adjClose[i] != nil {
			bar.AdjClose = *adjClose[i]
		}
		bars = append(bars, bar)
	}

	return bars, clients.OutcomeOK, nil
}

// summaryFields maps canonical field names to their quoteSummary location.
var summaryFields = map[domain.Field][2]string{
	domain.FieldRevenue:            {"incomeStatement", "totalRevenue"},
	domain.FieldNetIncome:          {"incomeStatement", "netIncome"},
	domain.FieldCostOfGoodsSold:    {"incomeStatement", "costOfRevenue"},
	domain.FieldOperatingIncome:    {"incomeStatement", "operatingIncome"},
	domain.FieldTotalAssets:        {"balanceSheet", "totalAssets"},
	domain.FieldTotalEquity:        {"balanceSheet", "totalStockholderEquity"},
	domain.FieldCurrentAssets:      {"balanceSheet", "totalCurrentAssets"},
	domain.FieldCurrentLiabilities: {"balanceSheet", "totalCurrentLiabilities"},
	domain.FieldEBITDA:             {"financialData", "ebitda"},
	domain.FieldFreeCashFlow:       {"financialData", "freeCashflow"},
	domain.FieldSharesOutstanding:  {"keyStatistics", "sharesOutstanding"},
	domain.FieldEPSDiluted:         {"keyStatistics", "trailingEps"},
	domain.FieldBookValuePerShare:  {"keyStatistics", "bookValue"},
	domain.FieldEnterpriseValue:    {"keyStatistics", "enterpriseValue"},
	domain.FieldMarketCap:          {"price", "marketCap"},
}

// GetFundamentals fetches the latest fiscal-period statement values via the
// quoteSummary API. Yahoo publishes annual statements; total_debt is derived
// from short plus long term debt on the balance sheet.
func (c *Client) GetFundamentals(ctx context.Context, _ string, req clients.FundamentalsRequest) (*clients.FundamentalsPayload, clients.Outcome, error) {
	params := url.Values{}
	params.Add("modules", "incomeStatementHistory,balanceSheetHistory,defaultKeyStatistics,financialData,price")

	reqURL := summaryURL + url.QueryEscape(req.Ticker) + "?" + params.Encode()

	body, outcome, err := c.get(ctx, reqURL)
	if outcome != clients.OutcomeOK {
		return nil, outcome, err
	}

	var result struct {
		QuoteSummary struct {
			Result []map[string]json.RawMessage `json:"result"`
			Error  interface{}                  `json:"error"`
		} `json:"quoteSummary"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, clients.OutcomeTransient, fmt.Errorf("failed to parse quoteSummary response: %w", err)
	}
	if result.QuoteSummary.Error != nil || len(result.QuoteSummary.Result) == 0 {
		return nil, clients.OutcomeNotFound, nil
	}

	modules := result.QuoteSummary.Result[0]

	income, periodEnd := latestStatement(modules["incomeStatementHistory"], "incomeStatementHistory")
	balance, balanceEnd := latestStatement(modules["balanceSheetHistory"], "balanceSheetStatements")
	if periodEnd.IsZero() {
		periodEnd = balanceEnd
	}

	sources := map[string]map[string]interface{}{
		"incomeStatement": income,
		"balanceSheet":    balance,
		"keyStatistics":   flatModule(modules["defaultKeyStatistics"]),
		"financialData":   flatModule(modules["financialData"]),
		"price":           flatModule(modules["price"]),
	}

	fields := req.Fields
	if len(fields) == 0 {
		fields = domain.AllFundamentalFields
	}

	payload := &clients.FundamentalsPayload{
		Ticker:          req.Ticker,
		FiscalPeriodEnd: periodEnd,
		Values:          make(map[domain.Field]float64),
	}
	for _, field := range fields {
		if field == domain.FieldTotalDebt {
			if debt := sumDebt(sources["balanceSheet"]); debt != nil {
				payload.Values[field] = *debt
			}
			continue
		}
		loc, ok := summaryFields[field]
		if !ok {
			continue
		}
		if v := rawFloat(sources[loc[0]], loc[1]); v != nil {
			payload.Values[field] = *v
		}
	}

	if len(payload.Values) == 0 {
		return nil, clients.OutcomeNotFound, nil
	}
	return payload, clients.OutcomeOK, nil
}

// GetEarnings implements clients.Adapter; Yahoo does not declare the
// capability, so the router never routes calendar fetches here.
func (c *Client) GetEarnings(_ context.Context, _ string, _ clients.EarningsRequest) ([]domain.EarningsEvent, clients.Outcome, error) {
	return nil, clients.OutcomeTransient, fmt.Errorf("yahoo: earnings calendar not supported")
}

// GetAnalystRatings fetches the recommendation distribution via
// quoteSummary's recommendationTrend module.
func (c *Client) GetAnalystRatings(ctx context.Context, _ string, ticker string) (*domain.AnalystConsensus, clients.Outcome, error) {
	params := url.Values{}
	params.Add("modules", "recommendationTrend,financialData")

	reqURL := summaryURL + url.QueryEscape(ticker) + "?" + params.Encode()

	body, outcome, err := c.get(ctx, reqURL)
	if outcome != clients.OutcomeOK {
		return nil, outcome, err
	}

	var result struct {
		QuoteSummary struct {
			Result []struct {
				RecommendationTrend struct {
					Trend []struct {
						Period     string `json:"period"`
						StrongBuy  int    `json:"strongBuy"`
						Buy        int    `json:"buy"`
						Hold       int    `json:"hold"`
						Sell       int    `json:"sell"`
						StrongSell int    `json:"strongSell"`
					} `json:"trend"`
				} `json:"recommendationTrend"`
				FinancialData map[string]interface{} `json:"financialData"`
			} `json:"result"`
			Error interface{} `json:"error"`
		} `json:"quoteSummary"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, clients.OutcomeTransient, fmt.Errorf("failed to parse recommendation response: %w", err)
	}
	if result.QuoteSummary.Error != nil || len(result.QuoteSummary.Result) == 0 {
		return nil, clients.OutcomeNotFound, nil
	}

	r := result.QuoteSummary.Result[0]
	if len(r.RecommendationTrend.Trend) == 0 {
		return nil, clients.OutcomeNotFound, nil
	}

	// Period "0m" is the current month.
	current := r.RecommendationTrend.Trend[0]
	for _, t := range r.RecommendationTrend.Trend {
		if t.Period == "0m" {
			current = t
			break
		}
	}

	return &domain.AnalystConsensus{
		Ticker:            ticker,
		AsOfDate:          time.Now().UTC(),
		StrongBuy:         current.StrongBuy,
		Buy:               current.Buy,
		Hold:              current.Hold,
		Sell:              current.Sell,
		StrongSell:        current.StrongSell,
		MeanTargetPrice:   rawFloat(r.FinancialData, "targetMeanPrice"),
		MedianTargetPrice: rawFloat(r.FinancialData, "targetMedianPrice"),
		Source:            "yahoo",
	}, clients.OutcomeOK, nil
}

// ProbeExistence checks the quote API for the ticker. An empty result set on
// a 200 means Yahoo no longer knows the symbol.
func (c *Client) ProbeExistence(ctx context.Context, _ string, ticker string) (clients.Outcome, error) {
	info, outcome, err := c.getQuoteInfo(ctx, ticker)
	if outcome != clients.OutcomeOK {
		return outcome, err
	}
	if getFloat64(info, "regularMarketPrice") == nil && getString(info, "quoteType", "") == "" {
		return clients.OutcomeNotFound, nil
	}
	return clients.OutcomeOK, nil
}

func (c *Client) getQuoteInfo(ctx context.Context, symbol string) (map[string]interface{}, clients.Outcome, error) {
	params := url.Values{}
	params.Add("symbols", symbol)
	params.Add("fields", "symbol,regularMarketPrice,regularMarketPreviousClose,currency,quoteType,longName,shortName")

	body, outcome, err := c.get(ctx, quoteURL+"?"+params.Encode())
	if outcome != clients.OutcomeOK {
		return nil, outcome, err
	}

	var result quoteResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, clients.OutcomeTransient, fmt.Errorf("failed to parse quote response: %w", err)
	}
	if result.QuoteResponse.Error != nil {
		return nil, clients.OutcomeTransient, fmt.Errorf("quote API error: %v", result.QuoteResponse.Error)
	}
	if len(result.QuoteResponse.Result) == 0 {
		return nil, clients.OutcomeNotFound, nil
	}
	return result.QuoteResponse.Result[0], clients.OutcomeOK, nil
}

func (c *Client) get(ctx context.Context, reqURL string) ([]byte, clients.Outcome, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, clients.OutcomeTransient, fmt.Errorf("failed to create request: %w", err)
	}

	// Set headers to mimic browser
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, clients.OutcomeTransient, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if outcome := clients.ClassifyStatus(resp.StatusCode); outcome != clients.OutcomeOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, outcome, fmt.Errorf("Yahoo Finance API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, clients.OutcomeTransient, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, clients.OutcomeOK, nil
}

// latestStatement extracts the newest statement map and its period end date
// from a quoteSummary history module.
func latestStatement(raw json.RawMessage, listKey string) (map[string]interface{}, time.Time) {
	if raw == nil {
		return nil, time.Time{}
	}
	var module map[string][]map[string]interface{}
	if err := json.Unmarshal(raw, &module); err != nil {
		return nil, time.Time{}
	}
	statements := module[listKey]
	if len(statements) == 0 {
		return nil, time.Time{}
	}
	latest := statements[0]

	var end time.Time
	if v := rawFloat(latest, "endDate"); v != nil {
		end = time.Unix(int64(*v), 0).UTC()
	}
	return latest, end
}

// flatModule decodes a non-history quoteSummary module into a plain map.
func flatModule(raw json.RawMessage) map[string]interface{} {
	if raw == nil {
		return nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return m
}

// sumDebt adds short and long term debt from a balance sheet statement,
// returning nil when neither is present.
func sumDebt(balance map[string]interface{}) *float64 {
	short := rawFloat(balance, "shortLongTermDebt")
	long := rawFloat(balance, "longTermDebt")
	if short == nil && long == nil {
		return nil
	}
	total := 0.0
	if short != nil {
		total += *short
	}
	if long != nil {
		total += *long
	}
	return &total
}

// Helper functions to safely extract values from quoteSummary maps, where
// numbers arrive either bare or wrapped as {"raw": n, "fmt": "..."}.

func rawFloat(m map[string]interface{}, key string) *float64 {
	if m == nil {
		return nil
	}
	val, ok := m[key]
	if !ok || val == nil {
		return nil
	}
	switch v := val.(type) {
	case float64:
		return &v
	case map[string]interface{}:
		if raw, ok := v["raw"].(float64); ok {
			return &raw
		}
	}
	return nil
}

func getFloat64(m map[string]interface{}, key string) *float64 {
	if m == nil {
		return nil
	}
	if v, ok := m[key].(float64); ok {
		return &v
	}
	return nil
}

func getString(m map[string]interface{}, key string, defaultVal string) string {
	if m == nil {
		return defaultVal
	}
	if v, ok := m[key].(string); ok && v != "" {
		return v
	}
	return defaultVal
}
