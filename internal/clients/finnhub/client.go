// Package finnhub implements the provider adapter for Finnhub. Finnhub
// reports market cap and shares outstanding in millions; values are
// normalized to absolute units before they leave this package.
package finnhub

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/marketpipe/internal/clients"
	"github.com/aristath/marketpipe/internal/domain"
)

const baseURL = "https://finnhub.io/api/v1"

const million = 1e6

// Client is the Finnhub adapter.
type Client struct {
	client *http.Client
	log    zerolog.Logger
}

// NewClient creates a new Finnhub client.
func NewClient(log zerolog.Logger) *Client {
	return &Client{
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: log.With().Str("client", "finnhub").Logger(),
	}
}

// Name implements clients.Adapter.
func (c *Client) Name() string { return "finnhub" }

// Capabilities implements clients.Adapter. Candle history needs a paid plan,
// so price history stays with yahoo and alphavantage.
func (c *Client) Capabilities() []clients.Capability {
	return []clients.Capability{
		clients.CapPriceQuote,
		clients.CapFundamentals,
		clients.CapEarningsCalendar,
		clients.CapAnalystRatings,
		clients.CapExistenceProbe,
	}
}

// GetQuote fetches the current price. Finnhub answers 200 with all-zero
// fields for unknown tickers.
func (c *Client) GetQuote(ctx context.Context, key string, ticker string) (*clients.Quote, clients.Outcome, error) {
	body, outcome, err := c.get(ctx, key, "/quote", url.Values{"symbol": {ticker}})
	if outcome != clients.OutcomeOK {
		return nil, outcome, err
	}

	var q struct {
		Current   float64 `json:"c"`
		PrevClose float64 `json:"pc"`
		Timestamp int64   `json:"t"`
	}
	if err := json.Unmarshal(body, &q); err != nil {
		return nil, clients.OutcomeTransient, fmt.Errorf("failed to parse quote: %w", err)
	}
	if q.Current == 0 && q.PrevClose == 0 && q.Timestamp == 0 {
		return nil, clients.OutcomeNotFound, nil
	}

	quote := &clients.Quote{
		Ticker:   ticker,
		Price:    q.Current,
		Currency: "USD",
		AsOf:     time.Unix(q.Timestamp, 0).UTC(),
	}
	if q.PrevClose != 0 {
		prev := q.PrevClose
		quote.PreviousClose = &prev
	}
	return quote, clients.OutcomeOK, nil
}

// GetHistory implements clients.Adapter; not declared as a capability.
func (c *Client) GetHistory(_ context.Context, _ string, _ clients.HistoryRequest) ([]domain.Bar, clients.Outcome, error) {
	return nil, clients.OutcomeTransient, fmt.Errorf("finnhub: candle history not supported")
}

// metricFields maps canonical field names to basic-financials metric keys.
// Finnhub's free metrics are per-share or TTM aggregates, so statement-level
// fields are reconstructed where shares outstanding is known.
var metricFields = map[domain.Field]string{
	domain.FieldEBITDA:            "ebitdTTM",
	domain.FieldEPSDiluted:        "epsTTM",
	domain.FieldBookValuePerShare: "bookValuePerShareAnnual",
	domain.FieldEnterpriseValue:   "enterpriseValue",
}

// GetFundamentals combines /stock/profile2 (market cap, shares) with
// /stock/metric (TTM aggregates) in one logical fetch.
func (c *Client) GetFundamentals(ctx context.Context, key string, req clients.FundamentalsRequest) (*clients.FundamentalsPayload, clients.Outcome, error) {
	profileBody, outcome, err := c.get(ctx, key, "/stock/profile2", url.Values{"symbol": {req.Ticker}})
	if outcome != clients.OutcomeOK {
		return nil, outcome, err
	}

	var profile struct {
		Name             string  `json:"name"`
		MarketCap        float64 `json:"marketCapitalization"`
		ShareOutstanding float64 `json:"shareOutstanding"`
	}
	if err := json.Unmarshal(profileBody, &profile); err != nil {
		return nil, clients.OutcomeTransient, fmt.Errorf("failed to parse profile: %w", err)
	}
	if profile.Name == "" {
		return nil, clients.OutcomeNotFound, nil
	}

	metricBody, outcome, err := c.get(ctx, key, "/stock/metric", url.Values{
		"symbol": {req.Ticker},
		"metric": {"all"},
	})
	if outcome != clients.OutcomeOK {
		return nil, outcome, err
	}

	var metrics struct {
		Metric map[string]interface{} `json:"metric"`
	}
	if err := json.Unmarshal(metricBody, &metrics); err != nil {
		return nil, clients.OutcomeTransient, fmt.Errorf("failed to parse metrics: %w", err)
	}

	fields := req.Fields
	if len(fields) == 0 {
		fields = domain.AllFundamentalFields
	}

	payload := &clients.FundamentalsPayload{
		Ticker:          req.Ticker,
		FiscalPeriodEnd: time.Now().UTC().Truncate(24 * time.Hour),
		Values:          make(map[domain.Field]float64),
	}

	shares := profile.ShareOutstanding * million

	for _, field := range fields {
		switch field {
		case domain.FieldMarketCap:
			if profile.MarketCap > 0 {
				payload.Values[field] = profile.MarketCap * million
			}
		case domain.FieldSharesOutstanding:
			if shares > 0 {
				payload.Values[field] = shares
			}
		case domain.FieldRevenue:
			// revenuePerShareTTM times shares reconstructs total revenue.
			if rps := metricFloat(metrics.Metric, "revenuePerShareTTM"); rps != nil && shares > 0 {
				payload.Values[field] = *rps * shares
			}
		case domain.FieldNetIncome:
			if eps := metricFloat(metrics.Metric, "epsTTM"); eps != nil && shares > 0 {
				payload.Values[field] = *eps * shares
			}
		default:
			metricKey, ok := metricFields[field]
			if !ok {
				continue
			}
			if v := metricFloat(metrics.Metric, metricKey); v != nil {
				payload.Values[field] = *v
			}
		}
	}

	if len(payload.Values) == 0 {
		return nil, clients.OutcomeNotFound, nil
	}
	return payload, clients.OutcomeOK, nil
}

// GetEarnings fetches the earnings calendar for a date window.
func (c *Client) GetEarnings(ctx context.Context, key string, req clients.EarningsRequest) ([]domain.EarningsEvent, clients.Outcome, error) {
	body, outcome, err := c.get(ctx, key, "/calendar/earnings", url.Values{
		"from": {req.From.Format("2006-01-02")},
		"to":   {req.To.Format("2006-01-02")},
	})
	if outcome != clients.OutcomeOK {
		return nil, outcome, err
	}

	var result struct {
		EarningsCalendar []struct {
			Date   string `json:"date"`
			Symbol string `json:"symbol"`
		} `json:"earningsCalendar"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, clients.OutcomeTransient, fmt.Errorf("failed to parse earnings calendar: %w", err)
	}

	var events []domain.EarningsEvent
	for _, entry := range result.EarningsCalendar {
		date, err := time.Parse("2006-01-02", entry.Date)
		if err != nil {
			continue
		}
		events = append(events, domain.EarningsEvent{
			Ticker:    entry.Symbol,
			EventDate: date,
			Source:    "finnhub",
		})
	}
	return events, clients.OutcomeOK, nil
}

// GetAnalystRatings fetches the latest recommendation distribution.
func (c *Client) GetAnalystRatings(ctx context.Context, key string, ticker string) (*domain.AnalystConsensus, clients.Outcome, error) {
	body, outcome, err := c.get(ctx, key, "/stock/recommendation", url.Values{"symbol": {ticker}})
	if outcome != clients.OutcomeOK {
		return nil, outcome, err
	}

	var trends []struct {
		Period     string `json:"period"`
		StrongBuy  int    `json:"strongBuy"`
		Buy        int    `json:"buy"`
		Hold       int    `json:"hold"`
		Sell       int    `json:"sell"`
		StrongSell int    `json:"strongSell"`
	}
	if err := json.Unmarshal(body, &trends); err != nil {
		return nil, clients.OutcomeTransient, fmt.Errorf("failed to parse recommendations: %w", err)
	}
	if len(trends) == 0 {
		return nil, clients.OutcomeNotFound, nil
	}

	// Finnhub returns newest first.
	latest := trends[0]
	return &domain.AnalystConsensus{
		Ticker:     ticker,
		AsOfDate:   time.Now().UTC(),
		StrongBuy:  latest.StrongBuy,
		Buy:        latest.Buy,
		Hold:       latest.Hold,
		Sell:       latest.Sell,
		StrongSell: latest.StrongSell,
		Source:     "finnhub",
	}, clients.OutcomeOK, nil
}

// ProbeExistence checks /stock/profile2; an empty profile on a healthy
// response means the symbol is gone.
func (c *Client) ProbeExistence(ctx context.Context, key string, ticker string) (clients.Outcome, error) {
	body, outcome, err := c.get(ctx, key, "/stock/profile2", url.Values{"symbol": {ticker}})
	if outcome != clients.OutcomeOK {
		return outcome, err
	}

	var profile map[string]interface{}
	if err := json.Unmarshal(body, &profile); err != nil {
		return clients.OutcomeTransient, fmt.Errorf("failed to parse profile: %w", err)
	}
	if len(profile) == 0 {
		return clients.OutcomeNotFound, nil
	}
	return clients.OutcomeOK, nil
}

func (c *Client) get(ctx context.Context, key, path string, params url.Values) ([]byte, clients.Outcome, error) {
	params.Set("token", key)

	req, err := http.NewRequestWithContext(ctx, "GET", baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, clients.OutcomeTransient, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, clients.OutcomeTransient, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if outcome := clients.ClassifyStatus(resp.StatusCode); outcome != clients.OutcomeOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, outcome, fmt.Errorf("Finnhub returned status %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, clients.OutcomeTransient, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, clients.OutcomeOK, nil
}

func metricFloat(m map[string]interface{}, key string) *float64 {
	if m == nil {
		return nil
	}
	if v, ok := m[key].(float64); ok {
		return &v
	}
	return nil
}
