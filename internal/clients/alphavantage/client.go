// Package alphavantage implements the provider adapter for Alpha Vantage.
// Alpha Vantage answers almost everything with HTTP 200 and signals
// throttling or bad input inside the JSON body, so classification leans on
// body shape rather than status codes.
package alphavantage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/marketpipe/internal/clients"
	"github.com/aristath/marketpipe/internal/domain"
)

const baseURL = "https://www.alphavantage.co/query"

// Client is the Alpha Vantage adapter.
type Client struct {
	client *http.Client
	log    zerolog.Logger
}

// NewClient creates a new Alpha Vantage client.
func NewClient(log zerolog.Logger) *Client {
	return &Client{
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: log.With().Str("client", "alphavantage").Logger(),
	}
}

// Name implements clients.Adapter.
func (c *Client) Name() string { return "alphavantage" }

// Capabilities implements clients.Adapter. The earnings calendar endpoint
// returns CSV only and finnhub covers it, so it is not declared here.
func (c *Client) Capabilities() []clients.Capability {
	return []clients.Capability{
		clients.CapPriceQuote,
		clients.CapPriceHistory,
		clients.CapFundamentals,
		clients.CapExistenceProbe,
	}
}

// GetQuote fetches the current price via GLOBAL_QUOTE.
func (c *Client) GetQuote(ctx context.Context, key string, ticker string) (*clients.Quote, clients.Outcome, error) {
	body, outcome, err := c.get(ctx, key, url.Values{
		"function": {"GLOBAL_QUOTE"},
		"symbol":   {ticker},
	})
	if outcome != clients.OutcomeOK {
		return nil, outcome, err
	}

	var result struct {
		GlobalQuote map[string]string `json:"Global Quote"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, clients.OutcomeTransient, fmt.Errorf("failed to parse quote response: %w", err)
	}
	if len(result.GlobalQuote) == 0 {
		return nil, clients.OutcomeNotFound, nil
	}

	price, err := strconv.ParseFloat(result.GlobalQuote["05. price"], 64)
	if err != nil {
		return nil, clients.OutcomeNotFound, nil
	}

	quote := &clients.Quote{
		Ticker:   ticker,
		Price:    price,
		Currency: "USD",
		AsOf:     time.Now().UTC(),
	}
	if prev, err := strconv.ParseFloat(result.GlobalQuote["08. previous close"], 64); err == nil {
		quote.PreviousClose = &prev
	}
	return quote, clients.OutcomeOK, nil
}

// GetHistory fetches daily bars via TIME_SERIES_DAILY_ADJUSTED, oldest
// first, trimmed to the requested window.
func (c *Client) GetHistory(ctx context.Context, key string, req clients.HistoryRequest) ([]domain.Bar, clients.Outcome, error) {
	outputSize := "compact"
	if time.Since(req.From) > 100*24*time.Hour {
		outputSize = "full"
	}

	body, outcome, err := c.get(ctx, key, url.Values{
		"function":   {"TIME_SERIES_DAILY_ADJUSTED"},
		"symbol":     {req.Ticker},
		"outputsize": {outputSize},
	})
	if outcome != clients.OutcomeOK {
		return nil, outcome, err
	}

	var result struct {
		Series map[string]map[string]string `json:"Time Series (Daily)"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, clients.OutcomeTransient, fmt.Errorf("failed to parse daily series: %w", err)
	}
	if len(result.Series) == 0 {
		return nil, clients.OutcomeNotFound, nil
	}

	dates := make([]string, 0, len(result.Series))
	for d := range result.Series {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	var bars []domain.Bar
	for _, d := range dates {
		date, err := time.Parse("2006-01-02", d)
		if err != nil {
			continue
		}
		if date.Before(req.From) || date.After(req.To) {
			continue
		}
		row := result.Series[d]
		open, err1 := strconv.ParseFloat(row["1. open"], 64)
		high, err2 := strconv.ParseFloat(row["2. high"], 64)
		low, err3 := strconv.ParseFloat(row["3. low"], 64)
		closePx, err4 := strconv.ParseFloat(row["4. close"], 64)
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
			continue
		}
		bar := domain.Bar{Date: date, Open: open, High: high, Low: low, Close: closePx}
		if adj, err := strconv.ParseFloat(row["5. adjusted close"], 64); err == nil {
			bar.AdjClose = adj
		}
		if vol, err := strconv.ParseInt(row["6. volume"], 10, 64); err == nil {
			bar.Volume = vol
		}
		bars = append(bars, bar)
	}

	return bars, clients.OutcomeOK, nil
}

// overviewFields maps canonical field names to OVERVIEW response keys.
// Alpha Vantage's OVERVIEW carries trailing-twelve-month aggregates, not a
// full statement, so only a subset of fields is ever served here.
var overviewFields = map[domain.Field]string{
	domain.FieldRevenue:           "RevenueTTM",
	domain.FieldEBITDA:            "EBITDA",
	domain.FieldMarketCap:         "MarketCapitalization",
	domain.FieldSharesOutstanding: "SharesOutstanding",
	domain.FieldEPSDiluted:        "DilutedEPSTTM",
	domain.FieldBookValuePerShare: "BookValue",
}

// GetFundamentals fetches company aggregates via OVERVIEW.
func (c *Client) GetFundamentals(ctx context.Context, key string, req clients.FundamentalsRequest) (*clients.FundamentalsPayload, clients.Outcome, error) {
	body, outcome, err := c.get(ctx, key, url.Values{
		"function": {"OVERVIEW"},
		"symbol":   {req.Ticker},
	})
	if outcome != clients.OutcomeOK {
		return nil, outcome, err
	}

	var overview map[string]string
	if err := json.Unmarshal(body, &overview); err != nil {
		return nil, clients.OutcomeTransient, fmt.Errorf("failed to parse overview: %w", err)
	}
	if len(overview) == 0 || overview["Symbol"] == "" {
		return nil, clients.OutcomeNotFound, nil
	}

	fields := req.Fields
	if len(fields) == 0 {
		fields = domain.AllFundamentalFields
	}

	payload := &clients.FundamentalsPayload{
		Ticker: req.Ticker,
		Values: make(map[domain.Field]float64),
	}
	if end, err := time.Parse("2006-01-02", overview["LatestQuarter"]); err == nil {
		payload.FiscalPeriodEnd = end
	}
	for _, field := range fields {
		apiKey, ok := overviewFields[field]
		if !ok {
			continue
		}
		v, err := strconv.ParseFloat(overview[apiKey], 64)
		if err != nil {
			continue
		}
		payload.Values[field] = v
	}

	if len(payload.Values) == 0 {
		return nil, clients.OutcomeNotFound, nil
	}
	return payload, clients.OutcomeOK, nil
}

// GetEarnings implements clients.Adapter; not declared as a capability.
func (c *Client) GetEarnings(_ context.Context, _ string, _ clients.EarningsRequest) ([]domain.EarningsEvent, clients.Outcome, error) {
	return nil, clients.OutcomeTransient, fmt.Errorf("alphavantage: earnings calendar not supported")
}

// GetAnalystRatings implements clients.Adapter; not declared as a capability.
func (c *Client) GetAnalystRatings(_ context.Context, _ string, _ string) (*domain.AnalystConsensus, clients.Outcome, error) {
	return nil, clients.OutcomeTransient, fmt.Errorf("alphavantage: analyst ratings not supported")
}

// ProbeExistence checks GLOBAL_QUOTE; an empty quote object on a healthy
// response means the symbol is gone.
func (c *Client) ProbeExistence(ctx context.Context, key string, ticker string) (clients.Outcome, error) {
	_, outcome, err := c.GetQuote(ctx, key, ticker)
	return outcome, err
}

// get performs one API call and classifies the response. Throttling arrives
// as a 200 with a "Note" or "Information" body, never a 429.
func (c *Client) get(ctx context.Context, key string, params url.Values) ([]byte, clients.Outcome, error) {
	params.Set("apikey", key)

	req, err := http.NewRequestWithContext(ctx, "GET", baseURL+"?"+params.Encode(), nil)
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
		return nil, outcome, fmt.Errorf("Alpha Vantage returned status %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, clients.OutcomeTransient, fmt.Errorf("failed to read response body: %w", err)
	}

	var envelope struct {
		Note        string `json:"Note"`
		Information string `json:"Information"`
		ErrorMsg    string `json:"Error Message"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		if envelope.Note != "" || envelope.Information != "" {
			return nil, clients.OutcomeRateLimited, fmt.Errorf("Alpha Vantage throttled: %s%s", envelope.Note, envelope.Information)
		}
		if envelope.ErrorMsg != "" {
			return nil, clients.OutcomeNotFound, nil
		}
	}

	return body, clients.OutcomeOK, nil
}
