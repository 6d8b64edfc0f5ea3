package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// DefaultYahooBaseURL is the public quote API host.
	DefaultYahooBaseURL = "https://query1.finance.yahoo.com"

	yahooQuotePath     = "/v7/finance/quote"
	defaultUserAgent   = "Mozilla/5.0 (FintechScraper/1.0)"
	maxQuoteBodyLength = 1 << 20
)

// YahooProvider queries the Yahoo Finance v7 quote endpoint.
type YahooProvider struct {
	client    *http.Client
	baseURL   string
	userAgent string
	now       func() time.Time
}

// YahooOption configures a YahooProvider.
type YahooOption func(*YahooProvider)

// WithYahooBaseURL points the provider at another host.
func WithYahooBaseURL(base string) YahooOption {
	return func(p *YahooProvider) {
		p.baseURL = strings.TrimRight(base, "/")
	}
}

// WithYahooUserAgent sets the User-Agent header.
func WithYahooUserAgent(ua string) YahooOption {
	return func(p *YahooProvider) {
		if ua != "" {
			p.userAgent = ua
		}
	}
}

// NewYahooProvider creates a provider using client. A nil client uses a
// client with a 10 second timeout.
func NewYahooProvider(client *http.Client, opts ...YahooOption) *YahooProvider {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	p := &YahooProvider{
		client:    client,
		baseURL:   DefaultYahooBaseURL,
		userAgent: defaultUserAgent,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns "yahoo".
func (p *YahooProvider) Name() string { return "yahoo" }

type yahooResponse struct {
	QuoteResponse struct {
		Result []struct {
			Symbol             string          `json:"symbol"`
			RegularMarketPrice decimal.Decimal `json:"regularMarketPrice"`
			MarketCap          decimal.Decimal `json:"marketCap"`
			Currency           string          `json:"currency"`
			RegularMarketTime  int64           `json:"regularMarketTime"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"quoteResponse"`
}

// Quote fetches the current quote for ticker.
func (p *YahooProvider) Quote(ctx context.Context, ticker string) (*Quote, error) {
	ticker = strings.TrimSpace(ticker)
	if ticker == "" {
		return nil, ErrNoTicker
	}

	u := p.baseURL + yahooQuotePath + "?" + url.Values{"symbols": {ticker}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("quote request for %s failed: %w", ticker, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("quote request for %s: HTTP %d", ticker, resp.StatusCode)
	}

	var body yahooResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxQuoteBodyLength)).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode quote for %s: %w", ticker, err)
	}
	if e := body.QuoteResponse.Error; e != nil {
		return nil, fmt.Errorf("quote for %s: %s: %s", ticker, e.Code, e.Description)
	}
	if len(body.QuoteResponse.Result) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoQuote, ticker)
	}

	r := body.QuoteResponse.Result[0]
	asOf := p.now()
	if r.RegularMarketTime > 0 {
		asOf = time.Unix(r.RegularMarketTime, 0).UTC()
	}
	symbol := r.Symbol
	if symbol == "" {
		symbol = ticker
	}
	return &Quote{
		Symbol:    symbol,
		Price:     r.RegularMarketPrice,
		MarketCap: r.MarketCap,
		Currency:  r.Currency,
		AsOf:      asOf,
		Source:    p.Name(),
	}, nil
}
