package market

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/shopspring/decimal"
)

// Environment variables holding Alpaca credentials.
const (
	EnvAlpacaAPIKey    = "ALPACA_API_KEY"
	EnvAlpacaSecretKey = "ALPACA_SECRET_KEY"
)

// ErrNoCredentials is returned when Alpaca credentials are not configured.
var ErrNoCredentials = errors.New("alpaca credentials not set")

// latestTrader is the part of the Alpaca market-data client we use.
type latestTrader interface {
	GetLatestTrade(symbol string, req marketdata.GetLatestTradeRequest) (*marketdata.Trade, error)
}

// AlpacaProvider prices tickers from the Alpaca latest-trade API. Alpaca
// reports neither market cap nor currency; prices are in USD.
type AlpacaProvider struct {
	client latestTrader
}

// NewAlpacaProvider creates a provider from explicit credentials.
func NewAlpacaProvider(apiKey, apiSecret string) (*AlpacaProvider, error) {
	if apiKey == "" || apiSecret == "" {
		return nil, ErrNoCredentials
	}
	client := marketdata.NewClient(marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	})
	return &AlpacaProvider{client: client}, nil
}

// NewAlpacaProviderFromEnv reads ALPACA_API_KEY and ALPACA_SECRET_KEY.
func NewAlpacaProviderFromEnv() (*AlpacaProvider, error) {
	return NewAlpacaProvider(os.Getenv(EnvAlpacaAPIKey), os.Getenv(EnvAlpacaSecretKey))
}

// Name returns "alpaca".
func (p *AlpacaProvider) Name() string { return "alpaca" }

// Quote returns the latest trade price for ticker. The Alpaca client does
// not take a context, so cancellation is only checked before the call.
func (p *AlpacaProvider) Quote(ctx context.Context, ticker string) (*Quote, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return nil, ErrNoTicker
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	trade, err := p.client.GetLatestTrade(ticker, marketdata.GetLatestTradeRequest{})
	if err != nil {
		return nil, fmt.Errorf("latest trade for %s: %w", ticker, err)
	}
	if trade == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoQuote, ticker)
	}

	return &Quote{
		Symbol:   ticker,
		Price:    decimal.NewFromFloat(trade.Price),
		Currency: "USD",
		AsOf:     trade.Timestamp,
		Source:   p.Name(),
	}, nil
}
