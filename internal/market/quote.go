package market

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrNoTicker is returned when a quote is requested for an empty ticker.
	ErrNoTicker = errors.New("no ticker symbol")

	// ErrNoQuote is returned when the provider has no data for the symbol.
	ErrNoQuote = errors.New("no quote for symbol")
)

// Quote is a point-in-time market snapshot for one ticker.
type Quote struct {
	Symbol string

	// Price is the last traded or regular market price.
	Price decimal.Decimal

	// MarketCap is zero when the provider does not report it.
	MarketCap decimal.Decimal

	// Currency is empty when the provider does not report it.
	Currency string

	// AsOf is when the price was observed.
	AsOf time.Time

	// Source names the provider that produced the quote.
	Source string
}

// HasMarketCap reports whether the market capitalisation is known.
func (q *Quote) HasMarketCap() bool {
	return q != nil && q.MarketCap.IsPositive()
}

// Provider returns quotes for ticker symbols.
type Provider interface {
	Quote(ctx context.Context, ticker string) (*Quote, error)
	Name() string
}
