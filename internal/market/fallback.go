package market

import (
	"context"
	"errors"
	"log/slog"
)

// Chain tries providers in order and returns the first quote.
type Chain struct {
	providers []Provider
	logger    *slog.Logger
}

// NewChain creates a Chain. Nil providers are skipped.
func NewChain(logger *slog.Logger, providers ...Provider) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Chain{logger: logger}
	for _, p := range providers {
		if p != nil {
			c.providers = append(c.providers, p)
		}
	}
	return c
}

// Name returns "chain".
func (c *Chain) Name() string { return "chain" }

// Quote returns the first successful quote. All provider errors are
// joined when none succeeds.
func (c *Chain) Quote(ctx context.Context, ticker string) (*Quote, error) {
	if ticker == "" {
		return nil, ErrNoTicker
	}
	var errs []error
	for _, p := range c.providers {
		q, err := p.Quote(ctx, ticker)
		if err == nil {
			return q, nil
		}
		c.logger.Debug("quote provider failed", "provider", p.Name(), "ticker", ticker, "error", err)
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	if len(errs) == 0 {
		return nil, ErrNoQuote
	}
	return nil, errors.Join(errs...)
}
