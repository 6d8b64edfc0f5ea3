package market

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/shopspring/decimal"
)

func TestYahooProvider_Quote(t *testing.T) {
	t.Parallel()

	t.Run("parses price market cap and currency", func(t *testing.T) {
		t.Parallel()

		var gotUA, gotSymbols string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotUA = r.Header.Get("User-Agent")
			gotSymbols = r.URL.Query().Get("symbols")
			if r.URL.Path != "/v7/finance/quote" {
				http.NotFound(w, r)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{"quoteResponse":{"result":[{"symbol":"SOFI","regularMarketPrice":8.12,"marketCap":8612345678,"currency":"USD","regularMarketTime":1714560000}],"error":null}}`)
		}))
		defer srv.Close()

		p := NewYahooProvider(srv.Client(), WithYahooBaseURL(srv.URL+"/"), WithYahooUserAgent("test-agent"))
		q, err := p.Quote(context.Background(), "SOFI")
		if err != nil {
			t.Fatalf("Quote() error = %v", err)
		}
		if gotUA != "test-agent" || gotSymbols != "SOFI" {
			t.Errorf("request UA=%q symbols=%q", gotUA, gotSymbols)
		}
		if !q.Price.Equal(decimal.RequireFromString("8.12")) {
			t.Errorf("Price = %s, want 8.12", q.Price)
		}
		if !q.HasMarketCap() || q.MarketCap.String() != "8612345678" {
			t.Errorf("MarketCap = %s", q.MarketCap)
		}
		if q.Currency != "USD" || q.Source != "yahoo" {
			t.Errorf("Currency=%q Source=%q", q.Currency, q.Source)
		}
		if !q.AsOf.Equal(time.Unix(1714560000, 0)) {
			t.Errorf("AsOf = %v", q.AsOf)
		}
	})

	t.Run("empty result", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, `{"quoteResponse":{"result":[],"error":null}}`)
		}))
		defer srv.Close()

		_, err := NewYahooProvider(srv.Client(), WithYahooBaseURL(srv.URL)).Quote(context.Background(), "NOPE")
		if !errors.Is(err, ErrNoQuote) {
			t.Errorf("error = %v, want ErrNoQuote", err)
		}
	})

	t.Run("http error", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer srv.Close()

		if _, err := NewYahooProvider(srv.Client(), WithYahooBaseURL(srv.URL)).Quote(context.Background(), "SOFI"); err == nil {
			t.Error("expected error for 401")
		}
	})

	t.Run("empty ticker", func(t *testing.T) {
		t.Parallel()

		if _, err := NewYahooProvider(nil).Quote(context.Background(), "  "); !errors.Is(err, ErrNoTicker) {
			t.Errorf("error = %v, want ErrNoTicker", err)
		}
	})
}

type fakeTrader struct {
	trade *marketdata.Trade
	err   error
	calls []string
}

func (f *fakeTrader) GetLatestTrade(symbol string, _ marketdata.GetLatestTradeRequest) (*marketdata.Trade, error) {
	f.calls = append(f.calls, symbol)
	return f.trade, f.err
}

func TestAlpacaProvider_Quote(t *testing.T) {
	t.Parallel()

	t.Run("latest trade price", func(t *testing.T) {
		t.Parallel()

		ts := time.Date(2024, 5, 1, 14, 30, 0, 0, time.UTC)
		fake := &fakeTrader{trade: &marketdata.Trade{Price: 61.25, Timestamp: ts}}
		p := &AlpacaProvider{client: fake}

		q, err := p.Quote(context.Background(), " hood ")
		if err != nil {
			t.Fatalf("Quote() error = %v", err)
		}
		if len(fake.calls) != 1 || fake.calls[0] != "HOOD" {
			t.Errorf("calls = %v", fake.calls)
		}
		if q.Price.String() != "61.25" || q.Currency != "USD" || !q.AsOf.Equal(ts) {
			t.Errorf("unexpected quote %+v", q)
		}
		if q.HasMarketCap() {
			t.Error("alpaca quotes carry no market cap")
		}
	})

	t.Run("client error", func(t *testing.T) {
		t.Parallel()

		p := &AlpacaProvider{client: &fakeTrader{err: errors.New("forbidden")}}
		if _, err := p.Quote(context.Background(), "HOOD"); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("cancelled context skips the call", func(t *testing.T) {
		t.Parallel()

		fake := &fakeTrader{}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := (&AlpacaProvider{client: fake}).Quote(ctx, "HOOD"); !errors.Is(err, context.Canceled) {
			t.Errorf("error = %v", err)
		}
		if len(fake.calls) != 0 {
			t.Error("client should not be called")
		}
	})

	t.Run("missing credentials", func(t *testing.T) {
		t.Parallel()

		if _, err := NewAlpacaProvider("", "secret"); !errors.Is(err, ErrNoCredentials) {
			t.Errorf("error = %v, want ErrNoCredentials", err)
		}
	})
}

type stubProvider struct {
	name  string
	quote *Quote
	err   error
}

func (s stubProvider) Name() string { return s.name }

func (s stubProvider) Quote(context.Context, string) (*Quote, error) { return s.quote, s.err }

func TestChain(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.DiscardHandler)
	first := stubProvider{name: "a", err: errors.New("down")}
	second := stubProvider{name: "b", quote: &Quote{Symbol: "SOFI", Source: "b"}}

	q, err := NewChain(logger, first, nil, second).Quote(context.Background(), "SOFI")
	if err != nil || q.Source != "b" {
		t.Fatalf("Quote() = %+v, %v", q, err)
	}

	_, err = NewChain(logger, first).Quote(context.Background(), "SOFI")
	if err == nil || err.Error() != "down" {
		t.Errorf("error = %v, want joined provider error", err)
	}

	if _, err := NewChain(logger).Quote(context.Background(), "SOFI"); !errors.Is(err, ErrNoQuote) {
		t.Errorf("error = %v, want ErrNoQuote", err)
	}
}
