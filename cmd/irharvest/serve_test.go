package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func typeName(v any) string {
	return fmt.Sprintf("%T", v)
}

func TestNewQuoteProvider(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)

	t.Run("none", func(t *testing.T) {
		p, err := newQuoteProvider(quotesNone, "ua", logger)
		if err != nil || p != nil {
			t.Errorf("got %v, %v", p, err)
		}
	})

	t.Run("yahoo", func(t *testing.T) {
		p, err := newQuoteProvider(quotesYahoo, "ua", logger)
		if err != nil || typeName(p) != "*market.YahooProvider" {
			t.Errorf("got %T, %v", p, err)
		}
	})

	t.Run("alpaca without credentials", func(t *testing.T) {
		t.Setenv("ALPACA_API_KEY", "")
		t.Setenv("ALPACA_SECRET_KEY", "")
		if _, err := newQuoteProvider(quotesAlpaca, "ua", logger); err == nil {
			t.Error("expected error without credentials")
		}
	})

	t.Run("auto falls back to yahoo", func(t *testing.T) {
		t.Setenv("ALPACA_API_KEY", "")
		t.Setenv("ALPACA_SECRET_KEY", "")
		p, err := newQuoteProvider(quotesAuto, "ua", logger)
		if err != nil || typeName(p) != "*market.Chain" {
			t.Errorf("got %T, %v", p, err)
		}
	})

	t.Run("unknown", func(t *testing.T) {
		if _, err := newQuoteProvider("bloomberg", "ua", logger); !errors.Is(err, errUnknownQuoteProvider) {
			t.Errorf("expected errUnknownQuoteProvider, got %v", err)
		}
	})
}

func TestLoadEnvFile(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)

	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("IRHARVEST_TEST_KEY=from-env-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("IRHARVEST_TEST_KEY", "")
	if err := os.Unsetenv("IRHARVEST_TEST_KEY"); err != nil {
		t.Fatal(err)
	}

	loadEnvFile(path, logger)
	if got := os.Getenv("IRHARVEST_TEST_KEY"); got != "from-env-file" {
		t.Errorf("IRHARVEST_TEST_KEY = %q", got)
	}

	// A missing file is not an error.
	loadEnvFile(filepath.Join(t.TempDir(), "missing.env"), logger)
}
