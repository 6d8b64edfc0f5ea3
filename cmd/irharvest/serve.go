package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/nao1215/irharvest/internal/browse"
	"github.com/nao1215/irharvest/internal/config"
	"github.com/nao1215/irharvest/internal/database"
	"github.com/nao1215/irharvest/internal/market"
)

// Quote provider selections for --quotes.
const (
	quotesAuto   = "auto"
	quotesYahoo  = "yahoo"
	quotesAlpaca = "alpaca"
	quotesNone   = "none"
)

// errUnknownQuoteProvider is returned for an unsupported --quotes value.
var errUnknownQuoteProvider = errors.New("unknown quote provider (want auto, yahoo, alpaca or none)")

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Browse downloaded documents in a web UI",
		Long: `Serve starts a read-only web UI over the output root.

The index lists companies; each company page lists its documents, the
outcome of the latest run and, for listed companies, a market quote.

Market data comes from Alpaca when ALPACA_API_KEY and ALPACA_SECRET_KEY
are set (in the environment or a .env file), and from Yahoo Finance
otherwise.

Examples:
  # Serve on localhost:8080
  irharvest serve

  # Listen on all interfaces without market data
  irharvest serve --addr :8080 --quotes none`,
		RunE: runServeCmd,
	}

	cmd.Flags().String("addr", "127.0.0.1:8080",
		"Listen address")
	cmd.Flags().String("output-root", config.DefaultOutputRoot(),
		"Directory holding one sub-directory per company")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the SQLite run history")
	cmd.Flags().String("env-file", ".env",
		"File with market-data credentials")
	cmd.Flags().String("quotes", quotesAuto,
		"Quote provider: auto, yahoo, alpaca or none")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent header for quote requests")

	return cmd
}

// runServeCmd executes the serve command.
func runServeCmd(cmd *cobra.Command, _ []string) error {
	f := cmd.Flags()
	addr, err := f.GetString("addr")
	if err != nil {
		return err
	}
	root, err := f.GetString("output-root")
	if err != nil {
		return err
	}
	dbDir, err := f.GetString("db-dir")
	if err != nil {
		return err
	}
	envFile, err := f.GetString("env-file")
	if err != nil {
		return err
	}
	quotes, err := f.GetString("quotes")
	if err != nil {
		return err
	}
	userAgent, err := f.GetString("user-agent")
	if err != nil {
		return err
	}

	logger := setupLogger(cmd)
	loadEnvFile(envFile, logger)

	provider, err := newQuoteProvider(quotes, userAgent, logger)
	if err != nil {
		return err
	}

	cfg := browse.Config{
		Root:   root,
		Quotes: provider,
		Logger: logger,
	}

	opts := database.DefaultOptions()
	opts.CreateIfNotExists = false
	if store, err := database.Open(dbDir, opts); err != nil {
		logger.Warn("run history unavailable, showing files only", "dir", dbDir, "error", err)
	} else {
		defer store.Close()
		cfg.Reports = store
	}

	srv, err := browse.New(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(cmd.OutOrStdout(), "Serving %s on http://%s\n", root, addr)
	return srv.ListenAndServe(ctx, addr)
}

// loadEnvFile loads credentials from path. A missing file is not an error.
func loadEnvFile(path string, logger *slog.Logger) {
	if path == "" {
		return
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Debug("no env file", "path", path)
			return
		}
		logger.Warn("failed to load env file", "path", path, "error", err)
	}
}

// newQuoteProvider builds the provider selected by name. It returns nil
// for "none".
func newQuoteProvider(name, userAgent string, logger *slog.Logger) (market.Provider, error) {
	yahoo := func() market.Provider {
		return market.NewYahooProvider(
			&http.Client{Timeout: 10 * time.Second},
			market.WithYahooUserAgent(userAgent),
		)
	}

	switch name {
	case quotesNone:
		return nil, nil
	case quotesYahoo:
		return yahoo(), nil
	case quotesAlpaca:
		p, err := market.NewAlpacaProviderFromEnv()
		if err != nil {
			return nil, fmt.Errorf("alpaca quotes: %w", err)
		}
		return p, nil
	case quotesAuto:
		providers := []market.Provider{}
		if p, err := market.NewAlpacaProviderFromEnv(); err == nil {
			providers = append(providers, p)
		} else {
			logger.Debug("alpaca quotes disabled", "error", err)
		}
		providers = append(providers, yahoo())
		return market.NewChain(logger, providers...), nil
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownQuoteProvider, name)
	}
}
