package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/nao1215/irharvest/internal/config"
	"github.com/nao1215/irharvest/internal/crawler"
	"github.com/nao1215/irharvest/internal/database"
	"github.com/nao1215/irharvest/internal/download"
	"github.com/nao1215/irharvest/internal/model"
	"github.com/nao1215/irharvest/internal/pipeline"
	"github.com/nao1215/irharvest/internal/report"
	"github.com/nao1215/irharvest/internal/scheduler"
	"github.com/nao1215/irharvest/internal/transport"
)

// NewRunCmd creates the run command.
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [company...]",
		Short: "Fetch every roster company and download new documents",
		Long: `Run processes the roster once (or repeatedly with --every).

For each company it fetches the seed pages, falls back to a headless
browser when a page is blocked or rendered client-side, extracts document
links and downloads the ones not already on disk. A failing company never
stops the others; its errors are listed in the report.

The command exits non-zero only when the roster cannot be loaded or the
flags are invalid.

Examples:
  # Process the whole roster once
  irharvest run

  # Only two companies, JSON report to a file
  irharvest run --json -o report.json "SoFi Technologies" "Affirm Holdings"

  # Re-run every day until interrupted
  irharvest run --every 24h

  # Skip the headless browser fallback
  irharvest run --no-render`,
		Args: cobra.ArbitraryArgs,
		RunE: runRunCmd,
	}

	cmd.Flags().StringP("roster", "r", "",
		"Roster file (default: ./roster.yaml, then the XDG config directory)")
	cmd.Flags().String("output-root", config.DefaultOutputRoot(),
		"Directory receiving one sub-directory per company")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the SQLite run history")
	cmd.Flags().Bool("no-db", false,
		"Do not record downloads and reports in SQLite")

	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent header for every request")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each page fetch")
	cmd.Flags().Duration("download-timeout", config.DefaultDownloadTimeout,
		"Timeout for each document download")
	cmd.Flags().IntP("concurrency", "b", config.DefaultConcurrencyLimit,
		"Number of companies processed at once")
	cmd.Flags().Float64("rate", config.DefaultRequestsPerSecond,
		"Requests per second allowed per host")
	cmd.Flags().String("proxy", "",
		"SOCKS5 proxy address (host:port)")
	cmd.Flags().Int64("max-body-size", config.DefaultMaxBodySize,
		"Maximum bytes read from a seed page")
	cmd.Flags().Int64("max-download-size", config.DefaultMaxDownloadSize,
		"Maximum bytes of a single document")
	cmd.Flags().Int("min-body-size", config.DefaultMinBodySize,
		"Pages with less text than this are treated as empty")

	cmd.Flags().Bool("no-render", false,
		"Disable the headless browser fallback")
	cmd.Flags().String("chrome-path", "",
		"Chrome or Chromium executable (default: search PATH)")
	cmd.Flags().Duration("render-timeout", config.DefaultRenderTimeout,
		"Timeout for each headless render")

	cmd.Flags().Duration("every", 0,
		"Repeat the whole roster at this interval until interrupted (e.g. 24h)")

	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")

	return cmd
}

// runRunCmd executes the run command.
func runRunCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildRunConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cmd)

	rosterPath := config.FindRosterFile(cfg.RosterPath)
	if rosterPath == "" {
		if cfg.RosterPath != "" {
			return fmt.Errorf("%w: %s", config.ErrRosterNotFound, cfg.RosterPath)
		}
		return fmt.Errorf("%w (run \"irharvest init\" to create one)", config.ErrRosterNotFound)
	}
	roster, err := config.LoadRoster(rosterPath)
	if err != nil {
		return fmt.Errorf("failed to load roster %s: %w", rosterPath, err)
	}
	targets, err := roster.Targets(cfg.Only...)
	if err != nil {
		return err
	}
	logger.Info("roster loaded", "path", rosterPath, "companies", len(targets))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	h, err := newHarvester(cfg, logger)
	if err != nil {
		return err
	}
	defer h.Close()

	h.registerCompanies(ctx, targets)

	task := func(ctx context.Context) error {
		return h.runOnce(ctx, targets, cmd.OutOrStdout())
	}
	if cfg.Every > 0 {
		return scheduler.Every(ctx, cfg.Every, "harvest", task, logger)
	}
	return task(ctx)
}

// buildRunConfig creates a Config from cobra command flags.
func buildRunConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	f := cmd.Flags()

	var err error
	if cfg.RosterPath, err = f.GetString("roster"); err != nil {
		return nil, err
	}
	if cfg.OutputRoot, err = f.GetString("output-root"); err != nil {
		return nil, err
	}
	if cfg.DBDir, err = f.GetString("db-dir"); err != nil {
		return nil, err
	}
	noDB, err := f.GetBool("no-db")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noDB

	if cfg.UserAgent, err = f.GetString("user-agent"); err != nil {
		return nil, err
	}
	if cfg.Timeout, err = f.GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.DownloadTimeout, err = f.GetDuration("download-timeout"); err != nil {
		return nil, err
	}
	if cfg.ConcurrencyLimit, err = f.GetInt("concurrency"); err != nil {
		return nil, err
	}
	if cfg.RequestsPerSecond, err = f.GetFloat64("rate"); err != nil {
		return nil, err
	}
	if cfg.ProxyAddress, err = f.GetString("proxy"); err != nil {
		return nil, err
	}
	if cfg.MaxBodySize, err = f.GetInt64("max-body-size"); err != nil {
		return nil, err
	}
	if cfg.MaxDownloadSize, err = f.GetInt64("max-download-size"); err != nil {
		return nil, err
	}
	if cfg.MinBodySize, err = f.GetInt("min-body-size"); err != nil {
		return nil, err
	}

	noRender, err := f.GetBool("no-render")
	if err != nil {
		return nil, err
	}
	cfg.RendererEnabled = !noRender
	if cfg.ChromePath, err = f.GetString("chrome-path"); err != nil {
		return nil, err
	}
	if cfg.RenderTimeout, err = f.GetDuration("render-timeout"); err != nil {
		return nil, err
	}

	if cfg.Every, err = f.GetDuration("every"); err != nil {
		return nil, err
	}
	if cfg.JSONReport, err = f.GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = f.GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = f.GetString("output"); err != nil {
		return nil, err
	}

	cfg.Verbose = getBoolFlag(cmd, "verbose")
	cfg.LogJSON = getBoolFlag(cmd, "log-json")
	cfg.Only = args

	return cfg, nil
}

// harvester wires the acquisition components for one process.
type harvester struct {
	cfg    *config.Config
	store  *database.Store
	batch  *pipeline.BatchProcessor
	logger *slog.Logger
}

// newHarvester builds the HTTP client, stages, orchestrator and batch
// processor. An unavailable history database or browser degrades the run
// instead of failing it.
func newHarvester(cfg *config.Config, logger *slog.Logger) (*harvester, error) {
	client, err := transport.NewHTTPClient(transport.Options{
		ProxyAddress: cfg.ProxyAddress,
		DialTimeout:  cfg.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}
	limiter := transport.NewHostLimiter(cfg.RequestsPerSecond, 1)

	h := &harvester{cfg: cfg, logger: logger}
	if cfg.SaveToDB {
		store, err := database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			logger.Warn("run history disabled", "dir", cfg.DBDir, "error", err)
		} else {
			h.store = store
			logger.Debug("database opened", "path", store.Path())
		}
	}

	fetcher := crawler.NewFetcher(client,
		crawler.WithUserAgent(cfg.UserAgent),
		crawler.WithTimeout(cfg.Timeout),
		crawler.WithMaxBodySize(cfg.MaxBodySize),
		crawler.WithMinBodySize(cfg.MinBodySize),
		crawler.WithHostLimiter(limiter),
		crawler.WithFetcherLogger(logger),
	)

	managerOpts := []download.Option{
		download.WithHostLimiter(limiter),
		download.WithUserAgent(cfg.UserAgent),
		download.WithTimeout(cfg.DownloadTimeout),
		download.WithMaxSize(cfg.MaxDownloadSize),
		download.WithLogger(logger),
	}
	if h.store != nil {
		managerOpts = append(managerOpts, download.WithIndex(h.store))
	}
	manager := download.NewManager(cfg.OutputRoot, client, managerOpts...)

	orchOpts := []pipeline.OrchestratorOption{
		pipeline.WithLockRoot(cfg.OutputRoot),
		pipeline.WithOrchestratorLogger(logger),
	}
	if renderer := newRenderer(cfg, logger); renderer != nil {
		orchOpts = append(orchOpts, pipeline.WithRenderer(renderer))
	}
	orch := pipeline.NewOrchestrator(fetcher, crawler.NewExtractor(), manager, orchOpts...)

	h.batch = pipeline.NewBatchProcessor(orch,
		pipeline.WithConcurrency(cfg.ConcurrencyLimit),
		pipeline.WithBatchLogger(logger),
	)

	if err := os.MkdirAll(cfg.OutputRoot, 0o750); err != nil {
		logger.Warn("cannot create output root", "root", cfg.OutputRoot, "error", err)
	}
	return h, nil
}

// newRenderer returns nil when rendering is disabled or no browser exists.
func newRenderer(cfg *config.Config, logger *slog.Logger) *crawler.ChromeRenderer {
	if !cfg.RendererEnabled {
		return nil
	}
	execPath, err := crawler.FindBrowser(cfg.ChromePath)
	if err != nil {
		logger.Warn("renderer fallback disabled", "error", err)
		return nil
	}
	logger.Debug("renderer fallback enabled", "browser", execPath)
	return crawler.NewChromeRenderer(execPath,
		crawler.WithRenderTimeout(cfg.RenderTimeout),
		crawler.WithRenderUserAgent(cfg.UserAgent),
		crawler.WithRenderMinBodySize(cfg.MinBodySize),
		crawler.WithRendererLogger(logger),
	)
}

// Close releases the history database.
func (h *harvester) Close() {
	if h.store == nil {
		return
	}
	if err := h.store.Close(); err != nil {
		h.logger.Warn("failed to close database", "error", err)
	}
}

// registerCompanies stores roster metadata so the browse UI can show
// tickers.
func (h *harvester) registerCompanies(ctx context.Context, targets []model.CompanyTarget) {
	if h.store == nil {
		return
	}
	for _, t := range targets {
		if t.Name == "" || t.Issue != nil {
			continue
		}
		if err := h.store.UpsertCompany(ctx, t); err != nil {
			h.logger.Warn("failed to store company", "company", t.Name, "error", err)
		}
	}
}

// runOnce processes targets once and writes the batch report.
func (h *harvester) runOnce(ctx context.Context, targets []model.CompanyTarget, stdout io.Writer) error {
	runID := uuid.NewString()
	started := time.Now()

	results := make([]*model.FetchReport, len(targets))
	err := h.batch.ProcessBatchWithCallback(ctx, runID, targets, func(r *model.FetchReport, index int) {
		results[index] = r
		h.saveReport(ctx, r)
	})
	if err != nil {
		h.logger.Warn("run interrupted", "run_id", runID, "error", err)
	}

	batch := report.NewBatch(runID, results)
	h.logger.Info("run complete",
		"run_id", runID,
		"companies", batch.Summary.Targets,
		"failed", batch.Summary.Failed,
		"files_downloaded", batch.Summary.FilesDownloaded,
		"elapsed", time.Since(started).Round(time.Millisecond),
	)

	if err := outputReport(h.cfg, batch, stdout); err != nil {
		h.logger.Error("failed to write report", "error", err)
	}
	return nil
}

// saveReport records r in the history database. It uses a fresh context
// so an interrupted run still records what it did.
func (h *harvester) saveReport(ctx context.Context, r *model.FetchReport) {
	if h.store == nil || r == nil {
		return
	}
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := h.store.SaveFetchReport(saveCtx, r); err != nil {
		h.logger.Error("failed to save report", "company", r.Company, "error", err)
	}
}

// outputReport writes batch in the requested format to the report file or
// stdout.
func outputReport(cfg *config.Config, batch *report.Batch, stdout io.Writer) error {
	return withOutput(cfg, stdout, func(w report.Writer) error {
		_, err := w.Write(batch)
		return err
	})
}

// withOutput opens the configured destination, creating directories as
// needed, and calls fn with a writer for the configured format.
func withOutput(cfg *config.Config, stdout io.Writer, fn func(report.Writer) error) error {
	output := stdout
	if cfg.ReportFile != "" {
		dir := filepath.Dir(cfg.ReportFile)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}

		f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		output = f
	}

	return fn(newReportWriter(cfg, output))
}

// newReportWriter picks the writer for the configured format.
func newReportWriter(cfg *config.Config, output io.Writer) report.Writer {
	switch {
	case cfg.JSONReport:
		return report.NewJSONWriter(output, report.WithPrettyPrint(), report.WithVersion(getVersion()))
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(output)
	default:
		return report.NewSimpleWriter(output, report.WithVerbose(cfg.Verbose))
	}
}
