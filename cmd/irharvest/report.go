package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nao1215/irharvest/internal/config"
	"github.com/nao1215/irharvest/internal/database"
	"github.com/nao1215/irharvest/internal/model"
	"github.com/nao1215/irharvest/internal/report"
)

var (
	// errHistoryNeedsCompany is returned for --history without exactly one company.
	errHistoryNeedsCompany = errors.New("--history requires exactly one company")
	// errReportNotFound is returned when --id names no stored report.
	errReportNotFound = errors.New("report not found")
	// errIDWithArgs is returned when --id is combined with other selectors.
	errIDWithArgs = errors.New("--id cannot be combined with company names or --history")
)

// NewReportCmd creates the report command.
func NewReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report [company...]",
		Short: "Show the latest run reports",
		Long: `Report prints the most recent run report of each company from the
run history database. Name companies to limit the output.

Examples:
  # Latest report of every company
  irharvest report

  # One company as Markdown
  irharvest report --markdown "SoFi Technologies"

  # The last 10 runs of a company
  irharvest report --history 10 "Affirm Holdings"

  # One past run by the ID shown in --history
  irharvest report --id 42`,
		Args: cobra.ArbitraryArgs,
		RunE: runReportCmd,
	}

	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the SQLite run history")
	cmd.Flags().Int("history", 0,
		"List the last N runs of one company instead of the latest report")
	cmd.Flags().Int64("id", 0,
		"Show the stored report with this ID (see --history)")
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")

	return cmd
}

// runReportCmd executes the report command.
func runReportCmd(cmd *cobra.Command, args []string) error {
	cfg := config.NewConfig()
	f := cmd.Flags()

	var err error
	if cfg.DBDir, err = f.GetString("db-dir"); err != nil {
		return err
	}
	if cfg.JSONReport, err = f.GetBool("json"); err != nil {
		return err
	}
	if cfg.MarkdownReport, err = f.GetBool("markdown"); err != nil {
		return err
	}
	if cfg.ReportFile, err = f.GetString("output"); err != nil {
		return err
	}
	history, err := f.GetInt("history")
	if err != nil {
		return err
	}
	id, err := f.GetInt64("id")
	if err != nil {
		return err
	}
	cfg.Verbose = getBoolFlag(cmd, "verbose")
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	if history > 0 && len(args) != 1 {
		return errHistoryNeedsCompany
	}
	if id > 0 && (history > 0 || len(args) > 0) {
		return errIDWithArgs
	}

	setupLogger(cmd)

	opts := database.DefaultOptions()
	opts.CreateIfNotExists = false
	store, err := database.Open(cfg.DBDir, opts)
	if err != nil {
		return fmt.Errorf("failed to open run history: %w", err)
	}
	defer store.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if id > 0 {
		r, err := store.GetFetchReportByID(ctx, id)
		if err != nil {
			return err
		}
		if r == nil {
			return fmt.Errorf("%w: %d", errReportNotFound, id)
		}
		return withOutput(cfg, out, func(w report.Writer) error {
			_, err := w.Write(report.NewBatch(r.RunID, []*model.FetchReport{r}))
			return err
		})
	}

	if history > 0 {
		rows, err := store.GetReportHistory(ctx, args[0], history)
		if err != nil {
			return err
		}
		return withOutput(cfg, out, func(w report.Writer) error {
			_, err := w.WriteHistory(args[0], rows)
			return err
		})
	}

	companies := args
	if len(companies) == 0 {
		rows, err := store.ListCompanies(ctx)
		if err != nil {
			return err
		}
		for _, row := range rows {
			companies = append(companies, row.Name)
		}
	}

	reports := make([]*model.FetchReport, 0, len(companies))
	for _, name := range companies {
		r, err := store.GetLatestFetchReport(ctx, name)
		if err != nil {
			return err
		}
		if r == nil {
			fmt.Fprintln(cmd.ErrOrStderr(), noReportMessage(ctx, store, name))
			continue
		}
		reports = append(reports, r)
	}

	return withOutput(cfg, out, func(w report.Writer) error {
		_, err := w.Write(report.NewBatch("", reports))
		return err
	})
}

// noReportMessage explains why company has no report.
func noReportMessage(ctx context.Context, store *database.Store, company string) string {
	row, err := store.GetCompany(ctx, company)
	if err == nil && row == nil {
		return fmt.Sprintf("%s is not a known company (run \"irharvest run\" with it in the roster first)", company)
	}
	return "no runs recorded for " + company
}
