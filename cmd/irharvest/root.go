package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	irlog "github.com/nao1215/irharvest/internal/log"
)

// NewRootCmd creates the root command for irharvest.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "irharvest",
		Short: "Harvest investor-relations documents from fintech companies",
		Long: `irharvest fetches the investor-relations pages of a roster of companies,
finds links to filings, press releases and quarterly reports, and downloads
each document once into <output-root>/<company>/.

Pages that need JavaScript are rendered with a headless Chrome when one is
installed. Run history is kept in SQLite and can be browsed with "serve".`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON")

	cmd.AddCommand(NewRunCmd())
	cmd.AddCommand(NewReportCmd())
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// getBoolFlag reads a local or persistent bool flag, false when undefined.
func getBoolFlag(cmd *cobra.Command, name string) bool {
	v, err := cmd.Flags().GetBool(name)
	if err != nil {
		return false
	}
	return v
}

// setupLogger creates the process logger on stderr and makes it the default.
func setupLogger(cmd *cobra.Command) *slog.Logger {
	logger := irlog.New(os.Stderr, irlog.Options{
		Verbose: getBoolFlag(cmd, "verbose"),
		JSON:    getBoolFlag(cmd, "log-json"),
	})
	slog.SetDefault(logger)
	return logger
}
