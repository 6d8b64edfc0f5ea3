package main

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nao1215/irharvest/internal/config"
)

//go:embed templates/roster.yaml
var rosterTemplate embed.FS

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter roster file",
		Long: `Init writes a roster.yaml listing the default fintech companies.

The generated file includes:
- Name, ticker and investor-relations URL for each company
- Default request headers shared by every company
- Comments documenting the per-company keys

Examples:
  # Create roster.yaml in the current directory
  irharvest init

  # Create the roster where "run" finds it without --roster
  irharvest init -o ~/.config/irharvest/roster.yaml

  # Force overwrite an existing file
  irharvest init -f`,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", config.DefaultRosterFile,
		"Output file path for the roster")
	cmd.Flags().BoolP("force", "f", false,
		"Overwrite an existing roster file")

	return cmd
}

// runInitCmd executes the init command.
func runInitCmd(cmd *cobra.Command, _ []string) error {
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	if !force {
		if _, err := os.Stat(outputPath); err == nil {
			return fmt.Errorf("roster file already exists: %s (use -f to overwrite)", outputPath)
		}
	}

	content, err := rosterTemplate.ReadFile("templates/roster.yaml")
	if err != nil {
		return fmt.Errorf("failed to read roster template: %w", err)
	}

	dir := filepath.Dir(outputPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	if err := os.WriteFile(outputPath, content, 0600); err != nil {
		return fmt.Errorf("failed to write roster file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created roster file: %s\n", outputPath)
	fmt.Fprintln(out, "\nEdit this file to:")
	fmt.Fprintln(out, "  - Add or remove companies")
	fmt.Fprintln(out, "  - Point seed_urls at specific filings pages")
	fmt.Fprintln(out, "  - Force headless rendering for JavaScript-only sites")

	return nil
}
