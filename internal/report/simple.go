package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/irharvest/internal/database"
	"github.com/nao1215/irharvest/internal/model"
)

const (
	ruleWidth     = 70
	displayLayout = "2006-01-02 15:04:05 MST"
)

// SimpleWriter outputs human-readable text reports for the terminal.
// Plain ASCII keeps the output usable in pipes and log files.
type SimpleWriter struct {
	baseWriter

	// verbose lists every download and error, not just the first error.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables per-file and per-error detail.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs every report followed by the batch summary.
func (w *SimpleWriter) Write(batch *Batch) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, "IR HARVEST REPORT")
	for _, r := range batch.Reports {
		w.writeReport(&sb, r)
	}
	w.writeSummary(&sb, batch.Summary)

	return w.output.Write([]byte(sb.String()))
}

// WriteSummary outputs only the aggregate counters.
func (w *SimpleWriter) WriteSummary(summary model.BatchSummary) (int, error) {
	var sb strings.Builder
	w.writeSummary(&sb, summary)
	return w.output.Write([]byte(sb.String()))
}

// WriteHistory outputs past runs of company, one line each.
func (w *SimpleWriter) WriteHistory(company string, history []database.ReportMetadata) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, "RUN HISTORY: "+company)
	if len(history) == 0 {
		sb.WriteString("  No runs recorded\n\n")
		return w.output.Write([]byte(sb.String()))
	}

	fmt.Fprintf(&sb, "  %6s  %-25s %-8s %6s %6s %6s %6s\n", "ID", "STARTED", "STATUS", "FOUND", "NEW", "FILES", "ERRORS")
	for _, h := range history {
		fmt.Fprintf(&sb, "  %6d  %-25s %-8s %6d %6d %6d %6d\n",
			h.ID, h.StartedAt.Format(displayLayout), h.Status,
			h.LinksFound, h.LinksNew, h.FilesDownloaded, h.ErrorCount)
	}
	sb.WriteString("\n")

	return w.output.Write([]byte(sb.String()))
}

// writeHeader writes a ruled title block.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, title string) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
	pad := max((ruleWidth-len(title))/2, 0)
	sb.WriteString(strings.Repeat(" ", pad))
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n\n")
}

// writeReport writes one company's run.
func (w *SimpleWriter) writeReport(sb *strings.Builder, r *model.FetchReport) {
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n")
	title := r.Company
	if r.Ticker != "" {
		title += " (" + r.Ticker + ")"
	}
	fmt.Fprintf(sb, "[%s] %s\n", w.statusIndicator(r.Status()), title)
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n")

	fmt.Fprintf(sb, "  Started:     %s\n", r.StartedAt.Format(displayLayout))
	fmt.Fprintf(sb, "  Duration:    %s\n", r.Duration().Round(time.Millisecond))
	fmt.Fprintf(sb, "  Final stage: %s\n", r.FinalStage)
	if r.FetchedVia != "" {
		fmt.Fprintf(sb, "  Fetched via: %s\n", r.FetchedVia)
	}
	fmt.Fprintf(sb, "  Links found: %d  new: %d  downloaded: %d\n", r.LinksFound, r.LinksNew, r.FilesDownloaded)

	if !w.verbose {
		if msg := errorSummary(r); msg != "" {
			fmt.Fprintf(sb, "  Error:       %s\n", truncateString(msg, 100))
		}
		sb.WriteString("\n")
		return
	}

	if len(r.Downloads) > 0 {
		sb.WriteString("\n  Downloads:\n")
		for _, d := range r.Downloads {
			fmt.Fprintf(sb, "    [+] %s (%d bytes)\n", d.Filename, d.SizeBytes)
			fmt.Fprintf(sb, "        %s\n", d.SourceURL)
		}
	}
	if len(r.Errors) > 0 {
		sb.WriteString("\n  Errors:\n")
		for _, e := range r.Errors {
			fmt.Fprintf(sb, "    [!] %s at %s: %s\n", e.Kind, e.Stage, e.Message)
			if e.URL != "" {
				fmt.Fprintf(sb, "        %s\n", e.URL)
			}
		}
	}
	sb.WriteString("\n")
}

// writeSummary writes the aggregate block.
func (w *SimpleWriter) writeSummary(sb *strings.Builder, s model.BatchSummary) {
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString("SUMMARY\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n\n")

	if s.RunID != "" {
		fmt.Fprintf(sb, "  Run:        %s\n", s.RunID)
	}
	fmt.Fprintf(sb, "  Companies:  %d (%d failed)\n", s.Targets, s.Failed)
	fmt.Fprintf(sb, "  Links:      %d found, %d new\n", s.LinksFound, s.LinksNew)
	fmt.Fprintf(sb, "  Downloaded: %d files\n", s.FilesDownloaded)
	fmt.Fprintf(sb, "  Errors:     %d\n", s.Errors)
	sb.WriteString("\n")
}

// statusIndicator returns a short ASCII marker for a run status.
func (w *SimpleWriter) statusIndicator(status model.RunStatus) string {
	switch status {
	case model.RunOK:
		return " OK "
	case model.RunPartial:
		return "PART"
	case model.RunFailed:
		return "FAIL"
	default:
		return " ?? "
	}
}
