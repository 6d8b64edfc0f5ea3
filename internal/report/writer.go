package report

import (
	"io"
	"strconv"

	"github.com/nao1215/irharvest/internal/database"
	"github.com/nao1215/irharvest/internal/model"
)

// Batch is the output of one invocation over the roster.
type Batch struct {
	Summary model.BatchSummary   `json:"summary"`
	Reports []*model.FetchReport `json:"reports"`
}

// NewBatch builds a Batch from reports, dropping nil entries left by
// targets that never started.
func NewBatch(runID string, reports []*model.FetchReport) *Batch {
	kept := make([]*model.FetchReport, 0, len(reports))
	for _, r := range reports {
		if r != nil {
			kept = append(kept, r)
		}
	}
	return &Batch{
		Summary: model.Summarize(runID, kept),
		Reports: kept,
	}
}

// Writer defines the interface for report output.
type Writer interface {
	// Write outputs every report in the batch plus its summary.
	Write(batch *Batch) (int, error)

	// WriteSummary outputs only the aggregate counters.
	WriteSummary(summary model.BatchSummary) (int, error)

	// WriteHistory outputs past runs of one company, newest first.
	WriteHistory(company string, history []database.ReportMetadata) (int, error)
}

// MultiWriter writes to multiple Writers in order and stops at the first
// error.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the batch to all configured Writers.
func (m *MultiWriter) Write(batch *Batch) (int, error) {
	return m.each(func(w Writer) (int, error) { return w.Write(batch) })
}

// WriteSummary outputs the summary to all configured Writers.
func (m *MultiWriter) WriteSummary(summary model.BatchSummary) (int, error) {
	return m.each(func(w Writer) (int, error) { return w.WriteSummary(summary) })
}

// WriteHistory outputs the history to all configured Writers.
func (m *MultiWriter) WriteHistory(company string, history []database.ReportMetadata) (int, error) {
	return m.each(func(w Writer) (int, error) { return w.WriteHistory(company, history) })
}

func (m *MultiWriter) each(fn func(Writer) (int, error)) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := fn(w)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// errorSummary returns the first error message of a report for one-line
// display.
func errorSummary(r *model.FetchReport) string {
	if len(r.Errors) == 0 {
		return ""
	}
	e := r.Errors[0]
	msg := string(e.Kind) + ": " + e.Message
	if len(r.Errors) > 1 {
		msg += " (+" + strconv.Itoa(len(r.Errors)-1) + " more)"
	}
	return msg
}

// truncateString truncates a string to maxLen bytes with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
