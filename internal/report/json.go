package report

import (
	"encoding/json"
	"io"
	"time"

	"github.com/nao1215/irharvest/internal/database"
	"github.com/nao1215/irharvest/internal/model"
)

// JSONWriter outputs reports in JSON format for scripts and dashboards.
// Each call writes one JSON document followed by a newline.
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed JSON output.
	indent bool

	// indentPrefix is the prefix for each line in indented output.
	indentPrefix string

	// indentString is the indentation string (typically "  " or "\t").
	indentString string

	// version is stamped into batch documents when set.
	version string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
// The prefix is prepended to each line, and indent is used for each level.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint enables pretty-printed JSON with default indentation.
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// WithVersion stamps the program version into batch documents.
func WithVersion(version string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.version = version
	}
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// batchDocument wraps a Batch with output metadata.
type batchDocument struct {
	Version string `json:"version,omitempty"`
	*Batch
}

// historyEntry is the JSON shape of one past run.
type historyEntry struct {
	ID              int64           `json:"id"`
	RunID           string          `json:"run_id"`
	StartedAt       string          `json:"started_at"`
	Status          model.RunStatus `json:"status"`
	LinksFound      int             `json:"links_found"`
	LinksNew        int             `json:"links_new"`
	FilesDownloaded int             `json:"files_downloaded"`
	Errors          int             `json:"errors"`
}

// Write outputs the batch with its summary.
func (w *JSONWriter) Write(batch *Batch) (int, error) {
	return w.writeJSON(batchDocument{Version: w.version, Batch: batch})
}

// WriteSummary outputs only the summary.
func (w *JSONWriter) WriteSummary(summary model.BatchSummary) (int, error) {
	return w.writeJSON(summary)
}

// WriteHistory outputs past runs of company.
func (w *JSONWriter) WriteHistory(company string, history []database.ReportMetadata) (int, error) {
	entries := make([]historyEntry, len(history))
	for i, h := range history {
		entries[i] = historyEntry{
			ID:              h.ID,
			RunID:           h.RunID,
			StartedAt:       h.StartedAt.Format(time.RFC3339),
			Status:          h.Status,
			LinksFound:      h.LinksFound,
			LinksNew:        h.LinksNew,
			FilesDownloaded: h.FilesDownloaded,
			Errors:          h.ErrorCount,
		}
	}
	return w.writeJSON(struct {
		Company string         `json:"company"`
		Runs    []historyEntry `json:"runs"`
	}{Company: company, Runs: entries})
}

// writeJSON marshals the given value to JSON and writes it to the output.
func (w *JSONWriter) writeJSON(v any) (int, error) {
	var data []byte
	var err error

	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return 0, err
	}

	data = append(data, '\n')
	return w.output.Write(data)
}
