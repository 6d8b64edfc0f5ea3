package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/nao1215/irharvest/internal/database"
	"github.com/nao1215/irharvest/internal/model"
	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
)

// MarkdownWriter outputs reports in Markdown for sharing run results.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the batch as a Markdown document.
func (w *MarkdownWriter) Write(batch *Batch) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("IR Harvest Report")
	md.PlainText("")
	w.writeSummary(md, batch.Summary)
	w.writeOverview(md, batch.Reports)
	for _, r := range batch.Reports {
		w.writeReport(md, r)
	}
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// WriteSummary outputs only the summary section.
func (w *MarkdownWriter) WriteSummary(summary model.BatchSummary) (int, error) {
	md := markdown.NewMarkdown(w.output)
	w.writeSummary(md, summary)
	return len(md.String()), md.Build()
}

// WriteHistory outputs past runs of company as a table.
func (w *MarkdownWriter) WriteHistory(company string, history []database.ReportMetadata) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Run History: " + company)
	md.PlainText("")
	if len(history) == 0 {
		md.PlainText("No runs recorded.")
		return len(md.String()), md.Build()
	}

	rows := make([][]string, len(history))
	for i, h := range history {
		rows[i] = []string{
			strconv.FormatInt(h.ID, 10),
			h.StartedAt.Format(displayLayout),
			statusText(h.Status),
			strconv.Itoa(h.LinksFound),
			strconv.Itoa(h.LinksNew),
			strconv.Itoa(h.FilesDownloaded),
			strconv.Itoa(h.ErrorCount),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"ID", "Started", "Status", "Found", "New", "Downloaded", "Errors"},
		Rows:   rows,
	})

	return len(md.String()), md.Build()
}

// writeSummary writes the aggregate counters and an alert.
func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, s model.BatchSummary) {
	md.H2("Summary")
	md.PlainText("")

	rows := [][]string{
		{"Companies", strconv.Itoa(s.Targets)},
		{"Failed", strconv.Itoa(s.Failed)},
		{"Links found", strconv.Itoa(s.LinksFound)},
		{"New links", strconv.Itoa(s.LinksNew)},
		{"Files downloaded", strconv.Itoa(s.FilesDownloaded)},
		{"Errors", strconv.Itoa(s.Errors)},
	}
	if s.RunID != "" {
		rows = append([][]string{{"Run", "`" + s.RunID + "`"}}, rows...)
	}
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")

	switch {
	case s.Targets > 0 && s.Failed == s.Targets:
		md.Cautionf("Every company failed (%d of %d).", s.Failed, s.Targets)
	case s.Failed > 0:
		md.Warningf("%d of %d companies failed. Check the errors below.", s.Failed, s.Targets)
	case s.Errors > 0:
		md.Importantf("All companies completed with %d download error(s).", s.Errors)
	case s.FilesDownloaded > 0:
		md.Note(fmt.Sprintf("%d new document(s) downloaded.", s.FilesDownloaded))
	default:
		md.Tip("Everything is up to date.")
	}
	md.PlainText("")
}

// writeOverview writes one table row per company and a status pie chart.
func (w *MarkdownWriter) writeOverview(md *markdown.Markdown, reports []*model.FetchReport) {
	if len(reports) == 0 {
		return
	}

	md.H2("Companies")
	md.PlainText("")

	rows := make([][]string, len(reports))
	counts := map[model.RunStatus]uint64{}
	for i, r := range reports {
		counts[r.Status()]++
		via := string(r.FetchedVia)
		if via == "" {
			via = "-"
		}
		rows[i] = []string{
			r.Company,
			statusText(r.Status()),
			via,
			strconv.Itoa(r.LinksFound),
			strconv.Itoa(r.LinksNew),
			strconv.Itoa(r.FilesDownloaded),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Company", "Status", "Via", "Found", "New", "Downloaded"},
		Rows:   rows,
	})
	md.PlainText("")

	if len(reports) > 1 {
		chart := piechart.NewPieChart(
			io.Discard,
			piechart.WithTitle("Run Status"),
			piechart.WithShowData(true),
		)
		for _, status := range []model.RunStatus{model.RunOK, model.RunPartial, model.RunFailed} {
			if counts[status] > 0 {
				chart.LabelAndIntValue(string(status), counts[status])
			}
		}
		md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
		md.PlainText("")
	}
}

// writeReport writes downloads and errors of one company, if any.
func (w *MarkdownWriter) writeReport(md *markdown.Markdown, r *model.FetchReport) {
	if len(r.Downloads) == 0 && len(r.Errors) == 0 {
		return
	}

	md.H3(r.Company)
	md.PlainText("")

	if len(r.Downloads) > 0 {
		rows := make([][]string, len(r.Downloads))
		for i, d := range r.Downloads {
			rows[i] = []string{
				"`" + d.Filename + "`",
				strconv.FormatInt(d.SizeBytes, 10),
				truncateString(d.SourceURL, 80),
			}
		}
		md.Table(markdown.TableSet{
			Header: []string{"File", "Bytes", "Source"},
			Rows:   rows,
		})
		md.PlainText("")
	}

	if len(r.Errors) > 0 {
		rows := make([][]string, len(r.Errors))
		for i, e := range r.Errors {
			url := e.URL
			if url == "" {
				url = "-"
			}
			rows[i] = []string{
				string(e.Kind),
				string(e.Stage),
				truncateString(url, 60),
				truncateString(e.Message, 80),
			}
		}
		md.Table(markdown.TableSet{
			Header: []string{"Kind", "Stage", "URL", "Message"},
			Rows:   rows,
		})
		md.PlainText("")
	}
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainText("*Report generated by irharvest*")
}

func statusText(status model.RunStatus) string {
	switch status {
	case model.RunOK:
		return "✅ ok"
	case model.RunPartial:
		return "⚠️ partial"
	case model.RunFailed:
		return "❌ failed"
	default:
		return string(status)
	}
}
