// Package report renders FetchReports for people and tools.
//
// Three formats are available:
//   - SimpleWriter: plain text for the terminal
//   - JSONWriter: structured JSON for scripts and dashboards
//   - MarkdownWriter: Markdown for sharing run results
//
// Report data lives in the model package; this package only formats it.
// All writers implement Writer and can be combined with MultiWriter.
package report
