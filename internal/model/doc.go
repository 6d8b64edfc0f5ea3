// Package model defines the core data structures used throughout irharvest.
//
// This package contains the following main types:
//   - CompanyTarget: One roster entry (name, seed URLs, optional ticker)
//   - FetchResult: The classified outcome of fetching a seed page
//   - DocumentLink: A candidate document discovered on a seed page
//   - DownloadRecord: One persisted file under the output root
//   - FetchReport: The per-target summary of one acquisition run
//
// Models live in their own package so that crawler, download, pipeline,
// database and report can share them without import cycles. All of them
// serialize to JSON for report output and database storage.
package model
