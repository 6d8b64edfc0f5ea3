// Package database provides SQLite-based storage for irharvest.
//
// The Store keeps:
//   - an index of downloaded documents, used for fast dedup checks and to
//     keep collision-suffixed filenames stable across runs
//   - every FetchReport as JSON, for run history and the browse UI
//   - the roster's companies and tickers as last seen
//
// The files under the output root remain the durable record. Losing the
// database only costs the collision history; the next run rebuilds the
// index from new downloads.
//
// SQLite is used through modernc.org/sqlite, which needs no cgo.
package database
