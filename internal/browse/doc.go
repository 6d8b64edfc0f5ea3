// Package browse serves a read-only web UI over the output root.
//
// The index lists company directories; a company page lists its stored
// documents, the status of the latest run and, when the roster gives a
// ticker, a market quote. Files are served from /data/{company}/{file}.
// Hidden entries such as lock files and in-flight downloads are never
// listed or served.
package browse
