// Package download persists document links under a per-company directory.
//
// A Manager decides which links are new, fetches their bytes and writes
// each file exactly once. The identity of a stored document is the pair
// (company, filename); the file on disk is the durable record, and an
// optional Index (the SQLite store) speeds up and disambiguates lookups.
//
// Files are written to a hidden temporary file first and then linked to
// their final name, so a file is either complete or absent and an
// existing file is never overwritten.
package download
