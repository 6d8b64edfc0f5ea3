package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/irharvest/internal/model"
)

// FileName is the database file created inside the database directory.
const FileName = "irharvest.db"

// storedTimeLayout is fixed-width so stored timestamps sort as text.
const storedTimeLayout = "2006-01-02 15:04:05.000000"

// Store provides SQLite-based storage for download records and run reports.
// It is safe for concurrent use by multiple targets.
type Store struct {
	db     *sql.DB
	dbPath string
}

// Options configures Store behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging so readers (the browse UI)
	// do not block a running harvest.
	EnableWAL bool

	// BusyTimeout is how long a writer waits for a lock held by another
	// process before failing.
	BusyTimeout time.Duration
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
		BusyTimeout:       5 * time.Second,
	}
}

// Open opens or creates the Store in dbDir.
func Open(dbDir string, opts Options) (*Store, error) {
	dbPath := filepath.Join(dbDir, FileName)

	mode := "rw"
	if opts.CreateIfNotExists {
		if err := os.MkdirAll(dbDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		mode = "rwc"
	} else if _, err := os.Stat(dbPath); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		}
		return nil, fmt.Errorf("failed to check database path: %w", err)
	}

	dsn := fmt.Sprintf("%s?mode=%s&_pragma=busy_timeout(%d)", dbPath, mode, opts.BusyTimeout.Milliseconds())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	s := &Store{db: db, dbPath: dbPath}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := s.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

func (s *Store) createTables() error {
	schema := `
	-- One row per file written under the output root
	CREATE TABLE IF NOT EXISTS downloads (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		company TEXT NOT NULL,
		filename TEXT NOT NULL,
		source_url TEXT NOT NULL,
		size_bytes INTEGER NOT NULL DEFAULT 0,
		content_hash TEXT NOT NULL DEFAULT '',
		downloaded_at TEXT NOT NULL,
		UNIQUE(company, filename)
	);

	CREATE INDEX IF NOT EXISTS idx_downloads_url ON downloads(company, source_url);

	-- Complete fetch reports as JSON, with counters for listing
	CREATE TABLE IF NOT EXISTS fetch_reports (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		company TEXT NOT NULL,
		started_at TEXT NOT NULL,
		status TEXT NOT NULL,
		links_found INTEGER NOT NULL DEFAULT 0,
		links_new INTEGER NOT NULL DEFAULT 0,
		files_downloaded INTEGER NOT NULL DEFAULT 0,
		error_count INTEGER NOT NULL DEFAULT 0,
		report_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_reports_company ON fetch_reports(company, started_at);
	CREATE INDEX IF NOT EXISTS idx_reports_run ON fetch_reports(run_id);

	-- Roster companies as last seen
	CREATE TABLE IF NOT EXISTS companies (
		name TEXT PRIMARY KEY,
		ticker TEXT NOT NULL DEFAULT '',
		seed_urls TEXT NOT NULL DEFAULT '[]',
		updated_at TEXT NOT NULL
	);
	`

	_, err := s.db.ExecContext(context.Background(), schema)
	return err
}

// LookupByURL returns the most recent record of sourceURL for company,
// or nil when the URL was never downloaded.
func (s *Store) LookupByURL(ctx context.Context, company, sourceURL string) (*model.DownloadRecord, error) {
	query := `
	SELECT company, filename, source_url, size_bytes, content_hash, downloaded_at
	FROM downloads
	WHERE company = ? AND source_url = ?
	ORDER BY id DESC
	LIMIT 1
	`
	return s.queryDownload(ctx, query, company, sourceURL)
}

// LookupByFilename returns the record owning filename for company, or nil.
func (s *Store) LookupByFilename(ctx context.Context, company, filename string) (*model.DownloadRecord, error) {
	query := `
	SELECT company, filename, source_url, size_bytes, content_hash, downloaded_at
	FROM downloads
	WHERE company = ? AND filename = ?
	`
	return s.queryDownload(ctx, query, company, filename)
}

func (s *Store) queryDownload(ctx context.Context, query string, args ...any) (*model.DownloadRecord, error) {
	var rec model.DownloadRecord
	var downloadedAt string

	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&rec.Company,
		&rec.Filename,
		&rec.SourceURL,
		&rec.SizeBytes,
		&rec.ContentHash,
		&downloadedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get download record: %w", err)
	}

	rec.DownloadedAt = parseTimestamp(downloadedAt)
	return &rec, nil
}

// InsertDownload records a written file. A file re-downloaded under the
// same name (after it was deleted from disk) replaces the old row.
func (s *Store) InsertDownload(ctx context.Context, rec model.DownloadRecord) error {
	query := `
	INSERT INTO downloads (company, filename, source_url, size_bytes, content_hash, downloaded_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(company, filename) DO UPDATE SET
		source_url = excluded.source_url,
		size_bytes = excluded.size_bytes,
		content_hash = excluded.content_hash,
		downloaded_at = excluded.downloaded_at
	`

	_, err := s.db.ExecContext(ctx, query,
		rec.Company,
		rec.Filename,
		rec.SourceURL,
		rec.SizeBytes,
		rec.ContentHash,
		formatTimestamp(rec.DownloadedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert download record: %w", err)
	}
	return nil
}

// ListDownloads returns company's records, newest first.
func (s *Store) ListDownloads(ctx context.Context, company string) ([]model.DownloadRecord, error) {
	query := `
	SELECT company, filename, source_url, size_bytes, content_hash, downloaded_at
	FROM downloads
	WHERE company = ?
	ORDER BY downloaded_at DESC, filename
	`

	rows, err := s.db.QueryContext(ctx, query, company)
	if err != nil {
		return nil, fmt.Errorf("failed to list downloads: %w", err)
	}
	defer rows.Close()

	records := []model.DownloadRecord{}
	for rows.Next() {
		var rec model.DownloadRecord
		var downloadedAt string
		if err := rows.Scan(&rec.Company, &rec.Filename, &rec.SourceURL, &rec.SizeBytes, &rec.ContentHash, &downloadedAt); err != nil {
			return nil, fmt.Errorf("failed to scan download record: %w", err)
		}
		rec.DownloadedAt = parseTimestamp(downloadedAt)
		records = append(records, rec)
	}

	return records, rows.Err()
}

// SaveFetchReport stores report as JSON.
func (s *Store) SaveFetchReport(ctx context.Context, report *model.FetchReport) error {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to serialize report: %w", err)
	}

	query := `
	INSERT INTO fetch_reports (run_id, company, started_at, status, links_found, links_new, files_downloaded, error_count, report_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.ExecContext(ctx, query,
		report.RunID,
		report.Company,
		formatTimestamp(report.StartedAt),
		string(report.Status()),
		report.LinksFound,
		report.LinksNew,
		report.FilesDownloaded,
		len(report.Errors),
		string(reportJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to save fetch report: %w", err)
	}
	return nil
}

// GetLatestFetchReport returns the most recent report for company, or nil.
func (s *Store) GetLatestFetchReport(ctx context.Context, company string) (*model.FetchReport, error) {
	query := `
	SELECT report_json FROM fetch_reports
	WHERE company = ?
	ORDER BY started_at DESC, id DESC
	LIMIT 1
	`
	return s.queryReport(ctx, query, company)
}

// GetFetchReportByID returns the report with the given database ID, or nil.
func (s *Store) GetFetchReportByID(ctx context.Context, id int64) (*model.FetchReport, error) {
	return s.queryReport(ctx, `SELECT report_json FROM fetch_reports WHERE id = ?`, id)
}

func (s *Store) queryReport(ctx context.Context, query string, args ...any) (*model.FetchReport, error) {
	var reportJSON string
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get fetch report: %w", err)
	}

	var report model.FetchReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return &report, nil
}

// ReportMetadata summarizes a stored report without loading its JSON.
type ReportMetadata struct {
	ID              int64
	RunID           string
	Company         string
	StartedAt       time.Time
	Status          model.RunStatus
	LinksFound      int
	LinksNew        int
	FilesDownloaded int
	ErrorCount      int
}

// GetReportHistory returns report metadata, newest first. An empty company
// lists every company; limit <= 0 means no limit.
func (s *Store) GetReportHistory(ctx context.Context, company string, limit int) ([]ReportMetadata, error) {
	var b strings.Builder
	b.WriteString(`
	SELECT id, run_id, company, started_at, status, links_found, links_new, files_downloaded, error_count
	FROM fetch_reports
	WHERE 1=1
	`)
	args := make([]any, 0, 2)

	if company != "" {
		b.WriteString(" AND company = ?")
		args = append(args, company)
	}
	b.WriteString(" ORDER BY started_at DESC, id DESC")
	if limit > 0 {
		b.WriteString(" LIMIT ?")
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get report history: %w", err)
	}
	defer rows.Close()

	results := []ReportMetadata{}
	for rows.Next() {
		var meta ReportMetadata
		var startedAt, status string
		if err := rows.Scan(
			&meta.ID,
			&meta.RunID,
			&meta.Company,
			&startedAt,
			&status,
			&meta.LinksFound,
			&meta.LinksNew,
			&meta.FilesDownloaded,
			&meta.ErrorCount,
		); err != nil {
			return nil, fmt.Errorf("failed to scan metadata: %w", err)
		}
		meta.StartedAt = parseTimestamp(startedAt)
		meta.Status = model.RunStatus(status)
		results = append(results, meta)
	}

	return results, rows.Err()
}

// CompanyRow is a roster company as stored.
type CompanyRow struct {
	Name      string
	Ticker    string
	SeedURLs  []string
	UpdatedAt time.Time
}

// UpsertCompany records target's name, ticker and seeds.
func (s *Store) UpsertCompany(ctx context.Context, target model.CompanyTarget) error {
	seeds, err := json.Marshal(target.SeedURLs)
	if err != nil {
		return fmt.Errorf("failed to serialize seed URLs: %w", err)
	}

	query := `
	INSERT INTO companies (name, ticker, seed_urls, updated_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(name) DO UPDATE SET
		ticker = excluded.ticker,
		seed_urls = excluded.seed_urls,
		updated_at = excluded.updated_at
	`

	if _, err := s.db.ExecContext(ctx, query, target.Name, target.Ticker, string(seeds), formatTimestamp(time.Now())); err != nil {
		return fmt.Errorf("failed to upsert company: %w", err)
	}
	return nil
}

// GetCompany returns the stored company, or nil.
func (s *Store) GetCompany(ctx context.Context, name string) (*CompanyRow, error) {
	query := `SELECT name, ticker, seed_urls, updated_at FROM companies WHERE name = ?`

	row, err := scanCompany(s.db.QueryRowContext(ctx, query, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get company: %w", err)
	}
	return row, nil
}

// ListCompanies returns all stored companies ordered by name.
func (s *Store) ListCompanies(ctx context.Context) ([]CompanyRow, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, ticker, seed_urls, updated_at FROM companies ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list companies: %w", err)
	}
	defer rows.Close()

	companies := []CompanyRow{}
	for rows.Next() {
		row, err := scanCompany(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan company: %w", err)
		}
		companies = append(companies, *row)
	}
	return companies, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCompany(r rowScanner) (*CompanyRow, error) {
	var row CompanyRow
	var seeds, updatedAt string
	if err := r.Scan(&row.Name, &row.Ticker, &seeds, &updatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(seeds), &row.SeedURLs); err != nil {
		row.SeedURLs = nil
	}
	row.UpdatedAt = parseTimestamp(updatedAt)
	return &row, nil
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(storedTimeLayout)
}

// timestampFormats contains the timestamp formats that may be stored.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	storedTimeLayout,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	time.RFC3339,
	time.RFC3339Nano,
}

// parseTimestamp parses s with each known format and returns the zero
// time when none matches.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
