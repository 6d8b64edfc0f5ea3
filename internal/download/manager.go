package download

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/crypto/sha3"

	"github.com/nao1215/irharvest/internal/model"
	"github.com/nao1215/irharvest/internal/transport"
)

// Default Manager settings, overridden through options.
const (
	defaultUserAgent       = "Mozilla/5.0 (FintechScraper/1.0)"
	defaultDownloadTimeout = 2 * time.Minute
	defaultMaxDownloadSize = 200 * 1024 * 1024
)

// tempPattern names in-flight downloads. The leading dot keeps them out
// of directory listings.
const tempPattern = ".irh-*.part"

// Download errors.
var (
	ErrUnexpectedStatus = errors.New("unexpected HTTP status")
	ErrTooLarge         = errors.New("document exceeds maximum download size")

	errAlreadyPresent = errors.New("file already present")
)

// SyncResult is the outcome of one Sync call.
type SyncResult struct {
	// New counts links that were not already present, whether or not
	// their download succeeded.
	New int

	// Records has one entry per file written, in link order.
	Records []model.DownloadRecord

	// Errors has one entry per link that failed.
	Errors []model.ErrorEntry
}

// Manager downloads document links into per-company directories.
type Manager struct {
	root      string
	client    *http.Client
	index     Index
	manifest  *ManifestIndex
	limiter   *transport.HostLimiter
	userAgent string
	timeout   time.Duration
	maxSize   int64
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithIndex adds a dedup index consulted before the per-company manifest.
// Downloads are recorded in both.
func WithIndex(idx Index) Option {
	return func(m *Manager) {
		if idx != nil {
			m.index = chainIndex{idx, m.manifest}
		}
	}
}

// WithHostLimiter makes every download wait for the host's rate limit.
func WithHostLimiter(hl *transport.HostLimiter) Option {
	return func(m *Manager) {
		m.limiter = hl
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(m *Manager) {
		m.userAgent = ua
	}
}

// WithTimeout bounds each download.
func WithTimeout(d time.Duration) Option {
	return func(m *Manager) {
		m.timeout = d
	}
}

// WithMaxSize caps the size of a single document.
func WithMaxSize(size int64) Option {
	return func(m *Manager) {
		m.maxSize = size
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithClock sets the time source for DownloadedAt.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a Manager writing below root.
func NewManager(root string, client *http.Client, opts ...Option) *Manager {
	manifest := NewManifestIndex(root)
	m := &Manager{
		root:      root,
		client:    client,
		index:     manifest,
		manifest:  manifest,
		userAgent: defaultUserAgent,
		timeout:   defaultDownloadTimeout,
		maxSize:   defaultMaxDownloadSize,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CompanyDir returns the directory holding company's documents.
func (m *Manager) CompanyDir(company string) string {
	return filepath.Join(m.root, CompanyDirName(company))
}

// Sync stores every link of target that is not already present. Links are
// processed in order; a failing link is recorded and the next one is tried.
// The returned error is non-nil only when the company directory itself is
// unusable, in which case no link was attempted.
func (m *Manager) Sync(ctx context.Context, target model.CompanyTarget, links []model.DocumentLink) (SyncResult, error) {
	result := SyncResult{
		Records: []model.DownloadRecord{},
		Errors:  []model.ErrorEntry{},
	}

	dir := m.CompanyDir(target.Name)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return result, model.NewKindError(model.ErrKindFilesystem, "", fmt.Errorf("failed to create %s: %w", dir, err))
	}
	m.removeStaleTemps(dir)

	claimed := make(map[string]string, len(links))
	for _, link := range links {
		if err := ctx.Err(); err != nil {
			result.Errors = append(result.Errors,
				model.NewErrorEntry(model.StageSynced, model.NewKindError(model.ErrKindNetwork, link.URL, err)))
			break
		}

		rec, isNew, err := m.syncOne(ctx, target, dir, link, claimed)
		if isNew {
			result.New++
		}
		if err != nil {
			m.logger.Warn("download failed", "company", target.Name, "url", link.URL, "error", err)
			result.Errors = append(result.Errors, model.NewErrorEntry(model.StageSynced, err))
			continue
		}
		if rec != nil {
			result.Records = append(result.Records, *rec)
		}
	}

	return result, nil
}

// syncOne handles a single link. It returns the written record (nil when
// the link was already present) and whether the link counted as new.
func (m *Manager) syncOne(ctx context.Context, target model.CompanyTarget, dir string, link model.DocumentLink, claimed map[string]string) (*model.DownloadRecord, bool, error) {
	name, seen := m.resolveName(ctx, target.Name, dir, link, claimed)
	if seen {
		m.logger.Debug("document already present", "company", target.Name, "filename", name)
		return nil, false, nil
	}

	rec, err := m.fetchTo(ctx, target, link, dir, name)
	if errors.Is(err, errAlreadyPresent) {
		return nil, false, nil
	}
	if err != nil {
		return nil, true, err
	}

	if err := m.index.InsertDownload(ctx, rec); err != nil {
		m.logger.Warn("failed to index download", "company", target.Name, "filename", name, "error", err)
	}
	m.logger.Info("downloaded document",
		"company", target.Name,
		"filename", rec.Filename,
		"bytes", rec.SizeBytes,
	)
	return &rec, true, nil
}

// resolveName picks the filename for link and reports whether the
// document is already present.
//
// A link the index already knows keeps its recorded filename. Otherwise the
// derived name is used, suffixed with a short URL hash when another URL
// owns it in the index or earlier in this batch.
func (m *Manager) resolveName(ctx context.Context, company, dir string, link model.DocumentLink, claimed map[string]string) (string, bool) {
	known, err := m.index.LookupByURL(ctx, company, link.URL)
	if err != nil {
		m.logger.Warn("index lookup failed", "company", company, "url", link.URL, "error", err)
	}
	if known != nil {
		claimed[known.Filename] = link.URL
		return known.Filename, fileExists(filepath.Join(dir, known.Filename))
	}

	name := DeriveFilename(link)
	if m.ownedByOther(ctx, company, name, link.URL, claimed) {
		name = withSuffix(name, shortHash(link.URL))
	}
	claimed[name] = link.URL

	return name, fileExists(filepath.Join(dir, name))
}

func (m *Manager) ownedByOther(ctx context.Context, company, name, sourceURL string, claimed map[string]string) bool {
	if owner, ok := claimed[name]; ok && owner != sourceURL {
		return true
	}
	rec, err := m.index.LookupByFilename(ctx, company, name)
	if err != nil {
		m.logger.Warn("index lookup failed", "company", company, "filename", name, "error", err)
		return false
	}
	return rec != nil && rec.SourceURL != sourceURL
}

// fetchTo downloads link into dir/name without ever overwriting an
// existing file.
func (m *Manager) fetchTo(ctx context.Context, target model.CompanyTarget, link model.DocumentLink, dir, name string) (model.DownloadRecord, error) {
	var rec model.DownloadRecord

	if err := m.limiter.WaitURL(ctx, link.URL); err != nil {
		return rec, model.NewKindError(model.ErrKindNetwork, link.URL, err)
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link.URL, nil)
	if err != nil {
		return rec, model.NewKindError(model.ErrKindNetwork, link.URL, err)
	}
	for key, values := range target.RequestHeader() {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	req.Header.Set("User-Agent", m.userAgent)

	resp, err := m.client.Do(req)
	if err != nil {
		return rec, model.NewKindError(model.ErrKindNetwork, link.URL, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusForbidden, resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode == http.StatusUnauthorized:
		return rec, model.NewKindError(model.ErrKindBlocked, link.URL,
			fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode))
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return rec, model.NewKindError(model.ErrKindNetwork, link.URL,
			fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode))
	}

	tmp, err := os.CreateTemp(dir, tempPattern)
	if err != nil {
		return rec, model.NewKindError(model.ErrKindFilesystem, link.URL, err)
	}
	defer os.Remove(tmp.Name())

	h := sha3.New256()
	n, err := io.Copy(io.MultiWriter(tmp, h), io.LimitReader(resp.Body, m.maxSize+1))
	closeErr := tmp.Close()
	if err != nil {
		return rec, model.NewKindError(model.ErrKindNetwork, link.URL, err)
	}
	if n > m.maxSize {
		return rec, model.NewKindError(model.ErrKindNetwork, link.URL, ErrTooLarge)
	}
	if closeErr != nil {
		return rec, model.NewKindError(model.ErrKindFilesystem, link.URL, closeErr)
	}

	if err := placeFile(tmp.Name(), filepath.Join(dir, name)); err != nil {
		if errors.Is(err, errAlreadyPresent) {
			return rec, err
		}
		return rec, model.NewKindError(model.ErrKindFilesystem, link.URL, err)
	}

	return model.DownloadRecord{
		Company:      target.Name,
		Filename:     name,
		SourceURL:    link.URL,
		SizeBytes:    n,
		DownloadedAt: m.now().UTC(),
		ContentHash:  hex.EncodeToString(h.Sum(nil)),
	}, nil
}

// placeFile gives the completed temp file its final name. A hard link is
// tried first; filesystems without hard links fall back to an exclusive
// create and copy. Both fail rather than overwrite.
func placeFile(tmpPath, finalPath string) error {
	err := os.Link(tmpPath, finalPath)
	if err == nil {
		return nil
	}
	if errors.Is(err, fs.ErrExist) {
		return errAlreadyPresent
	}

	dst, err := os.OpenFile(finalPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if errors.Is(err, fs.ErrExist) {
		return errAlreadyPresent
	}
	if err != nil {
		return err
	}
	src, err := os.Open(tmpPath)
	if err != nil {
		dst.Close()
		os.Remove(finalPath)
		return err
	}
	defer src.Close()

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(finalPath)
		return err
	}
	if err := dst.Close(); err != nil {
		os.Remove(finalPath)
		return err
	}
	return nil
}

// removeStaleTemps deletes temp files left by an interrupted run. Callers
// hold the company lock, so no other writer is active in dir.
func (m *Manager) removeStaleTemps(dir string) {
	matches, err := filepath.Glob(filepath.Join(dir, tempPattern))
	if err != nil {
		return
	}
	for _, path := range matches {
		if err := os.Remove(path); err == nil {
			m.logger.Debug("removed stale temp file", "path", path)
		}
	}
}

func fileExists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}
