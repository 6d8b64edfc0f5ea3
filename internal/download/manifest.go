package download

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/nao1215/irharvest/internal/model"
)

// manifestName is the per-company file recording which URL each stored
// document came from. The leading dot keeps it out of listings.
const manifestName = ".index.json"

// ManifestIndex is an Index kept as a JSON file inside each company
// directory. It survives without the history database, so filenames
// chosen for colliding URLs stay bound to their URL across runs.
type ManifestIndex struct {
	root string
	mu   sync.Mutex
}

type manifest struct {
	Documents []model.DownloadRecord `json:"documents"`
}

// NewManifestIndex creates an index for the company directories below root.
func NewManifestIndex(root string) *ManifestIndex {
	return &ManifestIndex{root: root}
}

func (ix *ManifestIndex) path(company string) string {
	return filepath.Join(ix.root, CompanyDirName(company), manifestName)
}

// LookupByURL returns the record stored for sourceURL, or nil.
func (ix *ManifestIndex) LookupByURL(_ context.Context, company, sourceURL string) (*model.DownloadRecord, error) {
	return ix.find(company, func(r model.DownloadRecord) bool { return r.SourceURL == sourceURL })
}

// LookupByFilename returns the record stored under filename, or nil.
func (ix *ManifestIndex) LookupByFilename(_ context.Context, company, filename string) (*model.DownloadRecord, error) {
	return ix.find(company, func(r model.DownloadRecord) bool { return r.Filename == filename })
}

// InsertDownload records rec, replacing an earlier record for the same file.
func (ix *ManifestIndex) InsertDownload(_ context.Context, rec model.DownloadRecord) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	m, err := ix.load(rec.Company)
	if err != nil {
		return err
	}
	replaced := false
	for i := range m.Documents {
		if m.Documents[i].Filename == rec.Filename {
			m.Documents[i] = rec
			replaced = true
			break
		}
	}
	if !replaced {
		m.Documents = append(m.Documents, rec)
	}
	return ix.save(rec.Company, m)
}

func (ix *ManifestIndex) find(company string, match func(model.DownloadRecord) bool) (*model.DownloadRecord, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	m, err := ix.load(company)
	if err != nil {
		return nil, err
	}
	for _, r := range m.Documents {
		if match(r) {
			rec := r
			return &rec, nil
		}
	}
	return nil, nil
}

// load reads the manifest of company. A missing file is an empty manifest.
func (ix *ManifestIndex) load(company string) (*manifest, error) {
	data, err := os.ReadFile(ix.path(company))
	if errors.Is(err, fs.ErrNotExist) {
		return &manifest{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", ix.path(company), err)
	}
	return &m, nil
}

// save replaces the manifest through a temp file and rename, so readers
// see either the old or the new version.
func (ix *ManifestIndex) save(company string, m *manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}

	final := ix.path(company)
	tmp, err := os.CreateTemp(filepath.Dir(final), tempPattern)
	if err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	defer os.Remove(tmp.Name())

	_, err = tmp.Write(data)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return os.Rename(tmp.Name(), final)
}

// chainIndex consults each index in order and records into all of them.
type chainIndex []Index

func (c chainIndex) LookupByURL(ctx context.Context, company, sourceURL string) (*model.DownloadRecord, error) {
	return c.lookup(func(idx Index) (*model.DownloadRecord, error) {
		return idx.LookupByURL(ctx, company, sourceURL)
	})
}

func (c chainIndex) LookupByFilename(ctx context.Context, company, filename string) (*model.DownloadRecord, error) {
	return c.lookup(func(idx Index) (*model.DownloadRecord, error) {
		return idx.LookupByFilename(ctx, company, filename)
	})
}

func (c chainIndex) lookup(fn func(Index) (*model.DownloadRecord, error)) (*model.DownloadRecord, error) {
	var errs []error
	for _, idx := range c {
		rec, err := fn(idx)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if rec != nil {
			return rec, nil
		}
	}
	return nil, errors.Join(errs...)
}

func (c chainIndex) InsertDownload(ctx context.Context, rec model.DownloadRecord) error {
	var errs []error
	for _, idx := range c {
		if err := idx.InsertDownload(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
