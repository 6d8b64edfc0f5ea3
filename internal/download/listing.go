package download

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Document is a stored file as seen on disk.
type Document struct {
	Name    string
	Size    int64
	ModTime time.Time
}

// ListCompanies returns the company directories under root, sorted by
// name. Hidden entries (the lock directory among them) are skipped. A
// missing root yields an empty list.
func ListCompanies(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}

	companies := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() && !hidden(e.Name()) {
			companies = append(companies, e.Name())
		}
	}
	sort.Strings(companies)
	return companies, nil
}

// ListDocuments returns the visible files in dir, newest first. A missing
// dir yields an empty list: the company has no files yet.
func ListDocuments(dir string) ([]Document, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []Document{}, nil
	}
	if err != nil {
		return nil, err
	}

	docs := make([]Document, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || hidden(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		docs = append(docs, Document{
			Name:    e.Name(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].ModTime.Equal(docs[j].ModTime) {
			return docs[i].Name < docs[j].Name
		}
		return docs[i].ModTime.After(docs[j].ModTime)
	})
	return docs, nil
}

// Resolve maps a company and file name from a request to a path inside
// root. It rejects hidden names and anything that would escape root.
func Resolve(root, company, name string) (string, bool) {
	if company == "" || name == "" || hidden(company) || hidden(name) {
		return "", false
	}
	if strings.ContainsAny(company+name, `/\`) || filepath.Base(name) != name {
		return "", false
	}
	return filepath.Join(root, company, name), true
}

func hidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
