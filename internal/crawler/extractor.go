package crawler

import (
	"bytes"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/nao1215/irharvest/internal/model"
)

// DefaultExtensions are the file extensions treated as documents.
var DefaultExtensions = []string{
	"pdf", "xlsx", "xls", "csv", "docx", "doc", "zip", "ppt", "pptx",
}

// DefaultKeywords mark document-like paths that have no document extension,
// such as press release pages.
var DefaultKeywords = []string{
	"filing", "report", "press-release", "quarterly", "annual",
}

// linkSelector matches every element that can point at a document.
const linkSelector = "a[href], area[href], iframe[src], embed[src], object[data]"

// Extractor finds document links in usable pages.
type Extractor struct {
	extensions map[string]struct{}
	keywords   []string
	now        func() time.Time
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithExtensions replaces the document extension list.
func WithExtensions(exts []string) ExtractorOption {
	return func(e *Extractor) {
		e.extensions = make(map[string]struct{}, len(exts))
		for _, ext := range exts {
			e.extensions[strings.ToLower(strings.TrimPrefix(ext, "."))] = struct{}{}
		}
	}
}

// WithKeywords replaces the path keyword list.
func WithKeywords(keywords []string) ExtractorOption {
	return func(e *Extractor) {
		e.keywords = make([]string, 0, len(keywords))
		for _, k := range keywords {
			e.keywords = append(e.keywords, strings.ToLower(k))
		}
	}
}

// WithClock sets the time source used for DiscoveredAt.
func WithClock(now func() time.Time) ExtractorOption {
	return func(e *Extractor) {
		e.now = now
	}
}

// NewExtractor creates an Extractor with the default patterns.
func NewExtractor(opts ...ExtractorOption) *Extractor {
	e := &Extractor{now: time.Now}
	WithExtensions(DefaultExtensions)(e)
	WithKeywords(DefaultKeywords)(e)
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract returns the document links in result's body, in document order,
// deduplicated by URL. Non-usable results and unparsable bodies yield an
// empty slice; Extract never fails.
func (e *Extractor) Extract(result *model.FetchResult) []model.DocumentLink {
	links := []model.DocumentLink{}
	if !result.Usable() {
		return links
	}

	base, err := url.Parse(result.FinalURL)
	if err != nil {
		return links
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(result.Body))
	if err != nil {
		return links
	}

	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if b, err := base.Parse(strings.TrimSpace(href)); err == nil {
			base = b
		}
	}

	discovered := e.now().UTC()
	seen := make(map[string]struct{})

	doc.Find(linkSelector).Each(func(_ int, s *goquery.Selection) {
		raw := linkTarget(s)
		resolved, ok := resolve(base, raw)
		if !ok || !e.isDocument(resolved) {
			return
		}

		key := resolved.String()
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}

		label := linkLabel(s)
		links = append(links, model.DocumentLink{
			URL:          key,
			Label:        label,
			DiscoveredAt: discovered,
			Date:         InferDate(label, resolved.Path),
		})
	})

	return links
}

// isDocument reports whether u looks like a downloadable document.
func (e *Extractor) isDocument(u *url.URL) bool {
	p := strings.ToLower(u.Path)
	if ext := strings.TrimPrefix(path.Ext(p), "."); ext != "" {
		if _, ok := e.extensions[ext]; ok {
			return true
		}
	}
	for _, k := range e.keywords {
		if strings.Contains(p, k) {
			return true
		}
	}
	return false
}

func linkTarget(s *goquery.Selection) string {
	for _, attr := range []string{"href", "src", "data"} {
		if v, ok := s.Attr(attr); ok {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// resolve makes raw absolute against base and drops the fragment.
// Only http and https results are accepted.
func resolve(base *url.URL, raw string) (*url.URL, bool) {
	if raw == "" || strings.HasPrefix(raw, "#") {
		return nil, false
	}
	u, err := base.Parse(raw)
	if err != nil {
		return nil, false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, false
	}
	if u.Host == "" {
		return nil, false
	}
	u.Fragment = ""
	u.RawFragment = ""
	return u, true
}

// linkLabel returns the visible text of the element, falling back to the
// title, aria-label and image alt text.
func linkLabel(s *goquery.Selection) string {
	if text := collapseSpace(s.Text()); text != "" {
		return text
	}
	for _, attr := range []string{"title", "aria-label"} {
		if v := collapseSpace(s.AttrOr(attr, "")); v != "" {
			return v
		}
	}
	return collapseSpace(s.Find("img[alt]").First().AttrOr("alt", ""))
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
