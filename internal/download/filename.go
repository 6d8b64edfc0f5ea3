package download

import (
	"net/url"
	"path"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/nao1215/irharvest/internal/model"
)

const (
	// maxFilenameLen keeps names well under common filesystem limits
	// after a collision suffix is added.
	maxFilenameLen = 180

	fallbackFilename = "document"
)

// DeriveFilename returns the filesystem-safe filename for link. The last
// URL path segment is preferred, then the label. URLs with a query string
// get a short hash of the URL appended, since the path alone rarely
// identifies the document (download.aspx?id=42).
func DeriveFilename(link model.DocumentLink) string {
	u, err := url.Parse(link.URL)
	if err != nil {
		return sanitizeFilename(link.Label)
	}

	base := path.Base(u.Path)
	if base == "." || base == "/" {
		base = ""
	}
	if base == "" {
		base = link.Label
	}

	name := sanitizeFilename(base)
	if u.RawQuery != "" {
		name = withSuffix(name, shortHash(link.URL))
	}
	return name
}

// CompanyDirName maps a company name to its directory name. Letters,
// digits, spaces and "-_.&" are kept; anything else becomes "_".
// Leading dots are dropped so the directory is never hidden.
func CompanyDirName(company string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(company) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == ' ', r == '-', r == '_', r == '.', r == '&':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	name := strings.TrimLeft(b.String(), ". ")
	if name == "" {
		return "_"
	}
	return name
}

// sanitizeFilename folds s to ASCII and keeps only [A-Za-z0-9._-].
// Runs of other characters collapse into a single "-". The extension is
// lowercased and preserved when the name is truncated.
func sanitizeFilename(s string) string {
	folded, _, err := transform.String(
		transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC),
		s,
	)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	dash := false
	for _, r := range folded {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.' || r == '_' || r == '-') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash {
			b.WriteByte('-')
			dash = true
		}
	}

	name := strings.Trim(b.String(), "-._")
	if name == "" {
		return fallbackFilename
	}

	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	ext = strings.ToLower(ext)
	if len(stem)+len(ext) > maxFilenameLen {
		stem = strings.TrimRight(stem[:maxFilenameLen-len(ext)], "-._")
	}
	return stem + ext
}

// withSuffix inserts "-suffix" before the extension of name.
func withSuffix(name, suffix string) string {
	ext := path.Ext(name)
	return strings.TrimSuffix(name, ext) + "-" + suffix + ext
}
