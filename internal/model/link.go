package model

import "time"

// DocumentLink is a candidate downloadable document discovered on a seed page.
type DocumentLink struct {
	// URL is absolute, resolved against the page's final URL, without fragment.
	URL string `json:"url"`

	// Label is the anchor text (or title attribute) with whitespace collapsed.
	Label string `json:"label,omitempty"`

	// DiscoveredAt is when the extractor saw the link.
	DiscoveredAt time.Time `json:"discovered_at"`

	// Date is the publication date inferred from the label or URL, if any.
	Date time.Time `json:"date,omitzero"`
}
