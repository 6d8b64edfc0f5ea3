package model

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// CompanyTarget is one company's configuration for acquisition.
// Targets are loaded once per run and never modified afterwards.
type CompanyTarget struct {
	// Name identifies the company. It is unique within a roster and is
	// also the name of the company's directory under the output root.
	Name string `yaml:"name" json:"name"`

	// SeedURLs are the investor-relations pages scraped for documents,
	// visited in order.
	SeedURLs []string `yaml:"seed_urls" json:"seed_urls"`

	// Ticker is the optional market symbol. It is passed through unmodified.
	Ticker string `yaml:"ticker,omitempty" json:"ticker,omitempty"`

	// Headers are extra HTTP headers sent with every request for this target.
	Headers map[string]string `yaml:"headers,omitempty" json:"-"`

	// Cookie is an optional Cookie header value for this target.
	Cookie string `yaml:"cookie,omitempty" json:"-"`

	// Render forces the renderer fallback even when the direct fetch was usable.
	Render bool `yaml:"render,omitempty" json:"render,omitempty"`

	// Issue is set by the roster loader when the entry is rejected as a whole,
	// e.g. a duplicate name. It is reported as a configuration error.
	Issue error `yaml:"-" json:"-"`
}

// Validate checks the target for problems that make a run impossible.
// The returned error is always a *KindError of kind ErrKindConfiguration.
func (t CompanyTarget) Validate() error {
	if t.Issue != nil {
		return NewKindError(ErrKindConfiguration, "", t.Issue)
	}
	if strings.TrimSpace(t.Name) == "" {
		return NewKindError(ErrKindConfiguration, "", ErrEmptyName)
	}
	if len(t.SeedURLs) == 0 {
		return NewKindError(ErrKindConfiguration, "", ErrNoSeedURL)
	}
	for _, raw := range t.SeedURLs {
		u, err := url.Parse(raw)
		if err != nil {
			return NewKindError(ErrKindConfiguration, raw, fmt.Errorf("invalid seed URL: %w", err))
		}
		if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return NewKindError(ErrKindConfiguration, raw, ErrInvalidSeedURL)
		}
	}
	return nil
}

// HasTicker reports whether the company is publicly traded.
func (t CompanyTarget) HasTicker() bool {
	return t.Ticker != ""
}

// RequestHeader builds the extra request headers for this target,
// including the Cookie header when one is configured.
func (t CompanyTarget) RequestHeader() http.Header {
	h := make(http.Header, len(t.Headers)+1)
	for k, v := range t.Headers {
		h.Set(k, v)
	}
	if t.Cookie != "" {
		h.Set("Cookie", t.Cookie)
	}
	return h
}
