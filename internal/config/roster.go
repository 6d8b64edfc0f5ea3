package config

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/nao1215/irharvest/internal/download"
	"github.com/nao1215/irharvest/internal/model"
)

// TargetDefaults are applied to every company unless overridden per entry.
type TargetDefaults struct {
	// Headers are merged under each company's own headers.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Cookie is used when a company sets none.
	Cookie string `yaml:"cookie,omitempty"`

	// Render forces the renderer fallback for every company.
	Render bool `yaml:"render,omitempty"`
}

// Roster is the structure of the roster YAML file.
type Roster struct {
	// Defaults contains settings applied to all companies.
	Defaults TargetDefaults `yaml:"defaults,omitempty"`

	// Companies is the ordered list of acquisition targets.
	Companies []model.CompanyTarget `yaml:"companies"`
}

// Targets returns the roster's companies with defaults merged in.
// The result is a fresh copy; callers may not observe later changes to r.
//
// Entries sharing a name with an earlier entry are kept but carry
// model.ErrDuplicateName in Issue, so they fail as configuration errors
// without affecting the first occurrence.
//
// If only is non-empty, just the named companies are returned, in roster
// order. A name that matches no entry returns ErrUnknownCompany.
func (r *Roster) Targets(only ...string) ([]model.CompanyTarget, error) {
	for _, name := range only {
		if !slices.ContainsFunc(r.Companies, func(t model.CompanyTarget) bool {
			return strings.TrimSpace(t.Name) == name
		}) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownCompany, name)
		}
	}

	seen := make(map[string]bool, len(r.Companies))
	targets := make([]model.CompanyTarget, 0, len(r.Companies))
	for _, c := range r.Companies {
		t := r.merge(c)
		// Names that differ but share a directory would share files and a lock.
		if t.Name != "" {
			dir := download.CompanyDirName(t.Name)
			if seen[dir] {
				t.Issue = model.ErrDuplicateName
			}
			seen[dir] = true
		}
		if len(only) > 0 && !slices.Contains(only, t.Name) {
			continue
		}
		targets = append(targets, t)
	}
	return targets, nil
}

// merge returns a copy of c with defaults applied.
func (r *Roster) merge(c model.CompanyTarget) model.CompanyTarget {
	t := c
	t.Name = strings.TrimSpace(c.Name)
	t.SeedURLs = slices.Clone(c.SeedURLs)

	headers := make(map[string]string, len(r.Defaults.Headers)+len(c.Headers))
	maps.Copy(headers, r.Defaults.Headers)
	maps.Copy(headers, c.Headers)
	t.Headers = headers

	if t.Cookie == "" {
		t.Cookie = r.Defaults.Cookie
	}
	if r.Defaults.Render {
		t.Render = true
	}
	return t
}
