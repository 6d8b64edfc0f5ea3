package model

import (
	"errors"
	"testing"
)

func TestCompanyTargetValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		target  CompanyTarget
		wantErr error
	}{
		{
			name:   "valid target",
			target: CompanyTarget{Name: "Acme", SeedURLs: []string{"https://acme.example/ir"}},
		},
		{
			name:    "empty name",
			target:  CompanyTarget{Name: "  ", SeedURLs: []string{"https://acme.example/ir"}},
			wantErr: ErrEmptyName,
		},
		{
			name:    "no seed URL",
			target:  CompanyTarget{Name: "Acme"},
			wantErr: ErrNoSeedURL,
		},
		{
			name:    "relative seed URL",
			target:  CompanyTarget{Name: "Acme", SeedURLs: []string{"/ir"}},
			wantErr: ErrInvalidSeedURL,
		},
		{
			name:    "ftp seed URL",
			target:  CompanyTarget{Name: "Acme", SeedURLs: []string{"ftp://acme.example/ir"}},
			wantErr: ErrInvalidSeedURL,
		},
		{
			name:    "issue set by loader",
			target:  CompanyTarget{Name: "Acme", SeedURLs: []string{"https://acme.example/ir"}, Issue: ErrDuplicateName},
			wantErr: ErrDuplicateName,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.target.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if KindOf(err) != ErrKindConfiguration {
				t.Errorf("expected configuration kind, got %s", KindOf(err))
			}
		})
	}
}

func TestCompanyTargetHasTicker(t *testing.T) {
	t.Parallel()

	if (CompanyTarget{Ticker: "SOFI"}).HasTicker() != true {
		t.Error("expected ticker to be reported")
	}
	if (CompanyTarget{}).HasTicker() {
		t.Error("expected no ticker")
	}
}

func TestCompanyTargetRequestHeader(t *testing.T) {
	t.Parallel()

	target := CompanyTarget{
		Headers: map[string]string{"referer": "https://example.com/"},
		Cookie:  "session=abc",
	}
	h := target.RequestHeader()
	if got := h.Get("Referer"); got != "https://example.com/" {
		t.Errorf("expected canonical Referer header, got %q", got)
	}
	if got := h.Get("Cookie"); got != "session=abc" {
		t.Errorf("expected cookie header, got %q", got)
	}

	if len((CompanyTarget{}).RequestHeader()) != 0 {
		t.Error("expected empty header for plain target")
	}
}
