package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LoadRoster loads the target roster from a YAML file.
// A missing file returns ErrRosterNotFound; a file listing no companies
// returns ErrEmptyRoster. Malformed individual entries are not rejected
// here: they fail at run time as configuration errors for that target.
func LoadRoster(path string) (*Roster, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided roster path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRosterNotFound, path)
		}
		return nil, err
	}

	return ParseRoster(data)
}

// ParseRoster parses roster YAML.
func ParseRoster(data []byte) (*Roster, error) {
	var r Roster
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse roster: %w", err)
	}
	if len(r.Companies) == 0 {
		return nil, ErrEmptyRoster
	}
	return &r, nil
}

// FindRosterFile searches for the roster in the following order:
// 1. If rosterPath is specified, use it directly
// 2. Look for roster.yaml in the current directory
// 3. Look for roster.yaml in the XDG config directory
//
// Returns the path to the roster file if found, or empty string if not found.
func FindRosterFile(rosterPath string) string {
	if rosterPath != "" {
		if _, err := os.Stat(rosterPath); err == nil {
			return rosterPath
		}
		return ""
	}

	if cwd, err := os.Getwd(); err == nil {
		candidate := filepath.Join(cwd, DefaultRosterFile)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}

	candidate := filepath.Join(XDGConfigDir(), DefaultRosterFile)
	if _, err := os.Stat(candidate); err == nil {
		return candidate
	}

	return ""
}
