package model

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind is the error taxonomy of the acquisition core.
type ErrorKind string

const (
	// ErrKindNetwork is a transient connectivity or timeout failure.
	ErrKindNetwork ErrorKind = "network"
	// ErrKindBlocked is a server-side rejection such as an anti-bot wall.
	ErrKindBlocked ErrorKind = "blocked"
	// ErrKindEmptyContent means a page had no extractable content even after fallback.
	ErrKindEmptyContent ErrorKind = "empty_content"
	// ErrKindFilesystem is a write or permission failure.
	ErrKindFilesystem ErrorKind = "filesystem"
	// ErrKindConfiguration is a malformed roster entry.
	ErrKindConfiguration ErrorKind = "configuration"
)

// Target configuration errors wrapped by CompanyTarget.Validate.
var (
	ErrEmptyName      = errors.New("company name is empty")
	ErrNoSeedURL      = errors.New("no seed URL configured")
	ErrInvalidSeedURL = errors.New("seed URL must be absolute http(s)")
	ErrDuplicateName  = errors.New("duplicate company name in roster")
)

// KindError attaches an ErrorKind and the offending URL to an error.
type KindError struct {
	Kind ErrorKind
	URL  string
	Err  error
}

// NewKindError wraps err with a kind and URL.
func NewKindError(kind ErrorKind, url string, err error) *KindError {
	return &KindError{Kind: kind, URL: url, Err: err}
}

func (e *KindError) Error() string {
	if e.URL != "" {
		return fmt.Sprintf("%s error for %s: %v", e.Kind, e.URL, e.Err)
	}
	return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
}

func (e *KindError) Unwrap() error {
	return e.Err
}

// KindOf returns the ErrorKind carried by err, or ErrKindNetwork when err
// carries none. Unknown failures during a fetch are treated as transient.
func KindOf(err error) ErrorKind {
	var ke *KindError
	if errors.As(err, &ke) {
		return ke.Kind
	}
	return ErrKindNetwork
}

// ErrorEntry is one recorded failure in a FetchReport.
type ErrorEntry struct {
	Kind    ErrorKind `json:"kind"`
	Stage   Stage     `json:"stage"`
	URL     string    `json:"url,omitempty"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// NewErrorEntry builds an entry from err, taking kind and URL from a
// *KindError when present.
func NewErrorEntry(stage Stage, err error) ErrorEntry {
	entry := ErrorEntry{
		Kind:    KindOf(err),
		Stage:   stage,
		Message: err.Error(),
		Time:    time.Now().UTC(),
	}
	var ke *KindError
	if errors.As(err, &ke) {
		entry.URL = ke.URL
		entry.Message = ke.Err.Error()
	}
	return entry
}
