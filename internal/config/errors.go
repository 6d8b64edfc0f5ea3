package config

import "errors"

// Configuration validation errors returned by Config.Validate.
var (
	// ErrInvalidTimeout is returned when the request timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidRenderTimeout is returned when rendering is enabled with a
	// non-positive render timeout.
	ErrInvalidRenderTimeout = errors.New("invalid render timeout: must be positive")

	// ErrInvalidConcurrency is returned when the concurrency limit is not positive.
	ErrInvalidConcurrency = errors.New("invalid concurrency limit: must be positive")

	// ErrNoOutputRoot is returned when no output directory is configured.
	ErrNoOutputRoot = errors.New("no output root specified")

	// ErrNoDBDir is returned when the index is enabled without a directory.
	ErrNoDBDir = errors.New("no database directory specified")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrInvalidMaxBodySize is returned when a size limit is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrInvalidMinBodySize is returned when the empty threshold is negative.
	ErrInvalidMinBodySize = errors.New("invalid min body size: must be non-negative")

	// ErrInvalidRate is returned when the per-host request rate is not positive.
	ErrInvalidRate = errors.New("invalid request rate: must be positive")

	// ErrInvalidInterval is returned when --every is negative.
	ErrInvalidInterval = errors.New("invalid interval: must be non-negative")

	// ErrInvalidProxyAddress is returned when the proxy is not "host:port".
	ErrInvalidProxyAddress = errors.New("invalid proxy address: must be host:port")
)

// Roster loading errors. Any of these is fatal to the process.
var (
	// ErrRosterNotFound is returned when the roster file does not exist.
	ErrRosterNotFound = errors.New("roster file not found")

	// ErrEmptyRoster is returned when the roster lists no companies.
	ErrEmptyRoster = errors.New("roster lists no companies")

	// ErrUnknownCompany is returned when a requested company is not in the roster.
	ErrUnknownCompany = errors.New("company not in roster")
)
