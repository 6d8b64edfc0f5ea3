package config

import (
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "irharvest"

	// DefaultUserAgent is a browser-like identity. Several IR hosting
	// platforms reject requests that do not look like a browser.
	DefaultUserAgent = "Mozilla/5.0 (FintechScraper/1.0)"

	// DefaultTimeout bounds each direct page fetch and each document download.
	DefaultTimeout = 30 * time.Second

	// DefaultDownloadTimeout bounds one document transfer.
	DefaultDownloadTimeout = 2 * time.Minute

	// DefaultRenderTimeout bounds one headless-browser render, including
	// script execution and dynamic content loading.
	DefaultRenderTimeout = 60 * time.Second

	// DefaultConcurrencyLimit is the number of targets processed at once.
	DefaultConcurrencyLimit = 4

	// DefaultMaxBodySize caps how much of a seed page is read.
	DefaultMaxBodySize = 10 * 1024 * 1024 // 10MB

	// DefaultMaxDownloadSize caps a single downloaded document.
	DefaultMaxDownloadSize = 200 * 1024 * 1024 // 200MB

	// DefaultMinBodySize is the body length below which a 2xx page is
	// classified as Empty.
	DefaultMinBodySize = 512

	// DefaultRequestsPerSecond is the per-host request rate.
	DefaultRequestsPerSecond = 2.0

	// DefaultRosterFile is the roster file name searched for by FindRosterFile.
	DefaultRosterFile = "roster.yaml"
)

// Config holds all configuration options for an acquisition run.
type Config struct {
	// UserAgent is the User-Agent header sent with every request.
	UserAgent string

	// Timeout is the per-request timeout for fetches and downloads.
	Timeout time.Duration

	// DownloadTimeout is the per-document timeout for downloads.
	DownloadTimeout time.Duration

	// RenderTimeout is the per-page timeout for the renderer fallback.
	RenderTimeout time.Duration

	// RendererEnabled turns on the headless-browser fallback. When false,
	// or when no browser is found, Blocked and Empty fetch results are final.
	RendererEnabled bool

	// ChromePath is an optional Chrome/Chromium executable for the renderer.
	// Empty means chromedp's own lookup.
	ChromePath string

	// ConcurrencyLimit is the maximum number of targets run concurrently.
	ConcurrencyLimit int

	// OutputRoot is the directory holding one subdirectory per company.
	OutputRoot string

	// DBDir is the directory of the SQLite dedup index and report history.
	DBDir string

	// SaveToDB enables the SQLite index. When false, deduplication relies on
	// the directory listing alone and reports are not kept.
	SaveToDB bool

	// ProxyAddress is an optional SOCKS5 proxy in "host:port" form.
	ProxyAddress string

	// MaxBodySize is the maximum seed page body size in bytes.
	MaxBodySize int64

	// MaxDownloadSize is the maximum document size in bytes.
	MaxDownloadSize int64

	// MinBodySize is the Empty classification threshold in bytes.
	MinBodySize int

	// RequestsPerSecond limits requests per host across all targets.
	RequestsPerSecond float64

	// Every re-runs the roster on a fixed cadence when positive.
	Every time.Duration

	// Verbose enables debug logging.
	Verbose bool

	// LogJSON switches log output to JSON.
	LogJSON bool

	// RosterPath is the roster file given on the command line, if any.
	RosterPath string

	// Only restricts a run to the named companies.
	Only []string

	// JSONReport and MarkdownReport select the report format; both false
	// means the human-readable text format.
	JSONReport     bool
	MarkdownReport bool

	// ReportFile writes the report to a file instead of stdout.
	ReportFile string
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		UserAgent:         DefaultUserAgent,
		Timeout:           DefaultTimeout,
		DownloadTimeout:   DefaultDownloadTimeout,
		RenderTimeout:     DefaultRenderTimeout,
		RendererEnabled:   true,
		ConcurrencyLimit:  DefaultConcurrencyLimit,
		OutputRoot:        DefaultOutputRoot(),
		DBDir:             XDGDataDir(),
		SaveToDB:          true,
		MaxBodySize:       DefaultMaxBodySize,
		MaxDownloadSize:   DefaultMaxDownloadSize,
		MinBodySize:       DefaultMinBodySize,
		RequestsPerSecond: DefaultRequestsPerSecond,
	}
}

// XDGDataDir returns the XDG data directory for irharvest.
// On Linux: ~/.local/share/irharvest
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for irharvest.
// On Linux: ~/.config/irharvest
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// DefaultOutputRoot is where documents land unless --output-root is given.
func DefaultOutputRoot() string {
	return filepath.Join(XDGDataDir(), "data")
}

// Validate checks if the configuration is valid and returns the first
// problem found.
func (c *Config) Validate() error {
	if c.Timeout <= 0 || c.DownloadTimeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.RendererEnabled && c.RenderTimeout <= 0 {
		return ErrInvalidRenderTimeout
	}
	if c.ConcurrencyLimit <= 0 {
		return ErrInvalidConcurrency
	}
	if strings.TrimSpace(c.OutputRoot) == "" {
		return ErrNoOutputRoot
	}
	if c.SaveToDB && strings.TrimSpace(c.DBDir) == "" {
		return ErrNoDBDir
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	if c.MaxBodySize < 0 || c.MaxDownloadSize < 0 {
		return ErrInvalidMaxBodySize
	}
	if c.MinBodySize < 0 {
		return ErrInvalidMinBodySize
	}
	if c.RequestsPerSecond <= 0 {
		return ErrInvalidRate
	}
	if c.Every < 0 {
		return ErrInvalidInterval
	}
	if c.ProxyAddress != "" && !IsValidProxyAddress(c.ProxyAddress) {
		return ErrInvalidProxyAddress
	}
	return nil
}

// IsValidProxyAddress checks for a "host:port" address with a port in 1-65535.
func IsValidProxyAddress(address string) bool {
	host, port, ok := strings.Cut(address, ":")
	if !ok || host == "" || strings.Contains(port, ":") {
		return false
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return false
	}
	return n >= 1 && n <= 65535
}
