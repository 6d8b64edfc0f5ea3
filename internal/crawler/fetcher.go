package crawler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/nao1215/irharvest/internal/model"
	"github.com/nao1215/irharvest/internal/transport"
)

// Default Fetcher settings, overridden through options.
const (
	defaultUserAgent   = "Mozilla/5.0 (FintechScraper/1.0)"
	defaultTimeout     = 30 * time.Second
	defaultMaxBodySize = 10 * 1024 * 1024
	defaultMinBodySize = 512
)

// Fetcher performs a single GET per seed page and classifies the response.
type Fetcher struct {
	client      *http.Client
	userAgent   string
	timeout     time.Duration
	maxBodySize int64
	minBodySize int
	limiter     *transport.HostLimiter
	logger      *slog.Logger
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) FetcherOption {
	return func(f *Fetcher) {
		f.userAgent = ua
	}
}

// WithTimeout bounds each fetch.
func WithTimeout(d time.Duration) FetcherOption {
	return func(f *Fetcher) {
		f.timeout = d
	}
}

// WithMaxBodySize caps how many body bytes are read.
func WithMaxBodySize(size int64) FetcherOption {
	return func(f *Fetcher) {
		f.maxBodySize = size
	}
}

// WithMinBodySize sets the Empty classification threshold.
func WithMinBodySize(size int) FetcherOption {
	return func(f *Fetcher) {
		f.minBodySize = size
	}
}

// WithHostLimiter makes every fetch wait for the host's rate limit.
func WithHostLimiter(hl *transport.HostLimiter) FetcherOption {
	return func(f *Fetcher) {
		f.limiter = hl
	}
}

// WithFetcherLogger sets a custom logger.
func WithFetcherLogger(logger *slog.Logger) FetcherOption {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// NewFetcher creates a Fetcher using client for all requests.
func NewFetcher(client *http.Client, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		client:      client,
		userAgent:   defaultUserAgent,
		timeout:     defaultTimeout,
		maxBodySize: defaultMaxBodySize,
		minBodySize: defaultMinBodySize,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch retrieves pageURL and classifies the response. header carries
// per-target extra headers and may be nil. Fetch never fails: transport
// errors become StatusNetworkError.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string, header http.Header) *model.FetchResult {
	result := &model.FetchResult{
		FinalURL:   pageURL,
		FetchedVia: model.FetchedDirect,
	}

	if err := f.limiter.WaitURL(ctx, pageURL); err != nil {
		return networkError(result, err)
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return networkError(result, err)
	}
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	req.Header.Set("User-Agent", f.userAgent)
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	}
	if req.Header.Get("Accept-Language") == "" {
		req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return networkError(result, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize))
	if err != nil {
		return networkError(result, err)
	}

	if resp.Request != nil && resp.Request.URL != nil {
		result.FinalURL = resp.Request.URL.String()
	}
	result.StatusCode = resp.StatusCode
	result.Body = body
	result.Status, result.Reason = Classify(resp.StatusCode, body, f.minBodySize)

	f.logger.Debug("fetched page",
		"url", pageURL,
		"final_url", result.FinalURL,
		"status", result.Status,
		"reason", result.Reason,
	)

	return result
}

func networkError(result *model.FetchResult, err error) *model.FetchResult {
	result.Status = model.StatusNetworkError
	result.Reason = err.Error()
	result.Body = nil
	return result
}
