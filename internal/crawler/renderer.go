package crawler

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/nao1215/irharvest/internal/model"
)

// ErrNoBrowser is returned by FindBrowser when no Chrome or Chromium
// executable can be located.
var ErrNoBrowser = errors.New("no chrome or chromium executable found")

// browserCandidates are the executable names searched in PATH.
var browserCandidates = []string{
	"google-chrome",
	"google-chrome-stable",
	"chromium",
	"chromium-browser",
	"headless-shell",
	"chrome",
}

// FindBrowser returns the path of a usable browser executable. An explicit
// path is checked as-is; otherwise PATH is searched.
func FindBrowser(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", errors.Join(ErrNoBrowser, err)
		}
		return explicit, nil
	}
	for _, name := range browserCandidates {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	return "", ErrNoBrowser
}

// ChromeRenderer loads pages in headless Chrome and returns the rendered DOM.
type ChromeRenderer struct {
	execPath    string
	userAgent   string
	timeout     time.Duration
	settle      time.Duration
	minBodySize int
	logger      *slog.Logger
}

// RendererOption configures a ChromeRenderer.
type RendererOption func(*ChromeRenderer)

// WithRenderTimeout bounds each render, including browser start-up.
func WithRenderTimeout(d time.Duration) RendererOption {
	return func(r *ChromeRenderer) {
		r.timeout = d
	}
}

// WithRenderUserAgent sets the browser's User-Agent.
func WithRenderUserAgent(ua string) RendererOption {
	return func(r *ChromeRenderer) {
		r.userAgent = ua
	}
}

// WithSettleTime sets how long to wait after load for scripts to populate the page.
func WithSettleTime(d time.Duration) RendererOption {
	return func(r *ChromeRenderer) {
		r.settle = d
	}
}

// WithRenderMinBodySize sets the Empty classification threshold.
func WithRenderMinBodySize(size int) RendererOption {
	return func(r *ChromeRenderer) {
		r.minBodySize = size
	}
}

// WithRendererLogger sets a custom logger.
func WithRendererLogger(logger *slog.Logger) RendererOption {
	return func(r *ChromeRenderer) {
		r.logger = logger
	}
}

// NewChromeRenderer creates a renderer that runs the browser at execPath.
// An empty execPath lets chromedp pick its default.
func NewChromeRenderer(execPath string, opts ...RendererOption) *ChromeRenderer {
	r := &ChromeRenderer{
		execPath:    execPath,
		userAgent:   defaultUserAgent,
		timeout:     60 * time.Second,
		settle:      2 * time.Second,
		minBodySize: defaultMinBodySize,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render loads pageURL in a fresh headless browser. Like Fetcher.Fetch it
// never fails: browser errors and timeouts become StatusNetworkError.
func (r *ChromeRenderer) Render(ctx context.Context, pageURL string) *model.FetchResult {
	result := &model.FetchResult{
		FinalURL:   pageURL,
		FetchedVia: model.FetchedRendered,
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(r.userAgent),
	)
	if r.execPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(r.execPath))
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	var html, finalURL string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body"),
		chromedp.Sleep(r.settle),
		chromedp.Location(&finalURL),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		r.logger.Debug("render failed", "url", pageURL, "error", err)
		return networkError(result, err)
	}

	if finalURL != "" {
		result.FinalURL = finalURL
	}
	result.Body = []byte(html)
	result.Status, result.Reason = Classify(0, result.Body, r.minBodySize)

	r.logger.Debug("rendered page",
		"url", pageURL,
		"final_url", result.FinalURL,
		"status", result.Status,
		"bytes", len(html),
	)

	return result
}
