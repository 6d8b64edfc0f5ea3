package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/cookiejar"
	"time"

	"golang.org/x/net/proxy"
)

// maxRedirects limits redirect chains; IR platforms commonly redirect a
// bare domain to a localized landing page, but never deeply.
const maxRedirects = 10

// ErrTooManyRedirects is returned when a redirect chain exceeds maxRedirects.
var ErrTooManyRedirects = errors.New("stopped after too many redirects")

// Options configures NewHTTPClient.
type Options struct {
	// ProxyAddress is an optional SOCKS5 proxy in "host:port" form.
	ProxyAddress string

	// DialTimeout bounds connection establishment. Zero means 15 seconds.
	DialTimeout time.Duration
}

// NewHTTPClient creates the HTTP client used for all outbound requests.
func NewHTTPClient(opts Options) (*http.Client, error) {
	dialTimeout := opts.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 15 * time.Second
	}

	base := &net.Dialer{Timeout: dialTimeout, KeepAlive: 30 * time.Second}

	transport := &http.Transport{
		Proxy:                 nil,
		DialContext:           base.DialContext,
		MaxIdleConns:          50,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   dialTimeout,
		ResponseHeaderTimeout: 0,
		ForceAttemptHTTP2:     true,
	}

	if opts.ProxyAddress != "" {
		dialer, err := proxy.SOCKS5("tcp", opts.ProxyAddress, nil, base)
		if err != nil {
			return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
		}
		ctxDialer, ok := dialer.(proxy.ContextDialer)
		if !ok {
			return nil, errors.New("SOCKS5 dialer does not support contexts")
		}
		transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			return ctxDialer.DialContext(ctx, network, addr)
		}
	}

	jar, _ := cookiejar.New(nil) //nolint:errcheck // cookiejar.New only fails with invalid options

	return &http.Client{
		Transport: transport,
		Jar:       jar,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return ErrTooManyRedirects
			}
			return nil
		},
	}, nil
}
