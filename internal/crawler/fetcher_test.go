package crawler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nao1215/irharvest/internal/model"
	"github.com/nao1215/irharvest/internal/transport"
)

func TestFetcher(t *testing.T) {
	t.Parallel()

	t.Run("usable page with identity headers", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("User-Agent") != "TestAgent/1.0" {
				t.Errorf("unexpected user agent %q", r.Header.Get("User-Agent"))
			}
			if r.Header.Get("Cookie") != "session=abc" {
				t.Errorf("expected cookie header, got %q", r.Header.Get("Cookie"))
			}
			if r.Header.Get("X-Api-Client") != "ir" {
				t.Errorf("expected custom header, got %q", r.Header.Get("X-Api-Client"))
			}
			fmt.Fprint(w, page(`<a href="/q1.pdf">Q1 Report</a>`))
		}))
		defer server.Close()

		fetcher := NewFetcher(server.Client(), WithUserAgent("TestAgent/1.0"))
		header := model.CompanyTarget{
			Headers: map[string]string{"X-Api-Client": "ir"},
			Cookie:  "session=abc",
		}.RequestHeader()

		result := fetcher.Fetch(context.Background(), server.URL, header)
		if result.Status != model.StatusUsable {
			t.Fatalf("expected usable, got %s (%s)", result.Status, result.Reason)
		}
		if result.FetchedVia != model.FetchedDirect {
			t.Errorf("expected direct fetch, got %s", result.FetchedVia)
		}
		if result.StatusCode != http.StatusOK {
			t.Errorf("expected 200, got %d", result.StatusCode)
		}
	})

	t.Run("final url follows redirects", func(t *testing.T) {
		t.Parallel()

		mux := http.NewServeMux()
		mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/investors/", http.StatusMovedPermanently)
		})
		mux.HandleFunc("/investors/", func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, page(`<a href="q1.pdf">Q1</a>`))
		})
		server := httptest.NewServer(mux)
		defer server.Close()

		result := NewFetcher(server.Client()).Fetch(context.Background(), server.URL+"/old", nil)
		if result.FinalURL != server.URL+"/investors/" {
			t.Errorf("expected final url after redirect, got %q", result.FinalURL)
		}
	})

	t.Run("forbidden is blocked", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		}))
		defer server.Close()

		result := NewFetcher(server.Client()).Fetch(context.Background(), server.URL, nil)
		if result.Status != model.StatusBlocked {
			t.Errorf("expected blocked, got %s", result.Status)
		}
		if !result.NeedsFallback() {
			t.Error("blocked result should need fallback")
		}
	})

	t.Run("empty body", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		result := NewFetcher(server.Client()).Fetch(context.Background(), server.URL, nil)
		if result.Status != model.StatusEmpty {
			t.Errorf("expected empty, got %s", result.Status)
		}
	})

	t.Run("min body size is configurable", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, `<a href="/q1.pdf">Q1 Report</a>`)
		}))
		defer server.Close()

		result := NewFetcher(server.Client(), WithMinBodySize(10)).Fetch(context.Background(), server.URL, nil)
		if result.Status != model.StatusUsable {
			t.Errorf("expected usable, got %s (%s)", result.Status, result.Reason)
		}
	})

	t.Run("body is capped", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, page(""))
		}))
		defer server.Close()

		result := NewFetcher(server.Client(), WithMaxBodySize(100)).Fetch(context.Background(), server.URL, nil)
		if len(result.Body) != 100 {
			t.Errorf("expected body capped at 100 bytes, got %d", len(result.Body))
		}
	})

	t.Run("connection failure is network error", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
		addr := server.URL
		server.Close()

		result := NewFetcher(http.DefaultClient).Fetch(context.Background(), addr, nil)
		if result.Status != model.StatusNetworkError {
			t.Errorf("expected network error, got %s", result.Status)
		}
		if result.Reason == "" {
			t.Error("expected a reason")
		}
	})

	t.Run("timeout is network error", func(t *testing.T) {
		t.Parallel()

		release := make(chan struct{})
		server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		defer server.Close()
		defer close(release)

		fetcher := NewFetcher(server.Client(), WithTimeout(50*time.Millisecond))
		result := fetcher.Fetch(context.Background(), server.URL, nil)
		if result.Status != model.StatusNetworkError {
			t.Errorf("expected network error, got %s", result.Status)
		}
	})

	t.Run("rate limiter is honored", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, page(""))
		}))
		defer server.Close()

		limiter := transport.NewHostLimiter(0.001, 1)
		fetcher := NewFetcher(server.Client(), WithHostLimiter(limiter))

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		if r := fetcher.Fetch(ctx, server.URL, nil); r.Status == model.StatusNetworkError {
			t.Fatalf("first fetch should pass the limiter: %s", r.Reason)
		}
		if r := fetcher.Fetch(ctx, server.URL, nil); r.Status != model.StatusNetworkError {
			t.Errorf("second fetch should be throttled, got %s", r.Status)
		}
	})
}
