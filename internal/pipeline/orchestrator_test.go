package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/nao1215/irharvest/internal/crawler"
	"github.com/nao1215/irharvest/internal/download"
	"github.com/nao1215/irharvest/internal/model"
)

// stubFetcher returns canned results per URL; unknown URLs are network errors.
type stubFetcher struct {
	results map[string]*model.FetchResult
	calls   atomic.Int32
}

func (s *stubFetcher) Fetch(_ context.Context, pageURL string, _ http.Header) *model.FetchResult {
	s.calls.Add(1)
	if r, ok := s.results[pageURL]; ok {
		copied := *r
		return &copied
	}
	return &model.FetchResult{Status: model.StatusNetworkError, FinalURL: pageURL, FetchedVia: model.FetchedDirect, Reason: "connection refused"}
}

// stubRenderer returns the same canned result for every URL.
type stubRenderer struct {
	result *model.FetchResult
	calls  atomic.Int32
}

func (s *stubRenderer) Render(_ context.Context, pageURL string) *model.FetchResult {
	s.calls.Add(1)
	copied := *s.result
	if copied.FinalURL == "" {
		copied.FinalURL = pageURL
	}
	return &copied
}

func usablePage(finalURL, body string) *model.FetchResult {
	return &model.FetchResult{Status: model.StatusUsable, Body: []byte(body), FinalURL: finalURL, FetchedVia: model.FetchedDirect, StatusCode: 200, Reason: "HTTP 200"}
}

// harness wires a real extractor and download manager against a document server.
type harness struct {
	server  *httptest.Server
	root    string
	fetcher *stubFetcher
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/broken") {
			http.Error(w, "gone", http.StatusGone)
			return
		}
		fmt.Fprintf(w, "%%PDF-1.4 %s", r.URL.Path)
	}))
	t.Cleanup(server.Close)

	return &harness{
		server:  server,
		root:    t.TempDir(),
		fetcher: &stubFetcher{results: map[string]*model.FetchResult{}},
	}
}

func (h *harness) seed(path string, result *model.FetchResult) string {
	u := h.server.URL + path
	h.fetcher.results[u] = result
	return u
}

func (h *harness) orchestrator(opts ...OrchestratorOption) *Orchestrator {
	manager := download.NewManager(h.root, h.server.Client())
	opts = append([]OrchestratorOption{WithLockRoot(h.root)}, opts...)
	return NewOrchestrator(h.fetcher, crawler.NewExtractor(), manager, opts...)
}

func TestOrchestratorRunOnce(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("downloads new document then is idempotent", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t)
		seed := h.seed("/ir", usablePage(h.server.URL+"/ir", `<a href="/q1.pdf">Q1 Report</a>`))
		target := model.CompanyTarget{Name: "Acme", SeedURLs: []string{seed}}
		o := h.orchestrator()

		first := o.RunOnce(ctx, target)
		if first.LinksFound != 1 || first.LinksNew != 1 || first.FilesDownloaded != 1 {
			t.Errorf("first run: expected 1/1/1, got %d/%d/%d", first.LinksFound, first.LinksNew, first.FilesDownloaded)
		}
		if len(first.Errors) != 0 || first.FinalStage != model.StageDone || first.Status() != model.RunOK {
			t.Errorf("first run: unexpected outcome %+v", first)
		}
		if _, err := os.Stat(filepath.Join(h.root, "Acme", "q1.pdf")); err != nil {
			t.Errorf("expected Acme/q1.pdf: %v", err)
		}
		if first.RunID == "" {
			t.Error("expected a run id")
		}

		second := o.RunOnce(ctx, target)
		if second.LinksFound != 1 || second.LinksNew != 0 || second.FilesDownloaded != 0 {
			t.Errorf("second run: expected 1/0/0, got %d/%d/%d", second.LinksFound, second.LinksNew, second.FilesDownloaded)
		}
		if len(second.Errors) != 0 {
			t.Errorf("second run: unexpected errors %+v", second.Errors)
		}
	})

	t.Run("empty after fallback yields zero links without failing", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t)
		seed := h.seed("/ir", &model.FetchResult{Status: model.StatusEmpty, FinalURL: h.server.URL + "/ir", FetchedVia: model.FetchedDirect, Reason: "body is 0 bytes"})
		renderer := &stubRenderer{result: &model.FetchResult{Status: model.StatusEmpty, FetchedVia: model.FetchedRendered, Reason: "no anchors"}}

		report := h.orchestrator(WithRenderer(renderer)).RunOnce(ctx, model.CompanyTarget{Name: "Acme", SeedURLs: []string{seed}})
		if renderer.calls.Load() != 1 {
			t.Errorf("expected one render, got %d", renderer.calls.Load())
		}
		if report.LinksFound != 0 || report.FilesDownloaded != 0 {
			t.Errorf("expected no links, got %+v", report)
		}
		if report.FinalStage != model.StageDone {
			t.Errorf("expected done, got %s", report.FinalStage)
		}
		if len(report.Errors) != 1 || report.Errors[0].Kind != model.ErrKindEmptyContent || report.Errors[0].Stage != model.StageRendered {
			t.Errorf("expected one empty_content error, got %+v", report.Errors)
		}
	})

	t.Run("blocked without renderer fails the target", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t)
		seed := h.seed("/ir", &model.FetchResult{Status: model.StatusBlocked, FinalURL: h.server.URL + "/ir", FetchedVia: model.FetchedDirect, StatusCode: 403, Reason: "HTTP 403"})

		report := h.orchestrator().RunOnce(ctx, model.CompanyTarget{Name: "Acme", SeedURLs: []string{seed}})
		if !report.Failed() {
			t.Fatalf("expected failed report, got %+v", report)
		}
		if report.Errors[0].Kind != model.ErrKindBlocked || report.Errors[0].URL != seed {
			t.Errorf("expected blocked error for seed, got %+v", report.Errors[0])
		}
		if report.LinksFound != 0 {
			t.Errorf("expected no links, got %d", report.LinksFound)
		}
	})

	t.Run("blocked page recovered by renderer", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t)
		seed := h.seed("/ir", &model.FetchResult{Status: model.StatusBlocked, FinalURL: h.server.URL + "/ir", FetchedVia: model.FetchedDirect, Reason: "HTTP 403"})
		renderer := &stubRenderer{result: &model.FetchResult{
			Status:     model.StatusUsable,
			Body:       []byte(`<a href="annual-2024.pdf">Annual Report 2024</a>`),
			FinalURL:   h.server.URL + "/ir/",
			FetchedVia: model.FetchedRendered,
		}}

		report := h.orchestrator(WithRenderer(renderer)).RunOnce(ctx, model.CompanyTarget{Name: "Acme", SeedURLs: []string{seed}})
		if report.FetchedVia != model.FetchedRendered {
			t.Errorf("expected rendered, got %s", report.FetchedVia)
		}
		if report.FilesDownloaded != 1 || report.Downloads[0].Filename != "annual-2024.pdf" {
			t.Errorf("unexpected downloads %+v", report.Downloads)
		}
		if len(report.Errors) != 0 {
			t.Errorf("unexpected errors %+v", report.Errors)
		}
	})

	t.Run("usable page is not rendered unless forced", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t)
		seed := h.seed("/ir", usablePage(h.server.URL+"/ir", `<a href="/q1.pdf">Q1</a>`))
		renderer := &stubRenderer{result: &model.FetchResult{Status: model.StatusNetworkError, FetchedVia: model.FetchedRendered, Reason: "chrome crashed"}}
		o := h.orchestrator(WithRenderer(renderer))

		report := o.RunOnce(ctx, model.CompanyTarget{Name: "Acme", SeedURLs: []string{seed}})
		if renderer.calls.Load() != 0 {
			t.Error("renderer must not run for a usable page")
		}
		if report.FetchedVia != model.FetchedDirect {
			t.Errorf("expected direct, got %s", report.FetchedVia)
		}

		forced := o.RunOnce(ctx, model.CompanyTarget{Name: "Globex", SeedURLs: []string{seed}, Render: true})
		if renderer.calls.Load() != 1 {
			t.Error("forced render should run")
		}
		if forced.LinksFound != 1 || len(forced.Errors) != 0 {
			t.Errorf("failed forced render must keep the usable direct page, got %+v", forced)
		}
	})

	t.Run("links merged across seeds in order", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t)
		a := h.seed("/a", usablePage(h.server.URL+"/a", `<a href="/q1.pdf">Q1</a><a href="/q2.pdf">Q2</a>`))
		b := h.seed("/b", usablePage(h.server.URL+"/b", `<a href="/q2.pdf">Q2 again</a><a href="/q3.pdf">Q3</a>`))
		c := h.server.URL + "/unreachable"

		report := h.orchestrator().RunOnce(ctx, model.CompanyTarget{Name: "Acme", SeedURLs: []string{a, c, b}})
		if report.LinksFound != 3 || report.FilesDownloaded != 3 {
			t.Errorf("expected 3 merged links, got %+v", report)
		}
		if report.FinalStage != model.StageDone {
			t.Errorf("one usable seed is enough to finish, got %s", report.FinalStage)
		}
		if len(report.Errors) != 1 || report.Errors[0].Kind != model.ErrKindNetwork || report.Errors[0].URL != c {
			t.Errorf("expected a network error for the unreachable seed, got %+v", report.Errors)
		}
		want := []string{"q1.pdf", "q2.pdf", "q3.pdf"}
		for i, rec := range report.Downloads {
			if rec.Filename != want[i] {
				t.Errorf("download %d: expected %s, got %s", i, want[i], rec.Filename)
			}
		}
	})

	t.Run("failing link is isolated", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t)
		seed := h.seed("/ir", usablePage(h.server.URL+"/ir", `<a href="/broken.pdf">Broken</a><a href="/q4.pdf">Q4</a>`))

		report := h.orchestrator().RunOnce(ctx, model.CompanyTarget{Name: "Acme", SeedURLs: []string{seed}})
		if report.LinksNew != 2 || report.FilesDownloaded != 1 {
			t.Errorf("expected 2 new and 1 downloaded, got %+v", report)
		}
		if report.Status() != model.RunPartial {
			t.Errorf("expected partial status, got %s", report.Status())
		}
		if report.Errors[0].Stage != model.StageSynced {
			t.Errorf("expected sync-stage error, got %+v", report.Errors[0])
		}
	})

	t.Run("malformed target fails without fetching", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t)
		report := h.orchestrator().RunOnce(ctx, model.CompanyTarget{Name: "Acme", SeedURLs: []string{"not a url"}})
		if !report.Failed() || report.Errors[0].Kind != model.ErrKindConfiguration {
			t.Errorf("expected configuration failure, got %+v", report)
		}
		if h.fetcher.calls.Load() != 0 {
			t.Error("fetcher must not run for a malformed target")
		}
	})

	t.Run("held lock fails the target", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t)
		lock, err := download.AcquireLock(h.root, "Acme")
		if err != nil {
			t.Fatal(err)
		}
		defer lock.Release()

		seed := h.seed("/ir", usablePage(h.server.URL+"/ir", `<a href="/q1.pdf">Q1</a>`))
		report := h.orchestrator().RunOnce(ctx, model.CompanyTarget{Name: "Acme", SeedURLs: []string{seed}})
		if !report.Failed() || len(report.Errors) != 1 {
			t.Fatalf("expected a single failure, got %+v", report)
		}
		if report.Errors[0].Kind != model.ErrKindFilesystem || !strings.Contains(report.Errors[0].Message, "run already in progress") {
			t.Errorf("unexpected error %+v", report.Errors[0])
		}
		if h.fetcher.calls.Load() != 0 {
			t.Error("nothing may run while the lock is held")
		}
	})
}
