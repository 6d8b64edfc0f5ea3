package pipeline

import (
	"context"
	"errors"
	"net/http"

	"github.com/nao1215/irharvest/internal/download"
	"github.com/nao1215/irharvest/internal/model"
)

// ErrNoUsablePage is recorded when no seed page of a target could be used
// and at least one was blocked or unreachable.
var ErrNoUsablePage = errors.New("no seed page was usable")

// PageFetcher performs the direct fetch of a seed page.
type PageFetcher interface {
	Fetch(ctx context.Context, pageURL string, header http.Header) *model.FetchResult
}

// PageRenderer renders a seed page in a browser.
type PageRenderer interface {
	Render(ctx context.Context, pageURL string) *model.FetchResult
}

// LinkExtractor finds document links in a usable page.
type LinkExtractor interface {
	Extract(result *model.FetchResult) []model.DocumentLink
}

// DocumentSyncer persists new document links.
type DocumentSyncer interface {
	Sync(ctx context.Context, target model.CompanyTarget, links []model.DocumentLink) (download.SyncResult, error)
}

// FetchStep fetches every seed URL of the target, in order.
type FetchStep struct {
	fetcher PageFetcher
}

// NewFetchStep creates a FetchStep.
func NewFetchStep(fetcher PageFetcher) *FetchStep {
	return &FetchStep{fetcher: fetcher}
}

// Name returns the step name.
func (s *FetchStep) Name() string { return "fetch" }

// Stage returns StageFetched.
func (s *FetchStep) Stage() model.Stage { return model.StageFetched }

// Do fetches the seeds. Fetch outcomes are classified, never errors.
func (s *FetchStep) Do(ctx context.Context, run *Run) error {
	header := run.Target.RequestHeader()
	run.Pages = make([]SeedPage, 0, len(run.Target.SeedURLs))
	for _, seed := range run.Target.SeedURLs {
		run.Pages = append(run.Pages, SeedPage{
			SeedURL: seed,
			Result:  s.fetcher.Fetch(ctx, seed, header),
		})
	}
	return nil
}

// RenderStep re-fetches pages through the renderer when the direct fetch
// was blocked or empty, or always when the target asks for rendering.
type RenderStep struct {
	renderer PageRenderer
}

// NewRenderStep creates a RenderStep. A nil renderer makes the step a no-op.
func NewRenderStep(renderer PageRenderer) *RenderStep {
	return &RenderStep{renderer: renderer}
}

// Name returns the step name.
func (s *RenderStep) Name() string { return "render" }

// Stage returns StageRendered.
func (s *RenderStep) Stage() model.Stage { return model.StageRendered }

// Skip reports whether no page needs rendering.
func (s *RenderStep) Skip(run *Run) bool {
	if s.renderer == nil {
		return true
	}
	for _, p := range run.Pages {
		if s.needsRender(run, p) {
			return false
		}
	}
	return true
}

func (s *RenderStep) needsRender(run *Run, p SeedPage) bool {
	return run.Target.Render || p.Result.NeedsFallback()
}

// Do renders the pages that need it. A rendered result replaces the direct
// one unless the direct one was usable and the render was not.
func (s *RenderStep) Do(ctx context.Context, run *Run) error {
	for i, p := range run.Pages {
		if !s.needsRender(run, p) {
			continue
		}
		rendered := s.renderer.Render(ctx, p.SeedURL)
		if rendered.Usable() || !p.Result.Usable() {
			run.Pages[i].Result = rendered
		}
	}
	return nil
}

// ExtractStep extracts document links from usable pages and merges them.
type ExtractStep struct {
	extractor LinkExtractor
}

// NewExtractStep creates an ExtractStep.
func NewExtractStep(extractor LinkExtractor) *ExtractStep {
	return &ExtractStep{extractor: extractor}
}

// Name returns the step name.
func (s *ExtractStep) Name() string { return "extract" }

// Stage returns StageExtracted.
func (s *ExtractStep) Stage() model.Stage { return model.StageExtracted }

// Do merges the links of every usable page, keeping the first occurrence
// of each URL in seed order. Unusable pages are recorded as errors. The
// step fails only when no page was usable and some page was blocked or
// unreachable; pages that were merely empty yield zero links.
func (s *ExtractStep) Do(_ context.Context, run *Run) error {
	run.Links = []model.DocumentLink{}
	seen := make(map[string]struct{})
	usable := 0
	var hardKind model.ErrorKind

	for _, p := range run.Pages {
		if !p.Result.Usable() {
			kind := pageErrorKind(p.Result)
			reason := p.Result.Reason
			if reason == "" {
				reason = string(p.Result.Status)
			}
			run.AddError(pageStage(p.Result), model.NewKindError(kind, p.SeedURL, errors.New(reason)))
			if hardKind == "" && kind != model.ErrKindEmptyContent {
				hardKind = kind
			}
			continue
		}

		usable++
		for _, link := range s.extractor.Extract(p.Result) {
			if _, dup := seen[link.URL]; dup {
				continue
			}
			seen[link.URL] = struct{}{}
			run.Links = append(run.Links, link)
		}
	}

	if usable == 0 && hardKind != "" {
		return model.NewKindError(hardKind, "", ErrNoUsablePage)
	}
	return nil
}

func pageErrorKind(r *model.FetchResult) model.ErrorKind {
	switch r.Status {
	case model.StatusBlocked:
		return model.ErrKindBlocked
	case model.StatusEmpty:
		return model.ErrKindEmptyContent
	default:
		return model.ErrKindNetwork
	}
}

func pageStage(r *model.FetchResult) model.Stage {
	if r.FetchedVia == model.FetchedRendered {
		return model.StageRendered
	}
	return model.StageFetched
}

// SyncStep hands the merged links to the download manager.
type SyncStep struct {
	syncer DocumentSyncer
}

// NewSyncStep creates a SyncStep.
func NewSyncStep(syncer DocumentSyncer) *SyncStep {
	return &SyncStep{syncer: syncer}
}

// Name returns the step name.
func (s *SyncStep) Name() string { return "sync" }

// Stage returns StageSynced.
func (s *SyncStep) Stage() model.Stage { return model.StageSynced }

// Do syncs the links. Per-link failures are recorded and do not fail the
// step; only an unusable company directory does.
func (s *SyncStep) Do(ctx context.Context, run *Run) error {
	res, err := s.syncer.Sync(ctx, run.Target, run.Links)
	if err != nil {
		return err
	}
	run.Sync = res
	run.Errors = append(run.Errors, res.Errors...)
	return nil
}
