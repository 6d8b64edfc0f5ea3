package pipeline

import (
	"time"

	"github.com/nao1215/irharvest/internal/download"
	"github.com/nao1215/irharvest/internal/model"
)

// SeedPage is the fetch outcome for one seed URL.
type SeedPage struct {
	SeedURL string
	Result  *model.FetchResult
}

// Run is the mutable working state of one target while its steps execute.
// It is owned by a single goroutine and is turned into a FetchReport once.
type Run struct {
	RunID     string
	Target    model.CompanyTarget
	Stage     model.Stage
	StartedAt time.Time

	// Pages holds one entry per seed URL, in roster order.
	Pages []SeedPage

	// Links is the merged, URL-deduplicated link list over all pages.
	Links []model.DocumentLink

	Sync   download.SyncResult
	Errors []model.ErrorEntry
}

// NewRun creates the initial state for target.
func NewRun(runID string, target model.CompanyTarget, startedAt time.Time) *Run {
	return &Run{
		RunID:     runID,
		Target:    target,
		Stage:     model.StageStart,
		StartedAt: startedAt,
		Errors:    []model.ErrorEntry{},
	}
}

// AddError records err against stage.
func (r *Run) AddError(stage model.Stage, err error) {
	r.Errors = append(r.Errors, model.NewErrorEntry(stage, err))
}

// fetchedVia reports Rendered when any page used the renderer.
func (r *Run) fetchedVia() model.FetchMethod {
	var via model.FetchMethod
	for _, p := range r.Pages {
		if p.Result == nil {
			continue
		}
		if p.Result.FetchedVia == model.FetchedRendered {
			return model.FetchedRendered
		}
		via = p.Result.FetchedVia
	}
	return via
}

// Report freezes the run into a FetchReport. The slices are copied so the
// report shares nothing with the run.
func (r *Run) Report(finishedAt time.Time) *model.FetchReport {
	report := &model.FetchReport{
		RunID:           r.RunID,
		Company:         r.Target.Name,
		Ticker:          r.Target.Ticker,
		StartedAt:       r.StartedAt,
		FinishedAt:      finishedAt,
		FinalStage:      r.Stage,
		FetchedVia:      r.fetchedVia(),
		LinksFound:      len(r.Links),
		LinksNew:        r.Sync.New,
		FilesDownloaded: len(r.Sync.Records),
		Downloads:       append([]model.DownloadRecord(nil), r.Sync.Records...),
		Errors:          append([]model.ErrorEntry{}, r.Errors...),
	}
	return report
}
