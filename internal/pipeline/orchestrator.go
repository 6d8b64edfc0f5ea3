package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nao1215/irharvest/internal/download"
	"github.com/nao1215/irharvest/internal/model"
)

// Orchestrator runs the acquisition state machine for single targets.
// It holds no per-target state and may be used from many goroutines.
type Orchestrator struct {
	fetcher   PageFetcher
	renderer  PageRenderer
	extractor LinkExtractor
	syncer    DocumentSyncer
	lockRoot  string
	logger    *slog.Logger
	now       func() time.Time
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithRenderer enables the renderer fallback. Pass only a non-nil renderer.
func WithRenderer(renderer PageRenderer) OrchestratorOption {
	return func(o *Orchestrator) {
		o.renderer = renderer
	}
}

// WithLockRoot makes each run hold the company's lock under root.
func WithLockRoot(root string) OrchestratorOption {
	return func(o *Orchestrator) {
		o.lockRoot = root
	}
}

// WithOrchestratorLogger sets a custom logger.
func WithOrchestratorLogger(logger *slog.Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithOrchestratorClock sets the time source for report timestamps.
func WithOrchestratorClock(now func() time.Time) OrchestratorOption {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// NewOrchestrator creates an Orchestrator from its stage implementations.
func NewOrchestrator(fetcher PageFetcher, extractor LinkExtractor, syncer DocumentSyncer, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		fetcher:   fetcher,
		extractor: extractor,
		syncer:    syncer,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// RunOnce runs target under a fresh run ID.
func (o *Orchestrator) RunOnce(ctx context.Context, target model.CompanyTarget) *model.FetchReport {
	return o.Run(ctx, uuid.NewString(), target)
}

// Run takes target from start to done (or failed) and returns its report.
// Run never panics on bad input and never returns an error: every failure
// is in the report.
func (o *Orchestrator) Run(ctx context.Context, runID string, target model.CompanyTarget) *model.FetchReport {
	run := NewRun(runID, target, o.now().UTC())
	logger := o.logger.With("company", target.Name, "run_id", runID)

	if err := target.Validate(); err != nil {
		logger.Warn("invalid target", "error", err)
		return o.fail(run, err)
	}

	if o.lockRoot != "" {
		lock, err := download.AcquireLock(o.lockRoot, target.Name)
		if err != nil {
			logger.Warn("cannot lock company", "error", err)
			return o.fail(run, model.NewKindError(model.ErrKindFilesystem, "", err))
		}
		defer func() {
			if err := lock.Release(); err != nil {
				logger.Warn("failed to release lock", "error", err)
			}
		}()
	}

	if err := o.pipeline(logger).Execute(ctx, run); err == nil {
		run.Stage = model.StageDone
	}

	report := run.Report(o.now().UTC())
	logger.Info("target finished",
		"status", report.Status(),
		"links_found", report.LinksFound,
		"links_new", report.LinksNew,
		"files_downloaded", report.FilesDownloaded,
		"errors", len(report.Errors),
	)
	return report
}

func (o *Orchestrator) pipeline(logger *slog.Logger) *Pipeline {
	p := New(WithLogger(logger))
	p.AddSteps(
		NewFetchStep(o.fetcher),
		NewRenderStep(o.renderer),
		NewExtractStep(o.extractor),
		NewSyncStep(o.syncer),
	)
	return p
}

func (o *Orchestrator) fail(run *Run, err error) *model.FetchReport {
	run.AddError(model.StageStart, err)
	run.Stage = model.StageFailed
	return run.Report(o.now().UTC())
}
