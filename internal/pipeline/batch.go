package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/irharvest/internal/model"
)

// TargetRunner runs one target and returns its report.
type TargetRunner interface {
	Run(ctx context.Context, runID string, target model.CompanyTarget) *model.FetchReport
}

// BatchProcessor runs many targets concurrently, bounded by a limit.
type BatchProcessor struct {
	runner      TargetRunner
	concurrency int
	logger      *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of targets run at once.
// Non-positive values are ignored.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a BatchProcessor. The default concurrency is 4.
func NewBatchProcessor(runner TargetRunner, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		runner:      runner,
		concurrency: 4,
	}
	for _, opt := range opts {
		opt(bp)
	}
	if bp.logger == nil {
		bp.logger = slog.Default()
	}
	return bp
}

// ProcessBatch runs every target and returns the reports in roster order.
//
// Cancellation is honored between targets: targets not yet started are
// left as nil entries and ctx's error is returned. Targets already running
// see the cancellation through ctx and end failed or partial.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, runID string, targets []model.CompanyTarget) ([]*model.FetchReport, error) {
	results := make([]*model.FetchReport, len(targets))
	var mu sync.Mutex

	err := bp.ProcessBatchWithCallback(ctx, runID, targets, func(report *model.FetchReport, index int) {
		mu.Lock()
		results[index] = report
		mu.Unlock()
	})
	return results, err
}

// ProcessBatchWithCallback runs every target and calls callback with each
// report as it completes. The callback runs on the target's goroutine and
// must be safe for concurrent use.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	runID string,
	targets []model.CompanyTarget,
	callback func(report *model.FetchReport, index int),
) error {
	bp.logger.Info("starting batch",
		"run_id", runID,
		"targets", len(targets),
		"concurrency", bp.concurrency,
	)
	startTime := time.Now()

	var g errgroup.Group
	g.SetLimit(bp.concurrency)

	for i, target := range targets {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			bp.logger.Info("running target",
				"company", target.Name,
				"index", i+1,
				"total", len(targets),
			)
			callback(bp.runner.Run(ctx, runID, target), i)
			return nil
		})
	}

	_ = g.Wait() //nolint:errcheck // goroutines never return errors

	bp.logger.Info("batch complete",
		"run_id", runID,
		"targets", len(targets),
		"elapsed", time.Since(startTime),
	)
	return ctx.Err()
}
