package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/irharvest/internal/model"
)

// fakeRunner records concurrency and returns a report per target.
type fakeRunner struct {
	delay   time.Duration
	active  atomic.Int32
	maxSeen atomic.Int32
	onRun   func(target model.CompanyTarget)
}

func (f *fakeRunner) Run(_ context.Context, runID string, target model.CompanyTarget) *model.FetchReport {
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		old := f.maxSeen.Load()
		if n <= old || f.maxSeen.CompareAndSwap(old, n) {
			break
		}
	}
	if f.onRun != nil {
		f.onRun(target)
	}
	time.Sleep(f.delay)
	stage := model.StageDone
	if target.Name == "Broken" {
		stage = model.StageFailed
	}
	return &model.FetchReport{RunID: runID, Company: target.Name, FinalStage: stage, Errors: []model.ErrorEntry{}}
}

func targets(names ...string) []model.CompanyTarget {
	out := make([]model.CompanyTarget, 0, len(names))
	for _, n := range names {
		out = append(out, model.CompanyTarget{Name: n, SeedURLs: []string{"https://" + n + ".test/"}})
	}
	return out
}

func TestBatchProcessorNew(t *testing.T) {
	t.Parallel()

	t.Run("creates processor with defaults", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(&fakeRunner{})
		if bp.concurrency != 4 {
			t.Errorf("expected default concurrency 4, got %d", bp.concurrency)
		}
		if bp.logger == nil {
			t.Error("expected default logger")
		}
	})

	t.Run("ignores non-positive concurrency", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(&fakeRunner{}, WithConcurrency(0))
		if bp.concurrency != 4 {
			t.Errorf("expected default concurrency, got %d", bp.concurrency)
		}
	})

	t.Run("applies WithBatchLogger option", func(t *testing.T) {
		t.Parallel()

		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		bp := NewBatchProcessor(&fakeRunner{}, WithBatchLogger(logger))
		if bp.logger != logger {
			t.Error("expected custom logger")
		}
	})
}

func TestProcessBatch(t *testing.T) {
	t.Parallel()

	t.Run("reports in roster order with shared run id", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(&fakeRunner{delay: time.Millisecond}, WithConcurrency(3))
		reports, err := bp.ProcessBatch(context.Background(), "run-42", targets("Acme", "Broken", "Globex", "Initech"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := []string{"Acme", "Broken", "Globex", "Initech"}
		for i, r := range reports {
			if r == nil || r.Company != want[i] || r.RunID != "run-42" {
				t.Errorf("report %d: unexpected %+v", i, r)
			}
		}

		summary := model.Summarize("run-42", reports)
		if summary.Targets != 4 || summary.Failed != 1 {
			t.Errorf("one failing target must not affect the others, got %+v", summary)
		}
	})

	t.Run("respects concurrency limit", func(t *testing.T) {
		t.Parallel()

		runner := &fakeRunner{delay: 20 * time.Millisecond}
		bp := NewBatchProcessor(runner, WithConcurrency(2))
		if _, err := bp.ProcessBatch(context.Background(), "run", targets("a", "b", "c", "d", "e", "f")); err != nil {
			t.Fatal(err)
		}
		if got := runner.maxSeen.Load(); got > 2 {
			t.Errorf("expected at most 2 concurrent targets, saw %d", got)
		}
	})

	t.Run("cancellation stops unstarted targets", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		var once sync.Once
		runner := &fakeRunner{onRun: func(model.CompanyTarget) { once.Do(cancel) }}
		bp := NewBatchProcessor(runner, WithConcurrency(1))

		reports, err := bp.ProcessBatch(ctx, "run", targets("a", "b", "c"))
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if reports[0] == nil {
			t.Error("the running target should still report")
		}
		if reports[2] != nil {
			t.Error("targets after cancellation must not start")
		}
	})

	t.Run("callback sees every report", func(t *testing.T) {
		t.Parallel()

		var mu sync.Mutex
		seen := map[int]string{}
		bp := NewBatchProcessor(&fakeRunner{})
		err := bp.ProcessBatchWithCallback(context.Background(), "run", targets("a", "b"), func(r *model.FetchReport, i int) {
			mu.Lock()
			seen[i] = r.Company
			mu.Unlock()
		})
		if err != nil {
			t.Fatal(err)
		}
		if seen[0] != "a" || seen[1] != "b" {
			t.Errorf("unexpected callbacks %v", seen)
		}
	})
}
