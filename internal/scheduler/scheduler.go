// Package scheduler re-invokes a task on a fixed cadence.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// ErrInvalidInterval is returned for a non-positive interval.
var ErrInvalidInterval = errors.New("interval must be positive")

// Task is one unit of recurring work.
type Task func(ctx context.Context) error

// Every runs task immediately and then once per interval until ctx is
// done. Runs never overlap: a tick that fires while the task is still
// running is dropped. Task errors are logged and the schedule continues;
// retrying means waiting for the next tick.
func Every(ctx context.Context, interval time.Duration, name string, task Task, logger *slog.Logger) error {
	if interval <= 0 {
		return ErrInvalidInterval
	}
	if logger == nil {
		logger = slog.Default()
	}

	t := time.NewTicker(interval)
	defer t.Stop()

	run := func() {
		started := time.Now()
		if err := task(ctx); err != nil {
			logger.Error("scheduled task failed", "task", name, "error", err)
			return
		}
		logger.Info("scheduled task finished", "task", name, "duration", time.Since(started).Round(time.Millisecond))
	}

	run()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if ctx.Err() != nil {
				return nil
			}
			run()
			logger.Debug("next run scheduled", "task", name, "in", interval)
		}
	}
}
