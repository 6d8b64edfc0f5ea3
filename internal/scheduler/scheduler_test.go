package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

func TestEvery(t *testing.T) {
	t.Parallel()

	t.Run("runs immediately and on every tick", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var calls atomic.Int32
		done := make(chan error, 1)
		go func() {
			done <- Every(ctx, 10*time.Millisecond, "harvest", func(context.Context) error {
				if calls.Add(1) == 3 {
					cancel()
				}
				return nil
			}, slog.New(slog.DiscardHandler))
		}()

		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("Every() error = %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("Every did not stop after cancel")
		}
		if got := calls.Load(); got < 3 {
			t.Errorf("calls = %d, want at least 3", got)
		}
	})

	t.Run("task errors do not stop the schedule", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var calls atomic.Int32
		err := Every(ctx, 5*time.Millisecond, "harvest", func(context.Context) error {
			if calls.Add(1) >= 2 {
				cancel()
			}
			return errors.New("boom")
		}, nil)
		if err != nil {
			t.Fatalf("Every() error = %v", err)
		}
		if calls.Load() < 2 {
			t.Errorf("calls = %d, want at least 2", calls.Load())
		}
	})

	t.Run("first run happens before the first tick", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		var calls atomic.Int32
		err := Every(ctx, time.Hour, "harvest", func(context.Context) error {
			calls.Add(1)
			cancel()
			return nil
		}, slog.New(slog.DiscardHandler))
		if err != nil || calls.Load() != 1 {
			t.Errorf("Every() = %v, calls = %d", err, calls.Load())
		}
	})

	t.Run("invalid interval", func(t *testing.T) {
		t.Parallel()

		err := Every(context.Background(), 0, "harvest", func(context.Context) error { return nil }, nil)
		if !errors.Is(err, ErrInvalidInterval) {
			t.Errorf("error = %v, want ErrInvalidInterval", err)
		}
	})
}
