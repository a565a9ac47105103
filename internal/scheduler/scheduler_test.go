package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestEveryRunsNowAndOnTicks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var runs atomic.Int32
	done := make(chan struct{})
	go func() {
		Every(ctx, 10*time.Millisecond, "test", true, func(context.Context) error {
			runs.Add(1)
			return nil
		})
		close(done)
	}()

	deadline := time.Now().Add(5 * time.Second)
	for runs.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done
	if runs.Load() < 3 {
		t.Fatalf("runs = %d, want >= 3", runs.Load())
	}
}

func TestEveryDropsOverlappingTicks(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	var active, maxActive, runs atomic.Int32
	Every(ctx, 5*time.Millisecond, "test", true, func(ctx context.Context) error {
		runs.Add(1)
		n := active.Add(1)
		for {
			m := maxActive.Load()
			if n <= m || maxActive.CompareAndSwap(m, n) {
				break
			}
		}
		<-ctx.Done()
		active.Add(-1)
		return ErrSkipped
	})
	deadline := time.Now().Add(5 * time.Second)
	for (runs.Load() == 0 || active.Load() != 0) && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if maxActive.Load() != 1 {
		t.Fatalf("max concurrent runs = %d, want 1", maxActive.Load())
	}
}

func TestEveryZeroIntervalReturns(t *testing.T) {
	Every(context.Background(), 0, "test", true, func(context.Context) error {
		t.Fatal("task must not run")
		return nil
	})
}
