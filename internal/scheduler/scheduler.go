package scheduler

import (
	"context"
	"errors"
	"log"
	"sync/atomic"
	"time"
)

type Task func(ctx context.Context) error

// ErrSkipped tells the scheduler a run was skipped on purpose, e.g. because
// a manual session is already active. It is logged at info level.
var ErrSkipped = errors.New("skipped")

// Every runs task on each tick until ctx is done. With runNow the first run
// starts immediately. A tick that fires while the previous run is still
// going is dropped rather than queued.
func Every(ctx context.Context, interval time.Duration, name string, runNow bool, task Task) {
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	var busy atomic.Bool
	fire := func() {
		if !busy.CompareAndSwap(false, true) {
			log.Printf("[%s] previous run still active; tick dropped", name)
			return
		}
		go func() {
			defer busy.Store(false)
			err := task(ctx)
			switch {
			case err == nil:
			case errors.Is(err, ErrSkipped):
				log.Printf("[%s] %v", name, err)
			default:
				log.Printf("[%s] error: %v", name, err)
			}
		}()
	}

	if runNow {
		fire()
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			fire()
		}
	}
}
