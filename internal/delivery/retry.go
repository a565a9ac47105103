package delivery

import (
	"context"
	"log"
	"time"

	"leadhunt-engine/internal/config"
	"leadhunt-engine/internal/domain"
)

// RetryPolicy bounds how often one lead is re-pushed after a failure.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
	Enabled     bool
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Delay: 2 * time.Second, Enabled: true}
}

func RetryPolicyFromConfig(p config.Push) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: p.MaxRetries,
		Delay:       p.RetryDelay(),
		Enabled:     p.RetryOnFailure,
	}
}

func (rp RetryPolicy) attempts() int {
	if !rp.Enabled || rp.MaxAttempts < 1 {
		return 1
	}
	return rp.MaxAttempts
}

// Deliver pushes lead until it succeeds or the attempts run out. The
// returned result is the last one, with Attempts set to the number of
// pushes made. Cancellation stops the loop between attempts.
func (rp RetryPolicy) Deliver(ctx context.Context, c Client, lead domain.Lead) domain.DeliveryResult {
	max := rp.attempts()
	var res domain.DeliveryResult
	for attempt := 1; attempt <= max; attempt++ {
		res = c.Push(ctx, lead)
		res.Attempts = attempt
		if res.OK {
			return res
		}
		if attempt == max {
			break
		}
		log.Printf("[delivery:%s] attempt %d/%d failed lead=%q kind=%s status=%d; retrying in %s",
			c.Name(), attempt, max, lead.Name, res.Kind, res.StatusCode, rp.Delay)
		if !sleep(ctx, rp.Delay) {
			res.Kind = domain.ErrKindCanceled
			res.Message = ctx.Err().Error()
			break
		}
	}
	log.Printf("[delivery:%s] giving up lead=%q attempts=%d kind=%s", c.Name(), lead.Name, res.Attempts, res.Kind)
	return res
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
