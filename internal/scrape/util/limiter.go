package util

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// maxBackoff caps how long a server can ask us to stay away.
const maxBackoff = time.Minute

type hostState struct {
	lim       *rate.Limiter
	notBefore time.Time
}

// HostLimiter throttles outbound requests per hostname: the CRM endpoint,
// a listing site. A host that answered 429 is held back until its
// Retry-After passes.
type HostLimiter struct {
	mu    sync.Mutex
	hosts map[string]*hostState
	r     rate.Limit
	b     int
	now   func() time.Time
}

// NewHostLimiter returns a limiter allowing reqPerSec per host. A
// non-positive rate disables throttling (backoff still applies).
func NewHostLimiter(reqPerSec float64, burst int) *HostLimiter {
	r := rate.Limit(reqPerSec)
	if reqPerSec <= 0 {
		r = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &HostLimiter{hosts: make(map[string]*hostState), r: r, b: burst, now: time.Now}
}

func hostKey(raw string) string {
	if h := HostOf(raw); h != "" {
		return h
	}
	return "_"
}

func (hl *HostLimiter) state(host string) *hostState {
	hl.mu.Lock()
	defer hl.mu.Unlock()
	st, ok := hl.hosts[host]
	if !ok {
		st = &hostState{lim: rate.NewLimiter(hl.r, hl.b)}
		hl.hosts[host] = st
	}
	return st
}

// WaitURL blocks until a request to raw's host is allowed. A nil limiter
// never blocks.
func (hl *HostLimiter) WaitURL(ctx context.Context, raw string) error {
	if hl == nil {
		return nil
	}
	st := hl.state(hostKey(raw))

	hl.mu.Lock()
	wait := st.notBefore.Sub(hl.now())
	hl.mu.Unlock()
	if wait > 0 {
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
	return st.lim.Wait(ctx)
}

// Backoff holds raw's host back for d, capped at maxBackoff. Later calls
// only ever extend the hold.
func (hl *HostLimiter) Backoff(raw string, d time.Duration) {
	if hl == nil || d <= 0 {
		return
	}
	if d > maxBackoff {
		d = maxBackoff
	}
	st := hl.state(hostKey(raw))
	hl.mu.Lock()
	defer hl.mu.Unlock()
	if until := hl.now().Add(d); until.After(st.notBefore) {
		st.notBefore = until
	}
}
