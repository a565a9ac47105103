package delivery

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"leadhunt-engine/internal/domain"
)

type scriptedClient struct {
	results []domain.DeliveryResult
	calls   int
}

func (c *scriptedClient) Name() string { return "scripted" }

func (c *scriptedClient) Push(ctx context.Context, l domain.Lead) domain.DeliveryResult {
	r := c.results[min(c.calls, len(c.results)-1)]
	c.calls++
	return r
}

func (c *scriptedClient) PushBatch(ctx context.Context, leads []domain.Lead) domain.BatchResult {
	return pushEach(ctx, c, leads)
}

func TestRetryWebhook500ThreeTimes(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	wh, _ := NewWebhook(crmConfig("webhook", srv.URL), nil)
	rp := RetryPolicy{MaxAttempts: 3, Delay: time.Millisecond, Enabled: true}
	res := rp.Deliver(context.Background(), wh, sampleLead())
	if res.OK {
		t.Fatal("expected permanent failure")
	}
	if res.Attempts != 3 || hits.Load() != 3 {
		t.Fatalf("attempts=%d hits=%d, want 3/3", res.Attempts, hits.Load())
	}
	if res.Kind != domain.ErrKindHTTPStatus || res.StatusCode != http.StatusInternalServerError {
		t.Fatalf("result = %+v", res)
	}
}

func TestRetryStopsOnSuccess(t *testing.T) {
	c := &scriptedClient{results: []domain.DeliveryResult{
		domain.Failed(domain.ErrKindTransport, 0, "refused"),
		domain.Delivered(http.StatusOK),
	}}
	res := RetryPolicy{MaxAttempts: 3, Enabled: true}.Deliver(context.Background(), c, sampleLead())
	if !res.OK || res.Attempts != 2 || c.calls != 2 {
		t.Fatalf("result=%+v calls=%d", res, c.calls)
	}
}

func TestRetryDisabledMakesOneAttempt(t *testing.T) {
	c := &scriptedClient{results: []domain.DeliveryResult{domain.Failed(domain.ErrKindHTTPStatus, 503, "")}}
	res := RetryPolicy{MaxAttempts: 5, Enabled: false}.Deliver(context.Background(), c, sampleLead())
	if res.OK || res.Attempts != 1 || c.calls != 1 {
		t.Fatalf("result=%+v calls=%d", res, c.calls)
	}
}

func TestRetryCanceledDuringDelay(t *testing.T) {
	c := &scriptedClient{results: []domain.DeliveryResult{domain.Failed(domain.ErrKindHTTPStatus, 500, "")}}
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	start := time.Now()
	res := RetryPolicy{MaxAttempts: 3, Delay: time.Minute, Enabled: true}.Deliver(ctx, c, sampleLead())
	if time.Since(start) > 5*time.Second {
		t.Fatal("cancel did not interrupt the retry delay")
	}
	if res.OK || res.Kind != domain.ErrKindCanceled || c.calls != 1 {
		t.Fatalf("result=%+v calls=%d", res, c.calls)
	}
}

func TestDefaultRetryPolicy(t *testing.T) {
	rp := DefaultRetryPolicy()
	if rp.MaxAttempts != 3 || rp.Delay != 2*time.Second || !rp.Enabled {
		t.Fatalf("default = %+v", rp)
	}
}
