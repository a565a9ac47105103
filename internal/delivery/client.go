package delivery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"leadhunt-engine/internal/config"
	"leadhunt-engine/internal/domain"
	"leadhunt-engine/internal/scrape/util"
)

// ErrDisabled is returned when a client is requested while crm.enabled is off.
var ErrDisabled = errors.New("crm is disabled (crm.enabled=false)")

// Client pushes canonical leads to one CRM. Push never returns a Go error:
// HTTP and transport failures come back as a failed DeliveryResult.
type Client interface {
	Name() string
	Push(ctx context.Context, lead domain.Lead) domain.DeliveryResult
	PushBatch(ctx context.Context, leads []domain.Lead) domain.BatchResult
}

// ConfigError reports a CRM that cannot be constructed from its settings.
// It is the only delivery error that aborts the process.
type ConfigError struct {
	CRM   string
	Field string
	Msg   string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("crm %s: %s", e.CRM, e.Msg)
	}
	return fmt.Sprintf("crm %s: %s: %s", e.CRM, e.Field, e.Msg)
}

func missing(crm, field string) error {
	return &ConfigError{CRM: crm, Field: field, Msg: "is required"}
}

// New builds the client selected by cfg.Type. Secrets are expected to be
// resolved into cfg already. Odoo authenticates here, so ctx bounds that
// round trip.
func New(ctx context.Context, cfg config.CRM, limiter *util.HostLimiter) (Client, error) {
	typ := strings.ToLower(strings.TrimSpace(cfg.Type))
	switch typ {
	case "", "webhook":
		return NewWebhook(cfg, limiter)
	case "odoo":
		return NewOdoo(ctx, cfg, limiter)
	case "hubspot":
		return NewHubSpot(cfg, limiter)
	case "salesforce":
		return NewSalesforce(cfg, limiter)
	case "zoho":
		return NewZoho(cfg, limiter)
	}
	return nil, &ConfigError{CRM: typ, Msg: "unsupported crm type"}
}

// poster is the shared HTTP plumbing for every client.
type poster struct {
	hc      *http.Client
	limiter *util.HostLimiter
	headers map[string]string
}

func newPoster(timeout time.Duration, limiter *util.HostLimiter) poster {
	return poster{
		hc:      &http.Client{Timeout: timeout},
		limiter: limiter,
		headers: map[string]string{
			"Content-Type": "application/json",
			"Accept":       "application/json",
			"User-Agent":   "LeadHunt/1.0 (+local)",
		},
	}
}

// post sends body and returns the status and (truncated) response body.
func (p poster) post(ctx context.Context, url string, body []byte) (int, []byte, error) {
	if err := p.limiter.WaitURL(ctx, url); err != nil {
		return 0, nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	for k, v := range p.headers {
		req.Header.Set(k, v)
	}
	resp, err := p.hc.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable {
		if secs, err := strconv.Atoi(strings.TrimSpace(resp.Header.Get("Retry-After"))); err == nil {
			p.limiter.Backoff(url, time.Duration(secs)*time.Second)
		}
	}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	return resp.StatusCode, b, nil
}

// classify maps a transport error onto an ErrorKind.
func classify(err error) domain.ErrorKind {
	var ne net.Error
	switch {
	case errors.Is(err, context.Canceled):
		return domain.ErrKindCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return domain.ErrKindTimeout
	case errors.As(err, &ne) && ne.Timeout():
		return domain.ErrKindTimeout
	}
	return domain.ErrKindTransport
}

func statusResult(status int, body []byte, ok ...int) domain.DeliveryResult {
	for _, code := range ok {
		if status == code {
			return domain.Delivered(status)
		}
	}
	return domain.Failed(domain.ErrKindHTTPStatus, status, snippet(body))
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}

// pushEach is the batch fallback for CRMs without a batch endpoint.
func pushEach(ctx context.Context, c Client, leads []domain.Lead) domain.BatchResult {
	var res domain.BatchResult
	for _, l := range leads {
		if ctx.Err() != nil {
			res.Failed++
			continue
		}
		if r := c.Push(ctx, l); r.OK {
			res.Success++
		} else {
			res.Failed++
		}
	}
	return res
}
