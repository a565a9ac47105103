package delivery

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"leadhunt-engine/internal/config"
	"leadhunt-engine/internal/domain"
	"leadhunt-engine/internal/scrape/util"
)

// Webhook posts each lead as a flat JSON object to a fixed URL that
// creates the record on the CRM side.
type Webhook struct {
	url      string
	city     string
	country  string
	leadType string
	timeout  time.Duration
	p        poster
	now      func() time.Time
}

func NewWebhook(cfg config.CRM, limiter *util.HostLimiter) (*Webhook, error) {
	u := strings.TrimSpace(cfg.URL)
	if u == "" {
		return nil, missing("webhook", "url")
	}
	w := &Webhook{
		url:      u,
		city:     cfg.City,
		country:  cfg.Country,
		leadType: cfg.LeadType,
		timeout:  cfg.Timeout(),
		p:        newPoster(0, limiter),
		now:      time.Now,
	}
	if h := strings.TrimSpace(cfg.AuthHeader); h != "" {
		w.p.headers["Authorization"] = h
	}
	return w, nil
}

func (w *Webhook) Name() string { return "webhook" }

// WebhookLead is the wire shape of one lead.
type WebhookLead struct {
	Name         string `json:"Name"`
	Category     string `json:"Category"`
	Phone        string `json:"Phone"`
	Email        string `json:"Email"`
	Website      string `json:"Website"`
	Address      string `json:"Address"`
	Priority     string `json:"Priority"`
	QualityScore string `json:"Quality Score"`
	DataSource   string `json:"Data Source"`
	SearchTerm   string `json:"Search Term"`
	Timestamp    string `json:"Timestamp"`
	City         string `json:"City"`
	Country      string `json:"Country"`
	Type         string `json:"Type"`
}

func (w *Webhook) payload(l domain.Lead) WebhookLead {
	return WebhookLead{
		Name:         l.Name,
		Category:     l.Category,
		Phone:        l.Phone.Or(""),
		Email:        l.Email.Or(""),
		Website:      l.Website.Or(""),
		Address:      l.Address,
		Priority:     l.Priority.String(),
		QualityScore: strconv.Itoa(l.QualityScore),
		DataSource:   l.Source,
		SearchTerm:   l.SearchTerm,
		Timestamp:    l.TimestampString(),
		City:         w.city,
		Country:      w.country,
		Type:         w.leadType,
	}
}

func (w *Webhook) Push(ctx context.Context, l domain.Lead) domain.DeliveryResult {
	body, err := json.Marshal(w.payload(l))
	if err != nil {
		return domain.Failed(domain.ErrKindEncode, 0, err.Error())
	}

	cctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	status, resp, err := w.p.post(cctx, w.url, body)
	if err != nil {
		log.Printf("[delivery:webhook] push failed lead=%q err=%v", l.Name, err)
		return domain.Failed(classify(err), 0, err.Error())
	}
	res := statusResult(status, resp, http.StatusOK, http.StatusCreated, http.StatusAccepted)
	if !res.OK {
		log.Printf("[delivery:webhook] push rejected lead=%q status=%d body=%q", l.Name, status, res.Message)
	}
	return res
}

type webhookBatch struct {
	Leads     []WebhookLead `json:"leads"`
	Batch     bool          `json:"batch"`
	Count     int           `json:"count"`
	Timestamp string        `json:"timestamp"`
}

// PushBatch sends every lead in one request; the CRM either takes all of
// them or none.
func (w *Webhook) PushBatch(ctx context.Context, leads []domain.Lead) domain.BatchResult {
	if len(leads) == 0 {
		return domain.BatchResult{}
	}
	b := webhookBatch{Batch: true, Count: len(leads), Timestamp: domain.FormatTimestamp(w.now())}
	for _, l := range leads {
		b.Leads = append(b.Leads, w.payload(l))
	}
	body, err := json.Marshal(b)
	if err != nil {
		return domain.BatchResult{Failed: len(leads)}
	}

	cctx, cancel := context.WithTimeout(ctx, 2*w.timeout)
	defer cancel()

	status, resp, err := w.p.post(cctx, w.url, body)
	if err != nil {
		log.Printf("[delivery:webhook] batch failed count=%d err=%v", len(leads), err)
		return domain.BatchResult{Failed: len(leads)}
	}
	if res := statusResult(status, resp, http.StatusOK, http.StatusCreated, http.StatusAccepted); !res.OK {
		log.Printf("[delivery:webhook] batch rejected count=%d status=%d", len(leads), status)
		return domain.BatchResult{Failed: len(leads), StatusCode: status}
	}
	log.Printf("[delivery:webhook] batch delivered count=%d status=%d", len(leads), status)
	return domain.BatchResult{Success: len(leads), StatusCode: status}
}
