package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"leadhunt-engine/internal/config"
	"leadhunt-engine/internal/domain"
	"leadhunt-engine/internal/scrape/util"
)

// REST covers CRMs that take one JSON object per lead on a create
// endpoint. Only the path, auth scheme and payload differ.
type REST struct {
	name    string
	url     string
	timeout time.Duration
	build   func(domain.Lead) any
	p       poster
}

const (
	hubspotPath    = "/crm/v3/objects/contacts"
	salesforcePath = "/services/data/v58.0/sobjects/Lead"
	zohoPath       = "/crm/v3/Leads"

	hubspotDefaultBase = "https://api.hubapi.com"
	zohoDefaultBase    = "https://www.zohoapis.com"
)

func newREST(name, base, path, authHeader string, cfg config.CRM, limiter *util.HostLimiter, build func(domain.Lead) any) (*REST, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, missing(name, "token")
	}
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		return nil, missing(name, "url")
	}
	r := &REST{
		name:    name,
		url:     base + path,
		timeout: cfg.Timeout(),
		build:   build,
		p:       newPoster(0, limiter),
	}
	r.p.headers["Authorization"] = authHeader
	return r, nil
}

func baseOr(cfg config.CRM, fallback string) string {
	if u := strings.TrimSpace(cfg.URL); u != "" {
		return u
	}
	return fallback
}

func notes(l domain.Lead) string {
	return fmt.Sprintf("Source: %s | Search: %s | Quality Score: %d/10", l.Source, l.SearchTerm, l.QualityScore)
}

func NewHubSpot(cfg config.CRM, limiter *util.HostLimiter) (*REST, error) {
	return newREST("hubspot", baseOr(cfg, hubspotDefaultBase), hubspotPath, "Bearer "+cfg.Token, cfg, limiter,
		func(l domain.Lead) any {
			return map[string]any{"properties": map[string]string{
				"company":        l.Name,
				"phone":          l.Phone.Or(""),
				"email":          l.Email.Or(""),
				"website":        l.Website.Or(""),
				"address":        l.Address,
				"city":           cfg.City,
				"industry":       l.Category,
				"hs_lead_status": "NEW",
				"notes":          notes(l),
			}}
		})
}

// NewSalesforce needs the org instance URL; there is no shared default.
func NewSalesforce(cfg config.CRM, limiter *util.HostLimiter) (*REST, error) {
	return newREST("salesforce", cfg.URL, salesforcePath, "Bearer "+cfg.Token, cfg, limiter,
		func(l domain.Lead) any {
			return map[string]string{
				"Company":     l.Name,
				"LastName":    l.Name,
				"Phone":       l.Phone.Or(""),
				"Email":       l.Email.Or(""),
				"Website":     l.Website.Or(""),
				"Street":      l.Address,
				"City":        cfg.City,
				"Country":     cfg.Country,
				"Industry":    l.Category,
				"Rating":      salesforceRating(l.Priority),
				"Status":      "Open - Not Contacted",
				"LeadSource":  l.Source,
				"Description": notes(l),
			}
		})
}

func salesforceRating(p domain.Priority) string {
	switch p {
	case domain.PriorityUrgent, domain.PriorityHigh:
		return "Hot"
	case domain.PriorityMedium:
		return "Warm"
	}
	return "Cold"
}

func NewZoho(cfg config.CRM, limiter *util.HostLimiter) (*REST, error) {
	return newREST("zoho", baseOr(cfg, zohoDefaultBase), zohoPath, "Zoho-oauthtoken "+cfg.Token, cfg, limiter,
		func(l domain.Lead) any {
			return map[string]any{"data": []map[string]string{{
				"Company":     l.Name,
				"Last_Name":   l.Name,
				"Phone":       l.Phone.Or(""),
				"Email":       l.Email.Or(""),
				"Website":     l.Website.Or(""),
				"Street":      l.Address,
				"City":        cfg.City,
				"Country":     cfg.Country,
				"Industry":    l.Category,
				"Lead_Status": "Not Contacted",
				"Lead_Source": l.Source,
				"Rating":      l.Priority.String(),
				"Description": notes(l),
			}}}
		})
}

func (r *REST) Name() string { return r.name }

func (r *REST) Push(ctx context.Context, l domain.Lead) domain.DeliveryResult {
	body, err := json.Marshal(r.build(l))
	if err != nil {
		return domain.Failed(domain.ErrKindEncode, 0, err.Error())
	}
	cctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	status, resp, err := r.p.post(cctx, r.url, body)
	if err != nil {
		log.Printf("[delivery:%s] push failed lead=%q err=%v", r.name, l.Name, err)
		return domain.Failed(classify(err), 0, err.Error())
	}
	res := statusResult(status, resp, http.StatusOK, http.StatusCreated)
	if !res.OK {
		log.Printf("[delivery:%s] push rejected lead=%q status=%d body=%q", r.name, l.Name, status, res.Message)
	}
	return res
}

func (r *REST) PushBatch(ctx context.Context, leads []domain.Lead) domain.BatchResult {
	return pushEach(ctx, r, leads)
}
