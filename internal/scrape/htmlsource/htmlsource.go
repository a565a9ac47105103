package htmlsource

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"leadhunt-engine/internal/config"
	"leadhunt-engine/internal/domain"
	"leadhunt-engine/internal/scrape/types"
	"leadhunt-engine/internal/scrape/util"

	"github.com/PuerkitoBio/goquery"
)

// Source fetches a listing page per search term and extracts one raw
// record per listing element with configured selectors.
//
// A field selector is a CSS selector relative to the listing, optionally
// suffixed with @attr to read an attribute instead of the text
// ("a.site@href").
type Source struct {
	cfg     config.HTMLSource
	hc      *http.Client
	limiter *util.HostLimiter
}

func New(cfg config.HTMLSource, limiter *util.HostLimiter) *Source {
	return &Source{
		cfg:     cfg,
		hc:      &http.Client{Timeout: 20 * time.Second},
		limiter: limiter,
	}
}

func (s *Source) Name() string { return "html" }

func (s *Source) pageURL(term string) string {
	return strings.ReplaceAll(s.cfg.URLTemplate, "{query}", url.QueryEscape(term))
}

func (s *Source) Search(ctx context.Context, term string) (types.SearchResult, error) {
	pageURL := s.pageURL(term)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return types.SearchResult{}, fmt.Errorf("html source request: %w", err)
	}
	ua := s.cfg.UserAgent
	if ua == "" {
		ua = "LeadHunt/1.0 (+local)"
	}
	req.Header.Set("User-Agent", ua)

	if err := s.limiter.WaitURL(ctx, pageURL); err != nil {
		return types.SearchResult{}, err
	}
	res, err := s.hc.Do(req)
	if err != nil {
		return types.SearchResult{}, fmt.Errorf("html source get: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode >= 400 {
		return types.SearchResult{}, fmt.Errorf("html source status %d", res.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(res.Body)
	if err != nil {
		return types.SearchResult{}, fmt.Errorf("html source parse: %w", err)
	}
	return types.SearchResult{Source: s.Name(), Records: s.Extract(doc, term, res.Request.URL)}, nil
}

// Extract applies the listing and field selectors to doc. Relative hrefs
// are resolved against base.
func (s *Source) Extract(doc *goquery.Document, term string, base *url.URL) []domain.RawLead {
	var out []domain.RawLead
	doc.Find(s.cfg.Listing).Each(func(_ int, item *goquery.Selection) {
		rec := domain.RawLead{}
		for key, field := range s.cfg.Fields {
			if v := fieldValue(item, field, base); v != "" {
				rec[key] = v
			}
		}
		if len(rec) == 0 {
			return
		}
		if term != "" {
			rec["Search Term"] = term
		}
		out = append(out, rec)
	})
	return out
}

func fieldValue(item *goquery.Selection, field string, base *url.URL) string {
	sel, attr, hasAttr := strings.Cut(field, "@")
	sel = strings.TrimSpace(sel)

	node := item
	if sel != "" {
		node = item.Find(sel).First()
	}
	if node.Length() == 0 {
		return ""
	}
	if !hasAttr {
		return util.CleanText(node.Text())
	}
	v, ok := node.Attr(strings.TrimSpace(attr))
	if !ok {
		return ""
	}
	v = strings.TrimSpace(v)
	if strings.HasPrefix(v, "mailto:") || strings.HasPrefix(v, "tel:") {
		return strings.TrimPrefix(strings.TrimPrefix(v, "mailto:"), "tel:")
	}
	if base != nil && (attr == "href" || attr == "src") {
		if u, err := base.Parse(v); err == nil {
			return u.String()
		}
	}
	return v
}
