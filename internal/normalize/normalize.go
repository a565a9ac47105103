package normalize

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"leadhunt-engine/internal/domain"
	"leadhunt-engine/internal/rank"
	"leadhunt-engine/internal/scrape/util"
)

// ErrInvalidLead marks a raw record that cannot become a lead (no name).
var ErrInvalidLead = errors.New("invalid lead")

// Source-key aliases per canonical field, in lookup order.
var (
	nameKeys      = []string{"Name", "Company Name", "Business Name", "name", "title"}
	categoryKeys  = []string{"Category", "Business Category", "Type", "Industry", "category"}
	phoneKeys     = []string{"Phone", "Phone Number", "Contact Number", "phone"}
	emailKeys     = []string{"Email", "Email Address", "email"}
	websiteKeys   = []string{"Website", "Website URL", "URL", "website"}
	addressKeys   = []string{"Address", "Location", "Street", "address"}
	termKeys      = []string{"Search Term", "Query", "search_term"}
	sourceKeys    = []string{"Data Source", "Source", "source"}
	timestampKeys = []string{"Timestamp", "Scraped At", "timestamp"}
)

// Placeholders are sentinel strings scrapers emit instead of leaving a
// contact field empty.
var Placeholders = []string{"Contact via website", "Not available", "N/A", "", "None"}

var timestampLayouts = []string{
	domain.TimestampLayout,
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

type Normalizer struct {
	Scorer        rank.Scorer
	DefaultSource string
	Now           func() time.Time
}

func New(scorer rank.Scorer, defaultSource string) *Normalizer {
	if defaultSource == "" {
		defaultSource = domain.DefaultSource
	}
	return &Normalizer{Scorer: scorer, DefaultSource: defaultSource, Now: time.Now}
}

// Normalize maps raw onto a canonical lead. term is used when the record
// itself does not carry the search term that produced it. Priority and
// quality score in the raw record are ignored and recomputed.
func (n *Normalizer) Normalize(raw domain.RawLead, term string) (domain.Lead, error) {
	name := util.CleanText(lookup(raw, nameKeys))
	if name == "" {
		return domain.Lead{}, fmt.Errorf("%w: missing name", ErrInvalidLead)
	}

	l := domain.Lead{
		Name:       name,
		Category:   util.CleanText(lookup(raw, categoryKeys)),
		Phone:      phoneOpt(lookup(raw, phoneKeys)),
		Email:      emailOpt(lookup(raw, emailKeys)),
		Website:    websiteOpt(lookup(raw, websiteKeys)),
		Address:    util.NormalizeAddress(lookup(raw, addressKeys)),
		Source:     util.CleanText(lookup(raw, sourceKeys)),
		SearchTerm: util.CleanText(lookup(raw, termKeys)),
		CapturedAt: n.timestamp(lookup(raw, timestampKeys)),
	}

	if l.Category == "" || IsPlaceholder(l.Category) {
		l.Category = domain.DefaultCategory
	}
	if l.Address == "" || IsPlaceholder(l.Address) {
		l.Address = domain.DefaultAddress
	}
	if l.Source == "" {
		l.Source = n.DefaultSource
	}
	if l.SearchTerm == "" {
		l.SearchTerm = util.CleanText(term)
	}

	n.score(&l)
	return l, nil
}

// score recomputes priority and quality score in place.
func (n *Normalizer) score(l *domain.Lead) {
	s := n.Scorer
	if s == nil {
		s = rank.NewContactScorer(rank.DefaultWeights())
	}
	l.Priority, l.QualityScore = s.Score(*l)
}

func (n *Normalizer) timestamp(v string) time.Time {
	v = strings.TrimSpace(v)
	if v != "" {
		for _, layout := range timestampLayouts {
			if t, err := time.Parse(layout, v); err == nil {
				return t.UTC()
			}
		}
	}
	now := time.Now
	if n.Now != nil {
		now = n.Now
	}
	return now().UTC()
}

// IsPlaceholder reports whether v is one of the known "no value" sentinels.
func IsPlaceholder(v string) bool {
	v = strings.TrimSpace(v)
	for _, p := range Placeholders {
		if strings.EqualFold(v, p) {
			return true
		}
	}
	return false
}

// lookup returns the first non-empty value among keys. Exact key matches
// win over case-insensitive ones.
func lookup(raw domain.RawLead, keys []string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(raw[k]); v != "" {
			return v
		}
	}
	for _, k := range keys {
		for rk, v := range raw {
			if strings.EqualFold(rk, k) && strings.TrimSpace(v) != "" {
				return strings.TrimSpace(v)
			}
		}
	}
	return ""
}

func phoneOpt(v string) domain.Opt {
	if IsPlaceholder(v) {
		return domain.None()
	}
	p := util.NormalizePhone(v)
	if p == "" {
		return domain.None()
	}
	return domain.Some(p)
}

func emailOpt(v string) domain.Opt {
	v = strings.TrimSpace(v)
	if len(v) >= len("mailto:") && strings.EqualFold(v[:len("mailto:")], "mailto:") {
		v = v[len("mailto:"):]
	}
	if IsPlaceholder(v) || !strings.Contains(v, "@") {
		return domain.None()
	}
	return domain.Some(strings.ToLower(v))
}

func websiteOpt(v string) domain.Opt {
	if IsPlaceholder(v) {
		return domain.None()
	}
	w := util.CanonicalWebsite(v)
	if w == "" {
		return domain.None()
	}
	return domain.Some(w)
}
