package domain

import (
	"strings"
	"time"
)

const (
	DefaultCategory = "Business Services"
	DefaultAddress  = "Dubai, UAE"
	DefaultSource   = "Google Maps Scraper"
)

// RawLead is one listing as handed over by a scrape source. Keys vary by
// source ("Name", "Company Name", "name", ...).
type RawLead map[string]string

// Opt is an optional contact field. The zero value means "no value", which
// is distinct from an empty string.
type Opt struct {
	val string
	ok  bool
}

func Some(v string) Opt { return Opt{val: v, ok: true} }

func None() Opt { return Opt{} }

func (o Opt) Get() (string, bool) { return o.val, o.ok }

func (o Opt) Present() bool { return o.ok }

// Or returns the value or fallback when absent.
func (o Opt) Or(fallback string) string {
	if o.ok {
		return o.val
	}
	return fallback
}

type Lead struct {
	Name         string
	Category     string
	Phone        Opt
	Email        Opt
	Website      Opt
	Address      string
	Priority     Priority
	QualityScore int
	Source       string
	SearchTerm   string
	CapturedAt   time.Time
}

// HasCategory reports whether the lead carries a category that is not one of
// the generic fallbacks.
func (l Lead) HasCategory(generic []string) bool {
	c := strings.TrimSpace(l.Category)
	if c == "" {
		return false
	}
	for _, g := range generic {
		if strings.EqualFold(c, strings.TrimSpace(g)) {
			return false
		}
	}
	return true
}

// Channels counts the contact channels present (phone, website, email).
func (l Lead) Channels() int {
	n := 0
	for _, o := range []Opt{l.Phone, l.Website, l.Email} {
		if o.Present() {
			n++
		}
	}
	return n
}

// TimestampString renders CapturedAt the way the webhook and the session
// files expect it: millisecond precision, UTC, "Z" suffix.
func (l Lead) TimestampString() string {
	return FormatTimestamp(l.CapturedAt)
}

const TimestampLayout = "2006-01-02T15:04:05.000Z"

func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}
