package util

import (
	"net/url"
	"sort"
	"strings"
)

// CanonicalWebsite lowercases scheme and host, adds a missing https scheme
// and strips fragments and tracking parameters. Google redirect wrappers
// (/url?q=...) are unwrapped.
func CanonicalWebsite(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return strings.TrimSpace(raw)
	}

	if strings.HasSuffix(strings.ToLower(u.Host), "google.com") && u.Path == "/url" {
		if q := u.Query().Get("q"); q != "" {
			return CanonicalWebsite(q)
		}
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	q := u.Query()
	for k := range q {
		lk := strings.ToLower(k)
		if strings.HasPrefix(lk, "utm_") ||
			lk == "gclid" || lk == "fbclid" || lk == "msclkid" ||
			lk == "mc_cid" || lk == "mc_eid" {
			q.Del(k)
		}
	}

	// deterministic query
	for k := range q {
		vals := q[k]
		sort.Strings(vals)
		q[k] = vals
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// HostOf returns the lowercased host of raw, or "" if it has none.
func HostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host)
}
