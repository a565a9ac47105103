package util

import "strings"

func CleanText(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = strings.Join(strings.Fields(s), " ")
	return strings.TrimSpace(s)
}

// NormalizeAddress collapses whitespace, drops an "Address:" label and
// repeated comma-separated parts ("Deira, Dubai, Dubai" -> "Deira, Dubai").
func NormalizeAddress(addr string) string {
	addr = CleanText(addr)
	if addr == "" {
		return ""
	}

	low := strings.ToLower(addr)
	for _, label := range []string{"address:", "location:"} {
		if strings.HasPrefix(low, label) {
			addr = strings.TrimSpace(addr[len(label):])
			break
		}
	}

	parts := strings.Split(addr, ",")
	seen := map[string]bool{}
	var out []string
	for _, p := range parts {
		p = CleanText(p)
		if p == "" {
			continue
		}
		k := strings.ToLower(p)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, p)
	}
	return strings.Join(out, ", ")
}

// NormalizePhone keeps a leading "+" and digits, separators collapsed to
// single spaces. Returns "" when fewer than 6 digits remain.
func NormalizePhone(raw string) string {
	raw = CleanText(raw)
	var b strings.Builder
	digits := 0
	lastSpace := false
	for i, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
			digits++
			lastSpace = false
		case r == '+' && i == 0:
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '(' || r == ')' || r == '.':
			if b.Len() > 0 && !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		}
	}
	if digits < 6 {
		return ""
	}
	return strings.TrimSpace(b.String())
}
