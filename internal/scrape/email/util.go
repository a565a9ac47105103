package email_scrape

import (
	"bytes"
	"encoding/base64"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"leadhunt-engine/internal/domain"
)

const maxPartBytes = 8 << 20

var reKey = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9 _.-]{0,39}$`)

// body holds the longest text/plain and text/html parts of a message.
type body struct {
	plain, html string
}

func (b *body) keep(media string, data []byte) {
	switch {
	case strings.HasPrefix(media, "text/plain"):
		if len(data) > len(b.plain) {
			b.plain = string(data)
		}
	case strings.HasPrefix(media, "text/html"):
		if len(data) > len(b.html) {
			b.html = string(data)
		}
	}
}

// walk descends into multipart containers, decoding each leaf.
func (b *body) walk(contentType, cte string, data []byte) {
	media, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		b.keep("text/plain", decodeTransferEncoding(data, cte))
		return
	}
	media = strings.ToLower(media)
	if !strings.HasPrefix(media, "multipart/") {
		b.keep(media, decodeTransferEncoding(data, cte))
		return
	}
	if params["boundary"] == "" {
		b.keep("text/plain", data)
		return
	}

	mr := multipart.NewReader(bytes.NewReader(data), params["boundary"])
	for {
		p, err := mr.NextPart()
		if err != nil {
			return
		}
		raw, _ := io.ReadAll(io.LimitReader(p, maxPartBytes))
		b.walk(p.Header.Get("Content-Type"), p.Header.Get("Content-Transfer-Encoding"), raw)
	}
}

// text prefers the plain part and falls back to the rendered HTML.
func (b body) text() string {
	if strings.TrimSpace(b.plain) != "" {
		return b.plain
	}
	return htmlToText(b.html)
}

// parseRFC822 returns the decoded subject and best-effort body text. Raw
// bytes that are not a mail message are treated as plain text.
func parseRFC822(raw []byte, fallbackSubject string) (subject, text string) {
	subject = fallbackSubject
	if len(raw) == 0 {
		return decodeRFC2047(subject), ""
	}
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return decodeRFC2047(subject), string(raw)
	}
	if s := strings.TrimSpace(msg.Header.Get("Subject")); s != "" {
		subject = s
	}

	data, _ := io.ReadAll(io.LimitReader(msg.Body, maxPartBytes))
	var b body
	b.walk(msg.Header.Get("Content-Type"), msg.Header.Get("Content-Transfer-Encoding"), data)
	text = b.text()
	if text == "" {
		text = string(data)
	}
	return decodeRFC2047(subject), text
}

func decodeTransferEncoding(b []byte, cte string) []byte {
	var r io.Reader
	switch strings.ToLower(strings.TrimSpace(cte)) {
	case "base64":
		r = base64.NewDecoder(base64.StdEncoding, bytes.NewReader(b))
	case "quoted-printable":
		r = quotedprintable.NewReader(bytes.NewReader(b))
	default:
		return b
	}
	out, _ := io.ReadAll(io.LimitReader(r, maxPartBytes))
	return out
}

func decodeRFC2047(s string) string {
	s = strings.TrimSpace(s)
	out, err := new(mime.WordDecoder).DecodeHeader(s)
	if err != nil {
		return s
	}
	return out
}

// htmlToText renders an HTML body as text, one line per block element.
func htmlToText(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return ""
	}
	doc.Find("script, style, head").Remove()
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("p, div, tr, li, h1, h2, h3, h4, h5, h6").Each(func(_ int, sel *goquery.Selection) {
		sel.AppendHtml("\n")
	})

	lines := strings.Split(doc.Text(), "\n")
	out := lines[:0]
	for _, l := range lines {
		if l = strings.Join(strings.Fields(l), " "); l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}

// ParseLeadBody turns "Key: Value" lines into a raw record. The first
// occurrence of a key wins; lines that do not look like a field are
// ignored.
func ParseLeadBody(text string) domain.RawLead {
	rec := domain.RawLead{}
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		line = strings.TrimSpace(strings.TrimLeft(line, "*-•> \t"))
		key, val, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		val = strings.TrimSpace(val)
		if val == "" || strings.HasPrefix(val, "//") || !reKey.MatchString(key) {
			continue
		}
		if _, dup := rec[key]; !dup {
			rec[key] = val
		}
	}
	return rec
}

func containsAnyCI(s string, needles []string) bool {
	s = strings.ToLower(s)
	for _, n := range needles {
		if n = strings.ToLower(strings.TrimSpace(n)); n != "" && strings.Contains(s, n) {
			return true
		}
	}
	return false
}
