package email_scrape

import (
	"testing"
	"time"

	"leadhunt-engine/internal/config"
)

func TestParseLeadBody(t *testing.T) {
	body := `New business enquiry

Name: Acme Trading LLC
Category: General Trading
Phone: +971 4 555 0101
Email: sales@acme.ae
Website: https://acme.ae
https://acme.ae/contact
Name: Someone Else
 - Address: Al Quoz, Dubai
Sent from my phone
`
	rec := ParseLeadBody(body)
	want := map[string]string{
		"Name":     "Acme Trading LLC",
		"Category": "General Trading",
		"Phone":    "+971 4 555 0101",
		"Email":    "sales@acme.ae",
		"Website":  "https://acme.ae",
		"Address":  "Al Quoz, Dubai",
	}
	if len(rec) != len(want) {
		t.Fatalf("record = %v", rec)
	}
	for k, v := range want {
		if rec[k] != v {
			t.Errorf("%s = %q, want %q", k, rec[k], v)
		}
	}
}

func TestHTMLBodyKeepsLines(t *testing.T) {
	rec := ParseLeadBody(htmlToText(`<p>Name: <b>Beta &amp; Co</b></p><p>Phone: 050 123 4567</p>`))
	if rec["Name"] != "Beta & Co" || rec["Phone"] != "050 123 4567" {
		t.Fatalf("record = %v", rec)
	}
}

func TestRecordFromFiltersSubject(t *testing.T) {
	s := New(mailCfg("new lead"))
	raw := []byte("Subject: =?UTF-8?Q?New_Lead_=E2=80=93_Acme?=\r\nFrom: forms@example.com\r\n" +
		"Content-Type: text/plain\r\n\r\nName: Acme\r\nPhone: 04 555 0101\r\n")
	m := message{From: "forms@example.com", Date: time.Date(2025, 5, 6, 7, 8, 9, 0, time.UTC), Raw: raw}

	rec, ok := s.recordFrom(m, "walk-in")
	if !ok {
		t.Fatal("expected subject to match")
	}
	if rec["Name"] != "Acme" || rec["Search Term"] != "walk-in" || rec["Timestamp"] != "2025-05-06T07:08:09.000Z" {
		t.Fatalf("record = %v", rec)
	}

	s = New(mailCfg("invoice"))
	if _, ok := s.recordFrom(m, ""); ok {
		t.Fatal("subject without keyword must be skipped")
	}
}

func mailCfg(subjects ...string) config.MailSource {
	return config.MailSource{IMAPHost: "imap.example.com", Username: "leads@example.com", SearchSubjectAny: subjects}
}

func TestIMAPAddr(t *testing.T) {
	tests := []struct {
		cfg        config.MailSource
		addr, host string
	}{
		{config.MailSource{IMAPHost: "imap.example.com"}, "imap.example.com:993", "imap.example.com"},
		{config.MailSource{IMAPHost: "imap.example.com", IMAPPort: 1993}, "imap.example.com:1993", "imap.example.com"},
		{config.MailSource{IMAPHost: "imap.example.com:143", IMAPPort: 1993}, "imap.example.com:143", "imap.example.com"},
	}
	for _, tt := range tests {
		addr, host := imapAddr(tt.cfg)
		if addr != tt.addr || host != tt.host {
			t.Errorf("imapAddr(%+v) = %q, %q; want %q, %q", tt.cfg, addr, host, tt.addr, tt.host)
		}
	}
}

func TestFillFromHeaders(t *testing.T) {
	m := message{Raw: []byte("Subject: Directory alert\r\nFrom: Alerts <alerts@dir.example.com>\r\n" +
		"Date: Tue, 06 May 2025 07:08:09 +0000\r\n\r\nName: Acme\r\n")}
	fillFromHeaders(&m)
	if m.Subject != "Directory alert" || m.From != "alerts@dir.example.com" || m.Date.IsZero() {
		t.Fatalf("message = %+v", m)
	}
}

func TestParseRFC822Multipart(t *testing.T) {
	raw := "Subject: =?UTF-8?B?TmV3IGxlYWQ=?=\r\n" +
		"Content-Type: multipart/alternative; boundary=XX\r\n\r\n" +
		"--XX\r\nContent-Type: text/html\r\nContent-Transfer-Encoding: base64\r\n\r\n" +
		"PHA+TmFtZTogR2FtbWEgTExDPC9wPjxwPlBob25lOiAwNCAyMjIgMzMzMzwvcD4=\r\n" +
		"--XX--\r\n"

	subj, text := parseRFC822([]byte(raw), "")
	if subj != "New lead" {
		t.Fatalf("subject = %q", subj)
	}
	rec := ParseLeadBody(text)
	if rec["Name"] != "Gamma LLC" || rec["Phone"] != "04 222 3333" {
		t.Fatalf("record = %v from %q", rec, text)
	}
}

func TestParseRFC822NotMail(t *testing.T) {
	raw := "lead list follows\nName: Delta"
	subj, text := parseRFC822([]byte(raw), "fallback")
	if subj != "fallback" || text != raw {
		t.Fatalf("got %q, %q", subj, text)
	}
}
