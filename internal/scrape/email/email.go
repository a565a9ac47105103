package email_scrape

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log"
	"net"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"leadhunt-engine/internal/config"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
)

// message is one lead notification mail as fetched from the server.
type message struct {
	UID     imap.UID
	From    string
	Subject string
	Date    time.Time
	Raw     []byte // full RFC822 bytes, fetched with BODY.PEEK[]
}

// mailbox is a logged-in IMAP connection with one mailbox selected.
type mailbox struct {
	c    *imapclient.Client
	name string
}

func imapAddr(cfg config.MailSource) (addr, host string) {
	if h, _, err := net.SplitHostPort(cfg.IMAPHost); err == nil {
		return cfg.IMAPHost, h
	}
	port := cfg.IMAPPort
	if port == 0 {
		port = 993
	}
	return net.JoinHostPort(cfg.IMAPHost, strconv.Itoa(port)), cfg.IMAPHost
}

// openMailbox dials over TLS, logs in and selects cfg.Mailbox read-write
// (INBOX when empty). The connection is closed when ctx ends.
func openMailbox(ctx context.Context, cfg config.MailSource) (*mailbox, error) {
	if cfg.IMAPHost == "" {
		return nil, errors.New("imap host is required")
	}
	if cfg.Username == "" || cfg.Password == "" {
		return nil, errors.New("imap username/password is required")
	}
	addr, host := imapAddr(cfg)

	c, err := imapclient.DialTLS(addr, &imapclient.Options{
		TLSConfig: &tls.Config{MinVersion: tls.VersionTLS12, ServerName: host},
	})
	if err != nil {
		return nil, fmt.Errorf("imap dial %s: %w", addr, err)
	}
	go func() {
		<-ctx.Done()
		_ = c.Close()
	}()

	if err := c.Login(cfg.Username, cfg.Password).Wait(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("imap login: %w", err)
	}

	name := cfg.Mailbox
	if name == "" {
		name = "INBOX"
	}
	if _, err := c.Select(name, &imap.SelectOptions{ReadOnly: false}).Wait(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("imap select %s: %w", name, err)
	}
	return &mailbox{c: c, name: name}, nil
}

// unseen returns up to max unseen messages received after since, newest
// first. Nothing is flagged; see markSeen.
func (m *mailbox) unseen(ctx context.Context, max int, since time.Time) ([]message, error) {
	if max <= 0 {
		max = 50
	}
	found, err := m.c.UIDSearch(&imap.SearchCriteria{
		NotFlag: []imap.Flag{imap.FlagSeen},
		Since:   since,
	}, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("imap uid search unseen: %w", err)
	}

	uids := found.AllUIDs()
	for i, j := 0, len(uids)-1; i < j; i, j = i+1, j-1 {
		uids[i], uids[j] = uids[j], uids[i]
	}
	if len(uids) > max {
		uids = uids[:max]
	}
	if len(uids) == 0 {
		return nil, nil
	}

	section := &imap.FetchItemBodySection{Specifier: imap.PartSpecifierNone, Peek: true}
	cmd := m.c.Fetch(imap.UIDSetNum(uids...), &imap.FetchOptions{
		UID:         true,
		Envelope:    true,
		BodySection: []*imap.FetchItemBodySection{section},
	})
	defer func() { _ = cmd.Close() }()

	out := make([]message, 0, len(uids))
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data := cmd.Next()
		if data == nil {
			break
		}
		buf, err := data.Collect()
		if err != nil {
			return nil, fmt.Errorf("imap fetch: %w", err)
		}

		msg := message{UID: buf.UID}
		if env := buf.Envelope; env != nil {
			msg.Subject = env.Subject
			msg.Date = env.Date
			msg.From = firstAddr(env.From)
		}
		if b := buf.FindBodySection(section); b != nil {
			msg.Raw = append([]byte(nil), b...)
		}
		if msg.Subject == "" || msg.From == "" || msg.Date.IsZero() {
			fillFromHeaders(&msg)
		}
		out = append(out, msg)
	}
	if err := cmd.Close(); err != nil {
		return nil, fmt.Errorf("imap fetch close: %w", err)
	}
	return out, nil
}

func (m *mailbox) markSeen(uids []imap.UID) error {
	if len(uids) == 0 {
		return nil
	}
	cmd := m.c.Store(imap.UIDSetNum(uids...), &imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Silent: true,
		Flags:  []imap.Flag{imap.FlagSeen},
	}, nil)
	if err := cmd.Close(); err != nil {
		return fmt.Errorf("imap mark seen: %w", err)
	}
	return nil
}

func (m *mailbox) close() {
	if err := m.c.Logout().Wait(); err != nil {
		log.Printf("[source:mail] imap logout: %v", err)
	}
	_ = m.c.Close()
}

func firstAddr(addrs []imap.Address) string {
	for i := range addrs {
		if a := strings.TrimSpace(addrs[i].Addr()); a != "" {
			return a
		}
		if n := strings.TrimSpace(addrs[i].Name); n != "" {
			return n
		}
	}
	return ""
}

// fillFromHeaders completes a message whose envelope came back partial.
func fillFromHeaders(msg *message) {
	if len(msg.Raw) == 0 {
		return
	}
	parsed, err := mail.ReadMessage(strings.NewReader(string(msg.Raw)))
	if err != nil {
		return
	}
	h := parsed.Header
	if msg.Subject == "" {
		msg.Subject = h.Get("Subject")
	}
	if msg.From == "" {
		if a, err := mail.ParseAddress(h.Get("From")); err == nil {
			msg.From = a.Address
		} else {
			msg.From = strings.TrimSpace(h.Get("From"))
		}
	}
	if msg.Date.IsZero() {
		if t, err := mail.ParseDate(h.Get("Date")); err == nil {
			msg.Date = t
		}
	}
}
