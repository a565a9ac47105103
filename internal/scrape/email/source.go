package email_scrape

import (
	"context"
	"fmt"
	"log"
	"time"

	"leadhunt-engine/internal/config"
	"leadhunt-engine/internal/domain"
	"leadhunt-engine/internal/scrape/types"

	"github.com/emersion/go-imap/v2"
)

// maxAge drops notifications older than a month.
const maxAge = 30 * 24 * time.Hour

// Source reads lead notification mails (form submissions, directory
// alerts) from an IMAP mailbox. Each unseen message whose subject matches
// one of the configured keywords becomes one raw record; the messages are
// marked seen once the session has processed them.
type Source struct {
	Cfg config.MailSource
	Now func() time.Time
}

func New(cfg config.MailSource) *Source { return &Source{Cfg: cfg, Now: time.Now} }

func (s *Source) Name() string { return "mail" }

// Search ignores term for selection; the term only labels records that do
// not carry their own.
func (s *Source) Search(ctx context.Context, term string) (types.SearchResult, error) {
	if s.Cfg.Password == "" {
		return types.SearchResult{}, fmt.Errorf("mail source: missing imap password for %s", s.Cfg.Username)
	}
	cctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	mb, err := openMailbox(cctx, s.Cfg)
	if err != nil {
		return types.SearchResult{}, err
	}
	defer mb.close()

	msgs, err := mb.unseen(cctx, s.Cfg.MaxMessages, s.Now().Add(-maxAge))
	if err != nil {
		return types.SearchResult{}, err
	}

	var (
		recs []domain.RawLead
		uids []imap.UID
	)
	for _, m := range msgs {
		rec, ok := s.recordFrom(m, term)
		if !ok {
			continue
		}
		recs = append(recs, rec)
		uids = append(uids, m.UID)
	}
	log.Printf("[source:mail] unseen=%d matched=%d mailbox=%q", len(msgs), len(recs), mb.name)

	res := types.SearchResult{Source: s.Name(), Records: recs}
	if len(uids) > 0 {
		res.Finalize = func(ctx context.Context, processed int) error {
			return s.markSeen(ctx, uids[:min(processed, len(uids))])
		}
	}
	return res, nil
}

func (s *Source) recordFrom(m message, term string) (domain.RawLead, bool) {
	subj, text := parseRFC822(m.Raw, m.Subject)
	if len(s.Cfg.SearchSubjectAny) > 0 && !containsAnyCI(subj, s.Cfg.SearchSubjectAny) {
		return nil, false
	}
	rec := ParseLeadBody(text)
	if len(rec) == 0 {
		return nil, false
	}
	if _, ok := rec["Search Term"]; !ok && term != "" {
		rec["Search Term"] = term
	}
	if _, ok := rec["Data Source"]; !ok {
		rec["Data Source"] = "Email: " + m.From
	}
	if _, ok := rec["Timestamp"]; !ok && !m.Date.IsZero() {
		rec["Timestamp"] = domain.FormatTimestamp(m.Date)
	}
	return rec, true
}

// markSeen uses a fresh connection: the search one is closed by the time
// the session has processed the records.
func (s *Source) markSeen(ctx context.Context, uids []imap.UID) error {
	if len(uids) == 0 {
		return nil
	}
	cctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	mb, err := openMailbox(cctx, s.Cfg)
	if err != nil {
		return err
	}
	defer mb.close()
	return mb.markSeen(uids)
}
