package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"leadhunt-engine/internal/config"
	"leadhunt-engine/internal/dedup"
	"leadhunt-engine/internal/delivery"
	"leadhunt-engine/internal/domain"
	"leadhunt-engine/internal/events"
	"leadhunt-engine/internal/export"
	"leadhunt-engine/internal/normalize"
	"leadhunt-engine/internal/scrape/types"
	"leadhunt-engine/internal/store"

	"github.com/google/uuid"
)

type State string

const (
	StateIdle       State = "IDLE"
	StateRunning    State = "RUNNING"
	StateSearching  State = "SEARCHING"
	StateFinalizing State = "FINALIZE"
	StateDone       State = "DONE"
)

// Options are the per-run knobs taken from config.Session and config.Push.
type Options struct {
	Terms      []string
	Duration   time.Duration
	TermPause  time.Duration
	LeadPause  time.Duration
	SinglePass bool // one round over the terms, ignoring Duration

	RealTime   bool
	BatchAtEnd bool

	OutputDir  string
	FilePrefix string
	WriteXLSX  bool
}

// OptionsFromConfig maps the session and push settings. A mail source
// without search terms gets one unnamed term: the mailbox, not the term,
// selects its records.
func OptionsFromConfig(cfg config.Config) Options {
	terms := cfg.Session.SearchTerms
	if len(terms) == 0 && cfg.Source.Type == "mail" {
		terms = []string{""}
	}
	return Options{
		Terms:      terms,
		Duration:   cfg.Session.Duration(),
		TermPause:  cfg.Session.TermPause(),
		LeadPause:  cfg.Session.LeadPause(),
		RealTime:   cfg.Push.RealTime,
		BatchAtEnd: cfg.Push.BatchAtEnd,
		OutputDir:  cfg.Session.OutputDir,
		FilePrefix: cfg.Session.FilePrefix,
		WriteXLSX:  cfg.Session.WriteXLSX,
	}
}

// Status is a point-in-time snapshot of a run.
type Status struct {
	ID          string    `json:"id"`
	State       State     `json:"state"`
	StartedAt   time.Time `json:"startedAt"`
	FinishedAt  time.Time `json:"finishedAt"`
	CurrentTerm string    `json:"currentTerm"`
	TermsDone   int       `json:"termsDone"`
	Scraped     int       `json:"scraped"`
	Duplicates  int       `json:"duplicates"`
	Invalid     int       `json:"invalid"`
	Delivered   int       `json:"delivered"`
	Failed      int       `json:"failed"`
	Buffered    int       `json:"buffered"`
	OutputFile  string    `json:"outputFile,omitempty"`
	XLSXFile    string    `json:"xlsxFile,omitempty"`
	Interrupted bool      `json:"interrupted"`
	Error       string    `json:"error,omitempty"`
}

func (s Status) Running() bool {
	return s.State == StateRunning || s.State == StateSearching || s.State == StateFinalizing
}

// Driver runs one collection session: search, normalize, dedupe, deliver
// and buffer until the time budget is spent, then flush the buffer to disk.
// Client, Ledger and Hub are optional.
type Driver struct {
	Source     types.Source
	Normalizer *normalize.Normalizer
	Client     delivery.Client
	Retry      delivery.RetryPolicy
	Ledger     *sql.DB
	Hub        *events.Hub
	Opts       Options
	Now        func() time.Time

	mu     sync.Mutex
	status Status
}

// buffered is one accepted lead and where it stands with the CRM.
type buffered struct {
	lead      domain.Lead
	ledgerID  int64
	attempted bool
	delivered bool
}

type run struct {
	gate   *dedup.Gate
	buffer []*buffered
}

func (r *run) leads() []domain.Lead {
	out := make([]domain.Lead, len(r.buffer))
	for i, b := range r.buffer {
		out[i] = b.lead
	}
	return out
}

var ErrNoTerms = errors.New("session has no search terms")

func (d *Driver) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d *Driver) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status
}

func (d *Driver) update(fn func(*Status)) {
	d.mu.Lock()
	fn(&d.status)
	d.mu.Unlock()
}

// Run blocks until the session is done. Canceling ctx interrupts the search
// loop; the leads collected so far are still written out before Run
// returns. The returned error is only set for a session that could not
// start or that panicked.
func (d *Driver) Run(ctx context.Context) (st Status, err error) {
	if len(d.Opts.Terms) == 0 {
		return d.Status(), ErrNoTerms
	}
	if d.Source == nil || d.Normalizer == nil {
		return d.Status(), errors.New("session needs a source and a normalizer")
	}

	started := d.now()
	id := uuid.NewString()
	d.update(func(s *Status) {
		*s = Status{ID: id, State: StateRunning, StartedAt: started}
	})
	if d.Ledger != nil {
		if err := store.StartSession(ctx, d.Ledger, id, string(StateRunning), started); err != nil {
			log.Printf("[session] ledger start failed id=%s err=%v", id, err)
		}
	}
	log.Printf("[session] started id=%s source=%s terms=%d duration=%s", id, d.Source.Name(), len(d.Opts.Terms), d.Opts.Duration)
	d.Hub.Emit(id, events.TypeSessionStarted, map[string]any{"terms": d.Opts.Terms, "source": d.Source.Name()})

	r := &run{gate: dedup.NewGate()}
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("session panic: %v", p)
			log.Printf("[session] panic id=%s: %v", id, p)
		}
		st = d.finalize(ctx, r, err)
	}()

	d.loop(ctx, r, started)
	return st, nil
}

func (d *Driver) loop(ctx context.Context, r *run, started time.Time) {
	lctx := ctx
	if !d.Opts.SinglePass && d.Opts.Duration > 0 {
		var cancel context.CancelFunc
		lctx, cancel = context.WithDeadline(ctx, started.Add(d.Opts.Duration))
		defer cancel()
	}

	for i := 0; lctx.Err() == nil; i++ {
		if d.Opts.SinglePass && i == len(d.Opts.Terms) {
			return
		}
		term := d.Opts.Terms[i%len(d.Opts.Terms)]
		d.searchTerm(lctx, r, term)
		if !sleep(lctx, d.Opts.TermPause) {
			return
		}
	}
}

func (d *Driver) searchTerm(ctx context.Context, r *run, term string) {
	id := d.Status().ID
	d.update(func(s *Status) {
		s.State = StateSearching
		s.CurrentTerm = term
	})
	d.Hub.Emit(id, events.TypeTermStarted, map[string]any{"term": term})

	res, err := d.Source.Search(ctx, term)
	if err != nil {
		log.Printf("[session] search failed term=%q err=%v", term, err)
		d.Hub.Emit(id, events.TypeTermFailed, map[string]any{"term": term, "error": err.Error()})
		d.update(func(s *Status) { s.TermsDone++ })
		return
	}
	log.Printf("[session] term=%q records=%d", term, len(res.Records))

	processed := 0
	for i, raw := range res.Records {
		if ctx.Err() != nil {
			break
		}
		d.process(ctx, r, raw, term)
		processed++
		if i < len(res.Records)-1 && !sleep(ctx, d.Opts.LeadPause) {
			break
		}
	}

	d.finishSearch(ctx, res, term, processed)
	if processed < len(res.Records) {
		return
	}
	d.update(func(s *Status) { s.TermsDone++ })
}

// finishSearch hands the processed count back to the source, also when the
// term was cut short, so already buffered records are not served again.
func (d *Driver) finishSearch(ctx context.Context, res types.SearchResult, term string, processed int) {
	if res.Finalize == nil {
		return
	}
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Minute)
	defer cancel()
	if err := res.Finalize(fctx, processed); err != nil {
		log.Printf("[session] source finalize failed term=%q processed=%d err=%v", term, processed, err)
	}
}

// process takes one raw record through normalize, dedup, real-time delivery
// and into the buffer. Nothing here stops the session.
func (d *Driver) process(ctx context.Context, r *run, raw domain.RawLead, term string) {
	id := d.Status().ID

	lead, err := d.Normalizer.Normalize(raw, term)
	if err != nil {
		log.Printf("[session] dropped record term=%q err=%v", term, err)
		d.update(func(s *Status) { s.Invalid++ })
		d.Hub.Emit(id, events.TypeLeadInvalid, map[string]any{"term": term, "error": err.Error()})
		return
	}
	if !r.gate.Accept(lead.Name) {
		d.update(func(s *Status) { s.Duplicates++ })
		d.Hub.Emit(id, events.TypeLeadDuplicate, map[string]any{"name": lead.Name})
		return
	}

	b := &buffered{lead: lead}
	if d.Ledger != nil {
		lid, err := store.InsertLead(context.WithoutCancel(ctx), d.Ledger, id, lead)
		if err != nil {
			log.Printf("[session] ledger insert failed lead=%q err=%v", lead.Name, err)
		} else {
			b.ledgerID = lid
		}
	}
	d.update(func(s *Status) { s.Scraped++ })
	d.Hub.Emit(id, events.TypeLeadCaptured, map[string]any{
		"name":     lead.Name,
		"priority": lead.Priority,
		"quality":  lead.QualityScore,
		"term":     term,
	})

	if d.Client != nil && d.Opts.RealTime {
		res := d.Retry.Deliver(ctx, d.Client, lead)
		d.settle(ctx, b, res)
	}

	r.buffer = append(r.buffer, b)
	d.update(func(s *Status) { s.Buffered = len(r.buffer) })
}

func (d *Driver) settle(ctx context.Context, b *buffered, res domain.DeliveryResult) {
	id := d.Status().ID
	b.attempted = true
	b.delivered = res.OK
	if d.Ledger != nil && b.ledgerID != 0 {
		if err := store.RecordDelivery(context.WithoutCancel(ctx), d.Ledger, b.ledgerID, d.Client.Name(), res); err != nil {
			log.Printf("[session] ledger delivery failed lead=%q err=%v", b.lead.Name, err)
		}
	}
	if res.OK {
		d.Hub.Emit(id, events.TypeLeadDelivered, map[string]any{"name": b.lead.Name, "attempts": res.Attempts})
		return
	}
	d.Hub.Emit(id, events.TypeLeadFailed, map[string]any{
		"name":     b.lead.Name,
		"kind":     res.Kind,
		"status":   res.StatusCode,
		"attempts": res.Attempts,
	})
}

// finalize always runs: it writes the buffer out even when the search loop
// was interrupted or panicked.
func (d *Driver) finalize(ctx context.Context, r *run, runErr error) Status {
	interrupted := ctx.Err() != nil
	d.update(func(s *Status) {
		s.State = StateFinalizing
		s.CurrentTerm = ""
		s.Interrupted = interrupted
	})

	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Minute)
	defer cancel()

	var errs []string
	if runErr != nil {
		errs = append(errs, runErr.Error())
	}

	started := d.Status().StartedAt
	leads := r.leads()
	var csvPath, xlsxPath string
	if len(leads) > 0 {
		csvPath = export.SessionFileName(d.Opts.OutputDir, d.Opts.FilePrefix, started, "csv")
		if err := export.WriteCSVFile(csvPath, leads); err != nil {
			log.Printf("[session] csv export failed path=%s err=%v", csvPath, err)
			errs = append(errs, err.Error())
			csvPath = ""
		} else {
			log.Printf("[session] saved %d leads to %s", len(leads), csvPath)
		}
		if d.Opts.WriteXLSX {
			xlsxPath = export.SessionFileName(d.Opts.OutputDir, d.Opts.FilePrefix, started, "xlsx")
			if err := export.WriteXLSX(xlsxPath, leads); err != nil {
				log.Printf("[session] xlsx export failed path=%s err=%v", xlsxPath, err)
				xlsxPath = ""
			}
		}
	}

	// Interrupted runs leave undelivered leads pending in the ledger for
	// a later redelivery instead of holding shutdown on the CRM.
	if d.Client != nil && d.Opts.BatchAtEnd && !interrupted {
		d.trailingBatch(fctx, r)
	}

	delivered, failed := 0, 0
	for _, b := range r.buffer {
		switch {
		case b.delivered:
			delivered++
		case b.attempted:
			failed++
		}
	}

	d.update(func(s *Status) {
		s.State = StateDone
		s.FinishedAt = d.now()
		s.Delivered = delivered
		s.Failed = failed
		s.Buffered = len(r.buffer)
		s.OutputFile = csvPath
		s.XLSXFile = xlsxPath
		if len(errs) > 0 {
			s.Error = errs[0]
		}
	})
	st := d.Status()

	if d.Ledger != nil {
		row := store.SessionRow{
			ID:         st.ID,
			State:      string(st.State),
			FinishedAt: st.FinishedAt.UTC().Format("2006-01-02 15:04:05"),
			TermsDone:  st.TermsDone,
			Scraped:    st.Scraped,
			Duplicates: st.Duplicates,
			Invalid:    st.Invalid,
			Delivered:  st.Delivered,
			Failed:     st.Failed,
			OutputFile: st.OutputFile,
			Error:      st.Error,
		}
		if err := store.SaveSession(fctx, d.Ledger, row); err != nil {
			log.Printf("[session] ledger save failed id=%s err=%v", st.ID, err)
		}
	}

	log.Printf("[session] finished id=%s scraped=%d duplicates=%d invalid=%d delivered=%d failed=%d interrupted=%v",
		st.ID, st.Scraped, st.Duplicates, st.Invalid, st.Delivered, st.Failed, st.Interrupted)
	d.Hub.Emit(st.ID, events.TypeSessionFinished, st)
	return st
}

func (d *Driver) trailingBatch(ctx context.Context, r *run) {
	var pending []*buffered
	for _, b := range r.buffer {
		if !b.delivered {
			pending = append(pending, b)
		}
	}
	if len(pending) == 0 {
		return
	}
	leads := make([]domain.Lead, len(pending))
	for i, b := range pending {
		leads[i] = b.lead
	}
	log.Printf("[session] trailing batch count=%d crm=%s", len(leads), d.Client.Name())
	for i, res := range delivery.DeliverAll(ctx, d.Client, d.Retry, leads) {
		d.settle(ctx, pending[i], res)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
