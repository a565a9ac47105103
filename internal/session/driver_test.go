package session

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"leadhunt-engine/internal/config"
	"leadhunt-engine/internal/delivery"
	"leadhunt-engine/internal/domain"
	"leadhunt-engine/internal/export"
	"leadhunt-engine/internal/normalize"
	"leadhunt-engine/internal/rank"
	"leadhunt-engine/internal/scrape/types"
	"leadhunt-engine/internal/store"
)

// fakeSource returns records per term. onSearch runs before each search and
// may return an error for that call.
type fakeSource struct {
	mu        sync.Mutex
	byTerm    map[string][]domain.RawLead
	calls     int
	finalized []int // processed count per Finalize call
	onSearch  func(call int) error
}

func (s *fakeSource) Name() string { return "fake" }

func (s *fakeSource) Search(ctx context.Context, term string) (types.SearchResult, error) {
	s.mu.Lock()
	s.calls++
	call := s.calls
	s.mu.Unlock()
	if s.onSearch != nil {
		if err := s.onSearch(call); err != nil {
			return types.SearchResult{}, err
		}
	}
	return types.SearchResult{
		Source:  "fake",
		Records: s.byTerm[term],
		Finalize: func(_ context.Context, processed int) error {
			s.mu.Lock()
			s.finalized = append(s.finalized, processed)
			s.mu.Unlock()
			return nil
		},
	}, nil
}

type fakeClient struct {
	mu     sync.Mutex
	fail   bool
	pushed []string
	onPush func(n int) // called with the push count, outside the lock
}

func (c *fakeClient) Name() string { return "fake" }

func (c *fakeClient) Push(ctx context.Context, l domain.Lead) domain.DeliveryResult {
	c.mu.Lock()
	c.pushed = append(c.pushed, l.Name)
	n := len(c.pushed)
	c.mu.Unlock()
	if c.onPush != nil {
		c.onPush(n)
	}
	if c.fail {
		return domain.Failed(domain.ErrKindHTTPStatus, http.StatusInternalServerError, "boom")
	}
	return domain.Delivered(http.StatusOK)
}

func (c *fakeClient) PushBatch(ctx context.Context, leads []domain.Lead) domain.BatchResult {
	var res domain.BatchResult
	for _, l := range leads {
		if c.Push(ctx, l).OK {
			res.Success++
		} else {
			res.Failed++
		}
	}
	return res
}

func raw(name, phone string) domain.RawLead {
	return domain.RawLead{"Name": name, "Phone": phone, "Category": "Auditors"}
}

func newDriver(t *testing.T, src types.Source, terms ...string) *Driver {
	t.Helper()
	return &Driver{
		Source:     src,
		Normalizer: normalize.New(rank.NewContactScorer(rank.DefaultWeights()), ""),
		Retry:      delivery.RetryPolicy{MaxAttempts: 2, Enabled: true},
		Opts: Options{
			Terms:      terms,
			Duration:   time.Minute,
			SinglePass: true,
			RealTime:   true,
			OutputDir:  t.TempDir(),
			FilePrefix: "test-leads",
		},
	}
}

func TestRunDedupsAndCountsInvalid(t *testing.T) {
	src := &fakeSource{byTerm: map[string][]domain.RawLead{
		"auditors": {raw("Acme Audit", "+971 4 123 4567"), raw("", "+971 4 000 0000"), raw("Acme Audit", "")},
		"lawyers":  {raw("Acme Audit", ""), raw("Blue Law", "04 555 1234")},
	}}
	d := newDriver(t, src, "auditors", "lawyers")

	st, err := d.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if st.State != StateDone || st.Interrupted {
		t.Fatalf("status = %+v", st)
	}
	if st.Scraped != 2 || st.Duplicates != 2 || st.Invalid != 1 || st.TermsDone != 2 {
		t.Fatalf("counters = %+v", st)
	}
	if len(src.finalized) != 2 || src.finalized[0] != 3 || src.finalized[1] != 2 {
		t.Fatalf("finalize calls = %v, want [3 2]", src.finalized)
	}

	leads, err := export.ReadCSVFile(st.OutputFile)
	if err != nil {
		t.Fatal(err)
	}
	if len(leads) != 2 || leads[0].Name != "Acme Audit" || leads[1].Name != "Blue Law" {
		t.Fatalf("csv leads = %+v", leads)
	}
	if leads[0].SearchTerm != "auditors" {
		t.Fatalf("search term = %q", leads[0].SearchTerm)
	}
}

func TestInterruptFlushesBuffer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src := &fakeSource{byTerm: map[string][]domain.RawLead{
		"auditors": {raw("One", ""), raw("Two", ""), raw("Three", "")},
		"lawyers":  {raw("Four", "")},
	}}
	src.onSearch = func(call int) error {
		if call == 2 {
			cancel()
			return context.Canceled
		}
		return nil
	}
	d := newDriver(t, src, "auditors", "lawyers")
	d.Opts.SinglePass = false

	st, err := d.Run(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !st.Interrupted || st.State != StateDone {
		t.Fatalf("status = %+v", st)
	}
	leads, err := export.ReadCSVFile(st.OutputFile)
	if err != nil {
		t.Fatal(err)
	}
	if len(leads) != 3 || st.Buffered != 3 {
		t.Fatalf("rows=%d buffered=%d, want 3", len(leads), st.Buffered)
	}
}

func TestInterruptMidTermFinalizesProcessedRecords(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src := &fakeSource{byTerm: map[string][]domain.RawLead{
		"auditors": {raw("One", ""), raw("Two", ""), raw("Three", "")},
	}}
	c := &fakeClient{onPush: func(n int) {
		if n == 2 {
			cancel()
		}
	}}
	d := newDriver(t, src, "auditors")
	d.Client = c

	st, err := d.Run(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !st.Interrupted || st.Buffered != 2 || st.TermsDone != 0 {
		t.Fatalf("status = %+v", st)
	}
	if len(src.finalized) != 1 || src.finalized[0] != 2 {
		t.Fatalf("finalize calls = %v, want [2]", src.finalized)
	}
}

func TestMailConfigWithoutTermsRuns(t *testing.T) {
	cfg := config.Default()
	cfg.Source = config.Source{Type: "mail", Mail: config.MailSource{
		IMAPHost: "imap.example.com", Username: "leads@example.com", SearchSubjectAny: []string{"lead"},
	}}
	cfg.Session.SearchTerms = nil
	cfg, vr := config.NormalizeAndValidate(cfg)
	if !vr.OK() {
		t.Fatalf("config rejected: %v", vr.Errors)
	}

	opts := OptionsFromConfig(cfg)
	if len(opts.Terms) != 1 || opts.Terms[0] != "" {
		t.Fatalf("terms = %q, want one unnamed term", opts.Terms)
	}

	src := &fakeSource{byTerm: map[string][]domain.RawLead{"": {raw("Inbox Lead", "04 555 0101")}}}
	d := newDriver(t, src)
	d.Opts.Terms = opts.Terms
	st, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if st.Scraped != 1 || st.TermsDone != 1 {
		t.Fatalf("status = %+v", st)
	}
}

func TestNoFileWhenNothingCollected(t *testing.T) {
	src := &fakeSource{byTerm: map[string][]domain.RawLead{}}
	d := newDriver(t, src, "auditors")

	st, err := d.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if st.OutputFile != "" {
		t.Fatalf("unexpected output file %q", st.OutputFile)
	}
	matches, _ := filepath.Glob(filepath.Join(d.Opts.OutputDir, "*"))
	if len(matches) != 0 {
		t.Fatalf("files written: %v", matches)
	}
}

func TestFailingDeliveryDoesNotStopSession(t *testing.T) {
	src := &fakeSource{byTerm: map[string][]domain.RawLead{
		"auditors": {raw("One", "04 111 2222"), raw("Two", "")},
		"lawyers":  {raw("Three", "")},
	}}
	c := &fakeClient{fail: true}
	d := newDriver(t, src, "auditors", "lawyers")
	d.Client = c

	st, err := d.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if st.Scraped != 3 || st.Failed != 3 || st.Delivered != 0 || st.TermsDone != 2 {
		t.Fatalf("status = %+v", st)
	}
	if len(c.pushed) != 6 {
		t.Fatalf("pushes = %d, want 6 (2 attempts each)", len(c.pushed))
	}
	leads, _ := export.ReadCSVFile(st.OutputFile)
	if len(leads) != 3 {
		t.Fatalf("csv rows = %d, want 3", len(leads))
	}
}

func TestSourceErrorSkipsTerm(t *testing.T) {
	src := &fakeSource{byTerm: map[string][]domain.RawLead{"lawyers": {raw("Blue Law", "")}}}
	src.onSearch = func(call int) error {
		if call == 1 {
			return errors.New("listing page down")
		}
		return nil
	}
	d := newDriver(t, src, "auditors", "lawyers")

	st, _ := d.Run(context.Background())
	if st.Scraped != 1 || st.TermsDone != 2 {
		t.Fatalf("status = %+v", st)
	}
}

func TestBatchAtEndWithLedger(t *testing.T) {
	db, err := store.Open(filepath.Join(t.TempDir(), "leadhunt.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	src := &fakeSource{byTerm: map[string][]domain.RawLead{
		"auditors": {raw("One", ""), raw("Two", "")},
	}}
	c := &fakeClient{}
	d := newDriver(t, src, "auditors")
	d.Client = c
	d.Ledger = db.Pool
	d.Opts.RealTime = false
	d.Opts.BatchAtEnd = true

	st, err := d.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if st.Delivered != 2 || len(c.pushed) != 2 {
		t.Fatalf("status=%+v pushes=%v", st, c.pushed)
	}

	counts, err := store.CountByStatus(context.Background(), db.Pool)
	if err != nil {
		t.Fatal(err)
	}
	if counts[store.StatusDelivered] != 2 {
		t.Fatalf("ledger counts = %v", counts)
	}
	row, err := store.GetSession(context.Background(), db.Pool, st.ID)
	if err != nil {
		t.Fatal(err)
	}
	if row.State != string(StateDone) || row.Scraped != 2 || row.Delivered != 2 {
		t.Fatalf("session row = %+v", row)
	}
}

func TestDurationEndsRun(t *testing.T) {
	src := &fakeSource{byTerm: map[string][]domain.RawLead{"auditors": {raw("One", "")}}}
	d := newDriver(t, src, "auditors")
	d.Opts.SinglePass = false
	d.Opts.Duration = 50 * time.Millisecond
	d.Opts.TermPause = 5 * time.Millisecond

	start := time.Now()
	st, err := d.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if time.Since(start) > 5*time.Second {
		t.Fatal("run outlived its duration")
	}
	if st.Interrupted || st.Scraped != 1 || st.Duplicates == 0 {
		t.Fatalf("status = %+v", st)
	}
}

func TestRunWithoutTerms(t *testing.T) {
	d := newDriver(t, &fakeSource{})
	if _, err := d.Run(context.Background()); !errors.Is(err, ErrNoTerms) {
		t.Fatalf("err = %v", err)
	}
}
