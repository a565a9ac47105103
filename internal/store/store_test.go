package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"leadhunt-engine/internal/domain"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "leadhunt.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testLead(name string) domain.Lead {
	return domain.Lead{
		Name:         name,
		Category:     "Auditors",
		Email:        domain.Some("hello@" + name + ".ae"),
		Address:      domain.DefaultAddress,
		Priority:     domain.PriorityMedium,
		QualityScore: 6,
		Source:       domain.DefaultSource,
		SearchTerm:   "auditors",
		CapturedAt:   time.Date(2025, 6, 1, 10, 0, 0, 123000000, time.UTC),
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	if err := Migrate(db.Pool); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}

func TestInsertAndListLeadRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	in := testLead("acme")
	id, err := InsertLead(ctx, db.Pool, "s1", in)
	if err != nil {
		t.Fatal(err)
	}
	rows, err := ListLeads(ctx, db.Pool, ListLeadsOpts{Window: "all"})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].ID != id || rows[0].Status != StatusPending {
		t.Fatalf("rows = %+v", rows)
	}
	out := rows[0].Lead()
	if out.Phone.Present() || out.Website.Present() {
		t.Fatalf("absent fields came back present: %+v", out)
	}
	if out.Email != in.Email || out.Priority != in.Priority || !out.CapturedAt.Equal(in.CapturedAt) {
		t.Fatalf("round trip mismatch:\n in=%+v\nout=%+v", in, out)
	}
}

func TestRecordDeliveryAndListFailed(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	okID, _ := InsertLead(ctx, db.Pool, "s1", testLead("acme"))
	badID, _ := InsertLead(ctx, db.Pool, "s1", testLead("beta"))

	if err := RecordDelivery(ctx, db.Pool, okID, "webhook", domain.Delivered(200)); err != nil {
		t.Fatal(err)
	}
	fail := domain.Failed(domain.ErrKindHTTPStatus, 500, "boom")
	fail.Attempts = 3
	if err := RecordDelivery(ctx, db.Pool, badID, "webhook", fail); err != nil {
		t.Fatal(err)
	}

	failed, err := ListFailed(ctx, db.Pool, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(failed) != 1 || failed[0].ID != badID || failed[0].Attempts != 3 || failed[0].LastError == "" {
		t.Fatalf("failed = %+v", failed)
	}

	// a later successful redelivery clears it
	if err := RecordDelivery(ctx, db.Pool, badID, "webhook", domain.Delivered(201)); err != nil {
		t.Fatal(err)
	}
	failed, _ = ListFailed(ctx, db.Pool, 10)
	if len(failed) != 0 {
		t.Fatalf("failed after redelivery = %+v", failed)
	}
	counts, err := CountByStatus(ctx, db.Pool)
	if err != nil {
		t.Fatal(err)
	}
	if counts[StatusDelivered] != 2 {
		t.Fatalf("counts = %v", counts)
	}
}

func TestSessionLifecycle(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := StartSession(ctx, db.Pool, "abc", "RUNNING", time.Now()); err != nil {
		t.Fatal(err)
	}
	row := SessionRow{ID: "abc", State: "DONE", FinishedAt: "2025-06-01 11:00:00", Scraped: 4, Delivered: 3, Failed: 1, OutputFile: "results/x.csv"}
	if err := SaveSession(ctx, db.Pool, row); err != nil {
		t.Fatal(err)
	}
	got, err := GetSession(ctx, db.Pool, "abc")
	if err != nil {
		t.Fatal(err)
	}
	if got.State != "DONE" || got.Scraped != 4 || got.OutputFile != "results/x.csv" {
		t.Fatalf("session = %+v", got)
	}
	if _, err := GetSession(ctx, db.Pool, "missing"); err != ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	list, _ := ListSessions(ctx, db.Pool, 0)
	if len(list) != 1 {
		t.Fatalf("sessions = %+v", list)
	}
}

func TestOpenUsesWALAndCheckpoints(t *testing.T) {
	db := openTestDB(t)
	var mode string
	if err := db.Pool.QueryRow(`PRAGMA journal_mode;`).Scan(&mode); err != nil {
		t.Fatal(err)
	}
	if mode != "wal" {
		t.Fatalf("journal_mode = %q, want wal", mode)
	}
	if err := Checkpoint(context.Background(), db.Pool); err != nil {
		t.Fatalf("checkpoint: %v", err)
	}
}

func TestListPendingOldestFirstWithLimit(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	for _, name := range []string{"first", "second", "third"} {
		if _, err := InsertLead(ctx, db.Pool, "s1", testLead(name)); err != nil {
			t.Fatal(err)
		}
	}

	rows, err := ListPending(ctx, db.Pool, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 || rows[0].Name != "first" || rows[1].Name != "second" {
		t.Fatalf("rows = %+v", rows)
	}
	all, err := ListPending(ctx, db.Pool, 0)
	if err != nil || len(all) != 3 {
		t.Fatalf("all pending = %d, err=%v", len(all), err)
	}
}
