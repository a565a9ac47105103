package session

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"leadhunt-engine/internal/delivery"
	"leadhunt-engine/internal/domain"
	"leadhunt-engine/internal/store"
)

func TestRedeliverFailedAndPending(t *testing.T) {
	db, err := store.Open(filepath.Join(t.TempDir(), "leadhunt.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	ctx := context.Background()

	mk := func(name string) domain.Lead {
		return domain.Lead{Name: name, Category: "Auditors", Address: domain.DefaultAddress,
			Priority: domain.PriorityLow, QualityScore: 4, Source: domain.DefaultSource, CapturedAt: time.Now()}
	}
	failedID, _ := store.InsertLead(ctx, db.Pool, "s1", mk("Failed Co"))
	_ = store.RecordDelivery(ctx, db.Pool, failedID, "fake", domain.Failed(domain.ErrKindTimeout, 0, "slow"))
	doneID, _ := store.InsertLead(ctx, db.Pool, "s1", mk("Done Co"))
	_ = store.RecordDelivery(ctx, db.Pool, doneID, "fake", domain.Delivered(200))
	_, _ = store.InsertLead(ctx, db.Pool, "s1", mk("Pending Co"))

	c := &fakeClient{}
	res, err := Redeliver(ctx, db.Pool, c, delivery.RetryPolicy{MaxAttempts: 1}, nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	if res.Tried != 2 || res.Delivered != 2 {
		t.Fatalf("result = %+v", res)
	}
	if len(c.pushed) != 2 || c.pushed[0] != "Failed Co" || c.pushed[1] != "Pending Co" {
		t.Fatalf("pushed = %v", c.pushed)
	}
	counts, _ := store.CountByStatus(ctx, db.Pool)
	if counts[store.StatusDelivered] != 3 {
		t.Fatalf("counts = %v", counts)
	}
}

func TestRedeliverAllFailedOldestFirst(t *testing.T) {
	db, err := store.Open(filepath.Join(t.TempDir(), "leadhunt.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	ctx := context.Background()
	if _, err := db.Pool.Exec(`PRAGMA synchronous=OFF;`); err != nil {
		t.Fatal(err)
	}

	const n = 600
	for i := 0; i < n; i++ {
		id, err := store.InsertLead(ctx, db.Pool, "s1", domain.Lead{
			Name: fmt.Sprintf("Co %d", i), Category: "Auditors", Address: domain.DefaultAddress,
			Priority: domain.PriorityLow, QualityScore: 4, Source: domain.DefaultSource, CapturedAt: time.Now(),
		})
		if err != nil {
			t.Fatal(err)
		}
		if err := store.RecordDelivery(ctx, db.Pool, id, "fake", domain.Failed(domain.ErrKindTimeout, 0, "slow")); err != nil {
			t.Fatal(err)
		}
	}
	_, _ = store.InsertLead(ctx, db.Pool, "s2", domain.Lead{
		Name: "Pending Co", Category: "Auditors", Address: domain.DefaultAddress,
		Priority: domain.PriorityLow, QualityScore: 4, Source: domain.DefaultSource, CapturedAt: time.Now(),
	})

	c := &fakeClient{}
	res, err := Redeliver(ctx, db.Pool, c, delivery.RetryPolicy{MaxAttempts: 1}, nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	if res.Tried != n+1 || res.Delivered != n+1 {
		t.Fatalf("result = %+v, want %d tried", res, n+1)
	}
	if c.pushed[0] != "Co 0" || c.pushed[n-1] != fmt.Sprintf("Co %d", n-1) || c.pushed[n] != "Pending Co" {
		t.Fatalf("order = %q ... %q, %q", c.pushed[0], c.pushed[n-1], c.pushed[n])
	}

	rows, err := store.ListFailed(ctx, db.Pool, 10)
	if err != nil || len(rows) != 0 {
		t.Fatalf("failed after redeliver = %d, err=%v", len(rows), err)
	}
}
