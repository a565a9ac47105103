package session

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"leadhunt-engine/internal/delivery"
	"leadhunt-engine/internal/events"
	"leadhunt-engine/internal/store"
)

type RedeliverResult struct {
	Tried     int `json:"tried"`
	Delivered int `json:"delivered"`
	Failed    int `json:"failed"`
}

// Redeliver pushes leads the ledger has marked failed, oldest first, and
// then those never attempted (pending), also oldest first. limit <= 0 means
// all of them. It must not run next to a session since that session's
// leads are pending too; Manager.Exclusive guards that.
func Redeliver(ctx context.Context, db *sql.DB, c delivery.Client, rp delivery.RetryPolicy, hub *events.Hub, limit int) (RedeliverResult, error) {
	var out RedeliverResult
	rows, err := store.ListFailed(ctx, db, limit)
	if err != nil {
		return out, fmt.Errorf("list failed leads: %w", err)
	}
	if limit <= 0 || len(rows) < limit {
		rest := 0
		if limit > 0 {
			rest = limit - len(rows)
		}
		pending, err := store.ListPending(ctx, db, rest)
		if err != nil {
			return out, fmt.Errorf("list pending leads: %w", err)
		}
		rows = append(rows, pending...)
	}
	for _, row := range rows {
		if ctx.Err() != nil {
			break
		}
		lead := row.Lead()
		res := rp.Deliver(ctx, c, lead)
		out.Tried++
		if err := store.RecordDelivery(context.WithoutCancel(ctx), db, row.ID, c.Name(), res); err != nil {
			log.Printf("[redeliver] ledger update failed id=%d err=%v", row.ID, err)
		}
		if res.OK {
			out.Delivered++
			hub.Emit("", events.TypeLeadDelivered, map[string]any{"name": lead.Name, "attempts": res.Attempts})
		} else {
			out.Failed++
			hub.Emit("", events.TypeLeadFailed, map[string]any{"name": lead.Name, "kind": res.Kind, "status": res.StatusCode})
		}
	}
	log.Printf("[redeliver] tried=%d delivered=%d failed=%d", out.Tried, out.Delivered, out.Failed)
	return out, ctx.Err()
}
