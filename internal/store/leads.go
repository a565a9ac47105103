package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"leadhunt-engine/internal/domain"
)

// Lead delivery states in the ledger.
const (
	StatusPending   = "pending"
	StatusDelivered = "delivered"
	StatusFailed    = "failed"
)

// sqlite datetime() compatible, so window filters can compare as text
const dbTime = "2006-01-02 15:04:05"

type LeadRow struct {
	ID           int64  `json:"id"`
	SessionID    string `json:"sessionId"`
	Name         string `json:"name"`
	Category     string `json:"category"`
	Phone        string `json:"phone,omitempty"`
	Email        string `json:"email,omitempty"`
	Website      string `json:"website,omitempty"`
	Address      string `json:"address"`
	Priority     string `json:"priority"`
	QualityScore int    `json:"qualityScore"`
	Source       string `json:"source"`
	SearchTerm   string `json:"searchTerm"`
	CapturedAt   string `json:"capturedAt"`
	CreatedAt    string `json:"createdAt"`
	Status       string `json:"status"`
	Attempts     int    `json:"attempts"`
	LastError    string `json:"lastError,omitempty"`

	phone, email, website sql.NullString
}

// Lead rebuilds the canonical lead as it was recorded.
func (r LeadRow) Lead() domain.Lead {
	p, _ := domain.ParsePriority(r.Priority)
	t, err := time.Parse(domain.TimestampLayout, r.CapturedAt)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, r.CapturedAt)
	}
	return domain.Lead{
		Name:         r.Name,
		Category:     r.Category,
		Phone:        fromNull(r.phone),
		Email:        fromNull(r.email),
		Website:      fromNull(r.website),
		Address:      r.Address,
		Priority:     p,
		QualityScore: r.QualityScore,
		Source:       r.Source,
		SearchTerm:   r.SearchTerm,
		CapturedAt:   t,
	}
}

func toNull(o domain.Opt) sql.NullString {
	v, ok := o.Get()
	return sql.NullString{String: v, Valid: ok}
}

func fromNull(n sql.NullString) domain.Opt {
	if !n.Valid {
		return domain.None()
	}
	return domain.Some(n.String)
}

// InsertLead records a buffered lead as pending and returns its id.
func InsertLead(ctx context.Context, db *sql.DB, sessionID string, l domain.Lead) (int64, error) {
	res, err := db.ExecContext(ctx, `
INSERT INTO leads(session_id, name, category, phone, email, website, address, priority, quality_score,
                  source, search_term, captured_at, created_at, status)
VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?);`,
		sessionID,
		l.Name,
		l.Category,
		toNull(l.Phone),
		toNull(l.Email),
		toNull(l.Website),
		l.Address,
		l.Priority.String(),
		l.QualityScore,
		l.Source,
		l.SearchTerm,
		l.TimestampString(),
		time.Now().UTC().Format(dbTime),
		StatusPending,
	)
	if err != nil {
		return 0, fmt.Errorf("insert lead %q: %w", l.Name, err)
	}
	return res.LastInsertId()
}

// RecordDelivery appends one delivery outcome and moves the lead to
// delivered or failed.
func RecordDelivery(ctx context.Context, db *sql.DB, leadID int64, crm string, r domain.DeliveryResult) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC().Format(dbTime)
	if _, err := tx.ExecContext(ctx, `
INSERT INTO deliveries(lead_id, crm, ok, status_code, kind, attempts, message, at)
VALUES(?,?,?,?,?,?,?,?);`,
		leadID, crm, r.OK, r.StatusCode, string(r.Kind), r.Attempts, r.Message, now,
	); err != nil {
		return fmt.Errorf("insert delivery: %w", err)
	}

	status, lastErr := StatusDelivered, ""
	if !r.OK {
		status = StatusFailed
		lastErr = strings.TrimSpace(fmt.Sprintf("%s %d %s", r.Kind, r.StatusCode, r.Message))
	}
	if _, err := tx.ExecContext(ctx, `
UPDATE leads
SET status = ?, attempts = attempts + ?, last_error = ?
WHERE id = ?;`,
		status, r.Attempts, lastErr, leadID,
	); err != nil {
		return fmt.Errorf("update lead %d: %w", leadID, err)
	}
	return tx.Commit()
}

type ListLeadsOpts struct {
	Sort      string // quality | date | oldest | name | priority
	Window    string // 24h | 7d | all
	Status    string // pending | delivered | failed | "" for any
	SessionID string
	Limit     int
	// Unbounded lifts the default and maximum page size; Limit <= 0 then
	// means every matching row.
	Unbounded bool
}

func ListLeads(ctx context.Context, db *sql.DB, opts ListLeadsOpts) ([]LeadRow, error) {
	if opts.Window == "" {
		opts.Window = "7d"
	}
	switch {
	case opts.Unbounded && opts.Limit <= 0:
		opts.Limit = -1 // sqlite: no limit
	case opts.Unbounded:
	case opts.Limit <= 0 || opts.Limit > 5000:
		opts.Limit = 500
	}

	// whitelisted ORDER BY clauses
	order := map[string]string{
		"quality":  "quality_score DESC, id DESC",
		"date":     "created_at DESC, id DESC",
		"oldest":   "created_at ASC, id ASC",
		"name":     "name ASC",
		"priority": "CASE priority WHEN 'URGENT' THEN 3 WHEN 'HIGH' THEN 2 WHEN 'MEDIUM' THEN 1 ELSE 0 END DESC, quality_score DESC",
	}[opts.Sort]
	if order == "" {
		order = "created_at DESC, id DESC"
	}

	var where []string
	var args []any
	switch opts.Window {
	case "24h":
		where = append(where, "created_at >= datetime('now','-24 hours')")
	case "7d":
		where = append(where, "created_at >= datetime('now','-7 days')")
	case "all":
	default:
		where = append(where, "created_at >= datetime('now','-7 days')")
	}
	if opts.Status != "" {
		where = append(where, "status = ?")
		args = append(args, opts.Status)
	}
	if opts.SessionID != "" {
		where = append(where, "session_id = ?")
		args = append(args, opts.SessionID)
	}
	clause := ""
	if len(where) > 0 {
		clause = "WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, opts.Limit)

	query := fmt.Sprintf(`
SELECT id, session_id, name, category, phone, email, website, address, priority, quality_score,
       source, search_term, captured_at, created_at, status, attempts, last_error
FROM leads
%s
ORDER BY %s
LIMIT ?;
`, clause, order)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LeadRow
	for rows.Next() {
		var r LeadRow
		if err := rows.Scan(
			&r.ID,
			&r.SessionID,
			&r.Name,
			&r.Category,
			&r.phone,
			&r.email,
			&r.website,
			&r.Address,
			&r.Priority,
			&r.QualityScore,
			&r.Source,
			&r.SearchTerm,
			&r.CapturedAt,
			&r.CreatedAt,
			&r.Status,
			&r.Attempts,
			&r.LastError,
		); err != nil {
			return nil, err
		}
		r.Phone, r.Email, r.Website = r.phone.String, r.email.String, r.website.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListFailed returns leads whose last delivery failed, oldest first. A
// non-positive limit returns all of them.
func ListFailed(ctx context.Context, db *sql.DB, limit int) ([]LeadRow, error) {
	return listOldest(ctx, db, StatusFailed, limit)
}

// ListPending returns leads never handed to a CRM, oldest first. A
// non-positive limit returns all of them.
func ListPending(ctx context.Context, db *sql.DB, limit int) ([]LeadRow, error) {
	return listOldest(ctx, db, StatusPending, limit)
}

func listOldest(ctx context.Context, db *sql.DB, status string, limit int) ([]LeadRow, error) {
	return ListLeads(ctx, db, ListLeadsOpts{Window: "all", Status: status, Sort: "oldest", Limit: limit, Unbounded: true})
}

func CountByStatus(ctx context.Context, db *sql.DB) (map[string]int, error) {
	rows, err := db.QueryContext(ctx, `SELECT status, COUNT(*) FROM leads GROUP BY status;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var s string
		var n int
		if err := rows.Scan(&s, &n); err != nil {
			return nil, err
		}
		out[s] = n
	}
	return out, rows.Err()
}

// CleanupOldLeads drops delivered leads older than three months. Failed
// ones stay until they are redelivered.
func CleanupOldLeads(db *sql.DB) (deleted int64, err error) {
	res, err := db.Exec(`
DELETE FROM leads
WHERE status = 'delivered' AND created_at < datetime('now', '-3 months');
`)
	if err != nil {
		return 0, fmt.Errorf("cleanup old leads: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func DeleteLead(ctx context.Context, db *sql.DB, id int64) error {
	res, err := db.ExecContext(ctx, `DELETE FROM leads WHERE id = ?;`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
