package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type SessionRow struct {
	ID         string `json:"id"`
	State      string `json:"state"`
	StartedAt  string `json:"startedAt"`
	FinishedAt string `json:"finishedAt,omitempty"`
	TermsDone  int    `json:"termsDone"`
	Scraped    int    `json:"scraped"`
	Duplicates int    `json:"duplicates"`
	Invalid    int    `json:"invalid"`
	Delivered  int    `json:"delivered"`
	Failed     int    `json:"failed"`
	OutputFile string `json:"outputFile,omitempty"`
	Error      string `json:"error,omitempty"`
}

func StartSession(ctx context.Context, db *sql.DB, id, state string, started time.Time) error {
	_, err := db.ExecContext(ctx, `
INSERT INTO sessions(id, state, started_at) VALUES(?,?,?);`,
		id, state, started.UTC().Format(dbTime))
	if err != nil {
		return fmt.Errorf("start session %s: %w", id, err)
	}
	return nil
}

// SaveSession writes the counters and final state of a session.
func SaveSession(ctx context.Context, db *sql.DB, s SessionRow) error {
	_, err := db.ExecContext(ctx, `
UPDATE sessions
SET state = ?, finished_at = ?, terms_done = ?, scraped = ?, duplicates = ?, invalid = ?,
    delivered = ?, failed = ?, output_file = ?, error = ?
WHERE id = ?;`,
		s.State, s.FinishedAt, s.TermsDone, s.Scraped, s.Duplicates, s.Invalid,
		s.Delivered, s.Failed, s.OutputFile, s.Error, s.ID)
	if err != nil {
		return fmt.Errorf("save session %s: %w", s.ID, err)
	}
	return nil
}

var ErrNotFound = errors.New("not found")

func GetSession(ctx context.Context, db *sql.DB, id string) (SessionRow, error) {
	var s SessionRow
	err := db.QueryRowContext(ctx, `
SELECT id, state, started_at, finished_at, terms_done, scraped, duplicates, invalid, delivered, failed, output_file, error
FROM sessions WHERE id = ?;`, id).Scan(
		&s.ID, &s.State, &s.StartedAt, &s.FinishedAt, &s.TermsDone, &s.Scraped, &s.Duplicates,
		&s.Invalid, &s.Delivered, &s.Failed, &s.OutputFile, &s.Error)
	if errors.Is(err, sql.ErrNoRows) {
		return s, ErrNotFound
	}
	return s, err
}

func ListSessions(ctx context.Context, db *sql.DB, limit int) ([]SessionRow, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.QueryContext(ctx, `
SELECT id, state, started_at, finished_at, terms_done, scraped, duplicates, invalid, delivered, failed, output_file, error
FROM sessions ORDER BY started_at DESC LIMIT ?;`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SessionRow
	for rows.Next() {
		var s SessionRow
		if err := rows.Scan(&s.ID, &s.State, &s.StartedAt, &s.FinishedAt, &s.TermsDone, &s.Scraped,
			&s.Duplicates, &s.Invalid, &s.Delivered, &s.Failed, &s.OutputFile, &s.Error); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
