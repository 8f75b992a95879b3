// Package store persists run history in SQLite: one row per processed
// record and one entry per URL check. The CSV output is the deliverable;
// this is the queryable log behind the stats API and MCP tools.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Schema creates the tables. Applied via dbopen.WithSchema.
const Schema = `
CREATE TABLE IF NOT EXISTS row_results (
	ordinal     INTEGER PRIMARY KEY,
	framework   TEXT NOT NULL,
	topic       TEXT NOT NULL,
	rule        TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	web_pages   TEXT NOT NULL DEFAULT '',
	nonexistent TEXT NOT NULL DEFAULT '',
	verdict     TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL,
	error       TEXT NOT NULL DEFAULT '',
	duration_ms INTEGER NOT NULL DEFAULT 0,
	updated_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS url_checks (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	ordinal    INTEGER NOT NULL,
	url        TEXT NOT NULL,
	final_url  TEXT NOT NULL DEFAULT '',
	status     TEXT NOT NULL,
	reason     TEXT NOT NULL DEFAULT '',
	score      REAL NOT NULL DEFAULT 0,
	checked_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_url_checks_ordinal ON url_checks(ordinal);
CREATE INDEX IF NOT EXISTS idx_url_checks_status ON url_checks(status);
`

// Row statuses.
const (
	RowOK      = "ok"
	RowError   = "error"
	RowSkipped = "skipped"
)

// RowResult is the persisted outcome of one record.
type RowResult struct {
	Ordinal     int       `json:"ordinal"`
	Framework   string    `json:"framework"`
	Topic       string    `json:"topic"`
	Rule        string    `json:"rule"`
	Description string    `json:"description"`
	WebPages    string    `json:"web_pages"`
	Nonexistent string    `json:"nonexistent"`
	Verdict     string    `json:"verdict"`
	Status      string    `json:"status"`
	Error       string    `json:"error,omitempty"`
	DurationMS  int64     `json:"duration_ms"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// URLCheck is one persisted URL-validation outcome.
type URLCheck struct {
	Ordinal   int       `json:"ordinal"`
	URL       string    `json:"url"`
	FinalURL  string    `json:"final_url,omitempty"`
	Status    string    `json:"status"`
	Reason    string    `json:"reason,omitempty"`
	Score     float64   `json:"score"`
	CheckedAt time.Time `json:"checked_at"`
}

// Stats summarizes a run.
type Stats struct {
	Rows          int            `json:"rows"`
	RowsByStatus  map[string]int `json:"rows_by_status"`
	URLChecks     int            `json:"url_checks"`
	URLsByStatus  map[string]int `json:"urls_by_status"`
	AvgValidScore float64        `json:"avg_valid_score"`
}

// Store wraps the database handle.
type Store struct {
	db *sql.DB
}

// New creates a Store over an opened database.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// RecordRow upserts the outcome of one record.
func (s *Store) RecordRow(ctx context.Context, r RowResult) error {
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO row_results
			(ordinal, framework, topic, rule, description, web_pages, nonexistent, verdict, status, error, duration_ms, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(ordinal) DO UPDATE SET
			framework = excluded.framework,
			topic = excluded.topic,
			rule = excluded.rule,
			description = excluded.description,
			web_pages = excluded.web_pages,
			nonexistent = excluded.nonexistent,
			verdict = excluded.verdict,
			status = excluded.status,
			error = excluded.error,
			duration_ms = excluded.duration_ms,
			updated_at = excluded.updated_at`,
		r.Ordinal, r.Framework, r.Topic, r.Rule, r.Description, r.WebPages,
		r.Nonexistent, r.Verdict, r.Status, r.Error, r.DurationMS,
		r.UpdatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("store: record row %d: %w", r.Ordinal, err)
	}
	return nil
}

// RecordURLChecks appends URL check outcomes for one record, replacing any
// earlier checks for the same ordinal (re-runs overwrite).
func (s *Store) RecordURLChecks(ctx context.Context, ordinal int, checks []URLCheck) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM url_checks WHERE ordinal = ?`, ordinal); err != nil {
		return fmt.Errorf("store: clear url checks %d: %w", ordinal, err)
	}
	now := time.Now().UTC().Format(time.RFC3339)
	for _, c := range checks {
		checkedAt := now
		if !c.CheckedAt.IsZero() {
			checkedAt = c.CheckedAt.UTC().Format(time.RFC3339)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO url_checks (ordinal, url, final_url, status, reason, score, checked_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			ordinal, c.URL, c.FinalURL, c.Status, c.Reason, c.Score, checkedAt); err != nil {
			return fmt.Errorf("store: insert url check: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit url checks: %w", err)
	}
	return nil
}

// Rows returns the most recently updated row results, newest first.
func (s *Store) Rows(ctx context.Context, limit int) ([]RowResult, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT ordinal, framework, topic, rule, description, web_pages, nonexistent, verdict, status, error, duration_ms, updated_at
		FROM row_results ORDER BY updated_at DESC, ordinal DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: query rows: %w", err)
	}
	defer rows.Close()

	var out []RowResult
	for rows.Next() {
		var r RowResult
		var updatedAt string
		if err := rows.Scan(&r.Ordinal, &r.Framework, &r.Topic, &r.Rule,
			&r.Description, &r.WebPages, &r.Nonexistent, &r.Verdict,
			&r.Status, &r.Error, &r.DurationMS, &updatedAt); err != nil {
			return nil, fmt.Errorf("store: scan row: %w", err)
		}
		r.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		out = append(out, r)
	}
	return out, rows.Err()
}

// URLChecks returns the checks recorded for one ordinal.
func (s *Store) URLChecks(ctx context.Context, ordinal int) ([]URLCheck, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ordinal, url, final_url, status, reason, score, checked_at
		FROM url_checks WHERE ordinal = ? ORDER BY id`, ordinal)
	if err != nil {
		return nil, fmt.Errorf("store: query url checks: %w", err)
	}
	defer rows.Close()

	var out []URLCheck
	for rows.Next() {
		var c URLCheck
		var checkedAt string
		if err := rows.Scan(&c.Ordinal, &c.URL, &c.FinalURL, &c.Status,
			&c.Reason, &c.Score, &checkedAt); err != nil {
			return nil, fmt.Errorf("store: scan url check: %w", err)
		}
		c.CheckedAt, _ = time.Parse(time.RFC3339, checkedAt)
		out = append(out, c)
	}
	return out, rows.Err()
}

// Stats aggregates row and URL-check counts.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{
		RowsByStatus: make(map[string]int),
		URLsByStatus: make(map[string]int),
	}

	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM row_results GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("store: row stats: %w", err)
	}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			rows.Close()
			return nil, fmt.Errorf("store: scan row stats: %w", err)
		}
		st.RowsByStatus[status] = n
		st.Rows += n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM url_checks GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("store: url stats: %w", err)
	}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			rows.Close()
			return nil, fmt.Errorf("store: scan url stats: %w", err)
		}
		st.URLsByStatus[status] = n
		st.URLChecks += n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT COALESCE(AVG(score), 0) FROM url_checks WHERE status = 'valid'`).
		Scan(&st.AvgValidScore)
	if err != nil {
		return nil, fmt.Errorf("store: avg score: %w", err)
	}
	return st, nil
}
