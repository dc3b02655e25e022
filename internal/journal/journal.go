// Package journal records every template commit in SQLite: what was
// published, by whom, and which documents were updated or skipped.
package journal

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/raido/internal/apperr"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS commits (
	id          TEXT PRIMARY KEY,
	created_at  DATETIME NOT NULL,
	operation   TEXT NOT NULL,
	template    TEXT NOT NULL DEFAULT '',
	branch      TEXT NOT NULL,
	commit_sha  TEXT NOT NULL DEFAULT '',
	commit_url  TEXT NOT NULL DEFAULT '',
	user_id     TEXT NOT NULL DEFAULT '',
	noop        INTEGER NOT NULL DEFAULT 0,
	warnings    TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS outcomes (
	commit_id TEXT NOT NULL REFERENCES commits(id) ON DELETE CASCADE,
	seq       INTEGER NOT NULL,
	component TEXT NOT NULL,
	path      TEXT NOT NULL DEFAULT '',
	status    TEXT NOT NULL,
	reason    TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (commit_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_commits_created ON commits(created_at);
CREATE INDEX IF NOT EXISTS idx_commits_template ON commits(template);
`

// Outcome is the recorded status of one document in a commit.
type Outcome struct {
	Component string `json:"component"`
	Path      string `json:"path,omitempty"`
	Status    string `json:"status"`
	Reason    string `json:"reason,omitempty"`
}

// Entry is one journal record.
type Entry struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	Operation string    `json:"operation"`
	Template  string    `json:"template,omitempty"`
	Branch    string    `json:"branch"`
	CommitSHA string    `json:"commitSha,omitempty"`
	CommitURL string    `json:"commitUrl,omitempty"`
	UserID    string    `json:"userId,omitempty"`
	NoOp      bool      `json:"noOp"`
	Warnings  []string  `json:"warnings"`
	Outcomes  []Outcome `json:"outcomes"`
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Template string
	Branch   string
	Limit    int
	Offset   int
}

// DB is the SQLite-backed journal.
type DB struct {
	conn *sql.DB
	now  func() time.Time
}

// Open opens (or creates) the journal database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("journal: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("journal: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("journal: apply schema: %w", err)
	}
	return &DB{conn: conn, now: time.Now}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Record stores e, assigning an id and timestamp when missing, and returns
// the stored entry.
func (db *DB) Record(e Entry) (*Entry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = db.now().UTC()
	}
	if e.Warnings == nil {
		e.Warnings = []string{}
	}
	if e.Outcomes == nil {
		e.Outcomes = []Outcome{}
	}
	warnings, _ := json.Marshal(e.Warnings)

	tx, err := db.conn.Begin()
	if err != nil {
		return nil, fmt.Errorf("journal: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.Exec(`
		INSERT INTO commits (id, created_at, operation, template, branch, commit_sha, commit_url, user_id, noop, warnings)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.CreatedAt, e.Operation, e.Template, e.Branch, e.CommitSHA, e.CommitURL, e.UserID, e.NoOp, string(warnings))
	if err != nil {
		return nil, fmt.Errorf("journal: insert commit: %w", err)
	}

	if len(e.Outcomes) > 0 {
		stmt, err := tx.Prepare(`INSERT INTO outcomes (commit_id, seq, component, path, status, reason) VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return nil, fmt.Errorf("journal: prepare outcome insert: %w", err)
		}
		defer stmt.Close()
		for i, o := range e.Outcomes {
			if _, err := stmt.Exec(e.ID, i, o.Component, o.Path, o.Status, o.Reason); err != nil {
				return nil, fmt.Errorf("journal: insert outcome: %w", err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("journal: commit tx: %w", err)
	}
	return &e, nil
}

// Get returns one entry with its outcomes.
func (db *DB) Get(id string) (*Entry, error) {
	row := db.conn.QueryRow(`
		SELECT id, created_at, operation, template, branch, commit_sha, commit_url, user_id, noop, warnings
		FROM commits WHERE id = ?`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("journal: entry %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if e.Outcomes, err = db.outcomes(e.ID); err != nil {
		return nil, err
	}
	return e, nil
}

// List returns entries newest first and the total number matching f.
func (db *DB) List(f Filter) ([]Entry, int, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	where := `WHERE (? = '' OR template = ?) AND (? = '' OR branch = ?)`
	args := []any{f.Template, f.Template, f.Branch, f.Branch}

	var total int
	if err := db.conn.QueryRow(`SELECT count(*) FROM commits `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("journal: count: %w", err)
	}

	rows, err := db.conn.Query(`
		SELECT id, created_at, operation, template, branch, commit_sha, commit_url, user_id, noop, warnings
		FROM commits `+where+`
		ORDER BY created_at DESC, rowid DESC
		LIMIT ? OFFSET ?`, append(args, f.Limit, f.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("journal: list: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("journal: list: %w", err)
	}
	for i := range out {
		if out[i].Outcomes, err = db.outcomes(out[i].ID); err != nil {
			return nil, 0, err
		}
	}
	return out, total, nil
}

func (db *DB) outcomes(id string) ([]Outcome, error) {
	rows, err := db.conn.Query(`
		SELECT component, path, status, reason FROM outcomes
		WHERE commit_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("journal: outcomes: %w", err)
	}
	defer rows.Close()
	out := []Outcome{}
	for rows.Next() {
		var o Outcome
		if err := rows.Scan(&o.Component, &o.Path, &o.Status, &o.Reason); err != nil {
			return nil, fmt.Errorf("journal: scan outcome: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (*Entry, error) {
	var e Entry
	var warnings string
	err := s.Scan(&e.ID, &e.CreatedAt, &e.Operation, &e.Template, &e.Branch,
		&e.CommitSHA, &e.CommitURL, &e.UserID, &e.NoOp, &warnings)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("journal: scan entry: %w", err)
	}
	if err := json.Unmarshal([]byte(warnings), &e.Warnings); err != nil {
		return nil, fmt.Errorf("journal: decode warnings: %w", err)
	}
	return &e, nil
}
