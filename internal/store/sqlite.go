package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

const createJobs = `
CREATE TABLE IF NOT EXISTS jobs (
	id         TEXT PRIMARY KEY,
	created_at INTEGER NOT NULL,
	expires_at INTEGER,
	analysis   TEXT NOT NULL,
	report     BLOB
);
CREATE INDEX IF NOT EXISTS jobs_expires_at ON jobs(expires_at);
`

// SQLite is a Store backed by a single SQLite file. Expired rows are never
// returned and are purged on every Save.
type SQLite struct {
	db         *sql.DB
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

// OpenSQLite opens or creates the database at path.
func OpenSQLite(path string, maxEntries int, ttl time.Duration) (*SQLite, error) {
	if path == "" {
		return nil, errors.New("store: sqlite path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("store: create dir: %w", err)
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}
	if _, err := db.Exec(createJobs); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: create schema: %w", err)
	}
	return &SQLite{db: db, ttl: ttl, maxEntries: max(maxEntries, 0), now: time.Now}, nil
}

func (s *SQLite) Save(ctx context.Context, j Job) (Job, error) {
	now := s.now()
	j = stamp(j, now)
	body, err := json.Marshal(j.Analysis)
	if err != nil {
		return Job{}, fmt.Errorf("store: encode analysis: %w", err)
	}
	var expires sql.NullInt64
	if s.ttl > 0 {
		expires = sql.NullInt64{Int64: j.CreatedAt.Add(s.ttl).UnixNano(), Valid: true}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Job{}, fmt.Errorf("store: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM jobs WHERE expires_at IS NOT NULL AND expires_at <= ?`, now.UnixNano()); err != nil {
		return Job{}, fmt.Errorf("store: purge: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO jobs (id, created_at, expires_at, analysis, report) VALUES (?, ?, ?, ?, ?)`,
		j.ID, j.CreatedAt.UnixNano(), expires, string(body), j.Report); err != nil {
		return Job{}, fmt.Errorf("store: insert: %w", err)
	}
	if s.maxEntries > 0 {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM jobs WHERE id NOT IN (SELECT id FROM jobs ORDER BY created_at DESC LIMIT ?)`,
			s.maxEntries); err != nil {
			return Job{}, fmt.Errorf("store: trim: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return Job{}, fmt.Errorf("store: commit: %w", err)
	}
	return j, nil
}

func (s *SQLite) Get(ctx context.Context, id string) (Job, error) {
	var (
		created int64
		body    string
		report  []byte
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT created_at, analysis, report FROM jobs
		 WHERE id = ? AND (expires_at IS NULL OR expires_at > ?)`,
		id, s.now().UnixNano()).Scan(&created, &body, &report)
	if errors.Is(err, sql.ErrNoRows) {
		return Job{}, ErrNotFound
	}
	if err != nil {
		return Job{}, fmt.Errorf("store: get %s: %w", id, err)
	}
	j := Job{ID: id, CreatedAt: time.Unix(0, created), Report: report}
	if err := json.Unmarshal([]byte(body), &j.Analysis); err != nil {
		return Job{}, fmt.Errorf("store: decode analysis %s: %w", id, err)
	}
	return j, nil
}

func (s *SQLite) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: delete %s: rows affected: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
