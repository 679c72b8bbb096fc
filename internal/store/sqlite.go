package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS source_cache (
	url        TEXT PRIMARY KEY,
	etag       TEXT NOT NULL,
	body       BLOB NOT NULL,
	fetched_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	kind       TEXT NOT NULL,
	filters    TEXT NOT NULL DEFAULT '{}',
	row_count  INTEGER NOT NULL DEFAULT 0,
	warnings   TEXT NOT NULL DEFAULT '[]',
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_runs_kind ON runs(kind);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
`

// Migrate creates the tables if they do not exist.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// GetSource returns the cached body and ETag for url. ok is false on a miss.
func (s *SQLiteStore) GetSource(ctx context.Context, url string) (string, []byte, bool, error) {
	var etag string
	var body []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT etag, body FROM source_cache WHERE url = ?`, url,
	).Scan(&etag, &body)
	if err == sql.ErrNoRows {
		return "", nil, false, nil
	}
	if err != nil {
		return "", nil, false, eris.Wrapf(err, "sqlite: get source %s", url)
	}
	return etag, body, true, nil
}

// PutSource stores or replaces the cached body for url.
func (s *SQLiteStore) PutSource(ctx context.Context, url, etag string, body []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO source_cache (url, etag, body, fetched_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(url) DO UPDATE SET etag = excluded.etag, body = excluded.body, fetched_at = excluded.fetched_at`,
		url, etag, body, time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: put source %s", url)
}

// ListSources returns cached sources without their bodies, newest first.
func (s *SQLiteStore) ListSources(ctx context.Context) ([]Source, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT url, etag, fetched_at FROM source_cache ORDER BY fetched_at DESC`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list sources")
	}
	defer rows.Close() //nolint:errcheck

	var out []Source
	for rows.Next() {
		var src Source
		if err := rows.Scan(&src.URL, &src.ETag, &src.FetchedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan source")
		}
		out = append(out, src)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list sources iterate")
}

// RecordRun inserts a run, assigning an ID and timestamp when unset.
func (s *SQLiteStore) RecordRun(ctx context.Context, run Run) (*Run, error) {
	if run.Kind == "" {
		return nil, eris.New("sqlite: run kind is required")
	}
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	if run.Filters == nil {
		run.Filters = map[string]string{}
	}

	filtersJSON, err := json.Marshal(run.Filters)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal filters")
	}
	warnings := run.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	warningsJSON, err := json.Marshal(warnings)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal warnings")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, kind, filters, row_count, warnings, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.Kind, string(filtersJSON), run.Rows, string(warningsJSON), run.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}
	return &run, nil
}

// ListRuns returns runs newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]Run, error) {
	query := `SELECT id, kind, filters, row_count, warnings, created_at FROM runs WHERE 1=1`
	var args []any

	if filter.Kind != "" {
		query += ` AND kind = ?`
		args = append(args, filter.Kind)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*Run, error) {
	var r Run
	var filtersJSON, warningsJSON string

	if err := row.Scan(&r.ID, &r.Kind, &filtersJSON, &r.Rows, &warningsJSON, &r.CreatedAt); err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}
	if err := json.Unmarshal([]byte(filtersJSON), &r.Filters); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal filters")
	}
	if err := json.Unmarshal([]byte(warningsJSON), &r.Warnings); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal warnings")
	}
	return &r, nil
}
