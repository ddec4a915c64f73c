// Package metadata is the durable per-entry key-value store: access
// counts, verification timestamps, project ownership. SQLite in WAL mode;
// one writer, many readers.
package metadata

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Row is one entry's metadata record. A missing row is normal: the next
// access recreates it.
type Row struct {
	ID           string     `json:"id"`
	Path         string     `json:"path"`
	Project      string     `json:"project_id,omitempty"`
	AccessCount  int        `json:"access_count"`
	AccessedAt   *time.Time `json:"accessed_at,omitempty"`
	LastVerified *time.Time `json:"last_verified,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Store is the metadata persistence interface
type Store interface {
	InitEntry(id, path, project string) error
	RecordAccess(id, path, project string) error
	Verify(id string) (time.Time, error)
	Get(id string) (*Row, error)
	Delete(id string) error
	MostAccessed(limit int) ([]*Row, error)
	Totals() (entries int, accesses int, err error)
	Ping() error
	Close() error
}

// SQLiteStore is the concrete Store backed by SQLite
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// Open creates or opens the metadata database at path. ":memory:" opens
// an in-process database for tests.
func Open(path string) (*SQLiteStore, error) {
	memory := path == ":memory:"
	if !memory {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create metadata directory: %w", err)
		}
	}

	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(on)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open metadata db: %w", err)
	}

	if memory {
		// every new connection would see a fresh empty database
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
	}

	store := &SQLiteStore{db: db, path: path}
	if err := store.init(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize metadata db: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) init() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS entry_meta (
			id TEXT PRIMARY KEY,
			path TEXT NOT NULL,
			project_id TEXT,
			access_count INTEGER NOT NULL DEFAULT 0,
			accessed_at TIMESTAMP,
			last_verified TIMESTAMP,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_entry_meta_project ON entry_meta(project_id)`)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping reports database availability for health checks
func (s *SQLiteStore) Ping() error {
	return s.db.Ping()
}

// withTx executes a function within a transaction
func (s *SQLiteStore) withTx(fn func(*sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// InitEntry creates the metadata row for a new entry; re-creating an
// existing row refreshes its path and project
func (s *SQLiteStore) InitEntry(id, path, project string) error {
	now := time.Now().UTC()
	_, err := s.db.Exec(`
		INSERT INTO entry_meta (id, path, project_id, access_count, created_at, updated_at)
		VALUES (?, ?, ?, 0, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			path=excluded.path,
			project_id=excluded.project_id,
			updated_at=excluded.updated_at
	`, id, path, nullString(project), now, now)
	if err != nil {
		return fmt.Errorf("failed to init entry meta: %w", err)
	}
	return nil
}

// RecordAccess bumps the access counter. A missing row is recreated so
// metadata lost to a failed write reconciles on the next read.
func (s *SQLiteStore) RecordAccess(id, path, project string) error {
	now := time.Now().UTC()
	_, err := s.db.Exec(`
		INSERT INTO entry_meta (id, path, project_id, access_count, accessed_at, created_at, updated_at)
		VALUES (?, ?, ?, 1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			access_count = entry_meta.access_count + 1,
			accessed_at = excluded.accessed_at,
			updated_at = excluded.updated_at
	`, id, path, nullString(project), now, now, now)
	if err != nil {
		return fmt.Errorf("failed to record access: %w", err)
	}
	return nil
}

// Verify stamps last_verified and returns the timestamp used
func (s *SQLiteStore) Verify(id string) (time.Time, error) {
	now := time.Now().UTC()
	err := s.withTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`
			UPDATE entry_meta SET last_verified = ?, updated_at = ? WHERE id = ?
		`, now, now, id)
		if err != nil {
			return err
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			_, err = tx.Exec(`
				INSERT INTO entry_meta (id, path, access_count, last_verified, created_at, updated_at)
				VALUES (?, '', 0, ?, ?, ?)
			`, id, now, now, now)
		}
		return err
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to verify entry: %w", err)
	}
	return now, nil
}

// Get returns the row for an entry, or nil when none exists
func (s *SQLiteStore) Get(id string) (*Row, error) {
	row := s.db.QueryRow(`
		SELECT id, path, project_id, access_count, accessed_at, last_verified, created_at, updated_at
		FROM entry_meta WHERE id = ?
	`, id)

	r, err := scanRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entry meta: %w", err)
	}
	return r, nil
}

// Delete removes an entry's metadata
func (s *SQLiteStore) Delete(id string) error {
	_, err := s.db.Exec(`DELETE FROM entry_meta WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete entry meta: %w", err)
	}
	return nil
}

// MostAccessed returns rows ordered by access count descending
func (s *SQLiteStore) MostAccessed(limit int) ([]*Row, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.Query(`
		SELECT id, path, project_id, access_count, accessed_at, last_verified, created_at, updated_at
		FROM entry_meta
		WHERE access_count > 0
		ORDER BY access_count DESC, id
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query most accessed: %w", err)
	}
	defer rows.Close()

	var out []*Row
	for rows.Next() {
		r, err := scanRows(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entry meta: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entry meta: %w", err)
	}
	return out, nil
}

// Totals reports row count and total access count
func (s *SQLiteStore) Totals() (int, int, error) {
	var entries int
	var accesses sql.NullInt64
	err := s.db.QueryRow(`SELECT COUNT(*), SUM(access_count) FROM entry_meta`).Scan(&entries, &accesses)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to total entry meta: %w", err)
	}
	return entries, int(accesses.Int64), nil
}

type scannable interface {
	Scan(dest ...interface{}) error
}

func scanRow(row scannable) (*Row, error) {
	var r Row
	var project sql.NullString
	var accessedAt, lastVerified sql.NullTime

	err := row.Scan(&r.ID, &r.Path, &project, &r.AccessCount,
		&accessedAt, &lastVerified, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}

	r.Project = project.String
	if accessedAt.Valid {
		r.AccessedAt = &accessedAt.Time
	}
	if lastVerified.Valid {
		r.LastVerified = &lastVerified.Time
	}
	return &r, nil
}

func scanRows(rows *sql.Rows) (*Row, error) {
	return scanRow(rows)
}

// nullString converts an empty string to sql.NullString
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
