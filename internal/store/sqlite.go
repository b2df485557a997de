package store

import (
	"context"
	"database/sql"
	_ "embed"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/conneroisu/widgetsync/internal/errors"
)

//go:embed schema.sql
var schemaSQL string

// SQLiteStore persists entries in a SQLite table so several host
// processes, or restarts of one, can share a page cache.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (or creates) the database at path and applies the
// schema. ":memory:" gives a private in-memory database.
func OpenSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid, "sqlite store requires a path")
	}

	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o700); err != nil {
				return nil, errors.NewStoreError(errors.ErrCodeCacheWrite, "cannot create database directory", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.NewStoreError(errors.ErrCodeCacheRead, "cannot open database", err)
	}

	// A single connection keeps ":memory:" databases coherent and
	// serializes writers.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, errors.NewStoreError(errors.ErrCodeCacheWrite, "cannot configure database", err).
				WithContext("pragma", p)
		}
	}

	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		db.Close()
		return nil, errors.NewStoreError(errors.ErrCodeCacheWrite, "cannot apply schema", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM widget_cache WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.NewStoreError(errors.ErrCodeCacheRead, "cannot read cache entry", err).WithWidget(key)
	}
	return value, true, nil
}

func (s *SQLiteStore) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO widget_cache (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`, key, value)
	if err != nil {
		return errors.NewStoreError(errors.ErrCodeCacheWrite, "cannot write cache entry", err).WithWidget(key)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM widget_cache WHERE key = ?`, key); err != nil {
		return errors.NewStoreError(errors.ErrCodeCacheWrite, "cannot delete cache entry", err).WithWidget(key)
	}
	return nil
}

func (s *SQLiteStore) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key FROM widget_cache ORDER BY key`)
	if err != nil {
		return nil, errors.NewStoreError(errors.ErrCodeCacheRead, "cannot list cache keys", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, errors.NewStoreError(errors.ErrCodeCacheRead, "cannot scan cache key", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
