package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLite is a Store persisted in a single sqlite table.
type SQLite struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// OpenSQLite opens (or creates) the cache database at path.
func OpenSQLite(path string, ttl time.Duration) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("create cache directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	s := &SQLite{db: db, ttl: ttl, now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate cache database: %w", err)
	}
	return s, nil
}

func (s *SQLite) migrate() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS responses (
		key TEXT PRIMARY KEY,
		body BLOB NOT NULL,
		stored_at INTEGER NOT NULL
	);`)
	return err
}

// Get implements Store.
func (s *SQLite) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var (
		body     []byte
		storedAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT body, stored_at FROM responses WHERE key = ?`, key).Scan(&body, &storedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache read %q: %w", key, err)
	}
	if expired(time.Unix(0, storedAt), s.ttl, s.now()) {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM responses WHERE key = ?`, key); err != nil {
			return nil, false, fmt.Errorf("cache expire %q: %w", key, err)
		}
		return nil, false, nil
	}
	return body, true, nil
}

// Put implements Store.
func (s *SQLite) Put(ctx context.Context, key string, body []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO responses (key, body, stored_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET body = excluded.body, stored_at = excluded.stored_at`,
		key, body, s.now().UnixNano())
	if err != nil {
		return fmt.Errorf("cache write %q: %w", key, err)
	}
	return nil
}

// PurgePrefix removes every entry whose key starts with prefix.
func (s *SQLite) PurgePrefix(ctx context.Context, prefix string) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM responses WHERE substr(key, 1, ?) = ?`, len(prefix), prefix)
	if err != nil {
		return 0, fmt.Errorf("cache purge %q: %w", prefix, err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// Close implements Store.
func (s *SQLite) Close() error { return s.db.Close() }
