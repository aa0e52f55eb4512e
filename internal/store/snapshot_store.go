// Package store implements persistence for instinct. The snapshot store
// keeps versioned whole-document policy snapshots in SQLite, one row per
// save; reads return the newest version for a key.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"instinct/internal/logging"
)

// ErrNotFound is returned when no snapshot exists for a key.
var ErrNotFound = errors.New("snapshot not found")

// SnapshotStore persists policy snapshots in SQLite. Writes are
// whole-document replaces: each save inserts a fresh version and prunes
// old ones beyond keepVersions.
type SnapshotStore struct {
	mu           sync.Mutex
	db           *sql.DB
	keepVersions int
}

// NewSnapshotStore opens (or creates) a snapshot store at the given path.
// The path ":memory:" creates an in-memory store for tests.
func NewSnapshotStore(path string, keepVersions int) (*SnapshotStore, error) {
	if keepVersions < 1 {
		keepVersions = 1
	}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot db: %w", err)
	}

	s := &SnapshotStore{db: db, keepVersions: keepVersions}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}

	logging.Store("SnapshotStore initialized: path=%s keep=%d", path, keepVersions)
	return s, nil
}

func (s *SnapshotStore) ensureSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		key TEXT NOT NULL,
		doc TEXT NOT NULL,
		saved_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_snapshots_key ON snapshots(key, id DESC);
	`
	_, err := s.db.Exec(schema)
	return err
}

// WriteSnapshot stores a new version of the document for key and prunes
// versions beyond the configured keep count.
func (s *SnapshotStore) WriteSnapshot(ctx context.Context, key string, doc []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `INSERT INTO snapshots (key, doc) VALUES (?, ?)`, key, string(doc)); err != nil {
		return fmt.Errorf("failed to write snapshot %s: %w", key, err)
	}

	_, err := s.db.ExecContext(ctx, `
		DELETE FROM snapshots
		WHERE key = ? AND id NOT IN (
			SELECT id FROM snapshots WHERE key = ? ORDER BY id DESC LIMIT ?
		)`, key, key, s.keepVersions)
	if err != nil {
		return fmt.Errorf("failed to prune snapshots %s: %w", key, err)
	}

	logging.StoreDebug("Snapshot written: key=%s bytes=%d", key, len(doc))
	return nil
}

// ReadSnapshot returns the newest document for key, or ErrNotFound.
func (s *SnapshotStore) ReadSnapshot(ctx context.Context, key string) ([]byte, error) {
	var doc string
	err := s.db.QueryRowContext(ctx,
		`SELECT doc FROM snapshots WHERE key = ? ORDER BY id DESC LIMIT 1`, key).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("key %s: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot %s: %w", key, err)
	}
	return []byte(doc), nil
}

// VersionCount returns how many versions are stored for key.
func (s *SnapshotStore) VersionCount(ctx context.Context, key string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM snapshots WHERE key = ?`, key).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count snapshots %s: %w", key, err)
	}
	return n, nil
}

// DeleteSnapshots removes all versions for key.
func (s *SnapshotStore) DeleteSnapshots(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete snapshots %s: %w", key, err)
	}
	logging.Store("Snapshots deleted: key=%s", key)
	return nil
}

// Close closes the database connection.
func (s *SnapshotStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
