// Package storage is the room server's message table: a single SQLite
// relation with soft deletes and a retention-driven purge.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const (
	// DefaultDBFileName is the SQLite filename under the data directory.
	DefaultDBFileName = "roomchat.db"
	// DefaultRetention is how long message rows are kept before the purge
	// task hard-deletes them.
	DefaultRetention = 24 * time.Hour
	// DefaultPurgeInterval controls how often the retention purge runs.
	DefaultPurgeInterval = time.Hour
)

// ErrNotFound indicates a requested row does not exist.
var ErrNotFound = errors.New("storage: record not found")

var migrations = []string{
	`
CREATE TABLE IF NOT EXISTS messages (
  id         TEXT PRIMARY KEY,
  room_id    TEXT NOT NULL,
  payload    TEXT NOT NULL,
  sender     TEXT NOT NULL DEFAULT '',
  custom_id  TEXT NOT NULL DEFAULT '',
  created_at INTEGER NOT NULL,
  deleted    INTEGER NOT NULL DEFAULT 0,
  updated_at INTEGER NOT NULL
);
`,
	`
CREATE INDEX IF NOT EXISTS idx_messages_room_created
ON messages (room_id, deleted, created_at);
`,
	`
CREATE INDEX IF NOT EXISTS idx_messages_room_updated
ON messages (room_id, deleted, updated_at);
`,
	`
CREATE INDEX IF NOT EXISTS idx_messages_created_at
ON messages (created_at);
`,
}

// Store is a thin wrapper around a SQLite connection.
type Store struct {
	db *sql.DB

	// clockMu guards lastIssued, keeping created_at strictly increasing per
	// store handle even when the wall clock repeats a millisecond.
	clockMu    sync.Mutex
	lastIssued int64

	purgeStop chan struct{}
	purgeWG   sync.WaitGroup
	closeOnce sync.Once
}

// Open opens (or creates) the database under the given data directory and
// runs migrations.
func Open(dataDir string) (*Store, string, error) {
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, "", fmt.Errorf("create storage directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, DefaultDBFileName)
	store, err := OpenPath(dbPath)
	if err != nil {
		return nil, "", err
	}

	return store, dbPath, nil
}

// OpenPath opens SQLite at an explicit path and runs schema migrations.
func OpenPath(dbPath string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000", filepath.ToSlash(dbPath))
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite database: %w", err)
	}

	store := &Store{
		db:        db,
		purgeStop: make(chan struct{}),
	}
	if err := store.enableWALMode(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := store.applyMigrations(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close stops the purge loop and closes the SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	var closeErr error
	s.closeOnce.Do(func() {
		if s.purgeStop != nil {
			close(s.purgeStop)
			s.purgeWG.Wait()
		}
		closeErr = s.db.Close()
		s.db = nil
	})
	return closeErr
}

// StartRetentionLoop launches the background hygiene task that hard-deletes
// rows older than retention. Zero values use the defaults.
func (s *Store) StartRetentionLoop(interval, retention time.Duration) {
	if interval <= 0 {
		interval = DefaultPurgeInterval
	}
	if retention <= 0 {
		retention = DefaultRetention
	}

	s.purgeWG.Add(1)
	go func() {
		defer s.purgeWG.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				cutoff := time.Now().Add(-retention).UnixMilli()
				_, _ = s.PurgeOlderThan(cutoff)
			case <-s.purgeStop:
				return
			}
		}
	}()
}

func (s *Store) applyMigrations() error {
	var version int
	if err := s.db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	if version >= len(migrations) {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin migration transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for i := version; i < len(migrations); i++ {
		if _, err := tx.Exec(migrations[i]); err != nil {
			return fmt.Errorf("apply migration %d: %w", i+1, err)
		}
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d;", i+1)); err != nil {
			return fmt.Errorf("set schema version %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration transaction: %w", err)
	}

	return nil
}

func (s *Store) enableWALMode() error {
	var journalMode string
	if err := s.db.QueryRow("PRAGMA journal_mode=WAL;").Scan(&journalMode); err != nil {
		return fmt.Errorf("enable WAL mode: %w", err)
	}
	if !strings.EqualFold(journalMode, "wal") {
		return fmt.Errorf("enable WAL mode: unexpected journal mode %q", journalMode)
	}
	return nil
}

// issueTimestamp returns the current epoch milliseconds, bumped if needed so
// consecutive issues from this handle are strictly increasing.
func (s *Store) issueTimestamp() int64 {
	s.clockMu.Lock()
	defer s.clockMu.Unlock()

	now := time.Now().UnixMilli()
	if now <= s.lastIssued {
		now = s.lastIssued + 1
	}
	s.lastIssued = now
	return now
}
