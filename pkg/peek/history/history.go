// Package history keeps entered statements in a SQLite database.
package history

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	// SQLite driver (pure Go, no CGO required)
	_ "modernc.org/sqlite"

	perrors "github.com/sambeau/peek/pkg/peek/errors"
)

// DefaultMaxEntries bounds the number of stored entries.
const DefaultMaxEntries = 10000

// Entry is one stored input.
type Entry struct {
	ID        int64
	Content   string
	Timestamp time.Time
}

// Store is a size-bounded history of inputs.
type Store struct {
	mu         sync.RWMutex
	db         *sql.DB
	path       string
	maxEntries int
	now        func() time.Time
}

// Open opens or creates the history database at path. Entries beyond
// maxEntries are dropped, oldest first. maxEntries <= 0 means the default.
func Open(path string, maxEntries int) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to history database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	s := &Store{db: db, path: path, maxEntries: maxEntries, now: time.Now}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating history schema: %w", err)
	}
	if err := s.maintainSize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("trimming history: %w", err)
	}
	return s, nil
}

func (s *Store) createSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			content TEXT NOT NULL,
			timestamp INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_history_timestamp ON history(timestamp);
	`)
	return err
}

// maintainSize deletes the oldest entries above the limit.
func (s *Store) maintainSize() error {
	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM history").Scan(&count); err != nil {
		return err
	}
	if count <= s.maxEntries {
		return nil
	}
	_, err := s.db.Exec(`
		DELETE FROM history WHERE id IN (
			SELECT id FROM history ORDER BY id LIMIT ?
		)
	`, count-s.maxEntries)
	return err
}

func (s *Store) Path() string { return s.path }

// Append stores one input and returns its id.
func (s *Store) Append(content string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec("INSERT INTO history (content, timestamp) VALUES (?, ?)",
		content, s.now().UnixMilli())
	if err != nil {
		return 0, storeError("append", err)
	}
	return res.LastInsertId()
}

// Get returns the entry with the given id.
func (s *Store) Get(id int64) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var e Entry
	var ms int64
	err := s.db.QueryRow("SELECT id, content, timestamp FROM history WHERE id = ?", id).
		Scan(&e.ID, &e.Content, &ms)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, perrors.New("UNDEF-0003", map[string]any{"Index": id})
	}
	if err != nil {
		return Entry{}, storeError("read", err)
	}
	e.Timestamp = time.UnixMilli(ms)
	return e, nil
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(limit int) ([]Entry, error) {
	return s.query(`
		SELECT id, content, timestamp FROM history
		ORDER BY id DESC
		LIMIT ?
	`, limit)
}

// Since returns up to limit entries stored at or after t, newest first.
func (s *Store) Since(t time.Time, limit int) ([]Entry, error) {
	return s.query(`
		SELECT id, content, timestamp FROM history
		WHERE timestamp >= ?
		ORDER BY id DESC
		LIMIT ?
	`, t.UnixMilli(), limit)
}

func (s *Store) query(q string, args ...any) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// LIMIT is the last argument; -1 means no limit in SQLite
	if n := args[len(args)-1].(int); n <= 0 {
		args[len(args)-1] = -1
	}

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, storeError("query", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var ms int64
		if err := rows.Scan(&e.ID, &e.Content, &ms); err != nil {
			return nil, storeError("scan", err)
		}
		e.Timestamp = time.UnixMilli(ms)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Strings returns the stored contents, oldest first.
func (s *Store) Strings() ([]string, error) {
	entries, err := s.Recent(0)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(entries))
	for i, e := range entries {
		out[len(entries)-1-i] = e.Content
	}
	return out, nil
}

// Count returns the number of stored entries.
func (s *Store) Count() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM history").Scan(&count); err != nil {
		return 0, storeError("count", err)
	}
	return count, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func storeError(op string, err error) error {
	return perrors.New("IO-0002", map[string]any{"Operation": op, "GoError": err.Error()})
}
