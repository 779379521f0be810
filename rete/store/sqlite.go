package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"
)

// SQLiteStore is a SQLite implementation of Store.
//
// It persists snapshots and journals in a single-file database. Designed
// for:
//   - Development and testing with zero setup
//   - Single-process engines requiring durable working memory
//   - Prototyping before migrating to a shared database
//
// Features:
//   - Single file database (e.g., "./facts.db") or ":memory:"
//   - Auto-migration on first use
//   - WAL mode for concurrent reads
//   - Transactional snapshot replacement
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.Mutex
	closed bool
	path   string
}

// NewSQLiteStore creates a SQLite-backed store.
//
// The path parameter specifies the database file location:
//   - "./facts.db" - file in current directory
//   - "/tmp/engine.db" - absolute path
//   - ":memory:" - in-memory database (data lost on close)
//
// The store automatically creates the database file and the required
// tables, enables WAL mode, and sets a busy timeout.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite connection: %w", err)
	}

	// SQLite supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx := context.Background()
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	s := &SQLiteStore{db: db, path: path}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) createTables(ctx context.Context) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS wm_snapshots (
			snap_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			id TEXT NOT NULL,
			attr TEXT NOT NULL,
			value TEXT NOT NULL,
			PRIMARY KEY (snap_id, position)
		)`,
		`CREATE TABLE IF NOT EXISTS wm_journal (
			journal_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			op TEXT NOT NULL,
			id TEXT NOT NULL,
			attr TEXT NOT NULL,
			value TEXT NOT NULL,
			PRIMARY KEY (journal_id, position)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_journal_id ON wm_journal(journal_id)`,
	}
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// SaveSnapshot replaces the snapshot stored under snapID in one transaction.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, snapID string, facts []Fact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("store is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM wm_snapshots WHERE snap_id = ?`, snapID); err != nil {
		return fmt.Errorf("failed to clear snapshot: %w", err)
	}
	for i, f := range facts {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO wm_snapshots (snap_id, position, id, attr, value) VALUES (?, ?, ?, ?, ?)`,
			snapID, i, f.ID, f.Attr, f.Value); err != nil {
			return fmt.Errorf("failed to insert fact: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot retrieves the snapshot stored under snapID.
func (s *SQLiteStore) LoadSnapshot(ctx context.Context, snapID string) ([]Fact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, attr, value FROM wm_snapshots WHERE snap_id = ? ORDER BY position`, snapID)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var facts []Fact
	for rows.Next() {
		var f Fact
		if err := rows.Scan(&f.ID, &f.Attr, &f.Value); err != nil {
			return nil, fmt.Errorf("failed to scan fact: %w", err)
		}
		facts = append(facts, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	if facts == nil {
		return nil, ErrNotFound
	}
	return facts, nil
}

// AppendChange appends one change to the named journal.
func (s *SQLiteStore) AppendChange(ctx context.Context, journalID string, change Change) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("store is closed")
	}

	var next int
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(position), -1) + 1 FROM wm_journal WHERE journal_id = ?`, journalID).Scan(&next)
	if err != nil {
		return fmt.Errorf("failed to find journal position: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO wm_journal (journal_id, position, seq, op, id, attr, value) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		journalID, next, change.Seq, string(change.Op), change.Fact.ID, change.Fact.Attr, change.Fact.Value); err != nil {
		return fmt.Errorf("failed to append change: %w", err)
	}
	return nil
}

// Changes retrieves a journal's changes in append order.
func (s *SQLiteStore) Changes(ctx context.Context, journalID string) ([]Change, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, op, id, attr, value FROM wm_journal WHERE journal_id = ? ORDER BY position`, journalID)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var changes []Change
	for rows.Next() {
		var c Change
		var op string
		if err := rows.Scan(&c.Seq, &op, &c.Fact.ID, &c.Fact.Attr, &c.Fact.Value); err != nil {
			return nil, fmt.Errorf("failed to scan change: %w", err)
		}
		c.Op = Op(op)
		changes = append(changes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}
	if changes == nil {
		return nil, ErrNotFound
	}
	return changes, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
