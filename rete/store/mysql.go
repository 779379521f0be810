package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLStore is a MySQL/MariaDB implementation of Store.
//
// It persists working-memory snapshots and journals in a relational
// database. Designed for:
//   - Production engines requiring durable working memory
//   - Deployments where several processes share the same fact base
//   - Audit trails over assert/retract history
//
// MySQLStore uses connection pooling and transactions for reliability.
//
// Schema:
//   - wm_snapshots: the fact set per snapshot identifier
//   - wm_journal: append-only assert/retract history per journal
type MySQLStore struct {
	db     *sql.DB
	mu     sync.Mutex
	closed bool
}

// NewMySQLStore creates a MySQL-backed store.
//
// The DSN (Data Source Name) format is:
//
//	[username[:password]@][protocol[(address)]]/dbname[?param1=value1&...]
//
// Example DSNs:
//
//	user:password@tcp(localhost:3306)/facts
//	user:password@tcp(127.0.0.1:3306)/facts?parseTime=true
//
// Security Warning:
//
//	NEVER hardcode credentials in your source code. Use environment variables:
//	    dsn := os.Getenv("MYSQL_DSN")
//
// The store automatically creates the required tables, configures
// connection pooling, and verifies connectivity with a ping.
func NewMySQLStore(dsn string) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL connection: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	s := &MySQLStore{db: db}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

func (m *MySQLStore) createTables(ctx context.Context) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS wm_snapshots (
			snap_id VARCHAR(255) NOT NULL,
			position INT NOT NULL,
			id VARCHAR(255) NOT NULL,
			attr VARCHAR(255) NOT NULL,
			value VARCHAR(255) NOT NULL,
			PRIMARY KEY (snap_id, position)
		) ENGINE=InnoDB`,
		`CREATE TABLE IF NOT EXISTS wm_journal (
			journal_id VARCHAR(255) NOT NULL,
			position INT NOT NULL,
			seq INT NOT NULL,
			op VARCHAR(16) NOT NULL,
			id VARCHAR(255) NOT NULL,
			attr VARCHAR(255) NOT NULL,
			value VARCHAR(255) NOT NULL,
			PRIMARY KEY (journal_id, position)
		) ENGINE=InnoDB`,
	}
	for _, stmt := range schema {
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// SaveSnapshot replaces the snapshot stored under snapID in one transaction.
func (m *MySQLStore) SaveSnapshot(ctx context.Context, snapID string, facts []Fact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fmt.Errorf("store is closed")
	}

	tx, err := m.db.BeginTx(ctx, nil)
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
func (m *MySQLStore) LoadSnapshot(ctx context.Context, snapID string) ([]Fact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, fmt.Errorf("store is closed")
	}

	rows, err := m.db.QueryContext(ctx,
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
func (m *MySQLStore) AppendChange(ctx context.Context, journalID string, change Change) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fmt.Errorf("store is closed")
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var next int
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(position), -1) + 1 FROM wm_journal WHERE journal_id = ? FOR UPDATE`,
		journalID).Scan(&next)
	if err != nil {
		return fmt.Errorf("failed to find journal position: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO wm_journal (journal_id, position, seq, op, id, attr, value) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		journalID, next, change.Seq, string(change.Op), change.Fact.ID, change.Fact.Attr, change.Fact.Value); err != nil {
		return fmt.Errorf("failed to append change: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit change: %w", err)
	}
	return nil
}

// Changes retrieves a journal's changes in append order.
func (m *MySQLStore) Changes(ctx context.Context, journalID string) ([]Change, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, fmt.Errorf("store is closed")
	}

	rows, err := m.db.QueryContext(ctx,
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
func (m *MySQLStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	return m.db.Close()
}
