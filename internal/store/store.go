// Package store provides a SQLite-backed session history store for the
// shopping assistant. Each session id has its own conversation thread.
// Turns are persisted across server restarts and replayed into the
// generation prompt on subsequent queries.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver

	"github.com/lmarban/shopmind-go/internal/engine"
)

// HistoryStore persists and retrieves conversation turns keyed by session id.
// Implementations must be safe for concurrent use.
type HistoryStore interface {
	// Append persists a single turn for the given session.
	Append(ctx context.Context, session string, turn engine.ConversationTurn) error
	// Recent returns the most recent n turns for the session, ordered
	// oldest-first so they can be handed to the prompt builder directly.
	// If fewer than n turns exist, all are returned.
	Recent(ctx context.Context, session string, n int) ([]engine.ConversationTurn, error)
	// Close releases any resources held by the store.
	Close() error
}

// SQLiteStore is a HistoryStore backed by a local SQLite database.
type SQLiteStore struct {
	// db is the underlying database connection pool.
	db *sql.DB
}

// DefaultDBPath returns the default path for the session history database.
// It resolves to ~/.shopmind/history.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("store: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".shopmind")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("store: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "history.db"), nil
}

// Open opens (or creates) a SQLiteStore at the given path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*SQLiteStore, error) {
	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS turns (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    session      TEXT    NOT NULL,
    role         TEXT    NOT NULL CHECK(role IN ('user','assistant')),
    content      TEXT    NOT NULL,
    products     TEXT    NOT NULL DEFAULT '[]',  -- JSON array of scored products
    created_at   INTEGER NOT NULL                -- Unix timestamp (seconds)
);
CREATE INDEX IF NOT EXISTS idx_turns_session_created
    ON turns (session, created_at);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// Append persists a single turn for the given session.
func (s *SQLiteStore) Append(ctx context.Context, session string, turn engine.ConversationTurn) error {
	products := "[]"
	if len(turn.Products) > 0 {
		data, err := json.Marshal(turn.Products)
		if err != nil {
			return fmt.Errorf("store: marshal products: %w", err)
		}
		products = string(data)
	}

	const q = `INSERT INTO turns (session, role, content, products, created_at) VALUES (?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q, session, string(turn.Role), turn.Content, products, time.Now().Unix()); err != nil {
		return fmt.Errorf("store: append: %w", err)
	}
	return nil
}

// Recent returns the most recent n turns for the session, ordered
// oldest-first. Uses a subquery to select the tail then re-order for replay.
func (s *SQLiteStore) Recent(ctx context.Context, session string, n int) ([]engine.ConversationTurn, error) {
	const q = `
SELECT role, content, products FROM (
    SELECT id, role, content, products
    FROM   turns
    WHERE  session = ?
    ORDER  BY created_at DESC, id DESC
    LIMIT  ?
) ORDER BY id ASC`

	rows, err := s.db.QueryContext(ctx, q, session, n)
	if err != nil {
		return nil, fmt.Errorf("store: recent: %w", err)
	}
	defer rows.Close()

	var turns []engine.ConversationTurn
	for rows.Next() {
		var t engine.ConversationTurn
		var role, products string
		if err := rows.Scan(&role, &t.Content, &products); err != nil {
			return nil, fmt.Errorf("store: recent scan: %w", err)
		}
		t.Role = engine.Role(role)
		if products != "" && products != "[]" {
			if err := json.Unmarshal([]byte(products), &t.Products); err != nil {
				return nil, fmt.Errorf("store: unmarshal products: %w", err)
			}
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: recent rows: %w", err)
	}
	return turns, nil
}

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}
