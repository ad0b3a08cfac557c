// Package store persists sessions, questions, conversation turns, reports,
// and daily topics in SQLite.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	// Pure Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"
)

// Store wraps the SQLite database and provides typed access to all tables.
type Store struct {
	db *sql.DB
}

// Open creates a new Store connected to the SQLite database at dsn.
// It applies recommended pragmas and creates the schema if missing.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return &Store{db: db}, nil
}

// DB returns the underlying *sql.DB for raw queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// applyPragmas configures SQLite for concurrent read/write access.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		session_id    TEXT PRIMARY KEY,
		user_id       TEXT NOT NULL,
		topic         TEXT NOT NULL,
		current_level INTEGER NOT NULL DEFAULT 1 CHECK (current_level BETWEEN 1 AND 6),
		completed     INTEGER NOT NULL DEFAULT 0,
		started_at    INTEGER NOT NULL,
		completed_at  INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_active ON sessions(completed, started_at);

	CREATE TABLE IF NOT EXISTS questions (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL REFERENCES sessions(session_id),
		level      INTEGER NOT NULL CHECK (level BETWEEN 1 AND 6),
		prompt     TEXT NOT NULL,
		answer     TEXT,
		answered   INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_questions_session ON questions(session_id, level, id);

	CREATE TABLE IF NOT EXISTS conversation_turns (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL REFERENCES sessions(session_id),
		speaker    TEXT NOT NULL CHECK (speaker IN ('learner', 'assistant')),
		content    TEXT NOT NULL,
		seq        INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		UNIQUE (session_id, seq)
	);

	CREATE TABLE IF NOT EXISTS reports (
		report_id      TEXT PRIMARY KEY,
		session_id     TEXT NOT NULL UNIQUE REFERENCES sessions(session_id),
		user_id        TEXT NOT NULL,
		topic          TEXT NOT NULL,
		summary        TEXT NOT NULL,
		strengths      TEXT NOT NULL,
		weaknesses     TEXT NOT NULL,
		suggestions    TEXT NOT NULL,
		revised_answer TEXT NOT NULL,
		level          INTEGER NOT NULL,
		created_at     INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS daily_topics (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		topic         TEXT NOT NULL,
		topic_context TEXT NOT NULL,
		created_at    INTEGER NOT NULL
	);
	`
	if _, err := db.Exec(schema); err != nil {
		return err
	}
	return nil
}

// DefaultDBPath resolves the database file path in priority order:
// 1. WIDEN_DB environment variable
// 2. $XDG_DATA_HOME/widen/widen.db
// 3. ~/.local/share/widen/widen.db
func DefaultDBPath() (string, error) {
	if p := os.Getenv("WIDEN_DB"); p != "" {
		return p, EnsureDir(p)
	}

	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		dataHome = filepath.Join(home, ".local", "share")
	}

	p := filepath.Join(dataHome, "widen", "widen.db")
	return p, EnsureDir(p)
}

// EnsureDir creates the parent directory of path if it doesn't exist.
func EnsureDir(path string) error {
	dir := filepath.Dir(path)
	return os.MkdirAll(dir, 0o755)
}
