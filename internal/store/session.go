package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Session is one learner's run through the six levels for one topic.
type Session struct {
	ID           string
	UserID       string
	Topic        string
	CurrentLevel int
	Completed    bool
	StartedAt    time.Time
	CompletedAt  *time.Time
}

// CreateSession inserts a new session at level 1.
func (s *Store) CreateSession(ctx context.Context, sess *Session) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (session_id, user_id, topic, current_level, completed, started_at)
		 VALUES (?, ?, ?, ?, 0, ?)`,
		sess.ID, sess.UserID, sess.Topic, sess.CurrentLevel, sess.StartedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// GetSession returns the session with the given id, or ErrNotFound.
func (s *Store) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT session_id, user_id, topic, current_level, completed, started_at, completed_at
		 FROM sessions WHERE session_id = ?`,
		sessionID,
	)
	return scanSession(row)
}

// SetSessionLevel updates the session's current level. Levels only move
// forward; a lower value than the stored one is rejected.
func (s *Store) SetSessionLevel(ctx context.Context, sessionID string, level int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET current_level = ? WHERE session_id = ? AND current_level <= ?`,
		level, sessionID, level,
	)
	if err != nil {
		return fmt.Errorf("set session level: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set session level: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("set session level %d for %s: level would regress or session missing", level, sessionID)
	}
	return nil
}

// MarkSessionCompleted sets the completion flag and timestamp.
// Idempotent: completing an already-completed session is a no-op that
// preserves the original completion time.
func (s *Store) MarkSessionCompleted(ctx context.Context, sessionID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET completed = 1, completed_at = COALESCE(completed_at, ?)
		 WHERE session_id = ?`,
		at.Unix(), sessionID,
	)
	if err != nil {
		return fmt.Errorf("mark session completed: %w", err)
	}
	return nil
}

// ActiveSessions returns all sessions whose completion flag is unset,
// most recent first.
func (s *Store) ActiveSessions(ctx context.Context) ([]*Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, user_id, topic, current_level, completed, started_at, completed_at
		 FROM sessions WHERE completed = 0 ORDER BY started_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query active sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// SessionsWithoutReport returns sessions that have no report row yet,
// active or not. The sweeps use it to find work left behind by crashes and
// report failures.
func (s *Store) SessionsWithoutReport(ctx context.Context) ([]*Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT s.session_id, s.user_id, s.topic, s.current_level, s.completed, s.started_at, s.completed_at
		 FROM sessions s
		 LEFT JOIN reports r ON r.session_id = s.session_id
		 WHERE r.session_id IS NULL
		 ORDER BY s.started_at ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query sessions without report: %w", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*Session, error) {
	var sess Session
	var completed int
	var startedAt int64
	var completedAt sql.NullInt64

	err := row.Scan(&sess.ID, &sess.UserID, &sess.Topic, &sess.CurrentLevel,
		&completed, &startedAt, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan session: %w", err)
	}

	sess.Completed = completed != 0
	sess.StartedAt = time.Unix(startedAt, 0)
	if completedAt.Valid {
		t := time.Unix(completedAt.Int64, 0)
		sess.CompletedAt = &t
	}
	return &sess, nil
}
