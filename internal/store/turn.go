package store

import (
	"context"
	"fmt"
	"time"
)

// Speaker identifies who produced a conversation turn.
type Speaker string

const (
	SpeakerLearner   Speaker = "learner"
	SpeakerAssistant Speaker = "assistant"
)

// Turn is one entry in a session's append-only conversation log. Seq is the
// sole ordering key, assigned as max+1 per session at insert time.
type Turn struct {
	ID        int64
	SessionID string
	Speaker   Speaker
	Content   string
	Seq       int64
	CreatedAt time.Time
}

// AppendTurn inserts a turn with the next sequence number for the session.
// The read-max-then-insert runs as a single statement so concurrent writers
// against the same session can never be assigned the same sequence; the
// UNIQUE(session_id, seq) constraint backstops it. Returns the assigned
// sequence number.
func (s *Store) AppendTurn(ctx context.Context, sessionID string, speaker Speaker, content string, at time.Time) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO conversation_turns (session_id, speaker, content, seq, created_at)
		 SELECT ?, ?, ?, COALESCE(MAX(seq), 0) + 1, ?
		 FROM conversation_turns WHERE session_id = ?
		 RETURNING seq`,
		sessionID, string(speaker), content, at.Unix(), sessionID,
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("append turn: %w", err)
	}
	return seq, nil
}

// TurnsBySession returns a session's full conversation log in sequence order.
func (s *Store) TurnsBySession(ctx context.Context, sessionID string) ([]*Turn, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, speaker, content, seq, created_at
		 FROM conversation_turns
		 WHERE session_id = ?
		 ORDER BY seq ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer rows.Close()

	var turns []*Turn
	for rows.Next() {
		var t Turn
		var speaker string
		var createdAt int64
		if err := rows.Scan(&t.ID, &t.SessionID, &speaker, &t.Content, &t.Seq, &createdAt); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		t.Speaker = Speaker(speaker)
		t.CreatedAt = time.Unix(createdAt, 0)
		turns = append(turns, &t)
	}
	return turns, rows.Err()
}
