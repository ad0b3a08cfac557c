package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Report is the immutable feedback document produced once per completed
// session. The list fields hold the pipeline's structured items as JSON.
type Report struct {
	ID            string
	SessionID     string
	UserID        string
	Topic         string
	Summary       string
	Strengths     json.RawMessage
	Weaknesses    json.RawMessage
	Suggestions   json.RawMessage
	RevisedAnswer string
	Level         int
	CreatedAt     time.Time
}

// InsertReport persists a report. The UNIQUE constraint on session_id makes
// a second insert for the same session fail rather than duplicate.
func (s *Store) InsertReport(ctx context.Context, r *Report) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reports (report_id, session_id, user_id, topic, summary,
		                      strengths, weaknesses, suggestions, revised_answer, level, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.SessionID, r.UserID, r.Topic, r.Summary,
		string(r.Strengths), string(r.Weaknesses), string(r.Suggestions),
		r.RevisedAnswer, r.Level, r.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

// ReportBySession returns the session's report, or ErrNotFound.
func (s *Store) ReportBySession(ctx context.Context, sessionID string) (*Report, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT report_id, session_id, user_id, topic, summary,
		        strengths, weaknesses, suggestions, revised_answer, level, created_at
		 FROM reports WHERE session_id = ?`,
		sessionID,
	)

	var r Report
	var strengths, weaknesses, suggestions string
	var createdAt int64

	err := row.Scan(&r.ID, &r.SessionID, &r.UserID, &r.Topic, &r.Summary,
		&strengths, &weaknesses, &suggestions, &r.RevisedAnswer, &r.Level, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan report: %w", err)
	}

	r.Strengths = json.RawMessage(strengths)
	r.Weaknesses = json.RawMessage(weaknesses)
	r.Suggestions = json.RawMessage(suggestions)
	r.CreatedAt = time.Unix(createdAt, 0)
	return &r, nil
}
