package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Question is one prompt issued to the learner at a specific level.
// A retried level produces a second row at the same level, so (session, level)
// is not unique; the open question is always the newest unanswered row.
type Question struct {
	ID        int64
	SessionID string
	Level     int
	Prompt    string
	Answer    string
	Answered  bool
	CreatedAt time.Time
}

// InsertQuestion persists a freshly generated question.
func (s *Store) InsertQuestion(ctx context.Context, q *Question) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO questions (session_id, level, prompt, answered, created_at)
		 VALUES (?, ?, ?, 0, ?)`,
		q.SessionID, q.Level, q.Prompt, q.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert question: %w", err)
	}
	q.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert question: %w", err)
	}
	return nil
}

// OpenQuestion returns the session's current unanswered question, or
// ErrNotFound when every question has been answered (or none exist).
func (s *Store) OpenQuestion(ctx context.Context, sessionID string) (*Question, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, session_id, level, prompt, answer, answered, created_at
		 FROM questions
		 WHERE session_id = ? AND answered = 0
		 ORDER BY level ASC, id ASC
		 LIMIT 1`,
		sessionID,
	)
	return scanQuestion(row)
}

// RecordAnswer stores the learner's raw answer against a question and flags
// it answered. The answer is kept even when later judged inadequate, so that
// retries stay auditable.
func (s *Store) RecordAnswer(ctx context.Context, questionID int64, answer string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE questions SET answer = ?, answered = 1 WHERE id = ?`,
		answer, questionID,
	)
	if err != nil {
		return fmt.Errorf("record answer: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("record answer: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// QuestionsBySession returns every question for a session ordered by level,
// then creation order within a level.
func (s *Store) QuestionsBySession(ctx context.Context, sessionID string) ([]*Question, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, level, prompt, answer, answered, created_at
		 FROM questions
		 WHERE session_id = ?
		 ORDER BY level ASC, id ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query session questions: %w", err)
	}
	defer rows.Close()

	var questions []*Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

func scanQuestion(row rowScanner) (*Question, error) {
	var q Question
	var answer sql.NullString
	var answered int
	var createdAt int64

	err := row.Scan(&q.ID, &q.SessionID, &q.Level, &q.Prompt, &answer, &answered, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan question: %w", err)
	}

	q.Answer = answer.String
	q.Answered = answered != 0
	q.CreatedAt = time.Unix(createdAt, 0)
	return &q, nil
}
