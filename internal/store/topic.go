package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// DailyTopic is one entry in the externally-populated topic feed.
type DailyTopic struct {
	ID        int64
	Topic     string
	Context   string
	CreatedAt time.Time
}

// SetDailyTopic appends a new topic to the feed. The newest row wins; older
// rows are kept for history.
func (s *Store) SetDailyTopic(ctx context.Context, topic, topicContext string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO daily_topics (topic, topic_context, created_at) VALUES (?, ?, ?)`,
		topic, topicContext, at.Unix(),
	)
	if err != nil {
		return fmt.Errorf("set daily topic: %w", err)
	}
	return nil
}

// LatestDailyTopic returns the most recently ingested topic, or ErrNotFound
// when the feed is empty.
func (s *Store) LatestDailyTopic(ctx context.Context) (*DailyTopic, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, topic, topic_context, created_at
		 FROM daily_topics ORDER BY created_at DESC, id DESC LIMIT 1`,
	)

	var t DailyTopic
	var createdAt int64
	err := row.Scan(&t.ID, &t.Topic, &t.Context, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan daily topic: %w", err)
	}
	t.CreatedAt = time.Unix(createdAt, 0)
	return &t, nil
}
