// Package topics resolves the topic a new tutoring session is anchored to.
package topics

import (
	"context"
	"errors"
	"fmt"

	"github.com/abhisek/widen/internal/store"
)

// ErrNoTopic is returned when no topic is available for the day. A session
// cannot start without one.
var ErrNoTopic = errors.New("no topic configured")

// Topic is a discussion subject plus the background material questions are
// generated from.
type Topic struct {
	Title   string
	Context string
}

// Source yields the current topic of the day.
type Source interface {
	Current(ctx context.Context) (*Topic, error)
}

// StoreSource reads the newest topic from the daily_topics table. The table
// is fed by an external ingestion job or by `widen topic set`.
type StoreSource struct {
	store *store.Store
}

func NewStoreSource(s *store.Store) *StoreSource {
	return &StoreSource{store: s}
}

func (s *StoreSource) Current(ctx context.Context) (*Topic, error) {
	dt, err := s.store.LatestDailyTopic(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNoTopic
	}
	if err != nil {
		return nil, fmt.Errorf("load daily topic: %w", err)
	}
	return &Topic{Title: dt.Topic, Context: dt.Context}, nil
}

// StaticSource always returns the same topic. Used for local chat sessions
// where the learner names the subject up front.
type StaticSource struct {
	topic Topic
}

func NewStaticSource(title, context string) *StaticSource {
	return &StaticSource{topic: Topic{Title: title, Context: context}}
}

func (s *StaticSource) Current(context.Context) (*Topic, error) {
	if s.topic.Title == "" {
		return nil, ErrNoTopic
	}
	t := s.topic
	return &t, nil
}
