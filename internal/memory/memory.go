// Package memory maintains per-session conversation context for prompt
// building. The persisted turn log is the source of truth; an in-process
// cache avoids re-reading it on every exchange.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/abhisek/widen/internal/store"
)

// Memory records conversation turns and renders them as generator context.
// It is owned by whoever drives the session (the progression engine); there
// is no package-level instance.
type Memory struct {
	store *store.Store

	mu    sync.Mutex
	cache map[string][]line
}

type line struct {
	speaker store.Speaker
	content string
}

func New(s *store.Store) *Memory {
	return &Memory{
		store: s,
		cache: make(map[string][]line),
	}
}

// Append persists the turn and mirrors it into the session's cache. The
// sequence number comes from the store's atomic allocator, so two callers
// appending to the same session never collide.
func (m *Memory) Append(ctx context.Context, sessionID string, speaker store.Speaker, content string) error {
	if _, err := m.store.AppendTurn(ctx, sessionID, speaker, content, time.Now()); err != nil {
		return fmt.Errorf("append turn: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if cached, ok := m.cache[sessionID]; ok {
		m.cache[sessionID] = append(cached, line{speaker: speaker, content: content})
	}
	return nil
}

// Render returns the session's conversation as ordered "speaker: content"
// lines. On cache miss the log is rebuilt from the store, so memory survives
// process restarts.
func (m *Memory) Render(ctx context.Context, sessionID string) (string, error) {
	m.mu.Lock()
	cached, ok := m.cache[sessionID]
	m.mu.Unlock()

	if !ok {
		turns, err := m.store.TurnsBySession(ctx, sessionID)
		if err != nil {
			return "", fmt.Errorf("load turns: %w", err)
		}
		cached = make([]line, 0, len(turns))
		for _, t := range turns {
			cached = append(cached, line{speaker: t.Speaker, content: t.Content})
		}
		m.mu.Lock()
		m.cache[sessionID] = cached
		m.mu.Unlock()
	}

	var b strings.Builder
	for i, l := range cached {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(string(l.speaker))
		b.WriteString(": ")
		b.WriteString(l.content)
	}
	return b.String(), nil
}

// Evict drops the session's cached lines. Call it when the session completes
// or is abandoned; the persisted log is untouched.
func (m *Memory) Evict(sessionID string) {
	m.mu.Lock()
	delete(m.cache, sessionID)
	m.mu.Unlock()
}
