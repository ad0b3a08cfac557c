// Package report turns a finished session's question-and-answer record into
// a persisted feedback report.
package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/abhisek/widen/internal/llm"
	"github.com/abhisek/widen/internal/store"
)

// UnansweredMarker stands in for the learner's answer when a session was
// closed out before they responded to a question.
const UnansweredMarker = "unanswered"

// ErrNoQuestions is returned when a session has no question record to
// report on.
var ErrNoQuestions = errors.New("session has no questions to report on")

// Strength, Weakness and Suggestion are the structured feedback items.
type Strength struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Example     string `json:"example"`
}

type Weakness struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Suggestion  string `json:"suggestion"`
}

type Suggestion struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Resources   string   `json:"resources"`
	Questions   []string `json:"questions"`
}

// Report is the assembled feedback document.
type Report struct {
	ID            string       `json:"report_id"`
	SessionID     string       `json:"session_id"`
	UserID        string       `json:"user_id"`
	Topic         string       `json:"topic"`
	Summary       string       `json:"summary"`
	Strengths     []Strength   `json:"strengths"`
	Weaknesses    []Weakness   `json:"weaknesses"`
	Suggestions   []Suggestion `json:"suggestions"`
	RevisedAnswer string       `json:"revised_answer"`
	Level         int          `json:"level"`
	CreatedAt     time.Time    `json:"created_at"`
}

const systemPrompt = `You are writing a feedback report for a learner who just finished a tutoring session that climbed through questions of increasing cognitive depth.

Rules:
- Ground every strength, weakness and suggestion in what the learner actually wrote. Quote or paraphrase their words in the examples.
- Questions marked "unanswered" were never answered; treat them as gaps, not as wrong answers.
- Be specific and constructive. Generic praise or criticism that could apply to anyone is useless.
- The revised answer is an exemplar response to the final question of the session, at the depth that question demanded.
- Write in the language the learner used.`

// Config holds pipeline tuning.
type Config struct {
	MaxTokens   int
	Temperature float64
}

func DefaultConfig() Config {
	return Config{MaxTokens: 4096, Temperature: 0.3}
}

// Pipeline generates and persists session reports.
type Pipeline struct {
	provider llm.Provider
	store    *store.Store
	config   Config
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a Pipeline. A nil logger falls back to slog.Default.
func New(provider llm.Provider, s *store.Store, cfg Config, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{provider: provider, store: s, config: cfg, logger: logger, now: time.Now}
}

type reportOutput struct {
	Summary       string       `json:"summary"`
	Strengths     []Strength   `json:"strengths"`
	Weaknesses    []Weakness   `json:"weaknesses"`
	Suggestions   []Suggestion `json:"suggestions"`
	RevisedAnswer string       `json:"revised_answer"`
}

// Generate produces the report for a session. If a report already exists it
// is returned unchanged with no writes, which makes the pipeline safe to
// re-run from sweeps, retries and crashed processes alike. Malformed LLM
// output fails the invocation; the next run starts clean.
func (p *Pipeline) Generate(ctx context.Context, sessionID, userID string) (*Report, error) {
	if existing, err := p.store.ReportBySession(ctx, sessionID); err == nil {
		p.logger.Debug("report already exists, skipping generation", "session_id", sessionID)
		return fromStored(existing)
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("check existing report: %w", err)
	}

	sess, err := p.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	questions, err := p.store.QuestionsBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	if len(questions) == 0 {
		return nil, fmt.Errorf("%w: session %s", ErrNoQuestions, sessionID)
	}

	out, err := p.generateContent(ctx, sess.Topic, questions)
	if err != nil {
		return nil, err
	}

	level := terminalLevel(questions)
	rep := &Report{
		ID:            uuid.NewString(),
		SessionID:     sessionID,
		UserID:        userID,
		Topic:         sess.Topic,
		Summary:       out.Summary,
		Strengths:     out.Strengths,
		Weaknesses:    out.Weaknesses,
		Suggestions:   out.Suggestions,
		RevisedAnswer: out.RevisedAnswer,
		Level:         level,
		CreatedAt:     p.now(),
	}

	stored, err := toStored(rep)
	if err != nil {
		return nil, err
	}
	if err := p.store.InsertReport(ctx, stored); err != nil {
		// A concurrent run may have won the race; the unique constraint
		// guarantees at most one report either way.
		if existing, lookupErr := p.store.ReportBySession(ctx, sessionID); lookupErr == nil {
			p.logger.Debug("lost report insert race", "session_id", sessionID)
			return fromStored(existing)
		}
		return nil, fmt.Errorf("persist report: %w", err)
	}

	if err := p.store.MarkSessionCompleted(ctx, sessionID, p.now()); err != nil {
		p.logger.Warn("report persisted but session completion flag not set", "session_id", sessionID, "error", err)
	}

	p.logger.Info("report generated", "session_id", sessionID, "level", level)
	return rep, nil
}

// BySession returns the stored report for a session, or store.ErrNotFound.
func (p *Pipeline) BySession(ctx context.Context, sessionID string) (*Report, error) {
	return BySession(ctx, p.store, sessionID)
}

// BySession loads a persisted report directly from the store. Lookups don't
// need a provider, so read-only callers can skip constructing a Pipeline.
func BySession(ctx context.Context, s *store.Store, sessionID string) (*Report, error) {
	stored, err := s.ReportBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return fromStored(stored)
}

func (p *Pipeline) generateContent(ctx context.Context, topic string, questions []*store.Question) (*reportOutput, error) {
	ctx = llm.WithPurpose(ctx, "report-gen")

	req := llm.Request{
		System: systemPrompt,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: buildUserMessage(topic, questions)},
		},
		Schema:      ReportSchema,
		MaxTokens:   p.config.MaxTokens,
		Temperature: p.config.Temperature,
	}

	resp, err := p.provider.Generate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("report generation: %w", err)
	}

	var out reportOutput
	if err := json.Unmarshal(resp.Content, &out); err != nil {
		return nil, fmt.Errorf("report generation: parse response: %w", err)
	}
	return &out, nil
}

// buildUserMessage renders the session transcript level by level. Questions
// the learner never answered carry the unanswered marker so the model treats
// them as gaps.
func buildUserMessage(topic string, questions []*store.Question) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Topic: %s\n\nSession transcript:\n", topic)
	for _, q := range questions {
		answer := q.Answer
		if !q.Answered {
			answer = UnansweredMarker
		}
		fmt.Fprintf(&b, "\nQuestion (level %d): %s\nAnswer: %s\n", q.Level, q.Prompt, answer)
	}
	return b.String()
}

// terminalLevel is the highest level the session actually reached.
func terminalLevel(questions []*store.Question) int {
	level := 0
	for _, q := range questions {
		if q.Level > level {
			level = q.Level
		}
	}
	return level
}

func toStored(r *Report) (*store.Report, error) {
	strengths, err := json.Marshal(r.Strengths)
	if err != nil {
		return nil, fmt.Errorf("marshal strengths: %w", err)
	}
	weaknesses, err := json.Marshal(r.Weaknesses)
	if err != nil {
		return nil, fmt.Errorf("marshal weaknesses: %w", err)
	}
	suggestions, err := json.Marshal(r.Suggestions)
	if err != nil {
		return nil, fmt.Errorf("marshal suggestions: %w", err)
	}
	return &store.Report{
		ID:            r.ID,
		SessionID:     r.SessionID,
		UserID:        r.UserID,
		Topic:         r.Topic,
		Summary:       r.Summary,
		Strengths:     strengths,
		Weaknesses:    weaknesses,
		Suggestions:   suggestions,
		RevisedAnswer: r.RevisedAnswer,
		Level:         r.Level,
		CreatedAt:     r.CreatedAt,
	}, nil
}

func fromStored(s *store.Report) (*Report, error) {
	r := &Report{
		ID:            s.ID,
		SessionID:     s.SessionID,
		UserID:        s.UserID,
		Topic:         s.Topic,
		Summary:       s.Summary,
		RevisedAnswer: s.RevisedAnswer,
		Level:         s.Level,
		CreatedAt:     s.CreatedAt,
	}
	if err := json.Unmarshal(s.Strengths, &r.Strengths); err != nil {
		return nil, fmt.Errorf("unmarshal strengths: %w", err)
	}
	if err := json.Unmarshal(s.Weaknesses, &r.Weaknesses); err != nil {
		return nil, fmt.Errorf("unmarshal weaknesses: %w", err)
	}
	if err := json.Unmarshal(s.Suggestions, &r.Suggestions); err != nil {
		return nil, fmt.Errorf("unmarshal suggestions: %w", err)
	}
	return r, nil
}
