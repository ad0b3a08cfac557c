// Package progression drives a tutoring session through the six question
// levels, from the opening recall question to the completion report.
package progression

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/abhisek/widen/internal/evaluate"
	"github.com/abhisek/widen/internal/memory"
	"github.com/abhisek/widen/internal/observability"
	"github.com/abhisek/widen/internal/question"
	"github.com/abhisek/widen/internal/report"
	"github.com/abhisek/widen/internal/store"
	"github.com/abhisek/widen/internal/topics"
)

// ErrSessionCompleted is returned when a caller keeps talking to a session
// that already finished.
var ErrSessionCompleted = errors.New("session already completed")

// Outcome is what the learner sees after starting a session or submitting
// an answer.
type Outcome struct {
	SessionID string         `json:"session_id"`
	Topic     string         `json:"topic"`
	Level     int            `json:"level"`
	Message   string         `json:"message"`
	Question  string         `json:"question,omitempty"`
	Feedback  string         `json:"feedback,omitempty"`
	Hint      string         `json:"hint,omitempty"`
	Completed bool           `json:"completed"`
	Report    *report.Report `json:"report,omitempty"`
}

// Summary aggregates a session after a manual end.
type Summary struct {
	SessionID string `json:"session_id"`
	Topic     string `json:"topic"`
	Level     int    `json:"level"`
	Questions int    `json:"questions"`
	Answered  int    `json:"answered"`
	Completed bool   `json:"completed"`
}

// Engine wires the store, memory, generator, evaluator and report pipeline
// into the session state machine.
type Engine struct {
	store   *store.Store
	memory  *memory.Memory
	source  topics.Source
	gen     *question.Generator
	eval    *evaluate.Evaluator
	reports *report.Pipeline
	metrics *observability.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// New creates an Engine. A nil logger falls back to slog.Default.
func New(
	s *store.Store,
	mem *memory.Memory,
	source topics.Source,
	gen *question.Generator,
	eval *evaluate.Evaluator,
	reports *report.Pipeline,
	metrics *observability.Metrics,
	logger *slog.Logger,
) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:   s,
		memory:  mem,
		source:  source,
		gen:     gen,
		eval:    eval,
		reports: reports,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// Start opens a new session. An explicit topic wins; otherwise the topic
// source decides. topics.ErrNoTopic when neither yields one.
func (e *Engine) Start(ctx context.Context, topic, userID string) (*Outcome, error) {
	resolved := &topics.Topic{Title: topic}
	if topic == "" {
		var err error
		resolved, err = e.source.Current(ctx)
		if err != nil {
			return nil, err
		}
	}

	sess := &store.Session{
		ID:           uuid.NewString(),
		UserID:       userID,
		Topic:        resolved.Title,
		CurrentLevel: question.MinLevel,
		StartedAt:    e.now(),
	}
	if err := e.store.CreateSession(ctx, sess); err != nil {
		return nil, err
	}

	prompt, err := e.gen.Generate(ctx, question.GenerateInput{
		Topic:        resolved.Title,
		TopicContext: resolved.Context,
		Level:        question.MinLevel,
	})
	if err != nil {
		return nil, err
	}
	if err := e.store.InsertQuestion(ctx, &store.Question{
		SessionID: sess.ID,
		Level:     question.MinLevel,
		Prompt:    prompt,
		CreatedAt: e.now(),
	}); err != nil {
		return nil, err
	}

	welcome := fmt.Sprintf("Today we're talking about %s. We'll work up from the basics.", resolved.Title)
	message := welcome + "\n\n" + prompt
	if err := e.memory.Append(ctx, sess.ID, store.SpeakerAssistant, message); err != nil {
		return nil, err
	}

	e.metrics.SessionsStarted.Inc()
	e.logger.Info("session started", "session_id", sess.ID, "user_id", userID, "topic", resolved.Title)

	return &Outcome{
		SessionID: sess.ID,
		Topic:     resolved.Title,
		Level:     question.MinLevel,
		Message:   message,
		Question:  prompt,
	}, nil
}

// Respond processes one learner answer. The raw answer is persisted before
// any judgement, so the record survives flaky evaluation. The verdict then
// decides: stay on the level with a fresh question, advance a level, or at
// the top level complete the session and produce the report.
func (e *Engine) Respond(ctx context.Context, sessionID, answer string) (*Outcome, error) {
	sess, err := e.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Completed {
		return nil, ErrSessionCompleted
	}

	open, err := e.store.OpenQuestion(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if err := e.memory.Append(ctx, sessionID, store.SpeakerLearner, answer); err != nil {
		return nil, err
	}
	if err := e.store.RecordAnswer(ctx, open.ID, answer); err != nil {
		return nil, err
	}

	verdict := e.eval.Evaluate(ctx, open.Prompt, open.Level, answer)

	switch {
	case !verdict.Appropriate:
		e.metrics.Verdicts.WithLabelValues(verdictOutcome(verdict)).Inc()
		return e.retryLevel(ctx, sess, open, verdict)
	case open.Level < question.MaxLevel:
		e.metrics.Verdicts.WithLabelValues("appropriate").Inc()
		return e.advance(ctx, sess, open, verdict)
	default:
		e.metrics.Verdicts.WithLabelValues("appropriate").Inc()
		return e.complete(ctx, sess, verdict)
	}
}

// retryNudge prefixes the evaluator's feedback when an answer misses the
// mark but the learner was not asking for help.
const retryNudge = "Let's think about that a bit more. "

// retryLevel keeps the learner on the current level. The same question is
// re-issued in a new open row, since the submitted answer is already
// recorded against the old one. A learner asking for help gets exactly the
// hint back; an off-target answer gets a nudge with the feedback.
func (e *Engine) retryLevel(ctx context.Context, sess *store.Session, open *store.Question, verdict evaluate.Verdict) (*Outcome, error) {
	if err := e.store.InsertQuestion(ctx, &store.Question{
		SessionID: sess.ID,
		Level:     open.Level,
		Prompt:    open.Prompt,
		CreatedAt: e.now(),
	}); err != nil {
		return nil, err
	}

	message := retryNudge + verdict.Feedback
	if verdict.SeekingHelp {
		message = verdict.Hint
	}
	if err := e.memory.Append(ctx, sess.ID, store.SpeakerAssistant, message); err != nil {
		return nil, err
	}

	e.logger.Info("level retry", "session_id", sess.ID, "level", open.Level, "seeking_help", verdict.SeekingHelp)

	return &Outcome{
		SessionID: sess.ID,
		Topic:     sess.Topic,
		Level:     open.Level,
		Message:   message,
		Question:  open.Prompt,
		Feedback:  verdict.Feedback,
		Hint:      verdict.Hint,
	}, nil
}

// advance moves the session up one level and issues that level's question.
func (e *Engine) advance(ctx context.Context, sess *store.Session, open *store.Question, verdict evaluate.Verdict) (*Outcome, error) {
	next := open.Level + 1
	if err := e.store.SetSessionLevel(ctx, sess.ID, next); err != nil {
		return nil, err
	}

	history, err := e.memory.Render(ctx, sess.ID)
	if err != nil {
		return nil, err
	}
	prompt, err := e.gen.Generate(ctx, question.GenerateInput{
		Topic:   sess.Topic,
		Level:   next,
		History: history,
	})
	if err != nil {
		return nil, err
	}
	if err := e.store.InsertQuestion(ctx, &store.Question{
		SessionID: sess.ID,
		Level:     next,
		Prompt:    prompt,
		CreatedAt: e.now(),
	}); err != nil {
		return nil, err
	}

	message := verdict.Feedback + "\n\n" + prompt
	if err := e.memory.Append(ctx, sess.ID, store.SpeakerAssistant, message); err != nil {
		return nil, err
	}

	e.logger.Info("level advanced", "session_id", sess.ID, "level", next)

	return &Outcome{
		SessionID: sess.ID,
		Topic:     sess.Topic,
		Level:     next,
		Message:   message,
		Question:  prompt,
		Feedback:  verdict.Feedback,
	}, nil
}

// complete closes out a session whose top-level answer passed. Completion is
// committed before the report runs; a failed report never reopens the
// session, it just leaves the report to the next sweep.
func (e *Engine) complete(ctx context.Context, sess *store.Session, verdict evaluate.Verdict) (*Outcome, error) {
	if err := e.store.MarkSessionCompleted(ctx, sess.ID, e.now()); err != nil {
		return nil, err
	}

	message := verdict.Feedback + "\n\nThat was the last question. Well done working all the way up."
	if err := e.memory.Append(ctx, sess.ID, store.SpeakerAssistant, message); err != nil {
		return nil, err
	}
	e.memory.Evict(sess.ID)

	e.metrics.SessionsCompleted.WithLabelValues("conversation").Inc()
	e.logger.Info("session completed", "session_id", sess.ID)

	outcome := &Outcome{
		SessionID: sess.ID,
		Topic:     sess.Topic,
		Level:     question.MaxLevel,
		Message:   message,
		Feedback:  verdict.Feedback,
		Completed: true,
	}

	rep, err := e.reports.Generate(ctx, sess.ID, sess.UserID)
	if err != nil {
		e.metrics.ReportFailures.Inc()
		e.logger.Warn("report generation failed after completion", "session_id", sess.ID, "error", err)
		return outcome, nil
	}
	e.metrics.ReportsGenerated.Inc()
	outcome.Report = rep
	return outcome, nil
}

// End force-completes a session without running the report pipeline. The
// deadline sweep picks up the report later.
func (e *Engine) End(ctx context.Context, sessionID string) (*Summary, error) {
	sess, err := e.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if !sess.Completed {
		if err := e.store.MarkSessionCompleted(ctx, sessionID, e.now()); err != nil {
			return nil, err
		}
		e.memory.Evict(sessionID)
		e.metrics.SessionsCompleted.WithLabelValues("manual").Inc()
		e.logger.Info("session ended by learner", "session_id", sessionID, "level", sess.CurrentLevel)
	}

	questions, err := e.store.QuestionsBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	answered := 0
	for _, q := range questions {
		if q.Answered {
			answered++
		}
	}

	return &Summary{
		SessionID: sessionID,
		Topic:     sess.Topic,
		Level:     sess.CurrentLevel,
		Questions: len(questions),
		Answered:  answered,
		Completed: true,
	}, nil
}

// History returns the session's ordered conversation log.
func (e *Engine) History(ctx context.Context, sessionID string) ([]*store.Turn, error) {
	if _, err := e.store.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return e.store.TurnsBySession(ctx, sessionID)
}

func verdictOutcome(v evaluate.Verdict) string {
	if v.SeekingHelp {
		return "seeking_help"
	}
	return "inappropriate"
}
