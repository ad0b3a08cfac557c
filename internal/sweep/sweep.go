// Package sweep reconciles session state in the background: closing out
// sessions that ran past their deadline and finishing reports that an
// earlier process failed to write.
package sweep

import (
	"context"
	"log/slog"
	"time"

	"github.com/abhisek/widen/internal/memory"
	"github.com/abhisek/widen/internal/observability"
	"github.com/abhisek/widen/internal/question"
	"github.com/abhisek/widen/internal/report"
	"github.com/abhisek/widen/internal/store"
)

// Config holds the two sweep intervals.
type Config struct {
	// DeadlineInterval is how often the deadline sweep runs. It closes out
	// every session still active, partial or not.
	DeadlineInterval time.Duration

	// RecoveryInterval is how often the recovery sweep runs. It finishes
	// reports for sessions that reached the top level but never got one.
	RecoveryInterval time.Duration
}

// DefaultConfig matches the original cadence: close out once a day, check
// for stranded reports every hour.
func DefaultConfig() Config {
	return Config{
		DeadlineInterval: 24 * time.Hour,
		RecoveryInterval: time.Hour,
	}
}

// Sweeper runs the reconciliation passes. Both passes lean on the report
// pipeline's idempotence, so overlapping or repeated runs are harmless.
type Sweeper struct {
	store   *store.Store
	memory  *memory.Memory
	reports *report.Pipeline
	metrics *observability.Metrics
	logger  *slog.Logger
	config  Config
	now     func() time.Time
}

// New creates a Sweeper. A nil logger falls back to slog.Default.
func New(s *store.Store, mem *memory.Memory, reports *report.Pipeline, metrics *observability.Metrics, cfg Config, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		store:   s,
		memory:  mem,
		reports: reports,
		metrics: metrics,
		logger:  logger,
		config:  cfg,
		now:     time.Now,
	}
}

// Start runs both sweeps on their tickers until ctx is cancelled.
func (sw *Sweeper) Start(ctx context.Context) {
	deadline := time.NewTicker(sw.config.DeadlineInterval)
	recovery := time.NewTicker(sw.config.RecoveryInterval)
	go func() {
		defer deadline.Stop()
		defer recovery.Stop()
		sw.logger.Info("sweeper started",
			"deadline_interval", sw.config.DeadlineInterval,
			"recovery_interval", sw.config.RecoveryInterval)

		for {
			select {
			case <-deadline.C:
				sw.RunDeadline(ctx)
			case <-recovery.C:
				sw.RunRecovery(ctx)
			case <-ctx.Done():
				sw.logger.Info("sweeper shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

// RunDeadline force-completes every active session and generates its report
// from whatever was answered. A failure on one session never blocks the
// rest.
func (sw *Sweeper) RunDeadline(ctx context.Context) {
	sw.metrics.SweepRuns.WithLabelValues("deadline").Inc()

	sessions, err := sw.store.ActiveSessions(ctx)
	if err != nil {
		sw.logger.Error("deadline sweep failed to list active sessions", "error", err)
		return
	}
	if len(sessions) == 0 {
		return
	}
	sw.logger.Info("deadline sweep closing out sessions", "count", len(sessions))

	for _, sess := range sessions {
		if ctx.Err() != nil {
			return
		}
		if err := sw.store.MarkSessionCompleted(ctx, sess.ID, sw.now()); err != nil {
			sw.logger.Error("deadline sweep failed to complete session", "session_id", sess.ID, "error", err)
			continue
		}
		sw.memory.Evict(sess.ID)
		sw.metrics.SessionsCompleted.WithLabelValues("deadline").Inc()

		sw.generateReport(ctx, sess, "deadline")
	}
}

// RunRecovery generates reports for sessions that finished the ladder but
// have none, typically because the process died or the report call failed
// right after the final answer.
func (sw *Sweeper) RunRecovery(ctx context.Context) {
	sw.metrics.SweepRuns.WithLabelValues("recovery").Inc()

	sessions, err := sw.store.SessionsWithoutReport(ctx)
	if err != nil {
		sw.logger.Error("recovery sweep failed to list sessions", "error", err)
		return
	}

	for _, sess := range sessions {
		if ctx.Err() != nil {
			return
		}
		done, err := sw.ladderFinished(ctx, sess.ID)
		if err != nil {
			sw.logger.Error("recovery sweep failed to inspect session", "session_id", sess.ID, "error", err)
			continue
		}
		if !done {
			continue
		}
		sw.generateReport(ctx, sess, "recovery")
	}
}

// ladderFinished reports whether the session's last question sits at the top
// level and was answered.
func (sw *Sweeper) ladderFinished(ctx context.Context, sessionID string) (bool, error) {
	questions, err := sw.store.QuestionsBySession(ctx, sessionID)
	if err != nil {
		return false, err
	}
	if len(questions) == 0 {
		return false, nil
	}
	last := questions[len(questions)-1]
	return last.Level == question.MaxLevel && last.Answered, nil
}

func (sw *Sweeper) generateReport(ctx context.Context, sess *store.Session, kind string) {
	if _, err := sw.reports.Generate(ctx, sess.ID, sess.UserID); err != nil {
		sw.metrics.ReportFailures.Inc()
		sw.logger.Error("sweep report generation failed",
			"kind", kind, "session_id", sess.ID, "error", err)
		return
	}
	sw.metrics.ReportsGenerated.Inc()
	sw.logger.Info("sweep generated report", "kind", kind, "session_id", sess.ID)
}
