package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/abhisek/widen/internal/evaluate"
	"github.com/abhisek/widen/internal/llm"
	"github.com/abhisek/widen/internal/memory"
	"github.com/abhisek/widen/internal/observability"
	"github.com/abhisek/widen/internal/progression"
	"github.com/abhisek/widen/internal/question"
	"github.com/abhisek/widen/internal/report"
	"github.com/abhisek/widen/internal/store"
	"github.com/abhisek/widen/internal/topics"
)

var rootCmd = &cobra.Command{
	Use:   "widen",
	Short: "Level-by-level tutoring conversations",
	Long:  "Widen is a tutoring service that walks a learner through one topic with questions of increasing depth, from recall to creation.",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "Path to SQLite database file (overrides WIDEN_DB env var)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(topicCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(versionCmd)
}

// resolveDBPath returns the database path using --db flag (highest priority),
// then WIDEN_DB env var, then the default XDG path.
func resolveDBPath(cmd *cobra.Command) (string, error) {
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		return p, store.EnsureDir(p)
	}
	return store.DefaultDBPath()
}

func openStore(cmd *cobra.Command) (*store.Store, error) {
	dbPath, err := resolveDBPath(cmd)
	if err != nil {
		return nil, fmt.Errorf("resolve DB path: %w", err)
	}
	s, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return s, nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// deps bundles everything the long-running commands wire together.
type deps struct {
	store    *store.Store
	memory   *memory.Memory
	engine   *progression.Engine
	pipeline *report.Pipeline
	metrics  *observability.Metrics
	logger   *slog.Logger
}

// buildDeps opens the store and constructs the engine stack. The topic
// source and metrics registry vary per command.
func buildDeps(cmd *cobra.Command, source topics.Source, reg prometheus.Registerer, logger *slog.Logger) (*deps, error) {
	s, err := openStore(cmd)
	if err != nil {
		return nil, err
	}

	provider, err := llm.NewProviderFromEnv(cmd.Context())
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("LLM provider not configured: %w", err)
	}

	mem := memory.New(s)
	metrics := observability.NewMetrics("widen", reg)
	provider = observability.InstrumentProvider(provider, metrics)
	if source == nil {
		source = topics.NewStoreSource(s)
	}

	pipeline := report.New(provider, s, report.DefaultConfig(), logger)
	engine := progression.New(
		s,
		mem,
		source,
		question.New(provider, question.DefaultConfig()),
		evaluate.New(provider, evaluate.DefaultConfig(), logger),
		pipeline,
		metrics,
		logger,
	)

	return &deps{
		store:    s,
		memory:   mem,
		engine:   engine,
		pipeline: pipeline,
		metrics:  metrics,
		logger:   logger,
	}, nil
}
