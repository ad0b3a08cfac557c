// Package evaluate judges learner answers against the cognitive demand of
// the question's level.
package evaluate

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/abhisek/widen/internal/llm"
	"github.com/abhisek/widen/internal/question"
)

// Verdict is the outcome of judging one answer.
type Verdict struct {
	Appropriate bool
	Feedback    string
	SeekingHelp bool
	Hint        string
}

// fallbackVerdict is returned whenever the judge itself fails. It keeps the
// learner on the current level with a neutral nudge instead of silently
// advancing them or surfacing an internal error mid-conversation.
var fallbackVerdict = Verdict{
	Appropriate: false,
	Feedback:    "I couldn't quite work with that answer. Let's stay with this question a little longer.",
	SeekingHelp: false,
	Hint:        "Try restating your answer with one concrete detail from the material.",
}

const systemPrompt = `You are judging a learner's answer in a tutoring conversation that climbs six levels of questioning, from factual recall up to original creation.

Rules:
- Judge ONLY whether the answer genuinely engages the question at the required cognitive level. This is not a right/wrong quiz; a thoughtful wrong answer at the right depth is appropriate.
- An answer that dodges the question, is off topic, or is a bare "I don't know" is not appropriate.
- Do not penalize missing citations or sources, facts that may be outdated, or brevity alone. A short answer at the right depth passes.
- If the learner is asking for help, clarification, or signalling they are stuck, set is_looking_for_help true and give a hint instead of a judgement of depth.
- Feedback is addressed directly to the learner, one or two sentences, encouraging but honest.
- When the answer is not appropriate, the hint must point toward what a better answer would contain without giving it away.
- When the answer is appropriate, leave the hint empty.`

// Config holds evaluator tuning.
type Config struct {
	MaxTokens   int
	Temperature float64
}

// DefaultConfig returns the evaluator defaults.
func DefaultConfig() Config {
	return Config{MaxTokens: 1024, Temperature: 0.0}
}

// Evaluator judges answers with an LLM.
type Evaluator struct {
	provider llm.Provider
	config   Config
	logger   *slog.Logger
}

// New creates an Evaluator. A nil logger falls back to slog.Default.
func New(provider llm.Provider, cfg Config, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{provider: provider, config: cfg, logger: logger}
}

// verdictOutput is the raw LLM response before mapping.
type verdictOutput struct {
	IsAppropriate    bool   `json:"is_appropriate"`
	Feedback         string `json:"feedback"`
	IsLookingForHelp bool   `json:"is_looking_for_help"`
	Hint             string `json:"hint"`
}

// Evaluate judges one answer. It never returns an error: any failure in the
// provider or in parsing its output degrades to the fallback verdict, so a
// flaky judge can stall a learner but never crash their session.
func (e *Evaluator) Evaluate(ctx context.Context, q string, level int, answer string) Verdict {
	ctx = llm.WithPurpose(ctx, "answer-eval")

	req := llm.Request{
		System: systemPrompt,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: buildUserMessage(q, level, answer)},
		},
		Schema:      VerdictSchema,
		MaxTokens:   e.config.MaxTokens,
		Temperature: e.config.Temperature,
	}

	resp, err := e.provider.Generate(ctx, req)
	if err != nil {
		e.logger.Warn("answer evaluation degraded to fallback", "level", level, "error", err)
		return fallbackVerdict
	}

	var raw verdictOutput
	if err := json.Unmarshal(stripFences(resp.Content), &raw); err != nil {
		e.logger.Warn("answer evaluation returned unparseable JSON", "level", level, "error", err)
		return fallbackVerdict
	}

	return Verdict{
		Appropriate: raw.IsAppropriate,
		Feedback:    raw.Feedback,
		SeekingHelp: raw.IsLookingForHelp,
		Hint:        raw.Hint,
	}
}

func buildUserMessage(q string, level int, answer string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Level: %d (%s)\n", level, question.LevelName(level))
	fmt.Fprintf(&b, "The answer must: %s\n\n", question.LevelDemand(level))
	fmt.Fprintf(&b, "Question:\n%s\n\n", q)
	fmt.Fprintf(&b, "Learner's answer:\n%s\n", answer)
	return b.String()
}

// stripFences removes a markdown code fence wrapper some models insist on
// adding around JSON output.
func stripFences(raw json.RawMessage) json.RawMessage {
	s := strings.TrimSpace(string(raw))
	if !strings.HasPrefix(s, "```") {
		return raw
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return json.RawMessage(strings.TrimSpace(s))
}
