// Package question generates tutoring questions along a six-level ladder
// from recall to creation.
package question

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/abhisek/widen/internal/llm"
)

// ErrGeneration marks a failed generation. There is no local fallback: a
// fabricated question would poison the whole session, so callers surface
// the failure instead.
var ErrGeneration = errors.New("question generation failed")

const systemPrompt = `You are a tutor leading a learner through one topic with a ladder of six question levels: recall, comprehension, application, analysis, evaluation, creation.

Rules:
- Produce exactly one question at the requested level. Do not answer it, do not add preamble.
- Ground the question in the topic and, when provided, the background material. Never require facts that are in neither.
- The question must touch at least one structural or social element of the topic: a conflict, a power structure, competing interests, or the wider social context.
- Keep it conversational and answerable in a few sentences of free text. No multiple choice, no lists of sub-questions.
- When conversation history is provided, build on it and never repeat a question already asked.
- Write in the language the learner has been using.`

// Config holds generator tuning.
type Config struct {
	MaxTokens   int
	Temperature float64
}

// DefaultConfig returns the generator defaults.
func DefaultConfig() Config {
	return Config{MaxTokens: 1024, Temperature: 0.7}
}

// GenerateInput carries everything a question is conditioned on.
type GenerateInput struct {
	Topic        string
	TopicContext string
	Level        int
	History      string
}

// Generator produces questions with an LLM.
type Generator struct {
	provider llm.Provider
	config   Config
}

func New(provider llm.Provider, cfg Config) *Generator {
	return &Generator{provider: provider, config: cfg}
}

type questionOutput struct {
	Question string `json:"question"`
}

// Generate produces one question for the given level. Provider and parse
// failures are wrapped in ErrGeneration.
func (g *Generator) Generate(ctx context.Context, input GenerateInput) (string, error) {
	if !ValidLevel(input.Level) {
		return "", fmt.Errorf("%w: level %d out of range", ErrGeneration, input.Level)
	}

	ctx = llm.WithPurpose(ctx, "question-gen")

	req := llm.Request{
		System: systemPrompt,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: buildUserMessage(input)},
		},
		Schema:      QuestionSchema,
		MaxTokens:   g.config.MaxTokens,
		Temperature: g.config.Temperature,
	}

	resp, err := g.provider.Generate(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGeneration, err)
	}

	var raw questionOutput
	if err := json.Unmarshal(resp.Content, &raw); err != nil {
		return "", fmt.Errorf("%w: parse response: %v", ErrGeneration, err)
	}
	if strings.TrimSpace(raw.Question) == "" {
		return "", fmt.Errorf("%w: empty question", ErrGeneration)
	}

	return strings.TrimSpace(raw.Question), nil
}

func buildUserMessage(input GenerateInput) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Topic: %s\n", input.Topic)
	fmt.Fprintf(&b, "Level: %d (%s)\n", input.Level, LevelName(input.Level))
	fmt.Fprintf(&b, "The learner must: %s\n", LevelDemand(input.Level))
	fmt.Fprintf(&b, "Guidance: %s\n", levelGuidance(input.Level))

	if input.TopicContext != "" {
		b.WriteString("\nBackground material:\n")
		b.WriteString(input.TopicContext)
		b.WriteByte('\n')
	}

	if input.History != "" {
		b.WriteString("\nConversation so far:\n")
		b.WriteString(input.History)
		b.WriteByte('\n')
	}

	return b.String()
}
