package question

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/abhisek/widen/internal/llm"
)

func TestGenerate(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{
		Content: json.RawMessage(`{"question":"What year did the controls take effect?"}`),
	})
	g := New(mock, DefaultConfig())

	got, err := g.Generate(context.Background(), GenerateInput{
		Topic:        "semiconductor export controls",
		TopicContext: "In October 2022 the rules were expanded.",
		Level:        LevelRecall,
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if got != "What year did the controls take effect?" {
		t.Errorf("question = %q", got)
	}

	req := mock.Calls[0]
	if req.Schema != QuestionSchema {
		t.Error("request did not carry the question schema")
	}
	if !strings.Contains(req.System, "structural or social element") {
		t.Error("rubric missing the structural/social grounding rule")
	}
	msg := req.Messages[0].Content
	for _, want := range []string{"Topic: semiconductor export controls", "Level: 1 (recall)", "Background material:"} {
		if !strings.Contains(msg, want) {
			t.Errorf("prompt missing %q:\n%s", want, msg)
		}
	}
	if strings.Contains(msg, "Conversation so far:") {
		t.Error("prompt should omit history section when history is empty")
	}
}

func TestGenerateIncludesHistory(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{
		Content: json.RawMessage(`{"question":"How would you explain that in your own words?"}`),
	})
	g := New(mock, DefaultConfig())

	_, err := g.Generate(context.Background(), GenerateInput{
		Topic:   "semiconductor export controls",
		Level:   LevelComprehension,
		History: "assistant: What year?\nlearner: 2022.",
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !strings.Contains(mock.Calls[0].Messages[0].Content, "learner: 2022.") {
		t.Error("prompt missing conversation history")
	}
}

func TestGenerateSurfacesProviderFailure(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{
		Err: &llm.ErrProviderUnavailable{},
	})
	g := New(mock, DefaultConfig())

	_, err := g.Generate(context.Background(), GenerateInput{Topic: "t", Level: LevelRecall})
	if !errors.Is(err, ErrGeneration) {
		t.Fatalf("err = %v, want ErrGeneration", err)
	}
}

func TestGenerateRejectsBadOutput(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"not json", `ask them something nice`},
		{"empty question", `{"question":"   "}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := llm.NewMockProvider(llm.MockResponse{Content: json.RawMessage(tt.content)})
			g := New(mock, DefaultConfig())
			_, err := g.Generate(context.Background(), GenerateInput{Topic: "t", Level: LevelRecall})
			if !errors.Is(err, ErrGeneration) {
				t.Fatalf("err = %v, want ErrGeneration", err)
			}
		})
	}
}

func TestGenerateRejectsInvalidLevel(t *testing.T) {
	g := New(llm.NewMockProvider(), DefaultConfig())
	for _, level := range []int{0, 7, -1} {
		if _, err := g.Generate(context.Background(), GenerateInput{Topic: "t", Level: level}); !errors.Is(err, ErrGeneration) {
			t.Errorf("level %d: err = %v, want ErrGeneration", level, err)
		}
	}
}

func TestLevelNames(t *testing.T) {
	want := map[int]string{1: "recall", 2: "comprehension", 3: "application", 4: "analysis", 5: "evaluation", 6: "creation"}
	for level, name := range want {
		if got := LevelName(level); got != name {
			t.Errorf("LevelName(%d) = %q, want %q", level, got, name)
		}
		if !ValidLevel(level) {
			t.Errorf("ValidLevel(%d) = false", level)
		}
	}
	if ValidLevel(0) || ValidLevel(7) {
		t.Error("levels outside 1..6 must be invalid")
	}
}
