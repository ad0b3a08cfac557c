package progression

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/abhisek/widen/internal/evaluate"
	"github.com/abhisek/widen/internal/llm"
	"github.com/abhisek/widen/internal/memory"
	"github.com/abhisek/widen/internal/observability"
	"github.com/abhisek/widen/internal/question"
	"github.com/abhisek/widen/internal/report"
	"github.com/abhisek/widen/internal/store"
	"github.com/abhisek/widen/internal/topics"
)

const reportJSON = `{"summary":"s","strengths":[],"weaknesses":[],"suggestions":[],"revised_answer":"r"}`

func questionJSON(text string) llm.MockResponse {
	content, _ := json.Marshal(map[string]string{"question": text})
	return llm.MockResponse{Content: content}
}

func verdictJSON(appropriate, help bool, hint string) llm.MockResponse {
	content, _ := json.Marshal(map[string]any{
		"is_appropriate":      appropriate,
		"feedback":            "feedback text",
		"is_looking_for_help": help,
		"hint":                hint,
	})
	return llm.MockResponse{Content: content}
}

type testEnv struct {
	engine *Engine
	store  *store.Store
	genLLM *llm.MockProvider
	evaLLM *llm.MockProvider
	repLLM *llm.MockProvider
}

func newTestEnv(t *testing.T, source topics.Source) *testEnv {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "progression-test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	if source == nil {
		source = topics.NewStaticSource("export controls", "background material")
	}

	genLLM := llm.NewMockProvider()
	evaLLM := llm.NewMockProvider()
	repLLM := llm.NewMockProvider()

	mem := memory.New(s)
	metrics := observability.NewMetrics("widen_test", prometheus.NewRegistry())
	engine := New(
		s,
		mem,
		source,
		question.New(genLLM, question.DefaultConfig()),
		evaluate.New(evaLLM, evaluate.DefaultConfig(), nil),
		report.New(repLLM, s, report.DefaultConfig(), nil),
		metrics,
		nil,
	)
	return &testEnv{engine: engine, store: s, genLLM: genLLM, evaLLM: evaLLM, repLLM: repLLM}
}

func TestStart(t *testing.T) {
	env := newTestEnv(t, nil)
	env.genLLM.AddResponse(questionJSON("What happened in 2022?"))

	out, err := env.engine.Start(context.Background(), "", "user-1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if out.Level != 1 || out.Completed {
		t.Errorf("outcome = %+v", out)
	}
	if out.Question != "What happened in 2022?" {
		t.Errorf("question = %q", out.Question)
	}
	if !strings.Contains(out.Message, "export controls") || !strings.Contains(out.Message, out.Question) {
		t.Errorf("message = %q", out.Message)
	}

	sess, err := env.store.GetSession(context.Background(), out.SessionID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if sess.CurrentLevel != 1 || sess.UserID != "user-1" {
		t.Errorf("session = %+v", sess)
	}

	open, err := env.store.OpenQuestion(context.Background(), out.SessionID)
	if err != nil {
		t.Fatalf("open question: %v", err)
	}
	if open.Level != 1 || open.Prompt != out.Question {
		t.Errorf("open question = %+v", open)
	}

	turns, err := env.engine.History(context.Background(), out.SessionID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(turns) != 1 || turns[0].Speaker != store.SpeakerAssistant {
		t.Errorf("turns = %+v", turns)
	}
}

func TestStartExplicitTopicBeatsSource(t *testing.T) {
	env := newTestEnv(t, topics.NewStaticSource("daily topic", ""))
	env.genLLM.AddResponse(questionJSON("q"))

	out, err := env.engine.Start(context.Background(), "my own topic", "user-1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if out.Topic != "my own topic" {
		t.Errorf("topic = %q", out.Topic)
	}
}

func TestStartNoTopic(t *testing.T) {
	env := newTestEnv(t, topics.NewStaticSource("", ""))
	if _, err := env.engine.Start(context.Background(), "", "user-1"); !errors.Is(err, topics.ErrNoTopic) {
		t.Fatalf("err = %v, want ErrNoTopic", err)
	}
}

func TestStartSurfacesGenerationFailure(t *testing.T) {
	env := newTestEnv(t, nil)
	env.genLLM.AddResponse(llm.MockResponse{Err: &llm.ErrProviderUnavailable{}})

	if _, err := env.engine.Start(context.Background(), "", "user-1"); !errors.Is(err, question.ErrGeneration) {
		t.Fatalf("err = %v, want ErrGeneration", err)
	}
}

func TestRespondAdvancesOnAppropriateAnswer(t *testing.T) {
	env := newTestEnv(t, nil)
	env.genLLM.AddResponse(questionJSON("level 1 question"))
	out, err := env.engine.Start(context.Background(), "", "user-1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	env.evaLLM.AddResponse(verdictJSON(true, false, ""))
	env.genLLM.AddResponse(questionJSON("level 2 question"))

	out2, err := env.engine.Respond(context.Background(), out.SessionID, "a solid answer")
	if err != nil {
		t.Fatalf("respond: %v", err)
	}
	if out2.Level != 2 || out2.Question != "level 2 question" || out2.Completed {
		t.Errorf("outcome = %+v", out2)
	}

	// The level-2 prompt was conditioned on the conversation so far.
	genReq := env.genLLM.Calls[1].Messages[0].Content
	if !strings.Contains(genReq, "a solid answer") {
		t.Errorf("next-question prompt missing history:\n%s", genReq)
	}

	sess, _ := env.store.GetSession(context.Background(), out.SessionID)
	if sess.CurrentLevel != 2 {
		t.Errorf("stored level = %d", sess.CurrentLevel)
	}

	qs, _ := env.store.QuestionsBySession(context.Background(), out.SessionID)
	if len(qs) != 2 || !qs[0].Answered || qs[0].Answer != "a solid answer" {
		t.Errorf("questions = %+v", qs)
	}
}

func TestRespondRetriesLevelOnInappropriateAnswer(t *testing.T) {
	env := newTestEnv(t, nil)
	env.genLLM.AddResponse(questionJSON("level 1 question"))
	out, err := env.engine.Start(context.Background(), "", "user-1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	env.evaLLM.AddResponse(verdictJSON(false, false, "think about the year"))

	out2, err := env.engine.Respond(context.Background(), out.SessionID, "something off topic")
	if err != nil {
		t.Fatalf("respond: %v", err)
	}
	if out2.Level != 1 {
		t.Errorf("level = %d, want unchanged 1", out2.Level)
	}
	if out2.Question != "level 1 question" {
		t.Errorf("question = %q, want same prompt back", out2.Question)
	}
	// The nudge carries the feedback, not the hint or the prompt.
	if !strings.Contains(out2.Message, "feedback text") {
		t.Errorf("message missing feedback: %q", out2.Message)
	}
	if strings.Contains(out2.Message, "think about the year") {
		t.Errorf("message should not carry the hint: %q", out2.Message)
	}
	// The question is never regenerated on a retry.
	if env.genLLM.CallCount() != 1 {
		t.Errorf("generator called %d times, want 1", env.genLLM.CallCount())
	}

	// The off-target answer is still on record.
	qs, _ := env.store.QuestionsBySession(context.Background(), out.SessionID)
	if len(qs) != 2 || !qs[0].Answered || qs[0].Answer != "something off topic" {
		t.Errorf("questions = %+v", qs)
	}
	if qs[1].Level != 1 || qs[1].Answered {
		t.Errorf("retry question = %+v", qs[1])
	}
}

func TestRespondReissuesSamePromptWhenSeekingHelp(t *testing.T) {
	env := newTestEnv(t, nil)
	env.genLLM.AddResponse(questionJSON("level 1 question"))
	out, err := env.engine.Start(context.Background(), "", "user-1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	env.evaLLM.AddResponse(verdictJSON(false, true, "start with what changed in 2022"))

	out2, err := env.engine.Respond(context.Background(), out.SessionID, "can you give me a hint?")
	if err != nil {
		t.Fatalf("respond: %v", err)
	}
	if out2.Question != "level 1 question" {
		t.Errorf("question = %q, want same prompt back", out2.Question)
	}
	// A help request gets exactly the hint back.
	if out2.Message != "start with what changed in 2022" {
		t.Errorf("message = %q, want the hint alone", out2.Message)
	}
	// No generator call for a help request.
	if env.genLLM.CallCount() != 1 {
		t.Errorf("generator called %d times, want 1", env.genLLM.CallCount())
	}
	// The session stays answerable.
	if _, err := env.store.OpenQuestion(context.Background(), out.SessionID); err != nil {
		t.Fatalf("session left without an open question: %v", err)
	}
}

// walkToLevel answers appropriately until the session sits at the given level.
func walkToLevel(t *testing.T, env *testEnv, sessionID string, level int) {
	t.Helper()
	for l := 1; l < level; l++ {
		env.evaLLM.AddResponse(verdictJSON(true, false, ""))
		env.genLLM.AddResponse(questionJSON(fmt.Sprintf("level %d question", l+1)))
		if _, err := env.engine.Respond(context.Background(), sessionID, fmt.Sprintf("answer %d", l)); err != nil {
			t.Fatalf("respond at level %d: %v", l, err)
		}
	}
}

func TestFullLadderCompletesAndReports(t *testing.T) {
	env := newTestEnv(t, nil)
	env.genLLM.AddResponse(questionJSON("level 1 question"))
	out, err := env.engine.Start(context.Background(), "", "user-1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	walkToLevel(t, env, out.SessionID, 6)

	env.evaLLM.AddResponse(verdictJSON(true, false, ""))
	env.repLLM.AddResponse(llm.MockResponse{Content: json.RawMessage(reportJSON)})

	final, err := env.engine.Respond(context.Background(), out.SessionID, "a creative final answer")
	if err != nil {
		t.Fatalf("final respond: %v", err)
	}
	if !final.Completed {
		t.Fatal("session should be completed")
	}
	if final.Report == nil || final.Report.Level != 6 {
		t.Fatalf("report = %+v", final.Report)
	}

	sess, _ := env.store.GetSession(context.Background(), out.SessionID)
	if !sess.Completed {
		t.Error("session not marked completed")
	}

	if _, err := env.engine.Respond(context.Background(), out.SessionID, "more"); !errors.Is(err, ErrSessionCompleted) {
		t.Fatalf("respond after completion: err = %v, want ErrSessionCompleted", err)
	}
}

func TestReportFailureDoesNotUndoCompletion(t *testing.T) {
	env := newTestEnv(t, nil)
	env.genLLM.AddResponse(questionJSON("level 1 question"))
	out, err := env.engine.Start(context.Background(), "", "user-1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	walkToLevel(t, env, out.SessionID, 6)

	env.evaLLM.AddResponse(verdictJSON(true, false, ""))
	env.repLLM.AddResponse(llm.MockResponse{Err: &llm.ErrProviderUnavailable{}})

	final, err := env.engine.Respond(context.Background(), out.SessionID, "final answer")
	if err != nil {
		t.Fatalf("final respond: %v", err)
	}
	if !final.Completed || final.Report != nil {
		t.Errorf("outcome = completed %v report %v", final.Completed, final.Report)
	}

	sess, _ := env.store.GetSession(context.Background(), out.SessionID)
	if !sess.Completed {
		t.Error("completion rolled back by report failure")
	}
}

func TestRespondNoOpenQuestion(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	sess := &store.Session{ID: "manual", UserID: "u", Topic: "t", CurrentLevel: 1, StartedAt: time.Now()}
	if err := env.store.CreateSession(ctx, sess); err != nil {
		t.Fatalf("create session: %v", err)
	}

	if _, err := env.engine.Respond(ctx, "manual", "answer"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v, want store.ErrNotFound", err)
	}
	if _, err := env.engine.Respond(ctx, "missing-session", "answer"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v, want store.ErrNotFound", err)
	}
}

func TestEnd(t *testing.T) {
	env := newTestEnv(t, nil)
	env.genLLM.AddResponse(questionJSON("level 1 question"))
	out, err := env.engine.Start(context.Background(), "", "user-1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	walkToLevel(t, env, out.SessionID, 3)

	sum, err := env.engine.End(context.Background(), out.SessionID)
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if sum.Level != 3 || sum.Questions != 3 || sum.Answered != 2 || !sum.Completed {
		t.Errorf("summary = %+v", sum)
	}
	// Ending does not run the report pipeline.
	if env.repLLM.CallCount() != 0 {
		t.Errorf("report LLM called %d times", env.repLLM.CallCount())
	}

	// Ending again is harmless.
	if _, err := env.engine.End(context.Background(), out.SessionID); err != nil {
		t.Fatalf("second end: %v", err)
	}
}
