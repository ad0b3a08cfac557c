package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

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

type testServer struct {
	http   *httptest.Server
	genLLM *llm.MockProvider
	evaLLM *llm.MockProvider
	repLLM *llm.MockProvider
}

func newTestServer(t *testing.T, source topics.Source) *testServer {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "httpapi-test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	if source == nil {
		source = topics.NewStaticSource("export controls", "")
	}

	genLLM := llm.NewMockProvider()
	evaLLM := llm.NewMockProvider()
	repLLM := llm.NewMockProvider()

	pipeline := report.New(repLLM, s, report.DefaultConfig(), nil)
	engine := progression.New(
		s,
		memory.New(s),
		source,
		question.New(genLLM, question.DefaultConfig()),
		evaluate.New(evaLLM, evaluate.DefaultConfig(), nil),
		pipeline,
		observability.NewMetrics("widen_test", prometheus.NewRegistry()),
		nil,
	)

	srv := httptest.NewServer(New(engine, pipeline, nil).Router())
	t.Cleanup(srv.Close)
	return &testServer{http: srv, genLLM: genLLM, evaLLM: evaLLM, repLLM: repLLM}
}

func (ts *testServer) post(t *testing.T, path, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, ts.http.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "user-1")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	return resp, decodeBody(t, resp)
}

func (ts *testServer) get(t *testing.T, path string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Get(ts.http.URL + path)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	return resp, decodeBody(t, resp)
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return body
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, nil)
	resp, body := ts.get(t, "/healthz")
	if resp.StatusCode != http.StatusOK || body["status"] != "ok" {
		t.Errorf("status %d body %v", resp.StatusCode, body)
	}
}

func TestChatFlow(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.genLLM.AddResponse(llm.MockResponse{Content: json.RawMessage(`{"question":"level 1 q"}`)})

	resp, body := ts.post(t, "/chat/start", `{}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("start status %d body %v", resp.StatusCode, body)
	}
	sessionID, _ := body["session_id"].(string)
	if sessionID == "" || body["question"] != "level 1 q" {
		t.Fatalf("start body %v", body)
	}

	ts.evaLLM.AddResponse(llm.MockResponse{Content: json.RawMessage(`{"is_appropriate":true,"feedback":"good","is_looking_for_help":false,"hint":""}`)})
	ts.genLLM.AddResponse(llm.MockResponse{Content: json.RawMessage(`{"question":"level 2 q"}`)})

	resp, body = ts.post(t, "/chat/response", `{"session_id":"`+sessionID+`","answer":"my answer"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("respond status %d body %v", resp.StatusCode, body)
	}
	if body["level"] != float64(2) || body["question"] != "level 2 q" {
		t.Errorf("respond body %v", body)
	}

	resp, body = ts.get(t, "/chat/history/"+sessionID)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("history status %d", resp.StatusCode)
	}
	turns, _ := body["turns"].([]any)
	if len(turns) != 3 {
		t.Errorf("history turns = %d, want 3", len(turns))
	}

	resp, body = ts.post(t, "/chat/end", `{"session_id":"`+sessionID+`"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("end status %d body %v", resp.StatusCode, body)
	}
	if body["completed"] != true || body["answered"] != float64(1) {
		t.Errorf("end body %v", body)
	}
}

func TestStartNoTopic(t *testing.T) {
	ts := newTestServer(t, topics.NewStaticSource("", ""))
	resp, body := ts.post(t, "/chat/start", `{}`)
	if resp.StatusCode != http.StatusServiceUnavailable || body["code"] != "no_topic" {
		t.Errorf("status %d body %v", resp.StatusCode, body)
	}
}

func TestRespondValidation(t *testing.T) {
	ts := newTestServer(t, nil)

	tests := []struct {
		name string
		body string
	}{
		{"missing session", `{"answer":"a"}`},
		{"missing answer", `{"session_id":"x"}`},
		{"empty body", ``},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := ts.post(t, "/chat/response", tt.body)
			if resp.StatusCode != http.StatusBadRequest || body["code"] != "invalid_request" {
				t.Errorf("status %d body %v", resp.StatusCode, body)
			}
		})
	}
}

func TestUnknownSessionIs404(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, body := ts.post(t, "/chat/response", `{"session_id":"missing","answer":"a"}`)
	if resp.StatusCode != http.StatusNotFound || body["code"] != "not_found" {
		t.Errorf("respond: status %d body %v", resp.StatusCode, body)
	}

	resp, _ = ts.get(t, "/chat/history/missing")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("history: status %d", resp.StatusCode)
	}

	resp, _ = ts.get(t, "/report/missing")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("report: status %d", resp.StatusCode)
	}
}

func TestGenerationFailureIs502(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.genLLM.AddResponse(llm.MockResponse{Err: &llm.ErrProviderUnavailable{}})

	resp, body := ts.post(t, "/chat/start", `{}`)
	if resp.StatusCode != http.StatusBadGateway || body["code"] != "generation_failed" {
		t.Errorf("status %d body %v", resp.StatusCode, body)
	}
}
