// Package httpapi exposes the tutoring engine over HTTP.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/abhisek/widen/internal/observability"
	"github.com/abhisek/widen/internal/progression"
	"github.com/abhisek/widen/internal/report"
)

// userIDHeader carries the caller identity. Authentication happens upstream;
// the service treats the id as opaque.
const userIDHeader = "X-User-ID"

var errEmptyBody = errors.New("request body is empty")

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type Server struct {
	engine  *progression.Engine
	reports *report.Pipeline
	logger  *slog.Logger
}

// New creates a Server. A nil logger falls back to slog.Default.
func New(engine *progression.Engine, reports *report.Pipeline, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{engine: engine, reports: reports, logger: logger}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/chat/start", s.handleStartChat)
	r.Post("/chat/response", s.handleChatResponse)
	r.Post("/chat/end", s.handleEndChat)
	r.Get("/chat/history/{sessionID}", s.handleHistory)
	r.Get("/report/{sessionID}", s.handleGetReport)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func userID(r *http.Request) string {
	id := strings.TrimSpace(r.Header.Get(userIDHeader))
	if id == "" {
		return "anonymous"
	}
	return id
}

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
