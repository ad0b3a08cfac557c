package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/abhisek/widen/internal/progression"
	"github.com/abhisek/widen/internal/question"
	"github.com/abhisek/widen/internal/store"
	"github.com/abhisek/widen/internal/topics"
)

type startChatRequest struct {
	Topic string `json:"topic"`
}

type chatResponseRequest struct {
	SessionID string `json:"session_id"`
	Answer    string `json:"answer"`
}

type endChatRequest struct {
	SessionID string `json:"session_id"`
}

type historyTurn struct {
	Speaker   string    `json:"speaker"`
	Content   string    `json:"content"`
	Seq       int64     `json:"seq"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Server) handleStartChat(w http.ResponseWriter, r *http.Request) {
	var req startChatRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	out, err := s.engine.Start(r.Context(), strings.TrimSpace(req.Topic), userID(r))
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, out)
}

func (s *Server) handleChatResponse(w http.ResponseWriter, r *http.Request) {
	var req chatResponseRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	req.SessionID = strings.TrimSpace(req.SessionID)
	if req.SessionID == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "session_id is required")
		return
	}
	if strings.TrimSpace(req.Answer) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "answer is required")
		return
	}

	out, err := s.engine.Respond(r.Context(), req.SessionID, req.Answer)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleEndChat(w http.ResponseWriter, r *http.Request) {
	var req endChatRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.SessionID) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "session_id is required")
		return
	}

	sum, err := s.engine.End(r.Context(), strings.TrimSpace(req.SessionID))
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sum)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	turns, err := s.engine.History(r.Context(), sessionID)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}

	out := make([]historyTurn, 0, len(turns))
	for _, t := range turns {
		out = append(out, historyTurn{
			Speaker:   string(t.Speaker),
			Content:   t.Content,
			Seq:       t.Seq,
			CreatedAt: t.CreatedAt,
		})
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"session_id": sessionID,
		"turns":      out,
	})
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	rep, err := s.reports.BySession(r.Context(), sessionID)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rep)
}

// respondEngineError maps domain errors onto HTTP statuses.
func (s *Server) respondEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, topics.ErrNoTopic):
		respondError(w, http.StatusServiceUnavailable, "no_topic", "No topic is configured for today.")
	case errors.Is(err, store.ErrNotFound):
		respondError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, progression.ErrSessionCompleted):
		respondError(w, http.StatusConflict, "session_completed", "This session has already finished.")
	case errors.Is(err, question.ErrGeneration):
		respondError(w, http.StatusBadGateway, "generation_failed", "Question generation is unavailable right now.")
	default:
		s.logger.Error("request failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "Something went wrong.")
	}
}
