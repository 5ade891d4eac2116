// Package http exposes the agent over a JSON REST surface.
package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	eventagent "github.com/epicstage/Event-agent-backend-kr-sub004"
	"github.com/epicstage/Event-agent-backend-kr-sub004/pkg/domain"
	"github.com/epicstage/Event-agent-backend-kr-sub004/pkg/executor"
)

// Server routes HTTP requests to the agent.
type Server struct {
	agent    *eventagent.Agent
	registry *prometheus.Registry
}

// Option configures the Server.
type Option func(*Server)

// WithMetricsRegistry exposes the registry on GET /metrics.
func WithMetricsRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) {
		s.registry = reg
	}
}

// NewHandler builds the HTTP handler for the agent.
func NewHandler(agent *eventagent.Agent, opts ...Option) http.Handler {
	s := &Server{agent: agent}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Post("/ask", s.ask)
	r.Post("/ask/route", s.route)
	r.Post("/ask/execute", s.execute)

	r.Get("/confirmations", s.listConfirmations)
	r.Get("/confirmations/{id}", s.getConfirmation)
	r.Post("/confirmations/{id}/approve", s.approve)
	r.Post("/confirmations/{id}/deny", s.deny)

	r.Get("/sessions/{id}", s.getSession)
	r.Patch("/sessions/{id}/preferences", s.updatePreferences)
	r.Get("/sessions/{id}/frustration", s.frustration)
	r.Delete("/sessions/{id}", s.deleteSession)

	r.Get("/healthz", s.health)
	if s.registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}
	return r
}

// Out-of-scope questions get a localized guidance message and a few starter
// suggestions instead of a bare empty decision.
const (
	outOfScopeMessageKo = "저는 이벤트 전문 에이전트입니다. 해당 질문은 답변 범위를 벗어납니다. 이벤트 기획, 전략, 재무 관련 질문을 해주세요."
	outOfScopeMessageEn = "I am an Event Management AI Agent. This question is outside my scope. Please ask about event planning, strategy, or financial management."
)

var outOfScopeSuggestions = []string{
	"이벤트 목표를 설정해주세요",
	"예산 구조를 설계해볼까요?",
	"이해관계자를 분석해보시겠어요?",
}

type askRequest struct {
	SessionID string         `json:"session_id,omitempty"`
	Query     string         `json:"query"`
	Input     map[string]any `json:"input,omitempty"`
}

type executeRequest struct {
	SessionID string         `json:"session_id,omitempty"`
	HandlerID string         `json:"handler_id,omitempty"`
	Query     string         `json:"query,omitempty"`
	Input     map[string]any `json:"input,omitempty"`
}

type decisionRequest struct {
	DecidedBy string `json:"decided_by"`
}

func (s *Server) ask(w http.ResponseWriter, r *http.Request) {
	var body askRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.Query == "" {
		http.Error(w, "query is required", http.StatusBadRequest)
		return
	}

	result, err := s.agent.Ask(r.Context(), eventagent.AskRequest{
		SessionID: body.SessionID,
		Query:     body.Query,
		Input:     body.Input,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if result.Decision != nil && result.Decision.DecisionReason == domain.ReasonNoMatch {
		writeJSON(w, http.StatusOK, map[string]any{
			"session_id":  result.SessionID,
			"decision":    result.Decision,
			"message":     outOfScopeMessageKo,
			"message_en":  outOfScopeMessageEn,
			"suggestions": outOfScopeSuggestions,
		})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) route(w http.ResponseWriter, r *http.Request) {
	var body askRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.Query == "" {
		http.Error(w, "query is required", http.StatusBadRequest)
		return
	}

	decision, err := s.agent.Route(r.Context(), body.Query, body.SessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	if decision.DecisionReason == domain.ReasonNoMatch {
		writeJSON(w, http.StatusOK, map[string]any{
			"decision":    decision,
			"message":     outOfScopeMessageKo,
			"message_en":  outOfScopeMessageEn,
			"suggestions": outOfScopeSuggestions,
		})
		return
	}
	writeJSON(w, http.StatusOK, decision)
}

func (s *Server) execute(w http.ResponseWriter, r *http.Request) {
	var body executeRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.HandlerID == "" && body.Query == "" {
		http.Error(w, "handler_id or query is required", http.StatusBadRequest)
		return
	}

	var outcome *executor.Outcome
	var err error
	if body.HandlerID != "" {
		outcome, err = s.agent.Execute(r.Context(), body.HandlerID, body.Input, body.SessionID)
	} else {
		outcome, err = s.agent.ExecuteQuery(r.Context(), body.Query, body.Input, body.SessionID)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	status := http.StatusOK
	if outcome.Confirmation != nil {
		// The action is parked awaiting approval, not executed.
		status = http.StatusAccepted
	}
	writeJSON(w, status, outcome)
}

func (s *Server) listConfirmations(w http.ResponseWriter, r *http.Request) {
	pending, err := s.agent.PendingConfirmations(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pending": pending})
}

func (s *Server) getConfirmation(w http.ResponseWriter, r *http.Request) {
	c, err := s.agent.Confirmation(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

type approveResponse struct {
	Confirmation *domain.PendingConfirmation `json:"confirmation"`
	Outcome      any                         `json:"outcome,omitempty"`
}

func (s *Server) approve(w http.ResponseWriter, r *http.Request) {
	var body decisionRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	c, outcome, err := s.agent.Approve(r.Context(), chi.URLParam(r, "id"), body.DecidedBy)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := approveResponse{Confirmation: c}
	if outcome != nil {
		resp.Outcome = outcome
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) deny(w http.ResponseWriter, r *http.Request) {
	var body decisionRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	c, err := s.agent.Deny(r.Context(), chi.URLParam(r, "id"), body.DecidedBy)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	sc, err := s.agent.Session(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sc)
}

func (s *Server) updatePreferences(w http.ResponseWriter, r *http.Request) {
	var patch domain.PreferencePatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	sc, err := s.agent.UpdatePreferences(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sc)
}

func (s *Server) frustration(w http.ResponseWriter, r *http.Request) {
	level, signals := s.agent.Frustration(r.Context(), chi.URLParam(r, "id"))
	writeJSON(w, http.StatusOK, map[string]any{
		"level":   level,
		"signals": signals,
	})
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.agent.DeleteSession(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	stats := s.agent.Catalog().Stats()
	domains := make(map[string]int, len(stats))
	for d, n := range stats {
		domains[string(d)] = n
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"handlers": s.agent.Catalog().Len(),
		"domains":  domains,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors to HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	var invalid *domain.InvalidInputError
	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &invalid):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrAmbiguous):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrHandlerNotFound),
		errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrConfirmationNotFound):
		status = http.StatusNotFound
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
