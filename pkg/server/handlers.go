package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cexll/promptarch/pkg/architect"
	"github.com/cexll/promptarch/pkg/catalog"
	"github.com/cexll/promptarch/pkg/jsonx"
	"github.com/cexll/promptarch/pkg/model"
	"github.com/cexll/promptarch/pkg/plan"
	"github.com/cexll/promptarch/pkg/selection"
)

type selectRequest struct {
	SessionID    string                `json:"session_id,omitempty"`
	UserRequest  string                `json:"userRequest"`
	Constraints  selection.Constraints `json:"constraints"`
	Capabilities []string              `json:"required_capabilities"`
}

type selectResponse struct {
	SessionID        string                      `json:"session_id"`
	Winner           catalog.Tool                `json:"winner"`
	Auxiliary        []catalog.Tool              `json:"auxiliary_tools"`
	ReasoningSummary string                      `json:"reasoning_summary"`
	Scored           []selection.ScoredCandidate `json:"candidates_scored,omitempty"`
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	out, err := s.orchestrator.Select(r.Context(), architect.SelectInput{
		SessionID:    req.SessionID,
		ClientID:     clientID(r),
		Request:      req.UserRequest,
		Constraints:  req.Constraints,
		Capabilities: req.Capabilities,
	})
	if err != nil {
		s.respondPipelineError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, selectResponse{
		SessionID:        out.SessionID,
		Winner:           out.Winner,
		Auxiliary:        out.Auxiliary,
		ReasoningSummary: out.Result.ReasoningSummary,
		Scored:           out.Result.Scored,
	})
}

type planRequest struct {
	SessionID string `json:"session_id"`
}

type planResponse struct {
	SessionID string    `json:"session_id"`
	Plan      plan.Plan `json:"plan"`
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	var req planRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	out, err := s.orchestrator.Plan(r.Context(), architect.PlanInput{
		SessionID: req.SessionID,
		ClientID:  clientID(r),
	})
	if err != nil {
		s.respondPipelineError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, planResponse{SessionID: out.SessionID, Plan: out.Plan})
}

type reviseRequest struct {
	SessionID   string `json:"session_id"`
	Instruction string `json:"instruction"`
}

func (s *Server) handleRevise(w http.ResponseWriter, r *http.Request) {
	var req reviseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	out, err := s.orchestrator.Revise(r.Context(), architect.ReviseInput{
		SessionID:   req.SessionID,
		ClientID:    clientID(r),
		Instruction: req.Instruction,
	})
	if err != nil {
		s.respondPipelineError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, planResponse{SessionID: out.SessionID, Plan: out.Plan})
}

type chatRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message"`
}

type chatResponse struct {
	SessionID string                 `json:"session_id"`
	Type      string                 `json:"type"`
	Content   string                 `json:"content"`
	Options   []architect.ChatOption `json:"options,omitempty"`
	Selection *selectResponse        `json:"selection,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	out, err := s.orchestrator.Chat(r.Context(), architect.ChatInput{
		SessionID: req.SessionID,
		ClientID:  clientID(r),
		Message:   req.Message,
	})
	if err != nil {
		s.respondPipelineError(w, r, err)
		return
	}

	resp := chatResponse{
		SessionID: out.SessionID,
		Type:      out.Type,
		Content:   out.Content,
		Options:   out.Options,
	}
	if out.Selection != nil {
		resp.Selection = &selectResponse{
			SessionID:        out.Selection.SessionID,
			Winner:           out.Selection.Winner,
			Auxiliary:        out.Selection.Auxiliary,
			ReasoningSummary: out.Selection.Result.ReasoningSummary,
			Scored:           out.Selection.Result.Scored,
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

// respondPipelineError maps the error taxonomy onto the four
// distinguishable HTTP classes. Internal causes are logged, not leaked.
func (s *Server) respondPipelineError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		invalid   *architect.InvalidInputError
		refusal   *architect.SafetyRefusalError
		exhausted *model.ExhaustedError
		parseErr  *jsonx.ParseError
		schemaErr *jsonx.SchemaError
	)

	switch {
	case errors.Is(err, architect.ErrThrottled):
		respondError(w, http.StatusTooManyRequests, "rate limit exceeded", "")
	case errors.As(err, &invalid):
		respondError(w, http.StatusBadRequest, "invalid input", invalid.Field+": "+invalid.Reason)
	case errors.Is(err, architect.ErrNoCandidates):
		respondError(w, http.StatusBadRequest, "no tools satisfy the given constraints", "relax the constraints or capabilities")
	case errors.Is(err, architect.ErrSessionNotFound):
		respondError(w, http.StatusNotFound, "session not found or expired", "")
	case errors.As(err, &refusal):
		respondError(w, http.StatusForbidden, "request refused on safety grounds", refusal.Summary)
	case errors.As(err, &exhausted):
		s.logger.Error("generation exhausted", "path", r.URL.Path, "error", err)
		respondError(w, http.StatusBadGateway, "all generation providers failed", "")
	case errors.As(err, &parseErr), errors.As(err, &schemaErr):
		s.logger.Error("generator output invalid", "path", r.URL.Path, "error", err)
		respondError(w, http.StatusBadGateway, "generator returned an invalid response", "")
	default:
		s.logger.Error("unhandled pipeline error", "path", r.URL.Path, "error", err)
		respondError(w, http.StatusInternalServerError, "internal error", "")
	}
}

type errorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message, details string) {
	respondJSON(w, status, errorBody{Error: message, Details: details})
}
