package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/carebridge/leadflow/internal/models"
)

// startRequest is the payload for opening the intake widget.
type startRequest struct {
	VisitorToken string `json:"visitor_token"`
}

// submitRequest is the payload for one step submission. StepID is the step
// the client computed the input against; a mismatch with the persisted
// current step is rejected as stale.
type submitRequest struct {
	SessionID string `json:"session_id"`
	StepID    string `json:"step_id"`
	Input     string `json:"input"`
}

func (s *Server) startHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, models.Error("method not allowed"))
		return
	}
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.Error("invalid JSON body"))
		return
	}
	if req.VisitorToken == "" {
		writeJSON(w, http.StatusBadRequest, models.Error("visitor_token is required"))
		return
	}

	result, err := s.controller.Start(r.Context(), req.VisitorToken)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.Success(result))
}

func (s *Server) submitHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, models.Error("method not allowed"))
		return
	}
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.Error("invalid JSON body"))
		return
	}
	if req.SessionID == "" || req.StepID == "" {
		writeJSON(w, http.StatusBadRequest, models.Error("session_id and step_id are required"))
		return
	}

	result, err := s.controller.Submit(r.Context(), req.SessionID, req.StepID, req.Input)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.Success(result))
}

// sessionHandler returns the active session and transcript for a visitor
// token without creating one, for widgets that poll before rendering.
func (s *Server) sessionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, models.Error("method not allowed"))
		return
	}
	token := r.URL.Query().Get("visitor_token")
	if token == "" {
		writeJSON(w, http.StatusBadRequest, models.Error("visitor_token is required"))
		return
	}

	session, err := s.store.FindActiveSessionByToken(token)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if session == nil {
		writeJSON(w, http.StatusNotFound, models.Error("no active session"))
		return
	}
	transcript, err := s.store.ListMessages(session.ID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.Success(map[string]interface{}{
		"session":    session,
		"transcript": transcript,
	}))
}

func (s *Server) leadHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, models.Error("method not allowed"))
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/leads/")
	if id == "" || strings.Contains(id, "/") {
		writeJSON(w, http.StatusBadRequest, models.Error("lead id is required"))
		return
	}

	lead, err := s.store.GetLead(id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if lead == nil {
		writeJSON(w, http.StatusNotFound, models.Error("lead not found"))
		return
	}
	writeJSON(w, http.StatusOK, models.Success(lead))
}

func writeJSON(w http.ResponseWriter, status int, body models.APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Failed to encode API response", "error", err)
	}
}
