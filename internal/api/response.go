package api

import (
	"errors"
	"net/http"

	"github.com/carebridge/leadflow/internal/models"
)

// writeEngineError maps the engine's typed errors to HTTP status codes.
// Stale submissions are a conflict the client resolves by refetching state;
// persistence and lead-creation failures are retryable server-side faults.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrStaleTransition):
		writeJSON(w, http.StatusConflict, models.Error("submission is stale; refetch the current session state"))
	case errors.Is(err, models.ErrSessionCompleted):
		writeJSON(w, http.StatusConflict, models.Error("session is already completed"))
	case errors.Is(err, models.ErrSessionNotFound):
		writeJSON(w, http.StatusNotFound, models.Error("session not found"))
	case errors.Is(err, models.ErrLeadCreation):
		writeJSON(w, http.StatusBadGateway, models.Error("we couldn't submit your information; please try again"))
	case errors.Is(err, models.ErrPersistence):
		writeJSON(w, http.StatusServiceUnavailable, models.Error("temporarily unavailable; please retry"))
	default:
		writeJSON(w, http.StatusInternalServerError, models.Error("internal error"))
	}
}
