package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/garnizeh/empleo/internal/workflow"
)

func writeJSON(w http.ResponseWriter, v any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("encode response", "err", err)
	}
}

// writeWorkflowError maps the workflow error taxonomy to HTTP statuses.
// Validation and authorization messages are surfaced verbatim; anything
// unrecognized is an internal failure and stays opaque.
func writeWorkflowError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, workflow.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, workflow.ErrUnauthorized):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, workflow.ErrInvalidTransition), errors.Is(err, workflow.ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		logger.Error("workflow operation failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
