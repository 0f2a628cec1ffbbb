package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dungnx/chathist/internal/llm"
	"github.com/dungnx/chathist/store"

	pkgerrors "github.com/pkg/errors"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// writeError maps domain errors onto HTTP statuses. Unknown errors
// surface as 500 with a generic body so internals never leak.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var providerErr *llm.ProviderError
	switch {
	case pkgerrors.Is(err, store.ErrValidation):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case pkgerrors.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case pkgerrors.Is(err, store.ErrConflict):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case pkgerrors.Is(err, store.ErrUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "Service temporarily unavailable"})
	case pkgerrors.As(err, &providerErr):
		logger.Error("provider request failed", "error", err)
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "Failed to get response from provider"})
	default:
		logger.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Internal server error"})
	}
}

// splitPath breaks "/api/conversations/3/messages" into its non-empty
// segments.
func splitPath(path string) []string {
	var parts []string
	for _, part := range strings.Split(path, "/") {
		if part != "" {
			parts = append(parts, part)
		}
	}
	return parts
}
