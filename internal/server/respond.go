package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"swcat/internal/catalog"
)

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encoding response", "error", err)
	}
}

// respondError maps catalog errors onto HTTP statuses: ErrNotFound is a
// 404, everything else a 500. Validation failures use respondBadRequest.
func (s *Server) respondError(w http.ResponseWriter, err error) {
	if errors.Is(err, catalog.ErrNotFound) {
		s.respondJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
		return
	}
	s.logger.Error("request failed", "error", err)
	s.respondJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
}

func (s *Server) respondBadRequest(w http.ResponseWriter, msg string) {
	s.respondJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
}
