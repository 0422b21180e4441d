package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/devrank/devrank/pkg/logger"
)

type resetRequest struct {
	ExecutedBy string `json:"executed_by"`
	// Date optionally pins the new cutoff; empty means now.
	Date string `json:"date"`
}

// handleReset wipes all contribution stats and scores while preserving
// identities, and appends one audit entry.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request body"})
		return
	}
	if req.ExecutedBy == "" {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "executed_by is required"})
		return
	}

	var at time.Time
	if req.Date != "" {
		parsed, err := time.Parse(time.RFC3339, req.Date)
		if err != nil {
			s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "date must be RFC 3339"})
			return
		}
		at = parsed
	}

	entry, err := s.deps.Reset(r.Context(), req.ExecutedBy, at)
	if err != nil {
		s.log.Error(r.Context(), "reset failed", logger.Error(err))
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, entry)
}

// handleResetHistory serves the reset audit log, newest first.
func (s *Server) handleResetHistory(w http.ResponseWriter, r *http.Request) {
	history, err := s.deps.ResetHistory(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, history)
}
