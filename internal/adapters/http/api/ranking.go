package api

import (
	"net/http"
	"strconv"

	"github.com/devrank/devrank/pkg/logger"
)

// handleRanking serves the ranking, best score first. An optional limit
// query parameter caps the number of rows.
func (s *Server) handleRanking(w http.ResponseWriter, r *http.Request) {
	rows, err := s.deps.Ranking(r.Context())
	if err != nil {
		s.log.Error(r.Context(), "ranking failed", logger.Error(err))
		s.writeError(w, err)
		return
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be a non-negative integer"})
			return
		}
		if limit < len(rows) {
			rows = rows[:limit]
		}
	}
	s.writeJSON(w, http.StatusOK, rows)
}

// handleRank serves one user's ranking row.
func (s *Server) handleRank(w http.ResponseWriter, r *http.Request) {
	username := r.PathValue("username")
	row, err := s.deps.Rank(r.Context(), username)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, row)
}

// handleStats serves one user's identity, per-platform stats and score.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	username := r.PathValue("username")
	stats, err := s.deps.Stats(r.Context(), username)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

// handleEngineStats serves engine-level operational statistics.
func (s *Server) handleEngineStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.deps.GetStats(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}
