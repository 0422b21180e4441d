// Package api exposes the engine over HTTP: the ranking surface, per-user
// stats, refresh triggers and the administrative reset.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/devrank/devrank/internal/app"
	"github.com/devrank/devrank/internal/domain/model"
	"github.com/devrank/devrank/pkg/logger"
)

// Dependencies bundles everything the handlers need from the application
// layer.
type Dependencies interface {
	RegisterUser(ctx context.Context, id model.Identity) error
	RefreshUser(ctx context.Context, username string) error
	RefreshAll(ctx context.Context) (app.RefreshSummary, error)
	Reset(ctx context.Context, executedBy string, at time.Time) (model.ResetEntry, error)
	ResetHistory(ctx context.Context) ([]model.ResetEntry, error)
	Ranking(ctx context.Context) ([]model.RankingRow, error)
	Rank(ctx context.Context, username string) (model.RankingRow, error)
	Stats(ctx context.Context, username string) (app.UserStats, error)
	GetStats(ctx context.Context) (map[string]any, error)
}

// Server owns the HTTP mux and its handlers.
type Server struct {
	deps Dependencies
	log  logger.Logger
}

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// NewServer creates the API server over its application dependencies.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{deps: deps}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.Get().Named("api")
	}
	return s
}

// Register mounts every route on the mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.Handle("GET /api/ranking", s.instrument("ranking", s.handleRanking))
	mux.Handle("GET /api/users/{username}/rank", s.instrument("rank", s.handleRank))
	mux.Handle("GET /api/users/{username}/stats", s.instrument("stats", s.handleStats))
	mux.Handle("POST /api/users", s.instrument("register_user", s.handleRegisterUser))
	mux.Handle("POST /api/users/{username}/refresh", s.instrument("refresh_user", s.handleRefreshUser))
	mux.Handle("POST /api/refresh", s.instrument("refresh_all", s.handleRefreshAll))
	mux.Handle("POST /api/reset", s.instrument("reset", s.handleReset))
	mux.Handle("GET /api/reset/history", s.instrument("reset_history", s.handleResetHistory))
	mux.Handle("GET /api/stats", s.instrument("engine_stats", s.handleEngineStats))
	mux.Handle("GET /healthz", s.instrument("health", s.handleHealth))
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Error(context.Background(), "encode response failed", logger.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, app.ErrUserNotFound):
		status = http.StatusNotFound
	case errors.Is(err, app.ErrRefreshBusy):
		status = http.StatusConflict
	}
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}
