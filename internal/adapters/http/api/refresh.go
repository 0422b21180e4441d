package api

import (
	"encoding/json"
	"net/http"

	"github.com/devrank/devrank/internal/domain/model"
	"github.com/devrank/devrank/pkg/logger"
)

type registerUserRequest struct {
	Username  string `json:"username"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
	Email     string `json:"email"`
	Accounts  map[string]struct {
		Username    string `json:"username"`
		AccessToken string `json:"access_token"`
	} `json:"accounts"`
}

// handleRegisterUser creates or replaces a user's identity record.
func (s *Server) handleRegisterUser(w http.ResponseWriter, r *http.Request) {
	var req registerUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request body"})
		return
	}
	if req.Username == "" {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "username is required"})
		return
	}

	id := model.Identity{
		Username:  req.Username,
		Name:      req.Name,
		AvatarURL: req.AvatarURL,
		Email:     req.Email,
	}
	if len(req.Accounts) > 0 {
		id.Accounts = make(map[string]model.Account, len(req.Accounts))
		for platform, acct := range req.Accounts {
			id.Accounts[platform] = model.Account{
				Username:    acct.Username,
				AccessToken: acct.AccessToken,
			}
		}
	}

	if err := s.deps.RegisterUser(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, id)
}

// handleRefreshUser re-acquires one user's contributions now.
func (s *Server) handleRefreshUser(w http.ResponseWriter, r *http.Request) {
	username := r.PathValue("username")
	if err := s.deps.RefreshUser(r.Context(), username); err != nil {
		s.log.Error(r.Context(), "user refresh failed",
			logger.String("username", username), logger.Error(err))
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "refreshed", "username": username})
}

// handleRefreshAll refreshes every registered user in batches.
func (s *Server) handleRefreshAll(w http.ResponseWriter, r *http.Request) {
	summary, err := s.deps.RefreshAll(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, summary)
}
