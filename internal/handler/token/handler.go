package token

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/king-app/king/backend/internal/auth"
	"github.com/king-app/king/backend/internal/handler/apierr"
	"github.com/king-app/king/backend/internal/middleware"
	"github.com/king-app/king/backend/pkg/utils"
)

// Refresher exchanges refresh tokens.
type Refresher interface {
	Refresh(refreshToken string) (string, error)
}

// Handler serves the token refresh endpoint. It runs without an access
// token, the refresh token is the credential.
type Handler struct {
	tokens Refresher
}

// New creates a token handler.
func New(tokens Refresher) *Handler {
	return &Handler{tokens: tokens}
}

// RegisterRoutes mounts the refresh route.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/user/token-refresh", h.handleRefresh)
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.RefreshToken == "" {
		utils.RespondError(w, http.StatusBadRequest, "refreshToken is required")
		return
	}

	access, err := h.tokens.Refresh(payload.RefreshToken)
	if err != nil {
		middleware.LoggerFromContext(r.Context()).Warn("refresh rejected", "err", err)
		apierr.Write(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{
		"accessToken": access,
		"type":        auth.TypeAccess,
	})
}
