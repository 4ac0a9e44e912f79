package history

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/king-app/king/backend/internal/auth"
	"github.com/king-app/king/backend/internal/handler/apierr"
	"github.com/king-app/king/backend/internal/middleware"
	"github.com/king-app/king/backend/internal/model/chat"
	chatService "github.com/king-app/king/backend/internal/service/chat"
	"github.com/king-app/king/backend/pkg/utils"
)

// Handler exposes the caller's chat history.
type Handler struct {
	chatSvc *chatService.Service
}

// New creates a history handler.
func New(chatSvc *chatService.Service) *Handler {
	return &Handler{chatSvc: chatSvc}
}

// RegisterRoutes mounts the history routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/chat/history", h.handleList)
	r.Post("/chat/history", h.handleSave)
	r.Delete("/chat/history", h.handleDelete)
}

type turnResponse struct {
	ID        string `json:"id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	Type      string `json:"type"`
	CreatedAt string `json:"createdAt"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "accessToken is invalid")
		return
	}

	turns, err := h.chatSvc.History(r.Context(), identity.UserID)
	if err != nil {
		middleware.LoggerFromContext(r.Context()).Error("load history failed", "err", err)
		apierr.Write(w, err)
		return
	}

	out := make([]turnResponse, 0, len(turns))
	for _, turn := range turns {
		out = append(out, turnResponse{
			ID:        turn.ID,
			Role:      string(turn.Role),
			Content:   turn.Content,
			Type:      string(turn.Kind),
			CreatedAt: turn.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		})
	}
	utils.RespondJSON(w, http.StatusOK, out)
}

func (h *Handler) handleSave(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "accessToken is invalid")
		return
	}

	var payload struct {
		Role    string `json:"role"`
		Content string `json:"content"`
		Type    string `json:"type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.Type == "" {
		payload.Type = string(chat.KindMessage)
	}

	turn := chat.ChatTurn{
		UserID:  identity.UserID,
		Role:    chat.Role(payload.Role),
		Content: payload.Content,
		Kind:    chat.Kind(payload.Type),
	}
	if err := h.chatSvc.Save(r.Context(), turn); err != nil {
		apierr.Write(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, map[string]string{"status": "saved"})
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "accessToken is invalid")
		return
	}
	if err := h.chatSvc.Delete(r.Context(), identity.UserID); err != nil {
		apierr.Write(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
