package persona

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/king-app/king/backend/internal/model/persona"
	"github.com/king-app/king/backend/pkg/utils"
)

// Handler serves the persona catalog.
type Handler struct {
	personas persona.Store
}

// New creates a persona handler.
func New(personas persona.Store) *Handler {
	return &Handler{
		personas: personas,
	}
}

// RegisterRoutes mounts the catalog route.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/chat/personas", h.handleListPersonas)
}

func (h *Handler) handleListPersonas(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.personas.List())
}
