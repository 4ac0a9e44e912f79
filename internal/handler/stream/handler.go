package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/king-app/king/backend/internal/auth"
	"github.com/king-app/king/backend/internal/handler/apierr"
	"github.com/king-app/king/backend/internal/middleware"
	"github.com/king-app/king/backend/internal/model/persona"
	chatService "github.com/king-app/king/backend/internal/service/chat"
	"github.com/king-app/king/backend/pkg/utils"
)

// Replier starts a streamed reply.
type Replier interface {
	StreamReply(ctx context.Context, userID int64, message string, p persona.Persona) (*chatService.ReplyStream, error)
}

// Handler delivers replies as Server-Sent Events.
type Handler struct {
	replier  Replier
	personas persona.Store
	validate *validator.Validate
}

// New creates a stream handler.
func New(replier Replier, personas persona.Store) *Handler {
	return &Handler{
		replier:  replier,
		personas: personas,
		validate: validator.New(),
	}
}

// StreamResponse is one SSE frame.
type StreamResponse struct {
	Event     string `json:"event"`
	Content   string `json:"content,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	Finished  bool   `json:"finished,omitempty"`
	Error     string `json:"error,omitempty"`
}

type streamRequest struct {
	Message string `json:"message" validate:"required"`
}

// RegisterRoutes mounts the SSE endpoints.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat/{persona}/stream", h.handlePost)
	r.Get("/chat/{persona}/stream", h.handleGet)
}

func (h *Handler) handlePost(w http.ResponseWriter, r *http.Request) {
	var req streamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.serve(w, r, req)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, streamRequest{Message: r.URL.Query().Get("message")})
}

func (h *Handler) serve(w http.ResponseWriter, r *http.Request, req streamRequest) {
	logger := middleware.LoggerFromContext(r.Context())

	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "accessToken is invalid")
		return
	}
	if err := h.validate.Struct(req); err != nil || strings.TrimSpace(req.Message) == "" {
		utils.RespondError(w, http.StatusBadRequest, "message is required")
		return
	}
	p, err := resolvePersona(h.personas, chi.URLParam(r, "persona"))
	if err != nil {
		apierr.Write(w, err)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	rs, err := h.replier.StreamReply(r.Context(), identity.UserID, req.Message, p)
	if err != nil {
		logger.Warn("stream not started", "err", err)
		apierr.Write(w, err)
		return
	}
	defer rs.Close()

	// From here on failures are content, never an HTTP error.
	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)

	send := func(frame StreamResponse) bool {
		frame.SessionID = rs.SessionID()
		if err := utils.SendSSEChunk(w, flusher, frame); err != nil {
			logger.Info("client went away", "err", err)
			return false
		}
		return true
	}

	if !send(StreamResponse{Event: "start", Content: p.Name}) {
		return
	}
	for {
		fragment, err := rs.Recv()
		if errors.Is(err, io.EOF) {
			send(StreamResponse{Event: "end", Finished: true})
			return
		}
		if err != nil {
			logger.Info("stream cancelled", "err", err)
			return
		}
		if !send(StreamResponse{Event: "delta", Content: fragment}) {
			return
		}
	}
}

// resolvePersona finds the persona named in the URL.
func resolvePersona(personas persona.Store, id string) (persona.Persona, error) {
	p, ok := personas.FindByID(id)
	if !ok {
		return persona.Persona{}, fmt.Errorf("%w: unknown persona %q", chatService.ErrInvalidInput, id)
	}
	return p, nil
}
