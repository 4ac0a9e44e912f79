package stream

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/king-app/king/backend/internal/handler/apierr"
	"github.com/king-app/king/backend/internal/middleware"
	"github.com/king-app/king/backend/internal/model/persona"
	"github.com/king-app/king/backend/pkg/utils"
)

const writeWait = 10 * time.Second

// WebSocketHandler delivers replies over a WebSocket. Browsers cannot set
// headers on the upgrade request, so the access token travels in the
// "token" query parameter.
type WebSocketHandler struct {
	replier  Replier
	personas persona.Store
	tokens   middleware.Authenticator
	upgrader websocket.Upgrader
}

// NewWebSocketHandler creates the WebSocket delivery channel.
func NewWebSocketHandler(replier Replier, personas persona.Store, tokens middleware.Authenticator) *WebSocketHandler {
	return &WebSocketHandler{
		replier:  replier,
		personas: personas,
		tokens:   tokens,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes mounts the WebSocket endpoint under /ws.
func (h *WebSocketHandler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/chat/{persona}", h.handleWebSocket)
}

type inboundMessage struct {
	Message string `json:"message"`
}

func (h *WebSocketHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	logger := middleware.LoggerFromContext(r.Context())

	identity, err := h.tokens.Authenticate(r.URL.Query().Get("token"))
	if err != nil {
		utils.RespondError(w, http.StatusUnauthorized, "accessToken is invalid")
		return
	}
	p, err := resolvePersona(h.personas, chi.URLParam(r, "persona"))
	if err != nil {
		apierr.Write(w, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	inbound := make(chan inboundMessage)
	go func() {
		defer cancel()
		defer close(inbound)
		for {
			var msg inboundMessage
			if err := conn.ReadJSON(&msg); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Info("websocket read ended", "err", err)
				}
				return
			}
			select {
			case inbound <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()

	write := func(frame StreamResponse) error {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(frame)
	}

	for msg := range inbound {
		if strings.TrimSpace(msg.Message) == "" {
			if err := write(StreamResponse{Event: "error", Error: "message is required"}); err != nil {
				return
			}
			continue
		}
		if err := h.reply(ctx, identity.UserID, msg.Message, p, write); err != nil {
			logger.Info("websocket closed during reply", "err", err)
			return
		}
	}
}

// reply streams one answer. It returns an error only when the connection
// is no longer usable.
func (h *WebSocketHandler) reply(ctx context.Context, userID int64, message string, p persona.Persona, write func(StreamResponse) error) error {
	rs, err := h.replier.StreamReply(ctx, userID, message, p)
	if err != nil {
		middleware.LoggerFromContext(ctx).Warn("websocket reply rejected", "err", err)
		return write(StreamResponse{Event: "error", Error: apierr.Message(err)})
	}
	defer rs.Close()

	if err := write(StreamResponse{Event: "start", SessionID: rs.SessionID(), Content: p.Name}); err != nil {
		return err
	}
	for {
		fragment, err := rs.Recv()
		if errors.Is(err, io.EOF) {
			return write(StreamResponse{Event: "end", SessionID: rs.SessionID(), Finished: true})
		}
		if err != nil {
			return err
		}
		if err := write(StreamResponse{Event: "delta", SessionID: rs.SessionID(), Content: fragment}); err != nil {
			return err
		}
	}
}
