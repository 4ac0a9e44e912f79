package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/king-app/king/backend/internal/auth"
	"github.com/king-app/king/backend/internal/handler/history"
	"github.com/king-app/king/backend/internal/handler/persona"
	"github.com/king-app/king/backend/internal/handler/stream"
	"github.com/king-app/king/backend/internal/handler/token"
	middlewarePkg "github.com/king-app/king/backend/internal/middleware"
	personaModel "github.com/king-app/king/backend/internal/model/persona"
	chatService "github.com/king-app/king/backend/internal/service/chat"
	"github.com/king-app/king/backend/pkg/utils"
)

// Dependencies are the services the HTTP layer talks to.
type Dependencies struct {
	Personas personaModel.Store
	Pipeline *chatService.Pipeline
	Chat     *chatService.Service
	Tokens   *auth.TokenService
	// Limiter throttles the streaming endpoints. Nil disables it.
	Limiter middlewarePkg.Limiter
	// Gatherer serves /metrics. Nil uses the default registry.
	Gatherer prometheus.Gatherer
	Logger   *slog.Logger
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Dependencies) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)
	r.Use(middlewarePkg.RequestLogger(logger))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	personaHandler := persona.New(deps.Personas)
	historyHandler := history.New(deps.Chat)
	streamHandler := stream.New(deps.Pipeline, deps.Personas)
	wsHandler := stream.NewWebSocketHandler(deps.Pipeline, deps.Personas, deps.Tokens)
	tokenHandler := token.New(deps.Tokens)

	r.Route("/api", func(api chi.Router) {
		api.Use(middlewarePkg.Authenticate(deps.Tokens))

		tokenHandler.RegisterRoutes(api)
		personaHandler.RegisterRoutes(api)
		historyHandler.RegisterRoutes(api)

		api.Group(func(limited chi.Router) {
			limited.Use(middlewarePkg.RateLimit(deps.Limiter))
			streamHandler.RegisterRoutes(limited)
			wsHandler.RegisterRoutes(limited)
		})
	})

	return r
}
