package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/talentlink/assistant/cmd/assistant-api/handlers"
	"github.com/talentlink/assistant/cmd/assistant-api/middleware"
	"github.com/talentlink/assistant/internal/app"
	"github.com/talentlink/assistant/internal/observability"
)

// RouterConfig holds the HTTP-level settings of the router.
type RouterConfig struct {
	RequestTimeout time.Duration
	AllowedOrigins []string
	ResponseField  string
	MaxBodyBytes   int64
	ServiceName    string
}

// NewRouter creates the API router with all routes configured.
func NewRouter(logger *observability.Logger, a *app.App, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestContext)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	if cfg.RequestTimeout > 0 {
		r.Use(chimiddleware.Timeout(cfg.RequestTimeout))
	}

	health := handlers.NewHealthHandler(cfg.ServiceName, handlers.ReadinessProbe{
		AIEnabled:         a.Primary.Enabled,
		AIReady:           a.Primary.Ready,
		KnowledgeLoaded:   a.Knowledge.Loaded,
		KnowledgeRequired: a.Config.Knowledge.Required,
		Sections:          a.Index.Len(),
	})
	r.Get("/health", health.Health)
	r.Get("/ready", health.Ready)

	if a.Metrics != nil {
		r.Handle("/metrics", a.Metrics.Handler())
	}

	chatHandler := handlers.NewChatHandler(logger, a.Service, a.Index, cfg.ResponseField, cfg.MaxBodyBytes)
	r.Post("/api/chat", chatHandler.Chat)
	r.Get("/api/chat/sections", chatHandler.Sections)

	return r
}
