package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/nikhilbhutani/docrag/internal/api/handlers"
	"github.com/nikhilbhutani/docrag/internal/api/middleware"
	"github.com/nikhilbhutani/docrag/internal/auth"
	"github.com/nikhilbhutani/docrag/internal/config"
	"github.com/nikhilbhutani/docrag/internal/document"
	"github.com/nikhilbhutani/docrag/internal/rag"
	"github.com/nikhilbhutani/docrag/internal/session"
)

type Router struct {
	mux       *chi.Mux
	redis     *redis.Client
	cfg       *config.Config
	sessions  *session.Registry
	pipeline  *rag.Pipeline
	extractor document.TextExtractor
}

// NewRouter takes a nil redis client when no cache is configured.
func NewRouter(cfg *config.Config, rdb *redis.Client, sessions *session.Registry, p *rag.Pipeline, ex document.TextExtractor) *Router {
	return &Router{
		mux:       chi.NewRouter(),
		redis:     rdb,
		cfg:       cfg,
		sessions:  sessions,
		pipeline:  p,
		extractor: ex,
	}
}

func (rt *Router) Setup() http.Handler {
	r := rt.mux

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(rt.cfg.Server.CORSOrigins))

	if rt.cfg.Server.RateLimit > 0 {
		rl := middleware.NewRateLimiter(rt.cfg.Server.RateLimit, rt.cfg.Server.RateBurst)
		r.Use(rl.Limit)
	}

	// Health endpoints (no auth)
	health := handlers.NewHealthHandler(rt.redis, rt.sessions)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	r.Route("/api/v1", func(r chi.Router) {
		// Auth: try API key first, then JWT
		if rt.cfg.Auth.Enabled() {
			rt.useAuth(r, rt.cfg.Auth)
		}

		sessH := handlers.NewSessionHandler(rt.sessions, rt.pipeline, rt.extractor, rt.cfg.Server.MaxUploadBytes)
		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", sessH.Create)
			r.Get("/", sessH.List)
			r.Get("/{id}", sessH.Get)
			r.Delete("/{id}", sessH.Delete)
			r.Put("/{id}/document", sessH.ReplaceDocument)
			r.Post("/{id}/query", sessH.Query)
			r.Post("/{id}/search", sessH.Search)
		})
	})

	return r
}

func (rt *Router) useAuth(r chi.Router, cfg config.AuthConfig) {
	if len(cfg.APIKeys) > 0 {
		r.Use(auth.NewAPIKeyMiddleware(cfg.APIKeyHeader, cfg.APIKeys).Authenticate)
	}
	if cfg.JWTSecret != "" {
		r.Use(auth.NewJWTMiddleware(cfg.JWTSecret).Authenticate)
	}
	r.Use(auth.Require)
}
