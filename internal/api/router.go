package api

import (
	"net/http"

	"github.com/ashureev/firstprinciples/internal/identity"
	"github.com/ashureev/firstprinciples/internal/middleware"
	"github.com/ashureev/firstprinciples/internal/sessions"
	"github.com/ashureev/firstprinciples/internal/store"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// RouterConfig holds the dependencies of the HTTP surface.
type RouterConfig struct {
	Repo           store.Repository
	Registry       *sessions.Registry
	Model          string
	Transitions    TransitionObserver
	RateLimiter    *middleware.RateLimiter
	OnRateLimited  func()
	AllowedOrigins []string
	IsDevelopment  bool
	// Metrics serves /metrics when set.
	Metrics http.Handler
	// Static serves every unmatched path when set.
	Static http.Handler
	// RequestLogging enables chi's request logger.
	RequestLogging bool
}

// NewRouter builds the chi router with global middleware and all routes.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	if cfg.RequestLogging {
		r.Use(chiMiddleware.Logger)
	}
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	// Public routes.
	NewHealthHandler(cfg.Repo).RegisterHealth(r)
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics)
	}

	// Everything else carries an anonymous identity.
	r.Group(func(r chi.Router) {
		r.Use(identity.Middleware(cfg.Repo, cfg.IsDevelopment))

		var submit []func(http.Handler) http.Handler
		if cfg.RateLimiter != nil {
			submit = append(submit, middleware.RateLimit(cfg.RateLimiter, cfg.OnRateLimited))
		}
		NewWizardHandler(cfg.Registry, cfg.Model, cfg.Transitions).RegisterRoutes(r, submit...)
		NewReportsHandler(cfg.Repo).RegisterRoutes(r)

		if cfg.Static != nil {
			r.Handle("/*", cfg.Static)
		}
	})

	return r
}
