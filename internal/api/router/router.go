package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/harborstay/guest-ai-platform/internal/http/handlers"
	httpmiddleware "github.com/harborstay/guest-ai-platform/internal/http/middleware"
	"github.com/harborstay/guest-ai-platform/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	MessageHandler     *handlers.MessageHandler
	ReportsHandler     *handlers.ReportsHandler
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string

	// RateLimitRPS caps per-IP request throughput on tenant routes.
	// Zero disables rate limiting.
	RateLimitRPS   float64
	RateLimitBurst int
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints (health checks, metrics)
	r.Group(func(public chi.Router) {
		public.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"status":"ok"}`))
		})
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	// Tenant-scoped API routes
	r.Group(func(tenant chi.Router) {
		tenant.Use(requireTenantID)
		if cfg.RateLimitRPS > 0 {
			tenant.Use(httpmiddleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))
		}

		if cfg.MessageHandler != nil {
			tenant.Route("/conversations", func(r chi.Router) {
				r.Post("/message", cfg.MessageHandler.Message)
				r.Get("/{conversationID}/state", cfg.MessageHandler.State)
			})
		}

		if cfg.ReportsHandler != nil {
			tenant.Route("/admin/reports", func(r chi.Router) {
				r.Get("/quality", cfg.ReportsHandler.Quality)
				r.Get("/duplicates", cfg.ReportsHandler.Duplicates)
				r.Get("/generic-responses", cfg.ReportsHandler.GenericResponses)
				r.Get("/configuration", cfg.ReportsHandler.Configuration)
			})
		}
	})

	return r
}
