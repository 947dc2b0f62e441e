package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	corslib "github.com/rs/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/albapepper/matchday/internal/api/auth"
	"github.com/albapepper/matchday/internal/api/handler"
	"github.com/albapepper/matchday/internal/config"
)

// NewRouter creates and configures the Chi router with all middleware and routes.
func NewRouter(deps handler.Deps, verifier *auth.Verifier, cfg *config.Config) *chi.Mux {
	r := chi.NewRouter()

	// --- Middleware stack ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(TimingMiddleware)
	r.Use(middleware.Compress(5)) // gzip

	// CORS
	c := corslib.New(corslib.Options{
		AllowedOrigins:   cfg.CORSAllowOrigins,
		AllowedMethods:   []string{"GET", "POST", "HEAD", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Accept-Encoding", "Authorization", "Content-Type", "If-None-Match", "Cache-Control"},
		ExposedHeaders:   []string{"X-Process-Time", "X-Cache", "ETag"},
		AllowCredentials: false,
	})
	r.Use(c.Handler)

	// Rate limiting
	if cfg.RateLimitEnabled {
		r.Use(RateLimitMiddleware(cfg.RateLimitRequests, cfg.RateLimitWindow))
	}

	// --- Handler dependencies ---
	h := handler.New(deps)

	// --- Routes ---

	// Root
	r.Get("/", h.Root)

	// Health checks
	r.Route("/health", func(r chi.Router) {
		r.Get("/", h.HealthCheck)
		r.Get("/db", h.HealthCheckDB)
		r.Get("/cache", h.HealthCheckCache)
	})

	// Swagger UI
	r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL("/docs/doc.json")))

	// Public match views
	r.Route("/partidos/{id}", func(r chi.Router) {
		r.Get("/marcador", h.GetScoreboard)
		r.Get("/en-vivo", h.LiveFeed)
	})

	// Referee console
	r.Route("/arbitro/partidos", func(r chi.Router) {
		r.Use(verifier.Middleware)
		r.Get("/", h.ListMatches)
		r.Route("/{id}", func(r chi.Router) {
			r.Post("/iniciar", h.StartMatch)
			r.Post("/pausar", h.PauseMatch)
			r.Post("/reanudar", h.ResumeMatch)
			r.Post("/finalizar", h.FinalizeMatch)
			r.Get("/eventos", h.ListEvents)
			r.Post("/eventos", h.RecordEvent)
		})
	})

	// Operations
	r.Route("/admin", func(r chi.Router) {
		r.Use(verifier.Middleware)
		r.Use(auth.RequireRole(auth.RoleAdmin))
		r.Post("/sweep", h.RunSweep)
	})

	return r
}
