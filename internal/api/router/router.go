package router

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/telehealth-coordination/internal/availability"
	httpmiddleware "github.com/wolfman30/telehealth-coordination/internal/http/middleware"
	"github.com/wolfman30/telehealth-coordination/internal/http/respond"
	"github.com/wolfman30/telehealth-coordination/internal/search"
	"github.com/wolfman30/telehealth-coordination/internal/shifts"
	"github.com/wolfman30/telehealth-coordination/internal/waitlist"
	"github.com/wolfman30/telehealth-coordination/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	Search             *search.Handler
	Availability       *availability.Handler
	Shifts             *shifts.Handler
	Waitlist           *waitlist.Handler
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
	InternalJWTSecret  string

	// SearchLimiter throttles the search endpoint per client when set.
	SearchLimiter *httpmiddleware.RateLimiter

	// HealthCheck reports dependency health. Nil means always healthy.
	HealthCheck func(ctx context.Context) error
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}

	r.Get("/health", health(cfg.HealthCheck))
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Route("/api", func(api chi.Router) {
		api.Use(middleware.Timeout(15 * time.Second))
		if cfg.Search != nil {
			api.Group(func(g chi.Router) {
				if cfg.SearchLimiter != nil {
					g.Use(httpmiddleware.RateLimit(cfg.SearchLimiter))
				}
				cfg.Search.RegisterRoutes(g)
			})
		}
		if cfg.Availability != nil {
			cfg.Availability.RegisterRoutes(api)
		}
		if cfg.Shifts != nil {
			cfg.Shifts.RegisterRoutes(api)
		}
		if cfg.Waitlist != nil {
			cfg.Waitlist.RegisterRoutes(api)
		}
	})

	// Scheduler triggers
	if cfg.Waitlist != nil {
		r.Route("/internal", func(internal chi.Router) {
			internal.Use(httpmiddleware.InternalJWT(cfg.InternalJWTSecret))
			cfg.Waitlist.RegisterInternalRoutes(internal)
		})
	}

	return r
}

func health(check func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := check(ctx); err != nil {
				respond.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "error": err.Error()})
				return
			}
		}
		respond.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
