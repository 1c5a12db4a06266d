package router

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"clinicsync/internal/handler"
	"clinicsync/internal/middleware"
)

// Config holds the configuration for creating a router.
type Config struct {
	StatusHandler       *handler.StatusHandler
	AvailabilityHandler *handler.AvailabilityHandler
	SyncHandler         *handler.SyncHandler
	Logger              *zap.Logger
}

// New creates and configures the HTTP router for the local status API.
func New(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(cfg.Logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.StatusHandler != nil {
			r.Get("/health", cfg.StatusHandler.Health)
			r.Get("/status", cfg.StatusHandler.Status)
		}

		if cfg.AvailabilityHandler != nil {
			r.Get("/availability/{professionalID}", cfg.AvailabilityHandler.Compute)
		}

		if cfg.SyncHandler != nil {
			r.Post("/mutations/{entityType}", cfg.SyncHandler.Submit)
			r.Post("/sync/{entityType}", cfg.SyncHandler.Replay)
		}
	})

	return r
}
