package router

import (
	"tillbridge-pos-agent/internal/handler"
	"tillbridge-pos-agent/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

// Config holds the configuration for creating a router.
type Config struct {
	Handler     *handler.Handler
	POSHandler  *handler.POSHandler
	SyncHandler *handler.SyncHandler
}

// New creates and configures the local HTTP router. The surface is
// LAN-local: the register UI is the only expected caller, so there is no
// auth layer here — the backend credential lives in the agent's config and
// never reaches the register.
func New(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware stack (applies to ALL routes)
	r.Use(middleware.Recovery)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Status badge endpoint (polled by the register UI)
	if cfg.SyncHandler != nil {
		r.Get("/api/status", cfg.SyncHandler.Status)
	}

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.Handler != nil {
			r.Get("/health", cfg.Handler.Health)
			r.Get("/ready", cfg.Handler.Ready)
		}

		if cfg.POSHandler != nil {
			r.Route("/stores/{store_id}", func(r chi.Router) {
				r.Post("/sales", cfg.POSHandler.CreateSale)
				r.Get("/products", cfg.POSHandler.ListProducts)
				r.Get("/products/{product_id}", cfg.POSHandler.GetProduct)
				r.Post("/products/refresh", cfg.POSHandler.RefreshCache)
			})
		}

		if cfg.SyncHandler != nil {
			r.Route("/sync", func(r chi.Router) {
				r.Get("/queue", cfg.SyncHandler.Queue)
				r.Delete("/queue", cfg.SyncHandler.ClearAll)
				r.Delete("/queue/{operation_id}", cfg.SyncHandler.RemoveOperation)
				r.Post("/now", cfg.SyncHandler.SyncNow)
				r.Delete("/failed", cfg.SyncHandler.ClearFailed)
			})
		}
	})

	return r
}
