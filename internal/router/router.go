package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lavandera/api/internal/config"
	"github.com/lavandera/api/internal/database"
	"github.com/lavandera/api/internal/handler"
	"github.com/lavandera/api/internal/inventory"
	mw "github.com/lavandera/api/internal/middleware"
	"github.com/lavandera/api/internal/notify"
	"github.com/lavandera/api/internal/service"
	"github.com/lavandera/api/internal/ws"
)

// New creates a Chi router with all application routes wired up.
// Authentication and role capability checks are applied per route group.
func New(cfg *config.Config, queries *database.Queries, pool *pgxpool.Pool, hub *ws.Hub, mailer *notify.Mailer) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "https://pos.lavandera.app", "https://app.lavandera.app"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","version":"1.0.0"}`))
	})

	// Auth routes (public)
	authHandler := handler.NewAuthHandler(queries, cfg.JWTSecret, mailer)
	authHandler.RegisterRoutes(r)

	// WebSocket order board (handles auth internally via query param)
	r.Get("/ws/orders", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, w, r)
	})

	// Protected routes (require authentication; per-route capability checks
	// live in each handler's RegisterRoutes)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		// Orders: creation, fulfillment transitions, teardown
		orderService := service.NewOrderService(pool, func(db database.DBTX) service.OrderStore {
			return database.New(db)
		})
		transitionService := service.NewTransitionService(pool, func(db database.DBTX) service.TransitionStore {
			return database.New(db)
		})
		orderHandler := handler.NewOrderHandler(orderService, transitionService, queries)
		r.Route("/orders", orderHandler.RegisterRoutes)

		// Inventory ledger
		inventoryHandler := handler.NewInventoryHandler(queries, pool, func(db database.DBTX) inventory.Store {
			return database.New(db)
		})
		r.Route("/inventory", inventoryHandler.RegisterRoutes)

		productHandler := handler.NewProductHandler(queries)
		r.Route("/products", productHandler.RegisterRoutes)

		customerHandler := handler.NewCustomerHandler(queries)
		r.Route("/customers", customerHandler.RegisterRoutes)

		staffHandler := handler.NewStaffHandler(queries)
		r.Route("/staff", staffHandler.RegisterRoutes)

		analyticsHandler := handler.NewAnalyticsHandler(queries)
		r.Route("/analytics", analyticsHandler.RegisterRoutes)
	})

	return r
}
