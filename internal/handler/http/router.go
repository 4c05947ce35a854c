package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/storefront/internal/guard"
	"github.com/utafrali/storefront/internal/session"
	"github.com/utafrali/storefront/pkg/health"
	"github.com/utafrali/storefront/pkg/middleware"
)

// RouterConfig holds the wiring knobs for the HTTP surface.
type RouterConfig struct {
	ServiceName        string
	Environment        string
	CORSAllowedOrigins []string
	Session            SessionConfig
}

// NewRouter assembles the gateway's routes and middleware stack.
func NewRouter(cfg RouterConfig, reg *session.Registry, api StoreAPI, healthHandler *health.Handler, l *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(l))
	r.Use(middleware.RequestLogging(l))
	r.Use(middleware.PrometheusMetrics(cfg.ServiceName))
	r.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Environment:    cfg.Environment,
	}))

	r.Get("/healthz", healthHandler.LivenessHandler())
	r.Get("/readyz", healthHandler.ReadinessHandler())
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	authHandler := NewAuthHandler(reg, l)
	storeHandler := NewStorefrontHandler(api, l)

	r.Group(func(r chi.Router) {
		r.Use(SessionContext(reg, cfg.Session, l))

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Post("/verify", authHandler.Verify)
			r.Post("/resend", authHandler.Resend)
			r.Post("/login", authHandler.Login)
			r.Post("/logout", authHandler.Logout)
			r.Post("/refresh", authHandler.Refresh)
			r.Get("/session", authHandler.Session)
			r.With(guard.RequireSession(l)).Get("/profile", storeHandler.Profile)
		})

		// Catalog browsing needs no session.
		r.Group(func(r chi.Router) {
			r.Use(guard.AllowGuest)
			r.Get("/products", storeHandler.ListProducts)
			r.Get("/products/{id}", storeHandler.GetProduct)
			r.Get("/categories", storeHandler.Categories)
			r.Get("/countries", storeHandler.Countries)
		})

		r.Group(func(r chi.Router) {
			r.Use(guard.RequireSession(l))
			r.Get("/orders", storeHandler.ListOrders)
			r.Post("/orders", storeHandler.CreateOrder)
			r.Post("/checkout", storeHandler.Checkout)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(guard.RequireSession(l))
			r.Use(guard.RequirePermission(session.GroupManageProduct, l))
			r.Post("/products", storeHandler.CreateProduct)
		})
	})

	return r
}
