package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/freshbulk/freshbulk-backend/api/controllers"
	"github.com/freshbulk/freshbulk-backend/api/middleware"
	"github.com/freshbulk/freshbulk-backend/internal/auth"
	"github.com/freshbulk/freshbulk-backend/internal/checkout"
	"github.com/freshbulk/freshbulk-backend/internal/orders"
	product "github.com/freshbulk/freshbulk-backend/internal/products"
	"github.com/freshbulk/freshbulk-backend/pkg/config"
	"github.com/freshbulk/freshbulk-backend/pkg/enums"
	"github.com/freshbulk/freshbulk-backend/pkg/logger"
	pkgredis "github.com/freshbulk/freshbulk-backend/pkg/redis"
)

// RateLimiter is the Redis surface the auth rate limit needs.
type RateLimiter interface {
	pkgredis.IdempotencyStore
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// Deps carries everything the HTTP surface is built from.
type Deps struct {
	Config   *config.Config
	Logger   *logger.Logger
	Pingers  map[string]controllers.Pinger
	Redis    RateLimiter
	Gatherer prometheus.Gatherer

	Auth     auth.Service
	Products product.Service
	Checkout checkout.Service
	Orders   orders.Service
}

func NewRouter(deps Deps) http.Handler {
	cfg, logg := deps.Config, deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		chimw.RealIP,
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Pingers))
	})
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	loginPolicy := middleware.NewAuthRateLimitPolicy("login", cfg.AuthRateLimit.LoginWindow, cfg.AuthRateLimit.LoginLimit)
	registerPolicy := middleware.NewAuthRateLimitPolicy("register", cfg.AuthRateLimit.RegisterWindow, cfg.AuthRateLimit.RegisterLimit)

	authn := middleware.Auth(cfg.JWT, logg)
	buyerOnly := middleware.RequireRole(logg, enums.RoleBuyer)
	vendorOnly := middleware.RequireRole(logg, enums.RoleVendor)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(middleware.AuthRateLimit(registerPolicy, deps.Redis, logg)).Post("/register", controllers.AuthRegister(deps.Auth, logg))
			r.With(middleware.AuthRateLimit(loginPolicy, deps.Redis, logg)).Post("/login", controllers.AuthLogin(deps.Auth, logg))
			r.With(authn).Get("/me", controllers.AuthMe(deps.Auth, logg))
		})

		r.Get("/products", controllers.ListProducts(deps.Products, logg))
		r.Get("/products/{productId}", controllers.GetProduct(deps.Products, logg))

		r.Group(func(r chi.Router) {
			r.Use(authn, middleware.Idempotency(deps.Redis, logg))

			r.Route("/checkout", func(r chi.Router) {
				r.Use(buyerOnly)
				r.Post("/preview", controllers.CheckoutPreview(deps.Checkout, logg))
				r.Post("/sessions", controllers.CheckoutCreateSession(deps.Checkout, logg))
				r.Post("/sessions/{sessionId}/confirm", controllers.CheckoutConfirm(deps.Checkout, logg))
			})

			r.With(buyerOnly).Get("/orders/mine", controllers.BuyerListOrders(deps.Orders, logg))
			r.Get("/orders/{orderId}", controllers.GetOrder(deps.Orders, logg))

			r.Route("/vendor", func(r chi.Router) {
				r.Use(vendorOnly)
				r.Get("/products", controllers.VendorListProducts(deps.Products, logg))
				r.Post("/products", controllers.VendorCreateProduct(deps.Products, logg))
				r.Put("/products/{productId}", controllers.VendorUpdateProduct(deps.Products, logg))
				r.Delete("/products/{productId}", controllers.VendorDeleteProduct(deps.Products, logg))
				r.Get("/orders", controllers.VendorListOrders(deps.Orders, logg))
				r.Patch("/orders/{orderId}/status", controllers.VendorUpdateOrderStatus(deps.Orders, logg))
			})
		})
	})

	return r
}
