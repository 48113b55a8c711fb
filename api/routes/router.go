package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/storefront-backend/api/controllers"
	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/internal/auth"
	"github.com/angelmondragon/storefront-backend/internal/categories"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	product "github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/internal/reports"
	"github.com/angelmondragon/storefront-backend/internal/users"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

// Dependencies is everything the HTTP surface needs. Redis may be nil, in
// which case rate limiting and idempotent replay are off.
type Dependencies struct {
	Config *config.Config
	Logger *logger.Logger
	DB     db.Pinger
	Redis  *redis.Client
	Gate   *auth.Gate

	Auth       auth.Service
	Users      users.Service
	Categories categories.Service
	Products   product.Service
	Orders     orders.Service
	Reports    reports.Service

	Metrics  *metrics.HTTPMetrics
	Gatherer prometheus.Gatherer
}

func NewRouter(deps Dependencies) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	var (
		limiter     redis.RateLimiter
		idemStore   redis.IdempotencyStore
		redisPinger redis.Pinger
	)
	if deps.Redis != nil {
		limiter = deps.Redis
		redisPinger = deps.Redis
		if cfg.FeatureFlags.Idempotency {
			idemStore = deps.Redis
		}
	}

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS.AllowedOrigins),
		deps.Metrics.Middleware,
	)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		responses.WriteError(r.Context(), nil, w, pkgerrors.New(pkgerrors.CodeNotFound, "route not found"))
	})

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DB, redisPinger))
	})
	if cfg.Metrics.Enabled && deps.Gatherer != nil {
		r.Handle(cfg.Metrics.Path, promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)
	forgotPolicy := middleware.NewAuthRateLimitPolicy(
		"forgot",
		cfg.AuthRateLimit.ForgotWindow,
		cfg.AuthRateLimit.ForgotIPLimit,
		cfg.AuthRateLimit.ForgotEmailLimit,
	)

	authenticated := middleware.Auth(deps.Gate, logg)
	idempotent := middleware.Idempotency(idemStore, logg)
	adminOnly := middleware.RequireRole(logg, enums.RoleAdmin)
	catalogWriters := middleware.RequireRole(logg, enums.RoleAdmin, enums.RoleMerchant)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(middleware.AuthRateLimit(registerPolicy, limiter, logg), idempotent).Post("/register", controllers.AuthRegister(deps.Auth, logg))
			r.With(middleware.AuthRateLimit(loginPolicy, limiter, logg)).Post("/login", controllers.AuthLogin(deps.Auth, logg))
			r.With(middleware.AuthRateLimit(forgotPolicy, limiter, logg)).Post("/password/forgot", controllers.AuthForgotPassword(deps.Auth, logg))
			r.With(middleware.AuthRateLimit(forgotPolicy, limiter, logg)).Post("/password/reset", controllers.AuthResetPassword(deps.Auth, logg))
			r.With(authenticated).Get("/me", controllers.AuthMe(deps.Auth, logg))
			r.With(authenticated).Put("/password", controllers.AuthChangePassword(deps.Auth, logg))
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(authenticated)
			r.With(adminOnly).Get("/", controllers.UserList(deps.Users, logg))
			r.Get("/{userId}", controllers.UserGet(deps.Users, logg))
			r.Put("/{userId}", controllers.UserUpdate(deps.Users, logg))
			r.With(adminOnly).Delete("/{userId}", controllers.UserDelete(deps.Users, logg))
			r.Get("/{userId}/favorites", controllers.UserFavorites(deps.Users, logg))
			r.Post("/{userId}/favorites/{productId}", controllers.UserAddFavorite(deps.Users, logg))
			r.Delete("/{userId}/favorites/{productId}", controllers.UserRemoveFavorite(deps.Users, logg))
		})

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", controllers.CategoryList(deps.Categories, logg))
			r.Get("/active", controllers.CategoryListActive(deps.Categories, logg))
			r.Get("/search/{term}", controllers.CategorySearch(deps.Categories, logg))
			r.Get("/{categoryId}", controllers.CategoryGet(deps.Categories, logg))
			r.Group(func(r chi.Router) {
				r.Use(authenticated, adminOnly)
				r.Post("/", controllers.CategoryCreate(deps.Categories, logg))
				r.Put("/{categoryId}", controllers.CategoryUpdate(deps.Categories, logg))
				r.Patch("/{categoryId}/toggle", controllers.CategoryToggle(deps.Categories, logg))
				r.Delete("/{categoryId}", controllers.CategoryDelete(deps.Categories, logg))
			})
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.ProductList(deps.Products, logg))
			r.Get("/filter", controllers.ProductFilter(deps.Products, logg))
			r.Get("/{productId}", controllers.ProductGet(deps.Products, logg))
			r.Group(func(r chi.Router) {
				r.Use(authenticated, catalogWriters)
				r.Post("/", controllers.ProductCreate(deps.Products, logg))
				r.Put("/{productId}", controllers.ProductUpdate(deps.Products, logg))
				r.Delete("/{productId}", controllers.ProductDelete(deps.Products, logg))
			})
		})

		r.Route("/orders", func(r chi.Router) {
			r.Use(authenticated, idempotent)
			r.With(adminOnly).Get("/", controllers.OrderList(deps.Orders, logg))
			r.With(adminOnly).Get("/status/{status}", controllers.OrderListByStatus(deps.Orders, logg))
			r.Get("/user/{userId}", controllers.OrderListByUser(deps.Orders, logg))
			r.Post("/", controllers.OrderCreate(deps.Orders, logg))
			r.Get("/{orderId}", controllers.OrderGet(deps.Orders, logg))
			r.With(adminOnly).Put("/{orderId}", controllers.OrderAdminUpdate(deps.Orders, logg))
			r.Patch("/{orderId}/cancel", controllers.OrderCancel(deps.Orders, logg))
			r.Delete("/{orderId}", controllers.OrderDelete(deps.Orders, logg))
		})

		r.Route("/reports", func(r chi.Router) {
			r.Use(authenticated, idempotent)
			r.With(adminOnly).Get("/", controllers.ReportList(deps.Reports, logg))
			r.With(adminOnly).Get("/stats", controllers.ReportStats(deps.Reports, logg))
			r.With(adminOnly).Get("/status/{status}", controllers.ReportListByStatus(deps.Reports, logg))
			r.Get("/user/{userId}", controllers.ReportListByUser(deps.Reports, logg))
			r.Post("/", controllers.ReportCreate(deps.Reports, logg))
			r.Get("/{reportId}", controllers.ReportGet(deps.Reports, logg))
			r.Put("/{reportId}", controllers.ReportUpdate(deps.Reports, logg))
			r.Delete("/{reportId}", controllers.ReportDelete(deps.Reports, logg))
			r.With(adminOnly).Patch("/{reportId}/status", controllers.ReportSetStatus(deps.Reports, logg))
			r.With(adminOnly).Patch("/{reportId}/resolve", controllers.ReportResolve(deps.Reports, logg))
		})
	})

	return r
}
