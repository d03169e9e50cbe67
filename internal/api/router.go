package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/richboost/boosting-core/internal/api/handler"
	"github.com/richboost/boosting-core/internal/api/middleware"
	"github.com/richboost/boosting-core/internal/domain"
	"github.com/richboost/boosting-core/internal/idempotency"
	"github.com/richboost/boosting-core/internal/service"
)

// Deps carries everything the HTTP layer needs. Handlers are built here so
// the app wiring stays in one place.
type Deps struct {
	DB          *pgxpool.Pool
	Redis       redis.Cmdable
	Idempotency *idempotency.Store
	Logger      *zap.Logger

	Accounts *service.AccountService
	Ledger   *service.LedgerService
	Pricing  *service.PricingService
	Orders   *service.OrderService
	Promos   *service.PromoService
	Payouts  *service.PayoutService
	Topups   *service.TopupService
	Settings *service.SettingsService

	PublicRateLimitRPS int
	AuthRateLimitRPS   int
}

// NewRouter assembles the route tree with the full middleware chain.
func NewRouter(deps Deps) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.TraceMiddleware)
	r.Use(middleware.LoggingMiddleware(deps.Logger))
	r.Use(middleware.MetricsMiddleware)
	r.Use(middleware.RecoverMiddleware(deps.Logger))

	healthHandler := handler.NewHealthHandler(deps.DB, deps.Redis)
	authHandler := handler.NewAuthHandler(deps.Accounts)
	accountHandler := handler.NewAccountHandler(deps.Accounts, deps.Ledger)
	quoteHandler := handler.NewQuoteHandler(deps.Pricing)
	orderHandler := handler.NewOrderHandler(deps.Orders)
	promoHandler := handler.NewPromoHandler(deps.Promos)
	payoutHandler := handler.NewPayoutHandler(deps.Payouts)
	topupHandler := handler.NewTopupHandler(deps.Topups)
	settingsHandler := handler.NewSettingsHandler(deps.Settings)

	r.Get("/healthz/live", healthHandler.Live)
	r.Get("/healthz/ready", healthHandler.Ready)
	r.Method("GET", "/metrics", promhttp.Handler())

	// Public routes.
	r.Group(func(r chi.Router) {
		r.Use(middleware.PublicRateLimiter(deps.PublicRateLimitRPS))

		r.Post("/v1/auth/token", authHandler.Token)
		r.Post("/v1/customers", accountHandler.RegisterCustomer)
		r.Post("/v1/quotes", quoteHandler.Quote)
	})

	// Authenticated routes.
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware)
		r.Use(middleware.AuthRateLimiter(deps.AuthRateLimitRPS))

		idem := middleware.IdempotencyMiddleware(deps.Idempotency, deps.Logger)

		r.Get("/v1/customers/{id}", accountHandler.GetCustomer)
		r.Get("/v1/customers/{id}/bonus-history", accountHandler.BonusHistory)
		r.With(middleware.RequireRole(domain.RoleAdmin), idem).
			Post("/v1/customers/{id}/adjustments", accountHandler.AdjustBalance)
		r.Get("/v1/workers", accountHandler.ListWorkers)
		r.Get("/v1/workers/{id}", accountHandler.GetWorker)

		// Orders.
		r.With(middleware.RequireRole(domain.RoleCustomer, domain.RoleAdmin), idem).
			Post("/v1/orders", orderHandler.Create)
		r.Get("/v1/orders", orderHandler.List)
		r.Get("/v1/orders/{id}", orderHandler.Get)
		r.Get("/v1/orders/{id}/history", orderHandler.History)
		r.With(middleware.RequireRole(domain.RoleAdmin), idem).
			Post("/v1/orders/{id}/assign", orderHandler.Assign)
		r.With(middleware.RequireRole(domain.RoleWorker, domain.RoleAdmin), idem).
			Post("/v1/orders/{id}/start", orderHandler.Start)
		r.With(middleware.RequireRole(domain.RoleWorker, domain.RoleAdmin), idem).
			Post("/v1/orders/{id}/pause", orderHandler.Pause)
		r.With(middleware.RequireRole(domain.RoleWorker, domain.RoleAdmin), idem).
			Post("/v1/orders/{id}/resume", orderHandler.Resume)
		r.With(middleware.RequireRole(domain.RoleWorker, domain.RoleAdmin), idem).
			Post("/v1/orders/{id}/submit-review", orderHandler.SubmitReview)
		r.With(middleware.RequireRole(domain.RoleAdmin), idem).
			Post("/v1/orders/{id}/complete", orderHandler.Complete)
		r.With(middleware.RequireRole(domain.RoleAdmin), idem).
			Post("/v1/orders/{id}/reject-review", orderHandler.RejectReview)
		r.With(middleware.RequireRole(domain.RoleCustomer, domain.RoleAdmin), idem).
			Post("/v1/orders/{id}/cancel", orderHandler.Cancel)

		// Promo codes.
		r.With(middleware.RequireRole(domain.RoleCustomer), idem).
			Post("/v1/promos/activate", promoHandler.Activate)
		r.With(middleware.RequireRole(domain.RoleAdmin), idem).
			Post("/v1/promos", promoHandler.Create)
		r.With(middleware.RequireRole(domain.RoleAdmin)).
			Get("/v1/promos", promoHandler.List)
		r.With(middleware.RequireRole(domain.RoleAdmin), idem).
			Patch("/v1/promos/{id}/active", promoHandler.SetActive)

		// Payouts.
		r.With(middleware.RequireRole(domain.RoleWorker), idem).
			Post("/v1/payouts", payoutHandler.Create)
		r.With(middleware.RequireRole(domain.RoleAdmin)).
			Get("/v1/payouts/pending", payoutHandler.ListPending)
		r.Get("/v1/payouts/{id}", payoutHandler.Get)
		r.With(middleware.RequireRole(domain.RoleAdmin), idem).
			Post("/v1/payouts/{id}/approve", payoutHandler.Approve)
		r.With(middleware.RequireRole(domain.RoleAdmin), idem).
			Post("/v1/payouts/{id}/reject", payoutHandler.Reject)
		r.With(middleware.RequireRole(domain.RoleWorker), idem).
			Post("/v1/workers/balance/convert", payoutHandler.ConvertBalance)

		// Top-ups.
		r.With(middleware.RequireRole(domain.RoleCustomer), idem).
			Post("/v1/topups", topupHandler.Create)
		r.With(middleware.RequireRole(domain.RoleAdmin)).
			Get("/v1/topups/pending", topupHandler.ListPending)
		r.Get("/v1/topups/{id}", topupHandler.Get)
		r.With(middleware.RequireRole(domain.RoleAdmin), idem).
			Post("/v1/topups/{id}/accept", topupHandler.Accept)
		r.With(middleware.RequireRole(domain.RoleAdmin), idem).
			Post("/v1/topups/{id}/reject", topupHandler.Reject)

		// Settings.
		r.With(middleware.RequireRole(domain.RoleAdmin)).
			Get("/v1/settings", settingsHandler.List)
		r.With(middleware.RequireRole(domain.RoleAdmin), idem).
			Put("/v1/settings/{key}", settingsHandler.Update)
	})

	return r
}
