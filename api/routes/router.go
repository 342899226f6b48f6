package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/storefront-settlement/api/controllers"
	"github.com/angelmondragon/storefront-settlement/api/middleware"
	checkoutsvc "github.com/angelmondragon/storefront-settlement/internal/checkout"
	"github.com/angelmondragon/storefront-settlement/internal/orders"
	"github.com/angelmondragon/storefront-settlement/internal/payouts"
	"github.com/angelmondragon/storefront-settlement/pkg/config"
	"github.com/angelmondragon/storefront-settlement/pkg/db"
	"github.com/angelmondragon/storefront-settlement/pkg/enums"
	"github.com/angelmondragon/storefront-settlement/pkg/logger"
	"github.com/angelmondragon/storefront-settlement/pkg/metrics"
	"github.com/angelmondragon/storefront-settlement/pkg/redis"
)

// Dependencies are the services and readiness checks the HTTP surface is built from.
// Gatherer is optional; without it /metrics is not mounted.
type Dependencies struct {
	Tokens      middleware.TokenVerifier
	DB          db.Pinger
	Redis       redis.Pinger
	Idempotency middleware.ResponseStore
	Gatherer    prometheus.Gatherer
	Checkout    checkoutsvc.Service
	Orders      orders.Service
	Payouts     payouts.Service
	DeadLetters controllers.DeadLetterService
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	idempotent := middleware.Idempotency(deps.Idempotency, logg)

	checks := map[string]controllers.ReadinessCheck{}
	if deps.DB != nil {
		checks["database"] = deps.DB.Ping
	}
	if deps.Redis != nil {
		checks["redis"] = deps.Redis.Ping
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, checks, logg))
	})
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/orders/track/{token}", controllers.TrackOrder(deps.Orders, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(deps.Tokens, logg))
			r.With(idempotent).Post("/orders", controllers.CreateOrder(deps.Checkout, logg))
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.Auth(deps.Tokens, logg))
			r.Use(middleware.RequireRole(enums.RoleAdmin, logg))

			r.With(idempotent).Post("/orders/{orderId}/status", controllers.AdminAdvanceOrderStatus(deps.Orders, logg))
			r.Route("/payouts", func(r chi.Router) {
				r.Get("/", controllers.AdminListPayouts(deps.Payouts, logg))
				r.With(idempotent).Post("/{commissionId}/approve", controllers.AdminApprovePayout(deps.Payouts, logg))
				r.With(idempotent).Post("/{commissionId}/reject", controllers.AdminRejectPayout(deps.Payouts, logg))
			})
			r.With(idempotent).Post("/sellers/{sellerId}/verify-bank", controllers.AdminVerifySellerBank(deps.Payouts, logg))
			r.Route("/outbox/dlq", func(r chi.Router) {
				r.Get("/", controllers.AdminListDeadLetters(deps.DeadLetters, logg))
				r.With(idempotent).Post("/{eventId}/replay", controllers.AdminReplayDeadLetter(deps.DeadLetters, logg))
			})
		})
	})

	return r
}
