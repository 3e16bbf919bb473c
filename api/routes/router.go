package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tokosaku/backend/api/controllers"
	ordercontrollers "github.com/tokosaku/backend/api/controllers/orders"
	webhookcontrollers "github.com/tokosaku/backend/api/controllers/webhooks"
	"github.com/tokosaku/backend/api/middleware"
	checkoutsvc "github.com/tokosaku/backend/internal/checkout"
	"github.com/tokosaku/backend/internal/orders"
	"github.com/tokosaku/backend/pkg/config"
	"github.com/tokosaku/backend/pkg/db"
	"github.com/tokosaku/backend/pkg/logger"
	pkgredis "github.com/tokosaku/backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *pkgredis.Client,
	metricsRegistry *prometheus.Registry,
	checkoutService checkoutsvc.Service,
	ordersRepo orders.Repository,
	ordersSvc orders.Service,
	notificationService webhookcontrollers.PaymentNotificationService,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	if metricsRegistry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(metricsRegistry, promhttp.HandlerOpts{}))
	}

	// The gateway authenticates with a payload signature, not a bearer token.
	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/payment", webhookcontrollers.PaymentNotification(notificationService, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Post("/checkout", ordercontrollers.Checkout(checkoutService, logg))
		r.Route("/orders", func(r chi.Router) {
			r.Get("/", ordercontrollers.List(ordersRepo, logg))
			r.Get("/{orderNumber}", ordercontrollers.Detail(ordersSvc, logg))
			r.Post("/{orderNumber}/cancel", ordercontrollers.Cancel(ordersSvc, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole("admin", logg))

		r.Post("/orders/{orderNumber}/reconcile", controllers.AdminReconcileOrder(ordersSvc, logg))
	})

	return r
}
