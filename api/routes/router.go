package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/susplants/shop-backend/api/controllers"
	webhookcontrollers "github.com/susplants/shop-backend/api/controllers/webhooks"
	"github.com/susplants/shop-backend/api/middleware"
	checkoutsvc "github.com/susplants/shop-backend/internal/checkout"
	"github.com/susplants/shop-backend/internal/orders"
	"github.com/susplants/shop-backend/internal/payments"
	"github.com/susplants/shop-backend/internal/refunds"
	"github.com/susplants/shop-backend/internal/stock"
	"github.com/susplants/shop-backend/pkg/config"
	"github.com/susplants/shop-backend/pkg/db"
	"github.com/susplants/shop-backend/pkg/logger"
	"github.com/susplants/shop-backend/pkg/redis"
	"github.com/susplants/shop-backend/pkg/square"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbPinger db.Pinger,
	redisClient *redis.Client,
	registry *prometheus.Registry,
	stockRepo stock.Repository,
	ordersSvc orders.Service,
	checkoutSvc checkoutsvc.Service,
	paymentsSvc payments.Service,
	refundsSvc refunds.Service,
	webhookSvc *payments.WebhookService,
	webhookGuard *payments.IdempotencyGuard,
	squareClient *square.Client,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.CORS(),
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, dbPinger, redisClient, logg))
	})

	if registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	webhookLimit := middleware.NewRateLimitPolicy("webhook", time.Minute, 120)
	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Use(middleware.RateLimit(webhookLimit, redisClient, logg))
		r.Post("/square", webhookcontrollers.SquareWebhook(webhookSvc, squareClient, webhookGuard, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.ListProducts(stockRepo, logg))
			r.Get("/{productId}", controllers.GetProduct(stockRepo, logg))
		})

		checkoutLimit := middleware.NewRateLimitPolicy("checkout", time.Minute, 10)
		r.With(middleware.RateLimit(checkoutLimit, redisClient, logg)).
			Post("/checkout", controllers.Checkout(checkoutSvc, logg))
		r.Get("/orders/{orderNumber}", controllers.GetOrder(ordersSvc, logg))
		r.Post("/payments/complete", controllers.CompletePayment(paymentsSvc, logg))
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.AdminListOrders(ordersSvc, logg))
			r.Post("/{orderId}/confirm-payment", controllers.AdminConfirmPayment(ordersSvc, paymentsSvc, logg))
			r.Post("/{orderId}/refund", controllers.AdminRefundOrder(refundsSvc, logg))
			r.Post("/{orderId}/cancel", controllers.AdminCancelOrder(refundsSvc, logg))
			r.Post("/{orderId}/ship", controllers.AdminShipOrder(ordersSvc, logg))
		})
	})

	return r
}
