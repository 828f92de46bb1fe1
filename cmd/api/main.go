package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/susplants/shop-backend/api/routes"
	checkoutsvc "github.com/susplants/shop-backend/internal/checkout"
	"github.com/susplants/shop-backend/internal/notifications"
	"github.com/susplants/shop-backend/internal/orders"
	"github.com/susplants/shop-backend/internal/payments"
	"github.com/susplants/shop-backend/internal/refunds"
	"github.com/susplants/shop-backend/internal/shipping"
	"github.com/susplants/shop-backend/internal/stock"
	"github.com/susplants/shop-backend/pkg/config"
	"github.com/susplants/shop-backend/pkg/db"
	"github.com/susplants/shop-backend/pkg/logger"
	"github.com/susplants/shop-backend/pkg/mailer"
	"github.com/susplants/shop-backend/pkg/metrics"
	"github.com/susplants/shop-backend/pkg/migrate"
	"github.com/susplants/shop-backend/pkg/redis"
	"github.com/susplants/shop-backend/pkg/square"
)

const webhookDedupeTTL = 24 * time.Hour

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	var squareClient *square.Client
	var gateway square.Gateway
	if cfg.Square.AccessToken != "" {
		squareClient, err = square.NewClient(context.Background(), cfg.Square, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to create square client", err)
			os.Exit(1)
		}
		gateway = squareClient
	} else {
		logg.Warn(context.Background(), "square is not configured, card payments disabled")
	}

	var sender mailer.Sender
	if cfg.Mailgun.Domain != "" && cfg.Mailgun.APIKey != "" {
		mailClient, err := mailer.NewClient(cfg.Mailgun)
		if err != nil {
			logg.Error(context.Background(), "failed to create mailer", err)
			os.Exit(1)
		}
		sender = mailClient
	} else {
		logg.Warn(context.Background(), "mailgun is not configured, notifications disabled")
	}
	notifier := notifications.NewNotifier(sender, cfg.Mailgun.AdminEmail, logg)

	registry := prometheus.NewRegistry()
	recMetrics := metrics.NewReconciliationMetrics(registry)

	stockRepo := stock.NewRepository(dbClient.DB())
	ordersRepo := orders.NewRepository(dbClient.DB())

	ordersService, err := orders.NewService(ordersRepo, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	shippingCalc := shipping.NewCalculator(cfg.Checkout)

	checkoutService, err := checkoutsvc.NewService(
		stockRepo,
		ordersService,
		shippingCalc,
		gateway,
		notifier,
		cfg.Checkout,
		cfg.Square.RedirectBaseURL,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	paymentsService, err := payments.NewService(ordersRepo, stockRepo, dbClient, notifier, recMetrics, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create payments service", err)
		os.Exit(1)
	}

	webhookService, err := payments.NewWebhookService(paymentsService, recMetrics, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook service", err)
		os.Exit(1)
	}

	webhookGuard, err := payments.NewIdempotencyGuard(redisClient, webhookDedupeTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook guard", err)
		os.Exit(1)
	}

	refundsService, err := refunds.NewService(ordersRepo, stockRepo, dbClient, gateway, notifier, recMetrics, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create refunds service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			registry,
			stockRepo,
			ordersService,
			checkoutService,
			paymentsService,
			refundsService,
			webhookService,
			webhookGuard,
			squareClient,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
