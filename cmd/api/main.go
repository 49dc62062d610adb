package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/bazario/bazario-backend/api/routes"
	"github.com/bazario/bazario-backend/internal/cart"
	"github.com/bazario/bazario-backend/internal/inventory"
	"github.com/bazario/bazario-backend/internal/notifications"
	"github.com/bazario/bazario-backend/internal/orders"
	"github.com/bazario/bazario-backend/internal/products"
	"github.com/bazario/bazario-backend/internal/wallet"
	"github.com/bazario/bazario-backend/pkg/config"
	"github.com/bazario/bazario-backend/pkg/db"
	"github.com/bazario/bazario-backend/pkg/logger"
	"github.com/bazario/bazario-backend/pkg/migrate"
	"github.com/bazario/bazario-backend/pkg/outbox"
	"github.com/bazario/bazario-backend/pkg/redis"
)

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

	gormDB := dbClient.DB()
	productRepo := products.NewRepository(gormDB)
	inventorySvc, err := inventory.NewService(inventory.NewRepository(gormDB))
	if err != nil {
		logg.Error(context.Background(), "failed to create inventory service", err)
		os.Exit(1)
	}

	cartSvc, err := cart.NewService(cart.NewRepository(gormDB), productRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create cart service", err)
		os.Exit(1)
	}

	walletSvc, err := wallet.NewService(dbClient, wallet.NewRepository(gormDB))
	if err != nil {
		logg.Error(context.Background(), "failed to create wallet service", err)
		os.Exit(1)
	}

	notificationsSvc, err := notifications.NewService(notifications.NewRepository(gormDB))
	if err != nil {
		logg.Error(context.Background(), "failed to create notifications service", err)
		os.Exit(1)
	}

	outboxSvc := outbox.NewService(outbox.NewRepository(gormDB), logg)

	ordersRepo := orders.NewRepository(gormDB)
	ordersSvc, err := orders.NewService(dbClient, ordersRepo, cartSvc, productRepo, inventorySvc, walletSvc, outboxSvc, cfg.Orders, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	finalizer, err := orders.NewFinalizer(ordersRepo, walletSvc, outboxSvc, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create order finalizer", err)
		os.Exit(1)
	}

	approvalSvc, err := orders.NewApprovalService(dbClient, ordersRepo, inventorySvc, outboxSvc, finalizer, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create approval service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			cartSvc,
			ordersSvc,
			approvalSvc,
			walletSvc,
			notificationsSvc,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
