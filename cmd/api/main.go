package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/freshbulk/freshbulk-backend/api"
	"github.com/freshbulk/freshbulk-backend/api/controllers"
	"github.com/freshbulk/freshbulk-backend/api/routes"
	"github.com/freshbulk/freshbulk-backend/internal/auth"
	"github.com/freshbulk/freshbulk-backend/internal/checkout"
	"github.com/freshbulk/freshbulk-backend/internal/orders"
	"github.com/freshbulk/freshbulk-backend/internal/payments"
	product "github.com/freshbulk/freshbulk-backend/internal/products"
	"github.com/freshbulk/freshbulk-backend/internal/users"
	"github.com/freshbulk/freshbulk-backend/pkg/config"
	"github.com/freshbulk/freshbulk-backend/pkg/db"
	"github.com/freshbulk/freshbulk-backend/pkg/logger"
	"github.com/freshbulk/freshbulk-backend/pkg/metrics"
	"github.com/freshbulk/freshbulk-backend/pkg/migrate"
	"github.com/freshbulk/freshbulk-backend/pkg/outbox"
	"github.com/freshbulk/freshbulk-backend/pkg/redis"
	"github.com/freshbulk/freshbulk-backend/pkg/security"
	"github.com/freshbulk/freshbulk-backend/pkg/stripe"
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) (err error) {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, dbClient.Close()) }()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, redisClient.Close()) }()

	stripeClient, err := stripe.NewClient(ctx, cfg.Stripe, logg)
	if err != nil {
		return err
	}
	gateway, err := payments.NewStripeGateway(stripeClient)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	orderMetrics := metrics.NewOrderMetrics(registry)

	productRepo := product.NewRepository(dbClient.DB())
	productService, err := product.NewService(productRepo)
	if err != nil {
		return err
	}

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:  users.NewRepository(dbClient.DB()),
		Passwords: security.NewPasswordHasher(cfg.Password),
		JWTConfig: cfg.JWT,
	})
	if err != nil {
		return err
	}

	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	orderRepo := orders.NewRepository(dbClient.DB())

	sessionFactory, err := payments.NewSessionFactory(gateway, cfg.Checkout, orderMetrics)
	if err != nil {
		return err
	}
	materializer, err := orders.NewMaterializer(orders.MaterializerDeps{
		Repo:     orderRepo,
		Tx:       dbClient,
		Gateway:  gateway,
		Catalog:  productService,
		Outbox:   outboxService,
		Locker:   redisClient,
		Metrics:  orderMetrics,
		Logger:   logg,
		Currency: cfg.Checkout.Currency,
	})
	if err != nil {
		return err
	}
	checkoutService, err := checkout.NewService(productService, sessionFactory, materializer, cfg.Checkout.Currency)
	if err != nil {
		return err
	}

	statusMachine, err := orders.NewStatusMachine(orderRepo, dbClient, outboxService, orderMetrics)
	if err != nil {
		return err
	}
	ordersService, err := orders.NewService(orderRepo, statusMachine)
	if err != nil {
		return err
	}

	router := routes.NewRouter(routes.Deps{
		Config:   cfg,
		Logger:   logg,
		Pingers:  map[string]controllers.Pinger{"db": dbClient, "redis": redisClient},
		Redis:    redisClient,
		Gatherer: registry,
		Auth:     authService,
		Products: productService,
		Checkout: checkoutService,
		Orders:   ordersService,
	})

	addr := ":" + cfg.App.Port
	logg.Info(logg.WithFields(ctx, map[string]any{
		"env":        cfg.App.Env,
		"addr":       addr,
		"stripe_env": stripeClient.Environment(),
	}), "starting api server")

	return api.Serve(ctx, api.NewServer(addr, router), cfg.App, logg)
}
