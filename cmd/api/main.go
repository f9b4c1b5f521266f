package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/storefront-backend/api/routes"
	"github.com/angelmondragon/storefront-backend/internal/address"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/internal/coupons"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/payments"
	"github.com/angelmondragon/storefront-backend/internal/rank"
	"github.com/angelmondragon/storefront-backend/internal/reviews"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/migrate"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

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

	services, err := buildServices(cfg, logg, dbClient, redisClient)
	if err != nil {
		logg.Error(context.Background(), "failed to wire services", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":   cfg.App.Env,
		"addr":  addr,
		"vnpay": cfg.VNPay.Enabled(),
	})
	logg.Info(ctx, "starting api server")

	infra := routes.Infra{
		DB:          dbClient,
		Cache:       redisClient,
		HTTPMetrics: metrics.NewHTTPMetrics(prometheus.DefaultRegisterer),
		Gatherer:    prometheus.DefaultGatherer,
	}
	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, infra, services),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "api server shutdown failed", err)
		}
		logg.Info(shutdownCtx, "api server stopped")
	}
}

func buildServices(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client) (routes.Services, error) {
	conn := dbClient.DB()
	domainMetrics := metrics.NewDomainMetrics(prometheus.DefaultRegisterer)
	emitter := outbox.NewService(outbox.NewRepository(conn), logg)

	catalogSvc, err := catalog.NewService(catalog.NewRepository(conn), dbClient)
	if err != nil {
		return routes.Services{}, err
	}
	cartSvc, err := cart.NewService(cart.NewRepository(conn))
	if err != nil {
		return routes.Services{}, err
	}
	couponSvc, err := coupons.NewService(coupons.NewRepository(conn))
	if err != nil {
		return routes.Services{}, err
	}
	addressSvc, err := address.NewService(address.NewRepository(conn), dbClient)
	if err != nil {
		return routes.Services{}, err
	}
	rankSvc, err := rank.NewService(rank.ServiceParams{
		Repo:    rank.NewRepository(conn),
		Tx:      dbClient,
		Coupons: couponSvc,
		Outbox:  emitter,
		Locker:  redisClient,
		Metrics: domainMetrics,
		Logger:  logg,
		Config:  cfg.Rewards,
	})
	if err != nil {
		return routes.Services{}, err
	}
	orderSvc, err := orders.NewService(orders.ServiceParams{
		Repo:      orders.NewRepository(conn),
		Tx:        dbClient,
		Addresses: addressSvc,
		Catalog:   catalogSvc,
		Coupons:   couponSvc,
		Rank:      rankSvc,
		Cart:      cartSvc,
		Outbox:    emitter,
		Metrics:   domainMetrics,
		Logger:    logg,
	})
	if err != nil {
		return routes.Services{}, err
	}
	reviewSvc, err := reviews.NewService(reviews.NewRepository(conn))
	if err != nil {
		return routes.Services{}, err
	}

	services := routes.Services{
		Catalog: catalogSvc,
		Cart:    cartSvc,
		Coupons: couponSvc,
		Address: addressSvc,
		Orders:  orderSvc,
		Rank:    rankSvc,
		Reviews: reviewSvc,
	}

	// Without credentials the payment routes answer with an internal error and
	// COD checkout keeps working.
	if cfg.VNPay.Enabled() {
		signer, err := payments.NewSigner(cfg.VNPay)
		if err != nil {
			return routes.Services{}, err
		}
		paymentSvc, err := payments.NewService(payments.ServiceParams{
			Repo:   payments.NewRepository(conn),
			Tx:     dbClient,
			Signer: signer,
			Cart:   cartSvc,
			Outbox: emitter,
			Logger: logg,
		})
		if err != nil {
			return routes.Services{}, err
		}
		services.Payments = paymentSvc
	}
	return services, nil
}
