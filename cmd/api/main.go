package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/cassiomorais/realestate/internal/bootstrap"
	"github.com/cassiomorais/realestate/internal/controller"
	infraRedis "github.com/cassiomorais/realestate/internal/infrastructure/redis"
	"github.com/cassiomorais/realestate/internal/infrastructure/storage"
	"github.com/cassiomorais/realestate/internal/jobs"
	"github.com/cassiomorais/realestate/internal/providers"
	"github.com/cassiomorais/realestate/internal/repository/postgres"
	"github.com/cassiomorais/realestate/internal/service"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := bootstrap.New(ctx, "realestate-api", "realestate")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()
	cfg := app.Config

	// --- Repositories ---
	userRepo := postgres.NewUserRepository(app.Pool)
	propertyRepo := postgres.NewPropertyRepository(app.Pool)
	paymentRepo := postgres.NewPaymentRepository(app.Pool)
	outboxRepo := postgres.NewOutboxRepository(app.Pool)
	statsRepo := postgres.NewStatsRepository(app.Pool)
	idempotencyRepo := postgres.NewIdempotencyRepository(app.Pool)
	txManager := postgres.NewTxManager(app.Pool)

	// --- Infrastructure adapters ---
	photos, err := storage.NewPhotoStore(ctx, cfg.Storage)
	if err != nil {
		app.Logger.Fatal().Err(err).Msg("Failed to initialize photo storage")
	}
	locker := infraRedis.NewLocker(app.Redis, cfg.Payment.LockTTL)
	gateway := providers.NewGateway(
		providers.NewMockProvider("simulated",
			providers.WithLatency(cfg.Payment.ProcessingDelay),
			providers.WithFailureRate(cfg.Payment.FailureRate),
		),
		providers.BreakerSettings{
			Threshold: cfg.Payment.CircuitBreakerThreshold,
			Timeout:   cfg.Payment.CircuitBreakerTimeout,
		},
		app.Metrics,
	)

	var statsCache service.StatsCache
	if cfg.Stats.CacheTTL > 0 {
		statsCache = infraRedis.NewStatsCache(app.Redis, cfg.Stats.CacheTTL)
	}

	// --- Background jobs ---
	runner := jobs.NewRunner(jobs.NewRegistry(),
		jobs.WithMaxConcurrency(cfg.Jobs.MaxConcurrency),
		jobs.WithTimeout(cfg.Jobs.Timeout),
		jobs.WithLogger(app.Logger),
		jobs.WithMetrics(app.Metrics),
		jobs.WithBaseContext(ctx),
	)
	if cfg.Jobs.Retention > 0 {
		runner.StartJanitor(ctx, cfg.Jobs.Retention, cfg.Jobs.JanitorInterval)
	}

	// --- Services ---
	authz := service.NewAuthzService(propertyRepo)
	userService := service.NewUserService(userRepo, cfg.Auth.JWTSecret, cfg.Auth.JWTExpiry, app.Logger).
		WithStatsCache(statsCache)
	propertyService := service.NewPropertyService(propertyRepo, paymentRepo, txManager, authz,
		photos, cfg.Storage.ThumbnailWidth, app.Logger).WithStatsCache(statsCache)
	processor := service.NewPaymentProcessor(paymentRepo, propertyRepo, outboxRepo, txManager,
		gateway, statsCache, app.Metrics, app.Logger)
	jobService := service.NewPaymentJobService(runner, processor, paymentRepo, app.Logger)
	purchaseService := service.NewPurchaseService(propertyRepo, paymentRepo, txManager, locker, jobService, app.Logger).
		WithStatsCache(statsCache)

	statsOpts := []service.StatisticsOption{
		service.WithStatsTimeout(cfg.Stats.Timeout),
		service.WithStatsMetrics(app.Metrics),
		service.WithStatsLogger(app.Logger),
	}
	if statsCache != nil {
		statsOpts = append(statsOpts, service.WithStatsCache(statsCache))
	}
	statsService := service.NewStatisticsService(statsRepo, statsOpts...)

	// --- Build router ---
	deps := controller.RouterDeps{
		DBPing:          app.PingDB,
		RedisPing:       app.PingRedis,
		UserService:     userService,
		AuthzService:    authz,
		PropertyService: propertyService,
		PurchaseService: purchaseService,
		JobService:      jobService,
		StatsService:    statsService,
		IdempotencyRepo: idempotencyRepo,
		JWTSecret:       cfg.Auth.JWTSecret,
		RateLimit:       cfg.Server.RateLimit,
		CORSConfig:      cfg.Server.CORS,
		Logger:          app.Logger,
	}
	if cfg.Observability.EnableMetrics {
		deps.Metrics = app.Metrics
	}
	router := controller.NewRouter(deps)

	// --- HTTP server ---
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		app.Logger.Info().Str("addr", addr).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			app.Logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	app.Logger.Info().Msg("Shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		app.Logger.Error().Err(err).Msg("Server forced to shutdown")
	}
	// Let in-flight payment jobs settle before the pool closes.
	if err := runner.Shutdown(shutdownCtx); err != nil {
		app.Logger.Error().Err(err).Msg("Payment jobs still running at shutdown")
	}
	cancel()
	app.Logger.Info().Msg("Server exited")
}
