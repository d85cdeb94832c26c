package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/clinic-service/internal/api/http"
	"github.com/spec-kit/clinic-service/internal/api/http/handlers"
	"github.com/spec-kit/clinic-service/internal/auth"
	"github.com/spec-kit/clinic-service/internal/config"
	"github.com/spec-kit/clinic-service/internal/events"
	"github.com/spec-kit/clinic-service/internal/observability"
	"github.com/spec-kit/clinic-service/internal/persistence"
	"github.com/spec-kit/clinic-service/internal/realtime"
	"github.com/spec-kit/clinic-service/internal/repository"
	"github.com/spec-kit/clinic-service/internal/service"
	"github.com/spec-kit/clinic-service/internal/worker"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	if err := cfg.Auth.Validate(); err != nil {
		logger.Fatal("invalid auth configuration", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(registry)

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	pool := pg.PoolHandle()
	userRepo := repository.NewUserRepository(pool)
	walletRepo := repository.NewWalletRepository(pool)
	notificationRepo := repository.NewNotificationRepository(pool)
	resetRepo := repository.NewPasswordResetRepository(pool)
	sessionRepo := repository.NewRefreshSessionRepository(redis.Client, redis.KeyPrefix)

	dispatcher := events.NewInMemoryDispatcher()
	codec := service.NewTokenCodec(cfg.Auth)
	authMiddleware := auth.NewAuthMiddleware(codec, metrics)

	hub := realtime.NewHub(logger.Named("realtime"), metrics, cfg.Realtime.PingInterval(), cfg.Realtime.WriteTimeout())

	authService := service.NewAuthService(cfg.Auth, service.AuthDependencies{
		UserRepo:        userRepo,
		WalletRepo:      walletRepo,
		RefreshSessions: sessionRepo,
		PasswordResets:  resetRepo,
		Dispatcher:      dispatcher,
		Codec:           codec,
		Metrics:         metrics,
		Logger:          logger.Named("auth"),
	})
	verificationService := service.NewVerificationService(userRepo, dispatcher, logger.Named("verification"))
	notificationService := service.NewNotificationService(dispatcher, notificationRepo, hub, logger.Named("notifications"), cfg.Notification)
	walletService := service.NewWalletService(walletRepo)

	worker.StartNotificationWorker(notificationService)
	prunerDone := worker.StartResetPruner(ctx, resetRepo, cfg.Worker.ResetPruneInterval(), logger.Named("worker"))

	socketServer := realtime.NewServer(cfg.Realtime.Addr(), hub, authMiddleware, logger.Named("realtime"))
	go func() {
		if err := socketServer.Start(); err != nil {
			logger.Fatal("realtime listen", zap.Error(err))
		}
	}()

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ErrorHandler: httptransport.ErrorHandler,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{
			"postgres": pg,
			"redis":    redis,
		}),
		Auth:           handlers.NewAuthHandler(authService, cfg.Auth.RefreshCookie, !cfg.App.IsProduction()),
		Wallets:        handlers.NewWalletHandler(authService, walletService),
		Notifications:  handlers.NewNotificationHandler(notificationService),
		Admin:          handlers.NewAdminHandler(verificationService),
		AuthMiddleware: authMiddleware,
		Codec:          codec,
		RateLimiter:    httptransport.NewRateLimiter(cfg.RateLimit),
		Metrics:        metrics,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if err := socketServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("realtime shutdown", zap.Error(err))
	}
	cancel()
	<-prunerDone
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
