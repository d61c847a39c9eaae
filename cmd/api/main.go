package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/eva-commerce/giftwrap/internal/di"
	"github.com/eva-commerce/giftwrap/internal/handlers"
	"github.com/eva-commerce/giftwrap/internal/platform/auth"
	"github.com/eva-commerce/giftwrap/internal/platform/config"
	"github.com/eva-commerce/giftwrap/internal/platform/idempotency"
	"github.com/eva-commerce/giftwrap/internal/platform/observability"
	"github.com/eva-commerce/giftwrap/internal/platform/secrets"
	"github.com/eva-commerce/giftwrap/internal/platform/session"
	"github.com/eva-commerce/giftwrap/internal/services"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx := context.Background()
	startedAt := time.Now().UTC()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("giftwrap")
	ctx = observability.WithLogger(ctx, logger)

	loadOpts, closeFetcher, err := secretOptions(ctx, logger)
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer closeFetcher()

	cfg, err := config.Load(ctx, loadOpts...)
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	container, err := di.NewContainer(ctx, cfg, logger, di.WithBuildInfo(buildInfoFromEnv(startedAt)))
	if err != nil {
		logger.Fatal("failed to build container", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := container.Close(closeCtx); err != nil {
			logger.Warn("container close error", zap.Error(err))
		}
	}()

	router, err := buildRouter(cfg, logger, container)
	if err != nil {
		logger.Fatal("failed to build router", zap.Error(err))
	}

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErrs := make(chan error, 1)
	go func() {
		logger.Info("http server listening",
			zap.String("addr", server.Addr),
			zap.Bool("events_enabled", cfg.PubSub.Enabled()),
			zap.Bool("hook_signing", cfg.Hooks.SigningSecret != ""),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrs <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrs:
		logger.Error("http server failed", zap.Error(err))
	case sig := <-stop:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
		_ = server.Close()
	}
	logger.Info("server stopped")
}

// secretOptions wires a Secret Manager resolver into config loading when a
// project is configured. Without one, secret:// references fail at Load.
func secretOptions(ctx context.Context, logger *zap.Logger) ([]config.Option, func(), error) {
	projectID := strings.TrimSpace(os.Getenv("GIFTWRAP_SECRETS_PROJECT_ID"))
	if projectID == "" {
		projectID = strings.TrimSpace(os.Getenv("GIFTWRAP_FIRESTORE_PROJECT_ID"))
	}
	if projectID == "" {
		return nil, func() {}, nil
	}

	fetcher, err := secrets.NewFetcher(ctx, projectID, secrets.WithLogger(logger))
	if err != nil {
		return nil, nil, err
	}

	closeFetcher := func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}
	return []config.Option{
		config.WithSecretResolver(config.SecretResolverFunc(fetcher.Resolve)),
	}, closeFetcher, nil
}

func buildRouter(cfg config.Config, logger *zap.Logger, container *di.Container) (http.Handler, error) {
	sessionCfg := session.Config{
		CookieName: cfg.GiftWrap.SessionCookie,
		TTL:        cfg.GiftWrap.SessionTTL,
	}

	giftWrap := handlers.NewGiftWrapHandlers(handlers.GiftWrapHandlersDeps{
		Reconcile:  container.Services.Reconcile,
		Preference: container.Services.Preference,
		Settings:   container.Services.Settings,
		Sessions:   sessionCfg,
	})

	hooks, err := handlers.NewHookHandlers(handlers.HookHandlersDeps{
		Reconcile: container.Services.Reconcile,
		Fees:      container.Services.Fees,
		Logger:    observability.EventLogger(logger),
	})
	if err != nil {
		return nil, err
	}

	adminSettings := handlers.NewAdminSettingsHandlers(container.Services.Settings)
	adminOrders := handlers.NewAdminOrderHandlers(container.Services.Snapshots)
	health := handlers.NewHealthHandlers(container.Services.System)

	hookSignature := auth.HookSignatureMiddleware(auth.HMACConfig{
		Secret:          cfg.Hooks.SigningSecret,
		SignatureHeader: cfg.Hooks.SignatureHeader,
		TimestampHeader: cfg.Hooks.TimestampHeader,
		ClockSkew:       cfg.Hooks.ClockSkew,
	})
	if cfg.Hooks.SigningSecret == "" {
		logger.Warn("hook signature verification disabled, no signing secret configured")
	}
	hookDedup := idempotency.Middleware(container.Deliveries,
		idempotency.WithLogger(zap.NewStdLog(logger.Named("idempotency"))),
	)

	return handlers.NewRouter(
		handlers.WithMiddlewares(
			observability.InjectLoggerMiddleware(logger),
			observability.TraceMiddleware(),
			observability.RequestLoggerMiddleware(),
			observability.RecoveryMiddleware(logger),
			session.Middleware(sessionCfg),
		),
		handlers.WithHealthHandlers(health),
		handlers.WithGiftWrapRoutes(giftWrap.Routes),
		handlers.WithHookRoutes(hooks.Routes),
		handlers.WithHookMiddlewares(hookSignature, hookDedup),
		handlers.WithAdminRoutes(func(r chi.Router) {
			adminSettings.Routes(r)
			adminOrders.Routes(r)
		}),
	), nil
}

func buildInfoFromEnv(startedAt time.Time) services.BuildInfo {
	return services.BuildInfo{
		Version:     os.Getenv("GIFTWRAP_VERSION"),
		CommitSHA:   os.Getenv("GIFTWRAP_COMMIT_SHA"),
		Environment: os.Getenv("GIFTWRAP_ENVIRONMENT"),
		StartedAt:   startedAt,
	}
}
