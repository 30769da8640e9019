package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"

	"github.com/snackhouse/api/internal/di"
	"github.com/snackhouse/api/internal/handlers"
	"github.com/snackhouse/api/internal/platform/auth"
	"github.com/snackhouse/api/internal/platform/config"
	"github.com/snackhouse/api/internal/platform/events"
	pfirestore "github.com/snackhouse/api/internal/platform/firestore"
	"github.com/snackhouse/api/internal/platform/observability"
	"github.com/snackhouse/api/internal/repositories"
	firestoreRepo "github.com/snackhouse/api/internal/repositories/firestore"
	"github.com/snackhouse/api/internal/services"
)

func main() {
	ctx := context.Background()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = observability.WithLogger(ctx, logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	firestoreProvider := pfirestore.NewProvider(cfg.Firestore)
	firestoreClient, err := firestoreProvider.Client(ctx)
	if err != nil {
		logger.Fatal("failed to initialise firestore client", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := firestoreProvider.Close(closeCtx); err != nil {
			logger.Warn("firestore close error", zap.Error(err))
		}
	}()

	var (
		pubsubClient *pubsub.Client
		orderTopic   *pubsub.Topic
		publisher    services.OrderEventPublisher
	)
	if cfg.PubSub.ProjectID != "" && cfg.PubSub.OrderTopic != "" {
		pubsubClient, err = pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			logger.Fatal("failed to initialise pubsub client", zap.Error(err))
		}
		defer func() {
			if err := pubsubClient.Close(); err != nil {
				logger.Warn("pubsub close error", zap.Error(err))
			}
		}()

		orderTopic = pubsubClient.Topic(cfg.PubSub.OrderTopic)
		defer orderTopic.Stop()

		publisher, err = events.NewPubSubOrderPublisher(orderTopic)
		if err != nil {
			logger.Fatal("failed to initialise order event publisher", zap.Error(err))
		}
	} else {
		logger.Warn("pubsub not configured; order events will not be published")
	}

	healthRepo, err := newHealthRepository(firestoreClient, orderTopic)
	if err != nil {
		logger.Fatal("failed to initialise health repository", zap.Error(err))
	}

	registry, err := firestoreRepo.NewRegistry(firestoreProvider,
		firestoreRepo.WithHealthRepository(healthRepo))
	if err != nil {
		logger.Fatal("failed to initialise repositories", zap.Error(err))
	}

	container, err := di.NewContainer(ctx, cfg, registry,
		di.WithLogger(logger.Named("services")),
		di.WithEventPublisher(publisher),
	)
	if err != nil {
		logger.Fatal("failed to build service container", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := container.Close(closeCtx); err != nil {
			logger.Warn("container close error", zap.Error(err))
		}
	}()

	seedCtx, seedCancel := context.WithTimeout(ctx, 30*time.Second)
	if err := container.Services.Statuses.Seed(seedCtx); err != nil {
		seedCancel()
		logger.Fatal("failed to seed status catalog", zap.Error(err))
	}
	seedCancel()

	authenticator, err := auth.NewAuthenticator(cfg.Security.JWTSecret,
		auth.WithIssuer(cfg.Security.JWTIssuer),
		auth.WithAnonymousAccess(cfg.Security.AllowAnonymous),
	)
	if err != nil {
		logger.Fatal("failed to initialise authenticator", zap.Error(err))
	}

	orderHandlers := handlers.NewOrderHandlers(authenticator, container.Services.Orders)
	statusHandlers := handlers.NewStatusHandlers(authenticator, container.Services.Statuses)

	webhookLimiter := handlers.NewRateLimiter(cfg.RateLimits.WebhookBurst, time.Minute, nil)
	webhookHandlers := handlers.NewWebhookHandlers(container.Services.Webhooks, webhookLimiter)

	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.TraceMiddleware(cfg.Firestore.ProjectID),
		observability.RecoveryMiddleware(logger.Named("http")),
		observability.RequestLoggerMiddleware(cfg.Firestore.ProjectID),
		observability.MetricsMiddleware(),
		handlers.ThrottleMiddleware(handlers.NewRateLimiter(cfg.RateLimits.DefaultPerMinute, time.Minute, nil)),
		authenticator.Middleware(),
	}

	opts := []handlers.Option{
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(handlers.NewHealthHandlers(container.Services.System)),
		handlers.WithOrderRoutes(orderHandlers.Routes),
		handlers.WithStatusRoutes(statusHandlers.Routes),
		handlers.WithWebhookRoutes(webhookHandlers.Routes),
	}
	if cfg.Security.WebhookAPIKey != "" {
		opts = append(opts, handlers.WithWebhookMiddlewares(auth.RequireAPIKey(cfg.Security.WebhookAPIKey)))
	}

	router := handlers.NewRouter(opts...)
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("snackhouse api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func newHealthRepository(client *firestore.Client, topic *pubsub.Topic) (repositories.HealthRepository, error) {
	checks := make([]repositories.DependencyCheck, 0, 2)
	if client != nil {
		c := client
		checks = append(checks, repositories.DependencyCheck{
			Name:    "firestore",
			Timeout: 1500 * time.Millisecond,
			Check: func(ctx context.Context) error {
				iter := c.Collections(ctx)
				_, err := iter.Next()
				if errors.Is(err, iterator.Done) {
					return nil
				}
				return err
			},
		})
	}
	if topic != nil {
		t := topic
		checks = append(checks, repositories.DependencyCheck{
			Name:    "pubsub",
			Timeout: time.Second,
			Check: func(ctx context.Context) error {
				exists, err := t.Exists(ctx)
				if err != nil {
					return err
				}
				if !exists {
					return fmt.Errorf("topic %s does not exist", t.ID())
				}
				return nil
			},
		})
	}
	if len(checks) == 0 {
		return nil, errors.New("health: no dependency checks configured")
	}
	return repositories.NewDependencyHealthRepository(checks)
}
