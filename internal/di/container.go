package di

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/snackhouse/api/internal/catalog"
	"github.com/snackhouse/api/internal/payments"
	"github.com/snackhouse/api/internal/platform/config"
	"github.com/snackhouse/api/internal/repositories"
	"github.com/snackhouse/api/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon. Concrete implementations
// are assembled via dependency injection in NewContainer.
type Services struct {
	Orders   services.OrderService
	Statuses services.StatusService
	Webhooks services.WebhookService
	System   services.SystemService
}

// Container wires repositories, services, and background infrastructure for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
}

// Option overrides a dependency that the container would otherwise build from configuration.
type Option func(*containerDeps)

type containerDeps struct {
	catalog  catalog.Gateway
	payments payments.Provider
	events   services.OrderEventPublisher
	logger   *zap.Logger
}

// WithCatalogGateway injects a pre-built product catalog gateway.
func WithCatalogGateway(gateway catalog.Gateway) Option {
	return func(d *containerDeps) {
		d.catalog = gateway
	}
}

// WithPaymentProvider injects a pre-built payment provider.
func WithPaymentProvider(provider payments.Provider) Option {
	return func(d *containerDeps) {
		d.payments = provider
	}
}

// WithEventPublisher injects the publisher used for order lifecycle events.
func WithEventPublisher(publisher services.OrderEventPublisher) Option {
	return func(d *containerDeps) {
		d.events = publisher
	}
}

// WithLogger supplies the logger forwarded to the service layer.
func WithLogger(logger *zap.Logger) Option {
	return func(d *containerDeps) {
		d.logger = logger
	}
}

// NewContainer constructs the runtime dependencies. Production wiring provides the
// Firestore-backed registry, while tests can supply in-memory implementations.
func NewContainer(ctx context.Context, cfg config.Config, reg repositories.Registry, opts ...Option) (*Container, error) {
	if reg == nil {
		return nil, errors.New("repositories registry is required")
	}

	deps := containerDeps{}
	for _, opt := range opts {
		if opt != nil {
			opt(&deps)
		}
	}

	svc, err := buildServices(ctx, reg, cfg, deps)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       cfg,
		Repositories: reg,
		Services:     svc,
	}, nil
}

// Close releases resources such as repository clients, background workers, or caches.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func buildServices(_ context.Context, reg repositories.Registry, cfg config.Config, deps containerDeps) (Services, error) {
	var svc Services

	eventLogger := zapEventLogger(deps.logger)

	statusSvc, err := services.NewStatusService(services.StatusServiceDeps{
		Statuses: reg.OrderStatuses(),
		Counters: reg.Counters(),
		Clock:    time.Now,
		Logger:   eventLogger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build status service: %w", err)
	}
	svc.Statuses = statusSvc

	catalogGateway := deps.catalog
	if catalogGateway == nil && cfg.Catalog.BaseURL != "" {
		catalogGateway, err = catalog.NewHTTPGateway(cfg.Catalog.BaseURL, cfg.Catalog.APIKey,
			catalog.WithHTTPClient(&http.Client{Timeout: cfg.Catalog.Timeout}))
		if err != nil {
			return Services{}, fmt.Errorf("build catalog gateway: %w", err)
		}
	}
	if catalogGateway == nil {
		return Services{}, errors.New("catalog gateway is required")
	}

	paymentProvider := deps.payments
	if paymentProvider == nil && cfg.Payments.BaseURL != "" {
		paymentProvider, err = payments.NewHTTPProvider(cfg.Payments.BaseURL, cfg.Payments.APIKey,
			payments.WithHTTPClient(&http.Client{Timeout: cfg.Payments.Timeout}))
		if err != nil {
			return Services{}, fmt.Errorf("build payment provider: %w", err)
		}
	}
	if paymentProvider == nil {
		return Services{}, errors.New("payment provider is required")
	}

	orderSvc, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:   reg.Orders(),
		Counters: reg.Counters(),
		Statuses: statusSvc,
		Catalog:  catalogGateway,
		Payments: paymentProvider,
		Settings: services.PaymentSettings{
			Currency:        cfg.Payments.Currency,
			NotificationURL: cfg.Payments.NotificationURL,
		},
		UnitOfWork: reg,
		Clock:      time.Now,
		Events:     deps.events,
		Logger:     eventLogger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build order service: %w", err)
	}
	svc.Orders = orderSvc

	webhookSvc, err := services.NewWebhookService(services.WebhookServiceDeps{
		Orders:       reg.Orders(),
		OrderService: orderSvc,
		Logger:       eventLogger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build webhook service: %w", err)
	}
	svc.Webhooks = webhookSvc

	if healthRepo := reg.Health(); healthRepo != nil {
		systemSvc, err := services.NewSystemService(services.SystemServiceDeps{
			HealthRepository: healthRepo,
			Clock:            time.Now,
			Build: services.BuildInfo{
				Environment: environmentLabel(cfg),
				StartedAt:   time.Now().UTC(),
			},
		})
		if err != nil {
			return Services{}, fmt.Errorf("build system service: %w", err)
		}
		svc.System = systemSvc
	}

	return svc, nil
}

func environmentLabel(cfg config.Config) string {
	if cfg.Firestore.EmulatorHost != "" {
		return "local"
	}
	return "production"
}

func zapEventLogger(logger *zap.Logger) func(ctx context.Context, event string, fields map[string]any) {
	if logger == nil {
		return nil
	}
	return func(_ context.Context, event string, fields map[string]any) {
		zapFields := make([]zap.Field, 0, len(fields))
		for key, value := range fields {
			zapFields = append(zapFields, zap.Any(key, value))
		}
		logger.Info(event, zapFields...)
	}
}
