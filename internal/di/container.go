package di

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/pubsub"
	firebase "firebase.google.com/go/v4"
	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/meridianmart/api/internal/handlers"
	"github.com/meridianmart/api/internal/payments"
	"github.com/meridianmart/api/internal/platform/auth"
	"github.com/meridianmart/api/internal/platform/config"
	pfirestore "github.com/meridianmart/api/internal/platform/firestore"
	"github.com/meridianmart/api/internal/platform/jobs"
	"github.com/meridianmart/api/internal/platform/observability"
	"github.com/meridianmart/api/internal/platform/push"
	"github.com/meridianmart/api/internal/repositories"
	firestorerepo "github.com/meridianmart/api/internal/repositories/firestore"
	"github.com/meridianmart/api/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon.
// Concrete implementations are assembled in NewContainer.
type Services struct {
	Inventory     services.InventoryService
	Coupons       services.CouponService
	Orders        services.OrderService
	Notifications services.NotificationService
}

// BuildInfo carries release metadata surfaced on /healthz.
type BuildInfo struct {
	Version     string
	CommitSHA   string
	Environment string
}

// Container wires repositories, services, and the HTTP router for runtime use.
type Container struct {
	Config       config.Config
	Logger       *zap.Logger
	Repositories repositories.Registry
	Services     Services
	Router       chi.Router

	closers []func(context.Context) error
}

// NewContainer constructs the runtime dependency graph from configuration.
// Optional integrations (push, payments, event publishing) are wired only
// when the matching feature flag enables them.
func NewContainer(ctx context.Context, cfg config.Config, logger *zap.Logger, build BuildInfo) (*Container, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Container{
		Config: cfg,
		Logger: logger,
	}

	firestoreProvider := pfirestore.NewProvider(cfg.Firestore)
	firestoreClient, err := firestoreProvider.Client(ctx)
	if err != nil {
		return nil, fmt.Errorf("initialise firestore client: %w", err)
	}
	c.closers = append(c.closers, firestoreProvider.Close)

	registry, err := firestorerepo.NewRegistry(firestoreProvider)
	if err != nil {
		c.closeQuietly(ctx)
		return nil, fmt.Errorf("initialise repositories: %w", err)
	}
	c.Repositories = registry

	firebaseVerifier, err := auth.NewFirebaseVerifier(ctx, cfg.Firebase)
	if err != nil {
		c.closeQuietly(ctx)
		return nil, fmt.Errorf("initialise firebase verifier: %w", err)
	}
	authenticator := auth.NewAuthenticator(firebaseVerifier)

	pusher, err := c.buildPushSender(ctx, cfg)
	if err != nil {
		c.closeQuietly(ctx)
		return nil, err
	}

	publisher, err := c.buildOrderEventPublisher(ctx, cfg)
	if err != nil {
		c.closeQuietly(ctx)
		return nil, err
	}

	paymentProvider, err := buildPaymentProvider(cfg, logger.Named("payments"))
	if err != nil {
		c.closeQuietly(ctx)
		return nil, err
	}

	svc, err := buildServices(registry, cfg, logger, pusher, publisher, paymentProvider)
	if err != nil {
		c.closeQuietly(ctx)
		return nil, err
	}
	c.Services = svc

	c.Router = buildRouter(cfg, logger, authenticator, svc, build, firestoreClient)
	return c, nil
}

// Close releases repository clients and messaging resources in reverse
// acquisition order.
func (c *Container) Close(ctx context.Context) error {
	if c == nil {
		return nil
	}
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *Container) closeQuietly(ctx context.Context) {
	if err := c.Close(ctx); err != nil {
		c.Logger.Warn("container cleanup error", zap.Error(err))
	}
}

func (c *Container) buildPushSender(ctx context.Context, cfg config.Config) (push.Sender, error) {
	if !cfg.Features.EnablePush {
		return nil, nil
	}

	var clientOpts []option.ClientOption
	if cfg.Firebase.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(cfg.Firebase.CredentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.Firebase.ProjectID}, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("initialise firebase app: %w", err)
	}
	sender, err := push.NewFCMSender(ctx, app)
	if err != nil {
		return nil, fmt.Errorf("initialise fcm sender: %w", err)
	}
	return sender, nil
}

func (c *Container) buildOrderEventPublisher(ctx context.Context, cfg config.Config) (services.OrderEventPublisher, error) {
	if !cfg.PubSub.EnableOrder {
		return nil, nil
	}

	client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("initialise pubsub client: %w", err)
	}
	c.closers = append(c.closers, func(context.Context) error {
		return client.Close()
	})

	topic := client.Topic(cfg.PubSub.OrderTopic)
	c.closers = append(c.closers, func(context.Context) error {
		topic.Stop()
		return nil
	})

	publisher, err := jobs.NewPubSubOrderEventPublisher(topic)
	if err != nil {
		return nil, fmt.Errorf("initialise order event publisher: %w", err)
	}
	return publisher, nil
}

func buildPaymentProvider(cfg config.Config, logger *zap.Logger) (payments.Provider, error) {
	if !cfg.Features.EnableOnlinePaying {
		return nil, nil
	}

	provider, err := payments.NewStripeProvider(payments.StripeProviderConfig{
		APIKey: cfg.Stripe.APIKey,
		Logger: zapEventLogger(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("initialise stripe provider: %w", err)
	}
	return provider, nil
}

func buildServices(
	registry repositories.Registry,
	cfg config.Config,
	logger *zap.Logger,
	pusher push.Sender,
	publisher services.OrderEventPublisher,
	paymentProvider payments.Provider,
) (Services, error) {
	var svc Services

	inventorySvc, err := services.NewInventoryService(services.InventoryServiceDeps{
		Inventory: registry.Inventory(),
		Clock:     time.Now,
		Logger:    zapEventLogger(logger.Named("inventory")),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build inventory service: %w", err)
	}
	svc.Inventory = inventorySvc

	couponSvc, err := services.NewCouponService(services.CouponServiceDeps{
		Coupons: registry.Coupons(),
		Clock:   time.Now,
		Logger:  zapEventLogger(logger.Named("coupons")),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build coupon service: %w", err)
	}
	svc.Coupons = couponSvc

	notificationSvc, err := services.NewNotificationService(services.NotificationServiceDeps{
		Notifications: registry.Notifications(),
		PushTokens:    registry.PushTokens(),
		Pusher:        pusher,
		Clock:         time.Now,
		IDGenerator:   newULID,
		Logger:        zapEventLogger(logger.Named("notifications")),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build notification service: %w", err)
	}
	svc.Notifications = notificationSvc

	orderSvc, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:       registry.Orders(),
		Catalog:      registry.Catalog(),
		Carts:        registry.Carts(),
		Coupons:      registry.Coupons(),
		Counters:     registry.Counters(),
		Inventory:    inventorySvc,
		CouponRules:  couponSvc,
		Payments:     paymentProvider,
		Notifier:     notificationSvc,
		Events:       publisher,
		NumberPrefix: cfg.Orders.NumberPrefix,
		CounterID:    cfg.Orders.CounterID,
		Clock:        time.Now,
		IDGenerator:  newULID,
		Logger:       zapEventLogger(logger.Named("orders")),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build order service: %w", err)
	}
	svc.Orders = orderSvc

	return svc, nil
}

func buildRouter(
	cfg config.Config,
	logger *zap.Logger,
	authenticator *auth.Authenticator,
	svc Services,
	build BuildInfo,
	firestoreClient *firestore.Client,
) chi.Router {
	httpLogger := logger.Named("http")
	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(httpLogger),
		observability.TraceMiddleware(traceProjectID(cfg)),
		observability.RecoveryMiddleware(httpLogger),
		observability.RequestLoggerMiddleware(traceProjectID(cfg)),
	}

	healthHandlers := handlers.NewHealthHandlers(
		handlers.WithHealthBuildInfo(handlers.BuildInfo{
			Version:     build.Version,
			CommitSHA:   build.CommitSHA,
			Environment: build.Environment,
			StartedAt:   time.Now().UTC(),
		}),
		handlers.WithHealthReadinessCheck("firestore", firestoreReadinessCheck(firestoreClient)),
	)

	orderHandlers := handlers.NewOrderHandlers(authenticator, svc.Orders,
		handlers.WithGuestCheckout(cfg.Features.EnableGuestOrders),
		handlers.WithOrderPageSizes(cfg.Orders.DefaultPageSize, cfg.Orders.MaxPageSize),
		handlers.WithCheckoutRateLimit(cfg.RateLimits.CheckoutBurst, time.Minute),
	)
	couponHandlers := handlers.NewCouponHandlers(authenticator, svc.Coupons)
	notificationHandlers := handlers.NewNotificationHandlers(authenticator, svc.Notifications)
	adminHandlers := handlers.NewAdminHandlers(authenticator, svc.Orders)

	return handlers.NewRouter(
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithOrderRoutes(orderHandlers.Routes),
		handlers.WithCouponRoutes(couponHandlers.Routes),
		handlers.WithNotificationRoutes(notificationHandlers.Routes),
		handlers.WithAdminRoutes(adminHandlers.Routes),
	)
}

func firestoreReadinessCheck(client *firestore.Client) handlers.ReadinessCheck {
	return func(ctx context.Context) error {
		if client == nil {
			return errors.New("firestore client not initialised")
		}
		iter := client.Collections(ctx)
		_, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			return nil
		}
		return err
	}
}

func traceProjectID(cfg config.Config) string {
	if cfg.Firebase.ProjectID != "" {
		return cfg.Firebase.ProjectID
	}
	return cfg.Firestore.ProjectID
}

func newULID() string {
	return ulid.Make().String()
}

func zapEventLogger(logger *zap.Logger) func(ctx context.Context, event string, fields map[string]any) {
	return func(_ context.Context, event string, fields map[string]any) {
		zFields := make([]zap.Field, 0, len(fields)+1)
		zFields = append(zFields, zap.String("event", event))
		for k, v := range fields {
			zFields = append(zFields, zap.Any(k, v))
		}
		logger.Debug(event, zFields...)
	}
}
