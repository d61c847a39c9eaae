package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"

	"github.com/eva-commerce/giftwrap/internal/platform/config"
	pfirestore "github.com/eva-commerce/giftwrap/internal/platform/firestore"
	"github.com/eva-commerce/giftwrap/internal/platform/idempotency"
	"github.com/eva-commerce/giftwrap/internal/platform/jobs"
	"github.com/eva-commerce/giftwrap/internal/platform/observability"
	"github.com/eva-commerce/giftwrap/internal/repositories"
	fsrepo "github.com/eva-commerce/giftwrap/internal/repositories/firestore"
	"github.com/eva-commerce/giftwrap/internal/services"
)

const dependencyProbeTimeout = 3 * time.Second

// Repositories bundles the persistence contracts the service layer relies upon.
type Repositories struct {
	Settings  repositories.SettingsRepository
	Sessions  repositories.SessionRepository
	Snapshots repositories.OrderSnapshotRepository
	Health    repositories.HealthRepository
}

// Services bundles the service-layer contracts that handlers rely upon. Concrete
// implementations are assembled via dependency injection in NewContainer.
type Services struct {
	Settings   services.SettingsService
	Preference services.PreferenceService
	Fees       services.FeeService
	Snapshots  services.OrderSnapshotService
	Reconcile  services.ReconcileService
	System     services.SystemService
}

// Container wires repositories, services, and background infrastructure for runtime use.
type Container struct {
	Config       config.Config
	Logger       *zap.Logger
	Repositories Repositories
	Services     Services

	// Deliveries deduplicates host hook deliveries by delivery identifier.
	Deliveries idempotency.Store

	firestore    *pfirestore.Provider
	pubsubClient *pubsub.Client
	pubsubTopic  *pubsub.Topic
}

// Option customises container construction.
type Option func(*containerOptions)

type containerOptions struct {
	build services.BuildInfo
}

// WithBuildInfo attaches build metadata exposed through the health endpoints.
func WithBuildInfo(build services.BuildInfo) Option {
	return func(o *containerOptions) {
		o.build = build
	}
}

// NewContainer constructs the runtime dependencies from configuration. The
// Firestore project is required; Pub/Sub publishing is optional and skipped
// when no topic is configured.
func NewContainer(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (*Container, error) {
	if cfg.Firestore.ProjectID == "" {
		return nil, errors.New("firestore project id is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var options containerOptions
	for _, opt := range opts {
		opt(&options)
	}

	c := &Container{
		Config:    cfg,
		Logger:    logger,
		firestore: pfirestore.NewProvider(cfg.Firestore),
	}

	if err := c.buildRepositories(); err != nil {
		c.closeQuietly(ctx)
		return nil, err
	}

	firestoreClient, err := c.firestore.Client(ctx)
	if err != nil {
		c.closeQuietly(ctx)
		return nil, fmt.Errorf("dial firestore: %w", err)
	}
	c.Deliveries = idempotency.NewFirestoreStore(firestoreClient)

	publisher, err := c.buildPublisher(ctx)
	if err != nil {
		c.closeQuietly(ctx)
		return nil, err
	}

	if err := c.buildServices(publisher, options.build); err != nil {
		c.closeQuietly(ctx)
		return nil, err
	}

	return c, nil
}

// Close releases the Firestore and Pub/Sub clients, flushing pending publishes.
func (c *Container) Close(ctx context.Context) error {
	if c == nil {
		return nil
	}

	var errs []error
	if c.pubsubTopic != nil {
		c.pubsubTopic.Stop()
	}
	if c.pubsubClient != nil {
		if err := c.pubsubClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pubsub client: %w", err))
		}
	}
	if c.firestore != nil {
		if err := c.firestore.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close firestore provider: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (c *Container) closeQuietly(ctx context.Context) {
	if err := c.Close(ctx); err != nil {
		c.Logger.Warn("container cleanup failed", zap.Error(err))
	}
}

func (c *Container) buildRepositories() error {
	settingsRepo, err := fsrepo.NewSettingsRepository(c.firestore)
	if err != nil {
		return fmt.Errorf("build settings repository: %w", err)
	}
	sessionRepo, err := fsrepo.NewSessionRepository(c.firestore)
	if err != nil {
		return fmt.Errorf("build session repository: %w", err)
	}
	snapshotRepo, err := fsrepo.NewOrderSnapshotRepository(c.firestore)
	if err != nil {
		return fmt.Errorf("build order snapshot repository: %w", err)
	}

	c.Repositories = Repositories{
		Settings:  settingsRepo,
		Sessions:  sessionRepo,
		Snapshots: snapshotRepo,
	}
	return nil
}

func (c *Container) buildPublisher(ctx context.Context) (services.EventPublisher, error) {
	if !c.Config.PubSub.Enabled() {
		return nil, nil
	}

	client, err := pubsub.NewClient(ctx, c.Config.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("build pubsub client: %w", err)
	}
	c.pubsubClient = client
	c.pubsubTopic = client.Topic(c.Config.PubSub.Topic)

	publisher, err := jobs.NewPubSubEventPublisher(c.pubsubTopic)
	if err != nil {
		return nil, fmt.Errorf("build event publisher: %w", err)
	}
	return publisher, nil
}

func (c *Container) buildServices(publisher services.EventPublisher, build services.BuildInfo) error {
	eventLog := observability.EventLogger(c.Logger)

	settingsSvc, err := services.NewSettingsService(services.SettingsServiceDeps{
		Repository: c.Repositories.Settings,
		Currency:   c.Config.GiftWrap.Currency,
		Locale:     c.Config.GiftWrap.Locale,
		Logger:     eventLog,
	})
	if err != nil {
		return fmt.Errorf("build settings service: %w", err)
	}

	preferenceSvc, err := services.NewPreferenceService(services.PreferenceServiceDeps{
		Repository: c.Repositories.Sessions,
		Logger:     eventLog,
	})
	if err != nil {
		return fmt.Errorf("build preference service: %w", err)
	}

	feeSvc, err := services.NewFeeService(services.FeeServiceDeps{
		Settings:   settingsSvc,
		Preference: preferenceSvc,
		Logger:     eventLog,
	})
	if err != nil {
		return fmt.Errorf("build fee service: %w", err)
	}

	snapshotSvc, err := services.NewOrderSnapshotService(services.OrderSnapshotServiceDeps{
		Repository: c.Repositories.Snapshots,
		Logger:     eventLog,
	})
	if err != nil {
		return fmt.Errorf("build order snapshot service: %w", err)
	}

	reconcileSvc, err := services.NewReconcileService(services.ReconcileServiceDeps{
		Preference: preferenceSvc,
		Fees:       feeSvc,
		Snapshots:  snapshotSvc,
		Events:     publisher,
		Logger:     eventLog,
	})
	if err != nil {
		return fmt.Errorf("build reconcile service: %w", err)
	}

	healthRepo, err := repositories.NewDependencyHealthRepository(c.healthChecks())
	if err != nil {
		return fmt.Errorf("build health repository: %w", err)
	}
	c.Repositories.Health = healthRepo

	systemSvc, err := services.NewSystemService(services.SystemServiceDeps{
		HealthRepository: healthRepo,
		Build:            build,
	})
	if err != nil {
		return fmt.Errorf("build system service: %w", err)
	}

	c.Services = Services{
		Settings:   settingsSvc,
		Preference: preferenceSvc,
		Fees:       feeSvc,
		Snapshots:  snapshotSvc,
		Reconcile:  reconcileSvc,
		System:     systemSvc,
	}
	return nil
}

func (c *Container) healthChecks() []repositories.DependencyCheck {
	checks := []repositories.DependencyCheck{
		{
			Name:    "firestore",
			Timeout: dependencyProbeTimeout,
			Check: func(ctx context.Context) error {
				_, err := c.firestore.Client(ctx)
				return err
			},
		},
	}

	if c.pubsubTopic != nil {
		topic := c.pubsubTopic
		checks = append(checks, repositories.DependencyCheck{
			Name:    "pubsub",
			Timeout: dependencyProbeTimeout,
			Check: func(ctx context.Context) error {
				exists, err := topic.Exists(ctx)
				if err != nil {
					return err
				}
				if !exists {
					return fmt.Errorf("topic %q does not exist", topic.ID())
				}
				return nil
			},
		})
	}

	return checks
}
