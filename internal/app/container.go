package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	fleetDomain "github.com/felixgeelhaar/convoy/internal/fleet/domain"
	fleetInfra "github.com/felixgeelhaar/convoy/internal/fleet/infrastructure"
	"github.com/felixgeelhaar/convoy/internal/routing/application/commands"
	"github.com/felixgeelhaar/convoy/internal/routing/application/queries"
	"github.com/felixgeelhaar/convoy/internal/routing/application/subscribers"
	"github.com/felixgeelhaar/convoy/internal/routing/infrastructure/persistence"
	sharedApplication "github.com/felixgeelhaar/convoy/internal/shared/application"
	"github.com/felixgeelhaar/convoy/internal/shared/infrastructure/crypto"
	"github.com/felixgeelhaar/convoy/internal/shared/infrastructure/database"
	_ "github.com/felixgeelhaar/convoy/internal/shared/infrastructure/database/postgres" // Register PostgreSQL driver
	_ "github.com/felixgeelhaar/convoy/internal/shared/infrastructure/database/sqlite"   // Register SQLite driver
	"github.com/felixgeelhaar/convoy/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/convoy/internal/shared/infrastructure/locking"
	"github.com/felixgeelhaar/convoy/internal/shared/infrastructure/migrations"
	"github.com/felixgeelhaar/convoy/internal/shared/infrastructure/outbox"
	"github.com/felixgeelhaar/convoy/internal/shared/infrastructure/resilience"
	"github.com/felixgeelhaar/convoy/pkg/config"
	"github.com/felixgeelhaar/convoy/pkg/observability"
)

// Container holds all application dependencies.
type Container struct {
	Config  *config.Config
	Logger  *slog.Logger
	Metrics *observability.InMemoryMetrics
	Health  *observability.HealthRegistry

	// Infrastructure
	DB          database.Connection
	RedisClient redis.UniversalClient
	Locker      locking.Locker
	UnitOfWork  sharedApplication.UnitOfWork

	// Repositories
	RouteRepo  *persistence.RouteRepository
	SeriesRepo *persistence.SeriesRepository
	OutboxRepo outbox.Repository

	// Fleet. FleetStore is always the local tables; Fleet is what commands
	// validate against and may be the remote service.
	FleetStore *fleetInfra.SQLDirectory
	Fleet      fleetDomain.Directory

	// Events. LocalBus is set when no broker is configured; it is then also
	// the publisher and delivers absence cancellations in process.
	Publisher eventbus.Publisher
	LocalBus  *eventbus.InProcessEventBus

	Presenter *queries.Presenter
	Writer    *commands.RouteWriter

	// Route command handlers
	CreateRouteHandler       *commands.CreateRouteHandler
	ReorderStopsHandler      *commands.ReorderStopsHandler
	ChangeRouteStatusHandler *commands.ChangeRouteStatusHandler
	RecordStopOutcomeHandler *commands.RecordStopOutcomeHandler
	CancelStopHandler        *commands.CancelStopHandler
	ReassignDriverHandler    *commands.ReassignDriverHandler
	ReassignVehicleHandler   *commands.ReassignVehicleHandler
	CreateSeriesHandler      *commands.CreateSeriesHandler
	DeleteRouteHandler       *commands.DeleteRouteHandler
	ClearReviewFlagHandler   *commands.ClearReviewFlagHandler
	PropagateAbsenceHandler  *commands.PropagateAbsenceCancellationHandler

	// Route query handlers
	GetRouteHandler         *queries.GetRouteHandler
	GetDelaySummaryHandler  *queries.GetDelaySummaryHandler
	ListRoutesByDateHandler *queries.ListRoutesByDateHandler
	ListReviewFlagsHandler  *queries.ListReviewFlagsHandler

	AbsenceSubscriber *subscribers.AbsenceSubscriber

	closers []func() error
}

// NewContainer connects to the configured backends, runs migrations and wires
// every handler. In local mode it needs nothing but a writable SQLite path.
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Container{
		Config:  cfg,
		Logger:  logger,
		Metrics: observability.NewInMemoryMetrics(),
		Health:  observability.NewHealthRegistry(0),
	}

	if err := c.initDatabase(ctx); err != nil {
		return nil, err
	}
	if err := c.initLocker(ctx); err != nil {
		c.Close()
		return nil, err
	}
	if err := c.initRepositories(); err != nil {
		c.Close()
		return nil, err
	}
	c.initFleet(ctx)
	if err := c.initPublisher(); err != nil {
		c.Close()
		return nil, err
	}
	c.initHandlers()

	if c.LocalBus != nil {
		c.LocalBus.RegisterConsumer(c.AbsenceSubscriber)
	}

	logger.Info("container ready",
		"driver", c.DB.Driver(),
		"local_mode", cfg.LocalMode(),
		"redis_locks", c.RedisClient != nil,
		"broker", c.LocalBus == nil,
		"remote_fleet", cfg.FleetDirectoryURL != "",
	)
	return c, nil
}

func (c *Container) initDatabase(ctx context.Context) error {
	driver := database.Driver(c.Config.DatabaseDriver)
	if c.Config.DatabaseURL == "" {
		driver = database.DriverSQLite
	}
	conn, err := database.NewConnection(ctx, database.Config{
		Driver:     driver,
		URL:        c.Config.DatabaseURL,
		SQLitePath: c.Config.SQLitePath,
		MaxConns:   c.Config.DatabaseMaxConns,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	c.DB = conn
	c.closers = append(c.closers, conn.Close)

	if err := migrations.Run(ctx, conn); err != nil {
		c.Close()
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	c.Health.Register("database", observability.DatabaseHealthChecker(conn.Ping))
	c.Logger.Info("connected to database", "driver", conn.Driver())
	return nil
}

// initLocker uses Redis when configured. A configured but unreachable Redis is
// fatal outside development, since two replicas would then race on routes.
func (c *Container) initLocker(ctx context.Context) error {
	if c.Config.RedisURL == "" {
		c.Locker = locking.NewInMemoryLocker()
		return nil
	}

	opt, err := redis.ParseURL(c.Config.RedisURL)
	if err != nil {
		return fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		if !c.Config.IsDevelopment() {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		c.Logger.Warn("Redis not available, route locks are process local", "error", err)
		c.Locker = locking.NewInMemoryLocker()
		return nil
	}

	c.RedisClient = client
	c.closers = append(c.closers, client.Close)
	c.Locker = locking.NewRedisLocker(client)
	c.Health.Register("redis", observability.RedisHealthChecker(func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}))
	c.Logger.Info("connected to Redis")
	return nil
}

func (c *Container) initRepositories() error {
	sealer, err := crypto.NewFieldSealer(c.Config.EncryptionKey)
	if err != nil {
		return fmt.Errorf("invalid CONVOY_ENCRYPTION_KEY: %w", err)
	}

	c.RouteRepo = persistence.NewRouteRepository(c.DB, persistence.WithContactEncryption(sealer))
	c.SeriesRepo = persistence.NewSeriesRepository(c.DB)
	c.OutboxRepo = outbox.NewSQLRepository(c.DB)
	c.UnitOfWork = database.NewUnitOfWork(c.DB)
	c.FleetStore = fleetInfra.NewSQLDirectory(c.DB)
	return nil
}

func (c *Container) initFleet(ctx context.Context) {
	if c.Config.FleetDirectoryURL == "" {
		c.Fleet = c.FleetStore
		return
	}

	breaker := resilience.DefaultBreakerConfig()
	breaker.FailureThreshold = uint32(max(c.Config.FleetBreakerMaxFailures, 1))
	breaker.Timeout = c.Config.FleetBreakerTimeout
	remote := fleetInfra.NewHTTPDirectory(ctx, fleetInfra.HTTPDirectoryConfig{
		BaseURL:      c.Config.FleetDirectoryURL,
		ClientID:     c.Config.FleetClientID,
		ClientSecret: c.Config.FleetClientSecret,
		TokenURL:     c.Config.FleetTokenURL,
		Scopes:       c.Config.FleetScopes,
		Breaker:      breaker,
	}, c.Logger, c.Metrics)
	c.Fleet = remote
	c.Health.Register("fleet", observability.BreakerHealthChecker(remote.BreakerState))
}

func (c *Container) initPublisher() error {
	if c.Config.RabbitMQURL == "" {
		c.LocalBus = eventbus.NewInProcessEventBus(c.Logger)
		c.Publisher = c.LocalBus
		return nil
	}

	publisher, err := eventbus.NewRabbitMQPublisher(c.Config.RabbitMQURL, c.Logger)
	if err != nil {
		if !c.Config.IsDevelopment() {
			return err
		}
		c.Logger.Warn("RabbitMQ not available, events stay in the outbox", "error", err)
		c.Publisher = eventbus.NewNoopPublisher(c.Logger)
		return nil
	}
	c.Publisher = publisher
	c.closers = append(c.closers, publisher.Close)
	c.Health.Register("rabbitmq", observability.RabbitMQHealthChecker(publisher.Ping))
	return nil
}

func (c *Container) initHandlers() {
	cfg := c.Config
	c.Presenter = queries.NewPresenter(c.Fleet, cfg.DelayThreshold, nil, c.Logger)
	c.Writer = commands.NewRouteWriter(c.RouteRepo, c.OutboxRepo, c.UnitOfWork, c.Locker,
		commands.WithOptions(commands.Options{
			AutoCompleteRoutes: cfg.AutoCompleteRoutes,
			LockTTL:            cfg.RouteLockTTL,
		}),
		commands.WithLogger(c.Logger),
		commands.WithMetrics(c.Metrics),
	)

	c.CreateRouteHandler = commands.NewCreateRouteHandler(c.Writer, c.Fleet, c.Presenter)
	c.ReorderStopsHandler = commands.NewReorderStopsHandler(c.Writer, c.Presenter)
	c.ChangeRouteStatusHandler = commands.NewChangeRouteStatusHandler(c.Writer, c.Presenter)
	c.RecordStopOutcomeHandler = commands.NewRecordStopOutcomeHandler(c.Writer, c.Presenter)
	c.CancelStopHandler = commands.NewCancelStopHandler(c.Writer, c.Presenter)
	c.ReassignDriverHandler = commands.NewReassignDriverHandler(c.Writer, c.Fleet, c.Presenter)
	c.ReassignVehicleHandler = commands.NewReassignVehicleHandler(c.Writer, c.Fleet, c.Presenter)
	c.CreateSeriesHandler = commands.NewCreateSeriesHandler(c.Writer, c.SeriesRepo)
	c.DeleteRouteHandler = commands.NewDeleteRouteHandler(c.Writer)
	c.ClearReviewFlagHandler = commands.NewClearReviewFlagHandler(c.Writer)
	c.PropagateAbsenceHandler = commands.NewPropagateAbsenceCancellationHandler(c.Writer)

	c.GetRouteHandler = queries.NewGetRouteHandler(c.RouteRepo, c.Presenter)
	c.GetDelaySummaryHandler = queries.NewGetDelaySummaryHandler(c.RouteRepo, c.Presenter)
	c.ListRoutesByDateHandler = queries.NewListRoutesByDateHandler(c.RouteRepo, c.Presenter)
	c.ListReviewFlagsHandler = queries.NewListReviewFlagsHandler(c.RouteRepo)

	c.AbsenceSubscriber = subscribers.NewAbsenceSubscriber(c.PropagateAbsenceHandler, c.Logger, c.Metrics)
}

// OutboxProcessor builds the relay from the outbox to the configured publisher.
func (c *Container) OutboxProcessor() *outbox.Processor {
	cfg := outbox.DefaultProcessorConfig()
	cfg.PollInterval = c.Config.OutboxPollInterval
	cfg.BatchSize = c.Config.OutboxBatchSize
	cfg.MaxRetries = c.Config.OutboxMaxRetries
	cfg.RetentionDays = c.Config.OutboxRetentionDays
	return outbox.NewProcessor(c.OutboxRepo, c.Publisher, cfg, c.Logger).WithMetrics(c.Metrics)
}

// AbsenceConsumer subscribes the absence queue on the broker. In local mode
// there is no broker and it returns nil; the in-process bus already carries
// the subscription.
func (c *Container) AbsenceConsumer() (eventbus.Consumer, error) {
	if c.LocalBus != nil {
		return nil, nil
	}
	consumer, err := eventbus.NewRabbitMQConsumer(eventbus.RabbitMQConsumerConfig{
		URL:       c.Config.RabbitMQURL,
		QueueName: c.Config.AbsenceQueue,
		Logger:    c.Logger,
	}, eventbus.NewConsumerRegistry(c.Logger))
	if err != nil {
		return nil, err
	}
	consumer.RegisterConsumer(c.AbsenceSubscriber)
	c.closers = append(c.closers, consumer.Close)
	c.Health.Register("rabbitmq_consumer", observability.RabbitMQHealthChecker(consumer.Ping))
	return consumer, nil
}

// Close releases connections in reverse order of creation.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			c.Logger.Warn("error during shutdown", "error", err)
		}
	}
	c.closers = nil
}
