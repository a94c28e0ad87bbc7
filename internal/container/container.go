package container

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/garyjia/procurement-hub/internal/application/dispatcher"
	"github.com/garyjia/procurement-hub/internal/application/port"
	"github.com/garyjia/procurement-hub/internal/application/service"
	"github.com/garyjia/procurement-hub/internal/application/workflow"
	"github.com/garyjia/procurement-hub/internal/infrastructure/messaging"
	"github.com/garyjia/procurement-hub/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/procurement-hub/internal/infrastructure/worker"
	httpapi "github.com/garyjia/procurement-hub/internal/interfaces/http"
	"github.com/garyjia/procurement-hub/pkg/database"
	"go.uber.org/zap"
)

// Container manages all application dependencies and lifecycle.
// It follows Clean Architecture principles with ordered initialization
// and reverse-order teardown.
type Container struct {
	config *Config
	logger *zap.Logger

	// Infrastructure - Data
	database     *database.DB
	db           *sqlite.DB
	repositories *RepositoryBundle

	// Infrastructure - External
	publisher *messaging.KafkaPublisher
	messenger port.MessageSender

	// Infrastructure - Storage
	fileStorage port.FileStorage

	// Application
	dispatcher dispatcher.Dispatcher
	engine     workflow.TransitionEngine
	services   *ServiceBundle

	// Workers
	workers *worker.WorkerManager

	// Interfaces
	server *httpapi.Server

	// Lifecycle
	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
	ready  atomic.Bool
	closed atomic.Bool
}

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	PurchaseOrder port.PurchaseOrderRepository
	LineItem      port.LineItemRepository
	Approval      port.ApprovalRepository
	StatusEvent   port.StatusEventRepository
}

// ServiceBundle groups all application services.
// Notification is nil when Lark is not configured.
type ServiceBundle struct {
	PurchaseOrder service.PurchaseOrderService
	Export        service.ExportService
	Notification  service.NotificationService
}

// HealthStatus represents the health of all components.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Container{
		config: cfg,
		logger: logger,
	}, nil
}

// Start initializes all components and begins processing.
// Components are initialized in dependency order:
// 1. Database and repositories
// 2. External clients (Kafka, Lark)
// 3. Storage
// 4. Event dispatcher and transition engine
// 5. Application services and event subscriptions
// 6. Workers
// 7. HTTP server (built, not listening)
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}

	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.ctx, c.cancel = context.WithCancel(ctx)
	c.logger.Info("Starting container initialization")

	if err := c.initDatabase(ctx); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.logger.Info("Database initialized")

	if err := c.initExternalClients(); err != nil {
		c.teardown()
		return fmt.Errorf("failed to initialize external clients: %w", err)
	}
	c.logger.Info("External clients initialized",
		zap.Bool("kafka", c.publisher != nil),
		zap.Bool("lark", c.messenger != nil))

	c.fileStorage = ProvideStorage(&c.config.Storage, c.logger)
	c.logger.Info("Storage initialized", zap.Bool("archiving", c.fileStorage != nil))

	if err := c.initDispatcherAndWorkflow(); err != nil {
		c.teardown()
		return fmt.Errorf("failed to initialize dispatcher and workflow: %w", err)
	}
	c.logger.Info("Dispatcher and transition engine initialized")

	if err := c.initServices(); err != nil {
		c.teardown()
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	c.logger.Info("Application services initialized")

	if err := c.initWorkers(); err != nil {
		c.teardown()
		return fmt.Errorf("failed to initialize workers: %w", err)
	}
	c.logger.Info("Workers initialized and started", zap.Strings("workers", c.workers.Names()))

	server, err := ProvideHTTPServer(&c.config.Server, c.services, c.logger)
	if err != nil {
		c.teardown()
		return fmt.Errorf("failed to initialize http server: %w", err)
	}
	c.server = server

	c.ready.Store(true)
	c.logger.Info("Container started successfully")

	return nil
}

// Close gracefully shuts down all components in reverse order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")

	errs := c.teardown()

	c.closed.Store(true)
	c.ready.Store(false)

	if len(errs) > 0 {
		c.logger.Error("Container closed with errors", zap.Int("error_count", len(errs)))
		return fmt.Errorf("container closed with %d errors", len(errs))
	}

	c.logger.Info("Container closed successfully")
	return nil
}

type shutdownStep struct {
	name  string
	close func() error
}

// teardown releases whatever has been initialized so far. Workers stop
// first so no scan dispatches into a closed dispatcher, and the dispatcher
// drains in-flight handlers before the publisher and database go away.
func (c *Container) teardown() []error {
	if c.cancel != nil {
		c.cancel()
	}

	var steps []shutdownStep
	add := func(name string, fn func() error) {
		steps = append(steps, shutdownStep{name: name, close: fn})
	}

	if c.workers != nil {
		add("workers", c.workers.StopAll)
	}
	if c.dispatcher != nil {
		add("dispatcher", c.dispatcher.Close)
	}
	if c.publisher != nil {
		add("kafka publisher", c.publisher.Close)
	}
	if c.database != nil {
		add("database", c.database.Close)
	}

	var errs []error
	for _, step := range steps {
		if err := step.close(); err != nil {
			c.logger.Error("Shutdown step failed", zap.String("component", step.name), zap.Error(err))
			errs = append(errs, fmt.Errorf("close %s: %w", step.name, err))
			continue
		}
		c.logger.Info("Component closed", zap.String("component", step.name))
	}

	c.workers = nil
	c.dispatcher = nil
	c.publisher = nil
	c.database = nil
	return errs
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

var notInitialized = ComponentHealth{Healthy: false, Message: "not initialized"}

// Health reports each component. Kafka and Lark are optional and count as
// healthy when switched off.
func (c *Container) Health() *HealthStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	components := map[string]ComponentHealth{
		"database":   notInitialized,
		"workers":    notInitialized,
		"dispatcher": notInitialized,
		"kafka":      optionalComponent(c.publisher != nil),
		"lark":       optionalComponent(c.messenger != nil),
	}

	if c.database != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := c.database.PingContext(ctx); err != nil {
			components["database"] = ComponentHealth{Message: fmt.Sprintf("ping failed: %v", err)}
		} else {
			components["database"] = ComponentHealth{Healthy: true}
		}
	}

	if c.workers != nil {
		components["workers"] = ComponentHealth{
			Healthy: c.workers.IsRunning(),
			Message: fmt.Sprintf("workers: %v", c.workers.Status()),
		}
	}

	if c.dispatcher != nil {
		stats := dispatcher.StatsOf(c.dispatcher)
		components["dispatcher"] = ComponentHealth{
			Healthy: true,
			Message: fmt.Sprintf("delivered=%d failed=%d in_flight=%d", stats.Delivered, stats.Failed, stats.InFlight),
		}
	}

	status := &HealthStatus{Overall: true, Components: components}
	for _, h := range components {
		if !h.Healthy {
			status.Overall = false
		}
	}
	return status
}

func optionalComponent(enabled bool) ComponentHealth {
	if enabled {
		return ComponentHealth{Healthy: true, Message: "enabled"}
	}
	return ComponentHealth{Healthy: true, Message: "disabled"}
}

// initDatabase initializes the database and all repositories using providers.
func (c *Container) initDatabase(ctx context.Context) error {
	dbBundle, err := ProvideDatabase(ctx, &c.config.Database, c.logger)
	if err != nil {
		return err
	}

	c.database = dbBundle.DB
	c.db = dbBundle.TransactionMgr

	repos, err := ProvideRepositories(c.database, c.logger)
	if err != nil {
		c.database.Close()
		c.database = nil
		return err
	}

	c.repositories = repos
	return nil
}

// initExternalClients initializes the Kafka publisher and Lark messenger.
// Either may be nil when not configured.
func (c *Container) initExternalClients() error {
	publisher, err := ProvidePublisher(&c.config.Kafka, c.logger)
	if err != nil {
		return err
	}
	c.publisher = publisher

	c.messenger = ProvideMessenger(&c.config.Lark, c.logger)
	return nil
}

// initDispatcherAndWorkflow initializes the event dispatcher and transition engine.
func (c *Container) initDispatcherAndWorkflow() error {
	disp, err := ProvideDispatcher(&c.config.Worker, c.logger)
	if err != nil {
		return err
	}
	c.dispatcher = disp

	engine, err := ProvideWorkflowEngine(c.repositories, c.db, c.dispatcher, c.logger)
	if err != nil {
		return err
	}
	c.engine = engine

	return nil
}

// initServices initializes all application services and subscribes the
// outbound adapters to their events.
func (c *Container) initServices() error {
	services, err := ProvideServices(&ServiceDeps{
		Repos:      c.repositories,
		TxManager:  c.db,
		Engine:     c.engine,
		Dispatcher: c.dispatcher,
		Messenger:  c.messenger,
		Storage:    c.fileStorage,
		ApproverID: c.config.Lark.ApproverID,
		Logger:     c.logger,
	})
	if err != nil {
		return err
	}
	c.services = services

	RegisterEventHandlers(c.dispatcher, c.services, c.publisher, c.fileStorage != nil, c.logger)
	return nil
}

// initWorkers initializes and starts all background workers using providers.
func (c *Container) initWorkers() error {
	workers, err := ProvideWorkers(&c.config.Worker, c.repositories, c.dispatcher, c.logger)
	if err != nil {
		return err
	}
	c.workers = workers

	if err := c.workers.StartAll(c.ctx); err != nil {
		return fmt.Errorf("failed to start workers: %w", err)
	}

	return nil
}

// Getters for accessing container components

// DB returns the transaction manager.
func (c *Container) DB() port.TransactionManager {
	return c.db
}

// Repositories returns all repositories.
func (c *Container) Repositories() *RepositoryBundle {
	return c.repositories
}

// Dispatcher returns the event dispatcher.
func (c *Container) Dispatcher() dispatcher.Dispatcher {
	return c.dispatcher
}

// Engine returns the transition engine.
func (c *Container) Engine() workflow.TransitionEngine {
	return c.engine
}

// Services returns all application services.
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// Workers returns the worker manager.
func (c *Container) Workers() *worker.WorkerManager {
	return c.workers
}

// Server returns the HTTP server. It is not listening until Start is called on it.
func (c *Container) Server() *httpapi.Server {
	return c.server
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns the container's configuration.
func (c *Container) Config() *Config {
	return c.config
}

// zapLoggerAdapter adapts zap.Logger to the key-value Logger interfaces of
// the application and interface layers.
type zapLoggerAdapter struct {
	logger *zap.Logger
}

func (a *zapLoggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Info(msg, convertToZapFields(keysAndValues...)...)
}

func (a *zapLoggerAdapter) Error(msg string, keysAndValues ...interface{}) {
	a.logger.Error(msg, convertToZapFields(keysAndValues...)...)
}

// convertToZapFields converts key-value pairs to zap fields.
func convertToZapFields(keysAndValues ...interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		if err, isErr := keysAndValues[i+1].(error); isErr {
			fields = append(fields, zap.NamedError(key, err))
			continue
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}
