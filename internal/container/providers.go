package container

import (
	"context"
	"fmt"

	"github.com/garyjia/procurement-hub/internal/application/dispatcher"
	"github.com/garyjia/procurement-hub/internal/application/port"
	"github.com/garyjia/procurement-hub/internal/application/service"
	"github.com/garyjia/procurement-hub/internal/application/workflow"
	"github.com/garyjia/procurement-hub/internal/domain/event"
	"github.com/garyjia/procurement-hub/internal/infrastructure/export"
	infraLark "github.com/garyjia/procurement-hub/internal/infrastructure/external/lark"
	"github.com/garyjia/procurement-hub/internal/infrastructure/messaging"
	"github.com/garyjia/procurement-hub/internal/infrastructure/persistence/repository"
	"github.com/garyjia/procurement-hub/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/procurement-hub/internal/infrastructure/storage"
	"github.com/garyjia/procurement-hub/internal/infrastructure/worker"
	httpapi "github.com/garyjia/procurement-hub/internal/interfaces/http"
	"github.com/garyjia/procurement-hub/migrations"
	"github.com/garyjia/procurement-hub/pkg/database"
	"go.uber.org/zap"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	DB             *database.DB
	TransactionMgr *sqlite.DB
}

// ProvideDatabase opens the database, applies the embedded migrations and
// wraps the pool in a transaction manager.
func ProvideDatabase(ctx context.Context, cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		BusyTimeout:     cfg.BusyTimeout,
	}, logger)
	if err != nil {
		return nil, err
	}

	migrator := database.NewMigrator(db, logger)
	if _, err := migrator.RunMigrations(ctx, migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		DB:             db,
		TransactionMgr: sqlite.NewDB(db.DB, logger),
	}, nil
}

// ProvideRepositories creates all repositories from a database connection.
func ProvideRepositories(db *database.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &RepositoryBundle{
		PurchaseOrder: repository.NewPurchaseOrderRepository(db.DB, logger),
		LineItem:      repository.NewLineItemRepository(db.DB, logger),
		Approval:      repository.NewApprovalRepository(db.DB, logger),
		StatusEvent:   repository.NewStatusEventRepository(db.DB, logger),
	}, nil
}

// ProvidePublisher creates the Kafka publisher, or nil when publishing is off.
func ProvidePublisher(cfg *KafkaConfig, logger *zap.Logger) (*messaging.KafkaPublisher, error) {
	if cfg == nil || !cfg.Enabled() {
		return nil, nil
	}
	return messaging.NewKafkaPublisher(messaging.KafkaConfig{
		Brokers:      cfg.Brokers,
		Topic:        cfg.Topic,
		MaxAttempts:  cfg.MaxAttempts,
		WriteTimeout: cfg.WriteTimeout,
	}, logger)
}

// ProvideMessenger creates the Lark message sender, or nil without credentials.
func ProvideMessenger(cfg *LarkConfig, logger *zap.Logger) port.MessageSender {
	if cfg == nil || !cfg.Enabled() {
		return nil
	}
	larkCfg := infraLark.Config{
		AppID:         cfg.AppID,
		AppSecret:     cfg.AppSecret,
		ReceiveIDType: cfg.ReceiveIDType,
	}
	return infraLark.NewMessenger(infraLark.NewSDKClient(larkCfg, logger), larkCfg, logger)
}

// ProvideStorage creates the archive storage, or nil when archiving is off.
func ProvideStorage(cfg *StorageConfig, logger *zap.Logger) port.FileStorage {
	if cfg == nil || cfg.ArchiveDir == "" {
		return nil
	}
	return storage.NewLocalFileStorage(cfg.ArchiveDir, logger)
}

// ProvideDispatcher creates the event dispatcher.
func ProvideDispatcher(cfg *WorkerConfig, logger *zap.Logger) (dispatcher.Dispatcher, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	opts := []dispatcher.Option{dispatcher.WithLogger(&zapLoggerAdapter{logger: logger})}
	if cfg != nil && cfg.EventHandlerTimeout > 0 {
		opts = append(opts, dispatcher.WithAsyncTimeout(cfg.EventHandlerTimeout))
	}
	return dispatcher.NewDispatcher(opts...), nil
}

// ProvideWorkflowEngine creates the transition engine.
func ProvideWorkflowEngine(repos *RepositoryBundle, txManager port.TransactionManager, d dispatcher.Dispatcher, logger *zap.Logger) (workflow.TransitionEngine, error) {
	if repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if txManager == nil {
		return nil, fmt.Errorf("transaction manager is required")
	}
	if d == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}

	return workflow.NewEngine(
		repos.PurchaseOrder,
		repos.LineItem,
		repos.StatusEvent,
		txManager,
		workflow.WithDispatcher(d),
		workflow.WithLogger(&zapLoggerAdapter{logger: logger}),
	), nil
}

// ServiceDeps holds dependencies required for creating services.
type ServiceDeps struct {
	Repos      *RepositoryBundle
	TxManager  port.TransactionManager
	Engine     workflow.TransitionEngine
	Dispatcher dispatcher.Dispatcher
	Messenger  port.MessageSender
	Storage    port.FileStorage
	ApproverID string
	Logger     *zap.Logger
}

// ProvideServices creates all application services.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil {
		return nil, fmt.Errorf("service dependencies are required")
	}
	if deps.Repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if deps.TxManager == nil {
		return nil, fmt.Errorf("transaction manager is required")
	}
	if deps.Engine == nil {
		return nil, fmt.Errorf("transition engine is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	serviceLogger := &zapLoggerAdapter{logger: deps.Logger}

	orders := service.NewPurchaseOrderService(
		deps.Repos.PurchaseOrder,
		deps.Repos.LineItem,
		deps.Repos.Approval,
		deps.Repos.StatusEvent,
		deps.TxManager,
		deps.Engine,
		deps.Dispatcher,
		serviceLogger,
	)

	bundle := &ServiceBundle{
		PurchaseOrder: orders,
		Export: service.NewExportService(
			orders,
			export.NewXLSXExporter(deps.Logger),
			deps.Storage,
			serviceLogger,
		),
	}
	if deps.Messenger != nil {
		bundle.Notification = service.NewNotificationService(deps.Messenger, deps.ApproverID, serviceLogger)
	}

	return bundle, nil
}

// RegisterEventHandlers subscribes the outbound adapters to domain events.
// Every handler runs after the transaction that produced the event commits.
func RegisterEventHandlers(d dispatcher.Dispatcher, services *ServiceBundle, publisher *messaging.KafkaPublisher, archiving bool, logger *zap.Logger) {
	if publisher != nil {
		d.SubscribeOrdered("kafka_publisher", publisher.Handle)
		logger.Info("Kafka publisher subscribed to all events in dispatch order")
	}

	if services.Notification != nil {
		d.SubscribeNamed(event.TypeStatusChanged, "lark_notifier", services.Notification.HandleStatusChanged)
		logger.Info("Lark approval notifications enabled")
	}

	if archiving {
		d.SubscribeNamed(event.TypeStatusChanged, "export_archiver", services.Export.HandleStatusChanged)
		logger.Info("Terminal status archiving enabled")
	}
}

// ProvideWorkers creates and registers all background workers.
// Returns *worker.WorkerManager with all workers registered but not started.
func ProvideWorkers(cfg *WorkerConfig, repos *RepositoryBundle, d dispatcher.Dispatcher, logger *zap.Logger) (*worker.WorkerManager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("worker config is required")
	}
	if repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	manager := worker.NewWorkerManager(logger)

	if cfg.IntegrityEnabled {
		integrity := worker.NewIntegrityWorker(
			worker.IntegrityWorkerConfig{
				ScanInterval: cfg.IntegrityScanInterval,
				BatchSize:    cfg.IntegrityBatchSize,
			},
			repos.PurchaseOrder,
			repos.StatusEvent,
			d,
			logger,
		)
		manager.Register(integrity)
	}

	return manager, nil
}

// ProvideHTTPServer creates the REST API server.
func ProvideHTTPServer(cfg *ServerConfig, services *ServiceBundle, logger *zap.Logger) (*httpapi.Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("server config is required")
	}
	if services == nil {
		return nil, fmt.Errorf("services are required")
	}

	return httpapi.NewServer(
		httpapi.ServerConfig{
			Host:         cfg.Host,
			Port:         cfg.Port,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout:    cfg.WriteTimeout,
			ShutdownTimeout: cfg.ShutdownTimeout,
		},
		services.PurchaseOrder,
		services.Export,
		&zapLoggerAdapter{logger: logger},
	), nil
}
