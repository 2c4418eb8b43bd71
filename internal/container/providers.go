package container

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/receipt-approval/internal/application/dispatcher"
	"github.com/garyjia/receipt-approval/internal/application/port"
	"github.com/garyjia/receipt-approval/internal/application/service"
	"github.com/garyjia/receipt-approval/internal/domain/event"
	"github.com/garyjia/receipt-approval/internal/domain/view"
	"github.com/garyjia/receipt-approval/internal/domain/workflow"
	"github.com/garyjia/receipt-approval/internal/infrastructure/auth"
	"github.com/garyjia/receipt-approval/internal/infrastructure/export"
	"github.com/garyjia/receipt-approval/internal/infrastructure/external/lark"
	"github.com/garyjia/receipt-approval/internal/infrastructure/external/logmail"
	"github.com/garyjia/receipt-approval/internal/infrastructure/media"
	"github.com/garyjia/receipt-approval/internal/infrastructure/persistence/repository"
	"github.com/garyjia/receipt-approval/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/receipt-approval/internal/infrastructure/storage"
	"github.com/garyjia/receipt-approval/migrations"
	"github.com/garyjia/receipt-approval/pkg/database"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	SqlDB          *sql.DB
	TransactionMgr *sqlite.DB
}

// StorageBundle holds the receipt image pipeline.
type StorageBundle struct {
	Blobs      port.BlobStore
	Normalizer port.ImageNormalizer
	Exporter   port.ReceiptExporter

	// closer releases backend clients, nil for the local backend
	closer func() error
}

// AuthBundle holds credential components.
type AuthBundle struct {
	Hasher port.PasswordHasher
	Tokens port.TokenIssuer
}

// ProvideDatabase opens the database and applies the embedded migrations.
// Returns DatabaseBundle containing sql.DB and TransactionManager.
func ProvideDatabase(cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
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
	if err := migrator.RunMigrations(migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		SqlDB:          db.DB,
		TransactionMgr: sqlite.NewDB(db.DB, logger),
	}, nil
}

// ProvideRepositories creates all repositories from a database connection.
// Returns RepositoryBundle containing all repository implementations.
func ProvideRepositories(sqlDB *sql.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if sqlDB == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &RepositoryBundle{
		Receipts: repository.NewReceiptRepository(sqlDB, logger),
		Users:    repository.NewUserRepository(sqlDB, logger),
		Sections: repository.NewSectionRepository(sqlDB, logger),
	}, nil
}

// ProvideMailer selects the notification backend.
func ProvideMailer(cfg *MailConfig, larkCfg *LarkConfig, logger *zap.Logger) (port.Mailer, error) {
	if cfg == nil || larkCfg == nil {
		return nil, fmt.Errorf("mail config is required")
	}

	switch cfg.Backend {
	case "lark":
		client := lark.NewSDKClient(lark.Config{
			AppID:     larkCfg.AppID,
			AppSecret: larkCfg.AppSecret,
			BaseURL:   larkCfg.BaseURL,
		}, logger)
		return lark.NewMailer(client, logger), nil
	case "log", "":
		return logmail.NewMailer(logger), nil
	default:
		return nil, fmt.Errorf("unknown mail backend %q", cfg.Backend)
	}
}

// ProvideStorage creates the blob store, image normalizer and exporter.
func ProvideStorage(ctx context.Context, cfg *StorageConfig, logger *zap.Logger) (*StorageBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("storage config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	bundle := &StorageBundle{
		Normalizer: media.NewNormalizer(media.Config{
			MaxWidth:    cfg.MaxImageWidth,
			JPEGQuality: cfg.JPEGQuality,
		}, logger),
		Exporter: export.NewExcelExporter(logger),
	}

	switch cfg.Backend {
	case "gcs":
		store, err := storage.NewGCSBlobStore(ctx, storage.GCSConfig{
			Bucket:          cfg.GCSBucket,
			Prefix:          cfg.GCSPrefix,
			CredentialsFile: cfg.GCSCredentialsFile,
			PublicBaseURL:   cfg.GCSPublicBaseURL,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create gcs blob store: %w", err)
		}
		bundle.Blobs = store
		bundle.closer = store.Close
	case "local", "":
		bundle.Blobs = storage.NewLocalBlobStore(cfg.LocalDir, cfg.URLPrefix, logger)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}

	return bundle, nil
}

// ProvideAuth creates the password hasher and session token issuer.
func ProvideAuth(cfg *AuthConfig) (*AuthBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("auth config is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}

	return &AuthBundle{
		Hasher: auth.NewBcryptHasher(cfg.BcryptCost),
		Tokens: auth.NewJWTIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.TokenTTL),
	}, nil
}

// ProvideDispatcher creates the event dispatcher.
// Returns dispatcher.Dispatcher implementation.
func ProvideDispatcher(cfg *MailConfig, logger *zap.Logger) (dispatcher.Dispatcher, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	opts := []dispatcher.Option{
		dispatcher.WithLogger(&dispatcherLoggerAdapter{logger: logger}),
	}
	if cfg != nil && cfg.HandlerTimeout > 0 {
		opts = append(opts, dispatcher.WithHandlerTimeout(cfg.HandlerTimeout))
	}

	return dispatcher.NewDispatcher(opts...), nil
}

// ServiceDeps holds dependencies required for creating services.
type ServiceDeps struct {
	Repos      *RepositoryBundle
	TxManager  port.TransactionManager
	Storage    *StorageBundle
	Auth       *AuthBundle
	Mailer     port.Mailer
	Dispatcher dispatcher.Dispatcher
	Workflow   WorkflowConfig
	BaseURL    string
	Logger     *zap.Logger
}

// ProvideServices creates all application services and subscribes
// notifications to receipt events.
// Returns ServiceBundle containing all service implementations.
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
	if deps.Storage == nil {
		return nil, fmt.Errorf("storage is required")
	}
	if deps.Auth == nil {
		return nil, fmt.Errorf("auth is required")
	}
	if deps.Mailer == nil {
		return nil, fmt.Errorf("mailer is required")
	}
	if deps.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	serviceLogger := &zapLoggerAdapter{logger: deps.Logger}
	policy := workflow.NewPolicy(workflow.Options{
		RequireRejectionReason: deps.Workflow.RequireRejectionReason,
	})

	notifications := service.NewNotificationService(deps.Repos.Users, deps.Mailer, deps.BaseURL, serviceLogger)
	deps.Dispatcher.Subscribe("notifications", notifications.HandleEvent,
		event.TypeReceiptCreated,
		event.TypeReceiptApproved,
		event.TypeReceiptRejected,
	)
	deps.Dispatcher.Subscribe("audit-log", auditLogHandler(deps.Logger),
		event.TypeReceiptCreated,
		event.TypeReceiptApproved,
		event.TypeReceiptRejected,
		event.TypeReceiptDeleted,
	)

	return &ServiceBundle{
		Auth: service.NewAuthService(deps.Repos.Users, deps.Auth.Hasher, deps.Auth.Tokens, serviceLogger),
		Receipts: service.NewReceiptService(service.ReceiptServiceDeps{
			Receipts:   deps.Repos.Receipts,
			Sections:   deps.Repos.Sections,
			Blobs:      deps.Storage.Blobs,
			Normalizer: deps.Storage.Normalizer,
			Exporter:   deps.Storage.Exporter,
			Policy:     policy,
			Dispatcher: deps.Dispatcher,
			View:       view.Options{StrictHistory: deps.Workflow.StrictHistory},
			Logger:     serviceLogger,
		}),
		Approvals: service.NewApprovalService(
			deps.Repos.Receipts,
			deps.TxManager,
			policy,
			deps.Dispatcher,
			serviceLogger,
		),
		Users: service.NewUserService(
			deps.Repos.Users,
			deps.Repos.Sections,
			deps.Repos.Receipts,
			deps.Auth.Hasher,
			serviceLogger,
		),
		Sections: service.NewSectionService(
			deps.Repos.Sections,
			deps.Repos.Users,
			deps.Repos.Receipts,
			serviceLogger,
		),
		Notifications: notifications,
	}, nil
}

// auditLogHandler records every receipt event in the service log
func auditLogHandler(logger *zap.Logger) dispatcher.Handler {
	return func(ctx context.Context, evt *event.Event) error {
		logger.Info("Receipt event",
			zap.String("event_id", evt.ID),
			zap.String("event_type", evt.Type.String()),
			zap.Int64("receipt_id", evt.ReceiptID),
			zap.Time("timestamp", evt.Timestamp))
		return nil
	}
}
