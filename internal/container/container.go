package container

import (
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	database "github.com/FACorreiaa/go-kanban-tracker/app/db"
	"github.com/FACorreiaa/go-kanban-tracker/app/mail"
	"github.com/FACorreiaa/go-kanban-tracker/app/observability/metrics"
	"github.com/FACorreiaa/go-kanban-tracker/config"
	"github.com/FACorreiaa/go-kanban-tracker/internal/api/auth"
	"github.com/FACorreiaa/go-kanban-tracker/internal/api/tasks"
)

// Container holds all application dependencies.
type Container struct {
	Config      *config.Config
	Logger      *slog.Logger
	Pool        *pgxpool.Pool
	AuthHandler *auth.HandlerImpl
	TaskHandler *tasks.HandlerImpl
}

// NewContainer wires repositories, services and handlers on top of an
// initialized database pool.
func NewContainer(cfg *config.Config, logger *slog.Logger) (*Container, error) {
	dbConfig, err := database.NewDatabaseConfig(cfg, logger)
	if err != nil {
		logger.Error("Failed to generate database config", slog.Any("error", err))
		return nil, err
	}

	pool, err := database.Init(dbConfig.ConnectionURL, logger)
	if err != nil {
		logger.Error("Failed to initialize database pool", slog.Any("error", err))
		return nil, err
	}

	// SMTP credentials are optional in development; without them codes are
	// only logged.
	var notifier mail.Notifier
	if cfg.SMTP.Username != "" && cfg.SMTP.Password != "" {
		notifier = mail.NewSMTPNotifier(cfg.SMTP, logger)
	} else {
		logger.Warn("SMTP credentials missing, verification codes will only be logged")
		notifier = mail.NewLogNotifier(logger)
	}

	metrics.InitAppMetrics()
	appMetrics := metrics.Get()

	authRepo := auth.NewPostgresAuthRepo(pool, logger)
	authService := auth.NewAuthService(authRepo, cfg, notifier, appMetrics, logger)
	authHandler := auth.NewAuthHandlerImpl(authService, logger)

	taskRepo := tasks.NewPostgresTaskRepo(pool, logger)
	taskService := tasks.NewTaskService(taskRepo, appMetrics, logger)
	taskHandler := tasks.NewTaskHandlerImpl(taskService, logger)

	return &Container{
		Config:      cfg,
		Logger:      logger,
		Pool:        pool,
		AuthHandler: authHandler,
		TaskHandler: taskHandler,
	}, nil
}

// Close releases the container's resources.
func (c *Container) Close() {
	if c.Pool != nil {
		c.Pool.Close()
	}
}
