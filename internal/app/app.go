// Package app wires configuration, storage and services into a runnable application.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/folio/internal/activity"
	"github.com/folio/internal/config"
	"github.com/folio/internal/db"
	"github.com/folio/internal/handler"
	"github.com/folio/internal/logging"
	"github.com/folio/internal/maintenance"
	"github.com/folio/internal/router"
	"github.com/folio/internal/storage"
)

// App holds the long-lived dependencies shared by the server and folioctl.
type App struct {
	Config      config.AppConfig
	DB          *gorm.DB
	Activity    *activity.SQLiteStore
	Recorder    activity.Recorder
	Images      *storage.LocalManager
	Runner      *maintenance.GormRunner
	Maintenance *maintenance.Dispatcher
	Logger      *slog.Logger
}

// New 打开主库与审计库，并组装各个服务，不执行迁移。
func New(cfg config.AppConfig, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	gdb, err := db.Open(cfg.DatabasePath, logging.NewGormLogger(logger, cfg.SlowQueryThreshold))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	store, err := activity.OpenSQLite(cfg.ActivityDatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open activity log: %w", err)
	}

	images := storage.NewLocalManager(map[string]storage.Disk{
		cfg.FilesystemDisk: {Root: cfg.UploadDir, URL: cfg.UploadURLPath},
	}, storage.Options{
		DefaultDisk: cfg.FilesystemDisk,
		MaxBytes:    cfg.MaxUploadBytes,
		MaxWidth:    cfg.MaxImageWidth,
		Logger:      logger.With("channel", "storage"),
	})

	recorder := activity.Multi{store, activity.NewLogger(logger.With("channel", "activity"))}

	username, password, _ := cfg.SuperRoot()
	runner := maintenance.NewGormRunner(gdb, maintenance.DefaultSeeders(maintenance.Credentials{
		Username: username,
		Password: password,
	}, logger))

	return &App{
		Config:      cfg,
		DB:          gdb,
		Activity:    store,
		Recorder:    recorder,
		Images:      images,
		Runner:      runner,
		Maintenance: maintenance.NewDispatcher(runner, recorder, logger.With("channel", "developer")),
		Logger:      logger,
	}, nil
}

// Bootstrap migrates the schema, grants the Master role every permission and makes
// sure the configured super root account exists.
func (a *App) Bootstrap(ctx context.Context) error {
	if err := a.Runner.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if err := a.Runner.Seed(ctx, "RolePermissionSeeder"); err != nil {
		return err
	}

	username, password, err := a.Config.SuperRoot()
	if errors.Is(err, config.ErrMissingSuperRoot) {
		a.Logger.Warn("SUPER_ROOT_USER_NAME / SUPER_ROOT_PASSWORD not set, no admin account created")
		return nil
	}
	if _, err := db.EnsureUser(a.DB.WithContext(ctx), username, password, db.MasterRole); err != nil {
		return fmt.Errorf("ensure super root: %w", err)
	}
	return nil
}

// Router builds the HTTP handler.
func (a *App) Router() *gin.Engine {
	api := handler.NewAPI(handler.Dependencies{
		DB:          a.DB,
		Images:      a.Images,
		Recorder:    a.Recorder,
		Activities:  a.Activity,
		Maintenance: a.Maintenance,
		Logger:      a.Logger,
	})
	return router.SetupRouter(api, router.Options{
		SessionSecret: a.Config.SessionSecret,
		UploadDir:     a.Config.UploadDir,
		UploadURLPath: a.Config.UploadURLPath,
		AuditDenied:   a.Config.AuditDeniedAttempts,
	})
}

// Close releases both databases.
func (a *App) Close() error {
	var errs []error
	if a.Activity != nil {
		errs = append(errs, a.Activity.Close())
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			errs = append(errs, sqlDB.Close())
		}
	}
	return errors.Join(errs...)
}
