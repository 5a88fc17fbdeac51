// Package bootstrap builds the process-wide dependencies shared by the
// logtower binaries: configuration, logger, telemetry and the store.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/logtower/backend/internal/infrastructure/config"
	"github.com/logtower/backend/internal/infrastructure/logger"
	"github.com/logtower/backend/internal/infrastructure/persistence"
	"github.com/logtower/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// TimeFormat is the log timestamp layout of every binary
const TimeFormat = "2006-01-02T15:04:05.000Z07:00"

// App holds the dependencies every command starts from
type App struct {
	Config    *config.Config
	Logger    *zap.Logger
	Telemetry *telemetry.Providers

	db *persistence.Database
}

// New loads the configuration at path (or the default search path when
// empty), then creates the logger and the telemetry providers
func New(ctx context.Context, path string) (*App, error) {
	cfg, err := config.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return NewWithConfig(ctx, cfg)
}

// NewWithConfig is New for an already loaded configuration
func NewWithConfig(ctx context.Context, cfg *config.Config) (*App, error) {
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: TimeFormat,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	providers, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
		MetricsInterval:   cfg.Telemetry.MetricsInterval,
	}, log)
	if err != nil {
		_ = log.Sync()
		return nil, fmt.Errorf("failed to set up telemetry: %w", err)
	}

	return &App{Config: cfg, Logger: log, Telemetry: providers}, nil
}

// Database opens the configured store on first use, applying pending
// migrations when database.auto_migrate is set
func (a *App) Database() (*persistence.Database, error) {
	if a.db != nil {
		return a.db, nil
	}
	dbCfg := &a.Config.Database

	if dbCfg.AutoMigrate {
		if err := persistence.Migrate(dbCfg, a.Logger); err != nil {
			return nil, fmt.Errorf("failed to apply migrations: %w", err)
		}
	}

	gormLog := logger.NewGormLogger(a.Logger, logger.GormLevel(a.Config.Log.GormLevel), dbCfg.SlowQueryThreshold)
	db, err := persistence.NewDatabase(dbCfg, gormLog)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := telemetry.RegisterDBTracing(db.DB, telemetry.DBTracingConfig{
		Enabled:         a.Config.Telemetry.Enabled && a.Config.Telemetry.DBTraceEnabled,
		DBSystem:        dbSystem(db.Driver),
		SlowQueryThresh: dbCfg.SlowQueryThreshold,
	}, a.Logger); err != nil {
		_ = db.Close()
		return nil, err
	}

	a.Logger.Info("Database connected",
		zap.String("driver", db.Driver),
		zap.Bool("auto_migrate", dbCfg.AutoMigrate),
	)
	a.db = db
	return db, nil
}

// Close releases the store and flushes telemetry and logs
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
		a.db = nil
	}
	if a.Telemetry != nil {
		if err := a.Telemetry.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown telemetry: %w", err))
		}
	}
	// stdout cannot be synced on most platforms
	_ = a.Logger.Sync()
	return errors.Join(errs...)
}

func dbSystem(driver string) string {
	if driver == "postgres" {
		return "postgresql"
	}
	return driver
}
