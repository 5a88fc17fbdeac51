package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/logtower/backend/internal/application/etl"
	"github.com/logtower/backend/internal/bootstrap"
	"github.com/logtower/backend/internal/domain/bulk"
	"github.com/logtower/backend/internal/domain/dimension"
	"github.com/logtower/backend/internal/infrastructure/cache"
	"github.com/logtower/backend/internal/infrastructure/ors"
	"github.com/logtower/backend/internal/infrastructure/persistence"
	"github.com/logtower/backend/internal/infrastructure/storage"
	"github.com/logtower/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// stack is everything the run and export steps share
type stack struct {
	dimensions *persistence.GormDimensionRepository
	facts      *persistence.GormShipmentRepository
	runs       *persistence.GormRunRepository
	metrics    *telemetry.ETLMetrics
}

func newStack(app *bootstrap.App) (*stack, error) {
	db, err := app.Database()
	if err != nil {
		return nil, err
	}
	metrics, err := telemetry.NewETLMetrics(nil)
	if err != nil {
		return nil, err
	}
	return &stack{
		dimensions: persistence.NewGormDimensionRepository(db.DB),
		facts:      persistence.NewGormShipmentRepository(db.DB),
		runs:       persistence.NewGormRunRepository(db.DB),
		metrics:    metrics,
	}, nil
}

// runETL loads the optional reference workbooks and processes every
// spreadsheet of the input folder
func runETL(ctx context.Context, app *bootstrap.App, s *stack) (results []*etl.FileResult, err error) {
	cfg := app.Config
	log := app.Logger

	mode := bulk.ConflictMode(cfg.ETL.ConflictMode)
	if !mode.IsValid() {
		return nil, fmt.Errorf("invalid conflict mode %q", cfg.ETL.ConflictMode)
	}

	routeCache, err := cache.NewRouteCache(ctx, cfg.Cache, cfg.Redis, log)
	if err != nil {
		return nil, err
	}
	defer closeQuietly(routeCache, "route cache", log)

	router, err := ors.NewRouter(cfg.Routing, routeCache, s.metrics, log)
	if err != nil {
		return nil, err
	}

	pipeline, err := etl.NewPipeline(
		dimension.NewResolver(s.dimensions, nil),
		s.facts,
		router,
		etl.WithConflictMode(mode),
		etl.WithMaxRowErrors(cfg.ETL.MaxRowErrors),
		etl.WithRunRepository(s.runs),
		etl.WithMetrics(s.metrics),
		etl.WithLogger(log),
	)
	if err != nil {
		return nil, err
	}

	if cfg.ETL.LoadReference {
		loaded, err := pipeline.LoadReference(ctx, cfg.Paths.BaseDataDir)
		if err != nil {
			return nil, fmt.Errorf("failed to load reference data: %w", err)
		}
		for kind, n := range loaded {
			log.Info("Reference members loaded", zap.String("table", kind.Table()), zap.Int("count", n))
		}
	}

	return pipeline.ProcessFolder(ctx, cfg.Paths.InputDir)
}

// runExport writes the flat files, publishing them to S3 when storage is enabled
func runExport(ctx context.Context, app *bootstrap.App, s *stack) error {
	cfg := app.Config
	opts := []etl.ExporterOption{
		etl.WithExportMetrics(s.metrics),
		etl.WithExportLogger(app.Logger),
	}

	if cfg.Storage.Enabled {
		publisher, err := storage.NewS3Publisher(ctx, &cfg.Storage, storage.WithLogger(app.Logger))
		if err != nil {
			return err
		}
		if err := publisher.EnsureBucket(ctx); err != nil {
			return err
		}
		opts = append(opts, etl.WithPublisher(publisher))
	}

	exporter := etl.NewExporter(s.dimensions, s.facts, opts...)
	if err := exporter.ExportAll(ctx, cfg.Paths.InsightsDir); err != nil {
		return err
	}
	app.Logger.Info("Star schema exported", zap.String("folder", filepath.Clean(cfg.Paths.InsightsDir)))
	return nil
}

func closeQuietly(c io.Closer, what string, log *zap.Logger) {
	if err := c.Close(); err != nil && !errors.Is(err, context.Canceled) {
		log.Warn("Failed to close "+what, zap.Error(err))
	}
}
