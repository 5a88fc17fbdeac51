// Command server serves the executive control tower API: KPI cards, charts
// and the detailed report over the dashboard dataset, plus the ETL run history.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/logtower/backend/internal/application/dashboard"
	"github.com/logtower/backend/internal/bootstrap"
	"github.com/logtower/backend/internal/infrastructure/persistence"
	"github.com/logtower/backend/internal/interfaces/http/handler"
	"github.com/logtower/backend/internal/interfaces/http/middleware"
	"github.com/logtower/backend/internal/interfaces/http/router"
	"go.uber.org/zap"
)

// Version is set at build time
var Version = "dev"

func main() {
	configPath := flag.String("config", "", "Path to the TOML config file (default: ./config.toml)")
	flag.Parse()

	app, err := bootstrap.New(context.Background(), *configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := app.Logger
	defer func() {
		if err := app.Close(context.Background()); err != nil {
			log.Error("Error during cleanup", zap.Error(err))
		}
	}()

	cfg := app.Config
	log.Info("Starting logtower dashboard",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.HTTP.Port),
		zap.String("version", Version),
	)

	srv, err := newServer(app)
	if err != nil {
		log.Error("Failed to build server", zap.Error(err))
		return
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
		return
	}
	log.Info("Server exited gracefully")
}

// newServer wires the dashboard, the run history and the health check into
// an http.Server. Without a reachable store the dashboard still runs; only
// the run history is left out.
func newServer(app *bootstrap.App) (*http.Server, error) {
	cfg := app.Config
	log := app.Logger

	start, err := time.Parse(time.DateOnly, cfg.Dashboard.StartDate)
	if err != nil {
		return nil, fmt.Errorf("invalid dashboard.start_date: %w", err)
	}
	dataset := dashboard.Generate(dashboard.GeneratorConfig{
		Seed:  cfg.Dashboard.Seed,
		Start: start,
		Days:  cfg.Dashboard.Days,
	})
	log.Info("Dashboard dataset generated",
		zap.Int("records", len(dataset.Records())),
		zap.Int("months", len(dataset.Months())),
		zap.Int64("seed", cfg.Dashboard.Seed),
	)
	service := dashboard.NewService(dataset,
		dashboard.WithSLATarget(cfg.Dashboard.SLATarget),
		dashboard.WithLogger(log),
	)

	cors := middleware.DefaultCORSConfig()
	if len(cfg.HTTP.CORSAllowOrigins) > 0 {
		cors.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	}
	tracing := middleware.DefaultTracingConfig()
	tracing.ServiceName = cfg.Telemetry.ServiceName
	tracing.Enabled = app.Telemetry.Enabled()

	engine, err := router.NewEngine(router.EngineConfig{
		Production: cfg.App.Env == "production",
		CORS:       cors,
		Tracing:    tracing,
		Logger:     log,
	})
	if err != nil {
		return nil, err
	}

	var (
		db   handler.Database
		runs *handler.RunHandler
	)
	store, err := app.Database()
	if err != nil {
		log.Warn("Database unavailable, serving the dashboard without run history", zap.Error(err))
	} else {
		db = store
		runs = handler.NewRunHandler(persistence.NewGormRunRepository(store.DB))
	}

	system := handler.NewSystemHandler(db, cfg.App.Name, Version)
	r := router.NewRouter(engine, router.WithHealth(system.Health))
	r.Register(handler.NewDashboardHandler(service)).Register(system)
	if runs != nil {
		r.Register(runs)
	}
	r.Setup()

	return &http.Server{
		Addr:         ":" + cfg.HTTP.Port,
		Handler:      engine,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}, nil
}
