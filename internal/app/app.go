package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"time"

	"github.com/boxdancer/EVENTUM-education-platform/internal/config"
	"github.com/boxdancer/EVENTUM-education-platform/internal/db"
	"github.com/boxdancer/EVENTUM-education-platform/internal/health"
	"github.com/boxdancer/EVENTUM-education-platform/internal/logger"
	"github.com/boxdancer/EVENTUM-education-platform/internal/messaging"
	"github.com/boxdancer/EVENTUM-education-platform/internal/metrics"
	"github.com/boxdancer/EVENTUM-education-platform/internal/middleware"
	"github.com/boxdancer/EVENTUM-education-platform/internal/telemetry"
	"github.com/boxdancer/EVENTUM-education-platform/internal/user"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

type App struct {
	config        *config.Config
	router        chi.Router
	server        *http.Server
	logger        *slog.Logger
	db            *bun.DB
	producer      messaging.Producer
	meterProvider *sdkmetric.MeterProvider
}

func New() *App {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	slogLogger := logger.NewWithServiceContext(ServiceName, Version, cfg.Log.Level)

	// Set as default logger so slog.Info() uses the same handler
	slog.SetDefault(slogLogger)

	app, err := NewWithConfig(context.Background(), cfg, slogLogger)
	if err != nil {
		log.Fatalf("failed to initialize application: %v", err)
	}
	return app
}

// NewWithConfig wires every component from cfg.
func NewWithConfig(ctx context.Context, cfg *config.Config, slogLogger *slog.Logger) (*App, error) {
	slogLogger.Info("initializing application",
		"env", cfg.Env,
		"git_commit", GitCommit,
		"build_time", BuildTime,
	)

	app := &App{
		config: cfg,
		router: chi.NewRouter(),
		logger: slogLogger,
	}

	meterProvider, err := telemetry.InitMeterProvider(ctx, cfg.Telemetry.OTLPEndpoint, ServiceName, Version, slogLogger)
	if err != nil {
		return nil, err
	}
	app.meterProvider = meterProvider

	meter := otel.Meter(ServiceName)
	appMetrics, err := metrics.New(meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}

	if err := metrics.RegisterRuntime(meter); err != nil {
		slogLogger.Warn("failed to register runtime metrics", "error", err)
	}

	database, err := db.New(cfg.Database)
	if err != nil {
		app.close(ctx)
		return nil, err
	}
	app.db = database

	if err := appMetrics.RegisterDB(database.DB, meter); err != nil {
		slogLogger.Warn("failed to register database pool metrics", "error", err)
	}

	if cfg.Database.AutoMigrate {
		if err := db.RunMigrations(ctx, database); err != nil {
			app.close(ctx)
			return nil, err
		}
	}

	producer, err := messaging.New(cfg.Messaging, slogLogger)
	if err != nil {
		slogLogger.Warn("failed to initialize event producer, events will not be published", "driver", cfg.Messaging.Driver, "error", err)
		producer = nil
	}
	app.producer = producer

	validator, err := user.NewValidator()
	if err != nil {
		app.close(ctx)
		return nil, fmt.Errorf("failed to create validator: %w", err)
	}

	app.router.Use(chimiddleware.Recoverer)
	app.router.Use(middleware.CORS(cfg.Server.CORSOrigins))

	healthHandler := health.NewHandler(database, slogLogger)
	healthHandler.RegisterRoutes(app.router)

	var publisher user.EventPublisher
	if producer != nil {
		publisher = producer
	}
	userService := user.NewService(database, publisher, appMetrics, slogLogger)
	userHandler := user.NewHandler(userService, validator, slogLogger)
	userHandler.RegisterRoutes(app.router)

	slogLogger.Info("application initialized successfully")

	return app, nil
}

// Handler is the instrumented root handler served by Run.
func (a *App) Handler() http.Handler {
	return otelhttp.NewHandler(a.router, ServiceName)
}

func (a *App) Run() error {
	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%s", a.config.Server.Port),
		Handler:      a.Handler(),
		ReadTimeout:  seconds(a.config.Server.ReadTimeout),
		WriteTimeout: seconds(a.config.Server.WriteTimeout),
		IdleTimeout:  seconds(a.config.Server.IdleTimeout),
	}

	a.logger.Info("server starting", "port", a.config.Server.Port)
	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down server")

	var err error
	if a.server != nil {
		err = a.server.Shutdown(ctx)
	}
	return errors.Join(err, a.close(ctx))
}

func (a *App) close(ctx context.Context) error {
	var errs []error

	if a.producer != nil {
		errs = append(errs, a.producer.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	errs = append(errs, telemetry.Shutdown(ctx, a.meterProvider, a.logger))

	return errors.Join(errs...)
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
