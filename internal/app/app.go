package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"FormationsCache/internal/config"
	"FormationsCache/internal/domain"
	"FormationsCache/internal/httpapi"
	"FormationsCache/internal/infrastructure/parser"
	"FormationsCache/internal/infrastructure/scheduler"
	"FormationsCache/internal/infrastructure/storage"
	"FormationsCache/internal/infrastructure/telegram"
	"FormationsCache/internal/logging"
	"FormationsCache/internal/metrics"
	"FormationsCache/internal/ports"
	"FormationsCache/internal/sanitize"
	"FormationsCache/internal/scanner"
	"FormationsCache/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	db        *sql.DB
	dialect   storage.Dialect
	metrics   *metrics.Recorder
	service   *usecase.FormationService
	pipeline  *usecase.IngestPipeline
	scheduler *usecase.Scheduler
}

// New opens the cache database and builds every component.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	db, dialect, err := storage.Open(ctx, cfg.Database.Driver, cfg.Database.DSN, cfg.Database.MaxOpenConns)
	if err != nil {
		return nil, fmt.Errorf("open formations cache: %w", err)
	}

	if cfg.Database.AutoMigrate {
		if err := storage.Migrate(ctx, db, dialect); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate formations cache: %w", err)
		}
	}

	return NewWithDB(cfg, db, dialect, baseLogger), nil
}

// NewWithDB builds the application on an already opened database.
func NewWithDB(cfg config.Config, db *sql.DB, dialect storage.Dialect, baseLogger *slog.Logger) *Application {
	if baseLogger == nil {
		baseLogger = logging.Discard()
	}

	recorder := metrics.NewRecorder()
	repo := storage.NewFormationRepository(db, dialect)
	validator := sanitize.NewURLValidator(cfg.Formations.TrustedDomain, cfg.Formations.FallbackURL)

	service := usecase.NewFormationService(usecase.FormationServiceDeps{
		Cache:     repo,
		Validator: validator,
		IDPrefix:  cfg.Formations.IDPrefix,
		Metrics:   recorder,
		Logger:    baseLogger.With("component", "formations"),
	})

	registry := scanner.NewRegistry()
	registry.Register(parser.NewSSSScanner(
		&http.Client{Timeout: cfg.Scraper.Timeout},
		parser.WithUserAgent(cfg.Scraper.UserAgent),
		parser.WithRetryPolicy(parser.RetryPolicy{MaxAttempts: cfg.Scraper.MaxAttempts}),
	))

	source := parser.NewStrategySource(registry, cfg.Sites, baseLogger.With("component", "source"))

	var notifier ports.Notifier
	if cfg.Notifications.Telegram.Enabled() {
		notifier = telegram.NewNotifier(cfg.Notifications.Telegram.BotToken, cfg.Notifications.Telegram.ChatID)
	}

	pipeline := usecase.NewIngestPipeline(usecase.IngestPipelineDeps{
		Source:    source,
		Store:     repo,
		Validator: validator,
		Notifier:  notifier,
		Metrics:   recorder,
		Logger:    baseLogger.With("component", "pipeline"),
	})

	sched := usecase.NewScheduler(
		scheduler.NewIntervalScheduler(cfg.Scheduler.Interval),
		pipeline,
		cfg.Scheduler.Interval,
		baseLogger.With("component", "scheduler"),
	)

	return &Application{
		cfg:       cfg,
		logger:    baseLogger,
		db:        db,
		dialect:   dialect,
		metrics:   recorder,
		service:   service,
		pipeline:  pipeline,
		scheduler: sched,
	}
}

// Handler returns the HTTP surface of the application.
func (a *Application) Handler() http.Handler {
	return httpapi.NewHandler(httpapi.HandlerDeps{
		Lister:         a.service,
		Metrics:        a.metrics.Handler(),
		Health:         a.db.PingContext,
		RequestTimeout: a.cfg.Server.RequestTimeout,
		AllowedOrigin:  a.cfg.Server.AllowedOrigin,
		Logger:         a.logger.With("component", "http"),
	})
}

// Serve runs the HTTP server and, when enabled, the scrape scheduler until
// ctx is canceled or one of them fails.
func (a *Application) Serve(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	if a.cfg.Scheduler.Enabled {
		if err := a.scheduler.Start(gctx); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
		a.logger.Info("scheduler started", "interval", a.cfg.Scheduler.Interval.String())

		g.Go(func() error {
			<-gctx.Done()
			stopCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
			defer cancel()
			return a.scheduler.Stop(stopCtx)
		})
	}

	server := httpapi.NewServer(a.cfg.Server.Addr, a.Handler(), a.cfg.Server.ShutdownTimeout, a.logger.With("component", "http"))
	g.Go(func() error {
		return server.Run(gctx)
	})

	return g.Wait()
}

// List runs a single listing, as the HTTP endpoint would.
func (a *Application) List(ctx context.Context, filters domain.Filters) usecase.Response {
	return a.service.List(ctx, filters)
}

// Scrape performs a single ingestion run.
func (a *Application) Scrape(ctx context.Context) (domain.IngestReport, error) {
	return a.pipeline.Run(ctx, time.Now().In(a.cfg.Scheduler.Location()))
}

// Migrate creates the formations cache schema.
func (a *Application) Migrate(ctx context.Context) error {
	return storage.Migrate(ctx, a.db, a.dialect)
}

// Close releases the database pool.
func (a *Application) Close() error {
	return a.db.Close()
}
