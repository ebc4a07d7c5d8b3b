package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vadim/neo-planner/internal/config"
	httpcontroller "github.com/vadim/neo-planner/internal/controller/http"
	"github.com/vadim/neo-planner/internal/database"
	"github.com/vadim/neo-planner/internal/domain/schedule/dao"
	"github.com/vadim/neo-planner/internal/domain/schedule/policy"
	"github.com/vadim/neo-planner/internal/domain/schedule/scheduler"
	"github.com/vadim/neo-planner/internal/domain/schedule/service"
	"github.com/vadim/neo-planner/internal/eventbus"
	"github.com/vadim/neo-planner/internal/httpx/upstream/linkedin"
	"github.com/vadim/neo-planner/internal/storage"
)

// App is the main application container
type App struct {
	cfg        config.Config
	httpServer *http.Server
	router     *chi.Mux
	logger     *slog.Logger

	pg  *pgxpool.Pool
	bus *eventbus.Bus

	schedulePolicy *policy.Policy

	// Poller that fires due assignments
	scheduler *scheduler.Scheduler

	unsubscribeLog func()
}

// NewApp creates and initializes the application
func NewApp(ctx context.Context, cfg config.Config) (*App, error) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	r.Use(middleware.Timeout(30 * time.Second))

	app := &App{
		cfg:    cfg,
		router: r,
		logger: logger,
		bus:    eventbus.New(),
	}

	if err := app.initInfrastructure(ctx); err != nil {
		return nil, fmt.Errorf("initializing infrastructure: %w", err)
	}

	if err := app.initDomains(ctx); err != nil {
		return nil, fmt.Errorf("initializing domains: %w", err)
	}

	app.registerRoutes()

	app.httpServer = &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      app.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	if cfg.Scheduler.Enabled {
		app.scheduler = scheduler.New(app.schedulePolicy, cfg.Scheduler.Interval, logger)
	}

	return app, nil
}

// initInfrastructure initializes infrastructure components
func (a *App) initInfrastructure(ctx context.Context) error {
	pool, err := database.NewPostgresPool(ctx, a.cfg.Database.PostgresDSN)
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	a.pg = pool

	return nil
}

// initDomains initializes domain layers (DAO, Service, Policy)
func (a *App) initDomains(ctx context.Context) error {
	loc, err := time.LoadLocation(a.cfg.Scheduler.Timezone)
	if err != nil {
		return fmt.Errorf("loading timezone %q: %w", a.cfg.Scheduler.Timezone, err)
	}

	media, err := storage.NewS3MediaStore(storage.S3Config{
		Endpoint:        a.cfg.S3.Endpoint,
		AccessKeyID:     a.cfg.S3.AccessKeyID,
		SecretAccessKey: a.cfg.S3.SecretAccessKey,
		Bucket:          a.cfg.S3.Bucket,
		Region:          a.cfg.S3.Region,
	})
	if err != nil {
		return fmt.Errorf("creating media store: %w", err)
	}

	liClient := linkedin.New(linkedin.WithBaseURL(a.cfg.LinkedIn.BaseURL))
	liPublisher := linkedin.NewPublisher(liClient, media)

	assignments := dao.NewAssignmentPostgres(a.pg)
	slots := dao.NewSlotPostgres(a.pg)
	posts := dao.NewPostPostgres(a.pg)
	accounts := dao.NewAccountPostgres(a.pg)

	svc := service.New(assignments, slots, posts)

	a.schedulePolicy = policy.New(svc, &linkedinPublisherAdapter{liPublisher}, accounts, a.bus, policy.Options{
		LeadTime:       a.cfg.Scheduler.LeadTime,
		HorizonWeeks:   a.cfg.Scheduler.HorizonWeeks,
		PublishTimeout: a.cfg.Scheduler.PublishTimeout,
		Location:       loc,
	})

	a.unsubscribeLog = a.logEvents()

	return nil
}

// logEvents attaches a logging consumer to the event bus so every
// assignment status transition shows up in the structured log
func (a *App) logEvents() func() {
	ch, unsubscribe := a.bus.Subscribe(64)
	go func() {
		for ev := range ch {
			a.logger.Info("assignment transition",
				"type", ev.Type,
				"post_id", ev.PostID,
				"account_id", ev.AccountID,
				"status", ev.Status,
				"scheduled_at", ev.ScheduledAt,
				"error", ev.Error,
			)
		}
	}()
	return unsubscribe
}

// registerRoutes registers all HTTP routes
func (a *App) registerRoutes() {
	a.router.Get("/healthz", a.healthHandler)
	a.router.Get("/readyz", a.readyHandler)

	a.router.Route("/api/v1", func(r chi.Router) {
		scheduleHandler := httpcontroller.NewScheduleHandler(a.schedulePolicy)
		scheduleHandler.RegisterRoutes(r)

		slotHandler := httpcontroller.NewSlotHandler(a.schedulePolicy)
		slotHandler.RegisterRoutes(r)
	})
}

// healthHandler handles health check requests
func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// readyHandler handles readiness check requests
func (a *App) readyHandler(w http.ResponseWriter, r *http.Request) {
	if err := a.pg.Ping(r.Context()); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status":"unavailable"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}

// Run starts the application and blocks until shutdown signal
func (a *App) Run(ctx context.Context) error {
	if a.scheduler != nil {
		a.scheduler.Start(ctx)
	}

	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server", "addr", a.cfg.Server.Address())
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		a.logger.Info("received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
		a.logger.Info("context cancelled")
	}

	return a.Shutdown(context.Background())
}

// Shutdown gracefully shuts down the application
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down...")

	if a.scheduler != nil {
		a.scheduler.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down HTTP server: %w", err)
	}

	if a.unsubscribeLog != nil {
		a.unsubscribeLog()
	}
	if a.pg != nil {
		a.pg.Close()
	}

	a.logger.Info("shutdown complete")
	return nil
}

// linkedinPublisherAdapter adapts linkedin.Publisher to policy.PlatformPublisher
type linkedinPublisherAdapter struct {
	publisher *linkedin.Publisher
}

func (a *linkedinPublisherAdapter) Publish(ctx context.Context, in policy.PublishInput) (*policy.PublishOutput, error) {
	out, err := a.publisher.Publish(ctx, linkedin.PublishInput{
		AuthorURN:   in.AuthorURN,
		AccessToken: in.AccessToken,
		Post:        in.Post,
	})
	if err != nil {
		return nil, err
	}
	return &policy.PublishOutput{PlatformPostID: out.PlatformPostID}, nil
}
