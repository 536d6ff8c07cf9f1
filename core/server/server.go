package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"smartschedule/core/cache"
	"smartschedule/core/config"
	"smartschedule/core/constants"
	"smartschedule/core/controller"
	"smartschedule/core/database"
	"smartschedule/core/logger"
	"smartschedule/core/metrics"
	"smartschedule/core/middleware"
	"smartschedule/modules/availability"
	"smartschedule/modules/availability/service"
	"smartschedule/modules/calendar"
	"smartschedule/modules/calendar/provider"
	calendarService "smartschedule/modules/calendar/service"
	"smartschedule/modules/calendar/worker"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
)

// App is a fully wired smartschedule instance.
type App struct {
	Config  *config.Config
	Echo    *echo.Echo
	Service *service.AvailabilityService
	// Calendar writes calendar data to the database. Nil with the static backend.
	Calendar *calendarService.CalendarService
	Metrics *metrics.Metrics
	DB      *database.Database

	store   cache.Cache
	worker  *asynq.Server
	mux     *asynq.ServeMux
	closers []func() error
}

// EngineConfig translates the engine, cache and calendar sections into engine settings.
func EngineConfig(cfg *config.Config) service.EngineConfig {
	ec := service.DefaultEngineConfig()
	ec.FetchTimeout = cfg.Calendar.FetchTimeout
	ec.QueryTimeout = cfg.Engine.QueryTimeout
	ec.CacheTTL = cfg.Cache.TTL
	ec.Granularity = cfg.Engine.Granularity
	ec.Step = cfg.Engine.Step
	ec.MaxRangeDays = cfg.Engine.MaxRangeDays
	ec.StrictInvariants = cfg.Engine.StrictInvariants
	ec.Ranker.Weights = service.RankingWeights{
		Coverage:  cfg.Engine.Weights.Coverage,
		TimeOfDay: cfg.Engine.Weights.TimeOfDay,
		DayOfWeek: cfg.Engine.Weights.DayOfWeek,
		Earliness: cfg.Engine.Weights.Earliness,
	}
	if cfg.Engine.PeakHour > 0 {
		ec.Ranker.PeakHour = cfg.Engine.PeakHour
	}
	if cfg.Engine.SpreadHours > 0 {
		ec.Ranker.SpreadHours = cfg.Engine.SpreadHours
	}
	// Load has already rejected unknown weekdays
	days, _ := cfg.Engine.Weekdays()
	for day, m := range days {
		ec.Ranker.DayMultipliers[day] = m
	}
	return ec
}

// New connects every backend named in cfg and mounts the HTTP routes.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	app := &App{Config: cfg, Metrics: metrics.New()}

	store, err := app.buildCache(ctx)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.store = store

	var db database.IDatabase
	if cfg.Calendar.Backend != provider.BackendStatic {
		if app.DB, err = OpenDatabase(ctx, cfg); err != nil {
			app.Close()
			return nil, err
		}
		app.closers = append(app.closers, app.DB.Close)
		db = app.DB
	}

	calendarProvider, err := provider.New(cfg.Calendar, db)
	if err != nil {
		app.Close()
		return nil, err
	}

	app.Service = service.NewAvailabilityService(calendarProvider, store, app.Metrics, EngineConfig(cfg))
	app.Echo = app.buildEcho()

	mw := middleware.NewMiddleware(middleware.Options{
		JWTSecret: cfg.Auth.JWTSecret,
		RPS:       cfg.RateLimit.RPS,
		Burst:     cfg.RateLimit.Burst,
	})
	api := app.Echo.Group("/api/v1")
	availability.Init(api, app.Service, mw)

	var enqueuer worker.Enqueuer
	if cfg.Worker.Enabled {
		redisOpt := asynq.RedisClientOpt{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB}
		client := asynq.NewClient(redisOpt)
		app.closers = append(app.closers, client.Close)
		enqueuer = client
		app.worker = worker.NewServer(redisOpt, cfg.Worker.Concurrency)
		app.mux = worker.NewServeMux(app.Service)
	}
	app.Calendar = calendar.Init(api, app.Service, enqueuer, db, mw)

	logger.Info("Server:New:Ready",
		"cache_backend", cfg.Cache.Backend,
		"calendar_backend", cfg.Calendar.Backend,
		"worker", cfg.Worker.Enabled,
	)
	return app, nil
}

// OpenDatabase connects to the configured database and applies the schema.
func OpenDatabase(ctx context.Context, cfg *config.Config) (*database.Database, error) {
	db, err := database.InitDB(database.DatabaseConfig{
		Driver:          cfg.Database.Driver,
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

func (a *App) buildCache(ctx context.Context) (cache.Cache, error) {
	cfg := a.Config
	maxEntries := cfg.Cache.MaxEntries
	if maxEntries <= 0 {
		maxEntries = constants.DefaultCacheEntries
	}

	var l1, l2 cache.Cache
	if cfg.Cache.Backend == "memory" || cfg.Cache.Backend == "tiered" {
		mem, err := cache.NewMemoryCache(maxEntries)
		if err != nil {
			return nil, err
		}
		l1 = mem
	}
	if cfg.Cache.Backend == "redis" || cfg.Cache.Backend == "tiered" {
		rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, fmt.Errorf("connect redis cache: %w", err)
		}
		a.closers = append(a.closers, rc.Close)
		l2 = rc
	}

	switch {
	case l1 != nil && l2 != nil:
		// generations are read from redis, so an L1 entry from before an invalidation is never looked up again
		return cache.NewTieredCache(l1, l2, cfg.Cache.TTL), nil
	case l2 != nil:
		return l2, nil
	default:
		return l1, nil
	}
}

func (a *App) buildEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = controller.HTTPErrorHandler

	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.RequestIDWithConfig(echoMiddleware.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(echoMiddleware.RequestLoggerWithConfig(echoMiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v echoMiddleware.RequestLoggerValues) error {
			logger.Info("HTTP:Request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
				"request_id", v.RequestID,
			)
			return nil
		},
	}))

	e.GET("/healthz", a.health)
	e.GET("/metrics", echo.WrapHandler(a.Metrics.Handler()))
	return e
}

func (a *App) health(c echo.Context) error {
	status := http.StatusOK
	checks := map[string]string{"cache": "ok"}

	if a.DB != nil {
		checks["database"] = "ok"
		if err := a.DB.SQLx().PingContext(c.Request().Context()); err != nil {
			checks["database"] = err.Error()
			status = http.StatusServiceUnavailable
		}
	}

	return c.JSON(status, map[string]any{
		"status":           http.StatusText(status),
		"calendar_backend": a.Config.Calendar.Backend,
		"cache_backend":    a.Config.Cache.Backend,
		"checks":           checks,
	})
}

// Start serves HTTP (and the calendar:changed worker when enabled) until ctx is done.
func (a *App) Start(ctx context.Context) error {
	errCh := make(chan error, 2)

	go func() {
		addr := a.Config.Address()
		logger.Info("Server:Start:Listening", "addr", addr)
		if err := a.Echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	if a.worker != nil {
		if err := a.worker.Start(a.mux); err != nil {
			return fmt.Errorf("start worker: %w", err)
		}
		logger.Info("Server:Start:WorkerStarted", "concurrency", a.Config.Worker.Concurrency)
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Server:Start:ShuttingDown")
	case runErr = <-errCh:
		logger.Error("Server:Start:Error", "error", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.DefaultTimeout)
	defer cancel()
	if err := a.Echo.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Server:Shutdown:HTTPError", "error", err)
	}
	if a.worker != nil {
		a.worker.Shutdown()
	}
	return runErr
}

// Close releases every backend connection.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logger.Warn("Server:Close:Error", "error", err)
		}
	}
	a.closers = nil
}

// Run builds the app from cfg and serves until ctx is cancelled.
func Run(ctx context.Context, cfg *config.Config) error {
	app, err := New(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	start := time.Now()
	err = app.Start(ctx)
	logger.Info("Server:Run:Stopped", "uptime", time.Since(start))
	return err
}
