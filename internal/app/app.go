// Package app wires configuration, storage, locking and the event bus into
// the command and query handlers.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alem-hub/levelup/config"
	"github.com/alem-hub/levelup/internal/application/command"
	"github.com/alem-hub/levelup/internal/application/eventhandler"
	"github.com/alem-hub/levelup/internal/application/query"
	"github.com/alem-hub/levelup/internal/domain/experience"
	"github.com/alem-hub/levelup/internal/domain/level"
	"github.com/alem-hub/levelup/internal/domain/shared"
	"github.com/alem-hub/levelup/internal/domain/streak"
	"github.com/alem-hub/levelup/internal/infrastructure/messaging"
	"github.com/alem-hub/levelup/internal/infrastructure/persistence/memory"
	"github.com/alem-hub/levelup/internal/infrastructure/persistence/postgres"
	redisstore "github.com/alem-hub/levelup/internal/infrastructure/persistence/redis"
	"github.com/alem-hub/levelup/internal/infrastructure/persistence/sqlite"
	"github.com/alem-hub/levelup/pkg/keylock"
	"github.com/alem-hub/levelup/pkg/logger"
	"github.com/alem-hub/levelup/pkg/timeutil"
	goredis "github.com/redis/go-redis/v9"
)

// Bus is what the application needs from an event bus.
type Bus interface {
	shared.EventSink
	shared.EventBus
	Close() error
	Metrics() *messaging.EventBusMetrics
}

// Store bundles the three repositories of one backend.
type Store struct {
	Streaks    streak.Repository
	Experience experience.Repository
	Levels     level.Repository

	// Migrate applies pending schema migrations and reports how many ran.
	Migrate func(ctx context.Context) (int, error)
	Close   func() error
}

// App holds every handler, ready to serve.
type App struct {
	Config *config.Config
	Logger *logger.Logger
	Clock  timeutil.Clock
	Store  *Store
	Bus    Bus

	// Commands
	RecordActivity *command.RecordActivityHandler
	FreezeStreak   *command.FreezeStreakHandler
	ResetStreak    *command.ResetStreakHandler
	AddPoints      *command.AddPointsHandler
	DeductPoints   *command.DeductPointsHandler
	SetPoints      *command.SetPointsHandler
	AddLevel       *command.AddLevelHandler

	// Queries
	Streaks    *query.StreakQueryHandler
	Experience *query.ExperienceQueryHandler
	Levels     *query.LevelQueryHandler

	closers []func() error
}

// Options overrides collaborators, mostly for tests.
type Options struct {
	Clock timeutil.Clock

	// Store replaces the configured backend.
	Store *Store
}

// New builds the application. On error everything opened so far is closed.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger, opts Options) (_ *App, err error) {
	if log == nil {
		log = logger.Default()
	}
	a := &App{Config: cfg, Logger: log, Clock: opts.Clock}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	if a.Clock == nil {
		a.Clock = timeutil.NewSystemClock(cfg.App.Location())
	}

	rules, err := cfg.Points.Rules()
	if err != nil {
		return nil, fmt.Errorf("points rules: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// Storage
	// ─────────────────────────────────────────────────────────────────────────
	a.Store = opts.Store
	if a.Store == nil {
		a.Store, err = OpenStore(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
	}
	if a.Store.Close != nil {
		a.closers = append(a.closers, a.Store.Close)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// Redis: locker, level cache, event bus
	// ─────────────────────────────────────────────────────────────────────────
	var (
		locker keylock.Locker = keylock.New()
		levels                = a.Store.Levels
		client *goredis.Client
	)
	if cfg.Redis.Enabled() {
		client, err = redisstore.NewClient(ctx, redisstore.Config{
			URL:          cfg.Redis.URL,
			PoolSize:     cfg.Redis.PoolSize,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
			OnRetry:      startupRetryLogger(log, "redis"),
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client.Close)

		locker = redisstore.NewLocker(client, redisstore.LockerConfig{
			TTL:     cfg.Redis.LockTTL,
			MaxWait: cfg.Redis.LockWait,
			Logger:  log,
		})
		levels = redisstore.NewLevelCache(levels, client, cfg.Redis.CacheTTL, log)
		log.Info("redis enabled", logger.String("channel", cfg.Redis.EventChannel))
	}

	a.Bus, err = newBus(cfg, client, log)
	if err != nil {
		return nil, err
	}
	// bus first: handlers may still be delivering while the store closes
	a.closers = append([]func() error{a.Bus.Close}, a.closers...)

	// ─────────────────────────────────────────────────────────────────────────
	// Handlers
	// ─────────────────────────────────────────────────────────────────────────
	deps := command.Deps{Locker: locker, Clock: a.Clock, Events: a.Bus, Logger: log}
	points := command.PointsConfig{
		Rules:             rules,
		MultiplierEnabled: cfg.Points.MultiplierEnabled,
		AuditEnabled:      cfg.Points.AuditEnabled,
	}

	a.RecordActivity = command.NewRecordActivityHandler(a.Store.Streaks, deps,
		command.RecordActivityHandlerConfig{ArchiveHistory: cfg.Streak.ArchiveHistory})
	a.FreezeStreak = command.NewFreezeStreakHandler(a.Store.Streaks, deps, cfg.Streak.FreezeDays)
	a.ResetStreak = command.NewResetStreakHandler(a.Store.Streaks, deps)
	a.AddPoints = command.NewAddPointsHandler(a.Store.Experience, levels, cfg.Points.Multiplier(), deps, points)
	a.DeductPoints = command.NewDeductPointsHandler(a.Store.Experience, deps, points)
	a.SetPoints = command.NewSetPointsHandler(a.Store.Experience, deps, points)
	a.AddLevel = command.NewAddLevelHandler(levels, deps)

	a.Streaks = query.NewStreakQueryHandler(a.Store.Streaks, a.Clock)
	a.Experience = query.NewExperienceQueryHandler(a.Store.Experience, levels)
	a.Levels = query.NewLevelQueryHandler(levels)

	if err := a.subscribe(); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *App) subscribe() error {
	if err := a.Bus.SubscribeAll(eventhandler.NewEventLogHandler(a.Logger).Handle); err != nil {
		return fmt.Errorf("subscribe event log: %w", err)
	}

	milestones := eventhandler.NewStreakMilestoneHandler(a.AddPoints, a.Config.Streak.MilestoneBonuses, a.Logger)
	if !milestones.Enabled() {
		return nil
	}
	for _, t := range []shared.EventType{shared.EventStreakStarted, shared.EventStreakIncreased, shared.EventStreakBroken} {
		if err := a.Bus.Subscribe(t, milestones.Handle); err != nil {
			return fmt.Errorf("subscribe streak milestones: %w", err)
		}
	}
	return nil
}

// Close releases everything New opened, in reverse dependency order.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func newBus(cfg *config.Config, client *goredis.Client, log *logger.Logger) (Bus, error) {
	local := messaging.InMemoryEventBusConfig{
		AsyncMode:      cfg.EventBus.Async,
		WorkerPoolSize: cfg.EventBus.Workers,
		Logger:         log,
		EnableMetrics:  true,
	}
	if client == nil {
		return messaging.NewInMemoryEventBus(local), nil
	}

	bus, err := messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
		Client:         messaging.NewGoRedisClient(client),
		ChannelName:    cfg.Redis.EventChannel,
		LocalBusConfig: local,
		Logger:         log,
	})
	if err != nil {
		return nil, fmt.Errorf("redis event bus: %w", err)
	}
	return bus, nil
}

func startupRetryLogger(log *logger.Logger, service string) func(int, error, time.Duration) {
	return func(attempt int, err error, delay time.Duration) {
		log.Warn("waiting for "+service,
			logger.Int("attempt", attempt),
			logger.Duration("retry_in", delay),
			logger.Err(err),
		)
	}
}

// OpenStore opens the backend named by cfg.Store.Driver.
func OpenStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Store, error) {
	loc := cfg.App.Location()

	switch cfg.Store.Driver {
	case config.DriverMemory:
		return &Store{
			Streaks:    memory.NewStreakRepository(),
			Experience: memory.NewExperienceRepository(),
			Levels:     memory.NewLevelRepository(),
			Migrate:    func(context.Context) (int, error) { return 0, nil },
		}, nil

	case config.DriverSQLite:
		db, err := sqlite.Open(ctx, cfg.Store.SQLitePath, loc)
		if err != nil {
			return nil, err
		}
		log.Info("sqlite store opened", logger.String("path", cfg.Store.SQLitePath))
		return &Store{
			Streaks:    db.Streaks(),
			Experience: db.Experience(),
			Levels:     db.Levels(),
			Migrate:    db.Migrate,
			Close:      db.Close,
		}, nil

	case config.DriverPostgres:
		pgCfg := postgres.DefaultConfig(cfg.Store.DatabaseURL)
		pgCfg.MaxConns = cfg.Store.MaxConns
		pgCfg.MinConns = cfg.Store.MinConns
		pgCfg.MaxConnLifetime = cfg.Store.ConnMaxLifetime
		pgCfg.MaxConnIdleTime = cfg.Store.ConnMaxIdleTime
		pgCfg.OnRetry = startupRetryLogger(log, "postgres")

		conn, err := postgres.NewConnection(ctx, pgCfg)
		if err != nil {
			return nil, err
		}
		migrator := postgres.NewMigrator(conn)
		if cfg.Store.AutoMigrate {
			start := time.Now()
			n, err := migrator.Migrate(ctx)
			if err != nil {
				conn.Close()
				return nil, err
			}
			log.Info("postgres schema up to date", logger.Int("applied", n), logger.Latency(time.Since(start)))
		}
		return &Store{
			Streaks:    postgres.NewStreakRepository(conn, loc),
			Experience: postgres.NewExperienceRepository(conn),
			Levels:     postgres.NewLevelRepository(conn),
			Migrate:    migrator.Migrate,
			Close: func() error {
				conn.Close()
				return nil
			},
		}, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}
