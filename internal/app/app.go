// Package app assembles the dispatch service from configuration. Both the
// HTTP server and dbtool build on it.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"truck-dispatch-service/internal/adapters/cache"
	"truck-dispatch-service/internal/adapters/distance"
	"truck-dispatch-service/internal/adapters/lock"
	"truck-dispatch-service/internal/adapters/repositories"
	"truck-dispatch-service/internal/config"
	"truck-dispatch-service/internal/platform/db"
	"truck-dispatch-service/internal/ports"
	"truck-dispatch-service/internal/services"
)

// App holds the wired components and the connections they share.
type App struct {
	DB    *sql.DB
	Redis *redis.Client

	Store      ports.DispatchStore
	Routing    ports.RouteProvider
	Geocoder   ports.Geocoder
	Dispatcher *services.Dispatcher
	Sequencer  *services.RouteSequencer
}

// Close releases database and Redis connections.
func (a *App) Close() error {
	var errs []error
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	return errors.Join(errs...)
}

// Build connects to the configured backends and wires the services.
//
//   - DATABASE_URL set: Postgres store, otherwise an in-memory store loaded
//     from SEED_PATH.
//   - REDIS_URL set: Redis route cache and run lock, otherwise the Postgres
//     route cache (if any) and an in-process lock.
//   - ORS_API_KEY set: OpenRouteService routing, otherwise great-circle.
func Build(ctx context.Context, cfg config.Config, log zerolog.Logger) (_ *App, err error) {
	a := &App{}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	if cfg.DatabaseURL != "" {
		a.DB, err = db.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
	}

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("build: parse REDIS_URL: %w", err)
		}
		a.Redis = redis.NewClient(opts)
		if err := a.Redis.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("build: ping redis: %w", err)
		}
	}

	if err := a.wireRouting(cfg, log); err != nil {
		return nil, err
	}

	if a.DB != nil {
		a.Store = repositories.NewPostgresDispatchStore(a.DB)
	} else {
		mem, err := a.memoryStore(ctx, cfg.SeedPath)
		if err != nil {
			return nil, err
		}
		a.Store = mem
		log.Warn().Str("seed", cfg.SeedPath).Msg("DATABASE_URL not set, using in-memory store")
	}

	var locker ports.RunLocker = lock.NoopRunLocker{}
	if a.Redis != nil {
		locker = lock.NewRedisRunLocker(a.Redis, lock.DefaultKey, cfg.LockTTL)
	}

	resolver := services.NewDistanceResolver(a.Routing)
	engine := services.NewAssignmentEngine(a.Store, services.NewScorer(resolver), services.EngineOptions{
		AvailableOnly: cfg.AvailableOnly,
	})
	a.Dispatcher = services.NewDispatcher(engine, locker)
	a.Sequencer = services.NewRouteSequencer(a.Store, resolver, cfg.RoutePlanConcurrency)

	return a, nil
}

func (a *App) wireRouting(cfg config.Config, log zerolog.Logger) error {
	if cfg.ORSAPIKey == "" {
		log.Warn().Msg("ORS_API_KEY not set, routes use great-circle distances")
		a.Routing = distance.GreatCircleProvider{}
		return nil
	}

	opts := []distance.ORSOption{
		distance.WithBaseURL(cfg.ORSBaseURL),
		distance.WithProfile(cfg.ORSProfile),
		distance.WithRateLimit(cfg.RoutingRatePerSec, cfg.RoutingRateBurst),
		distance.WithLogger(log.With().Str("adapter", "ors").Logger()),
	}
	switch {
	case a.Redis != nil:
		opts = append(opts, distance.WithRouteCache(cache.NewRedisRouteCache(a.Redis, cfg.RouteCacheTTL)))
	case a.DB != nil:
		opts = append(opts, distance.WithRouteCache(cache.NewSQLRouteCache(a.DB, cfg.RouteCacheTTL)))
	}
	if a.DB != nil {
		opts = append(opts, distance.WithGeocodeCache(cache.NewSQLGeocodeCache(a.DB)))
	}

	provider, err := distance.NewORSRouteProvider(cfg.ORSAPIKey, opts...)
	if err != nil {
		return fmt.Errorf("build: routing provider: %w", err)
	}
	a.Routing = provider
	a.Geocoder = provider
	return nil
}

func (a *App) memoryStore(ctx context.Context, seedPath string) (*repositories.MemoryDispatchStore, error) {
	f, err := repositories.LoadFixture(seedPath)
	if err != nil {
		return nil, fmt.Errorf("build: %w", err)
	}
	if err := f.ResolvePositions(ctx, a.Geocoder); err != nil {
		return nil, fmt.Errorf("build: %w", err)
	}

	store := repositories.NewMemoryDispatchStore()
	if err := store.LoadFixture(f); err != nil {
		return nil, fmt.Errorf("build: load fixture: %w", err)
	}
	return store, nil
}
