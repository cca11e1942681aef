package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"truck-dispatch-service/internal/platform/obs"
	"truck-dispatch-service/internal/ports"
)

// SQLRouteCache is a Postgres-backed cache for routing-service answers keyed
// by waypoint chain. Entries older than TTL are treated as misses.
type SQLRouteCache struct {
	DB  *sql.DB
	TTL time.Duration
}

func NewSQLRouteCache(db *sql.DB, ttl time.Duration) *SQLRouteCache {
	return &SQLRouteCache{DB: db, TTL: ttl}
}

// Fetch a cached route result for one waypoint key.
func (s *SQLRouteCache) Get(
	ctx context.Context,
	key string,
) (_ ports.RouteResult, _ bool, err error) {
	defer obs.Time(ctx, "route.cache.sql.Get")(&err)

	if s.DB == nil {
		return ports.RouteResult{}, false, errors.New("route cache: db is nil")
	}

	key = strings.TrimSpace(key)
	if key == "" {
		return ports.RouteResult{}, false, errors.New("get route cache: key must not be empty")
	}

	q := `
	SELECT payload, created_at
	FROM route_cache
	WHERE path_key = $1;
	`

	var payload []byte
	var createdAt time.Time
	err = s.DB.QueryRowContext(ctx, q, key).Scan(&payload, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ports.RouteResult{}, false, nil
	}
	if err != nil {
		return ports.RouteResult{}, false, fmt.Errorf("get route cache: query route_cache table: %w", err)
	}

	if s.TTL > 0 && time.Since(createdAt) > s.TTL {
		return ports.RouteResult{}, false, nil
	}

	var res ports.RouteResult
	if err := json.Unmarshal(payload, &res); err != nil {
		return ports.RouteResult{}, false, fmt.Errorf("get route cache: decode payload: %w", err)
	}

	return res, true, nil
}

// Store a route result, replacing any previous entry for the key.
func (s *SQLRouteCache) Put(ctx context.Context, key string, result ports.RouteResult) error {
	if s.DB == nil {
		return errors.New("route cache: db is nil")
	}

	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("insert route cache: key must not be empty")
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("insert route cache: encode payload: %w", err)
	}

	_, err = s.DB.ExecContext(ctx, `
	INSERT INTO route_cache (path_key, payload, created_at)
	VALUES ($1, $2, now())
	ON CONFLICT (path_key) DO UPDATE
	SET payload = EXCLUDED.payload,
		created_at = EXCLUDED.created_at;
	`, key, payload)
	if err != nil {
		return fmt.Errorf("insert route cache key=%q: %w", key, err)
	}

	return nil
}
