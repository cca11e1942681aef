package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"truck-dispatch-service/internal/platform/obs"
	"truck-dispatch-service/internal/ports"
)

// RedisRouteCache stores routing-service answers as JSON values with a TTL.
type RedisRouteCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisRouteCache(client *redis.Client, ttl time.Duration) *RedisRouteCache {
	return &RedisRouteCache{client: client, ttl: ttl, prefix: "dispatch:"}
}

func (c *RedisRouteCache) Get(ctx context.Context, key string) (_ ports.RouteResult, _ bool, err error) {
	defer obs.Time(ctx, "route.cache.redis.Get")(&err)

	raw, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ports.RouteResult{}, false, nil
	}
	if err != nil {
		return ports.RouteResult{}, false, fmt.Errorf("redis route cache get: %w", err)
	}

	var res ports.RouteResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return ports.RouteResult{}, false, fmt.Errorf("redis route cache decode: %w", err)
	}
	return res, true, nil
}

func (c *RedisRouteCache) Put(ctx context.Context, key string, result ports.RouteResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("redis route cache encode: %w", err)
	}
	if err := c.client.Set(ctx, c.prefix+key, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis route cache set: %w", err)
	}
	return nil
}
