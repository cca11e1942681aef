package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"truck-dispatch-service/internal/ports"
)

func newRedisCache(t *testing.T, ttl time.Duration) (*RedisRouteCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisRouteCache(client, ttl), mr
}

func TestRedisRouteCacheRoundTrip(t *testing.T) {
	c, mr := newRedisCache(t, time.Hour)
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "route:driving-car:1,2;3,4")
	require.NoError(t, err)
	assert.False(t, ok)

	want := ports.RouteResult{
		Legs:     []ports.RouteLeg{{DistanceMeters: 1200, DurationSeconds: 90}},
		Geometry: "_p~iF~ps|U",
	}
	require.NoError(t, c.Put(ctx, "route:driving-car:1,2;3,4", want))

	got, ok, err := c.Get(ctx, "route:driving-car:1,2;3,4")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, want, got)

	assert.True(t, mr.Exists("dispatch:route:driving-car:1,2;3,4"))
}

func TestRedisRouteCacheExpires(t *testing.T) {
	c, mr := newRedisCache(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "k", ports.RouteResult{Legs: []ports.RouteLeg{{DistanceMeters: 1}}}))
	mr.FastForward(2 * time.Minute)

	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisRouteCacheSurfacesConnectionErrors(t *testing.T) {
	c, mr := newRedisCache(t, time.Minute)
	mr.Close()

	_, _, err := c.Get(context.Background(), "k")
	assert.Error(t, err)
}
