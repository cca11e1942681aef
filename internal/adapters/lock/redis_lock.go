package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultKey is the lock key guarding optimization runs.
const DefaultKey = "dispatch:optimize:lock"

// Deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisRunLocker is a best-effort cross-instance mutex built on SET NX PX.
// The TTL bounds how long a crashed holder can block other instances.
type RedisRunLocker struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

func NewRedisRunLocker(client *redis.Client, key string, ttl time.Duration) *RedisRunLocker {
	if key == "" {
		key = DefaultKey
	}
	return &RedisRunLocker{client: client, key: key, ttl: ttl}
}

func (l *RedisRunLocker) TryLock(ctx context.Context) (func(context.Context) error, bool, error) {
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("run lock: acquire %q: %w", l.key, err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.client, []string{l.key}, token).Err(); err != nil {
			return fmt.Errorf("run lock: release %q: %w", l.key, err)
		}
		return nil
	}
	return release, true, nil
}

// NoopRunLocker always acquires. Used when no Redis is configured and the
// process is the only instance.
type NoopRunLocker struct{}

func (NoopRunLocker) TryLock(context.Context) (func(context.Context) error, bool, error) {
	return func(context.Context) error { return nil }, true, nil
}
