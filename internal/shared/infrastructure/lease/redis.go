package lease

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lease only when the caller still holds it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker implements Locker on Redis via SET NX PX, giving mutual
// exclusion across processes sharing the same Redis instance.
type RedisLocker struct {
	client *redis.Client
	prefix string
}

// NewRedisLocker creates a locker on the given Redis client.
func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client, prefix: "calsync:lease:"}
}

// Acquire takes the lease for key, expiring after ttl.
func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (ReleaseFunc, error) {
	redisKey := l.prefix + key
	holder := uuid.NewString()

	ok, err := l.client.SetNX(ctx, redisKey, holder, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lease %s: %w", key, err)
	}
	if !ok {
		return nil, ErrHeld
	}

	return func(ctx context.Context) {
		// Best effort: the lease expires on its own if this fails.
		_ = releaseScript.Run(ctx, l.client, []string{redisKey}, holder).Err()
	}, nil
}
