package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"marketplace_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	defaultRedisLockTTL  = 10 * time.Second
	defaultRetryInterval = 25 * time.Millisecond
	redisKeyPrefix       = "lock:"
)

// releaseScript deletes the key only while it still carries our token, so an
// expired holder cannot release a lock someone else has since acquired.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a Locker shared by every process connected to the same Redis.
type RedisLocker struct {
	client        *redis.Client
	ttl           time.Duration
	retryInterval time.Duration
}

// NewRedisClient builds a go-redis client from a redis:// or rediss:// URL.
func NewRedisClient(redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return redis.NewClient(opt), nil
}

// NewRedisLocker creates a RedisLocker. A non-positive ttl uses the default.
func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = defaultRedisLockTTL
	}
	return &RedisLocker{
		client:        client,
		ttl:           ttl,
		retryInterval: defaultRetryInterval,
	}
}

// Lock polls SET NX PX until the key is acquired or ctx is done.
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := redisKeyPrefix + key
	token := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			return nil, apperr.Unavailable("lock store unavailable", err).WithOp("lock.RedisLocker.Lock")
		}
		if ok {
			break
		}

		timer := time.NewTimer(l.retryInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, apperr.Unavailable("lock acquisition timed out", ctx.Err()).WithOp("lock.RedisLocker.Lock")
		case <-timer.C:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = releaseScript.Run(releaseCtx, l.client, []string{redisKey}, token).Err()
		})
	}, nil
}
