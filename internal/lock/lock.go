// Package lock provides short-lived advisory locks keyed by string.
//
// The chat service takes one around find-or-create so that instances sharing
// a database do not race each other into the same transaction. Correctness
// never depends on it: the database's unique index still decides.
package lock

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/xid"
)

// Locker acquires a named lock. The returned unlock func must be called
// exactly once; it is safe to call after the lock has already expired.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

const (
	keyPrefix     = "lock:"
	retryInterval = 25 * time.Millisecond
	releaseWait   = time.Second
)

// releaseScript deletes the key only if it still holds our token. A plain
// DEL could remove a lock that expired and was re-acquired by someone else.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("del", KEYS[1])
else
  return 0
end`)

// RedisLocker implements Locker with SET NX PX and a compare-and-delete
// release.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

var _ Locker = (*RedisLocker)(nil)

func NewRedisLocker(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisLocker {
	return &RedisLocker{client: client, ttl: ttl, logger: logger}
}

// Lock polls until the key is free or ctx is done. The lock expires by
// itself after the configured TTL, so a crashed holder blocks others for at
// most that long.
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := keyPrefix + key
	token := xid.New().String()

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("lock: acquiring %s: %w", key, err)
		}
		if ok {
			return func() { l.release(redisKey, token) }, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("lock: waiting for %s: %w", key, ctx.Err())
		case <-time.After(retryInterval):
		}
	}
}

// release runs on its own context: the caller's may already be cancelled,
// and the lock should still be freed promptly.
func (l *RedisLocker) release(redisKey, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), releaseWait)
	defer cancel()

	if err := releaseScript.Run(ctx, l.client, []string{redisKey}, token).Err(); err != nil {
		l.logger.Warn("failed to release lock",
			slog.String("key", redisKey),
			slog.String("error", err.Error()),
		)
	}
}

// Noop grants every lock immediately. Used when no Redis is configured.
type Noop struct{}

var _ Locker = Noop{}

func (Noop) Lock(context.Context, string) (func(), error) {
	return func() {}, nil
}
