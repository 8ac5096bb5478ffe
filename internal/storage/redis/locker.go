// Package redis provides a lock.Locker shared across API replicas.
package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xenking/kart-checkout/internal/lock"
)

const (
	lockKeyPrefix      = "kart:lock:"
	defaultLockTTL     = 30 * time.Second
	defaultRetryPeriod = 25 * time.Millisecond
	releaseTimeout     = 2 * time.Second
)

// releaseScript deletes the key only while it still holds our token, so an
// expired lock taken over by another holder is left alone.
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

var _ lock.Locker = (*Locker)(nil)

// LockerConfig tunes lock expiry and polling.
type LockerConfig struct {
	// TTL bounds how long a crashed holder can block a key.
	TTL time.Duration
	// RetryPeriod is the delay between acquisition attempts.
	RetryPeriod time.Duration
}

func (c *LockerConfig) setDefaults() {
	if c.TTL <= 0 {
		c.TTL = defaultLockTTL
	}
	if c.RetryPeriod <= 0 {
		c.RetryPeriod = defaultRetryPeriod
	}
}

// Locker implements lock.Locker with SET NX and a token-checked release.
type Locker struct {
	client redis.UniversalClient
	cfg    LockerConfig
}

// NewLocker returns a Locker over client.
func NewLocker(client redis.UniversalClient, cfg LockerConfig) *Locker {
	cfg.setDefaults()
	return &Locker{client: client, cfg: cfg}
}

// Lock polls until the key is acquired or ctx is done.
func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := lockKeyPrefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(l.cfg.RetryPeriod)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.cfg.TTL).Result()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("acquire lock %q: %w", key, err)
		}
		if ok {
			return l.unlocker(ctx, redisKey, token), nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (l *Locker) unlocker(ctx context.Context, redisKey, token string) func() {
	lg := zctx.From(ctx)
	var once sync.Once
	return func() {
		once.Do(func() { l.release(ctx, lg, redisKey, token) })
	}
}

func (l *Locker) release(ctx context.Context, lg *zap.Logger, redisKey, token string) {
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()
	if err := releaseScript.Run(releaseCtx, l.client, []string{redisKey}, token).Err(); err != nil {
		lg.Warn("Release lock failed", zap.String("key", redisKey), zap.Error(err))
	}
}

// Ping reports whether the Redis server is reachable.
func (l *Locker) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}
