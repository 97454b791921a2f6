package locker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	goredislib "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisLocker provides distributed locking on Redis via redsync. The mutex
// value doubles as the release token: Release rebuilds a mutex carrying the
// token, so the unlock script only deletes the key if the value still matches.
type RedisLocker struct {
	redsync *redsync.Redsync
	opts    Options
	logger  *zap.Logger
}

func NewRedisLocker(client goredislib.UniversalClient, opts Options, logger *zap.Logger) *RedisLocker {
	pool := goredis.NewPool(client)
	return &RedisLocker{
		redsync: redsync.New(pool),
		opts:    opts,
		logger:  logger,
	}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (string, error) {
	mutex := l.redsync.NewMutex(
		key,
		redsync.WithExpiry(ttl),
		redsync.WithTries(l.opts.Tries),
		redsync.WithRetryDelay(l.opts.RetryDelay),
	)

	if err := mutex.LockContext(ctx); err != nil {
		var taken *redsync.ErrTaken
		if errors.Is(err, redsync.ErrFailed) || errors.As(err, &taken) {
			l.logger.Debug("lock already held", zap.String("key", key))
			return "", ErrLockBusy
		}
		return "", fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}

	l.logger.Debug("lock acquired", zap.String("key", key))
	return mutex.Value(), nil
}

func (l *RedisLocker) Release(ctx context.Context, key, token string) error {
	mutex := l.redsync.NewMutex(key, redsync.WithValue(token))

	ok, err := mutex.UnlockContext(ctx)
	if err != nil {
		if errors.Is(err, redsync.ErrLockAlreadyExpired) {
			return ErrLockNotHeld
		}
		return fmt.Errorf("failed to release lock %s: %w", key, err)
	}
	if !ok {
		l.logger.Warn("lock was not held or already expired", zap.String("key", key))
		return ErrLockNotHeld
	}

	l.logger.Debug("lock released", zap.String("key", key))
	return nil
}
