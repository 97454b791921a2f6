package locker

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type lease struct {
	token     string
	expiresAt time.Time
}

// MemoryLocker is an in-process Locker for single-instance deployments and
// tests. It keeps the same contract as the Redis implementation: bounded wait
// with retry delay, TTL-based lease expiry and token-checked release.
type MemoryLocker struct {
	mu     sync.Mutex
	leases map[string]lease
	opts   Options
}

func NewMemoryLocker(opts Options) *MemoryLocker {
	return &MemoryLocker{
		leases: make(map[string]lease),
		opts:   opts,
	}
}

func (l *MemoryLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (string, error) {
	for attempt := 0; attempt < l.opts.Tries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(l.opts.RetryDelay):
			}
		}

		if token, ok := l.tryAcquire(key, ttl); ok {
			return token, nil
		}
	}
	return "", ErrLockBusy
}

func (l *MemoryLocker) tryAcquire(key string, ttl time.Duration) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if current, held := l.leases[key]; held && time.Now().Before(current.expiresAt) {
		return "", false
	}
	token := uuid.NewString()
	l.leases[key] = lease{token: token, expiresAt: time.Now().Add(ttl)}
	return token, true
}

func (l *MemoryLocker) Release(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	current, held := l.leases[key]
	if !held || current.token != token || time.Now().After(current.expiresAt) {
		return ErrLockNotHeld
	}
	delete(l.leases, key)
	return nil
}
