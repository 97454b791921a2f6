package locker

import (
	"context"
	"errors"
	"time"
)

// ErrLockBusy is returned when the lock could not be acquired within the
// configured bounded wait. The engine surfaces it to the caller instead of
// queuing indefinitely.
var ErrLockBusy = errors.New("lock is held by another process")

// ErrLockNotHeld is returned by Release when the token does not match the
// current holder (or the lease already expired). A stale release never
// unlocks somebody else's critical section.
var ErrLockNotHeld = errors.New("lock was not held or already expired")

// Locker is a mutual-exclusion primitive keyed by string, valid across
// multiple service instances. Acquire blocks up to the implementation's
// bounded wait and returns an opaque token; Release must present that token.
// Locks on distinct keys are fully independent.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Release(ctx context.Context, key, token string) error
}

// Options tune how long Acquire waits before giving up with ErrLockBusy.
type Options struct {
	// Tries is the number of acquisition attempts before giving up.
	Tries int
	// RetryDelay is the pause between attempts.
	RetryDelay time.Duration
}

func DefaultOptions() Options {
	return Options{
		Tries:      8,
		RetryDelay: 50 * time.Millisecond,
	}
}
