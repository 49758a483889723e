// Package lock provides mutual exclusion for work that must run on at most
// one instance at a time.
package lock

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Locker acquires named leases with a time-to-live.
type Locker interface {
	// Acquire returns ok=false without error when the lock is held elsewhere.
	Acquire(ctx context.Context, name string, ttl time.Duration) (lease Lease, ok bool, err error)
}

// Lease is a held lock.
type Lease interface {
	// Release gives the lock up if this lease still owns it.
	Release(ctx context.Context) error
}

// WithLock runs fn while holding the named lock. It returns ran=false and a
// nil error when another holder has the lock. The lock is released after fn
// returns or panics, even when ctx is cancelled.
func WithLock(
	ctx context.Context,
	locker Locker,
	name string,
	ttl time.Duration,
	fn func(ctx context.Context) error,
) (ran bool, err error) {
	lease, ok, err := locker.Acquire(ctx, name, ttl)
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", name, err)
	}
	if !ok {
		return false, nil
	}

	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if relErr := lease.Release(releaseCtx); relErr != nil {
			slog.Warn("Failed to release lock", "lock", name, "error", relErr)
		}
	}()

	return true, fn(ctx)
}
