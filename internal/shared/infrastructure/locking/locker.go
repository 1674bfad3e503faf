// Package locking provides short-lived exclusive locks keyed by aggregate.
package locking

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// ErrLockBusy is returned when another holder owns the key.
var ErrLockBusy = errors.New("lock is held by another operation")

// ErrLockLost is returned by Release when the lock expired or was taken over.
var ErrLockLost = errors.New("lock expired before release")

// Locker hands out non-blocking exclusive locks.
type Locker interface {
	// Acquire takes the lock for key or fails fast with ErrLockBusy.
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lock, error)
}

// Lock is a held lock.
type Lock interface {
	Key() string
	Release(ctx context.Context) error
}

// Option tunes WithLock.
type Option func(*lockOptions)

type lockOptions struct {
	onReleaseFailure func(error)
}

// OnReleaseFailure reports a release that failed after fn succeeded,
// typically ErrLockLost when the TTL ran out mid-operation.
func OnReleaseFailure(hook func(error)) Option {
	return func(o *lockOptions) { o.onReleaseFailure = hook }
}

// WithLock runs fn while holding key and returns fn's result. The lock is
// released even if fn fails. Once fn has succeeded its effects are
// committed, so a failed release is handed to the OnReleaseFailure hook
// instead of being returned.
func WithLock(ctx context.Context, locker Locker, key string, ttl time.Duration, fn func(ctx context.Context) error, opts ...Option) error {
	var o lockOptions
	for _, opt := range opts {
		opt(&o)
	}

	lock, err := locker.Acquire(ctx, key, ttl)
	if err != nil {
		return err
	}
	err = fn(ctx)
	if releaseErr := lock.Release(context.WithoutCancel(ctx)); releaseErr != nil && err == nil && o.onReleaseFailure != nil {
		o.onReleaseFailure(releaseErr)
	}
	return err
}

// RouteKey namespaces a route identifier.
func RouteKey(routeID fmt.Stringer) string {
	return "convoy:lock:route:" + routeID.String()
}

func newToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate lock token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
