// Package lock provides the mutual-exclusion primitives backends use to
// serialize seeders running against the same tracking table.
//
// A Locker is acquired once per engine invocation and released on every exit
// path. Contention is resolved by Retry: attempts back off exponentially until
// the configured timeout elapses or the context is cancelled.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ErrHeld is returned by a single lock attempt when another holder owns the lock.
var ErrHeld = errors.New("lock is held by another seeder")

// ErrNotHeld is returned by Unlock when the caller does not own the lock.
var ErrNotHeld = errors.New("lock is not held")

// Locker acquires and releases a mutual-exclusion lock.
type Locker interface {
	// Lock blocks until the lock is acquired, the wait policy gives up,
	// or ctx is cancelled.
	Lock(ctx context.Context) error

	// Unlock releases a lock obtained by Lock.
	Unlock(ctx context.Context) error
}

// Retry calls try until it succeeds, returns an error other than ErrHeld,
// or timeout elapses. A zero timeout waits until ctx is done; a negative
// timeout makes a single attempt.
func Retry(ctx context.Context, timeout time.Duration, try func() error) error {
	var b backoff.BackOff
	if timeout < 0 {
		b = &backoff.StopBackOff{}
	} else {
		eb := backoff.NewExponentialBackOff()
		eb.InitialInterval = 25 * time.Millisecond
		eb.MaxInterval = time.Second
		eb.MaxElapsedTime = timeout
		b = eb
	}

	op := func() error {
		err := try()
		if err == nil || errors.Is(err, ErrHeld) {
			return err
		}
		return backoff.Permanent(err)
	}

	err := backoff.Retry(op, backoff.WithContext(b, ctx))
	if errors.Is(err, ErrHeld) {
		if timeout > 0 {
			return fmt.Errorf("gave up after %s: %w", timeout, err)
		}
		return err
	}
	return err
}

// Mutex is a process-local Locker. Useful for in-memory databases that are
// not visible to other processes anyway.
type Mutex struct {
	mu   sync.Mutex
	held bool
}

// Lock acquires the mutex, giving up when ctx is done.
func (m *Mutex) Lock(ctx context.Context) error {
	return Retry(ctx, 0, func() error {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.held {
			return ErrHeld
		}
		m.held = true
		return nil
	})
}

// Unlock releases the mutex.
func (m *Mutex) Unlock(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.held {
		return ErrNotHeld
	}
	m.held = false
	return nil
}
