package backend

import (
	"context"

	"github.com/roach88/seeds/internal/lock"
)

// lockedAdapter overrides an adapter's native lock with an external Locker.
type lockedAdapter struct {
	Adapter
	locker lock.Locker
}

// WithLocker returns an adapter whose Lock and Unlock go through l instead of
// the adapter's own mechanism. Used to coordinate seeders through a shared
// Redis instance.
func WithLocker(a Adapter, l lock.Locker) Adapter {
	return &lockedAdapter{Adapter: a, locker: l}
}

func (a *lockedAdapter) Lock(ctx context.Context) error {
	return Wrap("lock", 0, a.locker.Lock(ctx))
}

func (a *lockedAdapter) Unlock(ctx context.Context) error {
	return Wrap("unlock", 0, a.locker.Unlock(ctx))
}
