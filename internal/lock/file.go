package lock

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"time"

	fslock "github.com/ipfs/go-fs-lock"
)

// FileLocker serializes processes through an OS file lock next to the
// database file.
type FileLocker struct {
	dir     string
	name    string
	timeout time.Duration

	mu     sync.Mutex
	closer io.Closer
}

// NewFileLocker returns a locker for the lock file at path.
// See Retry for the meaning of timeout.
func NewFileLocker(path string, timeout time.Duration) *FileLocker {
	return &FileLocker{
		dir:     filepath.Dir(path),
		name:    filepath.Base(path),
		timeout: timeout,
	}
}

// Path returns the lock file location.
func (l *FileLocker) Path() string {
	return filepath.Join(l.dir, l.name)
}

// Lock acquires the file lock.
func (l *FileLocker) Lock(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closer != nil {
		return fmt.Errorf("lock %s: already held by this locker", l.Path())
	}

	return Retry(ctx, l.timeout, func() error {
		closer, err := fslock.Lock(l.dir, l.name)
		if err == nil {
			l.closer = closer
			return nil
		}
		// Contention, from another process or another locker in this one,
		// surfaces as a LockedError. Everything else is permanent.
		if errors.As(err, new(fslock.LockedError)) {
			return fmt.Errorf("lock %s: %v: %w", l.Path(), err, ErrHeld)
		}
		return fmt.Errorf("lock %s: %w", l.Path(), err)
	})
}

// Unlock releases the file lock.
func (l *FileLocker) Unlock(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closer == nil {
		return ErrNotHeld
	}
	err := l.closer.Close()
	l.closer = nil
	if err != nil {
		return fmt.Errorf("unlock %s: %w", l.Path(), err)
	}
	return nil
}
