package lock

import (
	"context"

	"github.com/pkg/errors"
)

var ErrManagerClosed = errors.New("lock manager closed")

// Manager creates and manages locks.
//
// Provisioning a derived account is a read-then-create sequence, so callers
// hold the lock named after the address for the duration of that sequence.
type Manager interface {
	// Create creates an unlocked DistributedLock for a specific key.
	Create(ctx context.Context, name string) (DistributedLock, error)
}

// DistributedLock is a handle to a lock that may span multiple processes.
type DistributedLock interface {
	// Acquire attempts to acquire the lock, blocking until the lock has been
	// successfully acquired or ctx is done.
	//
	// The returned channel is a channel that will be closed when the lock is lost.
	// The lock can be lost when Unlock() is called, or the underlying
	// implementation detects that the lock _might_ have been lost.
	Acquire(ctx context.Context) (<-chan struct{}, error)

	// Unlock unlocks the lock, if the lock is held.
	//
	// Unlock is idempotent.
	Unlock(ctx context.Context) error

	// IsLocked returns whether the lock is held by the process/manager.
	IsLocked() bool
}

// WithLock runs fn while holding the lock called name. The context passed to
// fn is cancelled if the lock is lost.
func WithLock(ctx context.Context, m Manager, name string, fn func(ctx context.Context) error) error {
	l, err := m.Create(ctx, name)
	if err != nil {
		return errors.Wrapf(err, "failed to create lock %s", name)
	}

	lostCh, err := l.Acquire(ctx)
	if err != nil {
		return errors.Wrapf(err, "failed to acquire lock %s", name)
	}

	fnCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case <-lostCh:
			cancel()
		case <-fnCtx.Done():
		}
	}()

	defer func() {
		_ = l.Unlock(context.Background())
	}()

	return fn(fnCtx)
}
