package local

import (
	"context"
	"sync"

	"github.com/code-payments/program-pinger/pkg/lock"
	stripedsync "github.com/code-payments/program-pinger/pkg/sync"
)

const defaultStripes = 64

// Manager is an in-process lock.Manager backed by a striped lock. Distinct
// names may share a stripe, which only costs concurrency.
type Manager struct {
	locks *stripedsync.StripedLock
}

func NewManager() *Manager {
	return NewManagerWithStripes(defaultStripes)
}

func NewManagerWithStripes(stripes uint) *Manager {
	return &Manager{
		locks: stripedsync.NewStripedLock(stripes),
	}
}

// Create implements lock.Manager.
func (m *Manager) Create(_ context.Context, name string) (lock.DistributedLock, error) {
	return &Lock{mu: m.locks.Get([]byte(name))}, nil
}

type Lock struct {
	mu *stripedsync.Mutex

	stateMu sync.Mutex
	lostCh  chan struct{}
}

// Acquire implements lock.DistributedLock.
func (l *Lock) Acquire(ctx context.Context) (<-chan struct{}, error) {
	l.stateMu.Lock()
	held := l.lostCh != nil
	l.stateMu.Unlock()
	if held {
		return nil, errAlreadyAcquired
	}

	if err := l.mu.Lock(ctx); err != nil {
		return nil, err
	}

	lostCh := make(chan struct{})

	l.stateMu.Lock()
	l.lostCh = lostCh
	l.stateMu.Unlock()

	return lostCh, nil
}

// Unlock implements lock.DistributedLock.
func (l *Lock) Unlock(_ context.Context) error {
	l.stateMu.Lock()
	defer l.stateMu.Unlock()

	if l.lostCh == nil {
		return nil
	}

	close(l.lostCh)
	l.lostCh = nil
	l.mu.Unlock()
	return nil
}

// IsLocked implements lock.DistributedLock.
func (l *Lock) IsLocked() bool {
	l.stateMu.Lock()
	defer l.stateMu.Unlock()

	return l.lostCh != nil
}
