package etcd

import (
	"context"
	"path"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	v3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/concurrency"

	"github.com/code-payments/program-pinger/pkg/lock"
)

// LockManager produces locks backed by an etcd session, so that separate
// processes provisioning the same address serialize on it.
type LockManager struct {
	log     *logrus.Entry
	client  *v3.Client
	rootKey string

	closeOnce sync.Once

	sessionMu sync.Mutex
	session   *concurrency.Session
}

func NewLockManager(client *v3.Client, rootKey string, lockTTL time.Duration) (*LockManager, error) {
	// WithTTL() will default the TTL to 60 seconds if TTL <= 0 || TTL > 60 seconds.
	if lockTTL < time.Second || lockTTL > time.Minute {
		return nil, errors.Errorf("invalid lock ttl: %v (must be [1s, 60s])", lockTTL)
	}

	session, err := concurrency.NewSession(
		client,
		concurrency.WithTTL(int(lockTTL.Round(time.Second).Seconds())),
		concurrency.WithContext(v3.WithRequireLeader(context.Background())),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create etcd session")
	}

	return &LockManager{
		log: logrus.StandardLogger().WithFields(logrus.Fields{
			"type": "lock/etcd",
			"root": rootKey,
		}),
		client:  client,
		rootKey: rootKey,
		session: session,
	}, nil
}

// Create implements lock.Manager.
func (lm *LockManager) Create(_ context.Context, name string) (lock.DistributedLock, error) {
	lm.sessionMu.Lock()
	defer lm.sessionMu.Unlock()

	if lm.session == nil {
		return nil, lock.ErrManagerClosed
	}

	return &Lock{
		log: lm.log.WithField("key", path.Join(lm.rootKey, name)),
		lm:  lm,
		key: path.Join(lm.rootKey, name),
	}, nil
}

// Close closes the lock manager. All locks held through it are released.
func (lm *LockManager) Close() {
	lm.closeOnce.Do(func() {
		lm.sessionMu.Lock()
		defer lm.sessionMu.Unlock()

		if err := lm.session.Close(); err != nil {
			lm.log.WithError(err).Warn("failed to close etcd session on close")
		}
		lm.session = nil
	})
}

type Lock struct {
	log *logrus.Entry
	lm  *LockManager
	key string

	mu     sync.Mutex
	mutex  *concurrency.Mutex
	lostCh chan struct{}
	stopCh chan struct{}
}

// Acquire implements lock.DistributedLock.
func (l *Lock) Acquire(ctx context.Context) (<-chan struct{}, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.mutex != nil {
		return nil, errors.New("lock already acquired")
	}

	l.lm.sessionMu.Lock()
	session := l.lm.session
	l.lm.sessionMu.Unlock()

	if session == nil {
		return nil, lock.ErrManagerClosed
	}

	mutex := concurrency.NewMutex(session, l.key)
	if err := mutex.Lock(ctx); err != nil {
		return nil, errors.Wrap(err, "failed to acquire lock")
	}

	l.log.Debug("lock acquired")

	l.mutex = mutex
	l.lostCh = make(chan struct{})
	l.stopCh = make(chan struct{})

	go l.watch(session, l.lostCh, l.stopCh)

	return l.lostCh, nil
}

func (l *Lock) watch(session *concurrency.Session, lostCh, stopCh chan struct{}) {
	defer close(lostCh)

	select {
	case <-session.Done():
		l.log.Warn("session ended, lock lost")

		l.mu.Lock()
		if l.lostCh == lostCh {
			l.mutex = nil
			l.lostCh = nil
			l.stopCh = nil
		}
		l.mu.Unlock()
	case <-stopCh:
	}
}

// Unlock implements lock.DistributedLock.
func (l *Lock) Unlock(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.mutex == nil {
		return nil
	}

	err := l.mutex.Unlock(ctx)

	close(l.stopCh)
	l.mutex = nil
	l.lostCh = nil
	l.stopCh = nil

	return err
}

// IsLocked implements lock.DistributedLock.
func (l *Lock) IsLocked() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.mutex != nil
}
