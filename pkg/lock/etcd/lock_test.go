//go:build integration

package etcd

import (
	"context"
	"testing"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	v3 "go.etcd.io/etcd/client/v3"

	"github.com/code-payments/program-pinger/pkg/etcdtest"
	"github.com/code-payments/program-pinger/pkg/lock"
)

func TestLock(t *testing.T) {
	pool, err := dockertest.NewPool("")
	require.NoError(t, err)

	client, teardown, err := etcdtest.StartEtcd(pool)
	require.NoError(t, err)
	defer teardown()

	for _, tc := range []struct {
		name string
		f    func(t *testing.T, client *v3.Client)
	}{
		{name: "Happy", f: testHappy},
		{name: "MultipleManagers", f: testMultipleManagers},
		{name: "Cancellation", f: testCancellation},
		{name: "Close", f: testClose},
	} {
		t.Run(tc.name, func(t *testing.T) { tc.f(t, client) })
	}
}

func testHappy(t *testing.T, client *v3.Client) {
	ctx := context.Background()

	m, err := NewLockManager(client, "/locks/happy", 5*time.Second)
	require.NoError(t, err)
	defer m.Close()

	l, err := m.Create(ctx, "address")
	require.NoError(t, err)
	assert.False(t, l.IsLocked())

	lostCh, err := l.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, l.IsLocked())

	require.NoError(t, l.Unlock(ctx))
	assert.False(t, l.IsLocked())

	select {
	case <-lostCh:
	case <-time.After(time.Second):
		t.Fatal("lost channel not closed on unlock")
	}

	require.NoError(t, l.Unlock(ctx))
}

func testMultipleManagers(t *testing.T, client *v3.Client) {
	ctx := context.Background()

	first, err := NewLockManager(client, "/locks/multi", 5*time.Second)
	require.NoError(t, err)
	defer first.Close()

	second, err := NewLockManager(client, "/locks/multi", 5*time.Second)
	require.NoError(t, err)
	defer second.Close()

	a, err := first.Create(ctx, "address")
	require.NoError(t, err)
	b, err := second.Create(ctx, "address")
	require.NoError(t, err)

	_, err = a.Acquire(ctx)
	require.NoError(t, err)

	timeoutCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	_, err = b.Acquire(timeoutCtx)
	assert.Error(t, err)

	require.NoError(t, a.Unlock(ctx))

	_, err = b.Acquire(ctx)
	require.NoError(t, err)
	require.NoError(t, b.Unlock(ctx))
}

func testCancellation(t *testing.T, client *v3.Client) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m, err := NewLockManager(client, "/locks/cancel", 5*time.Second)
	require.NoError(t, err)
	defer m.Close()

	l, err := m.Create(context.Background(), "address")
	require.NoError(t, err)

	_, err = l.Acquire(ctx)
	assert.Error(t, err)
	assert.False(t, l.IsLocked())
}

func testClose(t *testing.T, client *v3.Client) {
	ctx := context.Background()

	m, err := NewLockManager(client, "/locks/close", 5*time.Second)
	require.NoError(t, err)

	l, err := m.Create(ctx, "address")
	require.NoError(t, err)

	lostCh, err := l.Acquire(ctx)
	require.NoError(t, err)

	m.Close()

	select {
	case <-lostCh:
	case <-time.After(5 * time.Second):
		t.Fatal("lock not lost after manager close")
	}

	_, err = m.Create(ctx, "address")
	assert.ErrorIs(t, err, lock.ErrManagerClosed)
}
