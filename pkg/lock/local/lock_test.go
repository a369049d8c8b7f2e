package local

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/program-pinger/pkg/lock"
)

func TestLock_Happy(t *testing.T) {
	ctx := context.Background()
	m := NewManager()

	l, err := m.Create(ctx, "address")
	require.NoError(t, err)
	assert.False(t, l.IsLocked())

	lostCh, err := l.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, l.IsLocked())

	_, err = l.Acquire(ctx)
	assert.Error(t, err)

	select {
	case <-lostCh:
		t.Fatal("lock lost before unlock")
	default:
	}

	require.NoError(t, l.Unlock(ctx))
	assert.False(t, l.IsLocked())

	select {
	case <-lostCh:
	default:
		t.Fatal("lost channel not closed on unlock")
	}

	// Unlock is idempotent.
	require.NoError(t, l.Unlock(ctx))
}

func TestLock_Contention(t *testing.T) {
	ctx := context.Background()
	m := NewManagerWithStripes(1)

	first, err := m.Create(ctx, "a")
	require.NoError(t, err)
	second, err := m.Create(ctx, "a")
	require.NoError(t, err)

	_, err = first.Acquire(ctx)
	require.NoError(t, err)

	timeoutCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = second.Acquire(timeoutCtx)
	assert.Equal(t, context.DeadlineExceeded, err)

	require.NoError(t, first.Unlock(ctx))

	_, err = second.Acquire(ctx)
	require.NoError(t, err)
	require.NoError(t, second.Unlock(ctx))
}

func TestWithLock_Serializes(t *testing.T) {
	m := NewManager()

	var mu sync.Mutex
	var active, maxActive int

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			err := lock.WithLock(context.Background(), m, "address", func(ctx context.Context) error {
				mu.Lock()
				active++
				if active > maxActive {
					maxActive = active
				}
				mu.Unlock()

				time.Sleep(time.Millisecond)

				mu.Lock()
				active--
				mu.Unlock()
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxActive)
}
