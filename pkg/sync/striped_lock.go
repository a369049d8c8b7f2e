package sync

import (
	"context"
	"fmt"
)

const (
	hashEntriesPerLock = 200
)

// Mutex is a mutual exclusion lock whose acquisition can be abandoned when a
// context is done.
type Mutex struct {
	ch chan struct{}
}

func newMutex() *Mutex {
	return &Mutex{ch: make(chan struct{}, 1)}
}

// Lock blocks until the mutex is held or ctx is done.
func (m *Mutex) Lock(ctx context.Context) error {
	select {
	case m.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Unlock releases the mutex. Unlocking an unlocked mutex panics.
func (m *Mutex) Unlock() {
	select {
	case <-m.ch:
	default:
		panic("sync: unlock of unlocked mutex")
	}
}

// StripedLock is a partitioned locking mechanism that consistently maps a key
// space to a set of locks. This provides concurrent data access while also
// limiting the total memory footprint.
type StripedLock struct {
	locks    []*Mutex
	hashRing *ring[int]
}

// NewStripedLock returns a new StripedLock with a static number of stripes.
func NewStripedLock(stripes uint) *StripedLock {
	if stripes == 0 {
		stripes = 1
	}

	ringEntries := make(map[string]int, stripes)
	locks := make([]*Mutex, stripes)
	for i := range locks {
		ringEntries[fmt.Sprintf("lock%d", i)] = i
		locks[i] = newMutex()
	}

	return &StripedLock{
		locks:    locks,
		hashRing: newRing(ringEntries, hashEntriesPerLock),
	}
}

// Get gets the lock for a key
func (l *StripedLock) Get(key []byte) *Mutex {
	return l.locks[l.hashRing.shard(key)]
}
