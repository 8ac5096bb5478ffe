// Package lock provides mutual exclusion scoped to string keys.
package lock

import (
	"context"
	"sync"
)

// Locker acquires an exclusive lock for a key. The returned function
// releases it and must be called exactly once.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

var _ Locker = (*Keyed)(nil)

// Keyed is an in-process Locker. Each key gets a one-slot channel that is
// dropped once no goroutine holds or waits for it.
type Keyed struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

// NewKeyed returns an empty Keyed lock.
func NewKeyed() *Keyed {
	return &Keyed{slots: make(map[string]*slot)}
}

// Lock blocks until the key is free or ctx is done.
func (k *Keyed) Lock(ctx context.Context, key string) (func(), error) {
	s := k.acquire(key)

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		k.releaseRef(key, s)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			k.releaseRef(key, s)
		})
	}, nil
}

// MustLock acquires the key without a deadline. It is meant for short
// critical sections that must not be abandoned, such as rollbacks.
func (k *Keyed) MustLock(key string) func() {
	unlock, _ := k.Lock(context.Background(), key)
	return unlock
}

func (k *Keyed) acquire(key string) *slot {
	k.mu.Lock()
	defer k.mu.Unlock()

	s, ok := k.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		k.slots[key] = s
	}
	s.refs++
	return s
}

func (k *Keyed) releaseRef(key string, s *slot) {
	k.mu.Lock()
	defer k.mu.Unlock()

	s.refs--
	if s.refs == 0 {
		delete(k.slots, key)
	}
}

// Len reports how many keys are currently held or awaited.
func (k *Keyed) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.slots)
}
