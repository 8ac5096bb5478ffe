package lock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestKeyed_MutualExclusion(t *testing.T) {
	defer goleak.VerifyNone(t)

	k := NewKeyed()
	var (
		wg      sync.WaitGroup
		counter int
	)
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := k.Lock(context.Background(), "p1")
			if err != nil {
				return
			}
			v := counter
			time.Sleep(time.Microsecond)
			counter = v + 1
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
	assert.Zero(t, k.Len(), "slots must be dropped when unused")
}

func TestKeyed_IndependentKeys(t *testing.T) {
	k := NewKeyed()

	unlockA, err := k.Lock(context.Background(), "a")
	require.NoError(t, err)
	defer unlockA()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	unlockB, err := k.Lock(ctx, "b")
	require.NoError(t, err)
	unlockB()
}

func TestKeyed_ContextCancel(t *testing.T) {
	k := NewKeyed()

	unlock, err := k.Lock(context.Background(), "a")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = k.Lock(ctx, "a")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	assert.Zero(t, k.Len())
}

func TestKeyed_UnlockIdempotent(t *testing.T) {
	k := NewKeyed()

	unlock := k.MustLock("a")
	unlock()
	unlock()

	unlock = k.MustLock("a")
	unlock()
	assert.Zero(t, k.Len())
}
