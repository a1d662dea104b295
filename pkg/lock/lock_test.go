package lock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	km := NewKeyedMutex()
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		active  int
		maxSeen int
	)

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.Lock(7)
			mu.Lock()
			active++
			if active > maxSeen {
				maxSeen = active
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
	assert.Equal(t, 0, km.size(), "idle keys are released")
}

func TestKeyedMutexIndependentKeys(t *testing.T) {
	km := NewKeyedMutex()
	unlockA := km.Lock(1)
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlock := km.Lock(2)
		unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on a different key blocked")
	}
}

func TestMemoryLocker(t *testing.T) {
	l := NewMemoryLocker()
	ctx := context.Background()

	release, err := l.Acquire(ctx, "sweep:2024-05-01", time.Minute)
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "sweep:2024-05-01", time.Minute)
	assert.ErrorIs(t, err, ErrNotAcquired)

	_, err = l.Acquire(ctx, "sweep:2024-05-02", time.Minute)
	assert.NoError(t, err)

	require.NoError(t, release(ctx))
	_, err = l.Acquire(ctx, "sweep:2024-05-01", time.Minute)
	assert.NoError(t, err)
}

func TestMemoryLockerExpires(t *testing.T) {
	l := NewMemoryLocker()
	ctx := context.Background()

	_, err := l.Acquire(ctx, "k", 10*time.Millisecond)
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)

	_, err = l.Acquire(ctx, "k", time.Minute)
	assert.NoError(t, err)
}
