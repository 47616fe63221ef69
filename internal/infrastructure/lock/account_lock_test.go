package lock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountLocker_SameAccountIsExclusive(t *testing.T) {
	locker := NewAccountLocker()

	unlock, err := locker.Lock(context.Background(), "GABC")
	require.NoError(t, err)

	_, ok := locker.TryLock("GABC")
	assert.False(t, ok)

	unlock()
	unlock2, ok := locker.TryLock("GABC")
	require.True(t, ok)
	unlock2()
}

func TestAccountLocker_DifferentAccountsIndependent(t *testing.T) {
	locker := NewAccountLocker()

	unlockA, err := locker.Lock(context.Background(), "GA")
	require.NoError(t, err)
	defer unlockA()

	unlockB, ok := locker.TryLock("GB")
	require.True(t, ok)
	unlockB()
}

func TestAccountLocker_LockRespectsContext(t *testing.T) {
	locker := NewAccountLocker()

	unlock, err := locker.Lock(context.Background(), "GABC")
	require.NoError(t, err)
	defer unlock()

	_, err = LockWithTimeout(context.Background(), locker, "GABC", 20*time.Millisecond)
	assert.ErrorIs(t, err, ErrLockFailed)
}

func TestAccountLocker_SerializesCriticalSection(t *testing.T) {
	locker := NewAccountLocker()
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locker.Lock(context.Background(), "GABC")
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
	assert.Empty(t, locker.(*localAccountLocker).locks)
}
