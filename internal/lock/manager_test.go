package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"stazy/pkg/logger"
	"stazy/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOptions() Options {
	return Options{
		TTL:           2 * time.Second,
		WaitTimeout:   100 * time.Millisecond,
		RetryInterval: 10 * time.Millisecond,
	}
}

func TestHotelKeys(t *testing.T) {
	checkIn := time.Date(2026, 1, 30, 0, 0, 0, 0, time.UTC)
	checkOut := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)

	keys := HotelKeys(model.HotelID(7), checkIn, checkOut)

	assert.Equal(t, []string{"locks:hotel:7:2026-01", "locks:hotel:7:2026-02"}, keys)
}

func TestManager_AcquireRelease(t *testing.T) {
	locker := NewMemoryLocker()
	m := NewManager(locker, testOptions(), logger.Discard())
	ctx := context.Background()

	h, err := m.Acquire(ctx, "b", "a", "b")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, h.Keys())
	assert.True(t, locker.Held("a"))
	assert.True(t, locker.Held("b"))

	require.NoError(t, h.Release(ctx))
	assert.False(t, locker.Held("a"))
	assert.False(t, locker.Held("b"))

	h2, err := m.Acquire(ctx, "a")
	require.NoError(t, err, "released key should be immediately acquirable")
	require.NoError(t, h2.Release(ctx))
}

func TestManager_BusyAfterBoundedWait(t *testing.T) {
	locker := NewMemoryLocker()
	m := NewManager(locker, testOptions(), logger.Discard())
	ctx := context.Background()

	holder, err := m.Acquire(ctx, "k")
	require.NoError(t, err)
	defer holder.Release(ctx)

	start := time.Now()
	_, err = m.Acquire(ctx, "k")
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBusy))
	assert.Less(t, elapsed, time.Second, "wait must stay bounded")
}

func TestManager_WaitsForRelease(t *testing.T) {
	locker := NewMemoryLocker()
	opts := testOptions()
	opts.WaitTimeout = time.Second
	m := NewManager(locker, opts, logger.Discard())
	ctx := context.Background()

	holder, err := m.Acquire(ctx, "k")
	require.NoError(t, err)

	go func() {
		time.Sleep(30 * time.Millisecond)
		_ = holder.Release(ctx)
	}()

	h, err := m.Acquire(ctx, "k")
	require.NoError(t, err)
	require.NoError(t, h.Release(ctx))
}

func TestManager_WaitIsSharedAcrossKeys(t *testing.T) {
	locker := NewMemoryLocker()
	opts := testOptions()
	opts.WaitTimeout = 200 * time.Millisecond
	m := NewManager(locker, opts, logger.Discard())
	ctx := context.Background()

	holderB, err := m.Acquire(ctx, "b")
	require.NoError(t, err)
	holderC, err := m.Acquire(ctx, "c")
	require.NoError(t, err)
	defer holderC.Release(ctx)

	// b frees up late in the wait; c never does.
	go func() {
		time.Sleep(160 * time.Millisecond)
		_ = holderB.Release(ctx)
	}()

	start := time.Now()
	_, err = m.Acquire(ctx, "a", "b", "c")
	elapsed := time.Since(start)

	require.ErrorIs(t, err, ErrBusy)
	assert.Less(t, elapsed, 300*time.Millisecond, "one wait budget covers every key")
	assert.False(t, locker.Held("a"))
	assert.False(t, locker.Held("b"))
}

func TestManager_PartialAcquireIsRolledBack(t *testing.T) {
	locker := NewMemoryLocker()
	m := NewManager(locker, testOptions(), logger.Discard())
	ctx := context.Background()

	holder, err := m.Acquire(ctx, "b")
	require.NoError(t, err)
	defer holder.Release(ctx)

	_, err = m.Acquire(ctx, "a", "b")
	require.ErrorIs(t, err, ErrBusy)
	assert.False(t, locker.Held("a"), "lease on a must be released when b is busy")
}

func TestManager_CancelledContextIsBusy(t *testing.T) {
	locker := NewMemoryLocker()
	opts := testOptions()
	opts.WaitTimeout = 5 * time.Second
	m := NewManager(locker, opts, logger.Discard())

	holder, err := m.Acquire(context.Background(), "k")
	require.NoError(t, err)
	defer holder.Release(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = m.Acquire(ctx, "k")
	assert.ErrorIs(t, err, ErrBusy)
}

func TestManager_ReleaseOnCancelledContext(t *testing.T) {
	locker := NewMemoryLocker()
	m := NewManager(locker, testOptions(), logger.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	h, err := m.Acquire(ctx, "k")
	require.NoError(t, err)
	cancel()

	require.NoError(t, h.Release(ctx))
	assert.False(t, locker.Held("k"))
}

func TestManager_ExpiredLeaseIsReclaimed(t *testing.T) {
	locker := NewMemoryLocker()
	now := time.Now()
	locker.now = func() time.Time { return now }
	m := NewManager(locker, testOptions(), logger.Discard())
	ctx := context.Background()

	_, err := m.Acquire(ctx, "k")
	require.NoError(t, err)

	now = now.Add(3 * time.Second)

	h, err := m.Acquire(ctx, "k")
	require.NoError(t, err, "crashed holder's lease must expire")
	require.NoError(t, h.Release(ctx))
}

func TestManager_ReleaseAfterTakeoverReportsNotHeld(t *testing.T) {
	locker := NewMemoryLocker()
	now := time.Now()
	locker.now = func() time.Time { return now }
	m := NewManager(locker, testOptions(), logger.Discard())
	ctx := context.Background()

	stale, err := m.Acquire(ctx, "k")
	require.NoError(t, err)
	now = now.Add(3 * time.Second)
	fresh, err := m.Acquire(ctx, "k")
	require.NoError(t, err)

	err = stale.Release(ctx)
	assert.ErrorIs(t, err, ErrNotHeld)
	assert.True(t, locker.Held("k"), "stale holder must not free the new lease")
	require.NoError(t, fresh.Release(ctx))
}

type failingLocker struct{ MemoryLocker }

func (f *failingLocker) TryAcquire(context.Context, string, string, time.Duration) (bool, error) {
	return false, errors.New("connection refused")
}

func TestManager_BackendErrorFailsFast(t *testing.T) {
	m := NewManager(&failingLocker{}, testOptions(), logger.Discard())

	_, err := m.Acquire(context.Background(), "k")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrBusy), "backend failure is not contention")
}

func TestManager_MutualExclusion(t *testing.T) {
	locker := NewMemoryLocker()
	opts := testOptions()
	opts.WaitTimeout = 2 * time.Second
	opts.RetryInterval = time.Millisecond
	m := NewManager(locker, opts, logger.Discard())

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h, err := m.Acquire(context.Background(), "hotel")
			if err != nil {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				cur := atomic.LoadInt32(&maxInside)
				if n <= cur || atomic.CompareAndSwapInt32(&maxInside, cur, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			_ = h.Release(context.Background())
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
}
