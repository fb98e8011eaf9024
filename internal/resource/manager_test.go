// internal/resource/manager_test.go
package resource

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/xkilldash9x/triage-cli/internal/config"
)

// fakeDisposable counts dispose invocations and can simulate failures.
type fakeDisposable struct {
	disposeCount atomic.Int32
	failWith     error
}

func (f *fakeDisposable) Dispose(ctx context.Context) error {
	f.disposeCount.Add(1)
	return f.failWith
}

func newTestManager(t *testing.T, ttl time.Duration) *Manager {
	t.Helper()
	return NewManager(config.ResourcesConfig{DisposeTimeout: ttl}, zap.NewNop())
}

func TestTrackAssignsMonotonicIDs(t *testing.T) {
	m := newTestManager(t, time.Minute)

	id1 := m.Track(&fakeDisposable{})
	id2 := m.Track(&fakeDisposable{})

	assert.Equal(t, "res-1", id1)
	assert.Equal(t, "res-2", id2)
	assert.Equal(t, 2, m.ActiveCount())
}

func TestUntrackRemovesWithoutDisposing(t *testing.T) {
	m := newTestManager(t, time.Minute)
	res := &fakeDisposable{}
	id := m.Track(res)

	require.True(t, m.Untrack(id))
	assert.False(t, m.Untrack(id), "second untrack should report missing")
	assert.Equal(t, 0, m.ActiveCount())

	m.DisposeAll(context.Background())
	assert.Equal(t, int32(0), res.disposeCount.Load(), "untracked resource must never be disposed")
}

func TestDisposeAllSettlesAllResources(t *testing.T) {
	m := newTestManager(t, time.Minute)

	good := &fakeDisposable{}
	bad := &fakeDisposable{failWith: errors.New("browser went away")}
	alsoGood := &fakeDisposable{}
	m.Track(good)
	m.Track(bad)
	m.Track(alsoGood)

	m.DisposeAll(context.Background())

	assert.Equal(t, 0, m.ActiveCount())
	assert.Equal(t, int32(1), good.disposeCount.Load())
	assert.Equal(t, int32(1), bad.disposeCount.Load(), "failing resource is still attempted")
	assert.Equal(t, int32(1), alsoGood.disposeCount.Load(), "failure of a sibling must not block disposal")
}

func TestDisposeAllIsIdempotentOnEmptyManager(t *testing.T) {
	m := newTestManager(t, time.Minute)
	m.DisposeAll(context.Background())
	m.DisposeAll(context.Background())
	assert.Equal(t, 0, m.ActiveCount())
}

func TestSweepDisposesExpiredExactlyOnce(t *testing.T) {
	defer goleak.VerifyNone(t)

	m := newTestManager(t, 40*time.Millisecond)
	m.Start()
	defer m.Close(context.Background())

	stale := &fakeDisposable{}
	m.Track(stale)

	require.Eventually(t, func() bool {
		return stale.disposeCount.Load() == 1 && m.ActiveCount() == 0
	}, time.Second, 10*time.Millisecond, "sweep should reap the stale resource")

	// Give the sweep another interval to prove it does not double-dispose.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), stale.disposeCount.Load())
}

func TestSweepToleratesDisposeFailure(t *testing.T) {
	defer goleak.VerifyNone(t)

	m := newTestManager(t, 40*time.Millisecond)
	m.Start()
	defer m.Close(context.Background())

	bad := &fakeDisposable{failWith: errors.New("already gone")}
	good := &fakeDisposable{}
	m.Track(bad)
	m.Track(good)

	require.Eventually(t, func() bool {
		return bad.disposeCount.Load() == 1 && good.disposeCount.Load() == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, m.ActiveCount())
}

func TestSweepRaceWithExplicitDisposeIsNoOp(t *testing.T) {
	defer goleak.VerifyNone(t)

	m := newTestManager(t, 30*time.Millisecond)
	m.Start()
	defer m.Close(context.Background())

	// Hammer the race window: explicit handle disposal while the sweep runs.
	for i := 0; i < 20; i++ {
		res := &fakeDisposable{}
		h := NewSmartHandle(m, res, zap.NewNop())
		time.Sleep(5 * time.Millisecond)
		h.Dispose(context.Background())
		assert.LessOrEqual(t, res.disposeCount.Load(), int32(1))
	}

	require.Eventually(t, func() bool { return m.ActiveCount() == 0 }, time.Second, 10*time.Millisecond)
}

func TestCloseWithoutStartDoesNotBlock(t *testing.T) {
	defer goleak.VerifyNone(t)

	m := newTestManager(t, time.Minute)
	res := &fakeDisposable{}
	m.Track(res)

	done := make(chan struct{})
	go func() {
		m.Close(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close blocked waiting for a sweep that never started")
	}
	assert.Equal(t, int32(1), res.disposeCount.Load())
}

func TestCloseStopsSweepAndDisposesRemainder(t *testing.T) {
	defer goleak.VerifyNone(t)

	m := newTestManager(t, time.Hour)
	m.Start()

	res := &fakeDisposable{}
	m.Track(res)

	m.Close(context.Background())
	assert.Equal(t, int32(1), res.disposeCount.Load())
	assert.Equal(t, 0, m.ActiveCount())
}
