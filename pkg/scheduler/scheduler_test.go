package scheduler

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tepantlatia/ingestor/pkg/domain"
	"github.com/tepantlatia/ingestor/pkg/storage"
)

type fakeProcessor struct {
	calls int32
	fn    func(entry *domain.QueueEntry) (ok, transient bool, err error)
}

func (f *fakeProcessor) Process(ctx context.Context, entry *domain.QueueEntry) (bool, bool, error) {
	atomic.AddInt32(&f.calls, 1)
	return f.fn(entry)
}

func newBoltStore(t *testing.T) storage.Store {
	t.Helper()
	s, err := storage.NewBoltStore(t.TempDir(), "test", 0, 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestBuildScheduleWeighting(t *testing.T) {
	schedule := buildSchedule(3, 1)
	require.Len(t, schedule, 4)
	assert.Equal(t, storage.QueuePrimary, schedule[0])
	assert.Equal(t, storage.QueuePrimary, schedule[1])
	assert.Equal(t, storage.QueuePrimary, schedule[2])
	assert.Equal(t, storage.QueueSecondary, schedule[3])
}

func TestBuildScheduleClampsNonPositiveWeights(t *testing.T) {
	schedule := buildSchedule(0, -5)
	assert.Len(t, schedule, 2)
}

func TestDispatchOneReturnsFalseOnEmptyQueue(t *testing.T) {
	store := newBoltStore(t)
	w := NewWorker(store, Config{WPrimary: 1, WSecondary: 1, NormalPace: time.Millisecond, GlobalPause: time.Millisecond, MaxConsecErrors: 3}, map[storage.Queue]Processor{
		storage.QueuePrimary: &fakeProcessor{fn: func(*domain.QueueEntry) (bool, bool, error) { return true, false, nil }},
	})
	success, err := w.dispatchOne(context.Background(), storage.QueuePrimary)
	require.NoError(t, err)
	assert.False(t, success)
}

func TestDispatchOneSuccessPath(t *testing.T) {
	store := newBoltStore(t)
	ctx := context.Background()
	require.NoError(t, store.SeedPrimary(ctx, []domain.Block{{Lo: 1, Hi: 2}}, nil))

	proc := &fakeProcessor{fn: func(*domain.QueueEntry) (bool, bool, error) { return true, false, nil }}
	w := NewWorker(store, Config{WPrimary: 1, WSecondary: 1, NormalPace: time.Millisecond, GlobalPause: time.Millisecond, MaxConsecErrors: 3}, map[storage.Queue]Processor{
		storage.QueuePrimary: proc,
	})

	success, err := w.dispatchOne(ctx, storage.QueuePrimary)
	require.NoError(t, err)
	assert.True(t, success)
	assert.Equal(t, int32(1), atomic.LoadInt32(&proc.calls))
}

func TestCircuitBreakerTripsAndPausesTheWholeLoop(t *testing.T) {
	store := newBoltStore(t)
	ctx := context.Background()
	require.NoError(t, store.SeedPrimary(ctx, []domain.Block{{Lo: 1, Hi: 10}}, nil))

	primary := &fakeProcessor{fn: func(*domain.QueueEntry) (bool, bool, error) { return false, true, nil }}
	secondary := &fakeProcessor{fn: func(*domain.QueueEntry) (bool, bool, error) { return true, false, nil }}

	pause := 50 * time.Millisecond
	w := NewWorker(store, Config{
		WPrimary: 1, WSecondary: 1,
		NormalPace:      time.Millisecond,
		MaxConsecErrors: 3,
		GlobalPause:     pause,
	}, map[storage.Queue]Processor{
		storage.QueuePrimary:   primary,
		storage.QueueSecondary: secondary,
	})

	// The breaker trips open on the 3rd consecutive transient result.
	// onBreakerStateChange sleeps for GlobalPause synchronously inside
	// that same Execute call, on the scheduler's single goroutine, so the
	// whole loop (and thus the secondary queue too) stalls with it.
	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := w.dispatchOne(ctx, storage.QueuePrimary)
		require.NoError(t, err)
	}
	elapsed := time.Since(start)

	assert.Equal(t, int32(3), atomic.LoadInt32(&primary.calls))
	assert.GreaterOrEqual(t, elapsed, pause, "tripping the breaker should block the calling goroutine for GlobalPause")
}

func TestRunDispatchesUntilContextCanceled(t *testing.T) {
	store := newBoltStore(t)
	ctx := context.Background()
	require.NoError(t, store.SeedPrimary(ctx, []domain.Block{{Lo: 1, Hi: 1000}}, nil))
	for i := 0; i < 1000; i++ {
		require.NoError(t, store.PutSecondaryEntry(ctx, &domain.QueueEntry{Key: fmt.Sprintf("doc-%d", i), Title: "t", Text: "x"}))
	}

	proc := &fakeProcessor{fn: func(*domain.QueueEntry) (bool, bool, error) { return true, false, nil }}
	w := NewWorker(store, Config{
		WPrimary: 1, WSecondary: 1,
		NormalPace:      time.Millisecond,
		MaxConsecErrors: 1000,
		GlobalPause:     time.Millisecond,
	}, map[storage.Queue]Processor{
		storage.QueuePrimary:   proc,
		storage.QueueSecondary: proc,
	})

	runCtx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := w.Run(runCtx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Greater(t, atomic.LoadInt32(&proc.calls), int32(0))
}

func TestReapAllReclaimsStaleLocks(t *testing.T) {
	store := newBoltStore(t)
	ctx := context.Background()
	require.NoError(t, store.SeedPrimary(ctx, []domain.Block{{Lo: 1, Hi: 2}}, nil))
	_, err := store.ClaimNext(ctx, storage.QueuePrimary)
	require.NoError(t, err)

	w := NewWorker(store, Config{
		WPrimary: 1, WSecondary: 1,
		NormalPace: time.Millisecond, GlobalPause: time.Millisecond,
		MaxConsecErrors: 3, LockStaleWindow: 1 * time.Nanosecond,
	}, map[storage.Queue]Processor{})

	w.reapAll(ctx)

	counters, err := store.Counters(ctx, storage.QueuePrimary)
	require.NoError(t, err)
	assert.Equal(t, 1, counters.Pending)
	assert.Equal(t, 0, counters.Processing)
}
