package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/automaton-review/internal/domain/analysis"
)

func TestMemoryRunsEnqueuedTasks(t *testing.T) {
	var mu sync.Mutex
	seen := map[analysis.JobID]bool{}
	var wg sync.WaitGroup
	wg.Add(3)

	q := NewMemory(2, 8, 1, func(_ context.Context, task analysis.Task) error {
		mu.Lock()
		seen[task.JobID] = true
		mu.Unlock()
		wg.Done()
		return nil
	})
	require.NoError(t, q.Start(context.Background()))
	defer q.Stop(context.Background())

	for _, id := range []analysis.JobID{"a", "b", "c"} {
		require.NoError(t, q.Enqueue(context.Background(), analysis.Task{JobID: id}))
	}
	waitTimeout(t, &wg)

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, seen, 3)
}

func TestMemoryFullBuffer(t *testing.T) {
	q := NewMemory(1, 1, 1, func(context.Context, analysis.Task) error { return nil })

	require.NoError(t, q.Enqueue(context.Background(), analysis.Task{JobID: "first"}))
	err := q.Enqueue(context.Background(), analysis.Task{JobID: "second"})
	assert.ErrorIs(t, err, analysis.ErrQueueFull)
}

func TestMemoryRetriesFailedTasks(t *testing.T) {
	var calls atomic.Int32
	var wg sync.WaitGroup
	wg.Add(3)

	q := NewMemory(1, 1, 3, func(context.Context, analysis.Task) error {
		calls.Add(1)
		wg.Done()
		return errors.New("db down")
	})
	q.backoff = time.Millisecond
	require.NoError(t, q.Start(context.Background()))
	defer q.Stop(context.Background())

	require.NoError(t, q.Enqueue(context.Background(), analysis.Task{JobID: "x"}))
	waitTimeout(t, &wg)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(3), calls.Load())
}

func TestMemoryReportsGiveUpAfterLastAttempt(t *testing.T) {
	var calls atomic.Int32
	gaveUp := make(chan string, 1)

	q := NewMemory(1, 1, 2, func(context.Context, analysis.Task) error {
		calls.Add(1)
		return errors.New("db down")
	})
	q.backoff = time.Millisecond
	q.OnGiveUp(func(_ context.Context, task analysis.Task, detail string) error {
		gaveUp <- string(task.JobID) + ": " + detail
		return nil
	})
	require.NoError(t, q.Start(context.Background()))
	defer q.Stop(context.Background())

	require.NoError(t, q.Enqueue(context.Background(), analysis.Task{JobID: "x"}))
	select {
	case got := <-gaveUp:
		assert.Equal(t, "x: gave up after 2 attempts: db down", got)
	case <-time.After(2 * time.Second):
		t.Fatal("give-up callback not called")
	}
	assert.Equal(t, int32(2), calls.Load())
}

func TestMemoryDoesNotReportSuccessfulRetry(t *testing.T) {
	var calls atomic.Int32
	var gaveUp atomic.Bool
	var wg sync.WaitGroup
	wg.Add(2)

	q := NewMemory(1, 1, 3, func(context.Context, analysis.Task) error {
		defer wg.Done()
		if calls.Add(1) == 1 {
			return errors.New("transient")
		}
		return nil
	})
	q.backoff = time.Millisecond
	q.OnGiveUp(func(context.Context, analysis.Task, string) error {
		gaveUp.Store(true)
		return nil
	})
	require.NoError(t, q.Start(context.Background()))
	defer q.Stop(context.Background())

	require.NoError(t, q.Enqueue(context.Background(), analysis.Task{JobID: "x"}))
	waitTimeout(t, &wg)
	time.Sleep(20 * time.Millisecond)
	assert.False(t, gaveUp.Load())
}

func TestMemoryRecoversFromPanic(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(2)
	q := NewMemory(1, 2, 1, func(_ context.Context, task analysis.Task) error {
		defer wg.Done()
		if task.JobID == "boom" {
			panic("kaboom")
		}
		return nil
	})
	require.NoError(t, q.Start(context.Background()))
	defer q.Stop(context.Background())

	require.NoError(t, q.Enqueue(context.Background(), analysis.Task{JobID: "boom"}))
	require.NoError(t, q.Enqueue(context.Background(), analysis.Task{JobID: "fine"}))
	waitTimeout(t, &wg)
}

func TestMemoryStopWaitsForInFlight(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var finished atomic.Bool

	q := NewMemory(1, 1, 1, func(context.Context, analysis.Task) error {
		close(started)
		<-release
		finished.Store(true)
		return nil
	})
	require.NoError(t, q.Start(context.Background()))
	require.NoError(t, q.Enqueue(context.Background(), analysis.Task{JobID: "slow"}))
	<-started

	go func() {
		time.Sleep(20 * time.Millisecond)
		close(release)
	}()
	require.NoError(t, q.Stop(context.Background()))
	assert.True(t, finished.Load())

	assert.Error(t, q.Enqueue(context.Background(), analysis.Task{JobID: "late"}))
}

func TestMemoryStopDeadlineCancelsHandlers(t *testing.T) {
	started := make(chan struct{})
	q := NewMemory(1, 1, 1, func(ctx context.Context, _ analysis.Task) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})
	require.NoError(t, q.Start(context.Background()))
	require.NoError(t, q.Enqueue(context.Background(), analysis.Task{JobID: "stuck"}))
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.Stop(ctx), context.DeadlineExceeded)
}

func waitTimeout(t *testing.T, wg *sync.WaitGroup) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for tasks")
	}
}
