package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// counterState is the shared state used by the tests: a log of task ids in
// the order their bodies ran, plus a guard that detects overlapping bodies.
type counterState struct {
	order   []int
	running atomic.Int32
	overlap atomic.Bool
}

func (c *counterState) enter() {
	if c.running.Add(1) > 1 {
		c.overlap.Store(true)
	}
}

func (c *counterState) leave() {
	c.running.Add(-1)
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// =========================================================================
// ORDERING TESTS
// =========================================================================

func TestSubmit_RunsInSubmissionOrder(t *testing.T) {
	state := &counterState{}
	s := New(state)

	const n = 500
	futures := make([]*Future[int], 0, n)
	for i := 0; i < n; i++ {
		id := i
		futures = append(futures, Submit(s, func(c *counterState) (int, error) {
			c.enter()
			defer c.leave()
			c.order = append(c.order, id)
			return id, nil
		}))
	}

	ctx := waitCtx(t)
	for i, f := range futures {
		got, err := f.Wait(ctx)
		require.NoError(t, err)
		assert.Equal(t, i, got)
	}

	require.NoError(t, s.Drain(ctx))
	require.Len(t, state.order, n)
	for i, id := range state.order {
		if id != i {
			t.Fatalf("task %d ran at position %d", id, i)
		}
	}
	assert.False(t, state.overlap.Load(), "task bodies overlapped")
}

func TestSubmit_ConcurrentSubmittersNeverOverlap(t *testing.T) {
	state := &counterState{}
	s := New(state)

	const workers, perWorker = 16, 100
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				id := w*perWorker + i
				Submit(s, func(c *counterState) (struct{}, error) {
					c.enter()
					defer c.leave()
					c.order = append(c.order, id)
					return struct{}{}, nil
				})
			}
		}(w)
	}
	wg.Wait()

	require.NoError(t, s.Drain(waitCtx(t)))
	assert.Len(t, state.order, workers*perWorker)
	assert.False(t, state.overlap.Load(), "task bodies overlapped")

	// Within one submitter, order is preserved.
	last := make(map[int]int)
	for _, id := range state.order {
		w, i := id/perWorker, id%perWorker
		if prev, ok := last[w]; ok && i <= prev {
			t.Fatalf("worker %d: task %d ran after task %d", w, i, prev)
		}
		last[w] = i
	}
}

func TestSubmit_ReadObservesEarlierWrite(t *testing.T) {
	s := New(map[string]string{})

	Submit(s, func(m map[string]string) (struct{}, error) {
		m["k"] = "v"
		return struct{}{}, nil
	})
	got, err := Submit(s, func(m map[string]string) (string, error) {
		return m["k"], nil
	}).Wait(waitCtx(t))

	require.NoError(t, err)
	assert.Equal(t, "v", got)
}

func TestSubmit_FromInsideTaskRunsAfterIt(t *testing.T) {
	state := &counterState{}
	s := New(state)

	var inner *Future[struct{}]
	outer := Submit(s, func(c *counterState) (struct{}, error) {
		inner = Submit(s, func(c *counterState) (struct{}, error) {
			c.order = append(c.order, 2)
			return struct{}{}, nil
		})
		c.order = append(c.order, 1)
		return struct{}{}, nil
	})

	ctx := waitCtx(t)
	_, err := outer.Wait(ctx)
	require.NoError(t, err)
	_, err = inner.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, state.order)
}

// =========================================================================
// ERROR ROUTING TESTS
// =========================================================================

func TestSubmit_ErrorRejectsOnlyItsOwnFuture(t *testing.T) {
	s := New(&counterState{})
	boom := errors.New("boom")

	failing := Submit(s, func(*counterState) (int, error) {
		return 0, boom
	})
	after := Submit(s, func(*counterState) (int, error) {
		return 42, nil
	})

	ctx := waitCtx(t)
	_, err := failing.Wait(ctx)
	assert.ErrorIs(t, err, boom)

	got, err := after.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, 42, got)
}

func TestSubmit_PanicIsRecovered(t *testing.T) {
	s := New(&counterState{})

	panicking := Submit(s, func(*counterState) (int, error) {
		panic("kaboom")
	})
	after := Submit(s, func(*counterState) (int, error) {
		return 7, nil
	})

	ctx := waitCtx(t)
	_, err := panicking.Wait(ctx)
	require.ErrorIs(t, err, ErrTaskPanicked)
	assert.Contains(t, err.Error(), "kaboom")

	got, err := after.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, got)
}

// =========================================================================
// FUTURE TESTS
// =========================================================================

func TestFuture_WaitHonoursContext(t *testing.T) {
	s := New(&counterState{})
	release := make(chan struct{})

	// The first task parks the flush goroutine so the second stays queued.
	blocker := Submit(s, func(*counterState) (struct{}, error) {
		<-release
		return struct{}{}, nil
	})
	queued := Submit(s, func(*counterState) (int, error) {
		return 1, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := queued.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	// Abandoning the wait does not cancel the task.
	close(release)
	wctx := waitCtx(t)
	_, err = blocker.Wait(wctx)
	require.NoError(t, err)
	got, err := queued.Wait(wctx)
	require.NoError(t, err)
	assert.Equal(t, 1, got)
}

func TestFuture_DoneClosesAfterRun(t *testing.T) {
	s := New(&counterState{})
	f := Submit(s, func(*counterState) (string, error) {
		return "ok", nil
	})

	select {
	case <-f.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("Done() never closed")
	}

	got, err := f.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
}

// =========================================================================
// DRAIN TESTS
// =========================================================================

func TestDrain_WaitsForEarlierTasks(t *testing.T) {
	state := &counterState{}
	s := New(state)

	for i := 0; i < 50; i++ {
		id := i
		Submit(s, func(c *counterState) (struct{}, error) {
			c.order = append(c.order, id)
			return struct{}{}, nil
		})
	}

	require.NoError(t, s.Drain(waitCtx(t)))
	assert.Len(t, state.order, 50)
	assert.Equal(t, 0, s.Pending())
}
