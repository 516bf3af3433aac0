// Package scheduler serializes access to one piece of shared state.
//
// A Scheduler owns a value of type S. Work reaches that value only through
// tasks: synchronous functions submitted with Submit and executed one at a
// time, in submission order, on a flush goroutine the scheduler starts on
// demand. Nothing else ever holds S, so task bodies need no locking of
// their own.
//
// Tasks must be short and must not block: no I/O, no hashing, and never a
// wait on another task's Future (the waited-on task is queued behind the
// waiter and would never run). Slow work belongs before Submit, with only
// its result captured by the task.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrTaskPanicked wraps the value recovered from a panicking task.
var ErrTaskPanicked = errors.New("scheduler: task panicked")

// Scheduler runs tasks against state S in FIFO order, one at a time.
type Scheduler[S any] struct {
	state S

	mu       sync.Mutex
	pending  []func(S)
	flushing bool
}

// New returns a Scheduler that owns state.
func New[S any](state S) *Scheduler[S] {
	return &Scheduler[S]{state: state}
}

// Submit queues fn and returns a Future for its result.
//
// Submit never blocks and never runs fn on the calling goroutine. If no
// flush is in progress one is started; otherwise fn joins the queue the
// running flush is draining. An error or panic from fn settles only its own
// Future; the rest of the queue keeps running.
func Submit[S, T any](s *Scheduler[S], fn func(S) (T, error)) *Future[T] {
	f := newFuture[T]()
	s.enqueue(func(state S) {
		f.resolve(run(fn, state))
	})
	return f
}

// Drain blocks until every task submitted before the call has finished,
// or ctx is done.
func (s *Scheduler[S]) Drain(ctx context.Context) error {
	_, err := Submit(s, func(S) (struct{}, error) {
		return struct{}{}, nil
	}).Wait(ctx)
	return err
}

// Pending reports how many tasks are queued and not yet started.
func (s *Scheduler[S]) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func (s *Scheduler[S]) enqueue(task func(S)) {
	s.mu.Lock()
	s.pending = append(s.pending, task)
	if s.flushing {
		s.mu.Unlock()
		return
	}
	s.flushing = true
	s.mu.Unlock()

	go s.flush()
}

// flush drains the queue. At most one flush runs at a time, guarded by
// the flushing flag, so task bodies never overlap.
func (s *Scheduler[S]) flush() {
	for {
		s.mu.Lock()
		if len(s.pending) == 0 {
			s.flushing = false
			s.mu.Unlock()
			return
		}
		task := s.pending[0]
		s.pending[0] = nil
		s.pending = s.pending[1:]
		s.mu.Unlock()

		task(s.state)
	}
}

func run[S, T any](fn func(S) (T, error), state S) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			v, err = zero, fmt.Errorf("%w: %v", ErrTaskPanicked, r)
		}
	}()
	return fn(state)
}
