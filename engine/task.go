package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// TaskStatus is the lifecycle state of a Task.
type TaskStatus int32

const (
	StatusQueued TaskStatus = iota
	StatusRunning
	StatusCompleted
	StatusFailed
	StatusCancelled
)

func (s TaskStatus) String() string {
	switch s {
	case StatusQueued:
		return "queued"
	case StatusRunning:
		return "running"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Task is a background operation that reports events of type E.
// Events is closed when the task finishes; consumers must drain it or cancel
// the task, otherwise the task blocks on delivery.
type Task[E any] struct {
	id     string
	events chan E
	done   chan struct{}
	cancel context.CancelFunc
	status atomic.Int32

	mu  sync.Mutex
	err error
}

func newTask[E any](ctx context.Context, buffer int) (*Task[E], context.Context) {
	taskCtx, cancel := context.WithCancel(ctx)
	return &Task[E]{
		id:     uuid.NewString(),
		events: make(chan E, buffer),
		done:   make(chan struct{}),
		cancel: cancel,
	}, taskCtx
}

func (t *Task[E]) ID() string { return t.id }

func (t *Task[E]) Events() <-chan E { return t.events }

// Done is closed once the task has finished and Events is closed.
func (t *Task[E]) Done() <-chan struct{} { return t.done }

// Wait blocks until the task finishes or ctx ends.
func (t *Task[E]) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Task[E]) Cancel() { t.cancel() }

func (t *Task[E]) Status() TaskStatus { return TaskStatus(t.status.Load()) }

// Err returns the task's failure, or nil while running and after success.
func (t *Task[E]) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// emit delivers an event unless the task context ends first.
func (t *Task[E]) emit(ctx context.Context, event E) bool {
	select {
	case t.events <- event:
		return true
	case <-ctx.Done():
		return false
	}
}

func (t *Task[E]) start() {
	t.status.Store(int32(StatusRunning))
}

func (t *Task[E]) finish(err error) {
	status := StatusCompleted
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = StatusCancelled
	case err != nil:
		status = StatusFailed
	}

	t.mu.Lock()
	t.err = err
	t.mu.Unlock()

	t.status.Store(int32(status))
	close(t.events)
	close(t.done)
	t.cancel()
}
