// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package eval

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Task is a deferred callable running on its own goroutine.
type Task struct {
	id       string
	callable *Callable
	done     chan struct{}
	result   any
	err      error
	fireAt   time.Time
	timer    *time.Timer
}

// ID returns the unique task id.
func (t *Task) ID() string { return t.id }

// Done is closed when the task has finished.
func (t *Task) Done() <-chan struct{} { return t.done }

// Cancel cancels the task's evaluation. It returns false if the task was
// already cancelled.
func (t *Task) Cancel() bool { return t.callable.Cancel() }

// Wait blocks until the task finishes or ctx is done.
func (t *Task) Wait(ctx context.Context) (any, error) {
	select {
	case <-t.done:
		return t.result, t.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Finished reports whether the task has completed, without blocking.
func (t *Task) Finished() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Remaining returns the time left before a delayed task starts.
func (t *Task) Remaining() time.Duration {
	if t.fireAt.IsZero() {
		return 0
	}
	return max(time.Until(t.fireAt), 0)
}

// Tasks runs callables on goroutines and keeps track of them until
// Shutdown.
type Tasks struct {
	mu      sync.Mutex
	handles map[string]*Task
	wg      sync.WaitGroup
}

// NewTasks creates an empty registry.
func NewTasks() *Tasks {
	return &Tasks{
		handles: make(map[string]*Task),
	}
}

func (r *Tasks) register(c *Callable, delay time.Duration) *Task {
	t := &Task{
		id:       uuid.NewString(),
		callable: c,
		done:     make(chan struct{}),
	}
	if delay > 0 {
		t.fireAt = time.Now().Add(delay)
	}
	r.mu.Lock()
	r.handles[t.id] = t
	r.mu.Unlock()
	return t
}

func (r *Tasks) run(ctx context.Context, t *Task) {
	defer r.wg.Done()
	defer close(t.done)
	t.result, t.err = t.callable.Call(ctx)
}

// Go starts c on a new goroutine.
func (r *Tasks) Go(ctx context.Context, c *Callable) *Task {
	t := r.register(c, 0)
	r.wg.Add(1)
	go r.run(ctx, t)
	return t
}

// After starts c once delay has elapsed.
func (r *Tasks) After(ctx context.Context, delay time.Duration, c *Callable) *Task {
	t := r.register(c, delay)
	r.wg.Add(1)
	r.mu.Lock()
	t.timer = time.AfterFunc(delay, func() { r.run(ctx, t) })
	r.mu.Unlock()
	return t
}

// Get retrieves a task by id.
func (r *Tasks) Get(id string) *Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.handles[id]
}

// IDs returns the ids of all tasks, finished or not, in sorted order.
func (r *Tasks) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.handles))
	for id := range r.handles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Forget drops a finished task. It returns false if the task is unknown
// or still running.
func (r *Tasks) Forget(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.handles[id]
	if !ok || !t.Finished() {
		return false
	}
	delete(r.handles, id)
	return true
}

// Shutdown cancels every task, stops pending timers and waits up to
// timeout for running goroutines. It returns false on timeout.
func (r *Tasks) Shutdown(timeout time.Duration) bool {
	r.mu.Lock()
	for _, t := range r.handles {
		t.Cancel()
		if t.timer != nil && t.timer.Stop() {
			// the timer will never fire
			t.err = &Error{Issue: Cancelled}
			close(t.done)
			r.wg.Done()
		}
	}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}
