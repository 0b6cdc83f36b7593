package service

import (
	"context"
	"log"
	"sync"
	"time"
)

// TaskRegistry tracks the background task of each open trip. Every task
// gets its own cancellation context keyed by trip ID, the number of
// concurrently running tasks can be capped, and shutdown drains the whole
// set instead of abandoning goroutines mid-cycle.
type TaskRegistry struct {
	baseCtx context.Context
	cancel  context.CancelFunc
	sem     chan struct{} // nil when uncapped

	mu    sync.Mutex
	tasks map[string]*taskHandle
	wg    sync.WaitGroup
}

type taskHandle struct {
	cancel context.CancelFunc
}

// NewTaskRegistry creates a task registry. maxActive caps the number of
// concurrently running tasks; zero means unbounded.
func NewTaskRegistry(maxActive int) *TaskRegistry {
	ctx, cancel := context.WithCancel(context.Background())
	r := &TaskRegistry{
		baseCtx: ctx,
		cancel:  cancel,
		tasks:   make(map[string]*taskHandle),
	}
	if maxActive > 0 {
		r.sem = make(chan struct{}, maxActive)
	}
	return r
}

// Spawn runs fn as a detached task for the trip. The caller returns
// immediately; when the cap is reached the task waits for a free slot in
// the background. Spawning a second task for the same trip cancels the
// first.
func (r *TaskRegistry) Spawn(tripID string, fn func(ctx context.Context)) {
	taskCtx, taskCancel := context.WithCancel(r.baseCtx)
	handle := &taskHandle{cancel: taskCancel}

	r.mu.Lock()
	if prev, ok := r.tasks[tripID]; ok {
		prev.cancel()
	}
	r.tasks[tripID] = handle
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.remove(tripID, handle)

		if r.sem != nil {
			select {
			case r.sem <- struct{}{}:
				defer func() { <-r.sem }()
			case <-taskCtx.Done():
				return
			}
		}

		fn(taskCtx)
	}()
}

// Cancel stops the trip's task, if one is running.
func (r *TaskRegistry) Cancel(tripID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if handle, ok := r.tasks[tripID]; ok {
		handle.cancel()
		delete(r.tasks, tripID)
	}
}

// Drain cancels every task and waits up to timeout for them to finish.
func (r *TaskRegistry) Drain(timeout time.Duration) {
	r.cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		log.Printf("task registry drain timed out after %s", timeout)
	}
}

// Active returns the number of tracked tasks.
func (r *TaskRegistry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks)
}

func (r *TaskRegistry) remove(tripID string, handle *taskHandle) {
	handle.cancel()
	r.mu.Lock()
	defer r.mu.Unlock()
	// A replacement task may have taken the slot already; only remove
	// our own registration.
	if current, ok := r.tasks[tripID]; ok && current == handle {
		delete(r.tasks, tripID)
	}
}
