package runtime

import "sync"

// AsyncRuntime is the job queue behind promise reactions and the async
// WebAssembly entry points. Jobs never run concurrently with each other or
// with the code that enqueued them.
type AsyncRuntime interface {
	// ScheduleMicrotask queues a job to run after the current job completes.
	ScheduleMicrotask(job func())

	// RunUntilIdle runs the jobs queued so far and reports whether any ran.
	// Jobs they enqueue wait for the next call.
	RunUntilIdle() bool

	// Pending returns the number of queued jobs.
	Pending() int
}

// DefaultAsyncRuntime is a FIFO microtask queue.
type DefaultAsyncRuntime struct {
	mu         sync.Mutex
	microtasks []func()
}

// NewDefaultAsyncRuntime creates a new default async runtime
func NewDefaultAsyncRuntime() *DefaultAsyncRuntime {
	return &DefaultAsyncRuntime{
		microtasks: make([]func(), 0, 16),
	}
}

// ScheduleMicrotask adds a job to the microtask queue
func (rt *DefaultAsyncRuntime) ScheduleMicrotask(job func()) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.microtasks = append(rt.microtasks, job)
}

// RunUntilIdle executes the jobs that were pending when it was called.
func (rt *DefaultAsyncRuntime) RunUntilIdle() bool {
	rt.mu.Lock()
	tasks := rt.microtasks
	rt.microtasks = make([]func(), 0, 16)
	rt.mu.Unlock()

	for _, task := range tasks {
		task()
	}
	return len(tasks) > 0
}

// Pending returns the number of queued jobs.
func (rt *DefaultAsyncRuntime) Pending() int {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return len(rt.microtasks)
}
