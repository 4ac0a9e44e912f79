package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// ErrJobNotStarted is the task result when no slot freed up in time.
var ErrJobNotStarted = errors.New("background job not started")

// Task is the handle of a background job. Done is closed once the job ran.
type Task struct {
	done chan struct{}
	err  error
}

// Done returns a channel closed when the task finished.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Err returns the task result. Only valid after Done is closed.
func (t *Task) Err() error {
	return t.err
}

// Wait blocks until the task finished or ctx expires.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dispatcher runs fire-and-forget work off the request path. Submission
// never blocks; at most `concurrency` jobs touch the backing store at once.
// Jobs get their own context so a finished request cannot abort them. The
// wait for a slot and the job itself each get the full timeout.
type Dispatcher struct {
	sem     *semaphore.Weighted
	timeout time.Duration
	logger  *slog.Logger

	mu       sync.Mutex
	wg       sync.WaitGroup
	draining bool
}

// NewDispatcher creates a dispatcher. Non-positive values fall back to
// 4 concurrent jobs and a 10 second timeout.
func NewDispatcher(concurrency int, timeout time.Duration) *Dispatcher {
	if concurrency <= 0 {
		concurrency = 4
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{
		sem:     semaphore.NewWeighted(int64(concurrency)),
		timeout: timeout,
		logger:  slog.Default(),
	}
}

// Go schedules job and returns immediately. Once Shutdown started, jobs run
// inline so late writes are not lost.
func (d *Dispatcher) Go(name string, job func(ctx context.Context) error) *Task {
	return d.GoFinally(name, job, nil)
}

// GoFinally is Go with a hook that always runs with the task result before
// Done is closed, also when the job never got a slot.
func (d *Dispatcher) GoFinally(name string, job func(ctx context.Context) error, finally func(err error)) *Task {
	task := &Task{done: make(chan struct{})}

	d.mu.Lock()
	if d.draining {
		d.mu.Unlock()
		d.run(name, job, finally, task)
		return task
	}
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()
		d.run(name, job, finally, task)
	}()
	return task
}

func (d *Dispatcher) run(name string, job func(ctx context.Context) error, finally func(err error), task *Task) {
	defer close(task.done)
	if finally != nil {
		defer func() { finally(task.err) }()
	}

	waitCtx, cancelWait := context.WithTimeout(context.Background(), d.timeout)
	err := d.sem.Acquire(waitCtx, 1)
	cancelWait()
	if err != nil {
		task.err = fmt.Errorf("%w: %w", ErrJobNotStarted, err)
		d.logger.Error("background job not started", "job", name, "err", err)
		return
	}
	defer d.sem.Release(1)

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := job(ctx); err != nil {
		task.err = err
		d.logger.Error("background job failed", "job", name, "err", err)
	}
}

// Shutdown waits for queued jobs until ctx expires.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	d.draining = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
