// Copyright 2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Task is a unit of blocking work run by an Executor.
type Task func(ctx context.Context) (*Response, error)

// Executor runs blocking handler work on a bounded number of
// goroutines.  Submit never runs work on the caller's goroutine.
type Executor struct {
	sem      *semaphore.Weighted
	workers  int64
	inFlight int64

	// onChange, if set, is called with the number of running
	// tasks whenever it changes.
	onChange func(int64)
}

// DefaultWorkers returns the default executor size.
func DefaultWorkers() int {
	return runtime.NumCPU() * 2
}

// NewExecutor creates an executor running at most workers tasks at a
// time.  workers <= 0 selects DefaultWorkers().
func NewExecutor(workers int) *Executor {
	if workers <= 0 {
		workers = DefaultWorkers()
	}
	return &Executor{
		sem:     semaphore.NewWeighted(int64(workers)),
		workers: int64(workers),
	}
}

// Workers returns the maximum number of concurrent tasks.
func (e *Executor) Workers() int {
	return int(e.workers)
}

// InFlight returns the number of tasks currently running.
func (e *Executor) InFlight() int64 {
	return atomic.LoadInt64(&e.inFlight)
}

func (e *Executor) track(delta int64) {
	n := atomic.AddInt64(&e.inFlight, delta)
	if e.onChange != nil {
		e.onChange(n)
	}
}

// Submit queues task and returns a future for its result.  If ctx
// is canceled before a worker is free, the future fails with the
// context's error and task never runs.  A panic in task fails the
// future.
func (e *Executor) Submit(ctx context.Context, task Task) *Future {
	f := NewFuture()
	go func() {
		if err := e.sem.Acquire(ctx, 1); err != nil {
			f.Fail(err)
			return
		}
		e.track(1)
		defer func() {
			if recovered := recover(); recovered != nil {
				f.Fail(panicError{value: recovered})
			}
			e.track(-1)
			e.sem.Release(1)
		}()
		resp, err := task(ctx)
		if err != nil {
			f.Fail(err)
		} else {
			f.Complete(resp)
		}
	}()
	return f
}

// panicError carries a recovered panic value.
type panicError struct {
	value interface{}
}

func (e panicError) Error() string {
	if err, ok := e.value.(error); ok {
		return "panic: " + err.Error()
	}
	return fmt.Sprintf("panic: %+v", e.value)
}
