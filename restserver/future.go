// Copyright 2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

import (
	"context"
	"sync"
)

// Future is a single-assignment cell holding the eventual response
// to a request, or the error that prevented one.  The first
// completion wins; later ones are ignored.
type Future struct {
	done chan struct{}

	lock      sync.Mutex
	completed bool
	resp      *Response
	err       error
	callbacks []func()
}

// NewFuture creates an incomplete future.
func NewFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// Completed creates a future that already holds a response.
func Completed(resp *Response) *Future {
	f := NewFuture()
	f.Complete(resp)
	return f
}

// Failed creates a future that already holds an error.
func Failed(err error) *Future {
	f := NewFuture()
	f.Fail(err)
	return f
}

// settle records the outcome if there is none yet.  Returns true if
// this call set it.
func (f *Future) settle(resp *Response, err error) bool {
	f.lock.Lock()
	if f.completed {
		f.lock.Unlock()
		return false
	}
	f.completed = true
	f.resp = resp
	f.err = err
	callbacks := f.callbacks
	f.callbacks = nil
	close(f.done)
	f.lock.Unlock()

	for _, callback := range callbacks {
		callback()
	}
	return true
}

// Complete sets the response.  Returns false if the future was
// already complete.
func (f *Future) Complete(resp *Response) bool {
	return f.settle(resp, nil)
}

// Fail sets the error.  Returns false if the future was already
// complete.
func (f *Future) Fail(err error) bool {
	return f.settle(nil, err)
}

// Done returns a channel that is closed when the future completes.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Await waits for the future or for ctx to be done, whichever
// happens first.
func (f *Future) Await(ctx context.Context) (*Response, error) {
	select {
	case <-f.done:
		return f.resp, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Then returns a future that completes with the result of calling fn
// on this future's outcome.  fn runs on whichever goroutine completes
// this future, so it should be quick.
func (f *Future) Then(fn func(*Response, error) (*Response, error)) *Future {
	next := NewFuture()
	run := func() {
		resp, err := fn(f.resp, f.err)
		next.settle(resp, err)
	}
	f.lock.Lock()
	if !f.completed {
		f.callbacks = append(f.callbacks, run)
		f.lock.Unlock()
		return next
	}
	f.lock.Unlock()
	run()
	return next
}

// FromChannel returns a future that completes when ch delivers a
// value: with the response built by onSuccess if the value is nil,
// or with the error otherwise.  A closed channel counts as success.
func FromChannel(ch <-chan error, onSuccess func() *Response) *Future {
	f := NewFuture()
	go func() {
		if err := <-ch; err != nil {
			f.Fail(err)
			return
		}
		f.Complete(onSuccess())
	}()
	return f
}
