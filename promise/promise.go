// Package promise provides a single-shot asynchronous result.
//
// Every facade operation settles exactly once, either with a value or with
// an error. There is no cancellation: once started, work runs to completion
// and a caller whose context expires only discards interest in the result.
package promise

import (
	"context"
)

// Promise is a single-shot asynchronous result of type T.
type Promise[T any] struct {
	done chan struct{}
	val  T
	err  error
}

// Resolve returns an already-settled promise carrying the value.
func Resolve[T any](v T) *Promise[T] {
	p := &Promise[T]{done: make(chan struct{}), val: v}
	close(p.done)
	return p
}

// Reject returns an already-settled promise carrying the error.
func Reject[T any](err error) *Promise[T] {
	p := &Promise[T]{done: make(chan struct{}), err: err}
	close(p.done)
	return p
}

// Go runs fn on its own goroutine and returns a promise that settles with
// its result. The calling goroutine is never blocked.
func Go[T any](fn func() (T, error)) *Promise[T] {
	p := &Promise[T]{done: make(chan struct{})}
	go func() {
		defer close(p.done)
		p.val, p.err = fn()
	}()
	return p
}

// Await blocks until the promise settles or ctx is done. A context error
// abandons the result only; in-flight work still runs to completion.
func (p *Promise[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-p.done:
		return p.val, p.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Done returns a channel that is closed when the promise settles.
func (p *Promise[T]) Done() <-chan struct{} {
	return p.done
}

// Settled reports whether the promise has already settled.
func (p *Promise[T]) Settled() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}
