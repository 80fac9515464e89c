// Package promise delivers the result of a background computation to a
// single consumer that may ask for it before it is ready.
package promise

import (
	"context"
	"sync/atomic"
)

type Promise[T any] struct {
	done    chan struct{}
	err     error
	res     T
	pending int32
}

func New[T any]() *Promise[T] {
	return &Promise[T]{
		done:    make(chan struct{}),
		pending: 1,
	}
}

// Get blocks until the promise is done.
func (p *Promise[T]) Get() (T, error) {
	<-p.done
	return p.res, p.err
}

// Wait is Get bounded by ctx.
func (p *Promise[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-p.done:
		return p.res, p.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Done settles the promise. Only the first call has an effect.
func (p *Promise[T]) Done(res T, err error) {
	if !atomic.CompareAndSwapInt32(&p.pending, 1, 0) {
		return
	}
	p.res = res
	p.err = err
	close(p.done)
}

// All waits for every promise in order and returns their results, stopping at
// the first error.
func All[T any](ctx context.Context, promises []*Promise[T]) ([]T, error) {
	res := make([]T, len(promises))
	for i, p := range promises {
		r, err := p.Wait(ctx)
		if err != nil {
			return nil, err
		}
		res[i] = r
	}
	return res, nil
}
