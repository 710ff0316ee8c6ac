// Package queue provides the bounded stub queue connecting the catalog
// pager to the product workers.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gosaq/saq-crawler/internal/saq"
)

// ErrClosed is returned by Enqueue once the queue is closed, and by Dequeue
// once the queue is closed and fully drained.
var ErrClosed = errors.New("queue closed")

// Queue is a closable bounded queue of product stubs, safe for one producer
// and many consumers.
//
// Closing is the pipeline's only cross-task stop signal, and it is
// cooperative: stubs already buffered at closure are still handed out by
// Dequeue, so in-flight work is drained rather than dropped. A separate
// done channel carries the closed state because Go channels cannot be
// safely closed from the consumer side while a producer may still send.
type Queue struct {
	ch        chan saq.ProductStub
	done      chan struct{}
	closeOnce sync.Once
}

// New constructs a queue with the provided capacity.
func New(capacity int) *Queue {
	return &Queue{
		ch:   make(chan saq.ProductStub, capacity),
		done: make(chan struct{}),
	}
}

// Enqueue pushes a stub, blocking while the queue is full. It returns
// ErrClosed once the queue is closed, or the context error if the context
// ends first.
func (q *Queue) Enqueue(ctx context.Context, stub saq.ProductStub) error {
	// Checked first on its own: in the combined select below a ready send
	// and a closed done channel race, and the send must never win once the
	// queue is closed.
	select {
	case <-q.done:
		return ErrClosed
	default:
	}

	select {
	case <-q.done:
		return ErrClosed
	case <-ctx.Done():
		return fmt.Errorf("enqueue canceled: %w", ctx.Err())
	case q.ch <- stub:
		return nil
	}
}

// Dequeue pops the next stub, blocking while the queue is open and empty.
// After closure it keeps returning buffered stubs until the queue is
// drained, then returns ErrClosed.
func (q *Queue) Dequeue(ctx context.Context) (saq.ProductStub, error) {
	select {
	case stub := <-q.ch:
		return stub, nil
	case <-q.done:
		// Closed: drain whatever is still buffered before reporting it.
		select {
		case stub := <-q.ch:
			return stub, nil
		default:
			return saq.ProductStub{}, ErrClosed
		}
	case <-ctx.Done():
		return saq.ProductStub{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	}
}

// Close marks the queue closed. It is idempotent and safe to call from the
// producer or any consumer.
func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		close(q.done)
	})
}
