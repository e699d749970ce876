// Package queue provides the unbounded FIFO work queue that connects job
// submission to the workers of a pool.
//
// A Queue has one producer side (Push, Close, Abandon) and one consumer side
// (Out) shared by any number of consumers. Items are handed out in push order
// and every item is received by exactly one consumer. Closing the producer side
// does not discard anything: buffered items are still delivered, after which
// Out is closed so that every waiting consumer observes the end of the stream.
package queue

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/gammazero/deque"
)

var ErrClosed = errors.New("queue is closed")

type Queue[T any] struct {
	// producer side, owned by the pump
	in chan T

	// consumer side shared by every worker
	out chan T

	// closed by Abandon to release the pump without draining
	abandon chan struct{}

	// closed once the pump has returned
	done chan struct{}

	// guards closed and the in channel against a concurrent Close
	mu     sync.RWMutex
	closed bool

	abandonOnce sync.Once
	dropped     int

	pending atomic.Int64
}

// New creates a queue and starts the goroutine that moves items from the
// producer side to the consumer side.
func New[T any]() *Queue[T] {
	q := &Queue[T]{
		in:      make(chan T),
		out:     make(chan T),
		abandon: make(chan struct{}),
		done:    make(chan struct{}),
	}

	go q.pump()

	return q
}

// Push appends v to the queue. It never waits for a consumer.
func (q *Queue[T]) Push(v T) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrClosed
	}

	q.pending.Add(1)
	q.in <- v

	return nil
}

// Out returns the consumer handle. A receive with ok == false means no more
// items will ever arrive.
func (q *Queue[T]) Out() <-chan T {
	return q.out
}

// Close stops accepting new items. It is safe to call more than once.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.in)
}

// Abandon closes the queue and drops whatever is still buffered. It returns
// the number of dropped items and waits for the pump to exit.
func (q *Queue[T]) Abandon() int {
	q.Close()

	q.abandonOnce.Do(func() {
		close(q.abandon)
	})

	<-q.done

	return q.dropped
}

// Len returns the number of items pushed but not yet received.
func (q *Queue[T]) Len() int {
	return int(q.pending.Load())
}

// Closed reports whether Close or Abandon has been called.
func (q *Queue[T]) Closed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	return q.closed
}

// Done is closed once the queue has delivered or dropped every item.
func (q *Queue[T]) Done() <-chan struct{} {
	return q.done
}

func (q *Queue[T]) pump() {
	defer close(q.done)
	defer close(q.out)

	var buf deque.Deque[T]
	in := q.in

	for in != nil || buf.Len() > 0 {
		// a nil channel disables the send case while nothing is buffered
		var out chan T
		var next T
		if buf.Len() > 0 {
			out = q.out
			next = buf.Front()
		}

		select {
		case v, ok := <-in:
			if !ok {
				in = nil
				continue
			}
			buf.PushBack(v)
		case out <- next:
			buf.PopFront()
			q.pending.Add(-1)
		case <-q.abandon:
			q.dropped = buf.Len()
			q.pending.Add(-int64(buf.Len()))
			buf.Clear()
			return
		}
	}
}
