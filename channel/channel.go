// File: channel/channel.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Typed, never-blocking channels that decouple per-type producers and
// consumers from the cadence of socket I/O.

// Package channel implements the typed endpoints between host code and the
// shared socket cycle.
package channel

import (
	"iter"
	"sync"
	"sync/atomic"

	"github.com/eapache/queue"

	"github.com/momentics/hioload-netevent/api"
	"github.com/momentics/hioload-netevent/internal/concurrency"
)

// Channel is a FIFO of T. Send never blocks. Any number of goroutines may
// send; one goroutine drains.
type Channel[T any] struct {
	q      api.Queue[T]
	closed atomic.Bool
}

// New creates a channel. A capacity of zero or less makes it unbounded,
// otherwise Send fails with api.ErrChannelFull once capacity items wait.
// Bounded capacities are rounded up to a power of two.
func New[T any](capacity int) *Channel[T] {
	var q api.Queue[T]
	if capacity > 0 {
		q = concurrency.NewBoundedQueue[T](capacity)
	} else {
		q = newUnbounded[T]()
	}
	return &Channel[T]{q: q}
}

// Send enqueues v.
func (c *Channel[T]) Send(v T) error {
	if c.closed.Load() {
		return api.ErrChannelClosed
	}
	if !c.q.Enqueue(v) {
		return api.ErrChannelFull
	}
	return nil
}

// TryReceive dequeues the oldest value, if any. Values queued before Close
// remain receivable.
func (c *Channel[T]) TryReceive() (T, bool) {
	return c.q.Dequeue()
}

// Drain yields the values queued when the pass starts, oldest first, and
// stops early if the channel runs empty. Values sent during the pass wait
// for the next one, so a pass is finite even under a busy producer. Each
// range over the sequence starts a new pass.
func (c *Channel[T]) Drain() iter.Seq[T] {
	return func(yield func(T) bool) {
		for n := c.q.Len(); n > 0; n-- {
			v, ok := c.q.Dequeue()
			if !ok || !yield(v) {
				return
			}
		}
	}
}

// Len returns the number of queued values.
func (c *Channel[T]) Len() int {
	return c.q.Len()
}

// Close rejects further sends. It is idempotent.
func (c *Channel[T]) Close() {
	c.closed.Store(true)
}

// Closed reports whether Close was called.
func (c *Channel[T]) Closed() bool {
	return c.closed.Load()
}

// unbounded wraps the eapache ring-growing queue, which is not safe for
// concurrent use on its own.
type unbounded[T any] struct {
	mu sync.Mutex
	q  *queue.Queue
}

func newUnbounded[T any]() *unbounded[T] {
	return &unbounded[T]{q: queue.New()}
}

func (u *unbounded[T]) Enqueue(v T) bool {
	u.mu.Lock()
	u.q.Add(v)
	u.mu.Unlock()
	return true
}

func (u *unbounded[T]) Dequeue() (T, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.q.Length() == 0 {
		var zero T
		return zero, false
	}
	v, _ := u.q.Remove().(T)
	return v, true
}

func (u *unbounded[T]) Len() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.q.Length()
}
