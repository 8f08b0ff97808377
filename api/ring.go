// Package api
// Author: momentics@gmail.com
//
// FIFO contract shared by the bounded and unbounded channel backends.

package api

// Queue is a non-blocking FIFO safe for concurrent producers and one consumer.
type Queue[T any] interface {
	// Enqueue adds an item, returns false if full.
	Enqueue(item T) bool
	// Dequeue removes oldest item, returns false if empty.
	Dequeue() (T, bool)
	// Len returns current number of items.
	Len() int
}
