// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT

package fake

import (
	"errors"
	"sync"

	"github.com/momentics/hioload-netevent/api"
)

// ErrReactorClosed is returned by Wait after Close.
var ErrReactorClosed = errors.New("fake reactor closed")

type batch struct {
	events []api.Event
	err    error
}

// Reactor is a scriptable api.Reactor. Tests push notifications with
// Notify and make Wait fail with Fail.
type Reactor struct {
	mu         sync.Mutex
	registered map[api.Token]uintptr
	ch         chan batch
	closed     chan struct{}
	closeOnce  sync.Once
}

// NewReactor creates an empty fake reactor.
func NewReactor() *Reactor {
	return &Reactor{
		registered: make(map[api.Token]uintptr),
		ch:         make(chan batch, 64),
		closed:     make(chan struct{}),
	}
}

// Register implements api.Reactor.
func (r *Reactor) Register(fd uintptr, token api.Token) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.registered[token]; ok || token == api.WakeToken {
		return api.ErrInvalidArgument
	}
	r.registered[token] = fd
	return nil
}

// Registered returns the fd registered under token.
func (r *Reactor) Registered(token api.Token) (uintptr, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fd, ok := r.registered[token]
	return fd, ok
}

// Notify queues one batch of events for Wait.
func (r *Reactor) Notify(events ...api.Event) {
	r.ch <- batch{events: events}
}

// Fail makes the next Wait return err.
func (r *Reactor) Fail(err error) {
	r.ch <- batch{err: err}
}

// Wait implements api.Reactor, blocking until a batch is queued.
func (r *Reactor) Wait(events []api.Event) (int, error) {
	select {
	case b := <-r.ch:
		if b.err != nil {
			return 0, b.err
		}
		return copy(events, b.events), nil
	case <-r.closed:
		return 0, ErrReactorClosed
	}
}

// Wake implements api.Reactor.
func (r *Reactor) Wake() error {
	select {
	case r.ch <- batch{events: []api.Event{{Token: api.WakeToken, Readable: true}}}:
	default:
		// a full queue already guarantees Wait returns
	}
	return nil
}

// Close implements api.Reactor.
func (r *Reactor) Close() error {
	r.closeOnce.Do(func() { close(r.closed) })
	return nil
}
