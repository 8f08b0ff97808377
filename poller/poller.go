// File: poller/poller.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package poller runs the background readiness loop: it blocks on the
// reactor and copies every reported readiness change into the readiness
// store. It never performs socket I/O and allocates nothing per event.
package poller

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/momentics/hioload-netevent/affinity"
	"github.com/momentics/hioload-netevent/api"
	"github.com/momentics/hioload-netevent/readiness"
)

// DefaultEventCapacity is the number of notifications read per wake.
const DefaultEventCapacity = 1024

// Option customizes a Poller.
type Option func(*Poller)

// WithLogger sets the logger. The default discards.
func WithLogger(l zerolog.Logger) Option {
	return func(p *Poller) { p.log = l }
}

// WithEventCapacity overrides DefaultEventCapacity.
func WithEventCapacity(n int) Option {
	return func(p *Poller) {
		if n > 0 {
			p.capacity = n
		}
	}
}

// WithWakeHook registers fn to run after every batch of notifications,
// with the number of events in the batch. Used for metrics.
func WithWakeHook(fn func(n int)) Option {
	return func(p *Poller) { p.onWake = fn }
}

// WithCPU pins the poller's OS thread to cpu while it runs. A negative
// cpu, the default, leaves scheduling to the runtime.
func WithCPU(cpu int) Option {
	return func(p *Poller) { p.cpu = cpu }
}

// Poller bridges edge-triggered OS notification to the level-style flags
// the tick goroutine reads.
type Poller struct {
	reactor  api.Reactor
	store    *readiness.Store
	log      zerolog.Logger
	capacity int
	onWake   func(n int)
	cpu      int

	running atomic.Bool
	stop    atomic.Bool
	done    chan struct{}
	errMu   sync.Mutex
	err     error
}

// New creates a poller over reactor and store. The store should be sealed
// before Run so the token map is immutable while the poller reads it.
func New(reactor api.Reactor, store *readiness.Store, opts ...Option) *Poller {
	p := &Poller{
		reactor:  reactor,
		store:    store,
		log:      zerolog.Nop(),
		capacity: DefaultEventCapacity,
		cpu:      -1,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run blocks until Close is called, ctx is cancelled, or the reactor fails.
// A reactor failure is fatal: Run returns it as an *api.Error with
// ErrCodeFatalIO and the poller does not restart.
func (p *Poller) Run(ctx context.Context) error {
	if !p.running.CompareAndSwap(false, true) {
		return api.NewError(api.ErrCodeSetup, "poller already running")
	}
	defer close(p.done)

	stopWatch := context.AfterFunc(ctx, func() { _ = p.Close() })
	defer stopWatch()

	if p.cpu >= 0 {
		unpin, err := affinity.Pin(p.cpu)
		if err != nil {
			p.log.Warn().Err(err).Int("cpu", p.cpu).Msg("poller not pinned")
		}
		defer unpin()
	}
	p.log.Debug().Int("tokens", p.store.Len()).Msg("poller started")
	events := make([]api.Event, p.capacity)
	for {
		if p.stop.Load() {
			p.log.Debug().Msg("poller stopped")
			return nil
		}
		n, err := p.reactor.Wait(events)
		if err != nil {
			if p.stop.Load() {
				// reactor closed underneath a stopping poller
				return nil
			}
			ferr := api.WrapError(api.ErrCodeFatalIO, "readiness wait failed", err)
			p.setErr(ferr)
			p.log.Error().Err(err).Msg("poller terminated")
			return ferr
		}
		for i := 0; i < n; i++ {
			ev := &events[i]
			if ev.Token == api.WakeToken {
				continue
			}
			f := p.store.Get(ev.Token)
			if f == nil {
				continue
			}
			if ev.Error {
				// surface the error through the next I/O call on the socket
				f.Set(true, true)
				continue
			}
			f.Set(ev.Readable, ev.Writable)
		}
		if p.onWake != nil {
			p.onWake(n)
		}
	}
}

// Close asks a running loop to return and wakes it. Safe to call more
// than once and before Run.
func (p *Poller) Close() error {
	if p.stop.Swap(true) {
		return nil
	}
	return p.reactor.Wake()
}

// Done is closed when Run returns.
func (p *Poller) Done() <-chan struct{} {
	return p.done
}

// Err returns the fatal error that terminated Run, if any.
func (p *Poller) Err() error {
	p.errMu.Lock()
	defer p.errMu.Unlock()
	return p.err
}

func (p *Poller) setErr(err error) {
	p.errMu.Lock()
	p.err = err
	p.errMu.Unlock()
}
