// File: internal/tick/loop.go
// Package tick drives a node at a fixed interval, running the network
// stages in order on one goroutine.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package tick

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Stage is one step of a tick.
type Stage int

const (
	Receive Stage = iota
	PostReceive
	PreDispatch
	Dispatch
)

func (s Stage) String() string {
	switch s {
	case Receive:
		return "receive"
	case PostReceive:
		return "post_receive"
	case PreDispatch:
		return "pre_dispatch"
	case Dispatch:
		return "dispatch"
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// Cycle is the network side of a tick. *netevent.Node implements it.
type Cycle interface {
	Receive() error
	Dispatch() error
}

// Loop states.
const (
	idle int32 = iota
	running
	stopped
)

// Hook is host logic run between the network stages. A returned error
// stops the loop.
type Hook func() error

// Loop runs Receive, the PostReceive hooks, the PreDispatch hooks and
// Dispatch once per interval.
type Loop struct {
	cycle    Cycle
	interval time.Duration
	hooks    [Dispatch + 1][]Hook
	log      zerolog.Logger

	state    atomic.Int32
	ticks    atomic.Uint64
	quit     chan struct{}
	quitOnce sync.Once
	done     chan struct{}
}

// Option customizes a Loop.
type Option func(*Loop)

// WithLogger sets the loop logger.
func WithLogger(l zerolog.Logger) Option {
	return func(lp *Loop) { lp.log = l }
}

// New creates a loop over c ticking every interval.
func New(c Cycle, interval time.Duration, opts ...Option) *Loop {
	l := &Loop{
		cycle:    c,
		interval: interval,
		log:      zerolog.Nop(),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// AddHook appends fn to stage. Only PostReceive and PreDispatch take
// hooks, and only before Run.
func (l *Loop) AddHook(stage Stage, fn Hook) error {
	if stage != PostReceive && stage != PreDispatch {
		return fmt.Errorf("tick: stage %s does not take hooks", stage)
	}
	if l.state.Load() != idle {
		return fmt.Errorf("tick: loop already started")
	}
	l.hooks[stage] = append(l.hooks[stage], fn)
	return nil
}

// Step runs one tick synchronously. A Receive error does not skip the
// rest of the tick, so healthy sockets still dispatch; a hook error does.
func (l *Loop) Step() error {
	var recvErr error
	if err := l.cycle.Receive(); err != nil {
		recvErr = fmt.Errorf("%s: %w", Receive, err)
	}
	for _, st := range [...]Stage{PostReceive, PreDispatch} {
		for _, h := range l.hooks[st] {
			if err := h(); err != nil {
				return errors.Join(recvErr, fmt.Errorf("%s: %w", st, err))
			}
		}
	}
	if err := l.cycle.Dispatch(); err != nil {
		return errors.Join(recvErr, fmt.Errorf("%s: %w", Dispatch, err))
	}
	l.ticks.Add(1)
	return recvErr
}

// Run ticks until ctx is done, Stop is called or a stage fails. The
// failing stage's error is returned.
func (l *Loop) Run(ctx context.Context) error {
	if !l.state.CompareAndSwap(idle, running) {
		if l.state.Load() == stopped {
			return nil
		}
		return fmt.Errorf("tick: loop already running")
	}
	defer close(l.done)

	t := time.NewTicker(l.interval)
	defer t.Stop()
	l.log.Debug().Dur("interval", l.interval).Msg("tick loop started")
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-l.quit:
			return nil
		case <-t.C:
			select {
			case <-l.quit:
				return nil
			default:
			}
			if err := l.Step(); err != nil {
				l.log.Error().Err(err).Uint64("tick", l.ticks.Load()).Msg("tick loop stopped")
				return err
			}
		}
	}
}

// Stop ends Run and waits for it to return. A Stop before Run makes the
// later Run return at once without ticking.
func (l *Loop) Stop() {
	l.quitOnce.Do(func() { close(l.quit) })
	if l.state.CompareAndSwap(idle, stopped) {
		return
	}
	if l.state.Load() == running {
		<-l.done
	}
}

// Ticks returns the number of completed ticks.
func (l *Loop) Ticks() uint64 { return l.ticks.Load() }
