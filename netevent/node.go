// File: netevent/node.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package netevent

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/momentics/hioload-netevent/api"
	"github.com/momentics/hioload-netevent/control"
	"github.com/momentics/hioload-netevent/poller"
)

// Node is a built set of sockets plus the poller goroutine feeding their
// readiness flags. The host drives it with Receive and Dispatch, or Tick.
type Node struct {
	sockets []*Socket
	byName  map[string]*Socket
	reactor api.Reactor
	poller  *poller.Poller
	cancel  context.CancelFunc
	probes  *control.DebugProbes
	log     zerolog.Logger

	closeOnce sync.Once
	closeErr  error
}

// Receive runs the receive pass on every socket. Every socket is visited
// even if one has failed; the fatal errors are joined.
func (n *Node) Receive() error {
	if err := n.pollerErr(); err != nil {
		return err
	}
	var errs []error
	for _, s := range n.sockets {
		if err := s.Receive(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Dispatch runs the dispatch pass on every socket.
func (n *Node) Dispatch() error {
	if err := n.pollerErr(); err != nil {
		return err
	}
	var errs []error
	for _, s := range n.sockets {
		if err := s.Dispatch(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Tick is Receive followed by Dispatch.
// A failed socket does not keep the others from dispatching.
func (n *Node) Tick() error {
	return errors.Join(n.Receive(), n.Dispatch())
}

// Socket returns the socket registered under name.
func (n *Node) Socket(name string) (*Socket, bool) {
	s, ok := n.byName[name]
	return s, ok
}

// Sockets returns the sockets in registration order.
func (n *Node) Sockets() []*Socket {
	return append([]*Socket(nil), n.sockets...)
}

// Probes returns the debug probe registry the node reports into.
func (n *Node) Probes() *control.DebugProbes { return n.probes }

// Done is closed when the poller has stopped, after Close or a fault.
func (n *Node) Done() <-chan struct{} { return n.poller.Done() }

// Wait blocks until the poller stops and returns its fatal error, if any.
func (n *Node) Wait() error {
	<-n.poller.Done()
	return n.poller.Err()
}

// Close stops the poller, closes every endpoint queue and then the
// sockets and the reactor. Values already received stay drainable.
// Close is idempotent; the tick goroutine must not be inside Receive or
// Dispatch while it runs.
func (n *Node) Close() error {
	n.closeOnce.Do(func() {
		var errs []error
		errs = append(errs, n.poller.Close())
		n.cancel()
		<-n.poller.Done()
		for _, s := range n.sockets {
			for _, src := range s.sources {
				src.close()
			}
		}
		for _, s := range n.sockets {
			errs = append(errs, s.close())
		}
		errs = append(errs, n.reactor.Close())
		n.closeErr = errors.Join(errs...)
		n.log.Info().Err(n.closeErr).Msg("node closed")
	})
	return n.closeErr
}

func (n *Node) pollerErr() error {
	select {
	case <-n.poller.Done():
		if err := n.poller.Err(); err != nil {
			return err
		}
		return api.ErrPollerClosed
	default:
		return nil
	}
}

func (n *Node) registerProbes() {
	n.probes.RegisterProbe("node.sockets", func() any { return len(n.sockets) })
	n.probes.RegisterProbe("node.poller", func() any {
		if err := n.pollerErr(); err != nil {
			return err.Error()
		}
		return "running"
	})
	for _, s := range n.sockets {
		prefix := "socket." + s.name + "."
		n.probes.RegisterProbe(prefix+"readiness", func() any {
			r, w := s.Readiness()
			return map[string]bool{"readable": r, "writable": w}
		})
		n.probes.RegisterProbe(prefix+"inflight", func() any { return s.InFlight() })
		n.probes.RegisterProbe(prefix+"outbound", func() any { return s.pendingOut() })
		n.probes.RegisterProbe(prefix+"inbound", func() any { return s.pendingIn() })
		n.probes.RegisterProbe(prefix+"failed", func() any { return s.Err() != nil })
	}
}
