// File: netevent/cycle.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The per-tick Receive and Dispatch passes. Neither blocks: readiness is
// checked before every dequeue and every socket call, and a would-block
// ends the pass with the remaining work left for the next tick.

package netevent

import (
	"errors"
	"net/netip"

	"github.com/momentics/hioload-netevent/api"
	"github.com/momentics/hioload-netevent/protocol"
	"github.com/momentics/hioload-netevent/registry"
)

// Receive reads datagrams while the socket is readable and routes each
// one to the endpoint registered for its tag. Malformed and unroutable
// datagrams are reported and skipped. Only a fatal socket error is
// returned.
func (s *Socket) Receive() error {
	if err := s.Err(); err != nil {
		return err
	}
	for n := 0; s.maxPerTick == 0 || n < s.maxPerTick; n++ {
		snap := s.flags.Load()
		if !snap.Readable() {
			return nil
		}
		size, from, err := s.conn.ReadFrom(s.recvBuf)
		switch {
		case err == nil:
		case errors.Is(err, api.ErrWouldBlock):
			s.flags.ClearReadable(snap)
			s.m.WouldBlock.Inc()
			return nil
		case errors.Is(err, api.ErrTruncated):
			s.m.Received.Inc()
			s.m.BytesReceived.Add(float64(size))
			s.m.Malformed.Inc()
			s.report(api.ErrCodeMalformed, "datagram truncated", errors.Join(api.ErrMalformedEnvelope, err), from, 0)
			continue
		default:
			return s.fail("receive", err, netip.AddrPort{})
		}
		s.m.Received.Inc()
		s.m.BytesReceived.Add(float64(size))

		env, err := protocol.Decode(s.recvBuf[:size])
		if err != nil {
			s.m.Malformed.Inc()
			s.report(api.ErrCodeMalformed, "bad envelope", err, from, 0)
			continue
		}
		if err := s.reg.Route(env.Tag, env.Payload); err != nil {
			s.routeFailed(err, env.Tag, from)
		}
	}
	return nil
}

func (s *Socket) routeFailed(err error, tag api.TypeTag, from netip.AddrPort) {
	var re *registry.RoutingError
	switch {
	case errors.Is(err, api.ErrMalformedEnvelope):
		s.m.Malformed.Inc()
		s.report(api.ErrCodeMalformed, "payload decode failed", err, from, tag)
	case errors.As(err, &re) && errors.Is(re.Err, api.ErrUnregisteredTag):
		s.m.Unrouted.Inc()
		s.report(api.ErrCodeRouting, "unregistered tag", err, from, tag)
	default:
		// inbound queue full or closed
		s.m.Unrouted.Inc()
		s.report(api.ErrCodeRouting, "inbound queue rejected event", err, from, tag)
	}
}

// Dispatch sends queued outbound items in registration order, each to
// every peer. An envelope interrupted by would-block is finished first
// on the next call. Only a fatal socket error is returned.
func (s *Socket) Dispatch() error {
	if err := s.Err(); err != nil {
		return err
	}
	if s.peers.Len() == 0 {
		// nowhere to send: drained like a send, only while writable
		if s.flags.Writable() {
			s.discardAll()
		}
		return nil
	}
	if s.slot.buf != nil {
		if done, err := s.flush(); !done || err != nil {
			return err
		}
	}
	for _, src := range s.sources {
		// bounded by what was queued on arrival so a busy producer cannot
		// keep the pass going
		for n := src.pending(); n > 0; n-- {
			if !s.flags.Writable() {
				return nil
			}
			if !s.load(src) {
				break
			}
			if s.slot.buf == nil {
				// encode failed, item dropped
				continue
			}
			if done, err := s.flush(); !done || err != nil {
				return err
			}
		}
	}
	return nil
}

// load encodes the next item of src into the in-flight slot. It returns
// false if src was empty.
func (s *Socket) load(src source) bool {
	buf := s.buffers.Get()
	out, ok, err := src.encodeNext(*buf)
	*buf = out
	if !ok {
		s.buffers.Put(buf)
		return false
	}
	if err != nil {
		s.buffers.Put(buf)
		s.m.EncodeErrors.Inc()
		s.report(api.ErrCodeInternal, "encode failed", err, netip.AddrPort{}, src.sourceTag())
		return true
	}
	s.slot = inflight{buf: buf, tag: src.sourceTag()}
	s.active.Store(true)
	return true
}

// flush writes the in-flight envelope to every peer it has not reached
// yet. It reports false when the socket stopped being writable first.
func (s *Socket) flush() (bool, error) {
	b := *s.slot.buf
	for s.slot.next < s.peers.Len() {
		snap := s.flags.Load()
		if !snap.Writable() {
			return false, nil
		}
		peer := s.peers.At(s.slot.next)
		if err := s.conn.WriteTo(b, peer); err != nil {
			if errors.Is(err, api.ErrWouldBlock) {
				s.flags.ClearWritable(snap)
				s.m.WouldBlock.Inc()
				return false, nil
			}
			return false, s.fail("send", err, peer)
		}
		s.slot.next++
		s.m.Sent.Inc()
		s.m.BytesSent.Add(float64(len(b)))
	}
	s.releaseSlot()
	return true, nil
}

func (s *Socket) releaseSlot() {
	if s.slot.buf != nil {
		s.buffers.Put(s.slot.buf)
	}
	s.slot = inflight{}
	s.active.Store(false)
}

// discardAll empties the outbound queues of a socket with no peers.
func (s *Socket) discardAll() {
	for _, src := range s.sources {
		if n := src.discard(src.pending()); n > 0 {
			s.log.Debug().Str("socket", s.name).Stringer("tag", src.sourceTag()).
				Int("dropped", n).Msg("no peers, outbound discarded")
		}
	}
}
