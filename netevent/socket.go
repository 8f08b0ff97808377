// File: netevent/socket.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package netevent

import (
	"fmt"
	"net/netip"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/momentics/hioload-netevent/api"
	"github.com/momentics/hioload-netevent/control"
	"github.com/momentics/hioload-netevent/pool"
	"github.com/momentics/hioload-netevent/readiness"
	"github.com/momentics/hioload-netevent/registry"
	"github.com/momentics/hioload-netevent/transport/udp"
)

// Socket is one bound socket with its peers, routing table and outbound
// sources. Receive and Dispatch may run on different goroutines, but
// each of them must not run concurrently with itself.
type Socket struct {
	name    string
	token   api.Token
	conn    api.PacketConn
	peers   udp.PeerSet
	flags   *readiness.Flags
	reg     *registry.Registry
	sources []source

	recvBuf    []byte
	maxPerTick int

	buffers *pool.BytePool
	slot    inflight
	active  atomic.Bool // mirrors slot.buf != nil for probes

	failed atomic.Pointer[api.Error]
	rep    *reporter
	m      *control.SocketMetrics
	log    zerolog.Logger
}

// inflight is the envelope being sent to the peer set. It survives a
// would-block so the next tick resumes at peer next, never re-encoding
// the item and never sending it twice to the same peer.
type inflight struct {
	buf  *[]byte
	tag  api.TypeTag
	next int
}

// Name returns the configured socket name.
func (s *Socket) Name() string { return s.name }

// Token returns the readiness token.
func (s *Socket) Token() api.Token { return s.token }

// Peers returns the destination set.
func (s *Socket) Peers() udp.PeerSet { return s.peers }

// Readiness returns the flags as last seen by the cycle.
func (s *Socket) Readiness() (readable, writable bool) {
	snap := s.flags.Load()
	return snap.Readable(), snap.Writable()
}

// Tags returns the registered type tags.
func (s *Socket) Tags() []api.TypeTag { return s.reg.Tags() }

// LocalAddr returns the bound address when the transport knows it.
func (s *Socket) LocalAddr() netip.AddrPort {
	if la, ok := s.conn.(interface{ LocalAddr() netip.AddrPort }); ok {
		return la.LocalAddr()
	}
	return netip.AddrPort{}
}

// Err returns the fatal error that stopped the socket, or nil.
func (s *Socket) Err() error {
	if e := s.failed.Load(); e != nil {
		return e
	}
	return nil
}

// InFlight reports whether an envelope is waiting for a writable socket.
func (s *Socket) InFlight() bool { return s.active.Load() }

func (s *Socket) pendingOut() int {
	n := 0
	for _, src := range s.sources {
		n += src.pending()
	}
	return n
}

func (s *Socket) pendingIn() int {
	n := 0
	for _, src := range s.sources {
		n += src.received()
	}
	return n
}

// fail marks the socket broken. Later cycle calls return the same error
// without touching the socket again.
func (s *Socket) fail(op string, err error, peer netip.AddrPort) error {
	e := api.WrapError(api.ErrCodeFatalIO, op+" failed", fmt.Errorf("%w: %w", api.ErrSocketFailed, err)).
		WithContext("socket", s.name)
	if peer.IsValid() {
		e.WithContext("peer", peer.String())
	}
	if !s.failed.CompareAndSwap(nil, e) {
		return s.failed.Load()
	}
	s.m.Fatal.Inc()
	s.log.Error().Err(err).Str("socket", s.name).Str("op", op).Msg("socket failed")
	return e
}

func (s *Socket) report(code api.ErrorCode, msg string, err error, from netip.AddrPort, tag api.TypeTag) {
	e := api.WrapError(code, msg, err).WithContext("socket", s.name)
	if from.IsValid() {
		e.WithContext("peer", from.String())
	}
	if tag != 0 {
		e.WithContext("tag", tag.String())
	}
	s.rep.report(s.name, e)
}

func (s *Socket) close() error {
	s.releaseSlot()
	return s.conn.Close()
}
