// Package fake
// Author: momentics <momentics@gmail.com>
//
// Fake implementations for testing and development.
// Provides predictable, controllable behavior for the socket and reactor
// contracts consumed by the dispatch/receive cycle.

package fake

import (
	"net/netip"
	"sync"
	"sync/atomic"

	"github.com/momentics/hioload-netevent/api"
)

var nextFD atomic.Uintptr

// Datagram is one packet seen by a fake socket.
type Datagram struct {
	Data []byte
	Addr netip.AddrPort // source on receive, destination on send
}

// PacketConn is a fake implementation of api.PacketConn. It never blocks:
// an empty inbound queue reads as api.ErrWouldBlock and writes can be
// scripted to would-block after a number of successful sends.
type PacketConn struct {
	mu       sync.Mutex
	local    netip.AddrPort
	net      *Network
	inbound  []Datagram
	sent     []Datagram
	budget   int // remaining writes before would-block; <0 unlimited
	readErr  error
	writeErr error
	closed   bool
	fd       uintptr
}

// NewPacketConn creates an unconnected fake socket bound to local.
func NewPacketConn(local netip.AddrPort) *PacketConn {
	return &PacketConn{
		local:  local,
		budget: -1,
		fd:     1000 + nextFD.Add(1),
	}
}

// ReadFrom implements api.PacketConn.
func (c *PacketConn) ReadFrom(buf []byte) (int, netip.AddrPort, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, netip.AddrPort{}, api.ErrTransportClosed
	}
	if c.readErr != nil {
		return 0, netip.AddrPort{}, c.readErr
	}
	if len(c.inbound) == 0 {
		return 0, netip.AddrPort{}, api.ErrWouldBlock
	}
	d := c.inbound[0]
	c.inbound[0] = Datagram{}
	c.inbound = c.inbound[1:]
	n := copy(buf, d.Data)
	if n < len(d.Data) {
		return n, d.Addr, api.ErrTruncated
	}
	return n, d.Addr, nil
}

// WriteTo implements api.PacketConn.
func (c *PacketConn) WriteTo(b []byte, to netip.AddrPort) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return api.ErrTransportClosed
	}
	if c.writeErr != nil {
		err := c.writeErr
		c.mu.Unlock()
		return err
	}
	if c.budget == 0 {
		c.mu.Unlock()
		return api.ErrWouldBlock
	}
	if c.budget > 0 {
		c.budget--
	}
	data := append([]byte(nil), b...)
	c.sent = append(c.sent, Datagram{Data: data, Addr: to})
	n := c.net
	c.mu.Unlock()

	if n != nil {
		n.deliver(c.local, to, data)
	}
	return nil
}

// Close implements api.PacketConn.
func (c *PacketConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// RawFD implements api.PacketConn with a unique fake descriptor.
func (c *PacketConn) RawFD() uintptr { return c.fd }

// LocalAddr returns the bound address.
func (c *PacketConn) LocalAddr() netip.AddrPort { return c.local }

// Inject queues a datagram for ReadFrom.
func (c *PacketConn) Inject(data []byte, from netip.AddrPort) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inbound = append(c.inbound, Datagram{Data: append([]byte(nil), data...), Addr: from})
}

// Pending returns the number of datagrams waiting to be read.
func (c *PacketConn) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.inbound)
}

// Sent returns a copy of all datagrams written so far.
func (c *PacketConn) Sent() []Datagram {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Datagram(nil), c.sent...)
}

// WouldBlockAfter lets n more writes succeed, then every write returns
// api.ErrWouldBlock until Unblock. A negative n removes the limit.
func (c *PacketConn) WouldBlockAfter(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.budget = n
}

// Unblock removes any write limit.
func (c *PacketConn) Unblock() { c.WouldBlockAfter(-1) }

// FailReads makes every ReadFrom return err; nil clears it.
func (c *PacketConn) FailReads(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readErr = err
}

// FailWrites makes every WriteTo return err; nil clears it.
func (c *PacketConn) FailWrites(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeErr = err
}

// Network connects fake sockets by address. Writes to an address with no
// listener are silently dropped, as with UDP.
type Network struct {
	mu    sync.Mutex
	conns map[netip.AddrPort]*PacketConn
}

// NewNetwork creates an empty fake network.
func NewNetwork() *Network {
	return &Network{conns: make(map[netip.AddrPort]*PacketConn)}
}

// Listen creates a fake socket attached to the network at addr.
func (n *Network) Listen(addr netip.AddrPort) *PacketConn {
	c := NewPacketConn(addr)
	c.net = n
	n.mu.Lock()
	n.conns[addr] = c
	n.mu.Unlock()
	return c
}

func (n *Network) deliver(from, to netip.AddrPort, data []byte) {
	n.mu.Lock()
	dst := n.conns[to]
	n.mu.Unlock()
	if dst != nil {
		dst.Inject(data, from)
	}
}
