//go:build linux
// +build linux

// transport/udp/conn_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Linux non-blocking datagram socket over raw syscalls, so that EAGAIN
// surfaces to the caller instead of parking the goroutine in the runtime
// netpoller.

package udp

import (
	"errors"
	"fmt"
	"net/netip"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-netevent/api"
)

var _ api.PacketConn = (*Conn)(nil)

// Conn owns one bound, non-blocking UDP socket and its peer set.
type Conn struct {
	fd     int
	family int
	local  netip.AddrPort
	peers  PeerSet
	sas    map[netip.AddrPort]unix.Sockaddr
	closed atomic.Bool
}

// Listen binds a non-blocking UDP socket to local and records peers.
// Any failure is a setup error and leaves nothing open.
func Listen(local string, peers []string, opts ...Option) (*Conn, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	laddr, err := ResolveAddr(local)
	if err != nil {
		return nil, setupErr("parse local address", err, local)
	}
	ps, err := ParsePeers(peers)
	if err != nil {
		return nil, setupErr("parse peers", err, local)
	}

	family := unix.AF_INET
	if laddr.Addr().Is6() {
		family = unix.AF_INET6
	}
	sas := make(map[netip.AddrPort]unix.Sockaddr, ps.Len())
	for _, p := range ps.All() {
		sa, err := toSockaddr(family, p)
		if err != nil {
			return nil, setupErr("peer address", err, p.String())
		}
		sas[p] = sa
	}
	lsa, err := toSockaddr(family, laddr)
	if err != nil {
		return nil, setupErr("local address", err, local)
	}

	fd, err := unix.Socket(family, unix.SOCK_DGRAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.IPPROTO_UDP)
	if err != nil {
		return nil, setupErr("socket create", err, local)
	}
	if o.readBuffer > 0 {
		_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_RCVBUF, o.readBuffer)
	}
	if o.writeBuffer > 0 {
		_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_SNDBUF, o.writeBuffer)
	}
	if err := unix.Bind(fd, lsa); err != nil {
		_ = unix.Close(fd)
		return nil, setupErr("bind", err, local)
	}
	bound, err := unix.Getsockname(fd)
	if err != nil {
		_ = unix.Close(fd)
		return nil, setupErr("getsockname", err, local)
	}
	return &Conn{
		fd:     fd,
		family: family,
		local:  fromSockaddr(bound),
		peers:  ps,
		sas:    sas,
	}, nil
}

// ReadFrom implements api.PacketConn.
func (c *Conn) ReadFrom(buf []byte) (int, netip.AddrPort, error) {
	if c.closed.Load() {
		return 0, netip.AddrPort{}, api.ErrTransportClosed
	}
	// MSG_TRUNC makes the kernel report the full datagram length.
	n, from, err := unix.Recvfrom(c.fd, buf, unix.MSG_TRUNC)
	if err != nil {
		if isWouldBlock(err) {
			return 0, netip.AddrPort{}, api.ErrWouldBlock
		}
		return 0, netip.AddrPort{}, fmt.Errorf("recvfrom: %w", err)
	}
	src := fromSockaddr(from)
	if n > len(buf) {
		return len(buf), src, fmt.Errorf("%w: %d byte datagram, buffer %d", api.ErrTruncated, n, len(buf))
	}
	return n, src, nil
}

// WriteTo implements api.PacketConn.
func (c *Conn) WriteTo(b []byte, to netip.AddrPort) error {
	if c.closed.Load() {
		return api.ErrTransportClosed
	}
	sa, ok := c.sas[to]
	if !ok {
		var err error
		if sa, err = toSockaddr(c.family, to); err != nil {
			return err
		}
	}
	if err := unix.Sendto(c.fd, b, 0, sa); err != nil {
		if isWouldBlock(err) {
			return api.ErrWouldBlock
		}
		return fmt.Errorf("sendto %s: %w", to, err)
	}
	return nil
}

// Close releases the socket. It is idempotent.
func (c *Conn) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	return unix.Close(c.fd)
}

// RawFD implements api.PacketConn.
func (c *Conn) RawFD() uintptr { return uintptr(c.fd) }

// LocalAddr returns the bound address, with the kernel-chosen port if
// the configured port was zero.
func (c *Conn) LocalAddr() netip.AddrPort { return c.local }

// Peers returns the destination set.
func (c *Conn) Peers() PeerSet { return c.peers }

// isWouldBlock reports errors that mean "try again next tick". ENOBUFS is
// a transiently full device queue on Linux, not a broken socket.
func isWouldBlock(err error) bool {
	return errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK) ||
		errors.Is(err, unix.EINTR) || errors.Is(err, unix.ENOBUFS)
}

func toSockaddr(family int, ap netip.AddrPort) (unix.Sockaddr, error) {
	addr := ap.Addr()
	switch family {
	case unix.AF_INET:
		if !addr.Unmap().Is4() {
			return nil, fmt.Errorf("%w: %s is not IPv4", api.ErrInvalidArgument, ap)
		}
		return &unix.SockaddrInet4{Port: int(ap.Port()), Addr: addr.Unmap().As4()}, nil
	default:
		return &unix.SockaddrInet6{Port: int(ap.Port()), Addr: addr.As16()}, nil
	}
}

func fromSockaddr(sa unix.Sockaddr) netip.AddrPort {
	switch sa := sa.(type) {
	case *unix.SockaddrInet4:
		return netip.AddrPortFrom(netip.AddrFrom4(sa.Addr), uint16(sa.Port))
	case *unix.SockaddrInet6:
		return netip.AddrPortFrom(netip.AddrFrom16(sa.Addr).Unmap(), uint16(sa.Port))
	}
	return netip.AddrPort{}
}

func setupErr(msg string, err error, addr string) error {
	return api.WrapError(api.ErrCodeSetup, msg, err).WithContext("addr", addr)
}
