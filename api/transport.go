// File: api/transport.go
// Author: momentics <momentics@gmail.com>
//
// Defines the datagram socket abstraction consumed by the
// dispatch/receive cycle.

package api

import "net/netip"

// PacketConn abstracts a non-blocking datagram socket.
// Implementations never buffer and never block.
type PacketConn interface {
	// ReadFrom reads one datagram into buf. Returns ErrWouldBlock when
	// nothing is queued. A datagram larger than buf is returned cut to
	// len(buf) together with ErrTruncated.
	ReadFrom(buf []byte) (n int, from netip.AddrPort, err error)

	// WriteTo sends b as one datagram. Returns ErrWouldBlock when the
	// socket send buffer is full.
	WriteTo(b []byte, to netip.AddrPort) error

	// Close releases the socket.
	Close() error

	// RawFD returns the underlying OS-level file descriptor.
	RawFD() uintptr
}
