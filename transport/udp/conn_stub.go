//go:build !linux
// +build !linux

// transport/udp/conn_stub.go
// Author: momentics <momentics@gmail.com>
//
// Stub implementation for unsupported platforms.

package udp

import (
	"fmt"
	"net/netip"

	"github.com/momentics/hioload-netevent/api"
)

// Conn is unavailable on this platform.
type Conn struct{}

// Listen returns an error for unsupported platforms.
func Listen(local string, peers []string, opts ...Option) (*Conn, error) {
	return nil, api.WrapError(api.ErrCodeSetup, "udp listen",
		fmt.Errorf("%w on this platform", api.ErrNotSupported))
}

func (c *Conn) ReadFrom(buf []byte) (int, netip.AddrPort, error) {
	return 0, netip.AddrPort{}, api.ErrNotSupported
}

func (c *Conn) WriteTo(b []byte, to netip.AddrPort) error { return api.ErrNotSupported }
func (c *Conn) Close() error                              { return nil }
func (c *Conn) RawFD() uintptr                            { return ^uintptr(0) }
func (c *Conn) LocalAddr() netip.AddrPort                 { return netip.AddrPort{} }
func (c *Conn) Peers() PeerSet                            { return PeerSet{} }
