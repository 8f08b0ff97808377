// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

package udp

import (
	"fmt"
	"net"
	"net/netip"
	"slices"

	"github.com/momentics/hioload-netevent/api"
)

// ResolveAddr parses "ip:port", resolving a host name once if needed.
// IPv4-mapped IPv6 addresses are unmapped so they compare equal to the
// addresses reported on receive.
func ResolveAddr(s string) (netip.AddrPort, error) {
	if ap, err := netip.ParseAddrPort(s); err == nil {
		return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port()), nil
	}
	ua, err := net.ResolveUDPAddr("udp", s)
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf("resolve %q: %w", s, err)
	}
	ap := ua.AddrPort()
	if !ap.IsValid() {
		return netip.AddrPort{}, fmt.Errorf("resolve %q: %w", s, api.ErrInvalidArgument)
	}
	return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port()), nil
}

// PeerSet is the fixed, ordered, duplicate-free list of destinations a
// socket sends every outbound envelope to.
type PeerSet struct {
	addrs []netip.AddrPort
}

// NewPeerSet builds a peer set, dropping duplicates but keeping order.
func NewPeerSet(addrs ...netip.AddrPort) PeerSet {
	out := make([]netip.AddrPort, 0, len(addrs))
	for _, a := range addrs {
		if !slices.Contains(out, a) {
			out = append(out, a)
		}
	}
	return PeerSet{addrs: out}
}

// ParsePeers resolves every address in addrs.
func ParsePeers(addrs []string) (PeerSet, error) {
	parsed := make([]netip.AddrPort, 0, len(addrs))
	for _, s := range addrs {
		ap, err := ResolveAddr(s)
		if err != nil {
			return PeerSet{}, err
		}
		parsed = append(parsed, ap)
	}
	return NewPeerSet(parsed...), nil
}

// Len returns the number of peers.
func (p PeerSet) Len() int { return len(p.addrs) }

// At returns the i-th peer.
func (p PeerSet) At(i int) netip.AddrPort { return p.addrs[i] }

// Contains reports whether a is a peer.
func (p PeerSet) Contains(a netip.AddrPort) bool { return slices.Contains(p.addrs, a) }

// All returns a copy of the peers.
func (p PeerSet) All() []netip.AddrPort { return slices.Clone(p.addrs) }
