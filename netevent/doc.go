// Package netevent
// Author: momentics <momentics@gmail.com>
//
// Typed event streams multiplexed over non-blocking UDP sockets.
//
// A Builder binds sockets and registers one Endpoint per payload type on
// each of them. Build freezes that layout and starts the background
// readiness poller. From then on the host calls Node.Receive and
// Node.Dispatch once per tick; neither call ever blocks. Inbound
// datagrams are decoded and queued on the endpoint registered for their
// type tag. Queued outbound items are encoded and sent to every peer of
// the socket.
//
// Would-block is never an error here: unsent work stays queued and the
// next tick resumes where this one stopped. Malformed or unroutable
// datagrams are reported and dropped. Only a broken socket or a dead
// poller is returned as an error.
package netevent
