// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package udp implements the socket handle: one bound, non-blocking
// datagram socket plus the fixed set of peers it sends to. It performs no
// buffering; queuing is the job of the typed channels.
package udp

// Option customizes Listen.
type Option func(*options)

type options struct {
	readBuffer  int
	writeBuffer int
}

// WithSocketBuffers sets SO_RCVBUF and SO_SNDBUF. Zero keeps the OS default.
func WithSocketBuffers(read, write int) Option {
	return func(o *options) {
		o.readBuffer = read
		o.writeBuffer = write
	}
}
