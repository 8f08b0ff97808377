// File: netevent/endpoint.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package netevent

import (
	"fmt"
	"iter"

	"github.com/momentics/hioload-netevent/api"
	"github.com/momentics/hioload-netevent/channel"
	"github.com/momentics/hioload-netevent/codec"
	"github.com/momentics/hioload-netevent/protocol"
)

// Endpoint is one registered payload type on one socket: an outbound
// queue the cycle sends from and an inbound queue it delivers into.
// All methods are safe from any goroutine and never block.
type Endpoint[T any] struct {
	tag   api.TypeTag
	codec codec.Codec[T]
	out   *channel.Channel[T]
	in    *channel.Channel[T]
}

func newEndpoint[T any](tag api.TypeTag, c codec.Codec[T], capacity int) *Endpoint[T] {
	if c == nil {
		c = codec.CBOR[T]{}
	}
	return &Endpoint[T]{
		tag:   tag,
		codec: c,
		out:   channel.New[T](capacity),
		in:    channel.New[T](capacity),
	}
}

// Send queues v for the next Dispatch. It fails with api.ErrChannelFull
// on a full bounded queue and api.ErrChannelClosed after Node.Close.
func (e *Endpoint[T]) Send(v T) error {
	return e.out.Send(v)
}

// Drain yields the values received so far, oldest first.
func (e *Endpoint[T]) Drain() iter.Seq[T] {
	return e.in.Drain()
}

// TryReceive pops the oldest received value.
func (e *Endpoint[T]) TryReceive() (T, bool) {
	return e.in.TryReceive()
}

// Tag returns the wire tag.
func (e *Endpoint[T]) Tag() api.TypeTag { return e.tag }

// Pending returns the number of values waiting to be sent.
func (e *Endpoint[T]) Pending() int { return e.out.Len() }

// Received returns the number of values waiting to be drained.
func (e *Endpoint[T]) Received() int { return e.in.Len() }

// deliver is the endpoint's api.Sink.
func (e *Endpoint[T]) deliver(payload []byte) error {
	v, err := e.codec.Unmarshal(payload)
	if err != nil {
		return fmt.Errorf("%w: %w", api.ErrMalformedEnvelope, err)
	}
	return e.in.Send(v)
}

// The methods below make Endpoint an outbound source of its socket.

func (e *Endpoint[T]) sourceTag() api.TypeTag { return e.tag }

func (e *Endpoint[T]) pending() int { return e.out.Len() }

// encodeNext pops one value and appends its envelope to b. ok is false
// when the queue is empty. On encode failure the value is gone.
func (e *Endpoint[T]) encodeNext(b []byte) (out []byte, ok bool, err error) {
	v, ok := e.out.TryReceive()
	if !ok {
		return b, false, nil
	}
	out, err = protocol.AppendEncoded(b, e.tag, func(dst []byte) ([]byte, error) {
		if ac, ok := e.codec.(codec.AppendCodec[T]); ok {
			return ac.AppendMarshal(dst, v)
		}
		p, err := e.codec.Marshal(v)
		if err != nil {
			return dst, err
		}
		return append(dst, p...), nil
	})
	return out, true, err
}

// discard drops up to n queued values and returns how many it dropped.
func (e *Endpoint[T]) discard(n int) int {
	dropped := 0
	for ; dropped < n; dropped++ {
		if _, ok := e.out.TryReceive(); !ok {
			break
		}
	}
	return dropped
}

func (e *Endpoint[T]) close() {
	e.out.Close()
	e.in.Close()
}

// source is the type-erased outbound side the cycle iterates.
type source interface {
	sourceTag() api.TypeTag
	pending() int
	encodeNext(b []byte) ([]byte, bool, error)
	discard(n int) int
	received() int
	close()
}

func (e *Endpoint[T]) received() int { return e.in.Len() }
