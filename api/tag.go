// File: api/tag.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Wire-level routing identifiers and the per-type inbound contract.

package api

import (
	"math"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// TypeTag identifies a registered payload type on the wire.
// Zero is never a valid tag.
type TypeTag uint64

// TagOf derives a stable tag from a developer-chosen type name.
// The same name yields the same tag in every process and build.
func TagOf(name string) TypeTag {
	t := TypeTag(xxhash.Sum64String(name))
	if t == 0 {
		t = 1
	}
	return t
}

func (t TypeTag) String() string {
	return "0x" + strconv.FormatUint(uint64(t), 16)
}

// Token correlates one registered socket with its readiness flags.
type Token uint32

// WakeToken is reserved for the poller's own wake source.
const WakeToken Token = math.MaxUint32

// Sink is the inbound side of one registered type. Deliver decodes payload
// as that type and enqueues it for the consumer.
type Sink interface {
	Deliver(payload []byte) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(payload []byte) error

// Deliver implements Sink.
func (f SinkFunc) Deliver(payload []byte) error { return f(payload) }
