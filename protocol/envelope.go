// File: protocol/envelope.go
// Package protocol implements the datagram envelope codec.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// One envelope fills exactly one datagram:
//
//	version  byte     // Version
//	tag      [8]byte  // api.TypeTag, big-endian
//	payload  [...]byte
//
// There is no fragmentation: header plus payload must fit MaxDatagram.

package protocol

import (
	"encoding/binary"
	"fmt"

	"github.com/momentics/hioload-netevent/api"
)

const (
	// Version is the only envelope layout understood by this package.
	Version byte = 0x01

	// HeaderLen is the fixed envelope header size.
	HeaderLen = 1 + 8

	// MaxDatagram is the largest UDP payload over IPv4.
	MaxDatagram = 65507

	// MaxPayload is the largest payload that fits one envelope.
	MaxPayload = MaxDatagram - HeaderLen
)

// Envelope pairs a type tag with its encoded payload.
type Envelope struct {
	Tag     api.TypeTag
	Payload []byte
}

// AppendEnvelope appends the wire form of (tag, payload) to b.
func AppendEnvelope(b []byte, tag api.TypeTag, payload []byte) ([]byte, error) {
	if tag == 0 {
		return b, api.ErrInvalidTag
	}
	if len(payload) > MaxPayload {
		return b, fmt.Errorf("%w: payload %d bytes exceeds %d", api.ErrEncode, len(payload), MaxPayload)
	}
	b = append(b, Version)
	b = binary.BigEndian.AppendUint64(b, uint64(tag))
	return append(b, payload...), nil
}

// AppendEncoded appends an envelope whose payload enc writes directly
// after the header. On failure b is returned with its original length and
// the error wraps api.ErrEncode.
func AppendEncoded(b []byte, tag api.TypeTag, enc func(dst []byte) ([]byte, error)) ([]byte, error) {
	if tag == 0 {
		return b, api.ErrInvalidTag
	}
	start := len(b)
	b = append(b, Version)
	b = binary.BigEndian.AppendUint64(b, uint64(tag))
	out, err := enc(b)
	if err != nil {
		return b[:start], fmt.Errorf("%w: %w", api.ErrEncode, err)
	}
	if n := len(out) - start - HeaderLen; n > MaxPayload {
		return out[:start], fmt.Errorf("%w: payload %d bytes exceeds %d", api.ErrEncode, n, MaxPayload)
	}
	return out, nil
}

// Decode parses one datagram. The returned payload aliases raw.
// Every failure wraps api.ErrMalformedEnvelope.
func Decode(raw []byte) (Envelope, error) {
	if len(raw) < HeaderLen {
		return Envelope{}, fmt.Errorf("%w: %d bytes, header needs %d", api.ErrMalformedEnvelope, len(raw), HeaderLen)
	}
	if raw[0] != Version {
		return Envelope{}, fmt.Errorf("%w: unknown version 0x%02x", api.ErrMalformedEnvelope, raw[0])
	}
	tag := api.TypeTag(binary.BigEndian.Uint64(raw[1:HeaderLen]))
	if tag == 0 {
		return Envelope{}, fmt.Errorf("%w: zero tag", api.ErrMalformedEnvelope)
	}
	return Envelope{Tag: tag, Payload: raw[HeaderLen:]}, nil
}
