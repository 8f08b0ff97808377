// File: codec/codec.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package codec defines the payload serialization contract and its default
// CBOR implementation.
package codec

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Codec serializes values of one registered type.
type Codec[T any] interface {
	Marshal(v T) ([]byte, error)
	Unmarshal(data []byte) (T, error)
}

// AppendCodec is implemented by codecs that can append into a caller
// buffer, avoiding one allocation per dispatched item.
type AppendCodec[T any] interface {
	Codec[T]
	AppendMarshal(b []byte, v T) ([]byte, error)
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	// Core deterministic encoding: equal values give equal bytes.
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		// Deterministic validation of encoding options, should never fail.
		panic(err)
	}
	decMode, err = cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyEnforcedAPF,
		MaxNestedLevels:   32,
		ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
	}.DecMode()
	if err != nil {
		panic(err)
	}
}

// CBOR is the default codec. The zero value is ready to use.
type CBOR[T any] struct{}

// Marshal implements Codec.
func (CBOR[T]) Marshal(v T) ([]byte, error) {
	return encMode.Marshal(v)
}

// AppendMarshal implements AppendCodec.
func (c CBOR[T]) AppendMarshal(b []byte, v T) ([]byte, error) {
	data, err := encMode.Marshal(v)
	if err != nil {
		return b, err
	}
	return append(b, data...), nil
}

// Unmarshal implements Codec. Unknown struct fields are rejected, so a
// payload registered under the wrong type fails instead of decoding to a
// half-filled value.
func (CBOR[T]) Unmarshal(data []byte) (T, error) {
	var v T
	if err := decMode.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("cbor decode %T: %w", v, err)
	}
	return v, nil
}

// Func builds a Codec from two functions, for hand-written wire formats.
type Func[T any] struct {
	MarshalFunc   func(T) ([]byte, error)
	UnmarshalFunc func([]byte) (T, error)
}

// Marshal implements Codec.
func (f Func[T]) Marshal(v T) ([]byte, error) { return f.MarshalFunc(v) }

// Unmarshal implements Codec.
func (f Func[T]) Unmarshal(data []byte) (T, error) { return f.UnmarshalFunc(data) }
