package protocol_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-netevent/api"
	"github.com/momentics/hioload-netevent/protocol"
)

func TestEnvelope_EncodeDecode(t *testing.T) {
	tag := api.TagOf("ping")
	raw, err := protocol.AppendEnvelope(nil, tag, []byte("hello"))
	require.NoError(t, err)
	require.Len(t, raw, protocol.HeaderLen+5)
	assert.Equal(t, protocol.Version, raw[0])

	env, err := protocol.Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, tag, env.Tag)
	assert.True(t, bytes.Equal([]byte("hello"), env.Payload))
}

func TestEnvelope_AppendsToPrefix(t *testing.T) {
	raw, err := protocol.AppendEnvelope([]byte("xx"), 5, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("xx"), raw[:2])
	env, err := protocol.Decode(raw[2:])
	require.NoError(t, err)
	assert.Equal(t, api.TypeTag(5), env.Tag)
	assert.Empty(t, env.Payload)
}

func TestEnvelope_RejectsOnEncode(t *testing.T) {
	_, err := protocol.AppendEnvelope(nil, 0, nil)
	assert.ErrorIs(t, err, api.ErrInvalidTag)

	_, err = protocol.AppendEnvelope(nil, 1, make([]byte, protocol.MaxPayload+1))
	assert.ErrorIs(t, err, api.ErrEncode)

	raw, err := protocol.AppendEnvelope(nil, 1, make([]byte, protocol.MaxPayload))
	require.NoError(t, err)
	assert.Len(t, raw, protocol.MaxDatagram)
}

func TestEnvelope_Malformed(t *testing.T) {
	valid, err := protocol.AppendEnvelope(nil, 9, []byte{1, 2, 3})
	require.NoError(t, err)

	cases := map[string][]byte{
		"empty":       nil,
		"short":       valid[:protocol.HeaderLen-1],
		"bad version": append([]byte{0x7f}, valid[1:]...),
		"zero tag":    {protocol.Version, 0, 0, 0, 0, 0, 0, 0, 0, 0xaa},
	}
	for name, raw := range cases {
		_, err := protocol.Decode(raw)
		assert.ErrorIs(t, err, api.ErrMalformedEnvelope, name)
	}
}

func TestAppendEncoded(t *testing.T) {
	raw, err := protocol.AppendEncoded([]byte("p"), 9, func(dst []byte) ([]byte, error) {
		return append(dst, "body"...), nil
	})
	require.NoError(t, err)
	env, err := protocol.Decode(raw[1:])
	require.NoError(t, err)
	assert.Equal(t, api.TypeTag(9), env.Tag)
	assert.Equal(t, "body", string(env.Payload))
}

func TestAppendEncoded_Failures(t *testing.T) {
	boom := errors.New("boom")
	raw, err := protocol.AppendEncoded([]byte("p"), 9, func(dst []byte) ([]byte, error) {
		return dst, boom
	})
	assert.ErrorIs(t, err, api.ErrEncode)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "p", string(raw), "prefix is restored")

	raw, err = protocol.AppendEncoded(nil, 9, func(dst []byte) ([]byte, error) {
		return append(dst, make([]byte, protocol.MaxPayload+1)...), nil
	})
	assert.ErrorIs(t, err, api.ErrEncode)
	assert.Empty(t, raw)

	_, err = protocol.AppendEncoded(nil, 0, nil)
	assert.ErrorIs(t, err, api.ErrInvalidTag)
}
