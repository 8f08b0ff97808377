//go:build linux

package udp_test

import (
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-netevent/api"
	"github.com/momentics/hioload-netevent/transport/udp"
)

func listen(t *testing.T, peers ...string) *udp.Conn {
	t.Helper()
	c, err := udp.Listen("127.0.0.1:0", peers)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// readEventually polls a non-blocking socket; the test goroutine stands in
// for a tick loop.
func readEventually(t *testing.T, c *udp.Conn, buf []byte) (int, netip.AddrPort, error) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		n, from, err := c.ReadFrom(buf)
		if err != api.ErrWouldBlock || time.Now().After(deadline) {
			return n, from, err
		}
		time.Sleep(time.Millisecond)
	}
}

func TestConn_SendReceive(t *testing.T) {
	rx := listen(t)
	tx := listen(t, rx.LocalAddr().String())
	require.NotZero(t, rx.LocalAddr().Port())
	require.Equal(t, 1, tx.Peers().Len())

	require.NoError(t, tx.WriteTo([]byte("hello"), tx.Peers().At(0)))

	buf := make([]byte, 64)
	n, from, err := readEventually(t, rx, buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf[:n]))
	assert.Equal(t, tx.LocalAddr(), from)
}

func TestConn_EmptyReadWouldBlock(t *testing.T) {
	c := listen(t)
	_, _, err := c.ReadFrom(make([]byte, 16))
	assert.ErrorIs(t, err, api.ErrWouldBlock)
}

func TestConn_TruncatedDatagram(t *testing.T) {
	rx := listen(t)
	tx := listen(t)
	require.NoError(t, tx.WriteTo(make([]byte, 100), rx.LocalAddr()))

	buf := make([]byte, 10)
	n, _, err := readEventually(t, rx, buf)
	assert.ErrorIs(t, err, api.ErrTruncated)
	assert.Equal(t, 10, n)

	// the oversized datagram is consumed, not left behind
	_, _, err = rx.ReadFrom(buf)
	assert.ErrorIs(t, err, api.ErrWouldBlock)
}

func TestConn_SetupFailures(t *testing.T) {
	_, err := udp.Listen("not-an-address", nil)
	require.Error(t, err)
	assert.Equal(t, api.ErrCodeSetup, api.CodeOf(err))

	_, err = udp.Listen("127.0.0.1:0", []string{"[::1]:9000"})
	require.Error(t, err, "IPv6 peer on an IPv4 socket")
	assert.Equal(t, api.ErrCodeSetup, api.CodeOf(err))

	c := listen(t)
	_, err = udp.Listen(c.LocalAddr().String(), nil)
	require.Error(t, err, "address in use")
	assert.True(t, api.IsFatal(err))
}

func TestConn_Closed(t *testing.T) {
	c, err := udp.Listen("127.0.0.1:0", nil)
	require.NoError(t, err)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.ErrorIs(t, c.WriteTo([]byte("x"), netip.MustParseAddrPort("127.0.0.1:9")), api.ErrTransportClosed)
}
