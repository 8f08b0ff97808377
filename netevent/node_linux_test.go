//go:build linux

package netevent_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-netevent/api"
	"github.com/momentics/hioload-netevent/control"
	"github.com/momentics/hioload-netevent/netevent"
	"github.com/momentics/hioload-netevent/transport/udp"
)

type Pong struct {
	Seq int
}

var pongTag = api.TagOf("test.pong")

type pingPongNode struct {
	node *netevent.Node
	ping *netevent.Endpoint[Ping]
	pong *netevent.Endpoint[Pong]
}

func newPingPongNode(t *testing.T, conn *udp.Conn, peer *udp.Conn) pingPongNode {
	t.Helper()
	b := netevent.NewBuilder()
	sb, err := b.Attach("game", conn, udp.NewPeerSet(peer.LocalAddr()))
	require.NoError(t, err)
	ping, err := netevent.Register[Ping](sb, pingTag, nil)
	require.NoError(t, err)
	pong, err := netevent.Register[Pong](sb, pongTag, nil)
	require.NoError(t, err)
	n, err := b.Build()
	require.NoError(t, err)
	t.Cleanup(func() { _ = n.Close() })
	return pingPongNode{node: n, ping: ping, pong: pong}
}

func TestPingPongOverLoopback(t *testing.T) {
	ca, err := udp.Listen("127.0.0.1:0", nil)
	require.NoError(t, err)
	cb, err := udp.Listen("127.0.0.1:0", nil)
	require.NoError(t, err)
	a := newPingPongNode(t, ca, cb)
	b := newPingPongNode(t, cb, ca)

	const rounds = 20
	for i := 1; i <= rounds; i++ {
		require.NoError(t, a.ping.Send(Ping{Seq: i, SentAt: time.Now().UnixNano()}))
	}

	var pongs []Pong
	deadline := time.Now().Add(5 * time.Second)
	for len(pongs) < rounds && time.Now().Before(deadline) {
		require.NoError(t, a.node.Tick())
		require.NoError(t, b.node.Receive())
		for p := range b.ping.Drain() {
			require.NoError(t, b.pong.Send(Pong{Seq: p.Seq}))
		}
		require.NoError(t, b.node.Dispatch())
		pongs = append(pongs, collect(a.pong)...)
		time.Sleep(time.Millisecond)
	}

	require.Len(t, pongs, rounds)
	for i, p := range pongs {
		assert.Equal(t, i+1, p.Seq, "loopback keeps order")
	}
}

func TestFromConfigBindsSockets(t *testing.T) {
	cfg := control.Default()
	cfg.MaxDatagramsPerTick = 8
	cfg.Sockets = []control.SocketConfig{
		{Name: "one", Listen: "127.0.0.1:0"},
		{Name: "two", Listen: "127.0.0.1:0", Peers: []string{"127.0.0.1:9"}},
	}
	b := netevent.NewBuilder()
	require.NoError(t, b.FromConfig(cfg))
	sb, ok := b.SocketBuilder("two")
	require.True(t, ok)
	_, err := netevent.Register[Ping](sb, pingTag, nil)
	require.NoError(t, err)

	n, err := b.Build()
	require.NoError(t, err)
	defer n.Close()

	require.Len(t, n.Sockets(), 2)
	two := sock(t, n, "two")
	assert.Equal(t, 1, two.Peers().Len())
	assert.NotZero(t, two.LocalAddr().Port())
	require.Eventually(t, func() bool {
		_, w := two.Readiness()
		return w
	}, 2*time.Second, time.Millisecond, "epoll reports a fresh socket writable")
}
