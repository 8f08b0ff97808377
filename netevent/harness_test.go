package netevent_test

import (
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-netevent/api"
	"github.com/momentics/hioload-netevent/codec"
	"github.com/momentics/hioload-netevent/fake"
	"github.com/momentics/hioload-netevent/netevent"
	"github.com/momentics/hioload-netevent/protocol"
	"github.com/momentics/hioload-netevent/transport/udp"
)

type Ping struct {
	Seq    int
	SentAt int64
}

type Chat struct {
	From string
	Text string
}

var (
	pingTag = api.TagOf("test.ping")
	chatTag = api.TagOf("test.chat")
)

// harness wires nodes to a fake reactor and fake network so readiness is
// scripted by the test.
type harness struct {
	t       *testing.T
	reactor *fake.Reactor
	net     *fake.Network
	b       *netevent.Builder

	mu      sync.Mutex
	reports []error
}

func newHarness(t *testing.T, opts ...netevent.Option) *harness {
	t.Helper()
	h := &harness{t: t, reactor: fake.NewReactor(), net: fake.NewNetwork()}
	opts = append([]netevent.Option{
		netevent.WithReactor(h.reactor),
		netevent.WithReporter(func(err error) {
			h.mu.Lock()
			h.reports = append(h.reports, err)
			h.mu.Unlock()
		}),
	}, opts...)
	h.b = netevent.NewBuilder(opts...)
	return h
}

func addr(s string) netip.AddrPort { return netip.MustParseAddrPort(s) }

func (h *harness) socket(name, local string, peers ...string) (*netevent.SocketBuilder, *fake.PacketConn) {
	h.t.Helper()
	conn := h.net.Listen(addr(local))
	ps := make([]netip.AddrPort, 0, len(peers))
	for _, p := range peers {
		ps = append(ps, addr(p))
	}
	sb, err := h.b.Attach(name, conn, udp.NewPeerSet(ps...))
	require.NoError(h.t, err)
	return sb, conn
}

func (h *harness) build() *netevent.Node {
	h.t.Helper()
	n, err := h.b.Build()
	require.NoError(h.t, err)
	h.t.Cleanup(func() { _ = n.Close() })
	return n
}

func (h *harness) takeReports() []error {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := h.reports
	h.reports = nil
	return out
}

// ready reports readiness for a socket through the poller and waits until
// the cycle can observe it.
func (h *harness) ready(s *netevent.Socket, readable, writable bool) {
	h.t.Helper()
	h.reactor.Notify(api.Event{Token: s.Token(), Readable: readable, Writable: writable})
	require.Eventually(h.t, func() bool {
		r, w := s.Readiness()
		return r == readable && w == writable
	}, 2*time.Second, time.Millisecond)
}

func sock(t *testing.T, n *netevent.Node, name string) *netevent.Socket {
	t.Helper()
	s, ok := n.Socket(name)
	require.True(t, ok, name)
	return s
}

func envelope(t *testing.T, tag api.TypeTag, v any) []byte {
	t.Helper()
	p, err := codec.CBOR[any]{}.Marshal(v)
	require.NoError(t, err)
	raw, err := protocol.AppendEnvelope(nil, tag, p)
	require.NoError(t, err)
	return raw
}

func collect[T any](ep *netevent.Endpoint[T]) []T {
	var out []T
	for v := range ep.Drain() {
		out = append(out, v)
	}
	return out
}
