// File: netevent/builder.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package netevent

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/momentics/hioload-netevent/api"
	"github.com/momentics/hioload-netevent/codec"
	"github.com/momentics/hioload-netevent/control"
	"github.com/momentics/hioload-netevent/poller"
	"github.com/momentics/hioload-netevent/pool"
	"github.com/momentics/hioload-netevent/reactor"
	"github.com/momentics/hioload-netevent/readiness"
	"github.com/momentics/hioload-netevent/registry"
	"github.com/momentics/hioload-netevent/transport/udp"
)

// Builder collects sockets and endpoints before the first tick. It is
// single-use: after Build or Close every method fails with
// api.ErrBuilderUsed.
type Builder struct {
	cfg     settings
	store   *readiness.Store
	reactor api.Reactor
	sockets []*SocketBuilder
	byName  map[string]*SocketBuilder
	used    bool
	err     error
}

// SocketBuilder is a socket under construction. Only a Builder creates
// one, so endpoints cannot exist before the readiness store and the
// socket's registry do.
type SocketBuilder struct {
	b       *Builder
	name    string
	conn    api.PacketConn
	peers   udp.PeerSet
	token   api.Token
	flags   *readiness.Flags
	reg     *registry.Registry
	sources []source
}

// Name returns the socket name.
func (sb *SocketBuilder) Name() string { return sb.name }

// NewBuilder starts a node description.
func NewBuilder(opts ...Option) *Builder {
	cfg := defaultSettings()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Builder{
		cfg:    cfg,
		store:  readiness.NewStore(),
		byName: make(map[string]*SocketBuilder),
	}
}

// FromConfig applies the tuning in cfg and binds every configured socket.
// Endpoints still have to be registered on the sockets it creates; look
// them up with SocketBuilder.
func (b *Builder) FromConfig(cfg control.Config) error {
	if err := b.usable(); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	b.cfg.recvBufferSize = cfg.RecvBufferSize
	b.cfg.channelCapacity = cfg.ChannelCapacity
	b.cfg.maxPerTick = cfg.MaxDatagramsPerTick
	b.cfg.eventCapacity = cfg.EventCapacity
	b.cfg.pollerCPU = cfg.PollerCPU
	for _, sc := range cfg.Sockets {
		if _, err := b.Socket(sc.Name, sc.Listen, sc.Peers); err != nil {
			return err
		}
	}
	return nil
}

// Socket binds a UDP socket on local that sends to peers.
// A failure here aborts the builder: Build will return it.
func (b *Builder) Socket(name, local string, peers []string) (*SocketBuilder, error) {
	if err := b.usable(); err != nil {
		return nil, err
	}
	if err := b.checkName(name); err != nil {
		return nil, err
	}
	var opts []udp.Option
	if n := b.cfg.socketBuffers; n > 0 {
		opts = append(opts, udp.WithSocketBuffers(n, n))
	}
	conn, err := udp.Listen(local, peers, opts...)
	if err != nil {
		return nil, b.abort(err)
	}
	return b.attach(name, conn, conn.Peers())
}

// Attach adds an already open connection, such as a fake in tests. The
// node owns conn from here on and closes it.
func (b *Builder) Attach(name string, conn api.PacketConn, peers udp.PeerSet) (*SocketBuilder, error) {
	if err := b.usable(); err != nil {
		return nil, err
	}
	if err := b.checkName(name); err != nil {
		return nil, err
	}
	return b.attach(name, conn, peers)
}

func (b *Builder) attach(name string, conn api.PacketConn, peers udp.PeerSet) (*SocketBuilder, error) {
	if err := b.ensureReactor(); err != nil {
		_ = conn.Close()
		return nil, b.abort(err)
	}
	tok, flags, err := b.store.Allocate()
	if err != nil {
		_ = conn.Close()
		return nil, b.abort(err)
	}
	if err := b.reactor.Register(conn.RawFD(), tok); err != nil {
		_ = conn.Close()
		return nil, b.abort(api.WrapError(api.ErrCodeSetup, "register socket", err).
			WithContext("socket", name))
	}
	sb := &SocketBuilder{
		b:     b,
		name:  name,
		conn:  conn,
		peers: peers,
		token: tok,
		flags: flags,
		reg:   registry.New(),
	}
	b.sockets = append(b.sockets, sb)
	b.byName[name] = sb
	b.cfg.log.Debug().Str("socket", name).Uint32("token", uint32(tok)).
		Int("peers", peers.Len()).Msg("socket registered")
	return sb, nil
}

// SocketBuilder returns the socket added under name.
func (b *Builder) SocketBuilder(name string) (*SocketBuilder, bool) {
	sb, ok := b.byName[name]
	return sb, ok
}

// Register adds an endpoint for T under tag on sb. A nil codec selects
// CBOR. The same tag may be used on different sockets but only once per
// socket. A rejected tag aborts the builder like a failed bind.
func Register[T any](sb *SocketBuilder, tag api.TypeTag, c codec.Codec[T], opts ...EndpointOption) (*Endpoint[T], error) {
	if sb == nil {
		return nil, api.NewError(api.ErrCodeInvalidArgument, "nil socket builder")
	}
	if err := sb.b.usable(); err != nil {
		return nil, err
	}
	es := endpointSettings{capacity: sb.b.cfg.channelCapacity}
	for _, opt := range opts {
		opt(&es)
	}
	ep := newEndpoint(tag, c, es.capacity)
	if err := sb.reg.Register(tag, api.SinkFunc(ep.deliver)); err != nil {
		return nil, sb.b.abort(api.WrapError(api.ErrCodeSetup, "register endpoint", err).
			WithContext("socket", sb.name))
	}
	sb.sources = append(sb.sources, ep)
	return ep, nil
}

// Build freezes every registry, seals the readiness store and starts the
// poller. On error everything the builder opened is released.
func (b *Builder) Build() (*Node, error) {
	if err := b.usable(); err != nil {
		return nil, err
	}
	b.used = true
	if b.err != nil {
		return nil, errors.Join(b.err, b.release())
	}
	if err := b.ensureReactor(); err != nil {
		return nil, errors.Join(err, b.release())
	}
	metrics := b.cfg.metrics
	if metrics == nil {
		var err error
		if metrics, err = control.NewMetrics(prometheus.NewRegistry()); err != nil {
			return nil, errors.Join(api.WrapError(api.ErrCodeSetup, "metrics", err), b.release())
		}
	}
	probes := b.cfg.probes
	if probes == nil {
		probes = control.NewDebugProbes()
	}

	b.store.Seal()
	rep := newReporter(&b.cfg)
	buffers := pool.NewBytePool(1500)
	n := &Node{
		reactor: b.reactor,
		byName:  make(map[string]*Socket, len(b.sockets)),
		probes:  probes,
		log:     b.cfg.log,
	}
	for _, sb := range b.sockets {
		sb.reg.Freeze()
		s := &Socket{
			name:       sb.name,
			token:      sb.token,
			conn:       sb.conn,
			peers:      sb.peers,
			flags:      sb.flags,
			reg:        sb.reg,
			sources:    sb.sources,
			recvBuf:    make([]byte, b.cfg.recvBufferSize),
			maxPerTick: b.cfg.maxPerTick,
			buffers:    buffers,
			rep:        rep,
			m:          metrics.Socket(sb.name),
			log:        b.cfg.log,
		}
		n.sockets = append(n.sockets, s)
		n.byName[s.name] = s
	}

	n.poller = poller.New(b.reactor, b.store,
		poller.WithLogger(b.cfg.log),
		poller.WithEventCapacity(b.cfg.eventCapacity),
		poller.WithWakeHook(metrics.PollerWake),
		poller.WithCPU(b.cfg.pollerCPU),
	)
	ctx, cancel := context.WithCancel(context.Background())
	n.cancel = cancel
	go func() { _ = n.poller.Run(ctx) }()

	n.registerProbes()
	b.cfg.log.Info().Int("sockets", len(n.sockets)).Msg("node started")
	return n, nil
}

// Close releases everything opened so far without building a node.
func (b *Builder) Close() error {
	if b.used {
		return nil
	}
	b.used = true
	return b.release()
}

func (b *Builder) release() error {
	var errs []error
	for _, sb := range b.sockets {
		errs = append(errs, sb.conn.Close())
	}
	if b.reactor != nil {
		errs = append(errs, b.reactor.Close())
	}
	return errors.Join(errs...)
}

func (b *Builder) ensureReactor() error {
	if b.reactor != nil {
		return nil
	}
	if b.cfg.reactor != nil {
		b.reactor = b.cfg.reactor
		return nil
	}
	r, err := reactor.New()
	if err != nil {
		return api.WrapError(api.ErrCodeSetup, "create reactor", err)
	}
	b.reactor = r
	return nil
}

func (b *Builder) usable() error {
	if b.used {
		return api.ErrBuilderUsed
	}
	return nil
}

func (b *Builder) checkName(name string) error {
	if name == "" {
		return api.WrapError(api.ErrCodeInvalidArgument, "socket name", api.ErrInvalidArgument)
	}
	if _, dup := b.byName[name]; dup {
		return api.WrapError(api.ErrCodeInvalidArgument, "socket name",
			fmt.Errorf("%w: %q already used", api.ErrInvalidArgument, name))
	}
	return nil
}

// abort records the first setup failure; Build returns it.
func (b *Builder) abort(err error) error {
	if b.err == nil {
		b.err = err
	}
	b.cfg.log.Error().Err(err).Msg("node setup failed")
	return err
}
