package main

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/momentics/hioload-netevent/api"
	"github.com/momentics/hioload-netevent/netevent"
)

// Ping is sent every interval.
type Ping struct {
	Seq    uint64 `cbor:"1,keyasint"`
	From   string `cbor:"2,keyasint"`
	SentAt int64  `cbor:"3,keyasint"`
}

// Pong answers a Ping, echoing its send time.
type Pong struct {
	Seq    uint64 `cbor:"1,keyasint"`
	From   string `cbor:"2,keyasint"`
	SentAt int64  `cbor:"3,keyasint"`
}

var (
	pingTag = api.TagOf("pingpong.ping")
	pongTag = api.TagOf("pingpong.pong")
)

// player is the game logic bound to one socket.
type player struct {
	name     string
	socket   string
	ping     *netevent.Endpoint[Ping]
	pong     *netevent.Endpoint[Pong]
	interval time.Duration
	last     time.Time
	seq      uint64
	log      zerolog.Logger
}

func newPlayer(sb *netevent.SocketBuilder, name string, interval time.Duration, log zerolog.Logger) (*player, error) {
	ping, err := netevent.Register[Ping](sb, pingTag, nil)
	if err != nil {
		return nil, err
	}
	pong, err := netevent.Register[Pong](sb, pongTag, nil)
	if err != nil {
		return nil, err
	}
	return &player{
		name:     name,
		socket:   sb.Name(),
		ping:     ping,
		pong:     pong,
		interval: interval,
		log:      log.With().Str("socket", sb.Name()).Logger(),
	}, nil
}

// answer runs after Receive: reply to pings, print pongs.
func (p *player) answer() error {
	for in := range p.ping.Drain() {
		p.log.Info().Str("from", in.From).Uint64("seq", in.Seq).Msg("ping")
		if err := p.pong.Send(Pong{Seq: in.Seq, From: p.name, SentAt: in.SentAt}); err != nil {
			return err
		}
	}
	for in := range p.pong.Drain() {
		rtt := time.Since(time.Unix(0, in.SentAt))
		p.log.Info().Str("from", in.From).Uint64("seq", in.Seq).Dur("rtt", rtt).Msg("pong")
	}
	return nil
}

// serve runs before Dispatch: queue a ping when the interval is up.
func (p *player) serve() error {
	now := time.Now()
	if now.Sub(p.last) < p.interval {
		return nil
	}
	p.last = now
	p.seq++
	return p.ping.Send(Ping{Seq: p.seq, From: p.name, SentAt: now.UnixNano()})
}
