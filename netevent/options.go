// File: netevent/options.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package netevent

import (
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/momentics/hioload-netevent/api"
	"github.com/momentics/hioload-netevent/control"
	"github.com/momentics/hioload-netevent/poller"
)

// Reporter receives every non-fatal problem the cycle drops a datagram or
// item for. It runs on the tick goroutine and must not block.
type Reporter func(err error)

// Default tuning, matching control.Default.
const (
	DefaultRecvBufferSize = control.DefaultRecvBufferSize
	DefaultReportRate     = rate.Limit(10)
	DefaultReportBurst    = 20
)

// Option customizes a Builder.
type Option func(*settings)

type settings struct {
	log             zerolog.Logger
	reporter        Reporter
	reportRate      rate.Limit
	reportBurst     int
	metrics         *control.Metrics
	probes          *control.DebugProbes
	reactor         api.Reactor
	recvBufferSize  int
	channelCapacity int
	maxPerTick      int
	eventCapacity   int
	socketBuffers   int
	pollerCPU       int
}

func defaultSettings() settings {
	return settings{
		log:            zerolog.Nop(),
		reportRate:     DefaultReportRate,
		reportBurst:    DefaultReportBurst,
		recvBufferSize: DefaultRecvBufferSize,
		eventCapacity:  poller.DefaultEventCapacity,
		pollerCPU:      -1,
	}
}

// WithLogger sets the logger used by the node and its poller.
func WithLogger(l zerolog.Logger) Option {
	return func(s *settings) { s.log = l }
}

// WithReporter sets the callback for dropped datagrams and items.
func WithReporter(r Reporter) Option {
	return func(s *settings) { s.reporter = r }
}

// WithReportRate limits how often reports are logged. The Reporter
// callback itself is not rate limited.
func WithReportRate(limit rate.Limit, burst int) Option {
	return func(s *settings) {
		s.reportRate = limit
		s.reportBurst = burst
	}
}

// WithMetrics records cycle counters on m. Without it the counters go to
// a private registry nobody scrapes.
func WithMetrics(m *control.Metrics) Option {
	return func(s *settings) { s.metrics = m }
}

// WithProbes registers the node's debug probes on dp.
func WithProbes(dp *control.DebugProbes) Option {
	return func(s *settings) { s.probes = dp }
}

// WithReactor replaces the OS readiness backend, mainly for tests.
// The node takes ownership and closes it.
func WithReactor(r api.Reactor) Option {
	return func(s *settings) { s.reactor = r }
}

// WithRecvBufferSize sets the per-socket receive buffer. Datagrams larger
// than n are reported as truncated.
func WithRecvBufferSize(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.recvBufferSize = n
		}
	}
}

// WithChannelCapacity sets the default endpoint queue capacity.
// Zero means unbounded.
func WithChannelCapacity(n int) Option {
	return func(s *settings) {
		if n >= 0 {
			s.channelCapacity = n
		}
	}
}

// WithMaxDatagramsPerTick caps how many datagrams one Receive reads from
// a socket. Zero means no cap.
func WithMaxDatagramsPerTick(n int) Option {
	return func(s *settings) {
		if n >= 0 {
			s.maxPerTick = n
		}
	}
}

// WithEventCapacity sets the poller's notification batch size.
func WithEventCapacity(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.eventCapacity = n
		}
	}
}

// WithSocketBuffers sets SO_RCVBUF and SO_SNDBUF on sockets the builder
// binds itself.
func WithSocketBuffers(n int) Option {
	return func(s *settings) { s.socketBuffers = n }
}

// WithPollerCPU pins the poller goroutine's thread to cpu. Negative
// disables pinning.
func WithPollerCPU(cpu int) Option {
	return func(s *settings) { s.pollerCPU = cpu }
}

// EndpointOption customizes one Register call.
type EndpointOption func(*endpointSettings)

type endpointSettings struct {
	capacity int
}

// WithQueueCapacity overrides the builder's channel capacity for both
// queues of one endpoint. Zero means unbounded.
func WithQueueCapacity(n int) EndpointOption {
	return func(e *endpointSettings) {
		if n >= 0 {
			e.capacity = n
		}
	}
}
