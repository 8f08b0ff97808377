// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Prometheus counters for the dispatch/receive cycle, labelled by socket.

package control

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "netevent"

// Metrics holds the node's collectors. All of them are registered on the
// registerer passed to NewMetrics.
type Metrics struct {
	sent          *prometheus.CounterVec
	received      *prometheus.CounterVec
	bytesSent     *prometheus.CounterVec
	bytesReceived *prometheus.CounterVec
	malformed     *prometheus.CounterVec
	unrouted      *prometheus.CounterVec
	encodeErrors  *prometheus.CounterVec
	wouldBlock    *prometheus.CounterVec
	fatal         *prometheus.CounterVec
	pollerWakes   prometheus.Counter
	pollerEvents  prometheus.Counter
}

func counterVec(name, help string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, []string{"socket"})
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		sent:          counterVec("datagrams_sent_total", "Datagrams written, one per peer per item."),
		received:      counterVec("datagrams_received_total", "Datagrams read, including rejected ones."),
		bytesSent:     counterVec("bytes_sent_total", "Envelope bytes written."),
		bytesReceived: counterVec("bytes_received_total", "Datagram bytes read."),
		malformed:     counterVec("malformed_envelopes_total", "Datagrams dropped as truncated, corrupt or undecodable."),
		unrouted:      counterVec("unrouted_envelopes_total", "Envelopes dropped for an unregistered type tag."),
		encodeErrors:  counterVec("encode_errors_total", "Outbound items dropped because they failed to encode."),
		wouldBlock:    counterVec("would_block_total", "Socket operations that returned would-block."),
		fatal:         counterVec("fatal_errors_total", "Fatal socket errors."),
		pollerWakes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poller_wakes_total",
			Help:      "Times the readiness poller returned from its wait.",
		}),
		pollerEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poller_events_total",
			Help:      "Readiness notifications processed by the poller.",
		}),
	}
	for _, c := range []prometheus.Collector{
		m.sent, m.received, m.bytesSent, m.bytesReceived, m.malformed,
		m.unrouted, m.encodeErrors, m.wouldBlock, m.fatal, m.pollerWakes, m.pollerEvents,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// PollerWake records one poller wake carrying n notifications.
func (m *Metrics) PollerWake(n int) {
	m.pollerWakes.Inc()
	m.pollerEvents.Add(float64(n))
}

// Socket returns the counters curried for one socket name.
func (m *Metrics) Socket(name string) *SocketMetrics {
	return &SocketMetrics{
		Sent:          m.sent.WithLabelValues(name),
		Received:      m.received.WithLabelValues(name),
		BytesSent:     m.bytesSent.WithLabelValues(name),
		BytesReceived: m.bytesReceived.WithLabelValues(name),
		Malformed:     m.malformed.WithLabelValues(name),
		Unrouted:      m.unrouted.WithLabelValues(name),
		EncodeErrors:  m.encodeErrors.WithLabelValues(name),
		WouldBlock:    m.wouldBlock.WithLabelValues(name),
		Fatal:         m.fatal.WithLabelValues(name),
	}
}

// SocketMetrics is the per-socket view of Metrics, resolved once at build
// so the cycle does no label lookups.
type SocketMetrics struct {
	Sent          prometheus.Counter
	Received      prometheus.Counter
	BytesSent     prometheus.Counter
	BytesReceived prometheus.Counter
	Malformed     prometheus.Counter
	Unrouted      prometheus.Counter
	EncodeErrors  prometheus.Counter
	WouldBlock    prometheus.Counter
	Fatal         prometheus.Counter
}
