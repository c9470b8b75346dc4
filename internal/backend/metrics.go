package backend

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/networknext/relay/internal/packet"
	"github.com/networknext/relay/internal/session"
)

// Metrics mirrors the relay's throughput and session-table counters as
// Prometheus metrics, scraped independently of the backend stats cycle.
type Metrics struct {
	recorder *packet.ThroughputRecorder
	sessions *session.Table

	packetsDesc  *prometheus.Desc
	bytesDesc    *prometheus.Desc
	envelopeDesc *prometheus.Desc
	sessionsDesc *prometheus.Desc
}

// NewMetrics builds a Metrics collector over recorder and sessions. Callers
// register it with a prometheus.Registry.
func NewMetrics(recorder *packet.ThroughputRecorder, sessions *session.Table) *Metrics {
	return &Metrics{
		recorder: recorder,
		sessions: sessions,
		packetsDesc: prometheus.NewDesc(
			"relay_packets_total", "Packets processed, by type and direction.",
			[]string{"type", "direction"}, nil,
		),
		bytesDesc: prometheus.NewDesc(
			"relay_bytes_total", "Bytes processed, by type and direction.",
			[]string{"type", "direction"}, nil,
		),
		envelopeDesc: prometheus.NewDesc(
			"relay_envelope_kbps", "Summed session bandwidth envelope.",
			[]string{"direction"}, nil,
		),
		sessionsDesc: prometheus.NewDesc(
			"relay_sessions", "Number of active sessions in the table.", nil, nil,
		),
	}
}

func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	ch <- m.packetsDesc
	ch <- m.bytesDesc
	ch <- m.envelopeDesc
	ch <- m.sessionsDesc
}

type labeledCounter struct {
	typ       string
	direction string
	snapshot  packet.Snapshot
}

func labeledCounters(s packet.ThroughputSnapshot) []labeledCounter {
	return []labeledCounter{
		{"outbound_ping", "tx", s.OutboundPingTx},
		{"route_request", "rx", s.RouteRequestRx},
		{"route_request", "tx", s.RouteRequestTx},
		{"route_response", "rx", s.RouteResponseRx},
		{"route_response", "tx", s.RouteResponseTx},
		{"client_to_server", "rx", s.ClientToServerRx},
		{"client_to_server", "tx", s.ClientToServerTx},
		{"server_to_client", "rx", s.ServerToClientRx},
		{"server_to_client", "tx", s.ServerToClientTx},
		{"inbound_ping", "rx", s.InboundPingRx},
		{"inbound_ping", "tx", s.InboundPingTx},
		{"pong", "rx", s.PongRx},
		{"session_ping", "rx", s.SessionPingRx},
		{"session_ping", "tx", s.SessionPingTx},
		{"session_pong", "rx", s.SessionPongRx},
		{"session_pong", "tx", s.SessionPongTx},
		{"continue_request", "rx", s.ContinueRequestRx},
		{"continue_request", "tx", s.ContinueRequestTx},
		{"continue_response", "rx", s.ContinueResponseRx},
		{"continue_response", "tx", s.ContinueResponseTx},
		{"near_ping", "rx", s.NearPingRx},
		{"near_ping", "tx", s.NearPingTx},
		{"unknown", "rx", s.UnknownRx},
	}
}

func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	snap := m.recorder.Snapshot()
	for _, c := range labeledCounters(snap) {
		ch <- prometheus.MustNewConstMetric(m.packetsDesc, prometheus.CounterValue, float64(c.snapshot.Packets), c.typ, c.direction)
		ch <- prometheus.MustNewConstMetric(m.bytesDesc, prometheus.CounterValue, float64(c.snapshot.Bytes), c.typ, c.direction)
	}

	ch <- prometheus.MustNewConstMetric(m.envelopeDesc, prometheus.GaugeValue, float64(m.sessions.EnvelopeUpTotal()), "up")
	ch <- prometheus.MustNewConstMetric(m.envelopeDesc, prometheus.GaugeValue, float64(m.sessions.EnvelopeDownTotal()), "down")
	ch <- prometheus.MustNewConstMetric(m.sessionsDesc, prometheus.GaugeValue, float64(m.sessions.Size()))
}
