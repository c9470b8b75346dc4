package packet

import "sync/atomic"

// Counter is one atomic (packets, bytes) pair.
type Counter struct {
	packets atomic.Uint64
	bytes   atomic.Uint64
}

// Add records one packet of the given byte length.
func (c *Counter) Add(numBytes int) {
	c.bytes.Add(uint64(numBytes))
	c.packets.Add(1)
}

// Packets returns the current packet count.
func (c *Counter) Packets() uint64 { return c.packets.Load() }

// Bytes returns the current byte count.
func (c *Counter) Bytes() uint64 { return c.bytes.Load() }

// Snapshot is a frozen copy of a Counter's values.
type Snapshot struct {
	Packets uint64
	Bytes   uint64
}

func (c *Counter) snapshot() Snapshot {
	return Snapshot{Packets: c.Packets(), Bytes: c.Bytes()}
}

// ThroughputRecorder is the relay's full set of per-type, per-direction
// packet/byte counters plus the unknown-type bucket.
type ThroughputRecorder struct {
	OutboundPingTx Counter

	RouteRequestRx Counter
	RouteRequestTx Counter

	RouteResponseRx Counter
	RouteResponseTx Counter

	ClientToServerRx Counter
	ClientToServerTx Counter

	ServerToClientRx Counter
	ServerToClientTx Counter

	InboundPingRx Counter
	InboundPingTx Counter

	PongRx Counter

	SessionPingRx Counter
	SessionPingTx Counter

	SessionPongRx Counter
	SessionPongTx Counter

	ContinueRequestRx Counter
	ContinueRequestTx Counter

	ContinueResponseRx Counter
	ContinueResponseTx Counter

	NearPingRx Counter
	NearPingTx Counter

	UnknownRx Counter
}

// ThroughputSnapshot mirrors ThroughputRecorder with frozen values, as
// carried in a backend stats report and exported by the metrics mirror.
type ThroughputSnapshot struct {
	OutboundPingTx     Snapshot `json:"outbound_ping_tx"`
	RouteRequestRx     Snapshot `json:"route_request_rx"`
	RouteRequestTx     Snapshot `json:"route_request_tx"`
	RouteResponseRx    Snapshot `json:"route_response_rx"`
	RouteResponseTx    Snapshot `json:"route_response_tx"`
	ClientToServerRx   Snapshot `json:"client_to_server_rx"`
	ClientToServerTx   Snapshot `json:"client_to_server_tx"`
	ServerToClientRx   Snapshot `json:"server_to_client_rx"`
	ServerToClientTx   Snapshot `json:"server_to_client_tx"`
	InboundPingRx      Snapshot `json:"inbound_ping_rx"`
	InboundPingTx      Snapshot `json:"inbound_ping_tx"`
	PongRx             Snapshot `json:"pong_rx"`
	SessionPingRx      Snapshot `json:"session_ping_rx"`
	SessionPingTx      Snapshot `json:"session_ping_tx"`
	SessionPongRx      Snapshot `json:"session_pong_rx"`
	SessionPongTx      Snapshot `json:"session_pong_tx"`
	ContinueRequestRx  Snapshot `json:"continue_request_rx"`
	ContinueRequestTx  Snapshot `json:"continue_request_tx"`
	ContinueResponseRx Snapshot `json:"continue_response_rx"`
	ContinueResponseTx Snapshot `json:"continue_response_tx"`
	NearPingRx         Snapshot `json:"near_ping_rx"`
	NearPingTx         Snapshot `json:"near_ping_tx"`
	UnknownRx          Snapshot `json:"unknown_rx"`
}

// Snapshot freezes every counter for a backend report.
func (r *ThroughputRecorder) Snapshot() ThroughputSnapshot {
	return ThroughputSnapshot{
		OutboundPingTx:     r.OutboundPingTx.snapshot(),
		RouteRequestRx:     r.RouteRequestRx.snapshot(),
		RouteRequestTx:     r.RouteRequestTx.snapshot(),
		RouteResponseRx:    r.RouteResponseRx.snapshot(),
		RouteResponseTx:    r.RouteResponseTx.snapshot(),
		ClientToServerRx:   r.ClientToServerRx.snapshot(),
		ClientToServerTx:   r.ClientToServerTx.snapshot(),
		ServerToClientRx:   r.ServerToClientRx.snapshot(),
		ServerToClientTx:   r.ServerToClientTx.snapshot(),
		InboundPingRx:      r.InboundPingRx.snapshot(),
		InboundPingTx:      r.InboundPingTx.snapshot(),
		PongRx:             r.PongRx.snapshot(),
		SessionPingRx:      r.SessionPingRx.snapshot(),
		SessionPingTx:      r.SessionPingTx.snapshot(),
		SessionPongRx:      r.SessionPongRx.snapshot(),
		SessionPongTx:      r.SessionPongTx.snapshot(),
		ContinueRequestRx:  r.ContinueRequestRx.snapshot(),
		ContinueRequestTx:  r.ContinueRequestTx.snapshot(),
		ContinueResponseRx: r.ContinueResponseRx.snapshot(),
		ContinueResponseTx: r.ContinueResponseTx.snapshot(),
		NearPingRx:         r.NearPingRx.snapshot(),
		NearPingTx:         r.NearPingTx.snapshot(),
		UnknownRx:          r.UnknownRx.snapshot(),
	}
}
