// Package backend implements the relay's control-plane client: the
// periodic stats report POSTed to the backend, the signed response parser,
// a Prometheus mirror of the throughput counters, a small admin HTTP
// surface, and the control loop that drives RouterInfo/RelayManager/
// SessionTable from what the backend returns.
package backend

import (
	"crypto/ed25519"
	"fmt"

	"github.com/networknext/relay/internal/packet"
	"github.com/networknext/relay/internal/relaymanager"
	"github.com/networknext/relay/internal/wire"
)

// reportVersion is the wire version of the stats report body. Bumping it
// is a breaking change for the backend's decoder.
const reportVersion = 1

// responseVersion is the wire version this relay knows how to parse out of
// a signed backend response.
const responseVersion = 1

// Report is everything one stats cycle sends to the backend: the relay's
// identity, its current session envelope, and its full throughput/relay
// snapshot, per spec.md §4.11 and §6.
type Report struct {
	RelayID      uint64
	LocalTime    float64
	SessionCount int
	EnvelopeUp   int64
	EnvelopeDown int64
	Throughput   packet.ThroughputSnapshot
	RelayStats   relaymanager.Stats
}

// counterPairs lists the ThroughputSnapshot fields in a fixed order so the
// encoder/decoder agree on layout without reflection.
func counterPairs(s packet.ThroughputSnapshot) []packet.Snapshot {
	return []packet.Snapshot{
		s.OutboundPingTx,
		s.RouteRequestRx, s.RouteRequestTx,
		s.RouteResponseRx, s.RouteResponseTx,
		s.ClientToServerRx, s.ClientToServerTx,
		s.ServerToClientRx, s.ServerToClientTx,
		s.InboundPingRx, s.InboundPingTx,
		s.PongRx,
		s.SessionPingRx, s.SessionPingTx,
		s.SessionPongRx, s.SessionPongTx,
		s.ContinueRequestRx, s.ContinueRequestTx,
		s.ContinueResponseRx, s.ContinueResponseTx,
		s.NearPingRx, s.NearPingTx,
		s.UnknownRx,
	}
}

// EncodeReport serializes r as the versioned, little-endian struct spec.md
// §6 requires for the backend POST body.
func EncodeReport(r Report) []byte {
	pairs := counterPairs(r.Throughput)

	size := 1 + 8 + 8 + 4 + 8 + 8 + 4 + len(pairs)*16 + 4 + len(r.RelayStats.IDs)*(8+4+4+4)
	buf := make([]byte, size)
	index := 0

	wire.WriteUint8(buf, &index, reportVersion)
	wire.WriteUint64(buf, &index, r.RelayID)
	wire.WriteUint64(buf, &index, doubleBitsOf(r.LocalTime))
	wire.WriteUint32(buf, &index, uint32(r.SessionCount))
	wire.WriteUint64(buf, &index, uint64(r.EnvelopeUp))
	wire.WriteUint64(buf, &index, uint64(r.EnvelopeDown))

	wire.WriteUint32(buf, &index, uint32(len(pairs)))
	for _, p := range pairs {
		wire.WriteUint64(buf, &index, p.Packets)
		wire.WriteUint64(buf, &index, p.Bytes)
	}

	wire.WriteUint32(buf, &index, uint32(len(r.RelayStats.IDs)))
	for i, id := range r.RelayStats.IDs {
		wire.WriteUint64(buf, &index, id)
		rs := r.RelayStats.Route[i]
		wire.WriteUint32(buf, &index, float32Bits(rs.RTT))
		wire.WriteUint32(buf, &index, float32Bits(rs.Jitter))
		wire.WriteUint32(buf, &index, float32Bits(rs.PacketLoss))
	}

	return buf[:index]
}

// Response is the backend's reply to a stats report: an updated clock
// source and a fresh relay-neighbour list.
type Response struct {
	BackendTimestamp uint64
	Relays           []relaymanager.Info
}

// DecodeSignedResponse verifies payload's Ed25519 signature against
// routerPublicKey and parses the backend_timestamp + relay list it carries,
// per spec.md §6.
func DecodeSignedResponse(payload []byte, routerPublicKey ed25519.PublicKey) (Response, error) {
	if len(payload) < ed25519.SignatureSize+1 {
		return Response{}, fmt.Errorf("backend: response too short")
	}

	sig := payload[:ed25519.SignatureSize]
	body := payload[ed25519.SignatureSize:]

	if !ed25519.Verify(routerPublicKey, body, sig) {
		return Response{}, fmt.Errorf("backend: response signature verification failed")
	}

	index := 0
	version, err := wire.ReadUint8(body, &index)
	if err != nil {
		return Response{}, err
	}
	if version != responseVersion {
		return Response{}, fmt.Errorf("backend: unsupported response version %d", version)
	}

	ts, err := wire.ReadUint64(body, &index)
	if err != nil {
		return Response{}, err
	}

	count, err := wire.ReadUint32(body, &index)
	if err != nil {
		return Response{}, err
	}

	relays := make([]relaymanager.Info, 0, count)
	for i := uint32(0); i < count; i++ {
		id, err := wire.ReadUint64(body, &index)
		if err != nil {
			return Response{}, err
		}
		addr, err := wire.ReadAddress(body, &index)
		if err != nil {
			return Response{}, err
		}
		relays = append(relays, relaymanager.Info{ID: id, Address: addr})
	}

	return Response{BackendTimestamp: ts, Relays: relays}, nil
}
