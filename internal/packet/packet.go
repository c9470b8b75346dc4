// Package packet defines the relay's closed wire-packet vocabulary, the
// reusable receive buffer shape, and the per-type/direction throughput
// counters the control loop reports upstream.
package packet

import (
	"net"

	"github.com/networknext/relay/internal/wire"
)

// MaxBytes is the largest datagram the relay will read or write.
const MaxBytes = 1500

// Type is the first-byte tag of a relay packet. The vocabulary is closed;
// any other value is dropped by the dispatcher and counted as unknown.
type Type uint8

const (
	RouteRequest Type = iota
	RouteResponse
	ClientToServer
	ServerToClient
	SessionPing
	SessionPong
	ContinueRequest
	ContinueResponse
	RelayPing
	RelayPong
	NearPing
	NearPong
)

// Signed reports whether packets of this type carry the 8-byte
// packet-family hash prefix the dispatcher verifies before classifying by
// type byte. This is distinct from the per-session keyed MAC
// ClientToServer/ServerToClient/SessionPing/SessionPong carry inside their
// own header: those types are unsigned at this classification layer and
// are authenticated later, by session key, inside their handler.
func (t Type) Signed() bool {
	switch t {
	case RouteRequest, RouteResponse, ContinueRequest, ContinueResponse, RelayPing, RelayPong:
		return true
	default:
		return false
	}
}

func (t Type) String() string {
	switch t {
	case RouteRequest:
		return "route_request"
	case RouteResponse:
		return "route_response"
	case ClientToServer:
		return "client_to_server"
	case ServerToClient:
		return "server_to_client"
	case SessionPing:
		return "session_ping"
	case SessionPong:
		return "session_pong"
	case ContinueRequest:
		return "continue_request"
	case ContinueResponse:
		return "continue_response"
	case RelayPing:
		return "relay_ping"
	case RelayPong:
		return "relay_pong"
	case NearPing:
		return "near_ping"
	case NearPong:
		return "near_pong"
	default:
		return "unknown"
	}
}

// Packet is a reusable receive/send buffer: the dispatcher allocates one per
// worker and never per datagram.
type Packet struct {
	Addr   wire.Address
	Length int
	Buffer [MaxBytes]byte
}

// Data returns the packet's populated bytes.
func (p *Packet) Data() []byte {
	return p.Buffer[:p.Length]
}

// FromUDP fills addr and length from a raw read.
func (p *Packet) FromUDP(n int, addr *net.UDPAddr) {
	p.Length = n
	p.Addr = wire.AddressFromUDP(addr)
}
