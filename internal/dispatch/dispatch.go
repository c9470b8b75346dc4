// Package dispatch implements the relay's per-worker receive-classify-
// handle-send loop and the handler for each of the twelve wire packet
// types.
package dispatch

import (
	"log/slog"
	"sync/atomic"

	"github.com/networknext/relay/internal/config"
	"github.com/networknext/relay/internal/packet"
	"github.com/networknext/relay/internal/pcrypto"
	"github.com/networknext/relay/internal/relaymanager"
	"github.com/networknext/relay/internal/routerinfo"
	"github.com/networknext/relay/internal/routetoken"
	"github.com/networknext/relay/internal/session"
	"github.com/networknext/relay/internal/sock"
	"github.com/networknext/relay/internal/wire"
)

// SessionGrace is the extra time a session is allowed to live past its
// token's expire_timestamp before the purge sweep removes it.
const SessionGrace = 10 // seconds

// Dispatcher holds the state every worker's receive loop shares: the
// session table, the relay manager, the packet-family MAC key, the
// keychain used to open tokens, the router clock, and the throughput
// counters. Dispatcher itself is stateless with respect to any one socket;
// a worker passes its own *sock.Socket into Dispatch on every packet.
type Dispatcher struct {
	MACKey    [32]byte
	Keychain  config.Keychain
	Sessions  *session.Table
	Relays    *relaymanager.Manager
	Router    *routerinfo.Info
	Recorder  *packet.ThroughputRecorder
	Log       *slog.Logger

	// ShouldHandle is false while the relay is draining (SIGINT/SIGTERM
	// received); handlers log and return without mutating state.
	ShouldHandle atomic.Bool
}

// New constructs a Dispatcher ready to serve traffic.
func New(macKey [32]byte, keychain config.Keychain, sessions *session.Table, relays *relaymanager.Manager, router *routerinfo.Info, logger *slog.Logger) *Dispatcher {
	d := &Dispatcher{
		MACKey:   macKey,
		Keychain: keychain,
		Sessions: sessions,
		Relays:   relays,
		Router:   router,
		Recorder: &packet.ThroughputRecorder{},
		Log:      logger,
	}
	d.ShouldHandle.Store(true)
	return d
}

// Dispatch classifies and handles one received packet, per spec.md §4.9:
// drop packets of 8 bytes or fewer, classify by the (possibly MAC-prefixed)
// type byte, verify the MAC for signed types, and hand off to the type's
// handler. Unknown types are counted and dropped.
func (d *Dispatcher) Dispatch(sck *sock.Socket, pkt *packet.Packet) {
	data := pkt.Data()

	if len(data) <= 8 {
		d.Recorder.UnknownRx.Add(len(data))
		return
	}

	// A type byte read from offset 0 only makes sense for unsigned packet
	// types; offset 8 is tried first because every signed type's MAC sits
	// in the first 8 bytes. NearPing/NearPong are the one pair that can
	// legally arrive in either form, so they're accepted at offset 8 too
	// whenever the MAC actually checks out.
	signedCandidate := packet.Type(data[8])
	if pcrypto.IsSigned(d.MACKey[:], data) &&
		(signedCandidate.Signed() || signedCandidate == packet.NearPing || signedCandidate == packet.NearPong) {
		d.dispatchType(sck, pkt, signedCandidate, true)
		return
	}

	unsignedCandidate := packet.Type(data[0])
	if !unsignedCandidate.Signed() {
		d.dispatchType(sck, pkt, unsignedCandidate, false)
		return
	}

	d.Recorder.UnknownRx.Add(len(data))
}

func (d *Dispatcher) dispatchType(sck *sock.Socket, pkt *packet.Packet, ty packet.Type, signed bool) {
	if !d.ShouldHandle.Load() {
		d.Log.Debug("dropping packet while draining", "type", ty.String())
		return
	}

	switch ty {
	case packet.RouteRequest:
		d.handleRouteRequest(sck, pkt)
	case packet.RouteResponse:
		d.handleRouteResponse(sck, pkt)
	case packet.ClientToServer:
		d.handleClientToServer(sck, pkt)
	case packet.ServerToClient:
		d.handleServerToClient(sck, pkt)
	case packet.SessionPing:
		d.handleSessionPing(sck, pkt)
	case packet.SessionPong:
		d.handleSessionPong(pkt)
	case packet.ContinueRequest:
		d.handleContinueRequest(sck, pkt)
	case packet.ContinueResponse:
		d.handleContinueResponse(sck, pkt)
	case packet.RelayPing:
		d.handleRelayPing(sck, pkt)
	case packet.RelayPong:
		d.handleRelayPong(pkt)
	case packet.NearPing:
		d.handleNearPing(sck, pkt, signed)
	case packet.NearPong:
		d.handleNearPong(sck, pkt, signed)
	default:
		d.Recorder.UnknownRx.Add(pkt.Length)
	}
}

// PingRelays checks the relay manager for neighbours due another ping and
// emits a RelayPing to each, per spec.md §9's "check-and-emit inside the
// dispatcher loop (no timers)" scheduling note. Safe to call from every
// worker's loop: GetPingData itself serialises the due-check against
// last_ping_time, so concurrent callers never double-ping a relay.
func (d *Dispatcher) PingRelays(sck *sock.Socket, now float64) {
	targets := d.Relays.GetPingData(now)
	for _, target := range targets {
		addr := target.Address.UDPAddr()
		if addr == nil {
			continue
		}

		var buf [8 + 1 + 8]byte
		buf[8] = byte(packet.RelayPing)
		index := 9
		wire.WriteUint64(buf[:], &index, target.Sequence)
		pcrypto.Sign(d.MACKey[:], buf[:])

		d.Recorder.OutboundPingTx.Add(len(buf))
		if err := sck.Send(addr, buf[:]); err != nil {
			d.Log.Error("failed to send relay ping", "error", err)
		}
	}
}

// openAndCheckToken wraps the two admission checks every route/continue token must
// pass: it must open under the relay's keychain and must not be expired.
func (d *Dispatcher) openAndCheckToken(buf []byte, index *int) (routetoken.Token, bool) {
	tok, err := routetoken.ReadEncrypted(buf, index, &d.Keychain.BackendPublicKey, &d.Keychain.RelayPrivateKey)
	if err != nil {
		d.Log.Debug("rejecting token", "error", err)
		return routetoken.Token{}, false
	}
	if tok.Expired(d.Router.CurrentTimeSeconds()) {
		d.Log.Debug("rejecting expired token", "session_id", tok.SessionID)
		return routetoken.Token{}, false
	}
	return tok, true
}
