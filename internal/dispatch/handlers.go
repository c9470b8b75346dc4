package dispatch

import (
	"github.com/networknext/relay/internal/packet"
	"github.com/networknext/relay/internal/pcrypto"
	"github.com/networknext/relay/internal/routetoken"
	"github.com/networknext/relay/internal/session"
	"github.com/networknext/relay/internal/sock"
	"github.com/networknext/relay/internal/wire"
)

// signedHeaderOffset is where the type byte sits in a signed packet: right
// after the 8-byte packet-family MAC.
const signedHeaderOffset = 8

func (d *Dispatcher) handleRouteRequest(sck *sock.Socket, pkt *packet.Packet) {
	data := pkt.Data()
	d.Recorder.RouteRequestRx.Add(len(data))

	const tokenOffset = signedHeaderOffset + 1 // MAC + type byte
	minLen := tokenOffset + 2*routetoken.SizeOfSigned
	if len(data) < minLen {
		d.Log.Debug("ignoring route request, bad packet size", "length", len(data))
		return
	}

	index := tokenOffset
	tok, ok := d.openAndCheckToken(data, &index)
	if !ok {
		return
	}

	hash := tok.Hash()
	if _, exists := d.Sessions.Get(hash); !exists {
		sess := &session.Session{
			SessionID:       tok.SessionID,
			SessionVersion:  tok.SessionVersion,
			ExpireTimestamp: tok.ExpireTimestamp,
			KbpsUp:          tok.KbpsUp,
			KbpsDown:        tok.KbpsDown,
			PrevAddr:        pkt.Addr,
			NextAddr:        tok.NextAddr,
			PrivateKey:      tok.PrivateKey,
		}
		d.Sessions.Set(hash, sess)
		d.Log.Debug("session created", "session_id", tok.SessionID)
	} else {
		d.Log.Debug("received additional route request for session", "session_id", tok.SessionID)
	}

	// The token occupied data[tokenOffset:index]; overwrite the byte just
	// before the remaining payload with the (unchanged) RouteRequest type
	// and forward from there, stripping the token in place.
	forwardStart := index - 1
	data[forwardStart] = byte(packet.RouteRequest)
	forward := data[forwardStart:]

	d.Recorder.RouteRequestTx.Add(len(forward))
	if err := sck.Send(tok.NextAddr.UDPAddr(), forward); err != nil {
		d.Log.Error("failed to forward route request", "error", err)
	}
}

func (d *Dispatcher) handleRouteResponse(sck *sock.Socket, pkt *packet.Packet) {
	data := pkt.Data()
	d.Recorder.RouteResponseRx.Add(len(data))

	const headerOffset = signedHeaderOffset + 1
	const idFieldsSize = 8 + 1
	if len(data) < headerOffset+idFieldsSize {
		d.Log.Debug("ignoring route response, bad packet size", "length", len(data))
		return
	}

	index := headerOffset
	sessionID, err := wire.ReadUint64(data, &index)
	if err != nil {
		return
	}
	sessionVersion, err := wire.ReadUint8(data, &index)
	if err != nil {
		return
	}
	hash := (sessionID &^ 0xFF) | uint64(sessionVersion)

	sess, ok := d.Sessions.Get(hash)
	if !ok {
		d.Log.Debug("dropping route response for unknown session", "session_id", sessionID)
		return
	}

	d.Recorder.RouteResponseTx.Add(len(data))
	if err := sck.Send(sess.PrevAddr.UDPAddr(), data); err != nil {
		d.Log.Error("failed to forward route response", "error", err)
	}
}

// handleSessionForward implements the shared shape of ClientToServer and
// ServerToClient: parse the session header, apply direction-specific replay
// protection and bandwidth envelope, and forward to the opposite hop.
func (d *Dispatcher) handleSessionForward(sck *sock.Socket, pkt *packet.Packet, clientToServer bool) {
	data := pkt.Data()
	// ClientToServer/ServerToClient carry no packet-family MAC; the session
	// header (and its own per-session MAC) starts at byte 0.
	if len(data) < sessionHeaderSize {
		d.Recorder.UnknownRx.Add(len(data))
		return
	}

	hdr, err := peekSessionHeader(data, 0)
	if err != nil {
		return
	}

	sess, ok := d.Sessions.Get(hdr.hash())
	if !ok {
		d.Log.Debug("dropping session packet for unknown session", "session_id", hdr.SessionID)
		return
	}

	if !verifySessionHeaderMAC(data, 0, sess.PrivateKey[:]) {
		d.Log.Debug("dropping session packet, bad header MAC", "session_id", hdr.SessionID)
		return
	}

	var accepted bool
	if clientToServer {
		accepted = sess.AcceptClientToServer(hdr.Sequence)
	} else {
		accepted = sess.AcceptServerToClient(hdr.Sequence)
	}
	if !accepted {
		d.Log.Debug("dropping replayed or stale session packet", "session_id", hdr.SessionID, "sequence", hdr.Sequence)
		return
	}

	now := d.Router.CurrentTime()
	var withinEnvelope bool
	if clientToServer {
		withinEnvelope = sess.ConsumeUp(now, len(data))
	} else {
		withinEnvelope = sess.ConsumeDown(now, len(data))
	}
	if !withinEnvelope {
		d.Log.Debug("dropping session packet, over envelope", "session_id", hdr.SessionID)
		return
	}

	dest := sess.NextAddr
	if !clientToServer {
		dest = sess.PrevAddr
	}

	if clientToServer {
		d.Recorder.ClientToServerRx.Add(len(data))
		d.Recorder.ClientToServerTx.Add(len(data))
	} else {
		d.Recorder.ServerToClientRx.Add(len(data))
		d.Recorder.ServerToClientTx.Add(len(data))
	}

	if err := sck.Send(dest.UDPAddr(), data); err != nil {
		d.Log.Error("failed to forward session packet", "error", err)
	}
}

func (d *Dispatcher) handleClientToServer(sck *sock.Socket, pkt *packet.Packet) {
	d.handleSessionForward(sck, pkt, true)
}

func (d *Dispatcher) handleServerToClient(sck *sock.Socket, pkt *packet.Packet) {
	d.handleSessionForward(sck, pkt, false)
}

// handleSessionPing/Pong are session-scoped keepalives: the ping is
// answered locally (not forwarded) by swapping the type and bouncing the
// header back re-MAC'd under the same session key.
func (d *Dispatcher) handleSessionPing(sck *sock.Socket, pkt *packet.Packet) {
	data := pkt.Data()
	d.Recorder.SessionPingRx.Add(len(data))

	hdr, err := peekSessionHeader(data, 0)
	if err != nil {
		return
	}
	sess, ok := d.Sessions.Get(hdr.hash())
	if !ok {
		return
	}
	if !verifySessionHeaderMAC(data, 0, sess.PrivateKey[:]) {
		return
	}

	hdr.Type = packet.SessionPong
	index := 0
	writeSessionHeader(data, &index, sess.PrivateKey[:], hdr)

	d.Recorder.SessionPongTx.Add(index)
	if err := sck.Send(pkt.Addr.UDPAddr(), data[:index]); err != nil {
		d.Log.Error("failed to reply to session ping", "error", err)
	}
}

func (d *Dispatcher) handleSessionPong(pkt *packet.Packet) {
	d.Recorder.SessionPongRx.Add(pkt.Length)
	// Only the SessionPongRx counter is updated: the pong is not forwarded,
	// and no per-session latency history is kept.
}

func (d *Dispatcher) handleContinueRequest(sck *sock.Socket, pkt *packet.Packet) {
	data := pkt.Data()
	d.Recorder.ContinueRequestRx.Add(len(data))

	const tokenOffset = signedHeaderOffset + 1
	if len(data) < tokenOffset+routetoken.SizeOfSigned {
		d.Log.Debug("ignoring continue request, bad packet size", "length", len(data))
		return
	}

	index := tokenOffset
	tok, ok := d.openAndCheckToken(data, &index)
	if !ok {
		return
	}

	hash := tok.Hash()
	sess, exists := d.Sessions.Get(hash)
	if !exists {
		d.Log.Debug("ignoring continue request for unknown session", "session_id", tok.SessionID)
		return
	}

	sess.ExpireTimestamp = tok.ExpireTimestamp

	forwardStart := index - 1
	data[forwardStart] = byte(packet.ContinueRequest)
	forward := data[forwardStart:]

	d.Recorder.ContinueRequestTx.Add(len(forward))
	if err := sck.Send(sess.NextAddr.UDPAddr(), forward); err != nil {
		d.Log.Error("failed to forward continue request", "error", err)
	}
}

func (d *Dispatcher) handleContinueResponse(sck *sock.Socket, pkt *packet.Packet) {
	data := pkt.Data()
	d.Recorder.ContinueResponseRx.Add(len(data))

	const headerOffset = signedHeaderOffset + 1
	const idFieldsSize = 8 + 1
	if len(data) < headerOffset+idFieldsSize {
		return
	}

	index := headerOffset
	sessionID, err := wire.ReadUint64(data, &index)
	if err != nil {
		return
	}
	sessionVersion, err := wire.ReadUint8(data, &index)
	if err != nil {
		return
	}
	hash := (sessionID &^ 0xFF) | uint64(sessionVersion)

	sess, ok := d.Sessions.Get(hash)
	if !ok {
		return
	}

	d.Recorder.ContinueResponseTx.Add(len(data))
	if err := sck.Send(sess.PrevAddr.UDPAddr(), data); err != nil {
		d.Log.Error("failed to forward continue response", "error", err)
	}
}

func (d *Dispatcher) handleRelayPing(sck *sock.Socket, pkt *packet.Packet) {
	data := pkt.Data()
	d.Recorder.InboundPingRx.Add(len(data))

	if len(data) <= signedHeaderOffset {
		return
	}
	data[signedHeaderOffset] = byte(packet.RelayPong)
	pcrypto.Sign(d.MACKey[:], data)

	d.Recorder.OutboundPingTx.Add(len(data))
	if err := sck.Send(pkt.Addr.UDPAddr(), data); err != nil {
		d.Log.Error("failed to reply to relay ping", "error", err)
	}
}

func (d *Dispatcher) handleRelayPong(pkt *packet.Packet) {
	data := pkt.Data()
	d.Recorder.PongRx.Add(len(data))

	const offset = signedHeaderOffset + 1
	if len(data) < offset+8 {
		return
	}
	index := offset
	seq, err := wire.ReadUint64(data, &index)
	if err != nil {
		return
	}

	d.Relays.HandlePong(pkt.Addr, seq, d.Router.CurrentTime())
}

// handleNearPing/Pong strip the client's trailing 16-byte padding, swap the
// type, re-sign if the form was signed, and bounce the packet back.
func (d *Dispatcher) handleNearPing(sck *sock.Socket, pkt *packet.Packet, signed bool) {
	d.handleNear(sck, pkt, signed, packet.NearPong)
	d.Recorder.NearPingRx.Add(pkt.Length)
}

func (d *Dispatcher) handleNearPong(sck *sock.Socket, pkt *packet.Packet, signed bool) {
	d.handleNear(sck, pkt, signed, packet.NearPing)
}

func (d *Dispatcher) handleNear(sck *sock.Socket, pkt *packet.Packet, signed bool, replyType packet.Type) {
	data := pkt.Data()
	const padding = 16
	if len(data) <= padding {
		return
	}

	newLen := len(data) - padding
	typeOffset := 0
	if signed {
		typeOffset = signedHeaderOffset
	}
	if newLen <= typeOffset {
		return
	}

	data[typeOffset] = byte(replyType)
	out := data[:newLen]
	if signed {
		pcrypto.Sign(d.MACKey[:], out)
	}

	d.Recorder.NearPingTx.Add(len(out))
	if err := sck.Send(pkt.Addr.UDPAddr(), out); err != nil {
		d.Log.Error("failed to reply to near ping/pong", "error", err)
	}
}
