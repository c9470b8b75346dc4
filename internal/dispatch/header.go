package dispatch

import (
	"fmt"

	"github.com/networknext/relay/internal/pcrypto"
	"github.com/networknext/relay/internal/packet"
	"github.com/networknext/relay/internal/wire"
)

// sessionHeaderFieldsSize is type(1) + sequence(8) + session_id(8) +
// session_version(1), the cleartext fields a client/server/ping header
// carries ahead of its per-session MAC.
const sessionHeaderFieldsSize = 1 + 8 + 8 + 1

// sessionHeaderSize is the full on-wire header: the cleartext fields plus
// the trailing per-session MAC that authenticates them (see SPEC_FULL.md's
// resolution of the open question on "encrypted/signed" session headers).
const sessionHeaderSize = sessionHeaderFieldsSize + pcrypto.MACSize

// sessionHeader is the parsed form of a client/server/ping/pong header.
type sessionHeader struct {
	Type           packet.Type
	Sequence       uint64
	SessionID      uint64
	SessionVersion uint8
}

// hash returns the session table key for this header, matching
// routetoken.Token.Hash.
func (h sessionHeader) hash() uint64 {
	return (h.SessionID &^ 0xFF) | uint64(h.SessionVersion)
}

// peekSessionHeader parses a session header's cleartext fields without
// verifying its MAC: the relay needs session_id/session_version to find
// the session (and hence the key to verify against) before it can check
// the MAC at all.
func peekSessionHeader(buf []byte, start int) (sessionHeader, error) {
	if start+sessionHeaderSize > len(buf) {
		return sessionHeader{}, fmt.Errorf("dispatch: buffer too short for session header")
	}

	cursor := start
	typeByte, err := wire.ReadUint8(buf, &cursor)
	if err != nil {
		return sessionHeader{}, err
	}
	seq, err := wire.ReadUint64(buf, &cursor)
	if err != nil {
		return sessionHeader{}, err
	}
	sessionID, err := wire.ReadUint64(buf, &cursor)
	if err != nil {
		return sessionHeader{}, err
	}
	sessionVersion, err := wire.ReadUint8(buf, &cursor)
	if err != nil {
		return sessionHeader{}, err
	}

	return sessionHeader{
		Type:           packet.Type(typeByte),
		Sequence:       seq,
		SessionID:      sessionID,
		SessionVersion: sessionVersion,
	}, nil
}

// verifySessionHeaderMAC checks the MAC trailing the header that starts at
// buf[start:] against privateKey.
func verifySessionHeaderMAC(buf []byte, start int, privateKey []byte) bool {
	if start+sessionHeaderSize > len(buf) {
		return false
	}
	fields := buf[start : start+sessionHeaderFieldsSize]
	mac := buf[start+sessionHeaderFieldsSize : start+sessionHeaderSize]
	return pcrypto.VerifySessionMAC(privateKey, fields, mac)
}

// readSessionHeader parses and verifies a session header starting at
// buf[*index], advancing *index past it on success.
func readSessionHeader(buf []byte, index *int, privateKey []byte) (sessionHeader, error) {
	start := *index
	h, err := peekSessionHeader(buf, start)
	if err != nil {
		return sessionHeader{}, err
	}
	if !verifySessionHeaderMAC(buf, start, privateKey) {
		return sessionHeader{}, fmt.Errorf("dispatch: session header MAC mismatch")
	}
	*index = start + sessionHeaderSize
	return h, nil
}

// writeSessionHeader writes a header of the given type at buf[*index],
// MAC'd under privateKey, and advances *index.
func writeSessionHeader(buf []byte, index *int, privateKey []byte, h sessionHeader) {
	start := *index
	cursor := start
	wire.WriteUint8(buf, &cursor, uint8(h.Type))
	wire.WriteUint64(buf, &cursor, h.Sequence)
	wire.WriteUint64(buf, &cursor, h.SessionID)
	wire.WriteUint8(buf, &cursor, h.SessionVersion)

	fields := buf[start : start+sessionHeaderFieldsSize]
	mac := pcrypto.SessionMAC(privateKey, fields)
	copy(buf[start+sessionHeaderFieldsSize:start+sessionHeaderSize], mac[:])

	*index = start + sessionHeaderSize
}
