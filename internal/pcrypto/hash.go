// Package pcrypto implements the relay's packet-family filter (a keyed MAC
// prefixed to every signed packet), the authenticated-box verification used
// by route and continue tokens, and the per-session keyed MAC layered under
// it for forwarded client/server headers.
package pcrypto

import (
	"crypto/subtle"

	"lukechampine.com/blake3"
)

// MACSize is the size in bytes of the packet hash prefix.
const MACSize = 8

// macSum computes the truncated keyed BLAKE3 MAC of msg under key.
func macSum(key []byte, msg []byte) [MACSize]byte {
	h := blake3.New(32, key)
	h.Write(msg)
	sum := h.Sum(nil)
	var out [MACSize]byte
	copy(out[:], sum[:MACSize])
	return out
}

// Sign overwrites packet[0:MACSize] with the keyed MAC of packet[MACSize:].
// The caller must ensure len(packet) >= MACSize.
func Sign(key []byte, packet []byte) {
	sum := macSum(key, packet[MACSize:])
	copy(packet[:MACSize], sum[:])
}

// IsSigned reports whether packet carries a valid MAC over packet[MACSize:].
// It returns false (rather than panicking) for packets shorter than
// MACSize; callers are expected to have already checked packet length.
func IsSigned(key []byte, packet []byte) bool {
	if len(packet) < MACSize {
		return false
	}
	sum := macSum(key, packet[MACSize:])
	return subtle.ConstantTimeCompare(sum[:], packet[:MACSize]) == 1
}

// SessionMAC computes the per-session keyed MAC for a forwarded session
// header (see SPEC_FULL.md's resolution of the "encrypted/signed" open
// question: session privateKey authenticates, rather than encrypts, the
// header so the relay can still read session_id/sequence for its lookup).
func SessionMAC(privateKey []byte, header []byte) [MACSize]byte {
	return macSum(privateKey, header)
}

// VerifySessionMAC checks a session header's MAC against the one carried at
// mac[0:MACSize].
func VerifySessionMAC(privateKey []byte, header []byte, mac []byte) bool {
	if len(mac) < MACSize {
		return false
	}
	sum := SessionMAC(privateKey, header)
	return subtle.ConstantTimeCompare(sum[:], mac[:MACSize]) == 1
}
