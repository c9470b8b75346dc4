// Package routetoken parses and validates the backend-signed admission
// tickets (route tokens and continue tokens) carried in RouteRequest and
// ContinueRequest packets.
package routetoken

import (
	"fmt"

	"github.com/networknext/relay/internal/pcrypto"
	"github.com/networknext/relay/internal/wire"
)

const (
	versionSize          = 1
	expireTimestampSize  = 8
	sessionIDSize        = 8
	sessionVersionSize   = 1
	kbpsUpSize           = 4
	kbpsDownSize         = 4
	privateKeySize       = 32
	reservedSize         = 20

	// clearSize is the cleartext payload size behind the box, matching the
	// 97-byte field block the wire layout reserves after the version byte.
	clearSize = expireTimestampSize + sessionIDSize + sessionVersionSize +
		kbpsUpSize + kbpsDownSize + wire.AddressSize + privateKeySize + reservedSize

	// SizeOfSigned is the total on-wire size of a signed token: nonce,
	// box overhead, version byte and cleartext fields.
	SizeOfSigned = pcrypto.NonceSize + pcrypto.OverheadSize + versionSize + clearSize
)

// Token is a backend-issued RouteToken (or ContinueToken, which shares the
// same wire shape and verification rules).
type Token struct {
	ExpireTimestamp uint64
	SessionID       uint64
	SessionVersion  uint8
	KbpsUp          uint32
	KbpsDown        uint32
	NextAddr        wire.Address
	PrivateKey      [privateKeySize]byte
}

// Hash is the session table key derived from the token: the session id with
// its low byte cleared, OR'd with the session version.
func (t Token) Hash() uint64 {
	return (t.SessionID &^ 0xFF) | uint64(t.SessionVersion)
}

// Expired reports whether the token's expire_timestamp has passed now.
func (t Token) Expired(now uint64) bool {
	return now > t.ExpireTimestamp
}

// ReadEncrypted opens and parses a token from buf[*index:*index+SizeOfSigned],
// advancing *index past the token on success.
func ReadEncrypted(buf []byte, index *int, backendPublicKey, relayPrivateKey *[32]byte) (Token, error) {
	var tok Token

	if *index+SizeOfSigned > len(buf) {
		return tok, fmt.Errorf("routetoken: buffer too short for signed token")
	}

	sealed := buf[*index : *index+pcrypto.NonceSize+pcrypto.OverheadSize+versionSize+clearSize]

	plain, err := pcrypto.OpenToken(sealed, backendPublicKey, relayPrivateKey)
	if err != nil {
		return tok, fmt.Errorf("routetoken: %w", err)
	}
	if len(plain) != versionSize+clearSize {
		return tok, fmt.Errorf("routetoken: unexpected decrypted length %d", len(plain))
	}

	cursor := versionSize // skip the version byte
	var e error

	tok.ExpireTimestamp, e = wire.ReadUint64(plain, &cursor)
	if e != nil {
		return tok, e
	}
	tok.SessionID, e = wire.ReadUint64(plain, &cursor)
	if e != nil {
		return tok, e
	}
	sv, e := wire.ReadUint8(plain, &cursor)
	if e != nil {
		return tok, e
	}
	tok.SessionVersion = sv
	tok.KbpsUp, e = wire.ReadUint32(plain, &cursor)
	if e != nil {
		return tok, e
	}
	tok.KbpsDown, e = wire.ReadUint32(plain, &cursor)
	if e != nil {
		return tok, e
	}
	tok.NextAddr, e = wire.ReadAddress(plain, &cursor)
	if e != nil {
		return tok, e
	}
	key, e := wire.ReadBytes(plain, &cursor, privateKeySize)
	if e != nil {
		return tok, e
	}
	copy(tok.PrivateKey[:], key)

	*index += SizeOfSigned
	return tok, nil
}
