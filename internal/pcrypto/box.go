package pcrypto

import (
	"fmt"

	"golang.org/x/crypto/nacl/box"
)

// NonceSize is the nonce prefixed to a sealed route/continue token and
// OverheadSize the Poly1305 tag golang.org/x/crypto/nacl/box adds to the
// cleartext; together they sit on top of the token's cleartext payload.
// PublicKeySize and PrivateKeySize are the box key sizes.
const (
	NonceSize     = 24
	OverheadSize  = box.Overhead
	PublicKeySize = 32
	PrivateKeySize = 32
)

// OpenToken decrypts and authenticates a token sealed with
// box.Seal(nonce[:], cleartext, &nonce, relayPublicKey, backendPrivateKey),
// so that the first NonceSize bytes of sealed are the nonce. It opens the
// box with backendPublicKey and relayPrivateKey.
func OpenToken(sealed []byte, backendPublicKey, relayPrivateKey *[PublicKeySize]byte) ([]byte, error) {
	if len(sealed) < NonceSize+OverheadSize {
		return nil, fmt.Errorf("pcrypto: sealed token too short")
	}
	var nonce [NonceSize]byte
	copy(nonce[:], sealed[:NonceSize])

	plain, ok := box.Open(nil, sealed[NonceSize:], &nonce, backendPublicKey, relayPrivateKey)
	if !ok {
		return nil, fmt.Errorf("pcrypto: token authentication failed")
	}
	return plain, nil
}
