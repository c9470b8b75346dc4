package pcrypto

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/nacl/box"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")[:32]

func TestSignThenIsSignedIsIdentity(t *testing.T) {
	packet := make([]byte, 64)
	_, _ = rand.Read(packet[MACSize:])

	Sign(testKey, packet)
	require.True(t, IsSigned(testKey, packet))
}

func TestIsSignedRejectsSingleByteMutation(t *testing.T) {
	packet := make([]byte, 64)
	_, _ = rand.Read(packet[MACSize:])
	Sign(testKey, packet)

	packet[MACSize+3] ^= 0x01
	require.False(t, IsSigned(testKey, packet))
}

func TestIsSignedRejectsShortPackets(t *testing.T) {
	require.False(t, IsSigned(testKey, []byte{1, 2, 3}))
}

func TestOpenTokenWrongKeyFails(t *testing.T) {
	backendPub, backendPriv, err := box.GenerateKey(rand.Reader)
	require.NoError(t, err)
	relayPub, relayPriv, err := box.GenerateKey(rand.Reader)
	require.NoError(t, err)
	_ = relayPub

	var nonce [NonceSize]byte
	_, _ = rand.Read(nonce[:])

	cleartext := []byte("route token payload")
	sealed := box.Seal(nonce[:], cleartext, &nonce, relayPub, backendPriv)

	// Open with the correct relay key pair: succeeds.
	plain, err := OpenToken(sealed, backendPub, relayPriv)
	require.NoError(t, err)
	require.Equal(t, cleartext, plain)

	// A token addressed to a different relay (wrong box key) fails to read.
	otherPub, otherPriv, err := box.GenerateKey(rand.Reader)
	require.NoError(t, err)
	_ = otherPub
	_, err = OpenToken(sealed, backendPub, otherPriv)
	require.Error(t, err)
}

func TestSessionMACRoundTrip(t *testing.T) {
	key := make([]byte, 32)
	_, _ = rand.Read(key)
	header := []byte{0x02, 1, 2, 3, 4, 5, 6, 7, 8}

	mac := SessionMAC(key, header)
	require.True(t, VerifySessionMAC(key, header, mac[:]))

	header[0] ^= 0xFF
	require.False(t, VerifySessionMAC(key, header, mac[:]))
}
