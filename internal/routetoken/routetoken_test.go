package routetoken

import (
	"crypto/rand"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/nacl/box"

	"github.com/networknext/relay/internal/wire"
)

func sealToken(t *testing.T, tok Token, backendPriv, relayPub *[32]byte) []byte {
	t.Helper()

	plain := make([]byte, versionSize+clearSize)
	plain[0] = 1 // version

	cursor := versionSize
	wire.WriteUint64(plain, &cursor, tok.ExpireTimestamp)
	wire.WriteUint64(plain, &cursor, tok.SessionID)
	wire.WriteUint8(plain, &cursor, tok.SessionVersion)
	wire.WriteUint32(plain, &cursor, tok.KbpsUp)
	wire.WriteUint32(plain, &cursor, tok.KbpsDown)
	wire.WriteAddress(plain, &cursor, tok.NextAddr)
	wire.WriteBytes(plain, &cursor, tok.PrivateKey[:])

	var nonce [24]byte
	_, _ = rand.Read(nonce[:])
	return box.Seal(nonce[:], plain, &nonce, relayPub, backendPriv)
}

func TestReadEncryptedRoundTrip(t *testing.T) {
	backendPub, backendPriv, err := box.GenerateKey(rand.Reader)
	require.NoError(t, err)
	relayPub, relayPriv, err := box.GenerateKey(rand.Reader)
	require.NoError(t, err)

	want := Token{
		ExpireTimestamp: 1000,
		SessionID:       0xAABBCCDD00,
		SessionVersion:  3,
		KbpsUp:          512,
		KbpsDown:        2048,
		NextAddr:        wire.AddressFromUDP(mustUDPAddr("10.0.0.5:40000")),
	}
	_, _ = rand.Read(want.PrivateKey[:])

	sealed := sealToken(t, want, backendPriv, relayPub)

	buf := make([]byte, len(sealed)+5)
	copy(buf, sealed)
	index := 0

	got, err := ReadEncrypted(buf, &index, backendPub, relayPriv)
	require.NoError(t, err)
	require.Equal(t, SizeOfSigned, index)
	require.Equal(t, want.ExpireTimestamp, got.ExpireTimestamp)
	require.Equal(t, want.SessionID, got.SessionID)
	require.Equal(t, want.SessionVersion, got.SessionVersion)
	require.Equal(t, want.KbpsUp, got.KbpsUp)
	require.Equal(t, want.KbpsDown, got.KbpsDown)
	require.True(t, want.NextAddr.Equal(got.NextAddr))
	require.Equal(t, want.PrivateKey, got.PrivateKey)
}

func TestHashMasksSessionIDLowByte(t *testing.T) {
	tok := Token{SessionID: 0x1234, SessionVersion: 7}
	require.Equal(t, uint64(0x1200|7), tok.Hash())
}

func TestExpired(t *testing.T) {
	tok := Token{ExpireTimestamp: 100}
	require.False(t, tok.Expired(100))
	require.False(t, tok.Expired(99))
	require.True(t, tok.Expired(101))
}

func TestReadEncryptedRejectsWrongKey(t *testing.T) {
	backendPub, backendPriv, err := box.GenerateKey(rand.Reader)
	require.NoError(t, err)
	relayPub, _, err := box.GenerateKey(rand.Reader)
	require.NoError(t, err)
	_, otherPriv, err := box.GenerateKey(rand.Reader)
	require.NoError(t, err)

	sealed := sealToken(t, Token{ExpireTimestamp: 1}, backendPriv, relayPub)
	index := 0
	_, err = ReadEncrypted(sealed, &index, backendPub, otherPriv)
	require.Error(t, err)
}

func TestReadEncryptedRejectsShortBuffer(t *testing.T) {
	index := 0
	var pub, priv [32]byte
	_, err := ReadEncrypted(make([]byte, 10), &index, &pub, &priv)
	require.Error(t, err)
}

func mustUDPAddr(s string) *net.UDPAddr {
	addr, err := net.ResolveUDPAddr("udp", s)
	if err != nil {
		panic(err)
	}
	return addr
}
