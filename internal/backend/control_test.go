package backend

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/networknext/relay/internal/packet"
	"github.com/networknext/relay/internal/relaymanager"
	"github.com/networknext/relay/internal/routerinfo"
	"github.com/networknext/relay/internal/session"
	"github.com/networknext/relay/internal/wire"
)

type fakeReporter struct {
	response []byte
	err      error
	calls    int
}

func (f *fakeReporter) PostReport(ctx context.Context, body []byte) ([]byte, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.response, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestControllerCycleAppliesBackendResponse(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	relays := []relaymanager.Info{{ID: 7, Address: wire.Address{Kind: wire.AddressIPv4, Bytes: [16]byte{10, 0, 0, 7}, Port: 4000}}}
	resp := signResponse(t, priv, 999, relays)

	router := routerinfo.New()
	relaysMgr := relaymanager.New()
	sessions := session.NewTable()

	c := &Controller{
		RouterPublicKey: pub,
		Client:          &fakeReporter{response: resp},
		Recorder:        &packet.ThroughputRecorder{},
		Sessions:        sessions,
		Relays:          relaysMgr,
		Router:          router,
		Log:             testLogger(),
	}

	c.runCycle(context.Background())

	require.Equal(t, uint64(999), router.CurrentTimeSeconds())
	require.Equal(t, 1, relaysMgr.Count())
}

func TestControllerCycleSurvivesTransportFailure(t *testing.T) {
	router := routerinfo.New()
	router.SetTimestamp(50)

	c := &Controller{
		RouterPublicKey: make([]byte, ed25519.PublicKeySize),
		Client:          &fakeReporter{err: fmt.Errorf("boom")},
		Recorder:        &packet.ThroughputRecorder{},
		Sessions:        session.NewTable(),
		Relays:          relaymanager.New(),
		Router:          router,
		Log:             testLogger(),
	}

	c.runCycle(context.Background())

	require.Equal(t, uint64(50), router.CurrentTimeSeconds())
}

func TestControllerCycleSurvivesBadSignature(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	otherPub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	resp := signResponse(t, priv, 1, nil)

	router := routerinfo.New()
	router.SetTimestamp(77)

	c := &Controller{
		RouterPublicKey: otherPub,
		Client:          &fakeReporter{response: resp},
		Recorder:        &packet.ThroughputRecorder{},
		Sessions:        session.NewTable(),
		Relays:          relaymanager.New(),
		Router:          router,
		Log:             testLogger(),
	}

	c.runCycle(context.Background())

	require.Equal(t, uint64(77), router.CurrentTimeSeconds())
}
