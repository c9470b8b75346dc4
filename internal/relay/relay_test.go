package relay

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/networknext/relay/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	addr, err := net.ResolveUDPAddr("udp", "127.0.0.1:0")
	require.NoError(t, err)

	return &config.Config{
		RelayAddress: addr,
		// Nothing listens here: the control loop's first report attempt
		// fails fast with connection refused instead of hanging on DNS.
		BackendHostname: "127.0.0.1:1",
		SendBufferSize:  64 * 1024,
		RecvBufferSize:  64 * 1024,
		ProcessorCount:  1,
		AdminAddress:    "127.0.0.1:0",
		InstanceID:      "test-instance",
	}
}

func TestNewOpensWorkerSocketsAndClosesCleanly(t *testing.T) {
	r, err := New(testConfig(t), testLogger())
	require.NoError(t, err)
	require.Len(t, r.sockets, 1)
	require.NoError(t, r.Close())
}

// TestRunStopsOnContextCancellation exercises the full wiring: workers,
// controller and admin server all start, and every goroutine returns once
// ctx is cancelled, regardless of the controller's backend report failing.
func TestRunStopsOnContextCancellation(t *testing.T) {
	r, err := New(testConfig(t), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("relay did not stop after ctx cancellation")
	}
}
