package packet

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSignedVocabulary(t *testing.T) {
	signed := []Type{RouteRequest, RouteResponse, ContinueRequest, ContinueResponse, RelayPing, RelayPong}
	for _, ty := range signed {
		require.True(t, ty.Signed(), "%s should be signed", ty)
	}

	unsigned := []Type{ClientToServer, ServerToClient, SessionPing, SessionPong, NearPing, NearPong}
	for _, ty := range unsigned {
		require.False(t, ty.Signed(), "%s should be unsigned", ty)
	}
}

func TestTypeStringCoversVocabulary(t *testing.T) {
	require.Equal(t, "route_request", RouteRequest.String())
	require.Equal(t, "near_pong", NearPong.String())
	require.Equal(t, "unknown", Type(200).String())
}

func TestPacketDataReflectsLength(t *testing.T) {
	var p Packet
	copy(p.Buffer[:], []byte{1, 2, 3, 4})
	p.Length = 3
	require.Equal(t, []byte{1, 2, 3}, p.Data())
}

func TestCounterAddIsConcurrencySafe(t *testing.T) {
	var c Counter
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Add(10)
		}()
	}
	wg.Wait()
	require.EqualValues(t, 100, c.Packets())
	require.EqualValues(t, 1000, c.Bytes())
}

func TestThroughputRecorderSnapshot(t *testing.T) {
	var r ThroughputRecorder
	r.RouteRequestRx.Add(64)
	r.UnknownRx.Add(12)

	snap := r.Snapshot()
	require.EqualValues(t, 1, snap.RouteRequestRx.Packets)
	require.EqualValues(t, 64, snap.RouteRequestRx.Bytes)
	require.EqualValues(t, 1, snap.UnknownRx.Packets)
	require.EqualValues(t, 12, snap.UnknownRx.Bytes)
}
