package relaymanager

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/networknext/relay/internal/wire"
)

func makeInfos(n int) []Info {
	infos := make([]Info, n)
	for i := 0; i < n; i++ {
		addr := wire.Address{Kind: wire.AddressIPv4, Port: uint16(40000 + i)}
		addr.Bytes[0], addr.Bytes[1], addr.Bytes[2], addr.Bytes[3] = 10, 0, 0, 1
		infos[i] = Info{ID: uint64(i), Address: addr}
	}
	return infos
}

func TestRelayManagerStartsEmpty(t *testing.T) {
	m := New()
	stats := m.GetStats(0, 10, 0)
	require.Empty(t, stats.IDs)
}

func TestRelayManagerAddAndRemoveAll(t *testing.T) {
	m := New()
	all := makeInfos(32)

	m.Update(all)
	require.Equal(t, 32, m.Count())

	m.Update(nil)
	require.Equal(t, 0, m.Count())
}

func TestRelayManagerOrderingPreservedAcrossRepeatedUpdates(t *testing.T) {
	m := New()
	all := makeInfos(32)

	for i := 0; i < 2; i++ {
		m.Update(all)
		stats := m.GetStats(0, 10, 0)
		require.Len(t, stats.IDs, 32)
		for i, info := range all {
			require.Equal(t, info.ID, stats.IDs[i])
		}
	}
}

func TestRelayManagerPartialOverlapPreservesOrderAndHistory(t *testing.T) {
	m := New()
	all := makeInfos(32)
	m.Update(all)

	// Ping every relay (relay 4 included) so each has ping history before
	// the partial update.
	m.GetPingData(1000.0)

	overlap := all[4:]
	m.Update(overlap)

	stats := m.GetStats(1000, 10, 0)
	require.Len(t, stats.IDs, len(overlap))
	for i, info := range overlap {
		require.Equal(t, info.ID, stats.IDs[i])
	}

	// The surviving relay's history should show the earlier ping: a second
	// GetPingData too soon afterwards should not re-ping it.
	targets := m.GetPingData(1000.01)
	for _, target := range targets {
		require.NotEqual(t, overlap[0].Address, target.Address)
	}
}

func TestRelayManagerUpdateRejectsUnspecifiedAndMulticastAddresses(t *testing.T) {
	m := New()

	var unspecified, multicast, valid wire.Address
	unspecified.Kind = wire.AddressIPv4 // Bytes left zero: 0.0.0.0

	multicast.Kind = wire.AddressIPv4
	multicast.Bytes[0], multicast.Bytes[1], multicast.Bytes[2], multicast.Bytes[3] = 239, 0, 0, 1

	valid.Kind = wire.AddressIPv4
	valid.Bytes[0], valid.Bytes[1], valid.Bytes[2], valid.Bytes[3] = 10, 0, 0, 1

	m.Update([]Info{
		{ID: 1, Address: unspecified},
		{ID: 2, Address: multicast},
		{ID: 3, Address: valid},
	})

	require.Equal(t, 1, m.Count())
	stats := m.GetStats(0, 10, 0)
	require.Equal(t, []uint64{3}, stats.IDs)
}

func TestRelayManagerHandlePongMatchesByAddress(t *testing.T) {
	m := New()
	infos := makeInfos(4)
	m.Update(infos)

	targets := m.GetPingData(100.0)
	require.Len(t, targets, 4)

	target := targets[0]
	m.HandlePong(target.Address, target.Sequence, 100.05)

	stats := m.GetStats(100.05, 1, 0)
	require.InDelta(t, 50.0, float64(stats.Route[0].RTT), 49.0)
}
