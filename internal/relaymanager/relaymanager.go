// Package relaymanager tracks the dynamic set of peer relays a relay pings,
// rebuilding that set on every backend update while preserving ping history
// for relays that survive the rebuild.
package relaymanager

import (
	"sync"

	"go4.org/netipx"

	"github.com/networknext/relay/internal/pinghistory"
	"github.com/networknext/relay/internal/wire"
)

// MaxRelays bounds the number of peer relays tracked at once.
const MaxRelays = 1024

// PingTime is the minimum interval between pings to the same relay.
const PingTime = 0.1 // seconds

// Info describes one relay as reported by the backend.
type Info struct {
	ID      uint64
	Address wire.Address
}

// relay is the manager's internal per-relay bookkeeping.
type relay struct {
	id           uint64
	address      wire.Address
	lastPingTime float64
	history      *pinghistory.History
}

// PingTarget is returned by GetPingData: a relay due for another ping.
type PingTarget struct {
	Sequence uint64
	Address  wire.Address
}

// Stats is a point-in-time snapshot of every tracked relay's id and route
// stats, in the same order the relays were last updated.
type Stats struct {
	IDs   []uint64
	Route []pinghistory.Stats
}

// Manager holds the current relay set and its ping histories. All methods
// are safe for concurrent use. Update swaps the whole set atomically under
// the write lock; GetPingData and HandlePong also take the write lock,
// since they mutate per-relay ping state, while GetStats and Count read
// under the read lock.
type Manager struct {
	mu     sync.RWMutex
	relays []relay
}

// New returns an empty Manager.
func New() *Manager {
	return &Manager{}
}

// Update rebuilds the tracked relay set from infos, skipping any entry
// whose address is unspecified or multicast (not a real peer relay's
// routable unicast endpoint). For every relay id that was already tracked,
// its ping history carries over into the new slot; ids not present in
// infos are dropped and new ids start with a fresh history. The resulting
// set's order matches infos' order, minus any rejected entries.
func (m *Manager) Update(infos []Info) {
	if len(infos) > MaxRelays {
		infos = infos[:MaxRelays]
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	previous := make(map[uint64]*relay, len(m.relays))
	for i := range m.relays {
		previous[m.relays[i].id] = &m.relays[i]
	}

	next := make([]relay, 0, len(infos))
	for _, info := range infos {
		if !validRelayAddress(info.Address) {
			continue
		}
		if old, ok := previous[info.ID]; ok {
			next = append(next, relay{id: info.ID, address: info.Address, lastPingTime: old.lastPingTime, history: old.history})
		} else {
			next = append(next, relay{id: info.ID, address: info.Address, history: pinghistory.New()})
		}
	}

	m.relays = next
}

// validRelayAddress rejects the unspecified and multicast address ranges:
// neither can be a real peer relay's unicast ping endpoint.
func validRelayAddress(addr wire.Address) bool {
	udp := addr.UDPAddr()
	if udp == nil {
		return false
	}
	ip, ok := netipx.FromStdIP(udp.IP)
	if !ok {
		return false
	}
	return !ip.IsUnspecified() && !ip.IsMulticast()
}

// GetPingData returns a ping target for every relay whose lastPingTime is
// at least PingTime behind now, marking each as pinged at now.
func (m *Manager) GetPingData(now float64) []PingTarget {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]PingTarget, 0, len(m.relays))
	for i := range m.relays {
		r := &m.relays[i]
		if now-r.lastPingTime < PingTime {
			continue
		}
		seq := r.history.PingSent(now)
		r.lastPingTime = now
		out = append(out, PingTarget{Sequence: seq, Address: r.address})
	}
	return out
}

// HandlePong records a pong received from fromAddr with the given sequence,
// matching it against the relay whose address equals fromAddr. Takes the
// write lock, not RLock: PongReceived mutates the matched relay's history,
// and GetStats reads every history concurrently under RLock.
func (m *Manager) HandlePong(fromAddr wire.Address, sequence uint64, now float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.relays {
		if m.relays[i].address.Equal(fromAddr) {
			m.relays[i].history.PongReceived(sequence, now)
			return
		}
	}
}

// GetStats snapshots every tracked relay's id and route stats over the
// window [now-windowSeconds, now] with the given safety tail, preserving
// the manager's current relay order.
func (m *Manager) GetStats(now, windowSeconds, safety float64) Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := Stats{
		IDs:   make([]uint64, len(m.relays)),
		Route: make([]pinghistory.Stats, len(m.relays)),
	}
	for i := range m.relays {
		stats.IDs[i] = m.relays[i].id
		stats.Route[i] = pinghistory.Compute(m.relays[i].history, now-windowSeconds, now, safety)
	}
	return stats
}

// Count returns the number of relays currently tracked.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.relays)
}
