// Package pinghistory implements the fixed 256-entry ping/pong ring used to
// probe neighbour relays, and the RouteStats (RTT/jitter/packet-loss)
// computed from it over a time window.
package pinghistory

import "math"

// EntryCount is the number of ring slots in a PingHistory.
const EntryCount = 256

// InvalidSequence marks an unused entry.
const InvalidSequence = ^uint64(0)

// Entry is one ping/pong record. A time < 0 means "not recorded".
type Entry struct {
	Sequence        uint64
	TimePingSent    float64
	TimePongReceived float64
}

// History is a fixed ring of recent pings plus a monotonically increasing
// sequence counter.
type History struct {
	sequence uint64
	entries  [EntryCount]Entry
}

// New returns a History with every entry marked unused.
func New() *History {
	h := &History{}
	for i := range h.entries {
		h.entries[i] = Entry{Sequence: InvalidSequence, TimePingSent: -1, TimePongReceived: -1}
	}
	return h
}

// PingSent records a ping sent at time t, returning its assigned sequence.
func (h *History) PingSent(t float64) uint64 {
	index := h.sequence % EntryCount
	h.entries[index] = Entry{Sequence: h.sequence, TimePingSent: t, TimePongReceived: -1}
	seq := h.sequence
	h.sequence++
	return seq
}

// PongReceived records a pong at time t for sequence seq. It is a no-op if
// the ring slot has since been overwritten by a later ping (stale pong).
func (h *History) PongReceived(seq uint64, t float64) {
	index := seq % EntryCount
	entry := &h.entries[index]
	if entry.Sequence == seq {
		entry.TimePongReceived = t
	}
}

// Entry returns a copy of the ring slot at the given index (0..EntryCount),
// primarily for tests.
func (h *History) Entry(index int) Entry {
	return h.entries[index]
}

// Stats is the RTT/jitter/packet-loss summary computed from a History over
// a [start, end] window with a trailing "safety" margin applied only to the
// packet-loss denominator (spec.md §4.3).
type Stats struct {
	RTT        float32
	Jitter     float32
	PacketLoss float32
}

// Compute walks the ring once and derives RTT, jitter and packet loss for
// the window [start, end], excluding the trailing `safety` seconds from the
// packet-loss sample set (in-flight pings that haven't had time to reply
// yet shouldn't count as losses).
func Compute(h *History, start, end, safety float64) Stats {
	var lossSent, lossReceived int

	var rttSum float64
	var rttCount int
	rtts := make([]float64, 0, EntryCount)

	lossEnd := end - safety

	for i := 0; i < EntryCount; i++ {
		e := h.entries[i]
		if e.Sequence == InvalidSequence || e.TimePingSent < 0 {
			continue
		}

		if e.TimePingSent >= start && e.TimePingSent <= lossEnd {
			lossSent++
			if e.TimePongReceived >= e.TimePingSent {
				lossReceived++
			}
		}

		if e.TimePingSent >= start && e.TimePingSent <= end {
			if e.TimePongReceived > e.TimePingSent {
				rtt := 1000.0 * (e.TimePongReceived - e.TimePingSent)
				rtts = append(rtts, rtt)
				rttSum += rtt
				rttCount++
			}
		}
	}

	var stats Stats

	if lossSent == 0 {
		stats.PacketLoss = -1
	} else {
		stats.PacketLoss = float32(100 * (1 - float64(lossReceived)/float64(lossSent)))
	}

	var meanRTT float64
	if rttCount == 0 {
		meanRTT = 10000
		stats.RTT = 10000
	} else {
		meanRTT = rttSum / float64(rttCount)
		stats.RTT = float32(meanRTT)
	}

	var varianceSum float64
	var jitterCount int
	for _, rtt := range rtts {
		if rtt >= meanRTT {
			d := rtt - meanRTT
			varianceSum += d * d
			jitterCount++
		}
	}
	if jitterCount == 0 {
		stats.Jitter = -1
	} else {
		stddev := math.Sqrt(varianceSum / float64(jitterCount))
		stats.Jitter = float32(3 * stddev)
	}

	return stats
}
