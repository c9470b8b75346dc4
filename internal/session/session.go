// Package session implements the per-connection Session record and the
// concurrent, lock-striped SessionTable that worker threads share.
package session

import (
	"sync"

	"github.com/networknext/relay/internal/wire"
)

// ReplayWindowSize is the number of trailing sequence numbers tracked by
// each direction's replay bitmap.
const ReplayWindowSize = 256

// replayWindow is a sliding bitmap over the highest sequence seen in one
// direction. Bit `age` (0 = highwater itself) records whether sequence
// `highwater - age` has already been accepted. A sequence is accepted at
// most once.
type replayWindow struct {
	highwater uint64
	seen      bool
	bitmap    [ReplayWindowSize / 64]uint64
}

// Accept reports whether sequence seq is new (not yet seen, not too far
// behind the highwater mark) and, if so, marks it seen and advances the
// highwater mark.
func (w *replayWindow) Accept(seq uint64) bool {
	if !w.seen {
		w.seen = true
		w.highwater = seq
		w.bitmap = [ReplayWindowSize / 64]uint64{1}
		return true
	}

	if seq > w.highwater {
		shift := seq - w.highwater
		w.bitmap = shiftLeft(w.bitmap, shift)
		w.bitmap[0] |= 1
		w.highwater = seq
		return true
	}

	age := w.highwater - seq
	if age >= ReplayWindowSize {
		return false
	}
	word, bit := age/64, age%64
	if w.bitmap[word]&(1<<bit) != 0 {
		return false
	}
	w.bitmap[word] |= 1 << bit
	return true
}

// shiftLeft treats words as a little-endian 256-bit integer (word 0 holds
// the low bits, i.e. the smallest ages) and returns it shifted left by n
// bits, discarding anything that overflows past the top word.
func shiftLeft(words [ReplayWindowSize / 64]uint64, n uint64) [ReplayWindowSize / 64]uint64 {
	var out [ReplayWindowSize / 64]uint64
	if n >= ReplayWindowSize {
		return out
	}
	wordShift := int(n / 64)
	bitShift := n % 64
	for i := len(words) - 1; i >= 0; i-- {
		srcIdx := i - wordShift
		if srcIdx < 0 {
			continue
		}
		out[i] = words[srcIdx] << bitShift
		if bitShift != 0 && srcIdx >= 1 {
			out[i] |= words[srcIdx-1] >> (64 - bitShift)
		}
	}
	return out
}

// Session is the relay's view of one end-to-end client/server route. Its
// mutable runtime fields (replay windows, bandwidth buckets) are guarded by
// mu; the table's shard lock only protects the map itself.
type Session struct {
	SessionID       uint64
	SessionVersion  uint8
	ExpireTimestamp uint64
	KbpsUp          uint32
	KbpsDown        uint32
	PrevAddr        wire.Address
	NextAddr        wire.Address
	PrivateKey      [32]byte

	mu sync.Mutex

	clientToServerReplay replayWindow
	serverToClientReplay replayWindow

	upBucket   leakyBucket
	downBucket leakyBucket
}

// AcceptClientToServer applies replay protection to a client→server
// sequence, advancing the window on acceptance.
func (s *Session) AcceptClientToServer(seq uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clientToServerReplay.Accept(seq)
}

// AcceptServerToClient applies replay protection to a server→client
// sequence, advancing the window on acceptance.
func (s *Session) AcceptServerToClient(seq uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.serverToClientReplay.Accept(seq)
}

// Expired reports whether the session's expire_timestamp (plus grace) has
// passed now.
func (s *Session) Expired(now uint64, grace uint64) bool {
	return now > s.ExpireTimestamp+grace
}

// ConsumeUp charges numBytes against the upstream envelope (KbpsUp),
// reporting whether the send stays within budget. ConsumeDown is the
// downstream counterpart against KbpsDown.
func (s *Session) ConsumeUp(now float64, numBytes int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upBucket.consume(now, numBytes, s.KbpsUp)
}

func (s *Session) ConsumeDown(now float64, numBytes int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.downBucket.consume(now, numBytes, s.KbpsDown)
}

// leakyBucket counts bytes in a fixed 1-second window, which restarts at the
// first send after the previous window has elapsed, and rejects sends that
// would push the window's total over the envelope's kbps limit.
type leakyBucket struct {
	windowStart float64
	bytes       int
}

func (b *leakyBucket) consume(now float64, numBytes int, kbpsLimit uint32) bool {
	const windowSeconds = 1.0

	if now-b.windowStart >= windowSeconds {
		b.windowStart = now
		b.bytes = 0
	}

	limitBytes := int(kbpsLimit) * 1000 / 8
	if b.bytes+numBytes > limitBytes {
		return false
	}
	b.bytes += numBytes
	return true
}
