package session

import (
	"sync"
	"sync/atomic"
)

// shardCount is the number of lock stripes the table splits sessions
// across. Each shard owns an independent mutex and map so that worker
// threads reading disjoint sessions rarely contend.
const shardCount = 64

type shard struct {
	mu       sync.RWMutex
	sessions map[uint64]*Session
}

// Table is the concurrent mapping from session hash to Session shared by
// every worker thread. Inserting, overwriting or erasing a session updates
// the running envelope totals atomically within the same shard lock that
// guards the map mutation, so a snapshot reader never observes totals that
// are inconsistent with the map contents.
type Table struct {
	shards [shardCount]shard

	envelopeUp   atomic.Int64
	envelopeDown atomic.Int64
	count        atomic.Int64
}

// NewTable constructs an empty Table.
func NewTable() *Table {
	t := &Table{}
	for i := range t.shards {
		t.shards[i].sessions = make(map[uint64]*Session)
	}
	return t
}

func (t *Table) shardFor(hash uint64) *shard {
	return &t.shards[hash%shardCount]
}

// Get returns the session for hash and whether it was present.
func (t *Table) Get(hash uint64) (*Session, bool) {
	s := t.shardFor(hash)
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[hash]
	return sess, ok
}

// Set inserts or overwrites the session at hash, adjusting the envelope
// totals by the delta between the new and any previous session's
// kbps_up/kbps_down.
func (t *Table) Set(hash uint64, sess *Session) {
	s := t.shardFor(hash)
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, existed := s.sessions[hash]
	s.sessions[hash] = sess

	if existed {
		t.envelopeUp.Add(int64(sess.KbpsUp) - int64(prev.KbpsUp))
		t.envelopeDown.Add(int64(sess.KbpsDown) - int64(prev.KbpsDown))
	} else {
		t.envelopeUp.Add(int64(sess.KbpsUp))
		t.envelopeDown.Add(int64(sess.KbpsDown))
		t.count.Add(1)
	}
}

// Erase removes the session at hash, if present, adjusting the envelope
// totals accordingly. It reports whether a session was removed.
func (t *Table) Erase(hash uint64) bool {
	s := t.shardFor(hash)
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, existed := s.sessions[hash]
	if !existed {
		return false
	}
	delete(s.sessions, hash)
	t.envelopeUp.Add(-int64(prev.KbpsUp))
	t.envelopeDown.Add(-int64(prev.KbpsDown))
	t.count.Add(-1)
	return true
}

// Size returns the total number of sessions across all shards.
func (t *Table) Size() int {
	return int(t.count.Load())
}

// EnvelopeUpTotal returns the current sum of kbps_up over all sessions.
func (t *Table) EnvelopeUpTotal() int64 {
	return t.envelopeUp.Load()
}

// EnvelopeDownTotal returns the current sum of kbps_down over all sessions.
func (t *Table) EnvelopeDownTotal() int64 {
	return t.envelopeDown.Load()
}

// Purge removes every session whose expire_timestamp + grace has passed
// now, returning the number of sessions removed. It locks one shard at a
// time, so concurrent Get calls on other shards are unaffected.
func (t *Table) Purge(now uint64, grace uint64) int {
	removed := 0
	for i := range t.shards {
		s := &t.shards[i]
		s.mu.Lock()
		for hash, sess := range s.sessions {
			if sess.Expired(now, grace) {
				delete(s.sessions, hash)
				t.envelopeUp.Add(-int64(sess.KbpsUp))
				t.envelopeDown.Add(-int64(sess.KbpsDown))
				t.count.Add(-1)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}
