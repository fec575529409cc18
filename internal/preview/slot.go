package preview

import "sync"

// slot is a per-client mailbox with sync.Cond blocking semantics.
//
// Architecture:
//   - Single-slot buffer (msg)
//   - Overwrite policy (new frame replaces an unsent one)
//   - Blocking consume (cond.Wait)
//   - Drop tracking (totalDrops)
//
// Thread-safety:
//   - put: called by Hub.Publish on the render goroutine
//   - next: called by the client's writer goroutine (single consumer)
type slot struct {
	mu   sync.Mutex
	cond *sync.Cond
	msg  []byte // nil = consumed

	lastSeq    uint64
	totalDrops uint64

	closed bool
}

func newSlot() *slot {
	s := &slot{}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// put overwrites the pending message. O(1), never blocks on the consumer.
func (s *slot) put(seq uint64, msg []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	if s.msg != nil {
		s.totalDrops++
	}
	s.msg = msg
	s.lastSeq = seq
	s.cond.Signal()
}

// next blocks until a message is pending or the slot is closed.
// Returns ok=false once closed.
func (s *slot) next() ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for s.msg == nil && !s.closed {
		s.cond.Wait()
	}
	if s.closed {
		return nil, false
	}

	msg := s.msg
	s.msg = nil
	return msg, true
}

// close wakes the consumer. Idempotent.
func (s *slot) close() {
	s.mu.Lock()
	s.closed = true
	s.cond.Broadcast()
	s.mu.Unlock()
}

func (s *slot) dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalDrops
}
