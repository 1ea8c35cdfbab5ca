package insights

import "sync"

// Sequencer fences overlapping pipeline runs for the same key. Each run takes a token at start
// and releases it with Done when it finishes. A result may be written only if no run with a newer
// token has already written one.
type Sequencer struct {
	mu   sync.Mutex
	next uint64
	keys map[string]*sequenceState
}

type sequenceState struct {
	latest   uint64
	applied  uint64
	inflight int
}

// NewSequencer creates an empty Sequencer
func NewSequencer() *Sequencer {
	return &Sequencer{keys: make(map[string]*sequenceState)}
}

// Issue returns a new token for key. Tokens increase monotonically across all keys.
// Every Issue must be paired with a Done.
func (s *Sequencer) Issue(key string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	st := s.keys[key]
	if st == nil {
		st = &sequenceState{}
		s.keys[key] = st
	}
	st.latest = s.next
	st.inflight++
	return s.next
}

// Apply runs fn unless a result with a token at or above seq has already been applied for key.
// It reports whether fn ran. fn runs under the sequencer lock, so two results for one key are
// never written at the same time.
func (s *Sequencer) Apply(key string, seq uint64, fn func() error) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.keys[key]
	if st != nil && seq <= st.applied {
		return false, nil
	}
	if err := fn(); err != nil {
		return true, err
	}
	if st != nil {
		st.applied = seq
	}
	return true, nil
}

// Done marks one run for key as finished, whether it applied a result or not. State for the key
// is dropped once no run is in flight, since no older result can arrive after that.
func (s *Sequencer) Done(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.keys[key]
	if st == nil {
		return
	}
	st.inflight--
	if st.inflight <= 0 {
		delete(s.keys, key)
	}
}

// Latest returns the most recent token issued for key while runs are in flight, or zero.
func (s *Sequencer) Latest(key string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st := s.keys[key]; st != nil {
		return st.latest
	}
	return 0
}

// Tracked returns the number of keys with runs in flight.
func (s *Sequencer) Tracked() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.keys)
}
