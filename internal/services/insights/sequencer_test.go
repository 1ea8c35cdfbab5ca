package insights

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequencer_LatestApplies(t *testing.T) {
	s := NewSequencer()
	seq := s.Issue("k")

	ran := false
	applied, err := s.Apply("k", seq, func() error { ran = true; return nil })
	require.NoError(t, err)
	assert.True(t, applied)
	assert.True(t, ran)
}

func TestSequencer_OlderAppliesWhileNewerInFlight(t *testing.T) {
	s := NewSequencer()
	older := s.Issue("k")
	newer := s.Issue("k")
	assert.Greater(t, newer, older)

	// The newer run has not written anything, so the older result is still the best available.
	applied, err := s.Apply("k", older, func() error { return nil })
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = s.Apply("k", newer, func() error { return nil })
	require.NoError(t, err)
	assert.True(t, applied)
}

func TestSequencer_StaleAfterNewerApplied(t *testing.T) {
	s := NewSequencer()
	older := s.Issue("k")
	newer := s.Issue("k")

	applied, _ := s.Apply("k", newer, func() error { return nil })
	require.True(t, applied)

	applied, _ = s.Apply("k", older, func() error { return nil })
	assert.False(t, applied)

	applied, _ = s.Apply("k", newer, func() error { return nil })
	assert.False(t, applied, "a token applies once")
}

func TestSequencer_KeysIndependent(t *testing.T) {
	s := NewSequencer()
	a := s.Issue("a")
	s.Issue("b")

	applied, _ := s.Apply("a", a, func() error { return nil })
	assert.True(t, applied)
	assert.Equal(t, uint64(0), s.Latest("c"))
}

func TestSequencer_WriteErrorReported(t *testing.T) {
	s := NewSequencer()
	seq := s.Issue("k")
	boom := errors.New("boom")

	applied, err := s.Apply("k", seq, func() error { return boom })
	assert.True(t, applied)
	assert.ErrorIs(t, err, boom)

	// A failed write does not consume the token.
	applied, err = s.Apply("k", seq, func() error { return nil })
	assert.True(t, applied)
	assert.NoError(t, err)
}

func TestSequencer_ConcurrentIssueUnique(t *testing.T) {
	s := NewSequencer()
	var mu sync.Mutex
	seen := map[uint64]bool{}

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			seq := s.Issue("k")
			mu.Lock()
			seen[seq] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 100)
	assert.Equal(t, uint64(100), s.Latest("k"))
}

func TestSequencer_DoneReleasesKey(t *testing.T) {
	s := NewSequencer()
	first := s.Issue("k")
	second := s.Issue("k")
	s.Issue("other")
	assert.Equal(t, 2, s.Tracked())

	applied, _ := s.Apply("k", second, func() error { return nil })
	require.True(t, applied)
	s.Done("k")

	// The older run is still in flight: state is kept so it cannot overwrite the newer result.
	assert.Equal(t, 2, s.Tracked())
	applied, _ = s.Apply("k", first, func() error { t.Fatal("stale result must not be written"); return nil })
	assert.False(t, applied)
	s.Done("k")

	assert.Equal(t, 1, s.Tracked())
	assert.Equal(t, uint64(0), s.Latest("k"))

	// A failed run that never applies still releases its key.
	s.Done("other")
	assert.Equal(t, 0, s.Tracked())
	s.Done("missing")
}
