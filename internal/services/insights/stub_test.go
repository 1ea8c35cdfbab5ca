package insights

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bobmcallan/vire-insights/internal/models"
)

// stubCompletion replays scripted replies in call order and records every request.
type stubCompletion struct {
	mu       sync.Mutex
	replies  []stubReply
	requests []models.CompletionRequest

	// gate, when set, blocks the first call until closed; started is signalled on entry.
	gate    chan struct{}
	started chan struct{}
}

type stubReply struct {
	text string
	err  error
}

func (s *stubCompletion) Complete(ctx context.Context, req models.CompletionRequest) (*models.CompletionResponse, error) {
	s.mu.Lock()
	n := len(s.requests)
	s.requests = append(s.requests, req)
	var reply stubReply
	switch {
	case n < len(s.replies):
		reply = s.replies[n]
	case len(s.replies) > 0:
		reply = s.replies[len(s.replies)-1]
	default:
		reply = stubReply{err: errors.New("no scripted reply")}
	}
	gate := s.gate
	s.mu.Unlock()

	if n == 0 && gate != nil {
		s.started <- struct{}{}
		<-gate
	}

	if reply.err != nil {
		return nil, reply.err
	}
	return &models.CompletionResponse{Text: reply.text, TokensUsed: 123, ModelVersion: "stub-001"}, nil
}

func (s *stubCompletion) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func (s *stubCompletion) last() models.CompletionRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[len(s.requests)-1]
}

// blockingCompletion waits for the context to end.
type blockingCompletion struct{}

func (blockingCompletion) Complete(ctx context.Context, _ models.CompletionRequest) (*models.CompletionResponse, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

// codedStubError mimics a client error carrying a structured service body.
type codedStubError struct {
	code string
	raw  string
}

func (e *codedStubError) Error() string      { return "service error: " + e.code }
func (e *codedStubError) ErrorCode() string  { return e.code }
func (e *codedStubError) RawPayload() string { return e.raw }

// stubPositions serves a fixed position list per user.
type stubPositions struct {
	mu        sync.Mutex
	positions map[string][]models.Position
	err       error
	delay     time.Duration
}

func (s *stubPositions) ListPositions(_ context.Context, userID string) ([]models.Position, error) {
	time.Sleep(s.delay)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.positions[userID], nil
}

func (s *stubPositions) set(userID string, positions []models.Position) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions[userID] = positions
}

func annotationsJSON(items ...string) string {
	out := `{"annotations":[`
	for i, it := range items {
		if i > 0 {
			out += ","
		}
		out += it
	}
	return out + `]}`
}

func itemJSON(symbol, action string) string {
	return `{"symbol":"` + symbol + `","thesis":"` + symbol + ` thesis","risks":["risk"],"action":"` + action + `","signals":{"valuation":"fair","momentum":"neutral","quality":"medium"}}`
}
