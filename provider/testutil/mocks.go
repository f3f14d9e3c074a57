package testutil

import (
	"context"
	"errors"
	"sync"

	"seekchat/provider"
)

// MockAssembler streams scripted chunks with the same outcome rules as
// provider.Client.
type MockAssembler struct {
	// Chunks are emitted in order as accumulated partials.
	Chunks []string

	// BlockAfter > 0 stops after that many chunks and waits for the context
	// to be cancelled. Blocked is closed when the wait starts.
	BlockAfter int
	Blocked    chan struct{}

	// Fail ends the stream with OutcomeFailed after the chunks.
	Fail bool

	mu       sync.Mutex
	requests []provider.Request
}

func NewMockAssembler(chunks ...string) *MockAssembler {
	return &MockAssembler{
		Chunks:  chunks,
		Blocked: make(chan struct{}),
	}
}

// Blocking returns a mock that emits chunks and then waits for cancellation.
func Blocking(chunks ...string) *MockAssembler {
	m := NewMockAssembler(chunks...)
	m.Chunks = append(m.Chunks, "never sent")
	m.BlockAfter = len(chunks)
	return m
}

func (m *MockAssembler) Stream(ctx context.Context, req provider.Request) <-chan provider.Event {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	events := make(chan provider.Event, len(m.Chunks)+1)

	go func() {
		defer close(events)

		var acc string
		for i, chunk := range m.Chunks {
			if m.BlockAfter > 0 && i == m.BlockAfter {
				close(m.Blocked)
				<-ctx.Done()
				events <- provider.Event{Final: &provider.Result{Text: provider.CancelledNotice, Outcome: provider.OutcomeCancelled}}
				return
			}
			acc += chunk
			events <- provider.Event{Partial: acc}
		}

		switch {
		case m.Fail:
			events <- provider.Event{Final: &provider.Result{Text: provider.ErrorNotice, Outcome: provider.OutcomeFailed, Err: errors.New("mock failure")}}
		case errors.Is(ctx.Err(), context.Canceled):
			events <- provider.Event{Final: &provider.Result{Text: provider.CancelledNotice, Outcome: provider.OutcomeCancelled}}
		default:
			events <- provider.Event{Final: &provider.Result{Text: acc, Outcome: provider.OutcomeCompleted}}
		}
	}()

	return events
}

// Requests returns every request seen so far.
func (m *MockAssembler) Requests() []provider.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]provider.Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// LastRequest returns the most recent request, or a zero Request.
func (m *MockAssembler) LastRequest() provider.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return provider.Request{}
	}
	return m.requests[len(m.requests)-1]
}
