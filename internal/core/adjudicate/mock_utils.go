package adjudicate

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// MockLLMClient replays scripted responses. Entries of Errs take precedence
// over Responses for the same call index; after both run out Response and Err
// are used.
type MockLLMClient struct {
	Response  string
	Err       error
	Responses []string
	Errs      []error
	// Delay blocks each call until it elapses or ctx is done.
	Delay time.Duration

	mu      sync.Mutex
	calls   int
	Prompts []string

	inFlight    atomic.Int32
	MaxInFlight atomic.Int32
}

func (m *MockLLMClient) Generate(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	i := m.calls
	m.calls++
	m.Prompts = append(m.Prompts, prompt)
	m.mu.Unlock()

	n := m.inFlight.Add(1)
	defer m.inFlight.Add(-1)
	for {
		cur := m.MaxInFlight.Load()
		if n <= cur || m.MaxInFlight.CompareAndSwap(cur, n) {
			break
		}
	}

	if m.Delay > 0 {
		timer := time.NewTimer(m.Delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	if i < len(m.Errs) && m.Errs[i] != nil {
		return "", m.Errs[i]
	}
	if i < len(m.Responses) {
		return m.Responses[i], nil
	}
	if m.Err != nil {
		return "", m.Err
	}
	return m.Response, nil
}

func (m *MockLLMClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
