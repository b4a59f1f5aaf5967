package lifecycle

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

type MockWriter struct {
	Err   error
	Delay time.Duration
	// OnUpdate runs after the write is recorded.
	OnUpdate func()

	mu       sync.Mutex
	Calls    []string
	Fields   []map[string]any
	inFlight map[string]int
	MaxPerID atomic.Int32
}

func (m *MockWriter) Update(ctx context.Context, identifier string, fields map[string]any) error {
	m.mu.Lock()
	if m.inFlight == nil {
		m.inFlight = make(map[string]int)
	}
	m.inFlight[identifier]++
	if n := int32(m.inFlight[identifier]); n > m.MaxPerID.Load() {
		m.MaxPerID.Store(n)
	}
	m.Calls = append(m.Calls, identifier)
	m.Fields = append(m.Fields, fields)
	m.mu.Unlock()

	if m.Delay > 0 {
		time.Sleep(m.Delay)
	}
	if m.OnUpdate != nil {
		m.OnUpdate()
	}

	m.mu.Lock()
	m.inFlight[identifier]--
	m.mu.Unlock()
	return m.Err
}

func (m *MockWriter) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
