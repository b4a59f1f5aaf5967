package store

import (
	"context"
	"sort"
	"sync"

	"github.com/agenthands/contactsync/internal/core/model"
)

// MemoryStore keeps everything in process memory. Values are copied on the
// way in and out so callers never share state with the store.
type MemoryStore struct {
	mu         sync.RWMutex
	candidates map[string]*model.Candidate
	sessions   map[string]*model.Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		candidates: make(map[string]*model.Candidate),
		sessions:   make(map[string]*model.Session),
	}
}

func (m *MemoryStore) CreateCandidate(ctx context.Context, c *model.Candidate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.candidates[c.ID]; ok {
		return model.NewDuplicateError("candidate", c.ID)
	}
	m.candidates[c.ID] = cloneCandidate(c)
	return nil
}

func (m *MemoryStore) GetCandidate(ctx context.Context, id string) (*model.Candidate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.candidates[id]
	if !ok {
		return nil, model.NewNotFoundError("candidate", id)
	}
	return cloneCandidate(c), nil
}

func (m *MemoryStore) filtered(f model.CandidateFilter) []*model.Candidate {
	out := make([]*model.Candidate, 0)
	for _, c := range m.candidates {
		if matches(c, f) {
			out = append(out, c)
		}
	}
	return out
}

func (m *MemoryStore) ListCandidates(ctx context.Context, f model.CandidateFilter) ([]*model.Candidate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := m.filtered(f)
	sortCandidates(all)
	selected := page(all, f.Limit, f.Offset)
	out := make([]*model.Candidate, len(selected))
	for i, c := range selected {
		out[i] = cloneCandidate(c)
	}
	return out, nil
}

func (m *MemoryStore) CountCandidates(ctx context.Context, f model.CandidateFilter) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.filtered(f)), nil
}

func (m *MemoryStore) TransitionCandidate(ctx context.Context, id string, from model.Status, d model.Decision) (*model.Candidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.candidates[id]
	if !ok {
		return nil, model.NewNotFoundError("candidate", id)
	}
	if c.Status != from {
		return nil, model.NewConflictError("candidate", id, string(c.Status))
	}
	applyDecision(c, d)
	return cloneCandidate(c), nil
}

func (m *MemoryStore) Stats(ctx context.Context) (model.CandidateStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stats := newStats()
	for _, c := range m.candidates {
		stats.Total++
		stats.ByStatus[c.Status]++
		stats.ByConfidence[c.Confidence]++
	}
	return stats, nil
}

func (m *MemoryStore) CreateSession(ctx context.Context, s *model.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[s.ID]; ok {
		return model.NewDuplicateError("session", s.ID)
	}
	m.sessions[s.ID] = cloneSession(s)
	return nil
}

func (m *MemoryStore) SealSession(ctx context.Context, s *model.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.sessions[s.ID]
	if !ok {
		return model.NewNotFoundError("session", s.ID)
	}
	if cur.Sealed() {
		return &model.ConflictError{Resource: "session", ID: s.ID, Message: "already sealed"}
	}
	m.sessions[s.ID] = cloneSession(s)
	return nil
}

func (m *MemoryStore) GetSession(ctx context.Context, id string) (*model.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, model.NewNotFoundError("session", id)
	}
	return cloneSession(s), nil
}

func (m *MemoryStore) ListSessions(ctx context.Context, limit int) ([]*model.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*model.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, cloneSession(s))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return page(out, limit, 0), nil
}

func (m *MemoryStore) Close() error { return nil }
