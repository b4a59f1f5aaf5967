package store

import (
	"context"
	"sort"

	"github.com/agenthands/contactsync/internal/core/model"
)

// CandidateStore persists duplicate candidates.
type CandidateStore interface {
	CreateCandidate(ctx context.Context, c *model.Candidate) error
	GetCandidate(ctx context.Context, id string) (*model.Candidate, error)
	// ListCandidates orders by similarity score descending, then creation time.
	ListCandidates(ctx context.Context, filter model.CandidateFilter) ([]*model.Candidate, error)
	CountCandidates(ctx context.Context, filter model.CandidateFilter) (int, error)
	// TransitionCandidate applies d only while the candidate is in status from.
	// It returns a NotFoundError or ConflictError otherwise.
	TransitionCandidate(ctx context.Context, id string, from model.Status, d model.Decision) (*model.Candidate, error)
	Stats(ctx context.Context) (model.CandidateStats, error)
}

// SessionStore persists batch sessions.
type SessionStore interface {
	CreateSession(ctx context.Context, s *model.Session) error
	// SealSession stores the final counts once; a second seal is a ConflictError.
	SealSession(ctx context.Context, s *model.Session) error
	GetSession(ctx context.Context, id string) (*model.Session, error)
	// ListSessions returns the newest sessions first.
	ListSessions(ctx context.Context, limit int) ([]*model.Session, error)
}

type Store interface {
	CandidateStore
	SessionStore
	Close() error
}

const DefaultListLimit = 50

func newStats() model.CandidateStats {
	return model.CandidateStats{
		ByStatus:     make(map[model.Status]int),
		ByConfidence: make(map[model.Confidence]int),
	}
}

func sortCandidates(cs []*model.Candidate) {
	sort.SliceStable(cs, func(i, j int) bool {
		if cs[i].SimilarityScore != cs[j].SimilarityScore {
			return cs[i].SimilarityScore > cs[j].SimilarityScore
		}
		if !cs[i].CreatedAt.Equal(cs[j].CreatedAt) {
			return cs[i].CreatedAt.Before(cs[j].CreatedAt)
		}
		return cs[i].ID < cs[j].ID
	})
}

func matches(c *model.Candidate, f model.CandidateFilter) bool {
	if f.Status != "" && c.Status != f.Status {
		return false
	}
	if f.Confidence != "" && c.Confidence != f.Confidence {
		return false
	}
	return true
}

func page[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func cloneCandidate(c *model.Candidate) *model.Candidate {
	out := *c
	out.SourceRecordA = c.SourceRecordA.Clone()
	out.SourceRecordB = c.SourceRecordB.Clone()
	out.UpdateData = c.UpdateData.Clone()
	out.MatchingFields = append([]string{}, c.MatchingFields...)
	out.ConflictingFields = append([]string{}, c.ConflictingFields...)
	if c.DecidedAt != nil {
		t := *c.DecidedAt
		out.DecidedAt = &t
	}
	return &out
}

func cloneSession(s *model.Session) *model.Session {
	out := *s
	if s.EndedAt != nil {
		t := *s.EndedAt
		out.EndedAt = &t
	}
	return &out
}

func applyDecision(c *model.Candidate, d model.Decision) {
	c.Status = d.Status
	c.DecisionNotes = d.Notes
	c.UpdateData = d.UpdateData.Clone()
	t := d.DecidedAt
	c.DecidedAt = &t
}
