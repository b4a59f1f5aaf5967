package lifecycle

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/agenthands/contactsync/internal/config"
	"github.com/agenthands/contactsync/internal/core/cluster"
	"github.com/agenthands/contactsync/internal/core/merge"
	"github.com/agenthands/contactsync/internal/core/model"
	"github.com/agenthands/contactsync/internal/crm"
	"github.com/agenthands/contactsync/internal/metrics"
	"github.com/agenthands/contactsync/internal/store"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Manager owns candidate state transitions. Status only leaves pending
// through TransitionCandidate, and approval only after the CRM confirmed the
// write.
type Manager struct {
	store    store.CandidateStore
	writer   crm.Writer
	idKeys   []string
	profKeys []string
	mapping  merge.FieldMapping
	detector cluster.Detector
	locks    *keyLock
	metrics  *metrics.Metrics
	now      func() time.Time
	logger   zerolog.Logger
}

type Option func(*Manager)

// WithCRMSchema sets the snapshot keys that hold the CRM identifier.
func WithCRMSchema(schema config.SourceSchema) Option {
	return func(m *Manager) { m.idKeys = schema.ID }
}

// WithProfileSchema sets the snapshot keys that identify a profile.
func WithProfileSchema(schema config.SourceSchema) Option {
	return func(m *Manager) { m.profKeys = schema.ID }
}

func WithDetector(d cluster.Detector) Option {
	return func(m *Manager) { m.detector = d }
}

func WithMapping(fm merge.FieldMapping) Option {
	return func(m *Manager) { m.mapping = fm }
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func WithLogger(l zerolog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

func NewManager(st store.CandidateStore, w crm.Writer, opts ...Option) *Manager {
	m := &Manager{
		store:    st,
		writer:   w,
		idKeys:   config.DefaultCRMSchema().ID,
		profKeys: config.DefaultProfileSchema().ID,
		mapping:  merge.DefaultMapping(),
		detector: cluster.ComponentDetector{},
		locks:    newKeyLock(),
		now:      func() time.Time { return time.Now().UTC() },
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CreateParams describes a new candidate.
type CreateParams struct {
	SessionID         string
	SourceA           model.Record
	SourceB           model.Record
	Score             float64
	MatchingFields    []string
	ConflictingFields []string
	Confidence        model.Confidence
	Reasoning         string
	AIAssisted        bool
}

// Create validates p and stores a pending candidate.
func (m *Manager) Create(ctx context.Context, p CreateParams) (*model.Candidate, error) {
	if math.IsNaN(p.Score) || p.Score < 0 || p.Score > 1 {
		return nil, model.NewValidationError("similarity_score", p.Score, "must be within [0,1]")
	}
	if !p.Confidence.Valid() {
		return nil, model.NewValidationError("confidence", p.Confidence, "must be one of high, medium, low, none")
	}

	c := &model.Candidate{
		ID:                uuid.NewString(),
		SessionID:         p.SessionID,
		SourceRecordA:     p.SourceA.Clone(),
		SourceRecordB:     p.SourceB.Clone(),
		SimilarityScore:   p.Score,
		MatchingFields:    append([]string{}, p.MatchingFields...),
		ConflictingFields: append([]string{}, p.ConflictingFields...),
		Confidence:        p.Confidence,
		Reasoning:         p.Reasoning,
		AIAssisted:        p.AIAssisted,
		Status:            model.StatusPending,
		CreatedAt:         m.now(),
	}
	if c.SourceRecordA == nil {
		c.SourceRecordA = model.Record{}
	}
	if c.SourceRecordB == nil {
		c.SourceRecordB = model.Record{}
	}
	if err := m.store.CreateCandidate(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to store candidate: %w", err)
	}
	return c, nil
}

func (m *Manager) Get(ctx context.Context, id string) (*model.Candidate, error) {
	return m.store.GetCandidate(ctx, id)
}

// List returns one page of candidates and the total matching the filter.
func (m *Manager) List(ctx context.Context, f model.CandidateFilter) ([]*model.Candidate, int, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, 0, model.NewValidationError("status", f.Status, "unknown status")
	}
	if f.Confidence != "" && !f.Confidence.Valid() {
		return nil, 0, model.NewValidationError("confidence", f.Confidence, "unknown confidence")
	}
	if f.Limit < 0 || f.Offset < 0 {
		return nil, 0, model.NewValidationError("limit", f.Limit, "limit and offset must not be negative")
	}
	if f.Limit == 0 {
		f.Limit = store.DefaultListLimit
	}
	items, err := m.store.ListCandidates(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	total, err := m.store.CountCandidates(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (m *Manager) Stats(ctx context.Context) (model.CandidateStats, error) {
	return m.store.Stats(ctx)
}

// ProposeUpdates computes the CRM fields the profile snapshot would change.
func (m *Manager) ProposeUpdates(ctx context.Context, id string) (map[string]any, error) {
	c, err := m.store.GetCandidate(ctx, id)
	if err != nil {
		return nil, err
	}
	return merge.Propose(c.SourceRecordA, c.SourceRecordB, m.mapping), nil
}

// Clusters groups the candidates in status that share a profile or a CRM
// contact. An empty status means pending.
func (m *Manager) Clusters(ctx context.Context, status model.Status) ([]cluster.Group, error) {
	if status == "" {
		status = model.StatusPending
	}
	if !status.Valid() {
		return nil, model.NewValidationError("status", status, "unknown status")
	}

	const page = 500
	var all []*model.Candidate
	for offset := 0; ; offset += page {
		items, err := m.store.ListCandidates(ctx, model.CandidateFilter{Status: status, Limit: page, Offset: offset})
		if err != nil {
			return nil, err
		}
		all = append(all, items...)
		if len(items) < page {
			break
		}
	}

	profileID := func(c *model.Candidate) string { return c.SourceRecordA.String(m.profKeys...) }
	return cluster.Build(all, profileID, m.CRMIdentifier, m.detector), nil
}

// CRMIdentifier returns the CRM record id held in the candidate's B snapshot.
func (m *Manager) CRMIdentifier(c *model.Candidate) string {
	return c.SourceRecordB.String(m.idKeys...)
}

func (m *Manager) lockKey(c *model.Candidate) string {
	if id := m.CRMIdentifier(c); id != "" {
		return "crm:" + id
	}
	return "candidate:" + c.ID
}

// Approve writes updates to the CRM and then marks the candidate approved.
// A nil updates map applies the proposed updates; an empty one approves
// without touching the CRM. If the write fails the candidate stays pending
// and an ExternalWriteError is returned.
func (m *Manager) Approve(ctx context.Context, id string, updates map[string]any, notes string) (*model.Candidate, error) {
	c, err := m.store.GetCandidate(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Status != model.StatusPending {
		return nil, model.NewConflictError("candidate", id, string(c.Status))
	}
	crmID := m.CRMIdentifier(c)
	if crmID == "" {
		return nil, model.NewValidationError("source_record_b", nil, "crm identifier missing from contact snapshot")
	}
	for k := range updates {
		if k == "" {
			return nil, model.NewValidationError("updates", updates, "field names must not be empty")
		}
	}

	unlock := m.locks.Lock(m.lockKey(c))
	defer unlock()

	// Another decision may have landed while waiting for the lock.
	c, err = m.store.GetCandidate(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Status != model.StatusPending {
		return nil, model.NewConflictError("candidate", id, string(c.Status))
	}

	if updates == nil {
		updates = merge.Propose(c.SourceRecordA, c.SourceRecordB, m.mapping)
	}
	if len(updates) > 0 {
		if err := m.writer.Update(ctx, crmID, updates); err != nil {
			m.logger.Warn().Err(err).Str("candidate", id).Str("contact", crmID).Msg("crm update failed, candidate left pending")
			return nil, &model.ExternalWriteError{Identifier: crmID, Err: err}
		}
	}

	// The CRM already holds the update; record it even if the caller went away.
	out, err := m.store.TransitionCandidate(context.WithoutCancel(ctx), id, model.StatusPending, model.Decision{
		Status:     model.StatusApproved,
		Notes:      notes,
		UpdateData: model.Record(updates),
		DecidedAt:  m.now(),
	})
	if err != nil {
		m.logger.Error().Err(err).Str("candidate", id).Str("contact", crmID).Msg("crm updated but approval not recorded")
		return nil, fmt.Errorf("failed to record approval: %w", err)
	}
	m.metrics.Decided(string(model.StatusApproved))
	m.logger.Info().Str("candidate", id).Str("contact", crmID).Int("fields", len(updates)).Msg("candidate approved")
	return out, nil
}

func (m *Manager) Reject(ctx context.Context, id, reason string) (*model.Candidate, error) {
	return m.decide(ctx, id, model.StatusRejected, reason)
}

func (m *Manager) Flag(ctx context.Context, id, reason string) (*model.Candidate, error) {
	return m.decide(ctx, id, model.StatusFlagged, reason)
}

// decide performs a transition without an external write. It takes the same
// lock as Approve so it cannot land between a CRM write and its approval.
func (m *Manager) decide(ctx context.Context, id string, to model.Status, notes string) (*model.Candidate, error) {
	c, err := m.store.GetCandidate(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Status != model.StatusPending {
		return nil, model.NewConflictError("candidate", id, string(c.Status))
	}

	unlock := m.locks.Lock(m.lockKey(c))
	defer unlock()

	out, err := m.store.TransitionCandidate(ctx, id, model.StatusPending, model.Decision{
		Status:    to,
		Notes:     notes,
		DecidedAt: m.now(),
	})
	if err != nil {
		return nil, err
	}
	m.metrics.Decided(string(to))
	m.logger.Info().Str("candidate", id).Str("status", string(to)).Msg("candidate decided")
	return out, nil
}
