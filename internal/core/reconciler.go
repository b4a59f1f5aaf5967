package core

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/agenthands/contactsync/internal/config"
	"github.com/agenthands/contactsync/internal/core/adjudicate"
	"github.com/agenthands/contactsync/internal/core/classify"
	"github.com/agenthands/contactsync/internal/core/cluster"
	"github.com/agenthands/contactsync/internal/core/lifecycle"
	"github.com/agenthands/contactsync/internal/core/merge"
	"github.com/agenthands/contactsync/internal/core/model"
	"github.com/agenthands/contactsync/internal/core/normalize"
	"github.com/agenthands/contactsync/internal/core/similarity"
	"github.com/agenthands/contactsync/internal/crm"
	"github.com/agenthands/contactsync/internal/logging"
	"github.com/agenthands/contactsync/internal/metrics"
	"github.com/agenthands/contactsync/internal/sources"
	"github.com/agenthands/contactsync/internal/store"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Reconciler runs batches: every profile is compared with the contacts that
// share a blocking key, and pairs scoring at least MinScore become candidates.
type Reconciler struct {
	Profiles    *normalize.Normalizer
	Contacts    *normalize.Normalizer
	Scorer      *similarity.Scorer
	Adjudicator *adjudicate.Adjudicator // nil runs on rule-based confidence only
	Lifecycle   *lifecycle.Manager
	Sessions    store.SessionStore
	Metrics     *metrics.Metrics
	Batch       config.BatchConfig
	Logger      zerolog.Logger
	Now         func() time.Time
}

// NewReconciler wires a Reconciler from configuration. judge may be nil.
func NewReconciler(cfg *config.Config, st store.Store, writer crm.Writer, judge adjudicate.ReasoningService, m *metrics.Metrics, logger zerolog.Logger) *Reconciler {
	r := &Reconciler{
		Profiles: normalize.New(cfg.Schemas.Profile),
		Contacts: normalize.New(cfg.Schemas.CRM),
		Scorer:   similarity.NewScorer(cfg.Scoring),
		Lifecycle: lifecycle.NewManager(st, writer,
			lifecycle.WithCRMSchema(cfg.Schemas.CRM),
			lifecycle.WithProfileSchema(cfg.Schemas.Profile),
			lifecycle.WithDetector(cluster.NewDetector(cfg.Clusters.Method)),
			lifecycle.WithMapping(merge.FromConfig(cfg.Merge)),
			lifecycle.WithMetrics(m),
			lifecycle.WithLogger(logger),
		),
		Sessions: st,
		Metrics:  m,
		Batch:    cfg.Batch,
		Logger:   logger,
		Now:      func() time.Time { return time.Now().UTC() },
	}
	if judge != nil && cfg.Adjudication.Enabled {
		if cfg.Adjudication.CacheMinutes > 0 {
			judge = adjudicate.NewCachedService(judge, time.Duration(cfg.Adjudication.CacheMinutes)*time.Minute)
		}
		r.Adjudicator = adjudicate.NewFromConfig(judge, cfg.Adjudication, logger)
	}
	return r
}

type batchCounters struct {
	compared      atomic.Int64
	found         atomic.Int64
	approved      atomic.Int64
	rejected      atomic.Int64
	errored       atomic.Int64
	aiUnavailable atomic.Int64
}

// RunSources fetches both sides and runs a batch. A failed fetch still
// records a failed session.
func (r *Reconciler) RunSources(ctx context.Context, profiles, contacts sources.RecordSource) (*model.Session, error) {
	a, errA := profiles.Fetch(ctx)
	b, errB := contacts.Fetch(ctx)
	if errA == nil && errB == nil {
		return r.Run(ctx, a, b)
	}

	err := errA
	if err == nil {
		err = errB
	}
	session := r.newSession(len(a), len(b))
	if cerr := r.Sessions.CreateSession(ctx, session); cerr != nil {
		return nil, fmt.Errorf("failed to create session: %w", cerr)
	}
	end := r.Now()
	session.EndedAt = &end
	session.Outcome = model.OutcomeFailed
	session.ErrorMessage = err.Error()
	if serr := r.Sessions.SealSession(context.WithoutCancel(ctx), session); serr != nil {
		r.Logger.Error().Err(serr).Str("session", session.ID).Msg("failed to seal session")
	}
	return session, fmt.Errorf("failed to fetch records: %w", err)
}

func (r *Reconciler) newSession(profiles, contacts int) *model.Session {
	return &model.Session{
		ID:            uuid.NewString(),
		ProfilesCount: profiles,
		ContactsCount: contacts,
		StartedAt:     r.Now(),
	}
}

// Run compares profiles against contacts. Per-pair failures are logged and
// counted without stopping the batch. Cancelling ctx stops scheduling new
// pairs; pairs already running finish. The returned session is sealed; the
// error is ctx.Err() after a cancellation.
func (r *Reconciler) Run(ctx context.Context, profiles, contacts []model.Record) (*model.Session, error) {
	session := r.newSession(len(profiles), len(contacts))
	if err := r.Sessions.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	logger := r.Logger.With().Str("session", session.ID).Logger()
	ctx = logging.WithLogger(ctx, logger)
	started := time.Now()

	normProfiles := make([]model.NormalizedRecord, len(profiles))
	for i, p := range profiles {
		normProfiles[i] = r.Profiles.Normalize(p)
	}
	normContacts := make([]model.NormalizedRecord, len(contacts))
	for i, c := range contacts {
		normContacts[i] = r.Contacts.Normalize(c)
	}

	pairs := buildPairs(normProfiles, normContacts, r.blockPrefixLen(), r.Batch.FullCompareMaxPairs)
	logger.Info().
		Int("profiles", len(profiles)).
		Int("contacts", len(contacts)).
		Int("pairs", len(pairs)).
		Msg("batch started")

	var counters batchCounters
	var g errgroup.Group
	g.SetLimit(r.workers())

	scheduled := 0
	cancelled := false
	for _, p := range pairs {
		if ctx.Err() != nil {
			cancelled = true
			break
		}
		scheduled++
		g.Go(func() error {
			in := pairInput{
				profile:     profiles[p.profile],
				contact:     contacts[p.contact],
				normProfile: normProfiles[p.profile],
				normContact: normContacts[p.contact],
			}
			if err := r.processPair(ctx, session.ID, in, &counters); err != nil {
				counters.errored.Add(1)
				r.Metrics.PairFailed()
				logger.Warn().
					Err(err).
					Str("profile", r.Profiles.Identifier(in.profile)).
					Str("contact", r.Contacts.Identifier(in.contact)).
					Msg("pair skipped")
			}
			return nil
		})
	}
	_ = g.Wait()

	end := r.Now()
	session.PairsCompared = int(counters.compared.Load())
	session.CandidatesFound = int(counters.found.Load())
	session.Approved = int(counters.approved.Load())
	session.Rejected = int(counters.rejected.Load())
	session.Errored = int(counters.errored.Load())
	session.AIUnavailable = int(counters.aiUnavailable.Load())
	session.EndedAt = &end
	session.Outcome = outcome(scheduled, session.Errored, cancelled)
	if cancelled {
		session.ErrorMessage = "batch cancelled"
	}

	if err := r.Sessions.SealSession(context.WithoutCancel(ctx), session); err != nil {
		return session, fmt.Errorf("failed to seal session: %w", err)
	}
	r.Metrics.BatchFinished(string(session.Outcome), time.Since(started))

	logger.Info().
		Int("compared", session.PairsCompared).
		Int("candidates", session.CandidatesFound).
		Int("errored", session.Errored).
		Int("ai_unavailable", session.AIUnavailable).
		Str("outcome", string(session.Outcome)).
		Dur("elapsed", time.Since(started)).
		Msg("batch finished")

	if cancelled {
		return session, ctx.Err()
	}
	return session, nil
}

func outcome(scheduled, errored int, cancelled bool) model.Outcome {
	switch {
	case scheduled > 0 && errored == scheduled:
		return model.OutcomeFailed
	case errored > 0 || cancelled:
		return model.OutcomePartial
	}
	return model.OutcomeSuccess
}

func (r *Reconciler) workers() int {
	if r.Batch.Workers > 0 {
		return r.Batch.Workers
	}
	return config.DefaultWorkers
}

func (r *Reconciler) blockPrefixLen() int {
	if r.Batch.BlockPrefixLen > 0 {
		return r.Batch.BlockPrefixLen
	}
	return config.DefaultBlockPrefixLen
}

func (r *Reconciler) minScore() float64 {
	return r.Batch.MinScoreValue()
}

type pairInput struct {
	profile     model.Record
	contact     model.Record
	normProfile model.NormalizedRecord
	normContact model.NormalizedRecord
}

// processPair scores one pair and persists it when it clears the threshold.
// Persistence runs on a context detached from cancellation so a pair that
// started is never left half-recorded.
func (r *Reconciler) processPair(ctx context.Context, sessionID string, in pairInput, counters *batchCounters) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic while processing pair: %v", rec)
		}
	}()

	res := r.Scorer.Score(in.normProfile, in.normContact)
	counters.compared.Add(1)
	r.Metrics.PairCompared()
	if res.Score < r.minScore() {
		return nil
	}

	var judgment adjudicate.Judgment
	if r.Adjudicator != nil {
		judgment = r.Adjudicator.Adjudicate(ctx, adjudicate.Request{
			Profile: in.normProfile,
			Contact: in.normContact,
			Rule:    res,
		})
		r.Metrics.Adjudicated(judgment.Available)
		if !judgment.Available {
			counters.aiUnavailable.Add(1)
			logging.FromContext(ctx).Debug().Err(judgment.Err).Msg("adjudication unavailable, using rule-based confidence")
		}
	}

	confidence := classify.Classify(res.Score, judgment.Label)
	if confidence == model.ConfidenceNone {
		return nil
	}

	reasoning := res.Summary()
	if judgment.Available && judgment.Reasoning != "" {
		reasoning = judgment.Reasoning
	}

	persistCtx := context.WithoutCancel(ctx)
	c, err := r.Lifecycle.Create(persistCtx, lifecycle.CreateParams{
		SessionID:         sessionID,
		SourceA:           in.profile,
		SourceB:           in.contact,
		Score:             res.Score,
		MatchingFields:    res.MatchingFields,
		ConflictingFields: res.ConflictingFields,
		Confidence:        confidence,
		Reasoning:         reasoning,
		AIAssisted:        judgment.Available,
	})
	if err != nil {
		return err
	}
	counters.found.Add(1)
	r.Metrics.CandidateCreated(string(confidence))

	r.automate(persistCtx, c, judgment, counters)
	return nil
}

// automate applies the optional auto-reject and auto-approve rules. Failures
// leave the candidate pending for review.
func (r *Reconciler) automate(ctx context.Context, c *model.Candidate, j adjudicate.Judgment, counters *batchCounters) {
	logger := logging.FromContext(ctx).With().Str("candidate", c.ID).Logger()

	switch {
	case r.Batch.AutoRejectAINone && j.Available && j.Label == model.AILabelNone:
		if _, err := r.Lifecycle.Reject(ctx, c.ID, "auto-rejected: AI judged different people"); err != nil {
			logger.Warn().Err(err).Msg("auto-reject failed")
			return
		}
		counters.rejected.Add(1)

	case r.Batch.AutoApprove && c.Confidence == model.ConfidenceHigh:
		updates, err := r.Lifecycle.ProposeUpdates(ctx, c.ID)
		if err != nil || len(updates) == 0 {
			return
		}
		if _, err := r.Lifecycle.Approve(ctx, c.ID, updates, "auto-approved: high confidence"); err != nil {
			logger.Warn().Err(err).Msg("auto-approve failed")
			return
		}
		counters.approved.Add(1)
	}
}
