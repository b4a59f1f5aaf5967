package store

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/agenthands/contactsync/internal/core/model"
	"github.com/agenthands/contactsync/internal/driver"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// GraphStore keeps candidates and sessions as Memgraph nodes. Each session
// links to the candidates it found through a FOUND relationship. Source
// records are stored as JSON strings since graph properties cannot nest maps.
type GraphStore struct {
	driver driver.GraphDriver
}

func NewGraphStore(d driver.GraphDriver) *GraphStore {
	return &GraphStore{driver: d}
}

func (g *GraphStore) Close() error {
	return g.driver.Close(context.Background())
}

func (g *GraphStore) CreateCandidate(ctx context.Context, c *model.Candidate) error {
	recA, err := marshalJSON(c.SourceRecordA)
	if err != nil {
		return err
	}
	recB, err := marshalJSON(c.SourceRecordB)
	if err != nil {
		return err
	}

	res, err := g.driver.ExecuteQuery(ctx, driver.CreateCandidateQuery, map[string]any{
		"id":                 c.ID,
		"session_id":         c.SessionID,
		"source_record_a":    recA,
		"source_record_b":    recB,
		"similarity_score":   c.SimilarityScore,
		"matching_fields":    nonNil(c.MatchingFields),
		"conflicting_fields": nonNil(c.ConflictingFields),
		"confidence":         string(c.Confidence),
		"reasoning":          c.Reasoning,
		"ai_assisted":        c.AIAssisted,
		"status":             string(c.Status),
		"created_at":         formatTime(c.CreatedAt),
	})
	if err != nil {
		return fmt.Errorf("failed to save candidate: %w", err)
	}
	if len(res.Records) == 0 {
		return model.NewDuplicateError("candidate", c.ID)
	}
	return nil
}

func (g *GraphStore) GetCandidate(ctx context.Context, id string) (*model.Candidate, error) {
	res, err := g.driver.ExecuteQuery(ctx, driver.GetCandidateQuery, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("failed to get candidate: %w", err)
	}
	if len(res.Records) == 0 {
		return nil, model.NewNotFoundError("candidate", id)
	}
	return candidateFromRecord(res.Records[0])
}

func filterParams(f model.CandidateFilter) map[string]any {
	return map[string]any{
		"status":     string(f.Status),
		"confidence": string(f.Confidence),
	}
}

func (g *GraphStore) ListCandidates(ctx context.Context, f model.CandidateFilter) ([]*model.Candidate, error) {
	params := filterParams(f)
	params["offset"] = int64(max(f.Offset, 0))
	params["limit"] = int64(math.MaxInt32)
	if f.Limit > 0 {
		params["limit"] = int64(f.Limit)
	}

	res, err := g.driver.ExecuteQuery(ctx, driver.ListCandidatesQuery, params)
	if err != nil {
		return nil, fmt.Errorf("failed to list candidates: %w", err)
	}
	out := make([]*model.Candidate, 0, len(res.Records))
	for _, rec := range res.Records {
		c, err := candidateFromRecord(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (g *GraphStore) CountCandidates(ctx context.Context, f model.CandidateFilter) (int, error) {
	res, err := g.driver.ExecuteQuery(ctx, driver.CountCandidatesQuery, filterParams(f))
	if err != nil {
		return 0, fmt.Errorf("failed to count candidates: %w", err)
	}
	if len(res.Records) == 0 {
		return 0, nil
	}
	n, _, err := neo4j.GetRecordValue[int64](res.Records[0], "n")
	if err != nil {
		return 0, fmt.Errorf("failed to read count: %w", err)
	}
	return int(n), nil
}

func (g *GraphStore) TransitionCandidate(ctx context.Context, id string, from model.Status, d model.Decision) (*model.Candidate, error) {
	var updateData any
	if d.UpdateData != nil {
		encoded, err := marshalJSON(d.UpdateData)
		if err != nil {
			return nil, err
		}
		updateData = encoded
	}

	res, err := g.driver.ExecuteQuery(ctx, driver.TransitionCandidateQuery, map[string]any{
		"id":             id,
		"from":           string(from),
		"status":         string(d.Status),
		"decision_notes": d.Notes,
		"update_data":    updateData,
		"decided_at":     formatTime(d.DecidedAt),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to transition candidate: %w", err)
	}
	if len(res.Records) > 0 {
		return candidateFromRecord(res.Records[0])
	}

	current, err := g.GetCandidate(ctx, id)
	if err != nil {
		return nil, err
	}
	return nil, model.NewConflictError("candidate", id, string(current.Status))
}

func (g *GraphStore) Stats(ctx context.Context) (model.CandidateStats, error) {
	stats := newStats()
	res, err := g.driver.ExecuteQuery(ctx, driver.CandidateStatsQuery, nil)
	if err != nil {
		return stats, fmt.Errorf("failed to compute stats: %w", err)
	}
	for _, rec := range res.Records {
		status, _, _ := neo4j.GetRecordValue[string](rec, "status")
		confidence, _, _ := neo4j.GetRecordValue[string](rec, "confidence")
		n, _, err := neo4j.GetRecordValue[int64](rec, "n")
		if err != nil {
			return stats, fmt.Errorf("failed to read stats: %w", err)
		}
		stats.Total += int(n)
		stats.ByStatus[model.Status(status)] += int(n)
		stats.ByConfidence[model.Confidence(confidence)] += int(n)
	}
	return stats, nil
}

func (g *GraphStore) CreateSession(ctx context.Context, s *model.Session) error {
	res, err := g.driver.ExecuteQuery(ctx, driver.CreateSessionQuery, map[string]any{
		"id":             s.ID,
		"profiles_count": int64(s.ProfilesCount),
		"contacts_count": int64(s.ContactsCount),
		"started_at":     formatTime(s.StartedAt),
	})
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	if len(res.Records) == 0 {
		return model.NewDuplicateError("session", s.ID)
	}
	return nil
}

func (g *GraphStore) SealSession(ctx context.Context, s *model.Session) error {
	if s.EndedAt == nil {
		return model.NewValidationError("ended_at", nil, "a sealed session needs an end time")
	}
	res, err := g.driver.ExecuteQuery(ctx, driver.SealSessionQuery, map[string]any{
		"id":               s.ID,
		"pairs_compared":   int64(s.PairsCompared),
		"candidates_found": int64(s.CandidatesFound),
		"approved":         int64(s.Approved),
		"rejected":         int64(s.Rejected),
		"errored":          int64(s.Errored),
		"ai_unavailable":   int64(s.AIUnavailable),
		"ended_at":         formatTime(*s.EndedAt),
		"outcome":          string(s.Outcome),
		"error_message":    s.ErrorMessage,
	})
	if err != nil {
		return fmt.Errorf("failed to seal session: %w", err)
	}
	if len(res.Records) > 0 {
		return nil
	}
	if _, err := g.GetSession(ctx, s.ID); err != nil {
		return err
	}
	return &model.ConflictError{Resource: "session", ID: s.ID, Message: "already sealed"}
}

func (g *GraphStore) GetSession(ctx context.Context, id string) (*model.Session, error) {
	res, err := g.driver.ExecuteQuery(ctx, driver.GetSessionQuery, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if len(res.Records) == 0 {
		return nil, model.NewNotFoundError("session", id)
	}
	return sessionFromRecord(res.Records[0])
}

func (g *GraphStore) ListSessions(ctx context.Context, limit int) ([]*model.Session, error) {
	l := int64(math.MaxInt32)
	if limit > 0 {
		l = int64(limit)
	}
	res, err := g.driver.ExecuteQuery(ctx, driver.ListSessionsQuery, map[string]any{"limit": l})
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	out := make([]*model.Session, 0, len(res.Records))
	for _, rec := range res.Records {
		s, err := sessionFromRecord(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func propsOf(rec *neo4j.Record, key string) (map[string]any, error) {
	props, _, err := neo4j.GetRecordValue[map[string]any](rec, key)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return props, nil
}

func candidateFromRecord(rec *neo4j.Record) (*model.Candidate, error) {
	p, err := propsOf(rec, "c")
	if err != nil {
		return nil, err
	}

	c := &model.Candidate{
		ID:                str(p["id"]),
		SessionID:         str(p["session_id"]),
		SimilarityScore:   num(p["similarity_score"]),
		MatchingFields:    strs(p["matching_fields"]),
		ConflictingFields: strs(p["conflicting_fields"]),
		Confidence:        model.Confidence(str(p["confidence"])),
		Reasoning:         str(p["reasoning"]),
		Status:            model.Status(str(p["status"])),
		DecisionNotes:     str(p["decision_notes"]),
	}
	c.AIAssisted, _ = p["ai_assisted"].(bool)

	if err := json.Unmarshal([]byte(str(p["source_record_a"])), &c.SourceRecordA); err != nil {
		return nil, fmt.Errorf("decode source_record_a: %w", err)
	}
	if err := json.Unmarshal([]byte(str(p["source_record_b"])), &c.SourceRecordB); err != nil {
		return nil, fmt.Errorf("decode source_record_b: %w", err)
	}
	if ud := str(p["update_data"]); ud != "" {
		if err := json.Unmarshal([]byte(ud), &c.UpdateData); err != nil {
			return nil, fmt.Errorf("decode update_data: %w", err)
		}
	}
	if c.CreatedAt, err = parseTime(str(p["created_at"])); err != nil {
		return nil, err
	}
	if v := str(p["decided_at"]); v != "" {
		t, err := parseTime(v)
		if err != nil {
			return nil, err
		}
		c.DecidedAt = &t
	}
	return c, nil
}

func sessionFromRecord(rec *neo4j.Record) (*model.Session, error) {
	p, err := propsOf(rec, "s")
	if err != nil {
		return nil, err
	}

	s := &model.Session{
		ID:              str(p["id"]),
		ProfilesCount:   int(num(p["profiles_count"])),
		ContactsCount:   int(num(p["contacts_count"])),
		PairsCompared:   int(num(p["pairs_compared"])),
		CandidatesFound: int(num(p["candidates_found"])),
		Approved:        int(num(p["approved"])),
		Rejected:        int(num(p["rejected"])),
		Errored:         int(num(p["errored"])),
		AIUnavailable:   int(num(p["ai_unavailable"])),
		Outcome:         model.Outcome(str(p["outcome"])),
		ErrorMessage:    str(p["error_message"]),
	}
	if s.StartedAt, err = parseTime(str(p["started_at"])); err != nil {
		return nil, err
	}
	if v := str(p["ended_at"]); v != "" {
		t, err := parseTime(v)
		if err != nil {
			return nil, err
		}
		s.EndedAt = &t
	}
	return s, nil
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func num(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case int:
		return float64(n)
	}
	return 0
}

func strs(v any) []string {
	out := []string{}
	switch items := v.(type) {
	case []string:
		out = append(out, items...)
	case []any:
		for _, item := range items {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
	}
	return out
}
