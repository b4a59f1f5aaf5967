package lifecycle

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/agenthands/contactsync/internal/core/model"
	"github.com/agenthands/contactsync/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestManager(w *MockWriter) (*Manager, *store.MemoryStore) {
	st := store.NewMemoryStore()
	return NewManager(st, w, WithClock(func() time.Time { return fixedNow })), st
}

func params(crmID string) CreateParams {
	return CreateParams{
		SourceA: model.Record{
			"First Name": "John",
			"Last Name":  "Smith",
			"Position":   "Senior Engineer",
		},
		SourceB: model.Record{
			"contactid": crmID,
			"firstname": "John",
			"lastname":  "Smith",
			"jobtitle":  "Engineer",
		},
		Score:          0.72,
		MatchingFields: []string{"name"},
		Confidence:     model.ConfidenceMedium,
		Reasoning:      "Name exact match",
	}
}

func TestCreate(t *testing.T) {
	m, _ := newTestManager(&MockWriter{})
	p := params("c-1")

	c, err := m.Create(context.Background(), p)

	require.NoError(t, err)
	assert.NotEmpty(t, c.ID)
	assert.Equal(t, model.StatusPending, c.Status)
	assert.Equal(t, fixedNow, c.CreatedAt)
	assert.Equal(t, []string{}, c.ConflictingFields)

	p.SourceB["contactid"] = "mutated"
	got, err := m.Get(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, "c-1", got.SourceRecordB["contactid"])
}

func TestCreate_Validation(t *testing.T) {
	m, _ := newTestManager(&MockWriter{})

	for _, score := range []float64{-0.01, 1.01, math.NaN(), math.Inf(1)} {
		p := params("c-1")
		p.Score = score
		_, err := m.Create(context.Background(), p)
		assert.ErrorIs(t, err, model.ErrValidation, "score %v", score)
	}

	p := params("c-1")
	p.Confidence = "certain"
	_, err := m.Create(context.Background(), p)
	var ve *model.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "confidence", ve.Field)

	for _, score := range []float64{0, 1} {
		p := params("c-1")
		p.Score = score
		_, err := m.Create(context.Background(), p)
		assert.NoError(t, err)
	}
}

func TestApprove(t *testing.T) {
	w := &MockWriter{}
	m, _ := newTestManager(w)
	c, err := m.Create(context.Background(), params("c-1"))
	require.NoError(t, err)

	updates := map[string]any{"jobtitle": "Senior Engineer"}
	out, err := m.Approve(context.Background(), c.ID, updates, "looks right")

	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, out.Status)
	assert.Equal(t, "looks right", out.DecisionNotes)
	assert.Equal(t, model.Record(updates), out.UpdateData)
	require.NotNil(t, out.DecidedAt)
	assert.Equal(t, fixedNow, *out.DecidedAt)
	assert.Equal(t, []string{"c-1"}, w.Calls)
	assert.Equal(t, updates, w.Fields[0])
}

func TestApprove_NilUpdatesUsesProposal(t *testing.T) {
	w := &MockWriter{}
	m, _ := newTestManager(w)
	c, err := m.Create(context.Background(), params("c-1"))
	require.NoError(t, err)

	proposal, err := m.ProposeUpdates(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"jobtitle": "Senior Engineer"}, proposal)

	out, err := m.Approve(context.Background(), c.ID, nil, "")
	require.NoError(t, err)
	assert.Equal(t, model.Record(proposal), out.UpdateData)
	assert.Equal(t, 1, w.CallCount())
}

func TestApprove_EmptyUpdatesSkipsWrite(t *testing.T) {
	w := &MockWriter{}
	m, _ := newTestManager(w)
	c, err := m.Create(context.Background(), params("c-1"))
	require.NoError(t, err)

	out, err := m.Approve(context.Background(), c.ID, map[string]any{}, "nothing to merge")
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, out.Status)
	assert.Equal(t, 0, w.CallCount())
}

func TestTransitions_OnlyFromPending(t *testing.T) {
	decide := map[model.Status]func(m *Manager, id string) (*model.Candidate, error){
		model.StatusApproved: func(m *Manager, id string) (*model.Candidate, error) {
			return m.Approve(context.Background(), id, map[string]any{"a": 1}, "")
		},
		model.StatusRejected: func(m *Manager, id string) (*model.Candidate, error) {
			return m.Reject(context.Background(), id, "different person")
		},
		model.StatusFlagged: func(m *Manager, id string) (*model.Candidate, error) {
			return m.Flag(context.Background(), id, "needs a human")
		},
	}

	for first, firstFn := range decide {
		for second, secondFn := range decide {
			t.Run(string(first)+"_then_"+string(second), func(t *testing.T) {
				w := &MockWriter{}
				m, _ := newTestManager(w)
				c, err := m.Create(context.Background(), params("c-1"))
				require.NoError(t, err)

				out, err := firstFn(m, c.ID)
				require.NoError(t, err)
				assert.Equal(t, first, out.Status)
				writes := w.CallCount()

				_, err = secondFn(m, c.ID)
				var ce *model.ConflictError
				require.ErrorAs(t, err, &ce)
				assert.Equal(t, string(first), ce.Current)
				assert.Equal(t, writes, w.CallCount())

				got, err := m.Get(context.Background(), c.ID)
				require.NoError(t, err)
				assert.Equal(t, first, got.Status)
			})
		}
	}
}

func TestApprove_NotFound(t *testing.T) {
	m, _ := newTestManager(&MockWriter{})
	_, err := m.Approve(context.Background(), "nope", nil, "")
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, err = m.Reject(context.Background(), "nope", "")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestApprove_WriteFailureLeavesPending(t *testing.T) {
	w := &MockWriter{Err: errors.New("503 service unavailable")}
	m, _ := newTestManager(w)
	c, err := m.Create(context.Background(), params("c-1"))
	require.NoError(t, err)

	_, err = m.Approve(context.Background(), c.ID, map[string]any{"jobtitle": "CTO"}, "")

	assert.ErrorIs(t, err, model.ErrExternalWrite)
	var we *model.ExternalWriteError
	require.ErrorAs(t, err, &we)
	assert.Equal(t, "c-1", we.Identifier)

	got, err := m.Get(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, got.Status)
	assert.Nil(t, got.DecidedAt)

	w.Err = nil
	out, err := m.Approve(context.Background(), c.ID, map[string]any{"jobtitle": "CTO"}, "retry")
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, out.Status)
}

func TestApprove_MissingCRMIdentifier(t *testing.T) {
	m, _ := newTestManager(&MockWriter{})
	p := params("")
	c, err := m.Create(context.Background(), p)
	require.NoError(t, err)

	_, err = m.Approve(context.Background(), c.ID, nil, "")
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = m.Flag(context.Background(), c.ID, "no crm id")
	assert.NoError(t, err)
}

func TestApprove_ConcurrentSameCandidate(t *testing.T) {
	w := &MockWriter{Delay: 5 * time.Millisecond}
	m, _ := newTestManager(w)
	c, err := m.Create(context.Background(), params("c-1"))
	require.NoError(t, err)

	const n = 10
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = m.Approve(context.Background(), c.ID, map[string]any{"jobtitle": "CTO"}, "")
		}(i)
	}
	wg.Wait()

	var ok, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, model.ErrConflict):
			conflicts++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, conflicts)
	assert.Equal(t, 1, w.CallCount())
	assert.Equal(t, 0, m.locks.size())
}

func TestApprove_SameCRMRecordSerializes(t *testing.T) {
	w := &MockWriter{Delay: 5 * time.Millisecond}
	m, _ := newTestManager(w)

	ids := make([]string, 6)
	for i := range ids {
		c, err := m.Create(context.Background(), params("shared"))
		require.NoError(t, err)
		ids[i] = c.ID
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := m.Approve(context.Background(), id, map[string]any{"jobtitle": "CTO"}, "")
			assert.NoError(t, err)
		}(id)
	}
	wg.Wait()

	assert.Equal(t, len(ids), w.CallCount())
	assert.Equal(t, int32(1), w.MaxPerID.Load())
}

func TestRejectDuringApproveCannotOverwrite(t *testing.T) {
	w := &MockWriter{Delay: 20 * time.Millisecond}
	m, _ := newTestManager(w)
	c, err := m.Create(context.Background(), params("c-1"))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := m.Approve(context.Background(), c.ID, map[string]any{"jobtitle": "CTO"}, "")
		done <- err
	}()
	time.Sleep(5 * time.Millisecond)
	_, rejectErr := m.Reject(context.Background(), c.ID, "")

	require.NoError(t, <-done)
	assert.ErrorIs(t, rejectErr, model.ErrConflict)
	got, err := m.Get(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, got.Status)
}

func TestList(t *testing.T) {
	m, _ := newTestManager(&MockWriter{})
	for i, conf := range []model.Confidence{model.ConfidenceHigh, model.ConfidenceLow, model.ConfidenceLow} {
		p := params("c")
		p.Confidence = conf
		p.Score = 0.3 + float64(i)*0.1
		_, err := m.Create(context.Background(), p)
		require.NoError(t, err)
	}

	items, total, err := m.List(context.Background(), model.CandidateFilter{Confidence: model.ConfidenceLow, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, items, 1)
	assert.InDelta(t, 0.5, items[0].SimilarityScore, 1e-9)

	_, _, err = m.List(context.Background(), model.CandidateFilter{Status: "done"})
	assert.ErrorIs(t, err, model.ErrValidation)

	stats, err := m.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 3, stats.ByStatus[model.StatusPending])
	assert.Equal(t, 2, stats.ByConfidence[model.ConfidenceLow])
}

func TestClusters(t *testing.T) {
	m, _ := newTestManager(&MockWriter{})
	ctx := context.Background()

	var ids []string
	for _, tc := range []struct{ url, crmID string }{{"u1", "c-1"}, {"u1", "c-2"}, {"u2", "c-3"}} {
		p := params(tc.crmID)
		p.SourceA["URL"] = tc.url
		c, err := m.Create(ctx, p)
		require.NoError(t, err)
		ids = append(ids, c.ID)
	}

	groups, err := m.Clusters(ctx, "")
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, []string{"u1"}, groups[0].Profiles)
	assert.Equal(t, []string{"c-1", "c-2"}, groups[0].Contacts)
	assert.ElementsMatch(t, ids[:2], groups[0].Candidates)

	_, err = m.Reject(ctx, ids[0], "")
	require.NoError(t, err)
	groups, err = m.Clusters(ctx, model.StatusPending)
	require.NoError(t, err)
	assert.Empty(t, groups)

	_, err = m.Clusters(ctx, "done")
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestApprove_CallerCancelledAfterCRMWrite(t *testing.T) {
	st, err := store.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "candidates.db"))
	require.NoError(t, err)
	defer st.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w := &MockWriter{OnUpdate: cancel}
	m := NewManager(st, w, WithClock(func() time.Time { return fixedNow }))

	c, err := m.Create(context.Background(), params("c-1"))
	require.NoError(t, err)

	out, err := m.Approve(ctx, c.ID, map[string]any{"jobtitle": "CTO"}, "")
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, out.Status)
	assert.Equal(t, 1, w.CallCount())

	got, err := m.Get(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, got.Status)

	_, err = m.Approve(context.Background(), c.ID, map[string]any{"jobtitle": "CTO"}, "")
	assert.ErrorIs(t, err, model.ErrConflict)
	assert.Equal(t, 1, w.CallCount())
}
