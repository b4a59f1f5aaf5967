package similarity

import (
	"testing"

	"github.com/agenthands/contactsync/internal/config"
	"github.com/agenthands/contactsync/internal/core/model"
	"github.com/agenthands/contactsync/internal/core/normalize"
	"github.com/stretchr/testify/assert"
)

func rec(first, last, email, org, title string) model.NormalizedRecord {
	full := first
	if last != "" {
		full = first + " " + last
	}
	return model.NormalizedRecord{
		FullName:     model.NewField(full),
		FirstName:    model.NewField(first),
		LastName:     model.NewField(last),
		Email:        model.NewField(email),
		Organization: model.NewField(org),
		Title:        model.NewField(title),
	}
}

func TestRatio(t *testing.T) {
	assert.Equal(t, 1.0, Ratio("acme", "acme"))
	assert.Equal(t, 0.0, Ratio("", ""))
	assert.Equal(t, 0.0, Ratio("abc", ""))
	assert.Equal(t, 0.0, Ratio("alice", "bob"))
	assert.InDelta(t, 0.75, Ratio("john.smith", "jsmith"), 1e-9)
	assert.InDelta(t, 14.0/17.0, Ratio("john.smith", "j.smith"), 1e-9)
	assert.InDelta(t, 1.0/3.0, Ratio("jane doe", "john smith"), 1e-9)
	assert.InDelta(t, 0.75, Ratio("jose", "josé"), 1e-9)
}

func TestScore_IdenticalRecords(t *testing.T) {
	s := NewScorer(config.ScoringConfig{})
	a := rec("john", "smith", "john@acme.com", "acme", "senior engineer")

	res := s.Score(a, a)

	assert.Equal(t, 1.0, res.Score)
	assert.Equal(t, []string{FieldName, FieldEmail, FieldOrganization, FieldTitle}, res.MatchingFields)
	assert.Empty(t, res.ConflictingFields)
	assert.Empty(t, res.Missing)
}

func TestScore_DisjointRecords(t *testing.T) {
	s := NewScorer(config.ScoringConfig{})
	a := rec("alice", "wong", "alice@a.com", "initech", "designer")
	b := rec("bob", "brown", "bob@b.com", "globex", "accountant")

	res := s.Score(a, b)

	assert.Less(t, res.Score, 0.3)
	assert.InDelta(t, 0.168196, res.Score, 1e-9)
	assert.Empty(t, res.MatchingFields)
	assert.Equal(t, []string{FieldEmail, FieldOrganization, FieldTitle}, res.ConflictingFields)
}

func TestScore_PartialMatchScenario(t *testing.T) {
	s := NewScorer(config.ScoringConfig{})
	profile := normalize.New(normalize.ProfileSchema()).Normalize(model.Record{
		"First Name":    "John",
		"Last Name":     "Smith",
		"Email Address": "john.smith@acme.com",
		"Company":       "Acme Corp",
		"Position":      "Senior Engineer",
	})
	contact := normalize.New(normalize.CRMSchema()).Normalize(model.Record{
		"firstname":     "John",
		"lastname":      "Smith",
		"emailaddress1": "j.smith@acme.com",
		"jobtitle":      "Engineer",
	})

	res := s.Score(profile, contact)

	assert.Equal(t, 1.0, res.SubScores[FieldName])
	assert.InDelta(t, 0.8235, res.SubScores[FieldEmail], 1e-3)
	assert.Equal(t, 0.0, res.SubScores[FieldOrganization])
	assert.InDelta(t, 0.6957, res.SubScores[FieldTitle], 1e-3)
	assert.InDelta(t, 0.716624, res.Score, 1e-9)
	assert.Equal(t, []string{FieldName, FieldEmail}, res.MatchingFields)
	assert.Empty(t, res.ConflictingFields)
	assert.Equal(t, []string{FieldOrganization}, res.Missing)
	assert.Equal(t, "Name exact match; email similarity 0.82; organization missing; job title similarity 0.70", res.Summary())
}

func TestScore_ExactEmailOnly(t *testing.T) {
	s := NewScorer(config.ScoringConfig{})
	a := rec("", "", "pat@example.com", "", "")
	b := rec("", "", "pat@example.com", "", "")

	res := s.Score(a, b)

	assert.Equal(t, 0.3, res.Score)
	assert.Equal(t, []string{FieldEmail}, res.MatchingFields)
}

func TestScore_NameBoost(t *testing.T) {
	s := NewScorer(config.ScoringConfig{NameBoost: 0.2})
	a := model.NormalizedRecord{
		FullName:  model.NewField("john smith"),
		FirstName: model.NewField("john"),
		LastName:  model.NewField("smith"),
	}
	b := model.NormalizedRecord{
		FullName:  model.NewField("john q smith"),
		FirstName: model.NewField("john"),
		LastName:  model.NewField("smith"),
	}

	res := s.Score(a, b)
	assert.InDelta(t, 1.0, res.SubScores[FieldName], 1e-9)

	b.FirstName = model.NewField("jon")
	res = s.Score(a, b)
	assert.Less(t, res.SubScores[FieldName], 1.0)
}

func TestScore_EmptyRecords(t *testing.T) {
	res := NewScorer(config.ScoringConfig{}).Score(model.NormalizedRecord{}, model.NormalizedRecord{})

	assert.Equal(t, 0.0, res.Score)
	assert.Empty(t, res.MatchingFields)
	assert.Empty(t, res.ConflictingFields)
	assert.Len(t, res.Missing, 4)
}

func TestScore_AlwaysInUnitInterval(t *testing.T) {
	s := NewScorer(config.ScoringConfig{NameBoost: 1})
	records := []model.NormalizedRecord{
		{},
		rec("a", "b", "a@b.c", "x", "y"),
		rec("john", "smith", "j@acme.com", "acme", "cto"),
		rec("john", "smith", "john@acme.com", "acme", "ceo"),
	}
	for _, a := range records {
		for _, b := range records {
			res := s.Score(a, b)
			assert.GreaterOrEqual(t, res.Score, 0.0)
			assert.LessOrEqual(t, res.Score, 1.0)
		}
	}
}

func TestSummary_Conflict(t *testing.T) {
	s := NewScorer(config.ScoringConfig{})
	res := s.Score(
		rec("ann", "lee", "ann@x.com", "", "cfo"),
		rec("ann", "lee", "zed@y.com", "", "janitor"),
	)
	assert.Contains(t, res.Summary(), "email mismatch 0.00")
	assert.Contains(t, res.Summary(), "organization missing")
}
