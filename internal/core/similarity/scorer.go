package similarity

import (
	"fmt"
	"math"
	"strings"

	"github.com/agenthands/contactsync/internal/config"
	"github.com/agenthands/contactsync/internal/core/model"
)

// Comparable fields, in reporting order.
const (
	FieldName         = "name"
	FieldEmail        = "email"
	FieldOrganization = "organization"
	FieldTitle        = "title"
)

// Fixed aggregate weights; they sum to 1.
const (
	WeightName         = 0.40
	WeightEmail        = 0.30
	WeightOrganization = 0.20
	WeightTitle        = 0.10
)

var fields = []struct {
	name   string
	label  string
	weight float64
}{
	{FieldName, "name", WeightName},
	{FieldEmail, "email", WeightEmail},
	{FieldOrganization, "organization", WeightOrganization},
	{FieldTitle, "job title", WeightTitle},
}

// Result is the outcome of comparing two normalized records.
type Result struct {
	Score             float64            `json:"score"`
	SubScores         map[string]float64 `json:"sub_scores"`
	MatchingFields    []string           `json:"matching_fields"`
	ConflictingFields []string           `json:"conflicting_fields"`
	// Missing lists fields absent on at least one side.
	Missing []string `json:"missing,omitempty"`
}

// Scorer computes weighted field similarity. It is stateless after
// construction and safe for concurrent use.
type Scorer struct {
	matchThreshold    float64
	conflictThreshold float64
	nameBoost         float64
}

// NewScorer builds a scorer; zero config values fall back to defaults.
func NewScorer(cfg config.ScoringConfig) *Scorer {
	s := &Scorer{
		matchThreshold:    cfg.MatchThreshold,
		conflictThreshold: cfg.ConflictThreshold,
		nameBoost:         cfg.NameBoost,
	}
	if s.matchThreshold == 0 {
		s.matchThreshold = config.DefaultMatchThreshold
	}
	if s.conflictThreshold == 0 {
		s.conflictThreshold = config.DefaultConflictThreshold
	}
	if s.nameBoost == 0 {
		s.nameBoost = config.DefaultNameBoost
	}
	return s
}

// Score compares a and b. Absent fields score 0 and keep their weight.
func (s *Scorer) Score(a, b model.NormalizedRecord) Result {
	res := Result{
		SubScores:         make(map[string]float64, len(fields)),
		MatchingFields:    []string{},
		ConflictingFields: []string{},
	}

	var total float64
	for _, f := range fields {
		sub, present := s.fieldScore(f.name, a, b)
		res.SubScores[f.name] = sub
		total += f.weight * sub

		switch {
		case !present:
			res.Missing = append(res.Missing, f.name)
		case sub >= s.matchThreshold:
			res.MatchingFields = append(res.MatchingFields, f.name)
		case sub < s.conflictThreshold:
			res.ConflictingFields = append(res.ConflictingFields, f.name)
		}
	}

	res.Score = clamp01(math.Round(total*1e6) / 1e6)
	return res
}

func (s *Scorer) fieldScore(name string, a, b model.NormalizedRecord) (float64, bool) {
	switch name {
	case FieldName:
		if !a.FullName.Present || !b.FullName.Present {
			return 0, false
		}
		r := Ratio(a.FullName.Value, b.FullName.Value)
		if a.FirstName.Present && a.LastName.Present &&
			b.FirstName.Present && b.LastName.Present &&
			a.FirstName == b.FirstName && a.LastName == b.LastName {
			r = math.Min(1, r+s.nameBoost)
		}
		return r, true
	case FieldEmail:
		if !a.Email.Present || !b.Email.Present {
			return 0, false
		}
		if a.Email.Value == b.Email.Value {
			return 1, true
		}
		return Ratio(a.EmailLocal(), b.EmailLocal()), true
	case FieldOrganization:
		if !a.Organization.Present || !b.Organization.Present {
			return 0, false
		}
		return Ratio(a.Organization.Value, b.Organization.Value), true
	case FieldTitle:
		if !a.Title.Present || !b.Title.Present {
			return 0, false
		}
		return Ratio(a.Title.Value, b.Title.Value), true
	}
	return 0, false
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// Summary renders the rule-based reasoning for a result.
func (r Result) Summary() string {
	missing := make(map[string]bool, len(r.Missing))
	for _, m := range r.Missing {
		missing[m] = true
	}
	conflicting := make(map[string]bool, len(r.ConflictingFields))
	for _, c := range r.ConflictingFields {
		conflicting[c] = true
	}

	parts := make([]string, 0, len(fields))
	for i, f := range fields {
		label := f.label
		if i == 0 {
			label = strings.ToUpper(label[:1]) + label[1:]
		}
		sub := r.SubScores[f.name]
		switch {
		case missing[f.name]:
			parts = append(parts, label+" missing")
		case sub == 1:
			parts = append(parts, label+" exact match")
		case conflicting[f.name]:
			parts = append(parts, fmt.Sprintf("%s mismatch %.2f", label, sub))
		default:
			parts = append(parts, fmt.Sprintf("%s similarity %.2f", label, sub))
		}
	}
	return strings.Join(parts, "; ")
}
