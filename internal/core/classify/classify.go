package classify

import "github.com/agenthands/contactsync/internal/core/model"

// Rule tier thresholds, inclusive lower bounds.
const (
	HighThreshold   = 0.85
	MediumThreshold = 0.6
	LowThreshold    = 0.3
)

// ByScore maps an aggregate score to its rule-based tier.
func ByScore(score float64) model.Confidence {
	switch {
	case score >= HighThreshold:
		return model.ConfidenceHigh
	case score >= MediumThreshold:
		return model.ConfidenceMedium
	case score >= LowThreshold:
		return model.ConfidenceLow
	}
	return model.ConfidenceNone
}

// ByLabel maps an AI label to the tier it requests. HIGH always requests at
// least medium: high when score reaches the medium threshold, medium below it.
// NONE and unknown labels request nothing.
func ByLabel(score float64, label model.AILabel) model.Confidence {
	switch label {
	case model.AILabelHigh:
		if score >= MediumThreshold {
			return model.ConfidenceHigh
		}
		return model.ConfidenceMedium
	case model.AILabelMedium:
		return model.ConfidenceMedium
	case model.AILabelLow:
		return model.ConfidenceLow
	}
	return ""
}

// Classify returns the higher of the rule tier and the AI tier. The AI can
// raise confidence but never lower it.
func Classify(score float64, label model.AILabel) model.Confidence {
	rule := ByScore(score)
	if ai := ByLabel(score, label); ai.Rank() > rule.Rank() {
		return ai
	}
	return rule
}

// ParseLabel accepts AI labels case-insensitively.
func ParseLabel(s string) model.AILabel {
	return model.ParseAILabel(s)
}
