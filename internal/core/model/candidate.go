package model

import (
	"strings"
	"time"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusFlagged  Status = "flagged"
)

// Valid reports whether s is one of the four candidate statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusFlagged:
		return true
	}
	return false
}

type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
	ConfidenceNone   Confidence = "none"
)

// Valid reports whether c is one of the four confidence tiers.
func (c Confidence) Valid() bool {
	return c.Rank() > 0
}

// Rank orders tiers: none=1 < low=2 < medium=3 < high=4. Unknown values rank 0.
func (c Confidence) Rank() int {
	switch c {
	case ConfidenceHigh:
		return 4
	case ConfidenceMedium:
		return 3
	case ConfidenceLow:
		return 2
	case ConfidenceNone:
		return 1
	}
	return 0
}

// AILabel is the confidence label returned by the reasoning service.
type AILabel string

const (
	AILabelHigh   AILabel = "HIGH"
	AILabelMedium AILabel = "MEDIUM"
	AILabelLow    AILabel = "LOW"
	AILabelNone   AILabel = "NONE"
)

// ParseAILabel accepts labels case-insensitively. Unknown text yields "".
func ParseAILabel(s string) AILabel {
	switch l := AILabel(strings.ToUpper(strings.TrimSpace(s))); l {
	case AILabelHigh, AILabelMedium, AILabelLow, AILabelNone:
		return l
	}
	return ""
}

// Candidate is a persisted, scored pairing of a profile and a CRM contact.
// Everything except Status and the decision fields is immutable after creation.
type Candidate struct {
	ID                string     `json:"id"`
	SessionID         string     `json:"session_id,omitempty"`
	SourceRecordA     Record     `json:"source_record_a"`
	SourceRecordB     Record     `json:"source_record_b"`
	SimilarityScore   float64    `json:"similarity_score"`
	MatchingFields    []string   `json:"matching_fields"`
	ConflictingFields []string   `json:"conflicting_fields"`
	Confidence        Confidence `json:"confidence"`
	Reasoning         string     `json:"reasoning"`
	AIAssisted        bool       `json:"ai_assisted"`
	Status            Status     `json:"status"`
	DecisionNotes     string     `json:"decision_notes,omitempty"`
	UpdateData        Record     `json:"update_data,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	DecidedAt         *time.Time `json:"decided_at,omitempty"`
}

// Decision is the single transition out of pending.
type Decision struct {
	Status     Status
	Notes      string
	UpdateData Record
	DecidedAt  time.Time
}

// CandidateFilter selects a page of candidates. Zero values match everything.
type CandidateFilter struct {
	Status     Status
	Confidence Confidence
	Limit      int
	Offset     int
}

// CandidateStats counts candidates per status and confidence.
type CandidateStats struct {
	Total        int                `json:"total"`
	ByStatus     map[Status]int     `json:"by_status"`
	ByConfidence map[Confidence]int `json:"by_confidence"`
}
