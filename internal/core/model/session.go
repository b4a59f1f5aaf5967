package model

import "time"

type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomePartial Outcome = "partial"
	OutcomeFailed  Outcome = "failed"
)

// Session groups one batch run. It is sealed exactly once, after which it is read-only.
type Session struct {
	ID              string     `json:"id"`
	ProfilesCount   int        `json:"profiles_count"`
	ContactsCount   int        `json:"contacts_count"`
	PairsCompared   int        `json:"pairs_compared"`
	CandidatesFound int        `json:"candidates_found"`
	Approved        int        `json:"approved"`
	Rejected        int        `json:"rejected"`
	Errored         int        `json:"errored"`
	AIUnavailable   int        `json:"ai_unavailable"`
	StartedAt       time.Time  `json:"started_at"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	Outcome         Outcome    `json:"outcome,omitempty"`
	ErrorMessage    string     `json:"error_message,omitempty"`
}

// Sealed reports whether the session has been closed.
func (s *Session) Sealed() bool {
	return s.EndedAt != nil
}
