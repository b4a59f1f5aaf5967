package driver

var IndexQueries = []string{
	"CREATE INDEX ON :Candidate(id);",
	"CREATE INDEX ON :Candidate(status);",
	"CREATE INDEX ON :Candidate(confidence);",
	"CREATE INDEX ON :Session(id);",
	"CREATE CONSTRAINT ON (c:Candidate) ASSERT c.id IS UNIQUE;",
	"CREATE CONSTRAINT ON (s:Session) ASSERT s.id IS UNIQUE;",
}

const (
	// CreateCandidateQuery returns no rows when the id already exists.
	CreateCandidateQuery = `
		OPTIONAL MATCH (existing:Candidate {id: $id})
		WITH existing
		WHERE existing IS NULL
		CREATE (c:Candidate {id: $id})
		SET c.session_id = $session_id,
			c.source_record_a = $source_record_a,
			c.source_record_b = $source_record_b,
			c.similarity_score = $similarity_score,
			c.matching_fields = $matching_fields,
			c.conflicting_fields = $conflicting_fields,
			c.confidence = $confidence,
			c.reasoning = $reasoning,
			c.ai_assisted = $ai_assisted,
			c.status = $status,
			c.created_at = $created_at
		WITH c
		OPTIONAL MATCH (s:Session {id: $session_id})
		FOREACH (x IN CASE WHEN s IS NULL THEN [] ELSE [s] END | CREATE (x)-[:FOUND]->(c))
		RETURN c.id AS id
	`

	GetCandidateQuery = `
		MATCH (c:Candidate {id: $id})
		RETURN properties(c) AS c
	`

	ListCandidatesQuery = `
		MATCH (c:Candidate)
		WHERE ($status = "" OR c.status = $status)
			AND ($confidence = "" OR c.confidence = $confidence)
		RETURN properties(c) AS c
		ORDER BY c.similarity_score DESC, c.created_at ASC, c.id ASC
		SKIP $offset
		LIMIT $limit
	`

	CountCandidatesQuery = `
		MATCH (c:Candidate)
		WHERE ($status = "" OR c.status = $status)
			AND ($confidence = "" OR c.confidence = $confidence)
		RETURN count(c) AS n
	`

	// TransitionCandidateQuery only matches while the candidate is still in $from.
	TransitionCandidateQuery = `
		MATCH (c:Candidate {id: $id})
		WHERE c.status = $from
		SET c.status = $status,
			c.decision_notes = $decision_notes,
			c.update_data = $update_data,
			c.decided_at = $decided_at
		RETURN properties(c) AS c
	`

	CandidateStatsQuery = `
		MATCH (c:Candidate)
		RETURN c.status AS status, c.confidence AS confidence, count(c) AS n
	`

	CreateSessionQuery = `
		OPTIONAL MATCH (existing:Session {id: $id})
		WITH existing
		WHERE existing IS NULL
		CREATE (s:Session {id: $id})
		SET s.profiles_count = $profiles_count,
			s.contacts_count = $contacts_count,
			s.started_at = $started_at
		RETURN s.id AS id
	`

	// SealSessionQuery only matches sessions that have not ended.
	SealSessionQuery = `
		MATCH (s:Session {id: $id})
		WHERE s.ended_at IS NULL
		SET s.pairs_compared = $pairs_compared,
			s.candidates_found = $candidates_found,
			s.approved = $approved,
			s.rejected = $rejected,
			s.errored = $errored,
			s.ai_unavailable = $ai_unavailable,
			s.ended_at = $ended_at,
			s.outcome = $outcome,
			s.error_message = $error_message
		RETURN s.id AS id
	`

	GetSessionQuery = `
		MATCH (s:Session {id: $id})
		RETURN properties(s) AS s
	`

	ListSessionsQuery = `
		MATCH (s:Session)
		RETURN properties(s) AS s
		ORDER BY s.started_at DESC, s.id ASC
		LIMIT $limit
	`
)
