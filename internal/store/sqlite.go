package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/agenthands/contactsync/internal/core/model"
	_ "modernc.org/sqlite"
)

// SQLiteStore persists candidates and sessions in a single SQLite file.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens or creates the database at path and applies migrations.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One connection serializes writers, so CAS updates never race on SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	s := &SQLiteStore{db: db, path: path}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

const candidateColumns = `id, session_id, source_record_a, source_record_b, similarity_score,
    matching_fields, conflicting_fields, confidence, reasoning, ai_assisted, status,
    decision_notes, update_data, created_at, decided_at`

func (s *SQLiteStore) CreateCandidate(ctx context.Context, c *model.Candidate) error {
	recA, err := marshalJSON(c.SourceRecordA)
	if err != nil {
		return err
	}
	recB, err := marshalJSON(c.SourceRecordB)
	if err != nil {
		return err
	}
	matching, err := marshalJSON(nonNil(c.MatchingFields))
	if err != nil {
		return err
	}
	conflicting, err := marshalJSON(nonNil(c.ConflictingFields))
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO candidates (`+candidateColumns+`)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID,
		nullableString(c.SessionID),
		recA,
		recB,
		c.SimilarityScore,
		matching,
		conflicting,
		string(c.Confidence),
		c.Reasoning,
		c.AIAssisted,
		string(c.Status),
		nullableString(c.DecisionNotes),
		nil,
		formatTime(c.CreatedAt),
		nullableTime(c.DecidedAt),
	)
	if isUniqueViolation(err) {
		return model.NewDuplicateError("candidate", c.ID)
	}
	if err != nil {
		return fmt.Errorf("insert candidate: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetCandidate(ctx context.Context, id string) (*model.Candidate, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+candidateColumns+` FROM candidates WHERE id = ?`, id)
	c, err := scanCandidate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.NewNotFoundError("candidate", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get candidate: %w", err)
	}
	return c, nil
}

func filterClause(f model.CandidateFilter) (string, []any) {
	var conds []string
	var args []any
	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.Confidence != "" {
		conds = append(conds, "confidence = ?")
		args = append(args, string(f.Confidence))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (s *SQLiteStore) ListCandidates(ctx context.Context, f model.CandidateFilter) ([]*model.Candidate, error) {
	where, args := filterClause(f)
	query := `SELECT ` + candidateColumns + ` FROM candidates` + where +
		` ORDER BY similarity_score DESC, created_at ASC, id ASC`
	limit := f.Limit
	if limit <= 0 {
		limit = -1
	}
	offset := max(f.Offset, 0)
	query += ` LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	defer rows.Close()

	out := make([]*model.Candidate, 0)
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) CountCandidates(ctx context.Context, f model.CandidateFilter) (int, error) {
	where, args := filterClause(f)
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM candidates`+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count candidates: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) TransitionCandidate(ctx context.Context, id string, from model.Status, d model.Decision) (*model.Candidate, error) {
	var updateData any
	if d.UpdateData != nil {
		encoded, err := marshalJSON(d.UpdateData)
		if err != nil {
			return nil, err
		}
		updateData = encoded
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE candidates
         SET status = ?, decision_notes = ?, update_data = ?, decided_at = ?
         WHERE id = ? AND status = ?`,
		string(d.Status),
		nullableString(d.Notes),
		updateData,
		formatTime(d.DecidedAt),
		id,
		string(from),
	)
	if err != nil {
		return nil, fmt.Errorf("transition candidate: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("transition candidate: %w", err)
	}

	c, err := s.GetCandidate(ctx, id)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, model.NewConflictError("candidate", id, string(c.Status))
	}
	return c, nil
}

func (s *SQLiteStore) Stats(ctx context.Context) (model.CandidateStats, error) {
	stats := newStats()
	rows, err := s.db.QueryContext(ctx, `SELECT status, confidence, COUNT(1) FROM candidates GROUP BY status, confidence`)
	if err != nil {
		return stats, fmt.Errorf("candidate stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status, confidence string
		var n int
		if err := rows.Scan(&status, &confidence, &n); err != nil {
			return stats, fmt.Errorf("scan stats: %w", err)
		}
		stats.Total += n
		stats.ByStatus[model.Status(status)] += n
		stats.ByConfidence[model.Confidence(confidence)] += n
	}
	return stats, rows.Err()
}

const sessionColumns = `id, profiles_count, contacts_count, pairs_compared, candidates_found,
    approved, rejected, errored, ai_unavailable, started_at, ended_at, outcome, error_message`

func (s *SQLiteStore) CreateSession(ctx context.Context, sess *model.Session) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (`+sessionColumns+`)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID,
		sess.ProfilesCount,
		sess.ContactsCount,
		sess.PairsCompared,
		sess.CandidatesFound,
		sess.Approved,
		sess.Rejected,
		sess.Errored,
		sess.AIUnavailable,
		formatTime(sess.StartedAt),
		nullableTime(sess.EndedAt),
		nullableString(string(sess.Outcome)),
		nullableString(sess.ErrorMessage),
	)
	if isUniqueViolation(err) {
		return model.NewDuplicateError("session", sess.ID)
	}
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *SQLiteStore) SealSession(ctx context.Context, sess *model.Session) error {
	if sess.EndedAt == nil {
		return model.NewValidationError("ended_at", nil, "a sealed session needs an end time")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions
         SET pairs_compared = ?, candidates_found = ?, approved = ?, rejected = ?,
             errored = ?, ai_unavailable = ?, ended_at = ?, outcome = ?, error_message = ?
         WHERE id = ? AND ended_at IS NULL`,
		sess.PairsCompared,
		sess.CandidatesFound,
		sess.Approved,
		sess.Rejected,
		sess.Errored,
		sess.AIUnavailable,
		formatTime(*sess.EndedAt),
		nullableString(string(sess.Outcome)),
		nullableString(sess.ErrorMessage),
		sess.ID,
	)
	if err != nil {
		return fmt.Errorf("seal session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("seal session: %w", err)
	}
	if affected == 0 {
		if _, err := s.GetSession(ctx, sess.ID); err != nil {
			return err
		}
		return &model.ConflictError{Resource: "session", ID: sess.ID, Message: "already sealed"}
	}
	return nil
}

func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*model.Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.NewNotFoundError("session", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

func (s *SQLiteStore) ListSessions(ctx context.Context, limit int) ([]*model.Session, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	out := make([]*model.Session, 0)
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCandidate(row scanner) (*model.Candidate, error) {
	var (
		c                            model.Candidate
		sessionID, notes, updateData sql.NullString
		recA, recB                   string
		matching, conflicting        string
		confidence, status           string
		createdAt                    string
		decidedAt                    sql.NullString
	)
	if err := row.Scan(
		&c.ID, &sessionID, &recA, &recB, &c.SimilarityScore,
		&matching, &conflicting, &confidence, &c.Reasoning, &c.AIAssisted, &status,
		&notes, &updateData, &createdAt, &decidedAt,
	); err != nil {
		return nil, err
	}

	c.SessionID = sessionID.String
	c.DecisionNotes = notes.String
	c.Confidence = model.Confidence(confidence)
	c.Status = model.Status(status)
	if err := json.Unmarshal([]byte(recA), &c.SourceRecordA); err != nil {
		return nil, fmt.Errorf("decode source_record_a: %w", err)
	}
	if err := json.Unmarshal([]byte(recB), &c.SourceRecordB); err != nil {
		return nil, fmt.Errorf("decode source_record_b: %w", err)
	}
	if err := json.Unmarshal([]byte(matching), &c.MatchingFields); err != nil {
		return nil, fmt.Errorf("decode matching_fields: %w", err)
	}
	if err := json.Unmarshal([]byte(conflicting), &c.ConflictingFields); err != nil {
		return nil, fmt.Errorf("decode conflicting_fields: %w", err)
	}
	if updateData.Valid {
		if err := json.Unmarshal([]byte(updateData.String), &c.UpdateData); err != nil {
			return nil, fmt.Errorf("decode update_data: %w", err)
		}
	}

	var err error
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if c.DecidedAt, err = parseNullableTime(decidedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func scanSession(row scanner) (*model.Session, error) {
	var (
		sess                  model.Session
		startedAt             string
		endedAt, outcome, msg sql.NullString
	)
	if err := row.Scan(
		&sess.ID, &sess.ProfilesCount, &sess.ContactsCount, &sess.PairsCompared, &sess.CandidatesFound,
		&sess.Approved, &sess.Rejected, &sess.Errored, &sess.AIUnavailable,
		&startedAt, &endedAt, &outcome, &msg,
	); err != nil {
		return nil, err
	}
	sess.Outcome = model.Outcome(outcome.String)
	sess.ErrorMessage = msg.String

	var err error
	if sess.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, err
	}
	if sess.EndedAt, err = parseNullableTime(endedAt); err != nil {
		return nil, err
	}
	return &sess, nil
}

func marshalJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode json: %w", err)
	}
	return string(data), nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// timeLayout is fixed width so timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}

func parseNullableTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
