package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/Crackedcoder5TH/remembrance-oracle-toolkit-sub001/internal/coherency"
	"github.com/Crackedcoder5TH/remembrance-oracle-toolkit-sub001/internal/oracleerr"
)

// Insert adds a new Pattern, failing with DuplicateName if a pattern with
// the same (name, language) already exists and p is not an explicit
// evolution (ParentPatternID set).
func (s *Store) Insert(p Pattern) (Pattern, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if p.Status == "" {
		p.Status = StatusCandidate
	}

	if p.ParentPatternID == nil {
		var existing int
		err := s.db.QueryRow(`SELECT COUNT(*) FROM patterns WHERE name = ? AND language = ?`, p.Name, string(p.Language)).Scan(&existing)
		if err != nil {
			return Pattern{}, oracleerr.Wrap(oracleerr.IoFailure, "check duplicate name", err)
		}
		if existing > 0 {
			return Pattern{}, oracleerr.Newf(oracleerr.DuplicateName, "pattern %q already exists for language %s", p.Name, p.Language)
		}
	}

	if err := s.insertRow(p); err != nil {
		return Pattern{}, err
	}

	s.emitAudit("add", "patterns", p.ID, p.Author, map[string]any{"name": p.Name, "language": string(p.Language)})
	return p, nil
}

func (s *Store) insertRow(p Pattern) error {
	tagsJSON, _ := json.Marshal(p.Tags)
	evoJSON, _ := json.Marshal(p.EvolutionHistory)
	coherJSON, _ := json.Marshal(p.CoherencyScore)

	var lastUsed any
	if p.LastUsed != nil {
		lastUsed = p.LastUsed.UTC().Format(time.RFC3339Nano)
	}
	var parentID any
	if p.ParentPatternID != nil {
		parentID = *p.ParentPatternID
	}

	_, err := s.db.Exec(
		`INSERT INTO patterns (id, name, language, code, test_code, description, tags, pattern_type,
			complexity, coherency_json, test_passed, author, usage_count, success_count, last_used,
			created_at, parent_pattern_id, evolution_history, status)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		p.ID, p.Name, string(p.Language), p.Code, p.TestCode, p.Description, string(tagsJSON), p.PatternType,
		p.Complexity, string(coherJSON), boolToInt(p.TestPassed), p.Author, p.UsageCount, p.SuccessCount, lastUsed,
		p.CreatedAt.UTC().Format(time.RFC3339Nano), parentID, string(evoJSON), string(p.Status),
	)
	if err != nil {
		return oracleerr.Wrap(oracleerr.IoFailure, "insert pattern row", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Get fetches a Pattern by ID, failing with NotFound if absent.
func (s *Store) Get(id string) (Pattern, error) {
	row := s.db.QueryRow(
		`SELECT id, name, language, code, test_code, description, tags, pattern_type, complexity,
			coherency_json, test_passed, author, usage_count, success_count, last_used, created_at,
			parent_pattern_id, evolution_history, status FROM patterns WHERE id = ?`, id,
	)
	p, err := scanPattern(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Pattern{}, oracleerr.Newf(oracleerr.NotFound, "pattern %q not found", id)
	}
	if err != nil {
		return Pattern{}, oracleerr.Wrap(oracleerr.IoFailure, "get pattern", err)
	}
	return p, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanPattern(row scannable) (Pattern, error) {
	var p Pattern
	var language, tagsJSON, coherJSON, evoJSON, status, createdAt string
	var testPassed int
	var lastUsed, parentID sql.NullString

	err := row.Scan(&p.ID, &p.Name, &language, &p.Code, &p.TestCode, &p.Description, &tagsJSON, &p.PatternType,
		&p.Complexity, &coherJSON, &testPassed, &p.Author, &p.UsageCount, &p.SuccessCount, &lastUsed, &createdAt,
		&parentID, &evoJSON, &status)
	if err != nil {
		return Pattern{}, err
	}

	p.Language = coherency.Language(language)
	p.TestPassed = testPassed != 0
	p.Status = Status(status)
	p.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	_ = json.Unmarshal([]byte(tagsJSON), &p.Tags)
	_ = json.Unmarshal([]byte(evoJSON), &p.EvolutionHistory)
	_ = json.Unmarshal([]byte(coherJSON), &p.CoherencyScore)

	if lastUsed.Valid {
		t, _ := time.Parse(time.RFC3339Nano, lastUsed.String)
		p.LastUsed = &t
	}
	if parentID.Valid {
		id := parentID.String
		p.ParentPatternID = &id
	}
	return p, nil
}

// List returns every Pattern matching filter, most-recently-created first.
func (s *Store) List(filter Filter) ([]Pattern, error) {
	query := `SELECT id, name, language, code, test_code, description, tags, pattern_type, complexity,
		coherency_json, test_passed, author, usage_count, success_count, last_used, created_at,
		parent_pattern_id, evolution_history, status FROM patterns WHERE 1=1`
	var args []any

	if filter.Language != "" {
		query += " AND language = ?"
		args = append(args, string(filter.Language))
	}
	if filter.HasStatus {
		query += " AND status = ?"
		args = append(args, string(filter.Status))
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, oracleerr.Wrap(oracleerr.IoFailure, "list patterns", err)
	}
	defer rows.Close()

	var out []Pattern
	for rows.Next() {
		p, err := scanPattern(rows)
		if err != nil {
			return nil, oracleerr.Wrap(oracleerr.IoFailure, "scan pattern row", err)
		}
		if filter.MinCoherency > 0 && p.CoherencyScore.Total < filter.MinCoherency {
			continue
		}
		if len(filter.Tags) > 0 && !hasAllTags(p.Tags, filter.Tags) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func hasAllTags(have, want []string) bool {
	set := make(map[string]bool, len(have))
	for _, t := range have {
		set[t] = true
	}
	for _, t := range want {
		if !set[t] {
			return false
		}
	}
	return true
}

// PatternUpdate carries the mutable subset of Pattern fields. Fields left
// nil are not touched; id, createdAt, and parentPatternId can never be
// changed via Update.
type PatternUpdate struct {
	Code             *string
	TestCode         *string
	Description      *string
	Tags             []string
	PatternType      *string
	Complexity       *string
	CoherencyScore   *coherency.Score
	TestPassed       *bool
	Status           *Status
	EvolutionHistory []string
}

// Update applies a partial mutation to a Pattern, failing with NotFound if
// it does not exist.
func (s *Store) Update(id string, u PatternUpdate) (Pattern, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.Get(id)
	if err != nil {
		return Pattern{}, err
	}

	if u.Code != nil {
		p.Code = *u.Code
	}
	if u.TestCode != nil {
		p.TestCode = *u.TestCode
	}
	if u.Description != nil {
		p.Description = *u.Description
	}
	if u.Tags != nil {
		p.Tags = u.Tags
	}
	if u.PatternType != nil {
		p.PatternType = *u.PatternType
	}
	if u.Complexity != nil {
		p.Complexity = *u.Complexity
	}
	if u.CoherencyScore != nil {
		p.CoherencyScore = *u.CoherencyScore
	}
	if u.TestPassed != nil {
		p.TestPassed = *u.TestPassed
	}
	if u.Status != nil {
		p.Status = *u.Status
	}
	if u.EvolutionHistory != nil {
		p.EvolutionHistory = u.EvolutionHistory
	}

	tagsJSON, _ := json.Marshal(p.Tags)
	coherJSON, _ := json.Marshal(p.CoherencyScore)
	evoJSON, _ := json.Marshal(p.EvolutionHistory)
	_, err = s.db.Exec(
		`UPDATE patterns SET code=?, test_code=?, description=?, tags=?, pattern_type=?, complexity=?,
			coherency_json=?, test_passed=?, status=?, evolution_history=? WHERE id=?`,
		p.Code, p.TestCode, p.Description, string(tagsJSON), p.PatternType, p.Complexity,
		string(coherJSON), boolToInt(p.TestPassed), string(p.Status), string(evoJSON), id,
	)
	if err != nil {
		return Pattern{}, oracleerr.Wrap(oracleerr.IoFailure, "update pattern", err)
	}

	s.emitAudit("update", "patterns", id, "", nil)
	return p, nil
}

// RecordUsage atomically bumps usageCount (and successCount if succeeded),
// stamping lastUsed.
func (s *Store) RecordUsage(id string, succeeded bool) (Pattern, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.Get(id); err != nil {
		return Pattern{}, err
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	if succeeded {
		_, err := s.db.Exec(`UPDATE patterns SET usage_count = usage_count + 1, success_count = success_count + 1, last_used = ? WHERE id = ?`, now, id)
		if err != nil {
			return Pattern{}, oracleerr.Wrap(oracleerr.IoFailure, "record usage", err)
		}
	} else {
		_, err := s.db.Exec(`UPDATE patterns SET usage_count = usage_count + 1, last_used = ? WHERE id = ?`, now, id)
		if err != nil {
			return Pattern{}, oracleerr.Wrap(oracleerr.IoFailure, "record usage", err)
		}
	}

	s.emitAudit("record_usage", "patterns", id, "", map[string]any{"succeeded": succeeded})
	return s.Get(id)
}

// Retire soft-deletes a Pattern by flipping its status, tombstoning the
// reason in the audit log.
func (s *Store) Retire(id string, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.Get(id); err != nil {
		return err
	}
	if _, err := s.db.Exec(`UPDATE patterns SET status = ? WHERE id = ?`, string(StatusRetired), id); err != nil {
		return oracleerr.Wrap(oracleerr.IoFailure, "retire pattern", err)
	}
	s.emitAudit("retire", "patterns", id, "", map[string]any{"reason": reason})
	return nil
}

// Prune retires every proven pattern whose coherency total falls below
// minCoherency, returning the affected IDs.
func (s *Store) Prune(minCoherency float64) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`SELECT id, coherency_json FROM patterns WHERE status = ?`, string(StatusProven))
	if err != nil {
		return nil, oracleerr.Wrap(oracleerr.IoFailure, "query proven patterns", err)
	}

	type candidate struct {
		id    string
		total float64
	}
	var below []candidate
	for rows.Next() {
		var id, coherJSON string
		if err := rows.Scan(&id, &coherJSON); err != nil {
			rows.Close()
			return nil, oracleerr.Wrap(oracleerr.IoFailure, "scan proven pattern", err)
		}
		var score coherency.Score
		_ = json.Unmarshal([]byte(coherJSON), &score)
		if score.Total < minCoherency {
			below = append(below, candidate{id: id, total: score.Total})
		}
	}
	rows.Close()

	var affected []string
	for _, c := range below {
		if _, err := s.db.Exec(`UPDATE patterns SET status = ? WHERE id = ?`, string(StatusRetired), c.id); err != nil {
			return affected, oracleerr.Wrap(oracleerr.IoFailure, "prune pattern", err)
		}
		s.emitAudit("retire", "patterns", c.id, "", map[string]any{"reason": "pruned", "coherency": c.total})
		affected = append(affected, c.id)
	}
	return affected, nil
}

// Candidates lists patterns with status=candidate matching filter.
func (s *Store) Candidates(filter Filter) ([]Pattern, error) {
	filter.HasStatus = true
	filter.Status = StatusCandidate
	return s.List(filter)
}
