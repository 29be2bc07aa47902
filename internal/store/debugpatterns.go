package store

import (
	"database/sql"
	"errors"

	"github.com/Crackedcoder5TH/remembrance-oracle-toolkit-sub001/internal/coherency"
	"github.com/Crackedcoder5TH/remembrance-oracle-toolkit-sub001/internal/oracleerr"
)

// UpsertDebugPattern inserts a new DebugPattern or, if its fingerprint
// already exists, leaves the stored record in place: repeat captures of
// the same error never overwrite an established fix.
func (s *Store) UpsertDebugPattern(d DebugPattern) (DebugPattern, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, found, err := s.debugPatternLocked(d.Fingerprint)
	if err != nil {
		return DebugPattern{}, err
	}
	if found {
		return existing, nil
	}

	if d.Confidence == 0 {
		d.Confidence = coherency.DebugConfidence(0, 0)
	}
	_, err = s.db.Exec(
		`INSERT INTO debug_patterns (fingerprint, error_message, stack_trace, fix_code, language, category,
			confidence, times_applied, times_resolved) VALUES (?,?,?,?,?,?,?,?,?)`,
		d.Fingerprint, d.ErrorMessage, d.StackTrace, d.FixCode, string(d.Language), string(d.Category),
		d.Confidence, d.TimesApplied, d.TimesResolved,
	)
	if err != nil {
		return DebugPattern{}, oracleerr.Wrap(oracleerr.IoFailure, "insert debug pattern", err)
	}
	s.emitAudit("add", "debug_patterns", d.Fingerprint, "", map[string]any{"category": string(d.Category)})
	return d, nil
}

// GetDebugPattern looks up a DebugPattern by fingerprint.
func (s *Store) GetDebugPattern(fingerprint string) (DebugPattern, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.debugPatternLocked(fingerprint)
}

func (s *Store) debugPatternLocked(fingerprint string) (DebugPattern, bool, error) {
	row := s.db.QueryRow(
		`SELECT fingerprint, error_message, stack_trace, fix_code, language, category, confidence,
			times_applied, times_resolved FROM debug_patterns WHERE fingerprint = ?`, fingerprint,
	)
	var d DebugPattern
	var language, category string
	err := row.Scan(&d.Fingerprint, &d.ErrorMessage, &d.StackTrace, &d.FixCode, &language, &category,
		&d.Confidence, &d.TimesApplied, &d.TimesResolved)
	if errors.Is(err, sql.ErrNoRows) {
		return DebugPattern{}, false, nil
	}
	if err != nil {
		return DebugPattern{}, false, oracleerr.Wrap(oracleerr.IoFailure, "query debug pattern", err)
	}
	d.Language = coherency.Language(language)
	d.Category = DebugCategory(category)
	return d, true, nil
}

// ListDebugPatterns returns every DebugPattern for lang, or every DebugPattern
// if lang is empty, ordered by descending confidence.
func (s *Store) ListDebugPatterns(lang coherency.Language) ([]DebugPattern, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `SELECT fingerprint, error_message, stack_trace, fix_code, language, category, confidence,
		times_applied, times_resolved FROM debug_patterns WHERE 1=1`
	var args []any
	if lang != "" {
		query += " AND language = ?"
		args = append(args, string(lang))
	}
	query += " ORDER BY confidence DESC"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, oracleerr.Wrap(oracleerr.IoFailure, "list debug patterns", err)
	}
	defer rows.Close()

	var out []DebugPattern
	for rows.Next() {
		var d DebugPattern
		var language, category string
		if err := rows.Scan(&d.Fingerprint, &d.ErrorMessage, &d.StackTrace, &d.FixCode, &language, &category,
			&d.Confidence, &d.TimesApplied, &d.TimesResolved); err != nil {
			return nil, oracleerr.Wrap(oracleerr.IoFailure, "scan debug pattern row", err)
		}
		d.Language = coherency.Language(language)
		d.Category = DebugCategory(category)
		out = append(out, d)
	}
	return out, nil
}

// RecordDebugOutcome bumps timesApplied (and timesResolved if resolved) and
// recomputes confidence via the calibrated sigmoid in coherency.DebugConfidence.
func (s *Store) RecordDebugOutcome(fingerprint string, resolved bool) (DebugPattern, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, found, err := s.debugPatternLocked(fingerprint)
	if err != nil {
		return DebugPattern{}, err
	}
	if !found {
		return DebugPattern{}, oracleerr.Newf(oracleerr.NotFound, "debug pattern %q not found", fingerprint)
	}

	d.TimesApplied++
	if resolved {
		d.TimesResolved++
	}
	d.Confidence = coherency.DebugConfidence(d.TimesApplied, d.TimesResolved)

	_, err = s.db.Exec(
		`UPDATE debug_patterns SET times_applied=?, times_resolved=?, confidence=? WHERE fingerprint=?`,
		d.TimesApplied, d.TimesResolved, d.Confidence, fingerprint,
	)
	if err != nil {
		return DebugPattern{}, oracleerr.Wrap(oracleerr.IoFailure, "update debug pattern outcome", err)
	}
	s.emitAudit("debug_outcome", "debug_patterns", fingerprint, "", map[string]any{"resolved": resolved})
	return d, nil
}
