package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/Crackedcoder5TH/remembrance-oracle-toolkit-sub001/internal/oracleerr"
)

// AddHealedVariant stores an immutable improvement over a parent Pattern.
// A variant whose healedCoherency regresses below originalCoherency is
// rejected; a failed healing attempt is only ever recorded in stats.
func (s *Store) AddHealedVariant(v HealedVariant) (HealedVariant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v.HealedCoherency < v.OriginalCoherency {
		return HealedVariant{}, oracleerr.Newf(oracleerr.Internal,
			"healed variant coherency %.4f is below original %.4f", v.HealedCoherency, v.OriginalCoherency)
	}
	if _, err := s.Get(v.ParentPatternID); err != nil {
		return HealedVariant{}, err
	}

	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.HealedAt.IsZero() {
		v.HealedAt = time.Now().UTC()
	}

	_, err := s.db.Exec(
		`INSERT INTO healed_variants (id, parent_pattern_id, healed_code, original_coherency,
			healed_coherency, healing_loops, healing_strategy, whisper, healed_at) VALUES (?,?,?,?,?,?,?,?,?)`,
		v.ID, v.ParentPatternID, v.HealedCode, v.OriginalCoherency, v.HealedCoherency,
		v.HealingLoops, v.HealingStrategy, v.Whisper, v.HealedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return HealedVariant{}, oracleerr.Wrap(oracleerr.IoFailure, "insert healed variant", err)
	}

	s.emitAudit("add", "healed_variants", v.ID, "", map[string]any{"parent": v.ParentPatternID})
	return v, nil
}

// BestHealedVariant returns the HealedVariant for parentID with the highest
// healedCoherency, breaking ties by fewest healingLoops.
func (s *Store) BestHealedVariant(parentID string) (HealedVariant, bool, error) {
	row := s.db.QueryRow(
		`SELECT id, parent_pattern_id, healed_code, original_coherency, healed_coherency, healing_loops,
			healing_strategy, whisper, healed_at FROM healed_variants WHERE parent_pattern_id = ?
		 ORDER BY healed_coherency DESC, healing_loops ASC LIMIT 1`, parentID,
	)

	var v HealedVariant
	var healedAt string
	err := row.Scan(&v.ID, &v.ParentPatternID, &v.HealedCode, &v.OriginalCoherency, &v.HealedCoherency,
		&v.HealingLoops, &v.HealingStrategy, &v.Whisper, &healedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return HealedVariant{}, false, nil
	}
	if err != nil {
		return HealedVariant{}, false, oracleerr.Wrap(oracleerr.IoFailure, "query best healed variant", err)
	}
	v.HealedAt, _ = time.Parse(time.RFC3339Nano, healedAt)
	return v, true, nil
}

// RecordHealingAttempt updates the rolling HealingStats for a pattern.
// Always succeeds; healing attempts are recorded whether or not they
// improved coherency.
func (s *Store) RecordHealingAttempt(patternID string, succeeded bool, before, after float64, loops int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats, err := s.healingStatsLocked(patternID)
	if err != nil {
		return err
	}

	stats.Attempts++
	if succeeded {
		stats.Successes++
	}
	delta := after - before
	stats.LastDeltaBest = delta
	if after > stats.PeakCoherency {
		stats.PeakCoherency = after
	}

	_, err = s.db.Exec(
		`INSERT INTO healing_stats (pattern_id, attempts, successes, peak_coherency, last_delta_best)
		 VALUES (?,?,?,?,?)
		 ON CONFLICT(pattern_id) DO UPDATE SET attempts=excluded.attempts, successes=excluded.successes,
			peak_coherency=excluded.peak_coherency, last_delta_best=excluded.last_delta_best`,
		patternID, stats.Attempts, stats.Successes, stats.PeakCoherency, stats.LastDeltaBest,
	)
	if err != nil {
		return oracleerr.Wrap(oracleerr.IoFailure, "upsert healing stats", err)
	}

	s.emitAudit("healing_attempt", "healing_stats", patternID, "", map[string]any{
		"succeeded": succeeded, "loops": loops, "delta": delta,
	})
	return nil
}

// HealingStatsFor returns the current rolling stats for a pattern, the zero
// value (attempts=0, optimistic successRate=1.0) if none recorded yet.
func (s *Store) HealingStatsFor(patternID string) (HealingStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.healingStatsLocked(patternID)
}

func (s *Store) healingStatsLocked(patternID string) (HealingStats, error) {
	row := s.db.QueryRow(
		`SELECT pattern_id, attempts, successes, peak_coherency, last_delta_best FROM healing_stats WHERE pattern_id = ?`,
		patternID,
	)
	var hs HealingStats
	err := row.Scan(&hs.PatternID, &hs.Attempts, &hs.Successes, &hs.PeakCoherency, &hs.LastDeltaBest)
	if errors.Is(err, sql.ErrNoRows) {
		return HealingStats{PatternID: patternID}, nil
	}
	if err != nil {
		return HealingStats{}, oracleerr.Wrap(oracleerr.IoFailure, "query healing stats", err)
	}
	return hs, nil
}
