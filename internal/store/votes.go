package store

import (
	"database/sql"
	"time"

	"github.com/Crackedcoder5TH/remembrance-oracle-toolkit-sub001/internal/oracleerr"
)

// RecordVote casts or replaces voter's vote on patternID. value is expected
// to be +1 or -1. Votes are summed by VoteScore; ranking does not read
// them.
func (s *Store) RecordVote(patternID, voter string, value int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.Get(patternID); err != nil {
		return err
	}

	_, err := s.db.Exec(
		`INSERT INTO votes (pattern_id, voter, value, cast_at) VALUES (?,?,?,?)
		 ON CONFLICT(pattern_id, voter) DO UPDATE SET value=excluded.value, cast_at=excluded.cast_at`,
		patternID, voter, value, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return oracleerr.Wrap(oracleerr.IoFailure, "record vote", err)
	}
	s.emitAudit("vote", "votes", patternID, voter, map[string]any{"value": value})
	return nil
}

// VoteScore sums every cast vote for patternID.
func (s *Store) VoteScore(patternID string) (int, error) {
	var total sql.NullInt64
	row := s.db.QueryRow(`SELECT SUM(value) FROM votes WHERE pattern_id = ?`, patternID)
	if err := row.Scan(&total); err != nil {
		return 0, oracleerr.Wrap(oracleerr.IoFailure, "sum votes", err)
	}
	return int(total.Int64), nil
}
