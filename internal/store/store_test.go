package store

import (
	"testing"

	"github.com/Crackedcoder5TH/remembrance-oracle-toolkit-sub001/internal/coherency"
	"github.com/Crackedcoder5TH/remembrance-oracle-toolkit-sub001/internal/oracleerr"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestInsertAndGet(t *testing.T) {
	s := newTestStore(t)
	p, err := s.Insert(Pattern{Name: "retry-loop", Language: coherency.LanguageGo, Code: "func f() {}"})
	require.NoError(t, err)
	require.NotEmpty(t, p.ID)
	require.Equal(t, StatusCandidate, p.Status)

	got, err := s.Get(p.ID)
	require.NoError(t, err)
	require.Equal(t, p.Name, got.Name)
}

func TestInsertDuplicateNameFails(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Insert(Pattern{Name: "retry-loop", Language: coherency.LanguageGo, Code: "x"})
	require.NoError(t, err)

	_, err = s.Insert(Pattern{Name: "retry-loop", Language: coherency.LanguageGo, Code: "y"})
	require.Error(t, err)
	kind, ok := oracleerr.KindOf(err)
	require.True(t, ok)
	require.Equal(t, oracleerr.DuplicateName, kind)
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get("does-not-exist")
	require.Error(t, err)
	kind, _ := oracleerr.KindOf(err)
	require.Equal(t, oracleerr.NotFound, kind)
}

func TestRecordUsageIncrementsCounters(t *testing.T) {
	s := newTestStore(t)
	p, err := s.Insert(Pattern{Name: "p1", Language: coherency.LanguageGo, Code: "x"})
	require.NoError(t, err)

	updated, err := s.RecordUsage(p.ID, true)
	require.NoError(t, err)
	require.Equal(t, 1, updated.UsageCount)
	require.Equal(t, 1, updated.SuccessCount)
	require.NotNil(t, updated.LastUsed)

	updated, err = s.RecordUsage(p.ID, false)
	require.NoError(t, err)
	require.Equal(t, 2, updated.UsageCount)
	require.Equal(t, 1, updated.SuccessCount)
}

func TestListFiltersByLanguageAndStatus(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Insert(Pattern{Name: "go-one", Language: coherency.LanguageGo, Code: "x"})
	require.NoError(t, err)
	_, err = s.Insert(Pattern{Name: "py-one", Language: coherency.LanguagePython, Code: "x"})
	require.NoError(t, err)

	goPatterns, err := s.List(Filter{Language: coherency.LanguageGo})
	require.NoError(t, err)
	require.Len(t, goPatterns, 1)
	require.Equal(t, "go-one", goPatterns[0].Name)
}

func TestUpdateRejectsUnknownID(t *testing.T) {
	s := newTestStore(t)
	desc := "new description"
	_, err := s.Update("missing", PatternUpdate{Description: &desc})
	require.Error(t, err)
}

func TestAddHealedVariantRejectsRegression(t *testing.T) {
	s := newTestStore(t)
	p, err := s.Insert(Pattern{Name: "p", Language: coherency.LanguageGo, Code: "x"})
	require.NoError(t, err)

	_, err = s.AddHealedVariant(HealedVariant{
		ParentPatternID:   p.ID,
		HealedCode:        "y",
		OriginalCoherency: 0.8,
		HealedCoherency:   0.5,
	})
	require.Error(t, err)
}

func TestBestHealedVariantPicksHighestCoherencyThenFewestLoops(t *testing.T) {
	s := newTestStore(t)
	p, err := s.Insert(Pattern{Name: "p", Language: coherency.LanguageGo, Code: "x"})
	require.NoError(t, err)

	_, err = s.AddHealedVariant(HealedVariant{ParentPatternID: p.ID, HealedCode: "a", OriginalCoherency: 0.5, HealedCoherency: 0.7, HealingLoops: 3})
	require.NoError(t, err)
	_, err = s.AddHealedVariant(HealedVariant{ParentPatternID: p.ID, HealedCode: "b", OriginalCoherency: 0.5, HealedCoherency: 0.9, HealingLoops: 2})
	require.NoError(t, err)
	_, err = s.AddHealedVariant(HealedVariant{ParentPatternID: p.ID, HealedCode: "c", OriginalCoherency: 0.5, HealedCoherency: 0.9, HealingLoops: 1})
	require.NoError(t, err)

	best, found, err := s.BestHealedVariant(p.ID)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "c", best.HealedCode)
}

func TestRecordHealingAttemptAccumulatesStats(t *testing.T) {
	s := newTestStore(t)
	p, err := s.Insert(Pattern{Name: "p", Language: coherency.LanguageGo, Code: "x"})
	require.NoError(t, err)

	require.NoError(t, s.RecordHealingAttempt(p.ID, true, 0.5, 0.8, 2))
	require.NoError(t, s.RecordHealingAttempt(p.ID, false, 0.8, 0.8, 1))

	stats, err := s.HealingStatsFor(p.ID)
	require.NoError(t, err)
	require.Equal(t, 2, stats.Attempts)
	require.Equal(t, 1, stats.Successes)
	require.InDelta(t, 0.5, stats.SuccessRate(), 1e-9)
}

func TestPruneRetiresLowCoherencyProvenPatterns(t *testing.T) {
	s := newTestStore(t)
	p, err := s.Insert(Pattern{Name: "p", Language: coherency.LanguageGo, Code: "x", CoherencyScore: coherency.Score{Total: 0.3}})
	require.NoError(t, err)
	proven := StatusProven
	_, err = s.Update(p.ID, PatternUpdate{Status: &proven})
	require.NoError(t, err)

	affected, err := s.Prune(0.6)
	require.NoError(t, err)
	require.Contains(t, affected, p.ID)

	got, err := s.Get(p.ID)
	require.NoError(t, err)
	require.Equal(t, StatusRetired, got.Status)
}

func TestAuditTrailRecordsMutations(t *testing.T) {
	s := newTestStore(t)
	p, err := s.Insert(Pattern{Name: "p", Language: coherency.LanguageGo, Code: "x"})
	require.NoError(t, err)
	_, err = s.RecordUsage(p.ID, true)
	require.NoError(t, err)

	trail, err := s.AuditTrail(p.ID)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(trail), 2)
	require.Equal(t, "add", trail[0].Action)
}

func TestDebugPatternUpsertAndOutcome(t *testing.T) {
	s := newTestStore(t)
	d, err := s.UpsertDebugPattern(DebugPattern{
		Fingerprint: "fp1", ErrorMessage: "nil pointer", FixCode: "if x != nil { ... }",
		Language: coherency.LanguageGo, Category: CategoryRuntime,
	})
	require.NoError(t, err)
	require.InDelta(t, 0.2, d.Confidence, 1e-6)

	updated, err := s.RecordDebugOutcome("fp1", true)
	require.NoError(t, err)
	require.Equal(t, 1, updated.TimesApplied)
	require.Equal(t, 1, updated.TimesResolved)
	require.Greater(t, updated.Confidence, 0.2)
}

func TestVoteScoreSumsVotes(t *testing.T) {
	s := newTestStore(t)
	p, err := s.Insert(Pattern{Name: "p", Language: coherency.LanguageGo, Code: "x"})
	require.NoError(t, err)

	require.NoError(t, s.RecordVote(p.ID, "alice", 1))
	require.NoError(t, s.RecordVote(p.ID, "bob", 1))
	require.NoError(t, s.RecordVote(p.ID, "alice", -1))

	score, err := s.VoteScore(p.ID)
	require.NoError(t, err)
	require.Equal(t, 0, score)
}
