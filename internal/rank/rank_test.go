package rank

import (
	"testing"
	"time"

	"github.com/Crackedcoder5TH/remembrance-oracle-toolkit-sub001/internal/coherency"
	"github.com/Crackedcoder5TH/remembrance-oracle-toolkit-sub001/internal/store"
	"github.com/stretchr/testify/require"
)

func TestRankOrdersByComposite(t *testing.T) {
	q := Query{Description: "retry http request", Tags: []string{"networking"}, Language: coherency.LanguageGo}
	candidates := []store.Pattern{
		{ID: "a", Name: "http-retry", Description: "retry an http request", Tags: []string{"http"}, Language: coherency.LanguageGo, CoherencyScore: coherency.Score{Total: 0.9}},
		{ID: "b", Name: "unrelated", Description: "sorts a slice", Tags: []string{"algorithms"}, Language: coherency.LanguageGo, CoherencyScore: coherency.Score{Total: 0.9}},
	}

	ranked := Rank(q, candidates)
	require.Len(t, ranked, 2)
	require.Equal(t, "a", ranked[0].Pattern.ID)
}

func TestRankTieBreaksByCoherencyThenUsageThenCreatedAt(t *testing.T) {
	older := time.Unix(0, 0)
	newer := time.Unix(1000, 0)
	candidates := []store.Pattern{
		{ID: "low-coherency", CoherencyScore: coherency.Score{Total: 0.5}, CreatedAt: older},
		{ID: "high-coherency-newer", CoherencyScore: coherency.Score{Total: 0.9}, CreatedAt: newer},
		{ID: "high-coherency-older", CoherencyScore: coherency.Score{Total: 0.9}, CreatedAt: older},
	}
	ranked := Rank(Query{}, candidates)
	require.Equal(t, "high-coherency-older", ranked[0].Pattern.ID)
	require.Equal(t, "high-coherency-newer", ranked[1].Pattern.ID)
	require.Equal(t, "low-coherency", ranked[2].Pattern.ID)
}

func TestLanguageMatchIsPartialWithinFamily(t *testing.T) {
	require.Equal(t, 1.0, languageMatch(coherency.LanguageGo, coherency.LanguageGo))
	require.Equal(t, partialFamilyMatch, languageMatch(coherency.LanguageJavaScript, coherency.LanguageTypeScript))
	require.Equal(t, 0.0, languageMatch(coherency.LanguageGo, coherency.LanguagePython))
	require.Equal(t, 1.0, languageMatch("", coherency.LanguagePython))
}

func TestReliabilityDefaultsOptimisticallyWithNoUsage(t *testing.T) {
	// An empty query still scores languageMatch=1, so relevance is the
	// language term alone.
	p := store.Pattern{ID: "fresh", CoherencyScore: coherency.Score{Total: 0.6}}
	ranked := RankWithBoost(Query{}, []store.Pattern{p}, nil)
	expected := compositeRelevance*weightLanguageMatch + compositeCoherency*0.6 + compositeReliability*optimisticReliability
	require.InDelta(t, expected, ranked[0].Composite, 1e-9)
}

func TestHealingBoostIncreasesComposite(t *testing.T) {
	p := store.Pattern{ID: "p1", CoherencyScore: coherency.Score{Total: 0.6}}
	withoutBoost := RankWithBoost(Query{}, []store.Pattern{p}, nil)
	withBoost := RankWithBoost(Query{}, []store.Pattern{p}, map[string]float64{"p1": 1.5})
	require.Greater(t, withBoost[0].Composite, withoutBoost[0].Composite)
}

func TestConceptClusterExpandsRelatedTags(t *testing.T) {
	score := conceptClusterOverlap([]string{"concurrency"}, []string{"goroutine"})
	require.Greater(t, score, 0.0)
}
