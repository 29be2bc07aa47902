package federation

import (
	"context"
	"errors"
	"testing"

	"github.com/Crackedcoder5TH/remembrance-oracle-toolkit-sub001/internal/coherency"
	"github.com/Crackedcoder5TH/remembrance-oracle-toolkit-sub001/internal/rank"
	"github.com/Crackedcoder5TH/remembrance-oracle-toolkit-sub001/internal/store"
	"github.com/stretchr/testify/require"
)

type fakeTier struct {
	name     store.Tier
	patterns []store.Pattern
	err      error
}

func (f fakeTier) Name() store.Tier { return f.name }
func (f fakeTier) Search(ctx context.Context, q rank.Query) ([]store.Pattern, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.patterns, nil
}

func TestSearchMergesAcrossTiers(t *testing.T) {
	local := fakeTier{name: store.TierLocal, patterns: []store.Pattern{
		{Name: "p1", Language: coherency.LanguageGo, CoherencyScore: coherency.Score{Total: 0.8}},
	}}
	community := fakeTier{name: store.TierCommunity, patterns: []store.Pattern{
		{Name: "p2", Language: coherency.LanguageGo, CoherencyScore: coherency.Score{Total: 0.9}},
	}}

	f := New(local, community)
	result := f.Search(context.Background(), rank.Query{Language: coherency.LanguageGo}, 10)
	require.Len(t, result.Patterns, 2)
	require.Empty(t, result.Errors)
}

func TestSearchDedupsByNameAndLanguagePreferringLocal(t *testing.T) {
	local := fakeTier{name: store.TierLocal, patterns: []store.Pattern{
		{ID: "local-version", Name: "shared", Language: coherency.LanguageGo, CoherencyScore: coherency.Score{Total: 0.5}},
	}}
	community := fakeTier{name: store.TierCommunity, patterns: []store.Pattern{
		{ID: "community-version", Name: "shared", Language: coherency.LanguageGo, CoherencyScore: coherency.Score{Total: 0.95}},
	}}

	f := New(local, community)
	result := f.Search(context.Background(), rank.Query{}, 10)
	require.Len(t, result.Patterns, 1)
	require.Equal(t, "local-version", result.Patterns[0].Pattern.ID)
}

func TestSearchRecordsPartialFailure(t *testing.T) {
	local := fakeTier{name: store.TierLocal, patterns: []store.Pattern{{Name: "p1", Language: coherency.LanguageGo}}}
	broken := fakeTier{name: store.TierCommunity, err: errors.New("unreachable")}

	f := New(local, broken)
	result := f.Search(context.Background(), rank.Query{}, 10)
	require.Len(t, result.Patterns, 1)
	require.Contains(t, result.Errors, store.TierCommunity)
}

func TestSearchTrimsToLimit(t *testing.T) {
	var patterns []store.Pattern
	for i := 0; i < 5; i++ {
		patterns = append(patterns, store.Pattern{Name: "p" + string(rune('a'+i)), Language: coherency.LanguageGo})
	}
	f := New(fakeTier{name: store.TierLocal, patterns: patterns})
	result := f.Search(context.Background(), rank.Query{}, 2)
	require.Len(t, result.Patterns, 2)
}
