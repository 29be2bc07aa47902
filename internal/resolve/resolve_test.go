package resolve

import (
	"testing"

	"github.com/Crackedcoder5TH/remembrance-oracle-toolkit-sub001/internal/rank"
	"github.com/Crackedcoder5TH/remembrance-oracle-toolkit-sub001/internal/store"
	"github.com/stretchr/testify/require"
)

func TestResolveEmptyYieldsGenerate(t *testing.T) {
	result := Resolve(nil)
	require.Equal(t, DecisionGenerate, result.Decision)
	require.Nil(t, result.Best)
	require.NotEmpty(t, result.Whisper)
}

func TestResolvePullAboveThreshold(t *testing.T) {
	ranked := []rank.Ranked{{Pattern: store.Pattern{Name: "p", Code: "x"}, Composite: 0.85}}
	result := Resolve(ranked)
	require.Equal(t, DecisionPull, result.Decision)
}

func TestResolveEvolveInMiddleBand(t *testing.T) {
	ranked := []rank.Ranked{{Pattern: store.Pattern{Name: "p", Code: "x"}, Composite: 0.6}}
	result := Resolve(ranked)
	require.Equal(t, DecisionEvolve, result.Decision)
}

func TestResolveGenerateBelowBothThresholds(t *testing.T) {
	ranked := []rank.Ranked{{Pattern: store.Pattern{Name: "p", Code: "x"}, Composite: 0.2}}
	result := Resolve(ranked)
	require.Equal(t, DecisionGenerate, result.Decision)
	require.Nil(t, result.Best)
	require.Nil(t, result.Alternative)
	require.NotEmpty(t, result.Whisper)
}

func TestResolveReturnsSecondBestAsAlternative(t *testing.T) {
	ranked := []rank.Ranked{
		{Pattern: store.Pattern{ID: "first", Name: "a", Code: "x"}, Composite: 0.9},
		{Pattern: store.Pattern{ID: "second", Name: "b", Code: "y"}, Composite: 0.85},
	}
	result := Resolve(ranked)
	require.NotNil(t, result.Alternative)
	require.Equal(t, "second", result.Alternative.Pattern.ID)
}

func TestWhisperSelectionIsDeterministic(t *testing.T) {
	ranked := []rank.Ranked{{Pattern: store.Pattern{Name: "abc", Code: "defgh"}, Composite: 0.9}}
	first := Resolve(ranked).Whisper
	second := Resolve(ranked).Whisper
	require.Equal(t, first, second)
}

func TestHealLoopsForDecision(t *testing.T) {
	require.Equal(t, evolveHealLoops, HealLoopsFor(DecisionEvolve))
	require.Equal(t, pullHealLoops, HealLoopsFor(DecisionPull))
	require.Equal(t, pullHealLoops, HealLoopsFor(DecisionGenerate))
}
