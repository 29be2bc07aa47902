package reflection

import (
	"testing"

	"github.com/Crackedcoder5TH/remembrance-oracle-toolkit-sub001/internal/coherency"
	"github.com/stretchr/testify/require"
)

func TestHealNeverDecreasesCoherency(t *testing.T) {
	engine := NewEngine(coherency.NewScorer())
	code := "func add(a, b int) int {\n\treturn a + b\n}\n"
	report, err := engine.Heal(code, coherency.LanguageGo, 3)
	require.NoError(t, err)
	require.GreaterOrEqual(t, report.FinalCoherence.Total, report.OriginalCoherence.Total)
}

func TestHealFixedPointLeavesAlreadyHealedCodeUnchanged(t *testing.T) {
	engine := NewEngine(coherency.NewScorer())
	code := "func add(a, b int) int {\n\treturn a + b\n}\n"

	first, err := engine.Heal(code, coherency.LanguageGo, 5)
	require.NoError(t, err)

	second, err := engine.Heal(first.Code, coherency.LanguageGo, 5)
	require.NoError(t, err)
	require.InDelta(t, first.FinalCoherence.Total, second.FinalCoherence.Total, Epsilon)
}

func TestHealRemovesEval(t *testing.T) {
	engine := NewEngine(coherency.NewScorer())
	report, err := engine.Heal("eval(userInput)", coherency.LanguageJavaScript, 3)
	require.NoError(t, err)
	require.NotContains(t, report.Code, "eval(userInput)")
}

func TestHealLoopBoundedByMaxLoops(t *testing.T) {
	engine := NewEngine(coherency.NewScorer())
	report, err := engine.Heal("func f() int { return 1 }", coherency.LanguageGo, 2)
	require.NoError(t, err)
	require.LessOrEqual(t, len(report.Loops), 2)
}

func TestImprovedReflectsLoopHistory(t *testing.T) {
	r := Report{}
	require.False(t, r.Improved())
	r.Loops = append(r.Loops, LoopRecord{Iteration: 1})
	require.True(t, r.Improved())
}
