package assistant

import (
	"context"
	"testing"

	"github.com/Crackedcoder5TH/remembrance-oracle-toolkit-sub001/internal/coherency"
	"github.com/Crackedcoder5TH/remembrance-oracle-toolkit-sub001/internal/oracleerr"
	"github.com/Crackedcoder5TH/remembrance-oracle-toolkit-sub001/internal/reflection"
	"github.com/stretchr/testify/require"
)

func TestNoAssistantAlwaysReportsNoAnswerWithoutError(t *testing.T) {
	var a Assistant = NoAssistant{}
	out, ok, err := a.Transpile(context.Background(), "code", coherency.LanguageTypeScript, coherency.LanguageJavaScript)
	require.NoError(t, err)
	require.False(t, ok)
	require.Empty(t, out)
}

func TestFallbackTranspileUsesSyntacticConverterWhenNoAnswer(t *testing.T) {
	fb := NewFallback(nil, reflection.NewEngine(coherency.NewScorer()))
	out, ok, err := fb.Transpile(context.Background(), "let x: number = 1 as number;", coherency.LanguageTypeScript, coherency.LanguageJavaScript)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotContains(t, out, ": number")
	require.NotContains(t, out, "as number")
}

func TestFallbackTranspileUnknownPairReturnsNotOK(t *testing.T) {
	fb := NewFallback(nil, reflection.NewEngine(coherency.NewScorer()))
	_, ok, err := fb.Transpile(context.Background(), "fn main() {}", coherency.LanguageRust, coherency.LanguagePython)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestFallbackRefineUsesReflectionEngine(t *testing.T) {
	fb := NewFallback(nil, reflection.NewEngine(coherency.NewScorer()))
	out, _, err := fb.Refine(context.Background(), "func F() {\n\n\n\treturn\n}\n", coherency.LanguageGo)
	require.NoError(t, err)
	require.NotEmpty(t, out)
}

func TestFallbackGenerateTestsFailsWithNoTestSynthesis(t *testing.T) {
	fb := NewFallback(nil, reflection.NewEngine(coherency.NewScorer()))
	_, ok, err := fb.GenerateTests(context.Background(), "func F() {}", coherency.LanguageGo)
	require.False(t, ok)
	require.Error(t, err)
	kind, found := oracleerr.KindOf(err)
	require.True(t, found)
	require.Equal(t, oracleerr.NoTestSynthesis, kind)
}

type stubAssistant struct {
	transpileOut string
	transpileOK  bool
}

func (s stubAssistant) Transpile(context.Context, string, coherency.Language, coherency.Language) (string, bool, error) {
	return s.transpileOut, s.transpileOK, nil
}
func (stubAssistant) GenerateTests(context.Context, string, coherency.Language) (string, bool, error) {
	return "", false, nil
}
func (stubAssistant) Refine(context.Context, string, coherency.Language) (string, bool, error) {
	return "", false, nil
}
func (stubAssistant) GenerateAlternative(context.Context, string, coherency.Language) (string, bool, error) {
	return "", false, nil
}
func (stubAssistant) Explain(context.Context, string, coherency.Language) (string, bool, error) {
	return "", false, nil
}

func TestFallbackPrefersDelegateAnswerOverSyntacticConverter(t *testing.T) {
	fb := NewFallback(stubAssistant{transpileOut: "const x = 1;", transpileOK: true}, reflection.NewEngine(coherency.NewScorer()))
	out, ok, err := fb.Transpile(context.Background(), "let x: number = 1;", coherency.LanguageTypeScript, coherency.LanguageJavaScript)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "const x = 1;", out)
}
