package admission

import (
	"context"
	"testing"
	"time"

	"github.com/Crackedcoder5TH/remembrance-oracle-toolkit-sub001/internal/coherency"
	"github.com/Crackedcoder5TH/remembrance-oracle-toolkit-sub001/internal/eventbus"
	"github.com/Crackedcoder5TH/remembrance-oracle-toolkit-sub001/internal/safety"
	"github.com/Crackedcoder5TH/remembrance-oracle-toolkit-sub001/internal/sandbox"
	"github.com/Crackedcoder5TH/remembrance-oracle-toolkit-sub001/internal/store"
	"github.com/stretchr/testify/require"
)

func newTestPipeline(t *testing.T) (*Pipeline, *store.Store) {
	t.Helper()
	s, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	p := New(safety.NewGate(), sandbox.New(5*time.Second), coherency.NewScorer(), s, eventbus.New(), 0.3, 5*time.Second)
	return p, s
}

func TestSubmitAdmitsCoherentCode(t *testing.T) {
	p, _ := newTestPipeline(t)
	result, err := p.Submit(context.Background(), Submission{
		Name: "simple-add", Language: coherency.LanguageGo, Code: "func Add(a, b int) int {\n\treturn a + b\n}\n",
	})
	require.NoError(t, err)
	require.Equal(t, OutcomeAdmitted, result.Outcome)
	require.NotEmpty(t, result.Pattern.ID)
}

func TestSubmitRejectsSafetyVeto(t *testing.T) {
	p, _ := newTestPipeline(t)
	result, err := p.Submit(context.Background(), Submission{
		Name: "dangerous", Language: coherency.LanguageJavaScript, Code: "eval(userInput)",
	})
	require.NoError(t, err)
	require.Equal(t, OutcomeRejected, result.Outcome)
	require.Equal(t, "safety", result.Reason)
}

func TestSubmitRejectsFailingTest(t *testing.T) {
	p, _ := newTestPipeline(t)
	result, err := p.Submit(context.Background(), Submission{
		Name: "broken", Language: coherency.LanguageGo,
		Code: "func Double(n int) int { return n + 1 }", TestCode: "if Double(2) != 4 { panic(\"FAIL\") }",
	})
	require.NoError(t, err)
	require.Equal(t, OutcomeRejected, result.Outcome)
	require.Equal(t, "test", result.Reason)
}

func TestSubmitIsIdempotentOnDuplicate(t *testing.T) {
	p, _ := newTestPipeline(t)
	sub := Submission{Name: "dup-check", Language: coherency.LanguageGo, Code: "func F() int { return 1 }"}

	first, err := p.Submit(context.Background(), sub)
	require.NoError(t, err)
	require.Equal(t, OutcomeAdmitted, first.Outcome)

	second, err := p.Submit(context.Background(), sub)
	require.NoError(t, err)
	require.Equal(t, OutcomeDuplicate, second.Outcome)
	require.Equal(t, first.Pattern.ID, second.ExistingID)
}

func TestSubmitWithPassingTestMarksProven(t *testing.T) {
	p, _ := newTestPipeline(t)
	result, err := p.Submit(context.Background(), Submission{
		Name: "tested-add", Language: coherency.LanguageGo,
		Code: "func Add(a, b int) int {\n\treturn a + b\n}\n", TestCode: "if Add(1, 2) != 3 { panic(\"FAIL\") }",
	})
	require.NoError(t, err)
	require.Equal(t, OutcomeAdmitted, result.Outcome)
	require.Equal(t, store.StatusProven, result.Pattern.Status)
	require.True(t, result.Pattern.TestPassed)
}

func TestSubmitWithoutTestIsCandidate(t *testing.T) {
	p, _ := newTestPipeline(t)
	result, err := p.Submit(context.Background(), Submission{
		Name: "untested-add", Language: coherency.LanguageGo,
		Code: "func Add(a, b int) int {\n\treturn a + b\n}\n",
	})
	require.NoError(t, err)
	require.Equal(t, OutcomeAdmitted, result.Outcome)
	require.Equal(t, store.StatusCandidate, result.Pattern.Status)
	require.False(t, result.Pattern.TestPassed)
}

func TestPromoteCandidateFlipsStatusOnSuccess(t *testing.T) {
	p, s := newTestPipeline(t)
	submitted, err := p.Submit(context.Background(), Submission{
		Name: "needs-promotion", Language: coherency.LanguageGo,
		Code: "func Add(a, b int) int {\n\treturn a + b\n}\n",
	})
	require.NoError(t, err)
	require.Equal(t, store.StatusCandidate, submitted.Pattern.Status)

	testCode := "if Add(1, 2) != 3 { panic(\"FAIL\") }"
	_, err = s.Update(submitted.Pattern.ID, store.PatternUpdate{TestCode: &testCode})
	require.NoError(t, err)

	promoted, err := p.PromoteCandidate(context.Background(), submitted.Pattern.ID)
	require.NoError(t, err)
	require.Equal(t, OutcomeAdmitted, promoted.Outcome)
	require.Equal(t, store.StatusProven, promoted.Pattern.Status)
}

func TestPromoteCandidateRejectsFailingTest(t *testing.T) {
	p, s := newTestPipeline(t)
	submitted, err := p.Submit(context.Background(), Submission{
		Name: "stays-candidate", Language: coherency.LanguageGo,
		Code: "func Double(n int) int { return n + 1 }",
	})
	require.NoError(t, err)

	testCode := "if Double(2) != 4 { panic(\"FAIL\") }"
	_, err = s.Update(submitted.Pattern.ID, store.PatternUpdate{TestCode: &testCode})
	require.NoError(t, err)

	result, err := p.PromoteCandidate(context.Background(), submitted.Pattern.ID)
	require.NoError(t, err)
	require.Equal(t, OutcomeRejected, result.Outcome)

	got, err := s.Get(submitted.Pattern.ID)
	require.NoError(t, err)
	require.Equal(t, store.StatusCandidate, got.Status)
}

func TestSubmitEmitsPatternAddedEvent(t *testing.T) {
	s, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	bus := eventbus.New()
	received := make(chan eventbus.Event, 1)
	bus.Subscribe(eventbus.PatternAdded, func(e eventbus.Event) { received <- e })

	p := New(safety.NewGate(), sandbox.New(5*time.Second), coherency.NewScorer(), s, bus, 0.3, 5*time.Second)
	_, err = p.Submit(context.Background(), Submission{Name: "ev", Language: coherency.LanguageGo, Code: "func F() int { return 1 }"})
	require.NoError(t, err)

	select {
	case e := <-received:
		require.Equal(t, eventbus.PatternAdded, e.Name)
	case <-time.After(time.Second):
		t.Fatal("expected pattern_added event")
	}
}
