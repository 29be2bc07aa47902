package oracle

import (
	"context"
	"time"

	"github.com/Crackedcoder5TH/remembrance-oracle-toolkit-sub001/internal/admission"
	"github.com/Crackedcoder5TH/remembrance-oracle-toolkit-sub001/internal/coherency"
	"github.com/Crackedcoder5TH/remembrance-oracle-toolkit-sub001/internal/eventbus"
	"github.com/Crackedcoder5TH/remembrance-oracle-toolkit-sub001/internal/sandbox"
	"github.com/Crackedcoder5TH/remembrance-oracle-toolkit-sub001/internal/store"
)

// AdmissionResult is the outcome of submit/registerPattern/evolvePattern:
// admitted, rejected (with a reason and the stage's diagnostic), or
// duplicate (idempotent resubmission of an already-stored pattern).
type AdmissionResult = admission.Result

// SubmitMetadata carries every field of a submission besides the code
// itself, matching Pattern's content and quality fields.
type SubmitMetadata struct {
	Name        string
	Language    coherency.Language
	TestCode    string
	Description string
	Tags        []string
	PatternType string
	Complexity  string
	Author      string
}

// Submit runs the full admission pipeline (safety gate -> sandbox ->
// coherency scorer -> store insert) over one code submission.
// Idempotent: resubmitting identical (name, language, code) returns
// Duplicate with the existing id rather than inserting twice.
func (c *Core) Submit(ctx context.Context, code string, md SubmitMetadata) (AdmissionResult, error) {
	return c.pipeline.Submit(ctx, admission.Submission{
		Name:        md.Name,
		Language:    md.Language,
		Code:        code,
		TestCode:    md.TestCode,
		Description: md.Description,
		Tags:        md.Tags,
		PatternType: md.PatternType,
		Complexity:  md.Complexity,
		Author:      md.Author,
	})
}

// RegisterPattern is Submit under the programmatic registration name: a
// caller that already has a fully formed pattern record (as opposed to a
// bare code string) submits it through the same admission gates.
func (c *Core) RegisterPattern(ctx context.Context, code string, md SubmitMetadata) (AdmissionResult, error) {
	return c.Submit(ctx, code, md)
}

// Candidates lists local patterns currently awaiting promotion, optionally
// narrowed by language and tags.
func (c *Core) Candidates(language coherency.Language, tags []string) ([]store.Pattern, error) {
	return c.local.Candidates(store.Filter{Language: language, Tags: tags})
}

// PromoteCandidate re-runs the admission gates against an existing
// candidate pattern and, on success, flips its status to proven.
func (c *Core) PromoteCandidate(ctx context.Context, id string) (AdmissionResult, error) {
	return c.pipeline.PromoteCandidate(ctx, id)
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func firstNonEmptyTags(a, b []string) []string {
	if len(a) > 0 {
		return a
	}
	return b
}

// EvolvePattern admits newCode as an explicit evolution of parentPatternId:
// it runs the same safety/sandbox/coherency gates as Submit, but inserts
// with ParentPatternID set (bypassing the duplicate-name guard, since an
// evolution legitimately shares its parent's name) and appends the new
// pattern's id to the parent's evolutionHistory.
func (c *Core) EvolvePattern(ctx context.Context, parentPatternID, newCode string, md SubmitMetadata) (AdmissionResult, error) {
	parent, err := c.local.Get(parentPatternID)
	if err != nil {
		return AdmissionResult{}, err
	}

	safetyReport := c.gate.Check(newCode)
	if safetyReport.HasVeto() {
		c.bus.Publish(eventbus.Event{Name: eventbus.SecurityVeto, Data: map[string]any{"parentId": parentPatternID}})
		return AdmissionResult{Outcome: admission.OutcomeRejected, Reason: "safety", Safety: safetyReport}, nil
	}

	testCode := md.TestCode
	if testCode == "" {
		testCode = parent.TestCode
	}

	var sandboxResult sandbox.Result
	if testCode != "" {
		r, err := c.sbox.Execute(ctx, newCode, testCode, parent.Language, time.Duration(c.cfg.SandboxTimeoutMs)*time.Millisecond)
		if err != nil {
			return AdmissionResult{}, err
		}
		sandboxResult = r
		if !r.Passed {
			return AdmissionResult{Outcome: admission.OutcomeRejected, Reason: "test", Safety: safetyReport, Test: r}, nil
		}
	}

	score, err := c.scorer.Score(newCode, parent.Language)
	if err != nil {
		return AdmissionResult{}, err
	}
	if score.Total < c.cfg.AdmissionThreshold {
		return AdmissionResult{Outcome: admission.OutcomeRejected, Reason: "coherency", Safety: safetyReport, Test: sandboxResult, Coherency: score}, nil
	}

	status := store.StatusCandidate
	testPassed := false
	if testCode != "" && sandboxResult.Passed {
		status = store.StatusProven
		testPassed = true
	}

	parentID := parentPatternID
	inserted, err := c.local.Insert(store.Pattern{
		Name:            firstNonEmpty(md.Name, parent.Name),
		Language:        parent.Language,
		Code:            newCode,
		TestCode:        testCode,
		Description:     firstNonEmpty(md.Description, parent.Description),
		Tags:            firstNonEmptyTags(md.Tags, parent.Tags),
		PatternType:     firstNonEmpty(md.PatternType, parent.PatternType),
		Complexity:      firstNonEmpty(md.Complexity, parent.Complexity),
		CoherencyScore:  score,
		TestPassed:      testPassed,
		Author:          md.Author,
		ParentPatternID: &parentID,
		Status:          status,
	})
	if err != nil {
		return AdmissionResult{}, err
	}

	history := append(append([]string{}, parent.EvolutionHistory...), inserted.ID)
	if _, err := c.local.Update(parentPatternID, store.PatternUpdate{EvolutionHistory: history}); err != nil {
		return AdmissionResult{}, err
	}

	c.bus.Publish(eventbus.Event{Name: eventbus.PatternAdded, Data: map[string]any{"id": inserted.ID, "tier": string(store.TierLocal), "parentId": parentPatternID}})

	return AdmissionResult{Outcome: admission.OutcomeAdmitted, Pattern: inserted, Safety: safetyReport, Test: sandboxResult, Coherency: score}, nil
}
