// Package admission implements the submission pipeline: safety gate ->
// sandbox -> coherency scorer -> store insert, with idempotent retries: a
// submission whose (name, language) is already stored returns Duplicate.
package admission

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/Crackedcoder5TH/remembrance-oracle-toolkit-sub001/internal/coherency"
	"github.com/Crackedcoder5TH/remembrance-oracle-toolkit-sub001/internal/eventbus"
	"github.com/Crackedcoder5TH/remembrance-oracle-toolkit-sub001/internal/logging"
	"github.com/Crackedcoder5TH/remembrance-oracle-toolkit-sub001/internal/oracleerr"
	"github.com/Crackedcoder5TH/remembrance-oracle-toolkit-sub001/internal/safety"
	"github.com/Crackedcoder5TH/remembrance-oracle-toolkit-sub001/internal/sandbox"
	"github.com/Crackedcoder5TH/remembrance-oracle-toolkit-sub001/internal/store"
)

// Outcome is the result of one admission attempt.
type Outcome string

const (
	OutcomeAdmitted  Outcome = "admitted"
	OutcomeRejected  Outcome = "rejected"
	OutcomeDuplicate Outcome = "duplicate"
)

// Submission is a candidate pattern plus its optional test code.
type Submission struct {
	Name        string
	Language    coherency.Language
	Code        string
	TestCode    string
	Description string
	Tags        []string
	PatternType string
	Complexity  string
	Author      string
}

// ContentHash is sha256 of (name, language, code), carried in the
// pattern_added event data. Duplicate detection is by (name, language).
func ContentHash(s Submission) string {
	h := sha256.New()
	h.Write([]byte(s.Name))
	h.Write([]byte{0})
	h.Write([]byte(s.Language))
	h.Write([]byte{0})
	h.Write([]byte(s.Code))
	return hex.EncodeToString(h.Sum(nil))
}

// Result is the full pipeline outcome.
type Result struct {
	Outcome    Outcome
	Pattern    store.Pattern
	ExistingID string
	Reason     string
	Safety     safety.Report
	Test       sandbox.Result
	Coherency  coherency.Score
}

// Pipeline wires the four stages together.
type Pipeline struct {
	gate               *safety.Gate
	sbox               *sandbox.Sandbox
	scorer             *coherency.Scorer
	patterns           *store.Store
	bus                *eventbus.Bus
	admissionThreshold float64
	sandboxTimeout     time.Duration
}

// New constructs a Pipeline from its four dependencies plus the
// admissionThreshold and sandbox timeout drawn from OracleConfig.
func New(gate *safety.Gate, sbox *sandbox.Sandbox, scorer *coherency.Scorer, patterns *store.Store, bus *eventbus.Bus, admissionThreshold float64, sandboxTimeout time.Duration) *Pipeline {
	return &Pipeline{
		gate:               gate,
		sbox:               sbox,
		scorer:             scorer,
		patterns:           patterns,
		bus:                bus,
		admissionThreshold: admissionThreshold,
		sandboxTimeout:     sandboxTimeout,
	}
}

// Submit runs the full admission pipeline for one submission.
func (p *Pipeline) Submit(ctx context.Context, s Submission) (Result, error) {
	timer := logging.StartTimer(logging.CategoryAdmission, "submit:"+s.Name)
	defer timer.Stop()

	safetyReport := p.gate.Check(s.Code)
	if safetyReport.HasVeto() {
		logging.Admission("rejected %q: safety veto", s.Name)
		if p.bus != nil {
			p.bus.Publish(eventbus.Event{Name: eventbus.SecurityVeto, Data: map[string]any{"name": s.Name, "language": string(s.Language)}})
		}
		return Result{Outcome: OutcomeRejected, Reason: "safety", Safety: safetyReport}, nil
	}

	var testResult sandbox.Result
	if s.TestCode != "" {
		var err error
		testResult, err = p.sbox.Execute(ctx, s.Code, s.TestCode, s.Language, p.sandboxTimeout)
		if err != nil {
			return Result{}, err
		}
		if !testResult.Passed {
			logging.Admission("rejected %q: test failed", s.Name)
			return Result{Outcome: OutcomeRejected, Reason: "test", Safety: safetyReport, Test: testResult}, nil
		}
	}

	score, err := p.scorer.Score(s.Code, s.Language)
	if err != nil {
		return Result{}, err
	}
	if score.Total < p.admissionThreshold {
		logging.Admission("rejected %q: coherency %.4f below threshold %.4f", s.Name, score.Total, p.admissionThreshold)
		return Result{Outcome: OutcomeRejected, Reason: "coherency", Safety: safetyReport, Test: testResult, Coherency: score}, nil
	}

	status := store.StatusCandidate
	if s.TestCode != "" && testResult.Passed {
		status = store.StatusProven
	}

	pattern := store.Pattern{
		Name:           s.Name,
		Language:       s.Language,
		Code:           s.Code,
		TestCode:       s.TestCode,
		Description:    s.Description,
		Tags:           s.Tags,
		PatternType:    s.PatternType,
		Complexity:     s.Complexity,
		CoherencyScore: score,
		TestPassed:     s.TestCode != "" && testResult.Passed,
		Author:         s.Author,
		Status:         status,
	}

	inserted, err := p.patterns.Insert(pattern)
	if err != nil {
		if kind, ok := oracleerr.KindOf(err); ok && kind == oracleerr.DuplicateName {
			existing, findErr := p.findExisting(s.Name, s.Language)
			if findErr == nil {
				logging.AdmissionDebug("duplicate submission %q, returning existing id %s", s.Name, existing.ID)
				return Result{Outcome: OutcomeDuplicate, ExistingID: existing.ID, Pattern: existing, Safety: safetyReport, Test: testResult, Coherency: score}, nil
			}
		}
		return Result{}, err
	}

	if p.bus != nil {
		p.bus.Publish(eventbus.Event{Name: eventbus.PatternAdded, Data: map[string]any{"id": inserted.ID, "tier": string(store.TierLocal), "hash": ContentHash(s)}})
	}
	logging.Admission("admitted %q as %s (coherency=%.4f)", s.Name, inserted.ID, score.Total)

	return Result{Outcome: OutcomeAdmitted, Pattern: inserted, Safety: safetyReport, Test: testResult, Coherency: score}, nil
}

// PromoteCandidate re-runs the full admission pipeline (safety, sandbox,
// coherency) against an existing candidate pattern's stored code and test,
// flipping its status to proven on success. Promotion is not a bare
// status flip: it must clear the same gates a fresh submission would.
func (p *Pipeline) PromoteCandidate(ctx context.Context, id string) (Result, error) {
	candidate, err := p.patterns.Get(id)
	if err != nil {
		return Result{}, err
	}
	if candidate.Status != store.StatusCandidate {
		return Result{}, oracleerr.Newf(oracleerr.Internal, "pattern %q is not a candidate (status=%s)", id, candidate.Status)
	}

	safetyReport := p.gate.Check(candidate.Code)
	if safetyReport.HasVeto() {
		logging.Admission("promotion of %q rejected: safety veto", id)
		return Result{Outcome: OutcomeRejected, Reason: "safety", Safety: safetyReport}, nil
	}

	var testResult sandbox.Result
	if candidate.TestCode == "" {
		return Result{Outcome: OutcomeRejected, Reason: "test", Safety: safetyReport}, nil
	}
	testResult, err = p.sbox.Execute(ctx, candidate.Code, candidate.TestCode, candidate.Language, p.sandboxTimeout)
	if err != nil {
		return Result{}, err
	}
	if !testResult.Passed {
		logging.Admission("promotion of %q rejected: test failed", id)
		return Result{Outcome: OutcomeRejected, Reason: "test", Safety: safetyReport, Test: testResult}, nil
	}

	score, err := p.scorer.Score(candidate.Code, candidate.Language)
	if err != nil {
		return Result{}, err
	}
	if score.Total < p.admissionThreshold {
		logging.Admission("promotion of %q rejected: coherency %.4f below threshold %.4f", id, score.Total, p.admissionThreshold)
		return Result{Outcome: OutcomeRejected, Reason: "coherency", Safety: safetyReport, Test: testResult, Coherency: score}, nil
	}

	proven := store.StatusProven
	testPassed := true
	updated, err := p.patterns.Update(id, store.PatternUpdate{Status: &proven, TestPassed: &testPassed, CoherencyScore: &score})
	if err != nil {
		return Result{}, err
	}

	if p.bus != nil {
		p.bus.Publish(eventbus.Event{Name: eventbus.AutoPromote, Data: map[string]any{"id": id, "tier": string(store.TierLocal)}})
	}
	logging.Admission("promoted candidate %q to proven (coherency=%.4f)", id, score.Total)

	return Result{Outcome: OutcomeAdmitted, Pattern: updated, Safety: safetyReport, Test: testResult, Coherency: score}, nil
}

func (p *Pipeline) findExisting(name string, lang coherency.Language) (store.Pattern, error) {
	all, err := p.patterns.List(store.Filter{Language: lang})
	if err != nil {
		return store.Pattern{}, err
	}
	for _, pat := range all {
		if pat.Name == name {
			return pat, nil
		}
	}
	return store.Pattern{}, oracleerr.Newf(oracleerr.NotFound, "pattern %q not found after duplicate insert", name)
}
