// Package healing implements the healing supervisor: a periodic or
// externally triggered pass that picks low-coherency proven patterns,
// heals them through the reflection engine over a bounded worker pool,
// and promotes improvements that still pass their stored tests.
package healing

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Crackedcoder5TH/remembrance-oracle-toolkit-sub001/internal/eventbus"
	"github.com/Crackedcoder5TH/remembrance-oracle-toolkit-sub001/internal/logging"
	"github.com/Crackedcoder5TH/remembrance-oracle-toolkit-sub001/internal/oracleerr"
	"github.com/Crackedcoder5TH/remembrance-oracle-toolkit-sub001/internal/reflection"
	"github.com/Crackedcoder5TH/remembrance-oracle-toolkit-sub001/internal/sandbox"
	"github.com/Crackedcoder5TH/remembrance-oracle-toolkit-sub001/internal/store"
)

// RunOptions tunes one pass of the supervisor.
type RunOptions struct {
	HealTarget       float64
	PromoteThreshold float64
	MaxHealsPerRun   int
	MaxHealLoops     int
	WorkerPoolSize   int
}

// PatternOutcome is the per-pattern result of one healing attempt within a run.
type PatternOutcome struct {
	PatternID string
	Improved  bool
	Promoted  bool
	Before    float64
	After     float64
}

// RunReport summarizes one full pass.
type RunReport struct {
	Outcomes []PatternOutcome
}

// Supervisor owns the heal-verify-promote loop.
type Supervisor struct {
	patterns *store.Store
	engine   *reflection.Engine
	sbox     *sandbox.Sandbox
	bus      *eventbus.Bus

	runMu sync.Mutex // held for the duration of one RunOnce pass

	mu        sync.Mutex
	snapshots map[string]string // patternID -> code before the most recent swap
}

// New constructs a Supervisor from its dependencies.
func New(patterns *store.Store, engine *reflection.Engine, sbox *sandbox.Sandbox, bus *eventbus.Bus) *Supervisor {
	return &Supervisor{patterns: patterns, engine: engine, sbox: sbox, bus: bus, snapshots: make(map[string]string)}
}

// RunOnce executes one healing pass, lowest-scoring patterns first,
// fanning out across a bounded worker pool. Only one pass runs at a time:
// a RunOnce that arrives while another is in flight is rejected with
// Overloaded rather than queued behind it.
func (s *Supervisor) RunOnce(ctx context.Context, opts RunOptions) (RunReport, error) {
	if !s.runMu.TryLock() {
		return RunReport{}, oracleerr.New(oracleerr.Overloaded, "a healing pass is already running")
	}
	defer s.runMu.Unlock()

	if err := ctx.Err(); err != nil {
		return RunReport{}, oracleerr.Wrap(oracleerr.Cancelled, "healing run", err)
	}
	if opts.WorkerPoolSize <= 0 {
		opts.WorkerPoolSize = 1
	}

	proven, err := s.patterns.List(store.Filter{HasStatus: true, Status: store.StatusProven})
	if err != nil {
		return RunReport{}, err
	}

	var candidates []store.Pattern
	for _, p := range proven {
		if p.CoherencyScore.Total < opts.HealTarget {
			candidates = append(candidates, p)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].CoherencyScore.Total < candidates[j].CoherencyScore.Total
	})
	if len(candidates) > opts.MaxHealsPerRun {
		candidates = candidates[:opts.MaxHealsPerRun]
	}

	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Name: eventbus.HealingStart, Data: map[string]any{"count": len(candidates)}})
	}

	outcomes := make([]PatternOutcome, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.WorkerPoolSize)

	for i, p := range candidates {
		i, p := i, p
		g.Go(func() error {
			outcome, err := s.healOne(gctx, p, opts)
			if err != nil {
				logging.HealingError("heal pattern %s failed: %v", p.ID, err)
				return nil
			}
			outcomes[i] = outcome
			if s.bus != nil {
				s.bus.Publish(eventbus.Event{Name: eventbus.HealingProgress, Data: map[string]any{"id": p.ID, "improved": outcome.Improved}})
			}
			return nil
		})
	}
	_ = g.Wait()

	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Name: eventbus.HealingComplete, Data: map[string]any{"count": len(outcomes)}})
	}
	return RunReport{Outcomes: outcomes}, nil
}

func (s *Supervisor) healOne(ctx context.Context, p store.Pattern, opts RunOptions) (PatternOutcome, error) {
	report, err := s.engine.Heal(p.Code, p.Language, opts.MaxHealLoops)
	if err != nil {
		return PatternOutcome{}, err
	}

	improved := report.Improved()
	if err := s.patterns.RecordHealingAttempt(p.ID, improved, report.OriginalCoherence.Total, report.FinalCoherence.Total, len(report.Loops)); err != nil {
		return PatternOutcome{}, err
	}

	outcome := PatternOutcome{PatternID: p.ID, Improved: improved, Before: report.OriginalCoherence.Total, After: report.FinalCoherence.Total}
	if !improved {
		return outcome, nil
	}

	strategy := ""
	if len(report.Loops) > 0 {
		strategy = string(report.Loops[len(report.Loops)-1].Strategy)
	}
	if _, err := s.patterns.AddHealedVariant(store.HealedVariant{
		ParentPatternID:   p.ID,
		HealedCode:        report.Code,
		OriginalCoherency: report.OriginalCoherence.Total,
		HealedCoherency:   report.FinalCoherence.Total,
		HealingLoops:      len(report.Loops),
		HealingStrategy:   strategy,
	}); err != nil {
		return outcome, err
	}

	if report.FinalCoherence.Total >= opts.PromoteThreshold {
		promoted, err := s.verifyAndSwap(ctx, p, report)
		if err != nil {
			return outcome, err
		}
		outcome.Promoted = promoted
	}
	return outcome, nil
}

// verifyAndSwap runs the original test against the healed code in a fresh
// Sandbox invocation, swapping the pattern's code only on success. On
// failure it never swaps, so there is nothing to roll back.
func (s *Supervisor) verifyAndSwap(ctx context.Context, p store.Pattern, report reflection.Report) (bool, error) {
	if p.TestCode != "" {
		result, err := s.sbox.Execute(ctx, report.Code, p.TestCode, p.Language, 0)
		if err != nil {
			return false, err
		}
		if !result.Passed {
			logging.HealingDebug("healed code for %s failed verification, keeping original", p.ID)
			return false, nil
		}
	}

	s.mu.Lock()
	s.snapshots[p.ID] = p.Code
	s.mu.Unlock()

	finalScore := report.FinalCoherence
	newCode := report.Code
	_, err := s.patterns.Update(p.ID, store.PatternUpdate{Code: &newCode, CoherencyScore: &finalScore})
	if err != nil {
		return false, err
	}
	logging.Healing("promoted healed code for pattern %s (coherency %.4f)", p.ID, finalScore.Total)
	return true, nil
}

// Rollback restores the most recent pre-swap snapshot for patternID, if
// any. version is reserved for future multi-version history; only the
// single most recent snapshot is currently retained.
func (s *Supervisor) Rollback(patternID string, version int) error {
	s.mu.Lock()
	code, ok := s.snapshots[patternID]
	s.mu.Unlock()
	if !ok {
		return oracleerr.Newf(oracleerr.NotFound, "no rollback snapshot for pattern %q", patternID)
	}
	if _, err := s.patterns.Update(patternID, store.PatternUpdate{Code: &code}); err != nil {
		return err
	}
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Name: eventbus.Rollback, Data: map[string]any{"id": patternID}})
	}
	return nil
}

// VerifyOrRollback re-runs the stored test against the pattern's current
// code; on failure, restores the previous snapshot and records a failed
// healing attempt.
func (s *Supervisor) VerifyOrRollback(ctx context.Context, patternID string) error {
	p, err := s.patterns.Get(patternID)
	if err != nil {
		return err
	}
	if p.TestCode == "" {
		return nil
	}
	result, err := s.sbox.Execute(ctx, p.Code, p.TestCode, p.Language, 0)
	if err != nil {
		return err
	}
	if result.Passed {
		return nil
	}

	if rbErr := s.Rollback(patternID, 0); rbErr != nil {
		return rbErr
	}
	return s.patterns.RecordHealingAttempt(patternID, false, p.CoherencyScore.Total, p.CoherencyScore.Total, 0)
}

// HealingRate reports the current success rate for a single pattern.
func (s *Supervisor) HealingRate(patternID string) (float64, error) {
	stats, err := s.patterns.HealingStatsFor(patternID)
	if err != nil {
		return 0, err
	}
	return stats.SuccessRate(), nil
}

// HealingRates reports a success rate for every given pattern id; an id
// with no recorded healing attempt gets the optimistic default of 1.0.
func (s *Supervisor) HealingRates(patternIDs []string) (map[string]float64, error) {
	rates := make(map[string]float64, len(patternIDs))
	for _, id := range patternIDs {
		rate, err := s.HealingRate(id)
		if err != nil {
			return nil, err
		}
		rates[id] = rate
	}
	return rates, nil
}
