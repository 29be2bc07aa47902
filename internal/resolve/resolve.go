// Package resolve implements the PULL/EVOLVE/GENERATE decision ladder run
// over a ranked result list, plus deterministic whisper selection.
package resolve

import (
	"github.com/Crackedcoder5TH/remembrance-oracle-toolkit-sub001/internal/rank"
	"github.com/Crackedcoder5TH/remembrance-oracle-toolkit-sub001/internal/reflection"
)

// Decision is the resolver's verdict for a query.
type Decision string

const (
	DecisionPull     Decision = "pull"
	DecisionEvolve   Decision = "evolve"
	DecisionGenerate Decision = "generate"
)

const (
	pullThreshold   = 0.80
	evolveThreshold = 0.55

	pullHealLoops   = 3
	evolveHealLoops = 5
)

// whisperPool is the fixed note pool keyed by (decision,
// name.len+code.len) mod len(pool), so selection is reproducible for a
// given pattern instead of pseudo-random.
var whisperPool = map[Decision][]string{
	DecisionPull: {
		"this one has earned its keep.",
		"a proven hand for a familiar job.",
		"returning a pattern that already knows this shape.",
	},
	DecisionEvolve: {
		"close, but it wants a longer look before it is trusted.",
		"promising; giving it room to grow into the fit.",
		"the bones are good; let it heal into place.",
	},
	DecisionGenerate: {
		"nothing on the shelf fits; time to make something new.",
		"no memory reaches this far; starting fresh.",
		"the archive comes up short here.",
	},
}

// Result is the outcome of Resolve.
type Result struct {
	Decision    Decision
	Best        *rank.Ranked
	Alternative *rank.Ranked
	Whisper     string
	Healing     *reflection.Report
}

// Resolve applies the decision ladder to a ranked candidate list, already
// sorted by composite descending (as rank.Rank/RankWithBoost produce).
// A GENERATE decision returns no pattern: Best and Alternative are nil,
// signalling that new code is needed.
func Resolve(ranked []rank.Ranked) Result {
	if len(ranked) == 0 {
		return Result{Decision: DecisionGenerate, Whisper: whisperFor(DecisionGenerate, 0)}
	}

	best := ranked[0]
	var alt *rank.Ranked
	if len(ranked) > 1 {
		alt = &ranked[1]
	}

	var decision Decision
	switch {
	case best.Composite >= pullThreshold:
		decision = DecisionPull
	case best.Composite >= evolveThreshold:
		decision = DecisionEvolve
	default:
		decision = DecisionGenerate
	}

	key := len(best.Pattern.Name) + len(best.Pattern.Code)
	if decision == DecisionGenerate {
		return Result{Decision: decision, Whisper: whisperFor(decision, key)}
	}
	return Result{
		Decision:    decision,
		Best:        &ranked[0],
		Alternative: alt,
		Whisper:     whisperFor(decision, key),
	}
}

// HealLoopsFor returns the default heal-loop bound for a decision (a
// longer loop for EVOLVE than for an as-is PULL heal).
func HealLoopsFor(d Decision) int {
	if d == DecisionEvolve {
		return evolveHealLoops
	}
	return pullHealLoops
}

func whisperFor(d Decision, key int) string {
	pool := whisperPool[d]
	if len(pool) == 0 {
		return ""
	}
	return pool[key%len(pool)]
}
