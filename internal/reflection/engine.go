// Package reflection implements five idempotent code transforms and the
// bounded fixed-point healing loop built on top of them: score, try every
// transform, keep the best, stop when nothing improves.
package reflection

import (
	"regexp"
	"strings"

	"github.com/Crackedcoder5TH/remembrance-oracle-toolkit-sub001/internal/coherency"
	"github.com/Crackedcoder5TH/remembrance-oracle-toolkit-sub001/internal/logging"
)

// Epsilon is the minimum improvement required for the healing loop to
// accept a candidate and keep iterating.
const Epsilon = 0.005

// Transform maps (code, language) -> code. Every transform must be
// idempotent: applying it twice to already-transformed code is a no-op.
type Transform func(code string, lang coherency.Language) string

// Strategy names one of the five fixed transforms, in the fixed order the
// loop always tries them.
type Strategy string

const (
	StrategySimplify Strategy = "simplify"
	StrategySecure   Strategy = "secure"
	StrategyReadable Strategy = "readable"
	StrategyUnify    Strategy = "unify"
	StrategyCorrect  Strategy = "correct"
)

var orderedStrategies = []Strategy{StrategySimplify, StrategySecure, StrategyReadable, StrategyUnify, StrategyCorrect}

var transforms = map[Strategy]Transform{
	StrategySimplify: simplify,
	StrategySecure:   secure,
	StrategyReadable: readable,
	StrategyUnify:    unify,
	StrategyCorrect:  correct,
}

// LoopRecord describes one accepted iteration of the healing loop.
type LoopRecord struct {
	Iteration int
	Strategy  Strategy
	Score     coherency.Score
}

// Report is the outcome of Heal.
type Report struct {
	Code              string
	Loops             []LoopRecord
	OriginalCoherence coherency.Score
	FinalCoherence    coherency.Score
	Improvement       float64
}

// Improved reports whether the loop produced any accepted iteration.
func (r Report) Improved() bool { return len(r.Loops) > 0 }

// Engine runs the bounded fixed-point heal loop over the five transforms.
type Engine struct {
	scorer *coherency.Scorer
}

// NewEngine constructs an Engine backed by a coherency scorer.
func NewEngine(scorer *coherency.Scorer) *Engine {
	return &Engine{scorer: scorer}
}

// Heal runs the bounded fixed-point loop: at each of up to maxLoops
// iterations, score every transform's output, keep the best if it beats
// the current score by more than Epsilon, otherwise stop. Never decreases
// coherency; if no transform improves on the very first iteration the
// output equals the input.
func (e *Engine) Heal(code string, lang coherency.Language, maxLoops int) (Report, error) {
	originalScore, err := e.scorer.Score(code, lang)
	if err != nil {
		return Report{}, err
	}

	current := code
	currentScore := originalScore
	var loops []LoopRecord

	for i := 1; i <= maxLoops; i++ {
		before := currentScore

		var bestCode string
		var bestScore coherency.Score
		var bestStrategy Strategy
		haveBest := false

		for _, strat := range orderedStrategies {
			candidate := transforms[strat](current, lang)
			score, err := e.scorer.Score(candidate, lang)
			if err != nil {
				continue
			}
			if !haveBest || score.Total > bestScore.Total {
				bestCode, bestScore, bestStrategy, haveBest = candidate, score, strat, true
			}
		}

		if !haveBest || bestScore.Total <= before.Total+Epsilon {
			break
		}

		loops = append(loops, LoopRecord{Iteration: i, Strategy: bestStrategy, Score: bestScore})
		current = bestCode
		currentScore = bestScore
		logging.ReflectionDebug("heal loop %d accepted strategy=%s total=%.4f", i, bestStrategy, bestScore.Total)
	}

	return Report{
		Code:              current,
		Loops:             loops,
		OriginalCoherence: originalScore,
		FinalCoherence:    currentScore,
		Improvement:       currentScore.Total - originalScore.Total,
	}, nil
}

// --- transforms ---

var longBlankRunRe = regexp.MustCompile(`\n{3,}`)
var trailingWhitespaceRe = regexp.MustCompile(`[ \t]+\n`)

// simplify collapses redundant blank lines and trailing whitespace.
func simplify(code string, _ coherency.Language) string {
	out := trailingWhitespaceRe.ReplaceAllString(code, "\n")
	out = longBlankRunRe.ReplaceAllString(out, "\n\n")
	return out
}

var evalRe = regexp.MustCompile(`\beval\s*\(([^)]*)\)`)

// secure replaces a small set of known-dangerous constructs with safer
// equivalents (or removes them), a syntactic stand-in for a full taint
// analysis. The replacement text must not itself match evalRe, or the
// transform would re-wrap its own output on every pass.
func secure(code string, _ coherency.Language) string {
	return evalRe.ReplaceAllString(code, "/* removed unsafe dynamic evaluation of $1 */")
}

// readable normalizes indentation to tabs, the module's dominant Go style.
func readable(code string, lang coherency.Language) string {
	if lang != coherency.LanguageGo {
		return code
	}
	lines := strings.Split(code, "\n")
	for i, line := range lines {
		trimmed := strings.TrimLeft(line, " ")
		leadingSpaces := len(line) - len(trimmed)
		if leadingSpaces >= 2 {
			tabs := strings.Repeat("\t", leadingSpaces/4)
			lines[i] = tabs + trimmed
		}
	}
	return strings.Join(lines, "\n")
}

var singleQuotedRe = regexp.MustCompile(`'([^'\\]*)'`)

// unify normalizes single-quoted string literals to double quotes, picking
// the one dominant quote style the unity dimension rewards.
func unify(code string, lang coherency.Language) string {
	if lang == coherency.LanguageGo {
		return code
	}
	return singleQuotedRe.ReplaceAllString(code, `"$1"`)
}

var trailingSemicolonBeforeBraceRe = regexp.MustCompile(`;(\s*\})`)

// correct strips a narrow class of always-wrong constructs: a semicolon
// immediately before a closing brace.
func correct(code string, _ coherency.Language) string {
	return trailingSemicolonBeforeBraceRe.ReplaceAllString(code, "$1")
}
