// Package sandbox executes a test snippet against a candidate code
// snippet for a declared language, under a hard wall-clock timeout and an
// output-size cap. Languages are served by pluggable runners; the
// built-in Go runner interprets code with yaegi behind a stdlib-only
// import allowlist.
package sandbox

import (
	"context"
	"fmt"
	"time"

	"github.com/Crackedcoder5TH/remembrance-oracle-toolkit-sub001/internal/coherency"
	"github.com/Crackedcoder5TH/remembrance-oracle-toolkit-sub001/internal/logging"
	"github.com/Crackedcoder5TH/remembrance-oracle-toolkit-sub001/internal/oracleerr"
)

// Signal names an abnormal termination reason.
type Signal string

const (
	SignalNone    Signal = ""
	SignalTimeout Signal = "timeout"
	SignalPanic   Signal = "panic"
)

// Result is the outcome of one sandboxed execution.
type Result struct {
	Passed     bool
	Output     string
	Sandboxed  bool
	DurationMs int64
	Signal     Signal
}

const maxOutputBytes = 64 * 1024

// Runner executes test code against candidate code for one language. Each
// invocation is independent; a Runner holds no cross-invocation state.
type Runner interface {
	Execute(ctx context.Context, code, testCode string, timeout time.Duration) Result
}

// Sandbox dispatches to a registered Runner per language. It holds no
// mutable execution state of its own; concurrency safety comes entirely
// from each Runner's independence.
type Sandbox struct {
	runners        map[coherency.Language]Runner
	defaultTimeout time.Duration
}

// New constructs a Sandbox with the given default timeout and the built-in
// Go runner registered.
func New(defaultTimeout time.Duration) *Sandbox {
	s := &Sandbox{
		runners:        make(map[coherency.Language]Runner),
		defaultTimeout: defaultTimeout,
	}
	s.Register(coherency.LanguageGo, NewYaegiGoRunner())
	return s
}

// Register installs or replaces the runner for a language.
func (s *Sandbox) Register(lang coherency.Language, r Runner) {
	s.runners[lang] = r
}

// Execute runs testCode against code for lang, honoring either the
// sandbox's default timeout or an explicit override. Returns NoRunner when
// no runner is registered for lang, and Cancelled when the caller's
// context was cancelled before or during the run; a timeout is not an
// error, it surfaces as a failed Result with SignalTimeout.
func (s *Sandbox) Execute(ctx context.Context, code, testCode string, lang coherency.Language, timeout time.Duration) (Result, error) {
	runner, ok := s.runners[lang]
	if !ok {
		return Result{}, oracleerr.Newf(oracleerr.NoRunner, "no sandbox runner registered for %q", lang)
	}
	if err := ctx.Err(); err != nil {
		return Result{}, oracleerr.Wrap(oracleerr.Cancelled, "sandbox execute", err)
	}
	if timeout <= 0 {
		timeout = s.defaultTimeout
	}

	timer := logging.StartTimer(logging.CategorySandbox, fmt.Sprintf("execute:%s", lang))
	defer timer.Stop()

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result := runner.Execute(runCtx, code, testCode, timeout)
	if ctx.Err() != nil && result.Signal == SignalTimeout {
		// The deadline that fired was the caller's, not the sandbox's.
		return Result{}, oracleerr.Wrap(oracleerr.Cancelled, "sandbox execute", ctx.Err())
	}
	return result, nil
}
