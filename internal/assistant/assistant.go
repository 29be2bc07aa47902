// Package assistant implements the external assistant capability: an
// optional adapter for transpile/refine/generate-tests/
// generate-alternative/explain operations. Every call returns an "ok"
// flag rather than failing when the capability is absent; callers try the
// richer (LLM-backed) path first and silently fall back to a
// deterministic substitute on any failure or absence.
package assistant

import (
	"context"
	"regexp"
	"strings"

	"github.com/Crackedcoder5TH/remembrance-oracle-toolkit-sub001/internal/coherency"
	"github.com/Crackedcoder5TH/remembrance-oracle-toolkit-sub001/internal/logging"
	"github.com/Crackedcoder5TH/remembrance-oracle-toolkit-sub001/internal/oracleerr"
	"github.com/Crackedcoder5TH/remembrance-oracle-toolkit-sub001/internal/reflection"
)

// Assistant is the pluggable capability adapter. Implementations may call
// out to an external process (an LLM bridge, a transpiler service); the
// core never depends on one being present. ok=false with err=nil means "no
// answer available", not failure.
type Assistant interface {
	Transpile(ctx context.Context, code string, from, to coherency.Language) (out string, ok bool, err error)
	GenerateTests(ctx context.Context, code string, lang coherency.Language) (out string, ok bool, err error)
	Refine(ctx context.Context, code string, lang coherency.Language) (out string, ok bool, err error)
	GenerateAlternative(ctx context.Context, description string, lang coherency.Language) (out string, ok bool, err error)
	Explain(ctx context.Context, code string, lang coherency.Language) (out string, ok bool, err error)
}

// NoAssistant is the default Assistant: every call reports "no answer",
// never an error. It is what Core wires in absent an explicit external
// bridge, keeping the core's correctness independent of any LLM.
type NoAssistant struct{}

func (NoAssistant) Transpile(context.Context, string, coherency.Language, coherency.Language) (string, bool, error) {
	return "", false, nil
}
func (NoAssistant) GenerateTests(context.Context, string, coherency.Language) (string, bool, error) {
	return "", false, nil
}
func (NoAssistant) Refine(context.Context, string, coherency.Language) (string, bool, error) {
	return "", false, nil
}
func (NoAssistant) GenerateAlternative(context.Context, string, coherency.Language) (string, bool, error) {
	return "", false, nil
}
func (NoAssistant) Explain(context.Context, string, coherency.Language) (string, bool, error) {
	return "", false, nil
}

var _ Assistant = NoAssistant{}

// Fallback wraps an Assistant with the deterministic fallback each
// operation must have: a syntactic converter for Transpile, the
// reflection engine for Refine, and NoTestSynthesis for GenerateTests
// (which has no non-LLM equivalent). GenerateAlternative and Explain have
// no deterministic equivalent either and surface DependencyUnavailable.
type Fallback struct {
	delegate Assistant
	engine   *reflection.Engine
}

// NewFallback wraps delegate (NoAssistant{} if nil) with engine-backed
// fallback behavior.
func NewFallback(delegate Assistant, engine *reflection.Engine) *Fallback {
	if delegate == nil {
		delegate = NoAssistant{}
	}
	return &Fallback{delegate: delegate, engine: engine}
}

// Transpile asks the delegate first; on no-answer or error it falls back to
// a syntactic converter for the language pairs it knows, or returns the
// code unchanged with ok=false otherwise.
func (f *Fallback) Transpile(ctx context.Context, code string, from, to coherency.Language) (string, bool, error) {
	if out, ok, err := f.delegate.Transpile(ctx, code, from, to); err == nil && ok {
		return out, true, nil
	}
	logging.AssistantDebug("transpile %s->%s falling back to syntactic converter", from, to)
	return syntacticTranspile(code, from, to)
}

// Refine asks the delegate first; on no-answer or error it falls back to
// ReflectionEngine's bounded heal loop, the deterministic quality-improving
// path the core always has available.
func (f *Fallback) Refine(ctx context.Context, code string, lang coherency.Language) (string, bool, error) {
	if out, ok, err := f.delegate.Refine(ctx, code, lang); err == nil && ok {
		return out, true, nil
	}
	logging.AssistantDebug("refine falling back to reflection engine")
	report, err := f.engine.Heal(code, lang, 3)
	if err != nil {
		return "", false, err
	}
	return report.Code, report.Improved(), nil
}

// GenerateTests asks the delegate first; there is no deterministic
// non-LLM equivalent, so absence surfaces as NoTestSynthesis.
func (f *Fallback) GenerateTests(ctx context.Context, code string, lang coherency.Language) (string, bool, error) {
	if out, ok, err := f.delegate.GenerateTests(ctx, code, lang); err == nil && ok {
		return out, true, nil
	}
	return "", false, oracleerr.New(oracleerr.NoTestSynthesis, "no test-synthesis capability is available")
}

// GenerateAlternative asks the delegate first; absent one, callers fall
// back to treating the query as a GENERATE resolver decision instead (there
// is no deterministic code-generation substitute).
func (f *Fallback) GenerateAlternative(ctx context.Context, description string, lang coherency.Language) (string, bool, error) {
	if out, ok, err := f.delegate.GenerateAlternative(ctx, description, lang); err == nil && ok {
		return out, true, nil
	}
	return "", false, oracleerr.New(oracleerr.DependencyUnavailable, "no code-generation capability is available")
}

// Explain asks the delegate first; absent one, there is no deterministic
// substitute for natural-language explanation.
func (f *Fallback) Explain(ctx context.Context, code string, lang coherency.Language) (string, bool, error) {
	if out, ok, err := f.delegate.Explain(ctx, code, lang); err == nil && ok {
		return out, true, nil
	}
	return "", false, oracleerr.New(oracleerr.DependencyUnavailable, "no explanation capability is available")
}

var (
	tsTypeAnnotationRe = regexp.MustCompile(`:\s*[A-Za-z_][A-Za-z0-9_<>\[\]., |]*([,)=;{])`)
	tsAsCastRe         = regexp.MustCompile(`\s+as\s+[A-Za-z_][A-Za-z0-9_<>\[\].]*`)
	tsInterfaceRe      = regexp.MustCompile(`(?s)interface\s+\w+\s*\{[^}]*\}\s*`)
	tsGenericBracketRe = regexp.MustCompile(`<[A-Za-z_][A-Za-z0-9_, ]*>(\()`)
)

// syntacticTranspile is the deterministic converter the Fallback uses when
// no Assistant answers. It currently knows one pair, TypeScript->JavaScript
// (strip type annotations, `as` casts, interface blocks, and generic call
// brackets): erase-the-types transpilation, not semantic translation. Any
// other pair returns the code unchanged with ok=false so callers know
// nothing was actually converted.
func syntacticTranspile(code string, from, to coherency.Language) (string, bool, error) {
	if from == to {
		return code, true, nil
	}
	if from == coherency.LanguageTypeScript && to == coherency.LanguageJavaScript {
		out := tsInterfaceRe.ReplaceAllString(code, "")
		out = tsAsCastRe.ReplaceAllString(out, "")
		out = tsGenericBracketRe.ReplaceAllString(out, "${1}")
		out = tsTypeAnnotationRe.ReplaceAllString(out, "${1}")
		return strings.TrimRight(out, "\n") + "\n", true, nil
	}
	return code, false, nil
}
