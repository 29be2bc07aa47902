// Package coherency implements the deterministic five-dimension quality
// score: simplicity, readability, security, unity, and correctness, each
// bounded to [0,1] and blended into a weighted total.
package coherency

import (
	"go/ast"
	"go/parser"
	"go/token"
	"math"
	"regexp"
	"strings"

	"github.com/Crackedcoder5TH/remembrance-oracle-toolkit-sub001/internal/oracleerr"
)

// Score holds the five bounded dimensions and their weighted total. Weights
// sum to 1.0: simplicity 0.20, readability 0.20, security 0.20, unity 0.15,
// correctness 0.25.
type Score struct {
	Simplicity  float64
	Readability float64
	Security    float64
	Unity       float64
	Correctness float64
	Total       float64
}

const (
	weightSimplicity  = 0.20
	weightReadability = 0.20
	weightSecurity    = 0.20
	weightUnity       = 0.15
	weightCorrectness = 0.25
)

// flaggedConstructs mirrors the security-relevant constructs the safety
// gate looks for; the security dimension penalizes them without replacing
// the gate's veto.
var flaggedConstructs = []*regexp.Regexp{
	regexp.MustCompile(`\beval\s*\(`),
	regexp.MustCompile(`\bexec\s*\(`),
	regexp.MustCompile("`[^`]*\\$\\{[^}]*\\}[^`]*`"),
	regexp.MustCompile(`(?i)(api[_-]?key|password|secret)\s*[:=]\s*["'][^"']+["']`),
}

// Scorer computes Score deterministically from (code, language). It holds
// no mutable state: same input always produces the same output.
type Scorer struct{}

// NewScorer constructs a Scorer.
func NewScorer() *Scorer { return &Scorer{} }

// Score evaluates code for the given language, returning InvalidLanguage
// when the language is not in the recognised closed set.
func (s *Scorer) Score(code string, lang Language) (Score, error) {
	if !IsKnown(lang) {
		return Score{}, oracleerr.Newf(oracleerr.InvalidLanguage, "unrecognised language %q", lang)
	}

	sc := Score{
		Simplicity:  scoreSimplicity(code),
		Readability: scoreReadability(code),
		Security:    scoreSecurity(code),
		Unity:       scoreUnity(code),
		Correctness: scoreCorrectness(code, lang),
	}
	sc.Total = weightSimplicity*sc.Simplicity +
		weightReadability*sc.Readability +
		weightSecurity*sc.Security +
		weightUnity*sc.Unity +
		weightCorrectness*sc.Correctness
	return sc, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// scoreSimplicity penalizes long lines, deep nesting, and very long
// functions.
func scoreSimplicity(code string) float64 {
	lines := strings.Split(code, "\n")
	if len(lines) == 0 {
		return 1
	}

	longLines := 0
	maxDepth, depth := 0, 0
	for _, line := range lines {
		if len(strings.TrimRight(line, " \t")) > 100 {
			longLines++
		}
		for _, r := range line {
			switch r {
			case '{', '(', '[':
				depth++
				if depth > maxDepth {
					maxDepth = depth
				}
			case '}', ')', ']':
				if depth > 0 {
					depth--
				}
			}
		}
	}

	longLinePenalty := float64(longLines) / float64(len(lines))
	depthPenalty := 0.0
	if maxDepth > 4 {
		depthPenalty = float64(maxDepth-4) * 0.1
	}
	lengthPenalty := 0.0
	if len(lines) > 120 {
		lengthPenalty = float64(len(lines)-120) / 400.0
	}

	return clamp01(1.0 - longLinePenalty*0.5 - depthPenalty - lengthPenalty)
}

var commentPrefixes = []string{"//", "#", "/*", "*"}

// scoreReadability rewards consistent indentation, comment density
// proportional to code length, and stable identifier casing.
func scoreReadability(code string) float64 {
	lines := strings.Split(code, "\n")
	if len(lines) == 0 {
		return 1
	}

	tabLines, spaceLines, commentLines, nonBlank := 0, 0, 0, 0
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		nonBlank++
		if strings.HasPrefix(line, "\t") {
			tabLines++
		} else if strings.HasPrefix(line, " ") {
			spaceLines++
		}
		for _, p := range commentPrefixes {
			if strings.HasPrefix(trimmed, p) {
				commentLines++
				break
			}
		}
	}
	if nonBlank == 0 {
		return 1
	}

	indentConsistency := 1.0
	if tabLines > 0 && spaceLines > 0 {
		minority := tabLines
		if spaceLines < minority {
			minority = spaceLines
		}
		indentConsistency = 1.0 - float64(minority)/float64(nonBlank)
	}

	commentRatio := float64(commentLines) / float64(nonBlank)
	commentScore := commentRatio * 4
	if commentScore > 1 {
		commentScore = 1
	}

	casingScore := scoreIdentifierCasing(code)

	return clamp01(0.4*indentConsistency + 0.3*commentScore + 0.3*casingScore)
}

var camelRe = regexp.MustCompile(`\b[a-z][a-zA-Z0-9]*\b`)
var snakeRe = regexp.MustCompile(`\b[a-z][a-z0-9_]*_[a-z0-9_]*\b`)

func scoreIdentifierCasing(code string) float64 {
	camel := len(camelRe.FindAllString(code, -1))
	snake := len(snakeRe.FindAllString(code, -1))
	total := camel + snake
	if total == 0 {
		return 1
	}
	dominant := camel
	if snake > dominant {
		dominant = snake
	}
	return float64(dominant) / float64(total)
}

// scoreSecurity penalizes flagged constructs.
func scoreSecurity(code string) float64 {
	hits := 0
	for _, re := range flaggedConstructs {
		hits += len(re.FindAllString(code, -1))
	}
	return clamp01(1.0 - float64(hits)*0.25)
}

var doubleQuoteRe = regexp.MustCompile(`"[^"\n]*"`)
var singleQuoteRe = regexp.MustCompile(`'[^'\n]*'`)
var semicolonLineRe = regexp.MustCompile(`;\s*$`)

// scoreUnity rewards a single dominant quote style, a single dominant
// statement terminator policy, and a single dominant naming convention.
func scoreUnity(code string) float64 {
	doubles := len(doubleQuoteRe.FindAllString(code, -1))
	singles := len(singleQuoteRe.FindAllString(code, -1))
	quoteScore := dominantRatio(doubles, singles)

	lines := strings.Split(code, "\n")
	withSemi, withoutSemi := 0, 0
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasSuffix(trimmed, "{") || strings.HasSuffix(trimmed, "}") {
			continue
		}
		if semicolonLineRe.MatchString(trimmed) {
			withSemi++
		} else {
			withoutSemi++
		}
	}
	terminatorScore := dominantRatio(withSemi, withoutSemi)

	namingScore := scoreIdentifierCasing(code)

	return clamp01((quoteScore + terminatorScore + namingScore) / 3.0)
}

func dominantRatio(a, b int) float64 {
	total := a + b
	if total == 0 {
		return 1
	}
	dominant := a
	if b > dominant {
		dominant = b
	}
	return float64(dominant) / float64(total)
}

// scoreCorrectness does a lightweight structural pass: delimiter balance
// for every language, then a go/ast walk for Go or a tree-sitter walk for
// the rest, catching parse errors and unreachable code.
func scoreCorrectness(code string, lang Language) float64 {
	if !balanced(code) {
		return 0.2
	}
	if lang == LanguageGo {
		return scoreGoCorrectness(code)
	}
	return scoreStructural(code, lang)
}

func balanced(code string) bool {
	pairs := map[rune]rune{')': '(', ']': '[', '}': '{'}
	var stack []rune
	inString, stringCh := false, rune(0)
	for _, r := range code {
		if inString {
			if r == stringCh {
				inString = false
			}
			continue
		}
		switch r {
		case '"', '\'', '`':
			inString = true
			stringCh = r
		case '(', '[', '{':
			stack = append(stack, r)
		case ')', ']', '}':
			if len(stack) == 0 || stack[len(stack)-1] != pairs[r] {
				return false
			}
			stack = stack[:len(stack)-1]
		}
	}
	return len(stack) == 0
}

// scoreGoCorrectness parses Go source (wrapped in a throwaway package if
// needed) and walks the AST for unreachable code after a return/panic and
// for non-void functions whose last statement is not a return/panic.
func scoreGoCorrectness(code string) float64 {
	src := code
	if !strings.Contains(src, "package ") {
		src = "package scratch\n" + src
	}

	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "scratch.go", src, parser.AllErrors)
	if err != nil {
		// Might just be a bare function fragment; try wrapping in a func.
		wrapped := "package scratch\nfunc __wrapped__() {\n" + code + "\n}\n"
		file, err = parser.ParseFile(fset, "scratch.go", wrapped, parser.AllErrors)
		if err != nil {
			return 0.4
		}
	}

	score := 1.0
	ast.Inspect(file, func(n ast.Node) bool {
		fn, ok := n.(*ast.FuncDecl)
		if !ok || fn.Body == nil {
			return true
		}
		if hasUnreachableAfterTerminator(fn.Body.List) {
			score -= 0.2
		}
		if fn.Type.Results != nil && len(fn.Type.Results.List) > 0 && len(fn.Body.List) > 0 {
			last := fn.Body.List[len(fn.Body.List)-1]
			if !isTerminatingStmt(last) {
				score -= 0.2
			}
		}
		return true
	})
	return clamp01(score)
}

func hasUnreachableAfterTerminator(stmts []ast.Stmt) bool {
	for i, stmt := range stmts {
		if isTerminatingStmt(stmt) && i < len(stmts)-1 {
			return true
		}
	}
	return false
}

func isTerminatingStmt(stmt ast.Stmt) bool {
	switch s := stmt.(type) {
	case *ast.ReturnStmt:
		return true
	case *ast.BranchStmt:
		return s.Tok == token.BREAK || s.Tok == token.CONTINUE
	case *ast.ExprStmt:
		if call, ok := s.X.(*ast.CallExpr); ok {
			if ident, ok := call.Fun.(*ast.Ident); ok && ident.Name == "panic" {
				return true
			}
		}
	}
	return false
}

// DebugConfidence computes the sigmoid-shaped confidence for a
// DebugPattern given cumulative apply/resolve counts. Calibration:
// C(0,0)=0.2, C(k,0)->0 as k->infinity, C(infinity,infinity)->1.
func DebugConfidence(timesApplied, timesResolved int) float64 {
	const a = 1.1
	const b = 0.9
	failures := timesApplied - timesResolved
	if failures < 0 {
		failures = 0
	}
	x := a*float64(timesResolved) - b*float64(failures)
	// Shift so that (0,0) yields exactly 0.2: sigmoid(shift) = 0.2.
	const shift = -1.3862943611198906 // ln(0.2/0.8)
	return 1.0 / (1.0 + math.Exp(-(x + shift)))
}
