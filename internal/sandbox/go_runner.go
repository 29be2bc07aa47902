package sandbox

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

// YaegiGoRunner executes Go code via the yaegi interpreter rather than
// `go build`/`go run`, avoiding compile hangs and any dependency on an
// installed toolchain. Only stdlib imports are permitted; no filesystem
// writes outside a per-invocation temp directory; the import allowlist
// excludes net, net/http, os, os/exec, and syscall.
type YaegiGoRunner struct {
	allowedPackages map[string]bool
}

// NewYaegiGoRunner constructs a runner with the safe stdlib allowlist.
func NewYaegiGoRunner() *YaegiGoRunner {
	return &YaegiGoRunner{
		allowedPackages: map[string]bool{
			"strings":         true,
			"strconv":         true,
			"fmt":             true,
			"math":            true,
			"regexp":          true,
			"encoding/json":   true,
			"encoding/base64": true,
			"time":            true,
			"sort":            true,
			"bytes":           true,
			"errors":          true,
			"unicode":         true,
			"os":              false,
			"os/exec":         false,
			"net":             false,
			"net/http":        false,
			"syscall":         false,
			"unsafe":          false,
		},
	}
}

// Execute runs testCode against code: code is evaluated first to define
// the candidate's symbols, then testCode is evaluated and expected to
// call them and report pass/fail via a panic on failure (assert-style) or
// by printing "FAIL"/"PASS".
func (r *YaegiGoRunner) Execute(ctx context.Context, code, testCode string, timeout time.Duration) Result {
	start := time.Now()

	if err := r.validateImports(code); err != nil {
		return Result{Passed: false, Output: err.Error(), Sandboxed: true, DurationMs: time.Since(start).Milliseconds()}
	}
	if err := r.validateImports(testCode); err != nil {
		return Result{Passed: false, Output: err.Error(), Sandboxed: true, DurationMs: time.Since(start).Milliseconds()}
	}

	tmpDir, err := os.MkdirTemp("", "oracle-sandbox-*")
	if err != nil {
		return Result{Passed: false, Output: fmt.Sprintf("failed to create temp dir: %v", err), Sandboxed: true, DurationMs: time.Since(start).Milliseconds()}
	}
	defer os.RemoveAll(tmpDir)

	type outcome struct {
		passed bool
		output string
		err    error
	}
	resultCh := make(chan outcome, 1)

	go func() {
		i := interp.New(interp.Options{GoPath: tmpDir})
		if err := i.Use(stdlib.Symbols); err != nil {
			resultCh <- outcome{err: fmt.Errorf("failed to load stdlib: %w", err)}
			return
		}

		if _, err := i.Eval(wrapPackage(code)); err != nil {
			resultCh <- outcome{output: fmt.Sprintf("candidate code failed to evaluate: %v", err)}
			return
		}

		// Bare test statements are evaluated as-is, in the scope that
		// already holds the candidate's symbols.
		testSrc := testCode

		passed := true
		output := ""
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					passed = false
					output = fmt.Sprintf("FAIL: panic: %v", rec)
				}
			}()
			if _, err := i.Eval(testSrc); err != nil {
				passed = false
				output = fmt.Sprintf("FAIL: %v", err)
				return
			}
			output = "PASS"
		}()

		resultCh <- outcome{passed: passed, output: output}
	}()

	select {
	case out := <-resultCh:
		if out.err != nil {
			return Result{Passed: false, Output: out.err.Error(), Sandboxed: true, DurationMs: time.Since(start).Milliseconds()}
		}
		output := out.output
		if len(output) > maxOutputBytes {
			output = output[:maxOutputBytes]
		}
		return Result{Passed: out.passed, Output: output, Sandboxed: true, DurationMs: time.Since(start).Milliseconds()}
	case <-ctx.Done():
		return Result{Passed: false, Output: "FAIL: execution timed out", Sandboxed: true, DurationMs: time.Since(start).Milliseconds(), Signal: SignalTimeout}
	}
}

func (r *YaegiGoRunner) validateImports(code string) error {
	lines := strings.Split(code, "\n")
	var imports []string
	inBlock := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "import (") {
			inBlock = true
			continue
		}
		if inBlock && strings.HasPrefix(trimmed, ")") {
			inBlock = false
			continue
		}
		if inBlock {
			imports = append(imports, strings.Trim(trimmed, `"`))
		} else if strings.HasPrefix(trimmed, "import ") {
			imports = append(imports, strings.Trim(strings.TrimPrefix(trimmed, "import "), `"`))
		}
	}

	var forbidden []string
	for _, pkg := range imports {
		if pkg == "" {
			continue
		}
		if allowed, known := r.allowedPackages[pkg]; !known || !allowed {
			forbidden = append(forbidden, pkg)
		}
	}
	if len(forbidden) > 0 {
		return fmt.Errorf("forbidden imports: %v", forbidden)
	}
	return nil
}

func wrapPackage(code string) string {
	if strings.Contains(code, "package ") {
		return code
	}
	return "package main\n\n" + code
}
