package coherency

import (
	"context"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// grammarFor maps the non-Go members of the closed language set to their
// tree-sitter grammars. Go goes through go/parser instead, which gives a
// richer terminating-statement analysis than the generic walk below.
func grammarFor(lang Language) *sitter.Language {
	switch lang {
	case LanguageJavaScript:
		return javascript.GetLanguage()
	case LanguageTypeScript:
		return typescript.GetLanguage()
	case LanguagePython:
		return python.GetLanguage()
	case LanguageRust:
		return rust.GetLanguage()
	}
	return nil
}

// Statement containers per grammar: a terminator followed by further
// named siblings inside one of these is unreachable code.
var blockNodeTypes = map[string]bool{
	"statement_block": true, // javascript, typescript
	"block":           true, // python (function bodies), rust
	"suite":           true,
}

var terminatorNodeTypes = map[string]bool{
	"return_statement":   true,
	"return_expression":  true, // rust
	"throw_statement":    true,
	"raise_statement":    true,
	"break_statement":    true,
	"continue_statement": true,
}

// scoreStructural runs the tree-sitter pass for non-Go languages:
// parse-error density from the grammar's ERROR recovery nodes, plus the
// same unreachable-after-terminator walk the Go path does over go/ast.
func scoreStructural(code string, lang Language) float64 {
	grammar := grammarFor(lang)
	if grammar == nil {
		return 0.8
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(grammar)

	tree, err := parser.ParseCtx(context.Background(), nil, []byte(code))
	if err != nil {
		return 0.4
	}
	defer tree.Close()

	root := tree.RootNode()
	score := 1.0
	if root.HasError() {
		errored := countNodes(root, func(n *sitter.Node) bool { return n.Type() == "ERROR" || n.IsMissing() })
		score -= 0.2 * float64(errored)
		if score < 0.2 {
			score = 0.2
		}
	}
	if hasUnreachableInTree(root) {
		score -= 0.2
	}
	return clamp01(score)
}

func countNodes(root *sitter.Node, match func(*sitter.Node) bool) int {
	count := 0
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if match(n) {
			count++
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(root)
	return count
}

// hasUnreachableInTree reports whether any statement container has a
// terminating statement followed by more named statements.
func hasUnreachableInTree(root *sitter.Node) bool {
	found := false
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if found {
			return
		}
		if blockNodeTypes[n.Type()] {
			last := int(n.NamedChildCount()) - 1
			for i := 0; i < last; i++ {
				child := n.NamedChild(i)
				if terminatorNodeTypes[child.Type()] {
					// Trailing comments after a return are fine.
					rest := n.NamedChild(i + 1)
					if rest.Type() != "comment" && rest.Type() != "line_comment" && rest.Type() != "block_comment" {
						found = true
						return
					}
				}
			}
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			walk(n.NamedChild(i))
		}
	}
	walk(root)
	return found
}
