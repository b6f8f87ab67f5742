// Package extract produces the models stored by the model store: code
// models from C sources, variability and build models from YAML files.
package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"

	"github.com/l3aro/go-undead/pkg/logic"
	"github.com/l3aro/go-undead/pkg/model"
)

// cParserPool is a pool of reusable tree-sitter parsers for C.
var cParserPool = sync.Pool{
	New: func() interface{} {
		parser := sitter.NewParser()
		parser.SetLanguage(c.GetLanguage())
		return parser
	},
}

// UnsupportedPrefix names the free variables that stand in for
// preprocessor expressions with no boolean meaning (comparisons,
// arithmetic, unknown macros).
const UnsupportedPrefix = "__UNDEAD_EXPR_"

// CExtractor turns the preprocessor conditionals of a C file into a
// SourceFile element tree. It is safe for concurrent use.
type CExtractor struct{}

// NewCExtractor creates a new C extractor.
func NewCExtractor() *CExtractor {
	return &CExtractor{}
}

// FileExtensions returns the file extensions supported by C.
func (e *CExtractor) FileExtensions() []string {
	return []string{".c", ".h"}
}

// Extract parses root/relPath. The resulting file is named by relPath with
// forward slashes.
func (e *CExtractor) Extract(ctx context.Context, root, relPath string) (*model.SourceFile, error) {
	content, err := os.ReadFile(filepath.Join(root, relPath))
	if err != nil {
		return nil, fmt.Errorf("reading file %s: %w", relPath, err)
	}
	return e.ExtractFromBytes(ctx, content, filepath.ToSlash(relPath))
}

// ExtractFromBytes extracts the conditional blocks of C source code.
func (e *CExtractor) ExtractFromBytes(ctx context.Context, content []byte, path string) (*model.SourceFile, error) {
	parser := cParserPool.Get().(*sitter.Parser)
	defer cParserPool.Put(parser)

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("parsing file %s: %w", path, err)
	}
	if tree == nil {
		return nil, fmt.Errorf("parsing file %s failed", path)
	}
	defer tree.Close()

	w := &walker{content: content, file: model.NewSourceFile(path)}
	w.collect(tree.RootNode(), model.NoParent)
	return w.file, nil
}

// walker holds the state of one extraction.
type walker struct {
	content     []byte
	file        *model.SourceFile
	unsupported int
}

func isConditional(t string) bool {
	return t == "preproc_if" || t == "preproc_ifdef"
}

// collect adds every conditional chain found below node, without crossing
// into another conditional, as children of parent.
func (w *walker) collect(node *sitter.Node, parent int) {
	if node == nil {
		return
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		if isConditional(child.Type()) {
			w.chain(child, parent)
			continue
		}
		w.collect(child, parent)
	}
}

// chain adds one #if/#elif/#else chain. Branch k gets the local condition
// !c1 && ... && !c(k-1) && ck and ends on the line of the directive that
// closes it.
func (w *walker) chain(node *sitter.Node, parent int) {
	endLine := int(node.EndPoint().Row) + 1
	if node.EndPoint().Column == 0 && node.EndPoint().Row > node.StartPoint().Row {
		// the node swallowed the newline after #endif
		endLine--
	}

	var previous []logic.Formula
	for branch := node; branch != nil; {
		alt := branch.ChildByFieldName("alternative")

		var cond logic.Formula
		parts := make([]logic.Formula, 0, len(previous)+1)
		for _, p := range previous {
			parts = append(parts, logic.NewNot(p))
		}
		if branch.Type() != "preproc_else" {
			cond = w.branchCondition(branch)
			parts = append(parts, cond)
		}
		var local logic.Formula = logic.True
		if len(parts) > 0 {
			local = logic.NewAnd(parts...)
		}

		end := endLine
		if alt != nil {
			end = int(alt.StartPoint().Row) + 1
		}
		idx := w.file.AddElement(parent, local, int(branch.StartPoint().Row)+1, end)
		w.body(branch, alt, idx)

		if cond != nil {
			previous = append(previous, cond)
		}
		branch = alt
	}
}

// body collects the nested conditionals of one branch, skipping the
// condition and the alternative.
func (w *walker) body(branch, alt *sitter.Node, parent int) {
	skip := []*sitter.Node{alt, branch.ChildByFieldName("condition"), branch.ChildByFieldName("name")}
	for i := 0; i < int(branch.ChildCount()); i++ {
		child := branch.Child(i)
		if child == nil || sameAny(child, skip) {
			continue
		}
		if isConditional(child.Type()) {
			w.chain(child, parent)
			continue
		}
		w.collect(child, parent)
	}
}

func sameAny(n *sitter.Node, others []*sitter.Node) bool {
	for _, o := range others {
		if o != nil && o.StartByte() == n.StartByte() && o.EndByte() == n.EndByte() && o.Type() == n.Type() {
			return true
		}
	}
	return false
}

// branchCondition returns the guard of an #if, #ifdef, #ifndef, #elif,
// #elifdef or #elifndef branch.
func (w *walker) branchCondition(branch *sitter.Node) logic.Formula {
	switch branch.Type() {
	case "preproc_ifdef", "preproc_elifdef":
		name := w.text(branch.ChildByFieldName("name"))
		if name == "" || !logic.IsIdentifier(name) {
			return w.fresh()
		}
		var v logic.Formula = logic.NewVar(name)
		if strings.HasSuffix(w.directive(branch), "ndef") {
			v = logic.NewNot(v)
		}
		return v
	default:
		return w.expression(branch.ChildByFieldName("condition"))
	}
}

// directive returns the leading keyword token of a branch, e.g. "#ifndef".
func (w *walker) directive(branch *sitter.Node) string {
	if branch.ChildCount() == 0 {
		return ""
	}
	return strings.Join(strings.Fields(w.text(branch.Child(0))), "")
}

// expression maps a preprocessor expression to a formula.
func (w *walker) expression(n *sitter.Node) logic.Formula {
	if n == nil {
		return w.fresh()
	}
	switch n.Type() {
	case "identifier":
		return w.variable(w.text(n))
	case "number_literal":
		return w.number(w.text(n))
	case "preproc_defined":
		for i := 0; i < int(n.NamedChildCount()); i++ {
			if id := n.NamedChild(i); id != nil && id.Type() == "identifier" {
				return w.variable(w.text(id))
			}
		}
		return w.fresh()
	case "parenthesized_expression":
		if n.NamedChildCount() == 1 {
			return w.expression(n.NamedChild(0))
		}
		return w.fresh()
	case "unary_expression":
		op := w.text(n.ChildByFieldName("operator"))
		if op == "!" {
			return logic.NewNot(w.expression(n.ChildByFieldName("argument")))
		}
		return w.fresh()
	case "binary_expression":
		left, right := n.ChildByFieldName("left"), n.ChildByFieldName("right")
		switch w.text(n.ChildByFieldName("operator")) {
		case "&&":
			return logic.NewAnd(w.expression(left), w.expression(right))
		case "||":
			return logic.NewOr(w.expression(left), w.expression(right))
		}
		return w.fresh()
	case "call_expression":
		return w.call(n)
	default:
		return w.fresh()
	}
}

// call handles the Kconfig helper macros.
func (w *walker) call(n *sitter.Node) logic.Formula {
	fn := w.text(n.ChildByFieldName("function"))
	args := n.ChildByFieldName("arguments")
	if args == nil || args.NamedChildCount() != 1 {
		return w.fresh()
	}
	arg := args.NamedChild(0)
	if arg == nil || arg.Type() != "identifier" {
		return w.fresh()
	}
	name := w.text(arg)
	if !logic.IsIdentifier(name) {
		return w.fresh()
	}
	switch fn {
	case "IS_ENABLED":
		return logic.NewOr(logic.NewVar(name), logic.NewVar(name+model.ModuleSuffix))
	case "IS_BUILTIN", "defined":
		return logic.NewVar(name)
	case "IS_MODULE":
		return logic.NewVar(name + model.ModuleSuffix)
	default:
		return w.fresh()
	}
}

// variable maps a macro name to a variable. Names that collide with
// formula keywords become free variables.
func (w *walker) variable(name string) logic.Formula {
	if !logic.IsIdentifier(name) {
		return w.fresh()
	}
	return logic.NewVar(name)
}

func (w *walker) number(text string) logic.Formula {
	text = strings.TrimRight(text, "uUlL")
	v, err := strconv.ParseInt(text, 0, 64)
	if err != nil {
		return w.fresh()
	}
	if v == 0 {
		return logic.False
	}
	return logic.True
}

// fresh returns a new free variable. Numbering restarts per file, so
// unchanged files extract to equal trees.
func (w *walker) fresh() logic.Formula {
	w.unsupported++
	return logic.NewVar(UnsupportedPrefix + strconv.Itoa(w.unsupported))
}

func (w *walker) text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	start, end := n.StartByte(), n.EndByte()
	if start >= uint32(len(w.content)) || end > uint32(len(w.content)) || start > end {
		return ""
	}
	return strings.TrimSpace(string(w.content[start:end]))
}
