package syntax

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func leaves(t *Tree) string {
	var b strings.Builder
	var walk func(id NodeID)
	walk = func(id NodeID) {
		if len(t.Children(id)) == 0 {
			b.WriteString(t.Text(id))
			return
		}
		for _, c := range t.Children(id) {
			walk(c)
		}
	}
	walk(t.Root())
	return b.String()
}

func TestLetBindingShape(t *testing.T) {
	tree := Parse("#let x = 1 + 2;")
	want := `markup
  hash "#"
  ` + "`let`" + ` expression
    keyword ` + "`let`" + ` "let"
    space " "
    identifier "x"
    space " "
    assignment operator "="
    space " "
    binary expression
      integer "1"
      space " "
      plus "+"
      space " "
      integer "2"
  semicolon ";"
`
	if diff := cmp.Diff(want, tree.Dump()); diff != "" {
		t.Errorf("tree mismatch (-want +got):\n%s", diff)
	}
}

func TestClosureShape(t *testing.T) {
	src := "#let add(\n  // left\n  a,\n  // right\n  b: 1,\n) = a + b"
	tree := Parse(src)
	if errs := tree.Errors(); len(errs) > 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}

	binding := tree.Children(tree.Root())[1]
	if tree.Kind(binding) != LetBinding {
		t.Fatalf("got %v, want let binding\n%s", tree.Kind(binding), tree.Dump())
	}
	closure := tree.Child(binding, Closure)
	if closure == NoNode {
		t.Fatalf("no closure in\n%s", tree.Dump())
	}
	var kinds []Kind
	for _, c := range tree.Children(closure) {
		kinds = append(kinds, tree.Kind(c))
	}
	want := []Kind{Ident, Params, Space, Eq, Space, Binary}
	if diff := cmp.Diff(want, kinds); diff != "" {
		t.Errorf("closure children (-want +got):\n%s", diff)
	}

	params := tree.Child(closure, Params)
	var names []string
	for _, c := range tree.Children(params) {
		switch tree.Kind(c) {
		case Ident:
			names = append(names, tree.Text(c))
		case Named:
			names = append(names, tree.Text(tree.Child(c, Ident)))
		}
	}
	if diff := cmp.Diff([]string{"a", "b"}, names); diff != "" {
		t.Errorf("params (-want +got):\n%s", diff)
	}
}

func TestDocCommentSiblings(t *testing.T) {
	src := "// The circle constant.\n// Roughly.\n#let pi = 3.1415\n\n// unrelated\n\n#let tau = 6.28\n"
	tree := Parse(src)

	var kinds []Kind
	for _, c := range tree.Children(tree.Root()) {
		kinds = append(kinds, tree.Kind(c))
	}
	want := []Kind{
		LineComment, Space, LineComment, Space, Hash, LetBinding,
		Parbreak, LineComment, Parbreak, Hash, LetBinding, Space,
	}
	if diff := cmp.Diff(want, kinds); diff != "" {
		t.Errorf("markup children (-want +got):\n%s", diff)
	}
}

func TestEmbeddedExpressionEndsAtNewline(t *testing.T) {
	tree := Parse("#let x = 1\n+ 2")
	binding := tree.Children(tree.Root())[1]
	if got := tree.Text(binding); got != "let x = 1" {
		t.Errorf("binding text = %q", got)
	}
}

func TestAtomicEmbeddedExpression(t *testing.T) {
	tree := Parse("#x + 1 and #f(a)[b] c.")
	var kinds []Kind
	for _, c := range tree.Children(tree.Root()) {
		kinds = append(kinds, tree.Kind(c))
	}
	want := []Kind{Hash, Ident, Space, Text, Space, Text, Space, Text, Space, Hash, FuncCall, Space, Text}
	if diff := cmp.Diff(want, kinds); diff != "" {
		t.Errorf("(-want +got):\n%s\n%s", diff, tree.Dump())
	}
}

func TestFieldAccessAndCalls(t *testing.T) {
	tree := Parse("#calc.pow(2, 3)")
	call := tree.Children(tree.Root())[1]
	if tree.Kind(call) != FuncCall {
		t.Fatalf("got %v\n%s", tree.Kind(call), tree.Dump())
	}
	callee := tree.Children(call)[0]
	if tree.Kind(callee) != FieldAccess || tree.Text(callee) != "calc.pow" {
		t.Errorf("callee = %v %q", tree.Kind(callee), tree.Text(callee))
	}
	args := tree.Child(call, Args)
	if got := len(tree.Exprs(args)); got != 2 {
		t.Errorf("args = %d, want 2", got)
	}
}

func TestMarkupConstructs(t *testing.T) {
	tree := Parse("= Title\n\nSome *bold* and _emph_ text with `raw` and snake_case.\n- item\n")
	var kinds []Kind
	for _, c := range tree.Children(tree.Root()) {
		kinds = append(kinds, tree.Kind(c))
	}
	has := func(k Kind) bool {
		for _, got := range kinds {
			if got == k {
				return true
			}
		}
		return false
	}
	for _, k := range []Kind{Heading, Parbreak, Strong, Emph, Raw, ListItem} {
		if !has(k) {
			t.Errorf("missing %v in\n%s", k, tree.Dump())
		}
	}
	if has(Underscore) {
		t.Errorf("underscore inside a word started emphasis\n%s", tree.Dump())
	}
}

func TestImports(t *testing.T) {
	tree := Parse(`#import "@preview/foo:0.1.0": bar, baz` + "\n" + `#import "util.typ": *` + "\n" + `#include "chapter.typ"`)
	if errs := tree.Errors(); len(errs) > 0 {
		t.Fatalf("unexpected errors: %v\n%s", errs, tree.Dump())
	}
	imp := tree.Children(tree.Root())[1]
	if tree.Kind(imp) != ModuleImport {
		t.Fatalf("got %v", tree.Kind(imp))
	}
	items := tree.Child(imp, ImportItems)
	if got := len(tree.Exprs(items)); got != 2 {
		t.Errorf("import items = %d", got)
	}
}

func TestContentBlocksNest(t *testing.T) {
	tree := Parse("#block[outer [brackets] #box[inner]] tail")
	if errs := tree.Errors(); len(errs) > 0 {
		t.Fatalf("unexpected errors: %v\n%s", errs, tree.Dump())
	}
	last := tree.Children(tree.Root())
	if got := tree.Text(last[len(last)-1]); got != "tail" {
		t.Errorf("last node = %q\n%s", got, tree.Dump())
	}
}

func TestRecoveryCoversText(t *testing.T) {
	inputs := []string{
		"",
		"#f(",
		"#let",
		"#let = 3",
		"#{ ) }",
		"*unclosed",
		"#(1, 2",
		"#f(a: )",
		"]",
		"#set",
		"#set text",
		"#import",
		"`raw",
		"/* open",
		"#f(a b)",
		"#let f(1) = 2",
		"#{ let x = ; x }",
		"#(a: 1, 2)",
		"#\"unclosed",
		"#x.",
		"#{ 1 ! 2 }",
	}
	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			tree := Parse(in)
			if got := leaves(tree); got != in {
				t.Errorf("leaves = %q", got)
			}
			_, end := tree.Span(tree.Root())
			if end != len(in) {
				t.Errorf("root ends at %d, want %d", end, len(in))
			}
		})
	}
}

func TestErrorsAreReported(t *testing.T) {
	for _, in := range []string{"#f(", "#let", "*unclosed", "]", "#{ 1 ! 2 }"} {
		if len(Parse(in).Errors()) == 0 {
			t.Errorf("%q: expected a syntax error", in)
		}
	}
}

func TestNavigation(t *testing.T) {
	src := "#let x = 1 + 2;\n#x"
	tree := Parse(src)

	use := tree.LeafAt(strings.LastIndex(src, "x"))
	if tree.Kind(use) != Ident || tree.Text(use) != "x" {
		t.Fatalf("LeafAt = %v %q", tree.Kind(use), tree.Text(use))
	}
	if tree.LeafAt(len(src)) != use {
		t.Errorf("cursor after the identifier should still find it")
	}

	decl := tree.Find(5, 6)
	if tree.Kind(decl) != Ident || tree.Kind(tree.Parent(decl)) != LetBinding {
		t.Errorf("Find(5, 6) = %v", tree.Kind(decl))
	}
	prev := tree.PrevSibling(decl)
	if tree.Kind(prev) != Space || tree.Kind(tree.PrevSibling(prev)) != Let {
		t.Errorf("siblings wrong")
	}
	if tree.PrevSibling(tree.Root()) != NoNode || tree.Parent(tree.Root()) != NoNode {
		t.Errorf("root has relatives")
	}
	if tree.Ancestor(decl, LetBinding) != tree.Parent(decl) {
		t.Errorf("Ancestor")
	}
}

func TestNewlines(t *testing.T) {
	tests := map[string]int{"": 0, " ": 0, "\n": 1, "\r\n": 1, "\r": 1, "\n\n": 2, "\r\n\r\n  ": 2}
	for in, want := range tests {
		if got := Newlines(in); got != want {
			t.Errorf("Newlines(%q) = %d, want %d", in, got, want)
		}
	}
}
