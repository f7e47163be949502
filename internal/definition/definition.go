// Package definition answers "what is this name" for a position in a source
// file: where it is declared, what its documentation comments say and, for
// functions, which parameters it takes.
package definition

import (
	"strings"

	"github.com/tliron/commonlog"

	"github.com/wolframe-project/wolframe-typstcore/internal/compiler"
	"github.com/wolframe-project/wolframe-typstcore/internal/diag"
	"github.com/wolframe-project/wolframe-typstcore/internal/position"
	"github.com/wolframe-project/wolframe-typstcore/internal/source"
	"github.com/wolframe-project/wolframe-typstcore/internal/stdlib"
	"github.com/wolframe-project/wolframe-typstcore/internal/syntax"
)

var log = commonlog.GetLogger("typstcore.definition")

// Parameter is one parameter of a user-defined function.
type Parameter struct {
	Name string `json:"name"`
	Docs string `json:"docs,omitempty"`
}

// Result describes the declaration a name refers to.
type Result struct {
	// Name is the bare name of a user definition, or the rendered signature
	// of a library function.
	Name              string          `json:"name,omitempty"`
	Kind              string          `json:"kind,omitempty"`
	Docs              string          `json:"docs,omitempty"`
	IsStandardLibrary bool            `json:"isStandardLibrary"`
	IsCallable        bool            `json:"isCallable"`
	Parameters        []Parameter     `json:"parameters"`
	DeclarationRange  *position.Range `json:"declarationRange,omitempty"`
	// File holding the declaration. Zero for library items.
	File source.FileID `json:"-"`
}

// Resolver finds definitions. Name resolution is delegated to the compiler;
// the declaration it points at is read back from the store.
type Resolver struct {
	store *source.Store
	world compiler.World
}

func NewResolver(store *source.Store, world compiler.World) *Resolver {
	return &Resolver{store: store, world: world}
}

// ResolveAt returns the definition of the name at pos in id, or nil when
// there is nothing there or it is not a let binding.
func (r *Resolver) ResolveAt(id source.FileID, pos position.Position) (*Result, error) {
	buf, ok := r.store.Get(id)
	if !ok {
		return nil, diag.NewFileError(diag.NotFound, id.Path)
	}
	offset, err := buf.Index().Offset(pos)
	if err != nil {
		log.Debugf("no offset for %s in %s: %s", pos, id, err)
		return nil, diag.NewFileError(diag.NotFound, id.Path)
	}
	return r.ResolveOffset(id, offset)
}

// ResolveOffset is ResolveAt for a byte offset.
func (r *Resolver) ResolveOffset(id source.FileID, offset int) (*Result, error) {
	target, err := compiler.Declaration(r.world, id, offset)
	if err != nil {
		return nil, err
	}
	switch {
	case target == nil:
		return nil, nil
	case target.Std != nil:
		return fromLibrary(*target.Std), nil
	}
	return r.fromSpan(target.Span)
}

func fromLibrary(v stdlib.Value) *Result {
	return &Result{
		Name:              v.Title(),
		Kind:              v.KindLabel(),
		Docs:              v.Docs(),
		IsStandardLibrary: true,
		Parameters:        []Parameter{},
	}
}

func (r *Resolver) fromSpan(span compiler.Span) (*Result, error) {
	if span.IsDetached() {
		return nil, diag.Errorf("declaration has a detached span")
	}
	buf, ok := r.store.Get(span.File)
	if !ok {
		return nil, diag.Errorf("declaration in unknown file %s", span.File)
	}
	tree := buf.Tree()
	ident := tree.Find(span.Start, span.End)
	if ident == syntax.NoNode || tree.Kind(ident) != syntax.Ident {
		return nil, diag.Errorf("declaration at %s is not an identifier", span)
	}

	binding, closure := letBinding(tree, ident)
	if binding == syntax.NoNode {
		log.Debugf("%s is not a let binding", span)
		return nil, nil
	}

	rng, err := buf.Index().Range(span.Start, span.End)
	if err != nil {
		return nil, diag.Errorf("declaration range %d..%d in %s: %s", span.Start, span.End, span.File, err)
	}
	res := &Result{
		Name:             tree.Text(ident),
		Docs:             Docs(tree, binding),
		IsCallable:       closure != syntax.NoNode,
		Parameters:       []Parameter{},
		DeclarationRange: &rng,
		File:             span.File,
	}
	if closure != syntax.NoNode {
		res.Parameters = parameters(tree, tree.Child(closure, syntax.Params))
	}
	return res, nil
}

// letBinding classifies an identifier: it declares a plain let binding when
// its parent is one, and a function when its parent is a closure whose
// parent is one.
func letBinding(tree *syntax.Tree, ident syntax.NodeID) (binding, closure syntax.NodeID) {
	parent := tree.Parent(ident)
	switch tree.Kind(parent) {
	case syntax.LetBinding:
		return parent, syntax.NoNode
	case syntax.Closure:
		if gp := tree.Parent(parent); tree.Kind(gp) == syntax.LetBinding {
			return gp, parent
		}
	}
	return syntax.NoNode, syntax.NoNode
}

func parameters(tree *syntax.Tree, params syntax.NodeID) []Parameter {
	out := []Parameter{}
	for _, p := range tree.Children(params) {
		var name string
		switch tree.Kind(p) {
		case syntax.Ident:
			name = tree.Text(p)
		case syntax.Named, syntax.Spread:
			name = tree.Text(tree.Child(p, syntax.Ident))
		default:
			continue
		}
		out = append(out, Parameter{Name: name, Docs: Docs(tree, p)})
	}
	return out
}

// Docs collects the line comments directly above node. A blank line ends
// the block, and so does any sibling that is neither trivia nor the "#"
// introducing an embedded expression, or a comment trailing code on its
// line. Comment markers and one following space are removed.
func Docs(tree *syntax.Tree, node syntax.NodeID) string {
	var lines []string
	for s := tree.PrevSibling(node); s != syntax.NoNode; s = tree.PrevSibling(s) {
		k := tree.Kind(s)
		if k == syntax.Space || k == syntax.Parbreak {
			if strings.Count(tree.Text(s), "\n") > 1 {
				break
			}
			continue
		}
		if k == syntax.Hash {
			continue
		}
		if k != syntax.LineComment || !ownLine(tree, s) {
			break
		}
		line := strings.TrimPrefix(tree.Text(s), "//")
		lines = append(lines, strings.TrimPrefix(line, " "))
	}
	if len(lines) == 0 {
		return ""
	}
	for i, j := 0, len(lines)-1; i < j; i, j = i+1, j-1 {
		lines[i], lines[j] = lines[j], lines[i]
	}
	return strings.Join(lines, "\n")
}

// ownLine reports whether only blanks precede node on its line.
func ownLine(tree *syntax.Tree, node syntax.NodeID) bool {
	start, _ := tree.Span(node)
	text := tree.Source()[:start]
	if i := strings.LastIndexByte(text, '\n'); i >= 0 {
		text = text[i+1:]
	}
	return strings.Trim(text, " \t") == ""
}

// Markdown renders r for a hover popup.
func (r *Result) Markdown() string {
	var b strings.Builder
	b.WriteString("```typc\n")
	if !r.IsStandardLibrary {
		b.WriteString("let ")
	}
	b.WriteString(r.Name)
	if !r.IsStandardLibrary && r.IsCallable {
		names := make([]string, len(r.Parameters))
		for i, p := range r.Parameters {
			names[i] = p.Name
		}
		b.WriteString("(" + strings.Join(names, ", ") + ")")
	}
	b.WriteString("\n```")
	if r.Kind != "" {
		b.WriteString("\n\n*" + r.Kind + "*")
	}
	if r.Docs != "" {
		b.WriteString("\n\n" + r.Docs)
	}
	var params []string
	for _, p := range r.Parameters {
		if p.Docs != "" {
			params = append(params, "- `"+p.Name+"`: "+strings.ReplaceAll(p.Docs, "\n", " "))
		}
	}
	if len(params) > 0 {
		b.WriteString("\n\n" + strings.Join(params, "\n"))
	}
	return b.String()
}
