package definition

import (
	"github.com/wolframe-project/wolframe-typstcore/internal/position"
	"github.com/wolframe-project/wolframe-typstcore/internal/source"
	"github.com/wolframe-project/wolframe-typstcore/internal/syntax"
)

// Symbol is a let binding found in a file.
type Symbol struct {
	Name     string
	Callable bool
	Range    position.Range
	File     source.FileID
}

// Symbols lists the let bindings of buf in source order, nested ones
// included.
func Symbols(buf *source.Buffer) []Symbol {
	tree := buf.Tree()
	var out []Symbol
	for i := 0; i < tree.Len(); i++ {
		id := syntax.NodeID(i)
		if tree.Kind(id) != syntax.LetBinding {
			continue
		}
		ident, callable := tree.Child(id, syntax.Ident), false
		if closure := tree.Child(id, syntax.Closure); ident == syntax.NoNode && closure != syntax.NoNode {
			ident, callable = tree.Child(closure, syntax.Ident), true
		}
		if ident == syntax.NoNode {
			continue
		}
		start, end := tree.Span(ident)
		rng, err := buf.Index().Range(start, end)
		if err != nil {
			continue
		}
		out = append(out, Symbol{Name: tree.Text(ident), Callable: callable, Range: rng, File: buf.ID()})
	}
	return out
}
