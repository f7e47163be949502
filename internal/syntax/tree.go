// Package syntax parses the markup and code subset understood by the
// compiler into an arena-backed syntax tree.
//
// Nodes live in one slice and refer to each other by NodeID, so walking to
// a parent or sibling is an index lookup.
package syntax

import (
	"fmt"
	"strings"
)

type NodeID int32

// NoNode is returned by navigation methods when there is no such node.
const NoNode NodeID = -1

type Node struct {
	Kind     Kind
	Start    int
	End      int
	Parent   NodeID
	Index    int
	Children []NodeID
	Message  string
}

type Tree struct {
	text  string
	nodes []Node
}

// SyntaxError is an Error node flattened for reporting.
type SyntaxError struct {
	Start, End int
	Message    string
}

func build(text string, root green) *Tree {
	t := &Tree{text: text, nodes: make([]Node, 0, 64)}
	t.add(root, NoNode, 0, 0)
	return t
}

func (t *Tree) add(g green, parent NodeID, index, start int) NodeID {
	id := NodeID(len(t.nodes))
	t.nodes = append(t.nodes, Node{
		Kind:    g.kind,
		Start:   start,
		End:     start + g.len,
		Parent:  parent,
		Index:   index,
		Message: g.msg,
	})
	if len(g.children) > 0 {
		kids := make([]NodeID, len(g.children))
		off := start
		for i, c := range g.children {
			kids[i] = t.add(c, id, i, off)
			off += c.len
		}
		t.nodes[id].Children = kids
	}
	return id
}

func (t *Tree) Root() NodeID { return 0 }

// Source returns the text the tree was parsed from.
func (t *Tree) Source() string { return t.text }

func (t *Tree) Len() int { return len(t.nodes) }

func (t *Tree) valid(id NodeID) bool {
	return id >= 0 && int(id) < len(t.nodes)
}

func (t *Tree) Node(id NodeID) Node {
	if !t.valid(id) {
		return Node{Kind: End, Parent: NoNode}
	}
	return t.nodes[id]
}

func (t *Tree) Kind(id NodeID) Kind {
	if !t.valid(id) {
		return End
	}
	return t.nodes[id].Kind
}

func (t *Tree) Text(id NodeID) string {
	if !t.valid(id) {
		return ""
	}
	n := t.nodes[id]
	return t.text[n.Start:n.End]
}

func (t *Tree) Span(id NodeID) (start, end int) {
	n := t.Node(id)
	return n.Start, n.End
}

func (t *Tree) Parent(id NodeID) NodeID {
	if !t.valid(id) {
		return NoNode
	}
	return t.nodes[id].Parent
}

func (t *Tree) Children(id NodeID) []NodeID {
	if !t.valid(id) {
		return nil
	}
	return t.nodes[id].Children
}

func (t *Tree) PrevSibling(id NodeID) NodeID {
	return t.sibling(id, -1)
}

func (t *Tree) NextSibling(id NodeID) NodeID {
	return t.sibling(id, 1)
}

func (t *Tree) sibling(id NodeID, delta int) NodeID {
	parent := t.Parent(id)
	if parent == NoNode {
		return NoNode
	}
	kids := t.nodes[parent].Children
	i := t.nodes[id].Index + delta
	if i < 0 || i >= len(kids) {
		return NoNode
	}
	return kids[i]
}

// Child returns the first child of the given kind.
func (t *Tree) Child(id NodeID, k Kind) NodeID {
	for _, c := range t.Children(id) {
		if t.nodes[c].Kind == k {
			return c
		}
	}
	return NoNode
}

// Exprs returns the children that are neither trivia nor punctuation.
func (t *Tree) Exprs(id NodeID) []NodeID {
	var out []NodeID
	for _, c := range t.Children(id) {
		switch k := t.nodes[c].Kind; {
		case k.IsTrivia(), k == Error && t.nodes[c].Start == t.nodes[c].End:
		case k >= Hash && k <= GtEq:
		case k >= Not && k <= Include:
			if k == None || k == Auto {
				out = append(out, c)
			}
		default:
			out = append(out, c)
		}
	}
	return out
}

// LeafAt returns the leaf covering offset. When offset sits exactly between
// two leaves the one on the right wins, unless it is trivia and the left
// one is not, so a cursor just after an identifier still finds it.
func (t *Tree) LeafAt(offset int) NodeID {
	if offset < 0 || offset > len(t.text) {
		return NoNode
	}
	right := t.descend(offset, false)
	if offset == 0 {
		return right
	}
	left := t.descend(offset, true)
	switch {
	case right == NoNode:
		return left
	case left == NoNode:
		return right
	case t.nodes[right].Kind.IsTrivia() && !t.nodes[left].Kind.IsTrivia():
		return left
	}
	return right
}

// descend finds the deepest non-empty leaf containing [offset, offset+1),
// or [offset-1, offset) when before is set.
func (t *Tree) descend(offset int, before bool) NodeID {
	id := t.Root()
	for {
		kids := t.nodes[id].Children
		if len(kids) == 0 {
			if t.nodes[id].Start == t.nodes[id].End {
				return NoNode
			}
			return id
		}
		next := NoNode
		for _, c := range kids {
			n := t.nodes[c]
			if n.Start == n.End {
				continue
			}
			if !before && n.Start <= offset && offset < n.End || before && n.Start < offset && offset <= n.End {
				next = c
				break
			}
		}
		if next == NoNode {
			return NoNode
		}
		id = next
	}
}

// Find returns the deepest node spanning exactly start..end.
func (t *Tree) Find(start, end int) NodeID {
	found := NoNode
	id := t.Root()
	for id != NoNode {
		n := t.nodes[id]
		if n.Start == start && n.End == end {
			found = id
		}
		next := NoNode
		for _, c := range n.Children {
			cn := t.nodes[c]
			if cn.Start <= start && end <= cn.End && cn.End > cn.Start {
				next = c
				break
			}
		}
		id = next
	}
	return found
}

// Ancestor returns the nearest ancestor of id (id included) of kind k.
func (t *Tree) Ancestor(id NodeID, k Kind) NodeID {
	for ; id != NoNode; id = t.Parent(id) {
		if t.nodes[id].Kind == k {
			return id
		}
	}
	return NoNode
}

// Errors returns all syntax errors in document order.
func (t *Tree) Errors() []SyntaxError {
	var errs []SyntaxError
	for _, n := range t.nodes {
		if n.Kind == Error {
			errs = append(errs, SyntaxError{Start: n.Start, End: n.End, Message: n.Message})
		}
	}
	return errs
}

// Dump renders the tree, one node per line. It is meant for tests and
// debugging output.
func (t *Tree) Dump() string {
	var b strings.Builder
	var walk func(id NodeID, depth int)
	walk = func(id NodeID, depth int) {
		n := t.nodes[id]
		fmt.Fprintf(&b, "%s%s", strings.Repeat("  ", depth), n.Kind)
		if len(n.Children) == 0 {
			fmt.Fprintf(&b, " %q", t.text[n.Start:n.End])
		}
		if n.Message != "" {
			fmt.Fprintf(&b, " (%s)", n.Message)
		}
		b.WriteByte('\n')
		for _, c := range n.Children {
			walk(c, depth+1)
		}
	}
	walk(t.Root(), 0)
	return b.String()
}
