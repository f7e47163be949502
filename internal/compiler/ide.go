package compiler

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/wolframe-project/wolframe-typstcore/internal/packages"
	"github.com/wolframe-project/wolframe-typstcore/internal/source"
	"github.com/wolframe-project/wolframe-typstcore/internal/stdlib"
	"github.com/wolframe-project/wolframe-typstcore/internal/syntax"
)

// Target is what a name refers to: a declaring identifier in some file, or
// a standard-library item.
type Target struct {
	Name string
	// Span of the declaring identifier. Detached for library items.
	Span Span
	Std  *stdlib.Value
	// Path is the dotted library path of Std, such as calc.pi.
	Path string

	// module is set when the name is bound to an imported file.
	module source.FileID
}

// Declaration finds the declaration of the identifier at offset in id. It
// returns nil when there is no identifier there or it is not bound.
func Declaration(world World, id source.FileID, offset int) (*Target, error) {
	buf, err := world.Source(id)
	if err != nil {
		return nil, err
	}
	tree := buf.Tree()
	leaf := tree.LeafAt(offset)
	if leaf == syntax.NoNode || tree.Kind(leaf) != syntax.Ident {
		return nil, nil
	}
	r := &namer{world: world, visiting: make(map[source.FileID]bool)}
	name := tree.Text(leaf)
	parent := tree.Parent(leaf)
	switch {
	case tree.Kind(parent) == syntax.FieldAccess && lastChild(tree, parent) == leaf:
		return r.field(id, tree, parent), nil
	case tree.Kind(parent) == syntax.ImportItems:
		imp := tree.Parent(parent)
		if t := r.imported(id, tree, imp, name); t != nil {
			return t, nil
		}
		return r.here(id, tree, leaf), nil
	case isDeclaration(tree, leaf):
		return r.here(id, tree, leaf), nil
	}
	return r.name(id, tree, leaf, name), nil
}

func lastChild(tree *syntax.Tree, id syntax.NodeID) syntax.NodeID {
	kids := tree.Children(id)
	if len(kids) == 0 {
		return syntax.NoNode
	}
	return kids[len(kids)-1]
}

// isDeclaration reports whether the identifier leaf introduces a binding.
func isDeclaration(tree *syntax.Tree, leaf syntax.NodeID) bool {
	parent := tree.Parent(leaf)
	switch tree.Kind(parent) {
	case syntax.Params:
		return true
	case syntax.LetBinding, syntax.Closure:
		return tree.Child(parent, syntax.Ident) == leaf
	case syntax.Named, syntax.Spread:
		return tree.Kind(tree.Parent(parent)) == syntax.Params && tree.Child(parent, syntax.Ident) == leaf
	}
	return false
}

// namer resolves names syntactically, following imports across files.
type namer struct {
	world    World
	visiting map[source.FileID]bool
}

func (r *namer) here(file source.FileID, tree *syntax.Tree, ident syntax.NodeID) *Target {
	start, end := tree.Span(ident)
	return &Target{Name: tree.Text(ident), Span: Span{File: file, Start: start, End: end}}
}

func (r *namer) std(name string) *Target {
	v, ok := r.world.Library().Lookup(name)
	if !ok {
		return nil
	}
	return &Target{Name: name, Std: &v, Path: name}
}

// name resolves name as used at node: enclosing blocks from the inside out,
// then the library.
func (r *namer) name(file source.FileID, tree *syntax.Tree, node syntax.NodeID, name string) *Target {
	child := node
	for a := tree.Parent(node); a != syntax.NoNode; child, a = a, tree.Parent(a) {
		switch tree.Kind(a) {
		case syntax.Markup, syntax.Code:
			for s := tree.PrevSibling(child); s != syntax.NoNode; s = tree.PrevSibling(s) {
				if t := r.declares(file, tree, s, name); t != nil {
					return t
				}
			}
		case syntax.Closure:
			params := tree.Child(a, syntax.Params)
			if child != params {
				if p := paramIdent(tree, params, name); p != syntax.NoNode {
					return r.here(file, tree, p)
				}
			}
			if ident := tree.Child(a, syntax.Ident); ident != syntax.NoNode && tree.Text(ident) == name {
				return r.here(file, tree, ident)
			}
		}
	}
	return r.std(name)
}

func paramIdent(tree *syntax.Tree, params syntax.NodeID, name string) syntax.NodeID {
	for _, p := range tree.Children(params) {
		ident := p
		switch tree.Kind(p) {
		case syntax.Named, syntax.Spread:
			ident = tree.Child(p, syntax.Ident)
		case syntax.Ident:
		default:
			continue
		}
		if ident != syntax.NoNode && tree.Text(ident) == name {
			return ident
		}
	}
	return syntax.NoNode
}

// letIdent returns the identifier a let binding declares.
func letIdent(tree *syntax.Tree, let syntax.NodeID) syntax.NodeID {
	if c := tree.Child(let, syntax.Closure); c != syntax.NoNode {
		return tree.Child(c, syntax.Ident)
	}
	return tree.Child(let, syntax.Ident)
}

// declares returns the declaration of name if the statement s makes one.
func (r *namer) declares(file source.FileID, tree *syntax.Tree, s syntax.NodeID, name string) *Target {
	switch tree.Kind(s) {
	case syntax.LetBinding:
		if ident := letIdent(tree, s); ident != syntax.NoNode && tree.Text(ident) == name {
			return r.here(file, tree, ident)
		}
	case syntax.ModuleImport:
		if items := tree.Child(s, syntax.ImportItems); items != syntax.NoNode {
			for _, it := range tree.Children(items) {
				if tree.Kind(it) == syntax.Ident && tree.Text(it) == name {
					if t := r.imported(file, tree, s, name); t != nil {
						return t
					}
					return r.here(file, tree, it)
				}
			}
			return nil
		}
		if tree.Child(s, syntax.Star) != syntax.NoNode {
			return r.imported(file, tree, s, name)
		}
		src, target, ok := r.importSource(file, tree, s)
		if !ok || moduleNameOf(tree, src, target) != name {
			return nil
		}
		start, end := tree.Span(src)
		return &Target{Name: name, Span: Span{File: file, Start: start, End: end}, module: target}
	}
	return nil
}

// importSource returns the source expression of an import and, for string
// sources, the file it refers to.
func (r *namer) importSource(file source.FileID, tree *syntax.Tree, imp syntax.NodeID) (syntax.NodeID, source.FileID, bool) {
	exprs := tree.Exprs(imp)
	if len(exprs) == 0 {
		return syntax.NoNode, source.FileID{}, false
	}
	src := exprs[0]
	if tree.Kind(src) != syntax.Str {
		return src, source.FileID{}, true
	}
	p := unquote(tree.Text(src))
	if !strings.HasPrefix(p, "@") {
		return src, file.Join(p), true
	}
	spec, err := source.ParsePackageSpec(p)
	if err != nil {
		return src, source.FileID{}, false
	}
	manifest, err := packages.ReadManifest(spec, r.world.File)
	if err != nil {
		return src, source.FileID{}, false
	}
	return src, manifest.EntrypointID(spec), true
}

func moduleNameOf(tree *syntax.Tree, src syntax.NodeID, target source.FileID) string {
	if tree.Kind(src) == syntax.Ident {
		return tree.Text(src)
	}
	if target.InPackage() {
		return target.Package.Name
	}
	return moduleName(target)
}

// imported resolves name through the import statement imp.
func (r *namer) imported(file source.FileID, tree *syntax.Tree, imp syntax.NodeID, name string) *Target {
	src, target, ok := r.importSource(file, tree, imp)
	if !ok {
		return nil
	}
	if tree.Kind(src) == syntax.Ident {
		mod := r.name(file, tree, src, tree.Text(src))
		return r.member(mod, name)
	}
	if target.IsZero() {
		return nil
	}
	return r.topLevel(target, name)
}

// member resolves name inside the module a target is bound to.
func (r *namer) member(mod *Target, name string) *Target {
	switch {
	case mod == nil:
		return nil
	case mod.Std != nil:
		v, ok := mod.Std.Member(name)
		if !ok {
			return nil
		}
		return &Target{Name: name, Std: &v, Path: mod.Path + "." + name}
	case !mod.module.IsZero():
		return r.topLevel(mod.module, name)
	}
	return nil
}

// topLevel finds the last top-level declaration of name in file.
func (r *namer) topLevel(file source.FileID, name string) *Target {
	if r.visiting[file] {
		return nil
	}
	r.visiting[file] = true
	defer delete(r.visiting, file)
	buf, err := r.world.Source(file)
	if err != nil {
		log.Debugf("cannot follow import into %s: %s", file, err)
		return nil
	}
	tree := buf.Tree()
	kids := tree.Children(tree.Root())
	for i := len(kids) - 1; i >= 0; i-- {
		if t := r.declares(file, tree, kids[i], name); t != nil {
			return t
		}
	}
	return nil
}

// field resolves the field of a field access.
func (r *namer) field(file source.FileID, tree *syntax.Tree, access syntax.NodeID) *Target {
	kids := tree.Children(access)
	if len(kids) < 2 {
		return nil
	}
	var mod *Target
	switch target := kids[0]; tree.Kind(target) {
	case syntax.Ident:
		mod = r.name(file, tree, target, tree.Text(target))
	case syntax.FieldAccess:
		mod = r.field(file, tree, target)
	}
	return r.member(mod, tree.Text(kids[len(kids)-1]))
}

// Completion is a suggestion for the identifier being typed.
type Completion struct {
	Label  string
	Kind   string
	Detail string
}

// Complete lists the names that can be typed at offset in id: the fields of
// a module after a dot, otherwise everything in scope, filtered by the
// partial identifier before the cursor.
func Complete(world World, id source.FileID, offset int) ([]Completion, error) {
	buf, err := world.Source(id)
	if err != nil {
		return nil, err
	}
	text := buf.Text()
	if offset < 0 || offset > len(text) {
		return nil, nil
	}
	tree := buf.Tree()
	r := &namer{world: world, visiting: make(map[source.FileID]bool)}

	start := identStart(text, offset)
	prefix := text[start:offset]
	var out []Completion
	if start > 0 && text[start-1] == '.' {
		targetEnd := start - 1
		targetStart := identStart(text, targetEnd)
		if targetStart == targetEnd {
			return nil, nil
		}
		node := tree.LeafAt(targetStart)
		if node == syntax.NoNode || tree.Kind(node) != syntax.Ident {
			return nil, nil
		}
		out = r.members(r.name(id, tree, node, tree.Text(node)))
	} else {
		node := tree.LeafAt(offset)
		if node == syntax.NoNode {
			node = tree.Root()
		}
		out = r.visible(id, tree, node)
	}

	filtered := out[:0]
	seen := make(map[string]bool)
	for _, c := range out {
		if strings.HasPrefix(c.Label, prefix) && !seen[c.Label] {
			seen[c.Label] = true
			filtered = append(filtered, c)
		}
	}
	return filtered, nil
}

func isIdentRune(r rune) bool {
	return r == '_' || r == '-' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// identStart scans back from offset over identifier characters.
func identStart(text string, offset int) int {
	start := offset
	for start > 0 {
		r, size := utf8.DecodeLastRuneInString(text[:start])
		if !isIdentRune(r) {
			break
		}
		start -= size
	}
	return start
}

func stdCompletion(v stdlib.Value) Completion {
	c := Completion{Label: v.Name, Kind: v.KindLabel()}
	if v.Kind == stdlib.KindFunc && v.Func != nil {
		c.Detail = v.Func.Signature()
	} else {
		c.Detail = v.Docs()
	}
	return c
}

func (r *namer) members(mod *Target) []Completion {
	switch {
	case mod == nil:
		return nil
	case mod.Std != nil:
		var out []Completion
		for _, n := range mod.Std.MemberNames() {
			v, _ := mod.Std.Member(n)
			out = append(out, stdCompletion(v))
		}
		return out
	case !mod.module.IsZero():
		buf, err := r.world.Source(mod.module)
		if err != nil {
			return nil
		}
		tree := buf.Tree()
		var out []Completion
		for _, s := range tree.Children(tree.Root()) {
			out = append(out, r.statementNames(mod.module, tree, s)...)
		}
		sortCompletions(out)
		return out
	}
	return nil
}

// visible lists every name in scope at node, innermost first, followed by
// the library.
func (r *namer) visible(file source.FileID, tree *syntax.Tree, node syntax.NodeID) []Completion {
	var local []Completion
	child := node
	for a := tree.Parent(node); a != syntax.NoNode; child, a = a, tree.Parent(a) {
		switch tree.Kind(a) {
		case syntax.Markup, syntax.Code:
			for s := tree.PrevSibling(child); s != syntax.NoNode; s = tree.PrevSibling(s) {
				local = append(local, r.statementNames(file, tree, s)...)
			}
		case syntax.Closure:
			params := tree.Child(a, syntax.Params)
			if child != params {
				for _, p := range tree.Children(params) {
					ident := p
					if k := tree.Kind(p); k == syntax.Named || k == syntax.Spread {
						ident = tree.Child(p, syntax.Ident)
					}
					if ident != syntax.NoNode && tree.Kind(ident) == syntax.Ident {
						local = append(local, Completion{Label: tree.Text(ident), Kind: "parameter"})
					}
				}
			}
		}
	}
	if node == tree.Root() {
		kids := tree.Children(node)
		for i := len(kids) - 1; i >= 0; i-- {
			local = append(local, r.statementNames(file, tree, kids[i])...)
		}
	}
	lib := r.world.Library()
	global := make([]Completion, 0, len(lib.Names()))
	for _, n := range lib.Names() {
		v, _ := lib.Lookup(n)
		global = append(global, stdCompletion(v))
	}
	return append(local, global...)
}

// statementNames lists the names a top-level statement binds.
func (r *namer) statementNames(file source.FileID, tree *syntax.Tree, s syntax.NodeID) []Completion {
	switch tree.Kind(s) {
	case syntax.LetBinding:
		ident := letIdent(tree, s)
		if ident == syntax.NoNode {
			return nil
		}
		kind := "variable"
		if tree.Child(s, syntax.Closure) != syntax.NoNode {
			kind = "function"
		}
		return []Completion{{Label: tree.Text(ident), Kind: kind}}
	case syntax.ModuleImport:
		if items := tree.Child(s, syntax.ImportItems); items != syntax.NoNode {
			var out []Completion
			for _, it := range tree.Children(items) {
				if tree.Kind(it) == syntax.Ident {
					out = append(out, Completion{Label: tree.Text(it), Kind: "variable"})
				}
			}
			return out
		}
		src, target, ok := r.importSource(file, tree, s)
		if !ok {
			return nil
		}
		if tree.Child(s, syntax.Star) != syntax.NoNode {
			if tree.Kind(src) == syntax.Ident {
				return r.members(r.name(file, tree, src, tree.Text(src)))
			}
			if r.visiting[target] || target.IsZero() {
				return nil
			}
			r.visiting[target] = true
			defer delete(r.visiting, target)
			return r.members(&Target{module: target})
		}
		return []Completion{{Label: moduleNameOf(tree, src, target), Kind: "module"}}
	}
	return nil
}

func sortCompletions(cs []Completion) {
	sort.SliceStable(cs, func(i, j int) bool { return cs[i].Label < cs[j].Label })
}
