package compiler

import (
	"errors"
	"path"
	"strconv"
	"strings"

	"github.com/wolframe-project/wolframe-typstcore/internal/diag"
	"github.com/wolframe-project/wolframe-typstcore/internal/packages"
	"github.com/wolframe-project/wolframe-typstcore/internal/source"
	"github.com/wolframe-project/wolframe-typstcore/internal/stdlib"
	"github.com/wolframe-project/wolframe-typstcore/internal/syntax"
)

const maxCallDepth = 64

// errReported marks a failure whose diagnostics were already recorded.
var errReported = errors.New("errors reported")

// engine is the state shared by every file evaluated during one
// compilation.
type engine struct {
	world    World
	lib      *stdlib.Library
	modules  map[source.FileID]*Module
	route    []source.FileID
	depth    int
	errors   []SourceDiagnostic
	warnings []SourceDiagnostic
}

func newEngine(w World) *engine {
	return &engine{
		world:   w,
		lib:     w.Library(),
		modules: make(map[source.FileID]*Module),
	}
}

func (en *engine) warn(span Span, format string, args ...any) {
	se := errorAt(span, format, args...)
	en.warnings = append(en.warnings, SourceDiagnostic{Severity: diag.SeverityWarning, Span: span, Message: se.Message})
}

func (en *engine) report(err error) {
	if err == nil || errors.Is(err, errReported) {
		return
	}
	var se *SourceError
	if errors.As(err, &se) {
		en.errors = append(en.errors, SourceDiagnostic{Severity: diag.SeverityError, Span: se.Span, Message: se.Message, Hints: se.Hints})
		return
	}
	en.errors = append(en.errors, SourceDiagnostic{Severity: diag.SeverityError, Message: err.Error()})
}

// evalFile evaluates id once per compilation and returns its module.
func (en *engine) evalFile(id source.FileID, span Span) (*Module, error) {
	if m, ok := en.modules[id]; ok {
		return m, nil
	}
	for _, r := range en.route {
		if r == id {
			return nil, errorAt(span, "cyclic import")
		}
	}
	buf, err := en.world.Source(id)
	if err != nil {
		return nil, at(span, err)
	}
	tree := buf.Tree()
	if errs := tree.Errors(); len(errs) > 0 {
		for _, se := range errs {
			en.errors = append(en.errors, SourceDiagnostic{
				Severity: diag.SeverityError,
				Span:     Span{File: id, Start: se.Start, End: se.End},
				Message:  se.Message,
			})
		}
		return nil, errReported
	}

	en.route = append(en.route, id)
	defer func() { en.route = en.route[:len(en.route)-1] }()

	ev := &evaluator{engine: en, file: id, tree: tree, scope: NewScope(nil)}
	content := ev.markup(tree.Root())
	m := &Module{Name: moduleName(id), File: id, Scope: ev.scope, Content: content}
	en.modules[id] = m
	log.Debugf("evaluated %s", id)
	return m, nil
}

func moduleName(id source.FileID) string {
	if id.InPackage() && id.Path == "/lib.typ" {
		return id.Package.Name
	}
	base := path.Base(id.Path)
	return strings.TrimSuffix(base, path.Ext(base))
}

// evaluator evaluates the nodes of one file.
type evaluator struct {
	*engine
	file  source.FileID
	tree  *syntax.Tree
	scope *Scope
}

func (e *evaluator) span(id syntax.NodeID) Span {
	start, end := e.tree.Span(id)
	return Span{File: e.file, Start: start, End: end}
}

func (e *evaluator) text(id syntax.NodeID) string { return e.tree.Text(id) }

func (e *evaluator) kind(id syntax.NodeID) syntax.Kind { return e.tree.Kind(id) }

func (e *evaluator) enter() func() {
	outer := e.scope
	e.scope = NewScope(outer)
	return func() { e.scope = outer }
}

// Markup.

func (e *evaluator) markup(id syntax.NodeID) *Content {
	return e.markupNodes(e.tree.Children(id))
}

func (e *evaluator) markupNodes(kids []syntax.NodeID) *Content {
	seq := Sequence()
	for i, k := range kids {
		if i > 0 && e.kind(kids[i-1]) == syntax.Hash {
			v, err := e.expr(k)
			if err != nil {
				e.report(err)
				continue
			}
			if st, ok := v.(*Styles); ok {
				rest := e.markupNodes(kids[i+1:])
				seq.Children = append(seq.Children, styled(&st.Style, rest))
				return seq
			}
			seq.Children = append(seq.Children, Display(v))
			continue
		}
		switch e.kind(k) {
		case syntax.Hash, syntax.Semicolon, syntax.LineComment, syntax.BlockComment, syntax.Error:
		case syntax.ListItem:
			e.listItem(seq, k)
		default:
			seq.Children = append(seq.Children, e.markupNode(k))
		}
	}
	return seq
}

func (e *evaluator) markupNode(id syntax.NodeID) *Content {
	span := e.span(id)
	switch e.kind(id) {
	case syntax.Space:
		return &Content{Elem: ElemSpace, Span: span}
	case syntax.Parbreak:
		return &Content{Elem: ElemParbreak, Span: span}
	case syntax.Linebreak:
		return &Content{Elem: ElemLinebreak, Span: span}
	case syntax.Escape:
		return &Content{Elem: ElemText, Text: unescape(e.text(id)), Span: span}
	case syntax.Raw:
		return &Content{Elem: ElemRaw, Text: strings.Trim(e.text(id), "`"), Span: span}
	case syntax.Strong:
		c := wrap(ElemStrong, e.markup(e.tree.Child(id, syntax.Markup)))
		c.Span = span
		return c
	case syntax.Emph:
		c := wrap(ElemEmph, e.markup(e.tree.Child(id, syntax.Markup)))
		c.Span = span
		return c
	case syntax.Heading:
		body := e.markup(e.tree.Child(id, syntax.Markup))
		if body.IsEmpty() {
			e.warn(span, "heading is empty")
		}
		level := len(strings.TrimSpace(e.text(e.tree.Child(id, syntax.HeadingMarker))))
		return &Content{Elem: ElemHeading, Level: level, Children: []*Content{body}, Span: span}
	}
	return &Content{Elem: ElemText, Text: e.text(id), Span: span}
}

// listItem appends an item to the list that directly precedes it, or
// starts a new list.
func (e *evaluator) listItem(seq *Content, id syntax.NodeID) {
	item := wrap(ElemListItem, e.markup(e.tree.Child(id, syntax.Markup)))
	item.Span = e.span(id)

	n := len(seq.Children)
	for n > 0 && seq.Children[n-1].Elem == ElemSpace {
		n--
	}
	if n > 0 && seq.Children[n-1].Elem == ElemList {
		list := seq.Children[n-1]
		list.Children = append(list.Children, item)
		seq.Children = seq.Children[:n]
		return
	}
	seq.Children = append(seq.Children, &Content{Elem: ElemList, Children: []*Content{item}, Span: item.Span})
}

func unescape(s string) string {
	s = strings.TrimPrefix(s, "\\")
	if strings.HasPrefix(s, "u{") && strings.HasSuffix(s, "}") {
		if n, err := strconv.ParseUint(s[2:len(s)-1], 16, 32); err == nil {
			return string(rune(n))
		}
	}
	return s
}

// Code.

func (e *evaluator) expr(id syntax.NodeID) (Value, error) {
	span := e.span(id)
	switch e.kind(id) {
	case syntax.Ident:
		return e.lookup(e.text(id), span)
	case syntax.None:
		return None, nil
	case syntax.Auto:
		return Auto, nil
	case syntax.Bool:
		return Bool(e.text(id) == "true"), nil
	case syntax.Int:
		n, err := strconv.ParseInt(e.text(id), 10, 64)
		if err != nil {
			return nil, errorAt(span, "number too large")
		}
		return Int(n), nil
	case syntax.Float:
		f, err := strconv.ParseFloat(e.text(id), 64)
		if err != nil {
			return nil, errorAt(span, "invalid float: %s", e.text(id))
		}
		return Float(f), nil
	case syntax.Numeric:
		return numeric(e.text(id), span)
	case syntax.Str:
		return Str(unquote(e.text(id))), nil
	case syntax.CodeBlock:
		defer e.enter()()
		return e.code(e.tree.Exprs(e.tree.Child(id, syntax.Code)))
	case syntax.ContentBlock:
		defer e.enter()()
		return e.markup(e.tree.Child(id, syntax.Markup)), nil
	case syntax.Parenthesized:
		exprs := e.tree.Exprs(id)
		if len(exprs) == 0 {
			return None, nil
		}
		return e.expr(exprs[0])
	case syntax.Array:
		return e.array(id)
	case syntax.Dict:
		return e.dict(id)
	case syntax.Unary:
		return e.unary(id)
	case syntax.Binary:
		return e.binary(id)
	case syntax.FieldAccess:
		target, err := e.expr(e.tree.Children(id)[0])
		if err != nil {
			return nil, err
		}
		kids := e.tree.Children(id)
		field := kids[len(kids)-1]
		if e.kind(field) != syntax.Ident {
			return nil, errorAt(e.span(field), "expected identifier")
		}
		return e.field(target, e.text(field), e.span(field))
	case syntax.FuncCall:
		return e.funcCall(id)
	case syntax.LetBinding:
		return None, e.letBinding(id)
	case syntax.SetRule:
		return e.setRule(id)
	case syntax.ModuleImport:
		return None, e.moduleImport(id)
	case syntax.ModuleInclude:
		return e.moduleInclude(id)
	case syntax.Error:
		return nil, errorAt(span, "%s", e.tree.Node(id).Message)
	}
	return nil, errorAt(span, "expected expression, found %s", e.kind(id))
}

// code evaluates a sequence of expressions and joins their values. A set
// rule applies to everything after it.
func (e *evaluator) code(exprs []syntax.NodeID) (Value, error) {
	var out Value = None
	for i, k := range exprs {
		v, err := e.expr(k)
		if err != nil {
			return nil, err
		}
		if st, ok := v.(*Styles); ok {
			rest, err := e.code(exprs[i+1:])
			if err != nil {
				return nil, err
			}
			out, err = join(out, styled(&st.Style, Display(rest)))
			return out, at(e.span(k), err)
		}
		if out, err = join(out, v); err != nil {
			return nil, at(e.span(k), err)
		}
	}
	return out, nil
}

func (e *evaluator) lookup(name string, span Span) (Value, error) {
	if v, ok := e.scope.Lookup(name); ok {
		return v, nil
	}
	if v, ok := e.lib.Lookup(name); ok {
		return stdValue(v, name), nil
	}
	err := errorAt(span, "unknown variable: %s", name)
	if strings.Contains(name, "-") {
		err.withHint("if you meant to use subtraction, try adding spaces around the minus sign")
	}
	return nil, err
}

func numeric(text string, span Span) (Value, error) {
	i := strings.IndexFunc(text, func(r rune) bool { return r == '%' || r >= 'a' && r <= 'z' })
	if i < 0 {
		return nil, errorAt(span, "invalid number: %s", text)
	}
	f, err := strconv.ParseFloat(text[:i], 64)
	if err != nil {
		return nil, errorAt(span, "invalid number: %s", text)
	}
	return Length{Amount: f, Unit: text[i:]}, nil
}

func unquote(s string) string {
	s = strings.TrimPrefix(strings.TrimSuffix(s, `"`), `"`)
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 == len(s) {
			b.WriteByte(s[i])
			continue
		}
		i++
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case 'u':
			if end := strings.IndexByte(s[i:], '}'); s[i+1:i+2] == "{" && end > 0 {
				b.WriteString(unescape(`\` + s[i:i+end+1]))
				i += end
				continue
			}
			b.WriteByte('u')
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

func (e *evaluator) array(id syntax.NodeID) (Value, error) {
	out := Array{}
	for _, k := range e.tree.Exprs(id) {
		if e.kind(k) == syntax.Spread {
			v, err := e.spreadValue(k)
			if err != nil {
				return nil, err
			}
			arr, ok := v.(Array)
			if !ok {
				return nil, errorAt(e.span(k), "cannot spread %s into array", v.Type())
			}
			out = append(out, arr...)
			continue
		}
		v, err := e.expr(k)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (e *evaluator) dict(id syntax.NodeID) (Value, error) {
	d := NewDict()
	for _, k := range e.tree.Exprs(id) {
		if e.kind(k) != syntax.Named {
			return nil, errorAt(e.span(k), "expected named pair, found %s", e.kind(k))
		}
		exprs := e.tree.Exprs(k)
		var v Value = None
		if len(exprs) > 1 {
			var err error
			if v, err = e.expr(exprs[1]); err != nil {
				return nil, err
			}
		}
		d.Set(e.text(exprs[0]), v)
	}
	return d, nil
}

func (e *evaluator) spreadValue(id syntax.NodeID) (Value, error) {
	exprs := e.tree.Exprs(id)
	if len(exprs) == 0 {
		return nil, errorAt(e.span(id), "expected expression")
	}
	return e.expr(exprs[0])
}

func (e *evaluator) unary(id syntax.NodeID) (Value, error) {
	exprs := e.tree.Exprs(id)
	if len(exprs) == 0 {
		return nil, errorAt(e.span(id), "expected expression")
	}
	v, err := e.expr(exprs[0])
	if err != nil {
		return nil, err
	}
	op := e.kind(e.tree.Children(id)[0])
	out, err := applyUnary(op, v)
	return out, at(e.span(id), err)
}

func (e *evaluator) binary(id syntax.NodeID) (Value, error) {
	kids := e.tree.Children(id)
	lhsNode := kids[0]
	var op syntax.Kind
	for _, k := range kids[1:] {
		if _, ok := opNames[e.kind(k)]; ok {
			op = e.kind(k)
			break
		}
	}
	exprs := e.tree.Exprs(id)
	if len(exprs) < 2 {
		return nil, errorAt(e.span(id), "expected expression")
	}
	lhs, err := e.expr(lhsNode)
	if err != nil {
		return nil, err
	}

	switch op {
	case syntax.And, syntax.Or:
		l, ok := lhs.(Bool)
		if !ok {
			return nil, errorAt(e.span(lhsNode), "expected boolean, found %s", lhs.Type())
		}
		if op == syntax.And && !bool(l) || op == syntax.Or && bool(l) {
			return l, nil
		}
		rhs, err := e.expr(exprs[len(exprs)-1])
		if err != nil {
			return nil, err
		}
		r, ok := rhs.(Bool)
		if !ok {
			return nil, errorAt(e.span(exprs[len(exprs)-1]), "expected boolean, found %s", rhs.Type())
		}
		return r, nil
	}

	rhs, err := e.expr(exprs[len(exprs)-1])
	if err != nil {
		return nil, err
	}
	out, err := applyBinary(op, lhs, rhs)
	return out, at(e.span(id), err)
}

func (e *evaluator) funcCall(id syntax.NodeID) (Value, error) {
	kids := e.tree.Children(id)
	callee, err := e.expr(kids[0])
	if err != nil {
		return nil, err
	}
	args, err := e.args(e.tree.Child(id, syntax.Args))
	if err != nil {
		return nil, err
	}
	args.Span = e.span(id)
	return e.call(callee, args)
}

func (e *evaluator) letBinding(id syntax.NodeID) error {
	if c := e.tree.Child(id, syntax.Closure); c != syntax.NoNode {
		name := e.tree.Child(c, syntax.Ident)
		fn := e.closure(c, e.text(name))
		e.scope.Define(e.text(name), fn, e.span(name))
		return nil
	}
	name := e.tree.Child(id, syntax.Ident)
	if name == syntax.NoNode {
		return errorAt(e.span(id), "expected identifier")
	}
	var v Value = None
	if exprs := e.tree.Exprs(id); len(exprs) > 1 {
		var err error
		if v, err = e.expr(exprs[len(exprs)-1]); err != nil {
			return err
		}
	}
	e.scope.Define(e.text(name), v, e.span(name))
	return nil
}

func (e *evaluator) moduleImport(id syntax.NodeID) error {
	exprs := e.tree.Exprs(id)
	if len(exprs) == 0 {
		return errorAt(e.span(id), "expected expression")
	}
	srcNode := exprs[0]
	v, err := e.expr(srcNode)
	if err != nil {
		return err
	}
	var m *Module
	switch v := v.(type) {
	case Str:
		if m, err = e.importPath(string(v), e.span(srcNode)); err != nil {
			return err
		}
	case *Module:
		m = v
	default:
		return errorAt(e.span(srcNode), "expected path or module, found %s", v.Type())
	}

	switch items := e.tree.Child(id, syntax.ImportItems); {
	case e.tree.Child(id, syntax.Star) != syntax.NoNode:
		for _, name := range m.Names() {
			val, span, _ := m.member(name)
			e.scope.Define(name, val, span)
		}
	case items != syntax.NoNode:
		for _, it := range e.tree.Exprs(items) {
			name := e.text(it)
			val, span, ok := m.member(name)
			if !ok {
				return errorAt(e.span(it), "unresolved import")
			}
			if span.IsDetached() {
				span = e.span(it)
			}
			e.scope.Define(name, val, span)
		}
	default:
		e.scope.Define(m.Name, m, e.span(srcNode))
	}
	return nil
}

// importPath evaluates the file at p, relative to the current file, or the
// entrypoint of a package when p starts with "@".
func (e *evaluator) importPath(p string, span Span) (*Module, error) {
	if strings.HasPrefix(p, "@") {
		spec, err := source.ParsePackageSpec(p)
		if err != nil {
			return nil, errorAt(span, "%v", err)
		}
		manifest, err := packages.ReadManifest(spec, e.world.File)
		if err != nil {
			return nil, at(span, err)
		}
		m, err := e.evalFile(manifest.EntrypointID(spec), span)
		if err != nil {
			return nil, err
		}
		m.Name = spec.Name
		return m, nil
	}
	return e.evalFile(e.file.Join(p), span)
}

func (e *evaluator) moduleInclude(id syntax.NodeID) (Value, error) {
	exprs := e.tree.Exprs(id)
	if len(exprs) == 0 {
		return nil, errorAt(e.span(id), "expected expression")
	}
	v, err := e.expr(exprs[0])
	if err != nil {
		return nil, err
	}
	p, ok := v.(Str)
	if !ok {
		return nil, errorAt(e.span(exprs[0]), "expected path, found %s", v.Type())
	}
	m, err := e.importPath(string(p), e.span(exprs[0]))
	if err != nil {
		return nil, err
	}
	return m.Content, nil
}

// member looks up an exported name together with its declaration site.
func (m *Module) member(name string) (Value, Span, bool) {
	if m.Std != nil {
		v, ok := m.Std.Member(name)
		if !ok {
			return nil, Detached, false
		}
		return stdValue(v, m.Std.Name+"."+name), Detached, true
	}
	b, ok := m.Scope.vars[name]
	return b.value, b.span, ok
}

// Names lists the module's exports.
func (m *Module) Names() []string {
	if m.Std != nil {
		return m.Std.MemberNames()
	}
	return m.Scope.Names()
}

// join concatenates the values of consecutive expressions in a code block.
func join(a, b Value) (Value, error) {
	if a == None {
		return b, nil
	}
	if b == None {
		return a, nil
	}
	switch av := a.(type) {
	case Str:
		if bv, ok := b.(Str); ok {
			return av + bv, nil
		}
	case Array:
		if bv, ok := b.(Array); ok {
			return append(append(Array{}, av...), bv...), nil
		}
	}
	_, ac := a.(*Content)
	_, bc := b.(*Content)
	_, as := a.(Str)
	_, bs := b.(Str)
	if (ac || as) && (bc || bs) {
		return Display(a).Join(Display(b)), nil
	}
	return nil, errorAt(Detached, "cannot join %s with %s", a.Type(), b.Type())
}
