package compiler

import (
	"fmt"

	"github.com/wolframe-project/wolframe-typstcore/internal/source"
	"github.com/wolframe-project/wolframe-typstcore/internal/stdlib"
	"github.com/wolframe-project/wolframe-typstcore/internal/syntax"
)

// nativeFunc implements a standard-library function or a method.
type nativeFunc func(e *evaluator, f *Func, args *Args) (Value, error)

// Arg is one argument of a call. Positional arguments have no name.
type Arg struct {
	Name  string
	Value Value
	Span  Span
}

type Args struct {
	Span  Span
	Items []Arg
}

func (a *Args) Positional() []Arg {
	var out []Arg
	for _, it := range a.Items {
		if it.Name == "" {
			out = append(out, it)
		}
	}
	return out
}

// Named returns the last value passed for name.
func (a *Args) Named(name string) (Value, bool) {
	var v Value
	found := false
	for _, it := range a.Items {
		if it.Name == name {
			v, found = it.Value, true
		}
	}
	return v, found
}

func (a *Args) namedArg(name string) (Arg, bool) {
	for i := len(a.Items) - 1; i >= 0; i-- {
		if a.Items[i].Name == name {
			return a.Items[i], true
		}
	}
	return Arg{}, false
}

func (e *evaluator) args(id syntax.NodeID) (*Args, error) {
	args := &Args{Span: e.span(id)}
	for _, k := range e.tree.Exprs(id) {
		switch e.kind(k) {
		case syntax.Named:
			exprs := e.tree.Exprs(k)
			var v Value = None
			if len(exprs) > 1 {
				var err error
				if v, err = e.expr(exprs[1]); err != nil {
					return nil, err
				}
			}
			args.Items = append(args.Items, Arg{Name: e.text(exprs[0]), Value: v, Span: e.span(k)})
		case syntax.Spread:
			v, err := e.spreadValue(k)
			if err != nil {
				return nil, err
			}
			switch v := v.(type) {
			case noneValue:
			case Array:
				for _, item := range v {
					args.Items = append(args.Items, Arg{Value: item, Span: e.span(k)})
				}
			case *Dict:
				for _, key := range v.Keys() {
					val, _ := v.Get(key)
					args.Items = append(args.Items, Arg{Name: key, Value: val, Span: e.span(k)})
				}
			default:
				return nil, errorAt(e.span(k), "cannot spread %s", v.Type())
			}
		default:
			v, err := e.expr(k)
			if err != nil {
				return nil, err
			}
			args.Items = append(args.Items, Arg{Value: v, Span: e.span(k)})
		}
	}
	return args, nil
}

func (e *evaluator) call(callee Value, args *Args) (Value, error) {
	switch f := callee.(type) {
	case *Func:
		if f.closure != nil {
			return e.callClosure(f, args)
		}
		if f.Std != nil {
			if err := checkArgs(f.Std, args); err != nil {
				return nil, err
			}
		}
		if f.native == nil {
			return nil, errorAt(args.Span, "%s is not supported", f.Name)
		}
		out, err := f.native(e, f, args)
		return out, at(args.Span, err)
	case StdType:
		if f.Std.Func == nil {
			return nil, errorAt(args.Span, "type %s does not have a constructor", f.Std.Name)
		}
		return e.call(&Func{Name: f.Std.Name, Std: f.Std.Func, native: natives[f.Std.Name]}, args)
	}
	return nil, errorAt(args.Span, "expected function, found %s", callee.Type())
}

// checkArgs validates args against a library signature.
func checkArgs(sig *stdlib.Func, args *Args) error {
	positional, required, variadic := 0, 0, false
	for _, p := range sig.Params {
		switch {
		case p.Variadic:
			variadic = true
		case !p.Named:
			positional++
			if p.Required {
				required++
			}
		}
	}
	pos := args.Positional()
	for _, it := range args.Items {
		if it.Name == "" {
			continue
		}
		if p, ok := sig.Param(it.Name); !ok || !p.Named {
			return errorAt(it.Span, "unexpected argument: %s", it.Name)
		}
	}
	if !variadic && len(pos) > positional {
		return errorAt(pos[positional].Span, "unexpected argument")
	}
	if len(pos) < required {
		seen := 0
		for _, p := range sig.Params {
			if p.Required && !p.Named {
				if seen == len(pos) {
					return errorAt(args.Span, "missing argument: %s", p.Name)
				}
				seen++
			}
		}
	}
	return nil
}

type closure struct {
	file     source.FileID
	tree     *syntax.Tree
	node     syntax.NodeID
	captured *Scope
}

func (e *evaluator) closure(id syntax.NodeID, name string) *Func {
	return &Func{
		Name:    name,
		closure: &closure{file: e.file, tree: e.tree, node: id, captured: e.scope},
	}
}

func (e *evaluator) callClosure(f *Func, args *Args) (Value, error) {
	if e.depth >= maxCallDepth {
		return nil, errorAt(args.Span, "maximum function call depth exceeded")
	}
	e.depth++
	defer func() { e.depth-- }()

	c := f.closure
	ev := &evaluator{engine: e.engine, file: c.file, tree: c.tree, scope: NewScope(c.captured)}
	exprs := c.tree.Exprs(c.node)
	if len(exprs) < 3 {
		return nil, errorAt(ev.span(c.node), "closure has no body")
	}
	params, body := exprs[1], exprs[2]

	pos := args.Positional()
	used := make(map[string]bool)
	for _, p := range c.tree.Exprs(params) {
		switch c.tree.Kind(p) {
		case syntax.Ident:
			if len(pos) == 0 {
				return nil, errorAt(args.Span, "missing argument: %s", ev.text(p))
			}
			ev.scope.Define(ev.text(p), pos[0].Value, ev.span(p))
			pos = pos[1:]
		case syntax.Named:
			parts := c.tree.Exprs(p)
			name := ev.text(parts[0])
			used[name] = true
			if a, ok := args.namedArg(name); ok {
				ev.scope.Define(name, a.Value, ev.span(parts[0]))
				continue
			}
			var v Value = None
			if len(parts) > 1 {
				var err error
				if v, err = ev.expr(parts[1]); err != nil {
					return nil, err
				}
			}
			ev.scope.Define(name, v, ev.span(parts[0]))
		case syntax.Spread:
			ident := c.tree.Child(p, syntax.Ident)
			rest := Array{}
			for _, a := range pos {
				rest = append(rest, a.Value)
			}
			pos = nil
			if ident != syntax.NoNode {
				ev.scope.Define(ev.text(ident), rest, ev.span(ident))
			}
		}
	}
	if len(pos) > 0 {
		return nil, errorAt(pos[0].Span, "unexpected argument")
	}
	for _, it := range args.Items {
		if it.Name != "" && !used[it.Name] {
			return nil, errorAt(it.Span, "unexpected argument: %s", it.Name)
		}
	}
	return ev.expr(body)
}

// field accesses a member of a module or type, a dictionary key, or a
// method.
func (e *evaluator) field(target Value, name string, span Span) (Value, error) {
	switch t := target.(type) {
	case *Module:
		v, _, ok := t.member(name)
		if !ok {
			return nil, errorAt(span, "module `%s` does not contain `%s`", t.Name, name)
		}
		return v, nil
	case StdType:
		v, ok := t.Std.Member(name)
		if !ok {
			return nil, errorAt(span, "type %s does not contain field `%s`", t.Std.Name, name)
		}
		return stdValue(v, t.Std.Name+"."+name), nil
	case *Dict:
		if v, ok := t.Get(name); ok {
			return v, nil
		}
		if m, ok := methods[t.Type()][name]; ok {
			return &Func{Name: name, native: m, self: target}, nil
		}
		return nil, errorAt(span, "dictionary does not contain key %q", name)
	case *Content:
		switch name {
		case "text":
			if t.Elem == ElemText || t.Elem == ElemRaw {
				return Str(t.Text), nil
			}
		case "body":
			if len(t.Children) == 1 {
				return t.Children[0], nil
			}
		case "level":
			if t.Elem == ElemHeading {
				return Int(t.Level), nil
			}
		}
		return nil, errorAt(span, "content does not contain field %q", name)
	}
	if m, ok := methods[target.Type()][name]; ok {
		return &Func{Name: name, native: m, self: target}, nil
	}
	return nil, errorAt(span, "%s does not have a field or method %q", target.Type(), name)
}

func (e *evaluator) setRule(id syntax.NodeID) (Value, error) {
	exprs := e.tree.Exprs(id)
	if len(exprs) < 2 {
		return nil, errorAt(e.span(id), "expected argument list")
	}
	target, err := e.expr(exprs[0])
	if err != nil {
		return nil, err
	}
	f, ok := target.(*Func)
	if !ok || f.Std == nil {
		return nil, errorAt(e.span(exprs[0]), "only element functions can be used in set rules")
	}
	args, err := e.args(exprs[len(exprs)-1])
	if err != nil {
		return nil, err
	}
	for _, it := range args.Items {
		name := it.Name
		if name == "" {
			continue
		}
		if p, ok := f.Std.Param(name); !ok || !p.Settable {
			return nil, errorAt(it.Span, "unexpected argument: %s", name)
		}
	}
	if pos := args.Positional(); len(pos) > 0 && f.Name != "align" {
		return nil, errorAt(pos[0].Span, "unexpected argument")
	}
	style, err := e.style(f.Name, args)
	if err != nil {
		return nil, err
	}
	return &Styles{Target: f.Name, Style: *style}, nil
}

var opNames = map[syntax.Kind]string{
	syntax.Plus:   "+",
	syntax.Minus:  "-",
	syntax.Star:   "*",
	syntax.Slash:  "/",
	syntax.EqEq:   "==",
	syntax.ExclEq: "!=",
	syntax.Lt:     "<",
	syntax.LtEq:   "<=",
	syntax.Gt:     ">",
	syntax.GtEq:   ">=",
	syntax.And:    "and",
	syntax.Or:     "or",
}

func applyUnary(op syntax.Kind, v Value) (Value, error) {
	switch op {
	case syntax.Not:
		if b, ok := v.(Bool); ok {
			return !b, nil
		}
		return nil, fmt.Errorf("cannot apply 'not' to %s", v.Type())
	case syntax.Minus:
		switch v := v.(type) {
		case Int:
			return -v, nil
		case Float:
			return -v, nil
		case Length:
			return Length{Amount: -v.Amount, Unit: v.Unit}, nil
		}
		return nil, fmt.Errorf("cannot apply '-' to %s", v.Type())
	case syntax.Plus:
		switch v.(type) {
		case Int, Float, Length:
			return v, nil
		}
		return nil, fmt.Errorf("cannot apply '+' to %s", v.Type())
	}
	return nil, fmt.Errorf("unknown operator")
}

func toFloat(v Value) (float64, bool) {
	switch v := v.(type) {
	case Int:
		return float64(v), true
	case Float:
		return float64(v), true
	}
	return 0, false
}

func applyBinary(op syntax.Kind, a, b Value) (Value, error) {
	switch op {
	case syntax.EqEq:
		return Bool(Equal(a, b)), nil
	case syntax.ExclEq:
		return Bool(!Equal(a, b)), nil
	case syntax.Lt, syntax.LtEq, syntax.Gt, syntax.GtEq:
		c, ok := compare(a, b)
		if !ok {
			return nil, fmt.Errorf("cannot compare %s with %s", Repr(a), Repr(b))
		}
		switch op {
		case syntax.Lt:
			return Bool(c < 0), nil
		case syntax.LtEq:
			return Bool(c <= 0), nil
		case syntax.Gt:
			return Bool(c > 0), nil
		}
		return Bool(c >= 0), nil
	case syntax.Plus:
		return add(a, b)
	case syntax.Minus:
		return arith(a, b, "subtract", func(x, y int64) int64 { return x - y }, func(x, y float64) float64 { return x - y })
	case syntax.Star:
		return mul(a, b)
	case syntax.Slash:
		if f, ok := toFloat(b); ok && f == 0 {
			return nil, fmt.Errorf("cannot divide by zero")
		}
		if l, ok := a.(Length); ok {
			if f, ok := toFloat(b); ok {
				return Length{Amount: l.Amount / f, Unit: l.Unit}, nil
			}
		}
		x, xok := toFloat(a)
		y, yok := toFloat(b)
		if !xok || !yok {
			return nil, fmt.Errorf("cannot divide %s by %s", a.Type(), b.Type())
		}
		return Float(x / y), nil
	}
	return nil, fmt.Errorf("unknown operator")
}

func arith(a, b Value, verb string, fi func(x, y int64) int64, ff func(x, y float64) float64) (Value, error) {
	if x, ok := a.(Int); ok {
		if y, ok := b.(Int); ok {
			return Int(fi(int64(x), int64(y))), nil
		}
	}
	if x, ok := a.(Length); ok {
		if y, ok := b.(Length); ok && x.Unit == y.Unit {
			return Length{Amount: ff(x.Amount, y.Amount), Unit: x.Unit}, nil
		}
	}
	x, xok := toFloat(a)
	y, yok := toFloat(b)
	if xok && yok {
		return Float(ff(x, y)), nil
	}
	return nil, fmt.Errorf("cannot %s %s from %s", verb, b.Type(), a.Type())
}

func add(a, b Value) (Value, error) {
	if a == None {
		return b, nil
	}
	if b == None {
		return a, nil
	}
	switch x := a.(type) {
	case Str:
		if y, ok := b.(Str); ok {
			return x + y, nil
		}
		if y, ok := b.(*Content); ok {
			return Display(x).Join(y), nil
		}
	case *Content:
		switch y := b.(type) {
		case *Content:
			return x.Join(y), nil
		case Str:
			return x.Join(Display(y)), nil
		}
	case Array:
		if y, ok := b.(Array); ok {
			return append(append(Array{}, x...), y...), nil
		}
	case *Dict:
		if y, ok := b.(*Dict); ok {
			out := NewDict()
			for _, k := range x.Keys() {
				v, _ := x.Get(k)
				out.Set(k, v)
			}
			for _, k := range y.Keys() {
				v, _ := y.Get(k)
				out.Set(k, v)
			}
			return out, nil
		}
	}
	out, err := arith(a, b, "add", func(x, y int64) int64 { return x + y }, func(x, y float64) float64 { return x + y })
	if err != nil {
		return nil, fmt.Errorf("cannot add %s and %s", a.Type(), b.Type())
	}
	return out, nil
}

func mul(a, b Value) (Value, error) {
	switch x := a.(type) {
	case Str:
		if n, ok := b.(Int); ok && n >= 0 {
			out := Str("")
			for i := Int(0); i < n; i++ {
				out += x
			}
			return out, nil
		}
	case Array:
		if n, ok := b.(Int); ok && n >= 0 {
			out := Array{}
			for i := Int(0); i < n; i++ {
				out = append(out, x...)
			}
			return out, nil
		}
	case Length:
		if f, ok := toFloat(b); ok {
			return Length{Amount: x.Amount * f, Unit: x.Unit}, nil
		}
	}
	if y, ok := b.(Length); ok {
		if f, ok := toFloat(a); ok {
			return Length{Amount: y.Amount * f, Unit: y.Unit}, nil
		}
	}
	out, err := arith(a, b, "multiply", func(x, y int64) int64 { return x * y }, func(x, y float64) float64 { return x * y })
	if err != nil {
		return nil, fmt.Errorf("cannot multiply %s with %s", a.Type(), b.Type())
	}
	return out, nil
}

// Equal reports structural equality. Integers and floats compare by value.
func Equal(a, b Value) bool {
	if x, ok := toFloat(a); ok {
		y, ok := toFloat(b)
		return ok && x == y
	}
	switch x := a.(type) {
	case Array:
		y, ok := b.(Array)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !Equal(x[i], y[i]) {
				return false
			}
		}
		return true
	case *Dict:
		y, ok := b.(*Dict)
		if !ok || len(x.keys) != len(y.keys) {
			return false
		}
		for _, k := range x.keys {
			yv, ok := y.values[k]
			if !ok || !Equal(x.values[k], yv) {
				return false
			}
		}
		return true
	case *Content:
		y, ok := b.(*Content)
		return ok && x.PlainText() == y.PlainText()
	case StdType:
		y, ok := b.(StdType)
		return ok && x.Std.Name == y.Std.Name
	}
	return a == b
}

func compare(a, b Value) (int, bool) {
	if x, ok := toFloat(a); ok {
		y, ok := toFloat(b)
		if !ok {
			return 0, false
		}
		return cmp3(x, y), true
	}
	switch x := a.(type) {
	case Str:
		if y, ok := b.(Str); ok {
			return cmp3(x, y), true
		}
	case Length:
		if y, ok := b.(Length); ok && x.Unit == y.Unit {
			return cmp3(x.Amount, y.Amount), true
		}
	}
	return 0, false
}

func cmp3[T int64 | float64 | Str](x, y T) int {
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	}
	return 0
}
