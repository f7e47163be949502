package compiler

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/wolframe-project/wolframe-typstcore/internal/source"
	"github.com/wolframe-project/wolframe-typstcore/internal/stdlib"
)

// Value is a runtime value.
type Value interface {
	Type() string
}

type (
	noneValue struct{}
	autoValue struct{}
	Bool      bool
	Int       int64
	Float     float64
	Str       string
	Array     []Value
	Alignment string
)

var (
	None Value = noneValue{}
	Auto Value = autoValue{}
)

func (noneValue) Type() string { return "none" }
func (autoValue) Type() string { return "auto" }
func (Bool) Type() string      { return "boolean" }
func (Int) Type() string       { return "integer" }
func (Float) Type() string     { return "float" }
func (Str) Type() string       { return "string" }
func (Array) Type() string     { return "array" }
func (Alignment) Type() string { return "alignment" }

// Length is a numeric value with a unit: pt, mm, cm, in, em, fr, %, deg or
// rad.
type Length struct {
	Amount float64
	Unit   string
}

func (l Length) Type() string {
	switch l.Unit {
	case "%":
		return "ratio"
	case "fr":
		return "fraction"
	case "deg", "rad":
		return "angle"
	}
	return "length"
}

// Points converts an absolute length to points. em is resolved against
// size; fractions and ratios have no absolute size.
func (l Length) Points(size float64) (float64, bool) {
	switch l.Unit {
	case "pt":
		return l.Amount, true
	case "mm":
		return l.Amount * 72 / 25.4, true
	case "cm":
		return l.Amount * 72 / 2.54, true
	case "in":
		return l.Amount * 72, true
	case "em":
		return l.Amount * size, true
	}
	return 0, false
}

type Color struct {
	Name string
	Hex  string
}

func (Color) Type() string { return "color" }

type Datetime struct{ Date }

func (Datetime) Type() string { return "datetime" }

// Dict keeps insertion order.
type Dict struct {
	keys   []string
	values map[string]Value
}

func NewDict() *Dict { return &Dict{values: make(map[string]Value)} }

func (*Dict) Type() string { return "dictionary" }

func (d *Dict) Set(k string, v Value) {
	if _, ok := d.values[k]; !ok {
		d.keys = append(d.keys, k)
	}
	d.values[k] = v
}

func (d *Dict) Get(k string) (Value, bool) {
	v, ok := d.values[k]
	return v, ok
}

func (d *Dict) Keys() []string { return d.keys }

// Module is an evaluated file or a standard-library module.
type Module struct {
	Name    string
	File    source.FileID
	Scope   *Scope
	Content *Content
	Std     *stdlib.Value
}

func (*Module) Type() string { return "module" }

// StdType is a standard-library type such as str or datetime. Calling it
// invokes its constructor.
type StdType struct {
	Std stdlib.Value
}

func (StdType) Type() string { return "type" }

// Styles is the result of a set rule. It applies to the rest of the
// enclosing block.
type Styles struct {
	Target string
	Style  Style
}

func (*Styles) Type() string { return "styles" }

// Func is a callable: a standard-library function, a closure or a method
// bound to a receiver.
type Func struct {
	Name    string
	Std     *stdlib.Func
	native  nativeFunc
	closure *closure
	self    Value
}

func (*Func) Type() string { return "function" }

func (f *Func) String() string {
	if f.Name == "" {
		return "(..) => .."
	}
	return f.Name
}

// Repr renders v the way repr() does.
func Repr(v Value) string {
	switch v := v.(type) {
	case noneValue:
		return "none"
	case autoValue:
		return "auto"
	case Bool:
		return strconv.FormatBool(bool(v))
	case Int:
		return strconv.FormatInt(int64(v), 10)
	case Float:
		return formatFloat(float64(v))
	case Str:
		return strconv.Quote(string(v))
	case Length:
		return formatFloat(v.Amount) + v.Unit
	case Alignment:
		return string(v)
	case Color:
		if v.Name != "" {
			return v.Name
		}
		return fmt.Sprintf("rgb(%q)", v.Hex)
	case Datetime:
		return fmt.Sprintf("datetime(year: %d, month: %d, day: %d)", v.Year, v.Month, v.Day)
	case Array:
		parts := make([]string, len(v))
		for i, item := range v {
			parts[i] = Repr(item)
		}
		if len(parts) == 1 {
			return "(" + parts[0] + ",)"
		}
		return "(" + strings.Join(parts, ", ") + ")"
	case *Dict:
		if len(v.keys) == 0 {
			return "(:)"
		}
		parts := make([]string, len(v.keys))
		for i, k := range v.keys {
			parts[i] = k + ": " + Repr(v.values[k])
		}
		return "(" + strings.Join(parts, ", ") + ")"
	case *Content:
		return "[" + v.PlainText() + "]"
	case *Func:
		return v.String()
	case *Module:
		return "<module " + v.Name + ">"
	case StdType:
		return v.Std.Name
	case *Styles:
		return "..."
	}
	return fmt.Sprintf("%v", v)
}

func formatFloat(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "float.inf"
	case math.IsInf(f, -1):
		return "-float.inf"
	case math.IsNaN(f):
		return "float.nan"
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

// Display turns v into content the way an embedded expression shows it.
func Display(v Value) *Content {
	switch v := v.(type) {
	case noneValue:
		return Sequence()
	case *Content:
		return v
	case Str:
		return TextContent(string(v))
	case Int, Float, Bool, Length, Alignment, Color:
		return TextContent(Repr(v))
	case Datetime:
		return TextContent(v.String())
	case *Styles:
		return Sequence()
	}
	return TextContent(Repr(v))
}

// stdValue turns a library entry into a runtime value.
func stdValue(v stdlib.Value, path string) Value {
	switch v.Kind {
	case stdlib.KindFunc:
		return &Func{Name: v.Name, Std: v.Func, native: natives[path]}
	case stdlib.KindModule:
		vv := v
		return &Module{Name: v.Name, Std: &vv}
	case stdlib.KindType:
		return StdType{Std: v}
	case stdlib.KindColor:
		return Color{Name: v.Name, Hex: v.Repr}
	case stdlib.KindAlignment:
		return Alignment(v.Name)
	case stdlib.KindFloat:
		f, _ := strconv.ParseFloat(v.Repr, 64)
		return Float(f)
	}
	return None
}

// Scope maps names to values. Lookups fall through to the parent.
type Scope struct {
	parent *Scope
	vars   map[string]binding
}

type binding struct {
	value Value
	span  Span
}

func NewScope(parent *Scope) *Scope {
	return &Scope{parent: parent, vars: make(map[string]binding)}
}

func (s *Scope) Define(name string, v Value, span Span) {
	s.vars[name] = binding{value: v, span: span}
}

func (s *Scope) Lookup(name string) (Value, bool) {
	b, ok := s.lookup(name)
	return b.value, ok
}

// Declared returns where name was bound.
func (s *Scope) Declared(name string) (Span, bool) {
	b, ok := s.lookup(name)
	return b.span, ok
}

func (s *Scope) lookup(name string) (binding, bool) {
	for ; s != nil; s = s.parent {
		if b, ok := s.vars[name]; ok {
			return b, true
		}
	}
	return binding{}, false
}

// Names lists the names bound directly in s, sorted.
func (s *Scope) Names() []string {
	names := make([]string, 0, len(s.vars))
	for n := range s.vars {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
