package stdlib

import "sort"

type ValueKind uint8

const (
	KindFunc ValueKind = iota
	KindModule
	KindType
	KindColor
	KindAlignment
	KindFloat
)

var typeNames = map[ValueKind]string{
	KindFunc:      "function",
	KindModule:    "module",
	KindType:      "type",
	KindColor:     "color",
	KindAlignment: "alignment",
	KindFloat:     "float",
}

// Value is one named entry of the library.
type Value struct {
	Kind ValueKind
	Name string
	Doc  string
	Func *Func
	// Members of a module, or associated functions of a type.
	Members map[string]Value
	// Repr is the literal form of a constant: "#000000", "3.14159...".
	Repr string
}

// TypeName is the short name of the value's type.
func (v Value) TypeName() string { return typeNames[v.Kind] }

// Title is the rendered name: the signature for functions, the plain name
// otherwise.
func (v Value) Title() string {
	if v.Kind == KindFunc && v.Func != nil {
		return v.Func.Signature()
	}
	return v.Name
}

// KindLabel is the informal kind shown next to the name.
func (v Value) KindLabel() string { return v.TypeName() }

func (v Value) Docs() string {
	if v.Doc == "" && v.Func != nil {
		return v.Func.Docs
	}
	return v.Doc
}

// Member looks up a module member or associated function.
func (v Value) Member(name string) (Value, bool) {
	m, ok := v.Members[name]
	return m, ok
}

// MemberNames returns the member names in sorted order.
func (v Value) MemberNames() []string {
	names := make([]string, 0, len(v.Members))
	for n := range v.Members {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Library is the global scope every file starts from.
type Library struct {
	global map[string]Value
	names  []string
}

func newLibrary(values []Value) *Library {
	l := &Library{global: make(map[string]Value, len(values))}
	for _, v := range values {
		l.global[v.Name] = v
		l.names = append(l.names, v.Name)
	}
	sort.Strings(l.names)
	return l
}

func (l *Library) Lookup(name string) (Value, bool) {
	v, ok := l.global[name]
	return v, ok
}

// Path resolves a dotted path such as calc.pi.
func (l *Library) Path(names ...string) (Value, bool) {
	if len(names) == 0 {
		return Value{}, false
	}
	v, ok := l.Lookup(names[0])
	for _, n := range names[1:] {
		if !ok {
			break
		}
		v, ok = v.Member(n)
	}
	return v, ok
}

// Names returns all global names in sorted order.
func (l *Library) Names() []string {
	return l.names
}
