// Package stdlib describes the values of the standard library: their names,
// documentation, parameters and accepted types. It holds no behavior; the
// compiler binds native implementations to these descriptors by name.
package stdlib

import "strings"

type CastKind uint8

const (
	CastAny CastKind = iota
	CastType
	CastValue
	CastUnion
)

// CastInfo describes which values a parameter accepts or a function
// returns.
type CastInfo struct {
	Kind CastKind
	// Name is the type short name for CastType and the rendered value for
	// CastValue.
	Name  string
	Docs  string
	Union []CastInfo
}

func Any() CastInfo { return CastInfo{Kind: CastAny} }

func Type(name string) CastInfo { return CastInfo{Kind: CastType, Name: name} }

// Val is a single accepted value, such as the string "start".
func Val(repr, docs string) CastInfo {
	return CastInfo{Kind: CastValue, Name: repr, Docs: docs}
}

// Union joins alternatives. Nested unions are flattened and a union of one
// is that one alternative.
func Union(alts ...CastInfo) CastInfo {
	var flat []CastInfo
	for _, a := range alts {
		if a.Kind == CastUnion {
			flat = append(flat, a.Union...)
			continue
		}
		flat = append(flat, a)
	}
	if len(flat) == 1 {
		return flat[0]
	}
	return CastInfo{Kind: CastUnion, Union: flat}
}

// String renders "any", a type name, a value, or "(A | B | C)".
func (c CastInfo) String() string {
	switch c.Kind {
	case CastAny:
		return "any"
	case CastType, CastValue:
		if c.Name == "" {
			return "undef"
		}
		return c.Name
	}
	parts := make([]string, len(c.Union))
	for i, alt := range c.Union {
		parts[i] = alt.String()
	}
	return "(" + strings.Join(parts, " | ") + ")"
}

// Accepts reports whether a value of the named type fits.
func (c CastInfo) Accepts(typ string) bool {
	switch c.Kind {
	case CastAny:
		return true
	case CastType:
		return c.Name == typ
	case CastUnion:
		for _, alt := range c.Union {
			if alt.Accepts(typ) {
				return true
			}
		}
	}
	return false
}

type ParamInfo struct {
	Name     string
	Docs     string
	Input    CastInfo
	Default  string
	Named    bool
	Required bool
	Variadic bool
	Settable bool
}

// String renders the parameter as "[...]name[?]: type[ = default]".
func (p ParamInfo) String() string {
	var b strings.Builder
	if p.Variadic {
		b.WriteString("...")
	}
	b.WriteString(p.Name)
	if !p.Required {
		b.WriteByte('?')
	}
	b.WriteString(": ")
	b.WriteString(p.Input.String())
	if p.Default != "" {
		b.WriteString(" = ")
		b.WriteString(p.Default)
	}
	return b.String()
}

type Func struct {
	Name    string
	Docs    string
	Params  []ParamInfo
	Returns *CastInfo
}

// Signature renders "name(p1, p2) -> ret".
func (f *Func) Signature() string {
	var b strings.Builder
	b.WriteString(f.Name)
	b.WriteByte('(')
	for i, p := range f.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.String())
	}
	b.WriteByte(')')
	if f.Returns != nil {
		b.WriteString(" -> ")
		b.WriteString(f.Returns.String())
	}
	return b.String()
}

func (f *Func) Param(name string) (ParamInfo, bool) {
	for _, p := range f.Params {
		if p.Name == name {
			return p, true
		}
	}
	return ParamInfo{}, false
}
