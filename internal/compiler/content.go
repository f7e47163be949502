package compiler

import "strings"

// Elem is the element kind of a content node.
type Elem uint8

const (
	ElemSequence Elem = iota
	ElemText
	ElemSpace
	ElemLinebreak
	ElemParbreak
	ElemStrong
	ElemEmph
	ElemRaw
	ElemHeading
	ElemList
	ElemListItem
	ElemLink
	ElemBlock
	ElemBox
	ElemRect
	ElemAlign
	ElemPagebreak
	ElemImage
	ElemTable
	ElemGrid
	ElemVSpace
	ElemHSpace
	ElemStyled
	ElemPar
)

var elemNames = [...]string{
	ElemSequence:  "sequence",
	ElemText:      "text",
	ElemSpace:     "space",
	ElemLinebreak: "linebreak",
	ElemParbreak:  "parbreak",
	ElemStrong:    "strong",
	ElemEmph:      "emph",
	ElemRaw:       "raw",
	ElemHeading:   "heading",
	ElemList:      "list",
	ElemListItem:  "list.item",
	ElemLink:      "link",
	ElemBlock:     "block",
	ElemBox:       "box",
	ElemRect:      "rect",
	ElemAlign:     "align",
	ElemPagebreak: "pagebreak",
	ElemImage:     "image",
	ElemTable:     "table",
	ElemGrid:      "grid",
	ElemVSpace:    "v",
	ElemHSpace:    "h",
	ElemStyled:    "styled",
	ElemPar:       "par",
}

func (e Elem) String() string { return elemNames[e] }

// Content is a node of the document tree produced by evaluation.
type Content struct {
	Elem     Elem
	Text     string
	Children []*Content
	// Level of a heading.
	Level int
	// Dest of a link, path of an image.
	Dest string
	// Data of an image.
	Data []byte
	// Columns of a table or grid.
	Columns int
	// Amount of spacing, in points.
	Amount float64
	Align  Alignment
	Fill   string
	// Weak page breaks and spacing collapse.
	Weak   bool
	Width  float64
	Height float64
	Style  *Style
	Span   Span
}

func (*Content) Type() string { return "content" }

func Sequence(children ...*Content) *Content {
	return &Content{Elem: ElemSequence, Children: children}
}

func TextContent(s string) *Content {
	return &Content{Elem: ElemText, Text: s}
}

func wrap(e Elem, body *Content) *Content {
	c := &Content{Elem: e}
	if body != nil {
		c.Children = []*Content{body}
	}
	return c
}

// Join concatenates two pieces of content, flattening sequences.
func (c *Content) Join(other *Content) *Content {
	out := Sequence()
	for _, part := range []*Content{c, other} {
		if part.Elem == ElemSequence {
			out.Children = append(out.Children, part.Children...)
		} else {
			out.Children = append(out.Children, part)
		}
	}
	return out
}

// IsEmpty reports whether c produces no visible output.
func (c *Content) IsEmpty() bool {
	switch c.Elem {
	case ElemSequence, ElemStyled, ElemStrong, ElemEmph:
		for _, ch := range c.Children {
			if !ch.IsEmpty() {
				return false
			}
		}
		return true
	case ElemText:
		return c.Text == ""
	case ElemSpace, ElemParbreak:
		return true
	}
	return false
}

// PlainText is the text of c without any markup.
func (c *Content) PlainText() string {
	var b strings.Builder
	c.plain(&b)
	return b.String()
}

func (c *Content) plain(b *strings.Builder) {
	switch c.Elem {
	case ElemText, ElemRaw:
		b.WriteString(c.Text)
	case ElemSpace:
		b.WriteByte(' ')
	case ElemLinebreak, ElemParbreak:
		b.WriteByte('\n')
	}
	for _, ch := range c.Children {
		ch.plain(b)
	}
}

// mapText returns a copy of c with f applied to every text leaf.
func (c *Content) mapText(f func(string) string) *Content {
	cp := *c
	if c.Elem == ElemText {
		cp.Text = f(c.Text)
	}
	if len(c.Children) > 0 {
		cp.Children = make([]*Content, len(c.Children))
		for i, ch := range c.Children {
			cp.Children[i] = ch.mapText(f)
		}
	}
	return &cp
}

// Style is a set of text and page properties. Unset fields inherit.
type Style struct {
	Font     int
	Family   string
	Size     float64
	Fill     string
	Bold     *bool
	Italic   *bool
	Page     *PageStyle
	Justify  *bool
	HasFont  bool
	Numbered bool
}

type PageStyle struct {
	Width  float64
	Height float64
	Margin float64
	Fill   string
}

func styled(s *Style, body *Content) *Content {
	return &Content{Elem: ElemStyled, Style: s, Children: []*Content{body}}
}
