package compiler

import (
	"strconv"
	"strings"

	"github.com/wolframe-project/wolframe-typstcore/internal/fonts"
)

// A4 with Typst's default margin of 2.5/21 of the shorter side.
var defaultPage = PageStyle{Width: 595.28, Height: 841.89, Margin: 70.87, Fill: ""}

const (
	leading     = 0.65
	headingGap  = 1.0
	listIndent  = 14
	cellPadding = 4
)

// Document is the result of a successful compilation.
type Document struct {
	Title   string
	Content *Content
	Pages   []*Page
}

// Page is a laid-out page. Coordinates are in points from the top left.
type Page struct {
	Width  float64
	Height float64
	Fill   string
	Items  []Item
}

type ItemKind uint8

const (
	ItemText ItemKind = iota
	ItemRect
	ItemImage
)

// Item is a positioned piece of a page. Text items are placed at their
// baseline.
type Item struct {
	Kind   ItemKind
	X, Y   float64
	Width  float64
	Height float64
	Text   string
	Family string
	Size   float64
	Bold   bool
	Italic bool
	Mono   bool
	Fill   string
	Stroke string
	Link   string
	Data   []byte
}

// textStyle is the resolved style in effect while laying out a subtree.
type textStyle struct {
	font     int
	family   string
	size     float64
	fill     string
	bold     bool
	italic   bool
	mono     bool
	link     string
	align    Alignment
	numbered bool
}

func (s textStyle) apply(st *Style) textStyle {
	if st.HasFont {
		s.font, s.family = st.Font, st.Family
	}
	if st.Size > 0 {
		s.size = st.Size
	}
	if st.Fill != "" {
		s.fill = st.Fill
	}
	if st.Bold != nil {
		s.bold = *st.Bold
	}
	if st.Italic != nil {
		s.italic = *st.Italic
	}
	if st.Numbered {
		s.numbered = true
	}
	return s
}

type layouter struct {
	world    World
	doc      *Document
	page     *Page
	ps       PageStyle
	y        float64
	x        float64
	line     []Item
	lineSize float64
	align    Alignment
	space    bool
	indent   float64
	counters [6]int
}

// Layout breaks content into pages.
func Layout(world World, root *Content) *Document {
	l := &layouter{world: world, doc: &Document{Content: root}, ps: defaultPage}
	l.newPage()
	l.layout(root, l.baseStyle())
	l.flush()
	l.doc.Title = title(root)
	return l.doc
}

func (l *layouter) baseStyle() textStyle {
	st := textStyle{font: -1, family: "sans-serif", size: defaultSize, fill: "#000000"}
	book := l.world.Book()
	if book == nil {
		return st
	}
	if i, ok := book.Select("Go"); ok {
		st.font, st.family = i, "Go"
	} else if f, ok := book.Font(0); ok {
		st.font, st.family = 0, f.Family
	}
	return st
}

func (l *layouter) left() float64  { return l.ps.Margin + l.indent }
func (l *layouter) right() float64 { return l.ps.Width - l.ps.Margin }
func (l *layouter) bottom() float64 {
	return l.ps.Height - l.ps.Margin
}

func (l *layouter) newPage() {
	l.page = &Page{Width: l.ps.Width, Height: l.ps.Height, Fill: l.ps.Fill}
	l.doc.Pages = append(l.doc.Pages, l.page)
	l.y = l.ps.Margin
}

// ensure starts a new page unless h more points fit on the current one. An
// empty page is never abandoned.
func (l *layouter) ensure(h float64) {
	if l.y+h > l.bottom() && len(l.page.Items) > 0 {
		l.newPage()
	}
}

func (l *layouter) measure(s string, st textStyle) float64 {
	if st.mono {
		return float64(len([]rune(s))) * st.size * 0.6
	}
	if st.font >= 0 {
		if f, ok := l.world.Font(st.font); ok {
			return f.Measure(s, st.size)
		}
	}
	return fonts.Estimate(s, st.size)
}

func sameRun(it *Item, st textStyle) bool {
	return it.Kind == ItemText && it.Family == st.family && it.Size == st.size &&
		it.Bold == st.bold && it.Italic == st.italic && it.Mono == st.mono &&
		it.Fill == st.fill && it.Link == st.link
}

// word places an unbreakable run on the current line, wrapping first if
// it does not fit.
func (l *layouter) word(text string, st textStyle) {
	w := l.measure(text, st)
	gap := 0.0
	if l.space && len(l.line) > 0 {
		gap = l.measure(" ", st)
	}
	if len(l.line) > 0 && l.x+gap+w > l.right() {
		l.flush()
		gap = 0
	}
	if len(l.line) == 0 {
		l.x = l.left()
		l.align = st.align
		l.lineSize = 0
	}
	l.x += gap
	if n := len(l.line); n > 0 && sameRun(&l.line[n-1], st) {
		it := &l.line[n-1]
		if gap > 0 {
			it.Text += " "
		}
		it.Text += text
		it.Width = l.x + w - it.X
	} else {
		l.line = append(l.line, Item{
			Kind:   ItemText,
			X:      l.x,
			Width:  w,
			Text:   text,
			Family: st.family,
			Size:   st.size,
			Bold:   st.bold,
			Italic: st.italic,
			Mono:   st.mono,
			Fill:   st.fill,
			Link:   st.link,
		})
	}
	l.x += w
	l.space = false
	if st.size > l.lineSize {
		l.lineSize = st.size
	}
}

func (l *layouter) text(s string, st textStyle) {
	for i, part := range strings.Split(s, " ") {
		if i > 0 {
			l.space = true
		}
		if part != "" {
			l.word(part, st)
		}
	}
}

// flush moves the current line onto the page.
func (l *layouter) flush() {
	l.space = false
	if len(l.line) == 0 {
		return
	}
	height := l.lineSize * (1 + leading)
	l.ensure(l.lineSize)
	shift := 0.0
	width := l.x - l.left()
	switch l.align {
	case "center", "horizon":
		shift = (l.right() - l.left() - width) / 2
	case "right", "end":
		shift = l.right() - l.left() - width
	}
	baseline := l.y + l.lineSize
	for _, it := range l.line {
		it.X += shift
		it.Y = baseline
		l.page.Items = append(l.page.Items, it)
	}
	l.y += height
	l.line = l.line[:0]
}

func (l *layouter) layoutChildren(c *Content, st textStyle) {
	for _, ch := range c.Children {
		l.layout(ch, st)
	}
}

func (l *layouter) layout(c *Content, st textStyle) {
	switch c.Elem {
	case ElemSequence, ElemBox:
		l.layoutChildren(c, st)
	case ElemText:
		l.text(c.Text, st)
	case ElemSpace:
		if len(l.line) > 0 {
			l.space = true
		}
	case ElemLinebreak:
		l.flush()
	case ElemParbreak:
		l.flush()
		l.y += st.size * leading
	case ElemStrong:
		st.bold = true
		l.layoutChildren(c, st)
	case ElemEmph:
		st.italic = true
		l.layoutChildren(c, st)
	case ElemRaw:
		st.mono = true
		st.family = "monospace"
		l.text(c.Text, st)
	case ElemLink:
		st.link = c.Dest
		if len(c.Children) == 0 {
			l.text(c.Dest, st)
			return
		}
		l.layoutChildren(c, st)
	case ElemHeading:
		l.heading(c, st)
	case ElemList:
		l.flush()
		for _, item := range c.Children {
			l.word("•", st)
			l.space = true
			l.indent += listIndent
			l.layoutChildren(item, st)
			l.flush()
			l.indent -= listIndent
		}
		l.y += st.size * leading
	case ElemListItem:
		l.layoutChildren(c, st)
	case ElemBlock, ElemRect:
		l.block(c, st)
	case ElemAlign:
		l.flush()
		st.align = c.Align
		l.layoutChildren(c, st)
		l.flush()
	case ElemPagebreak:
		l.flush()
		if c.Weak && len(l.page.Items) == 0 {
			return
		}
		l.newPage()
	case ElemImage:
		l.image(c)
	case ElemTable, ElemGrid:
		l.cells(c, st)
	case ElemVSpace:
		l.flush()
		if c.Weak && l.y == l.ps.Margin {
			return
		}
		l.y += c.Amount
	case ElemHSpace:
		if len(l.line) > 0 {
			l.x += c.Amount
			l.space = false
		}
	case ElemPar:
		l.flush()
		l.layoutChildren(c, st)
		l.flush()
		l.y += st.size * leading
	case ElemStyled:
		l.styled(c, st)
	}
}

func (l *layouter) heading(c *Content, st textStyle) {
	l.flush()
	level := c.Level
	if level < 1 {
		level = 1
	}
	if level > len(l.counters) {
		level = len(l.counters)
	}
	l.counters[level-1]++
	for i := level; i < len(l.counters); i++ {
		l.counters[i] = 0
	}
	if l.y > l.ps.Margin {
		l.y += st.size * headingGap
	}
	hs := st
	hs.bold = true
	switch level {
	case 1:
		hs.size = st.size * 1.4
	case 2:
		hs.size = st.size * 1.2
	}
	if st.numbered {
		l.word(l.number(level), hs)
		l.space = true
	}
	l.layoutChildren(c, hs)
	l.flush()
	l.y += st.size * leading
}

// number renders the heading counter for level as "1.2".
func (l *layouter) number(level int) string {
	parts := make([]string, level)
	for i := range parts {
		parts[i] = strconv.Itoa(l.counters[i])
	}
	return strings.Join(parts, ".")
}

func (l *layouter) block(c *Content, st textStyle) {
	l.flush()
	if c.Elem == ElemRect && len(c.Children) == 0 {
		w, h := c.Width, c.Height
		if w == 0 {
			w = 45
		}
		if h == 0 {
			h = 30
		}
		l.ensure(h)
		l.page.Items = append(l.page.Items, Item{Kind: ItemRect, X: l.left(), Y: l.y, Width: w, Height: h, Fill: c.Fill, Stroke: "#000000"})
		l.y += h
		return
	}
	page, start, top := l.page, len(l.page.Items), l.y
	l.layoutChildren(c, st)
	l.flush()
	if c.Height > 0 && l.y-top < c.Height {
		l.y = top + c.Height
	}
	if l.page != page || (c.Elem != ElemRect && c.Fill == "") {
		return
	}
	w := c.Width
	if w == 0 {
		w = l.right() - l.left()
	}
	bg := Item{Kind: ItemRect, X: l.left(), Y: top, Width: w, Height: l.y - top, Fill: c.Fill}
	if c.Elem == ElemRect {
		bg.Stroke = "#000000"
	}
	// The background goes below the items laid out inside it.
	items := append([]Item{}, page.Items[:start]...)
	items = append(items, bg)
	page.Items = append(items, page.Items[start:]...)
}

func (l *layouter) image(c *Content) {
	l.flush()
	w, h := c.Width, c.Height
	if w == 0 {
		w = min(l.right()-l.left(), 200)
	}
	if h == 0 {
		h = w * 0.75
	}
	l.ensure(h)
	l.page.Items = append(l.page.Items, Item{Kind: ItemImage, X: l.left(), Y: l.y, Width: w, Height: h, Text: c.Text, Link: c.Dest, Data: c.Data})
	l.y += h
}

func (l *layouter) cells(c *Content, st textStyle) {
	l.flush()
	cols := max(c.Columns, 1)
	colW := (l.right() - l.left()) / float64(cols)
	rowH := st.size*(1+leading) + 2*cellPadding
	for i := 0; i < len(c.Children); i += cols {
		l.ensure(rowH)
		for j := 0; j < cols && i+j < len(c.Children); j++ {
			x := l.left() + float64(j)*colW
			if c.Elem == ElemTable {
				l.page.Items = append(l.page.Items, Item{Kind: ItemRect, X: x, Y: l.y, Width: colW, Height: rowH, Stroke: "#000000"})
			}
			text := strings.TrimSpace(c.Children[i+j].PlainText())
			if text == "" {
				continue
			}
			l.page.Items = append(l.page.Items, Item{
				Kind:   ItemText,
				X:      x + cellPadding,
				Y:      l.y + cellPadding + st.size,
				Width:  l.measure(text, st),
				Text:   text,
				Family: st.family,
				Size:   st.size,
				Bold:   st.bold,
				Italic: st.italic,
				Fill:   st.fill,
			})
		}
		l.y += rowH
	}
	l.y += st.size * leading
}

func (l *layouter) styled(c *Content, st textStyle) {
	if c.Style == nil {
		l.layoutChildren(c, st)
		return
	}
	st = st.apply(c.Style)
	if c.Style.Page == nil {
		l.layoutChildren(c, st)
		return
	}
	l.flush()
	saved := l.ps
	p := c.Style.Page
	if p.Width > 0 {
		l.ps.Width = p.Width
	}
	if p.Height > 0 {
		l.ps.Height = p.Height
	}
	if p.Margin > 0 {
		l.ps.Margin = p.Margin
	}
	if p.Fill != "" {
		l.ps.Fill = p.Fill
	}
	if len(l.page.Items) > 0 {
		l.newPage()
	} else {
		l.page.Width, l.page.Height, l.page.Fill = l.ps.Width, l.ps.Height, l.ps.Fill
		l.y = l.ps.Margin
	}
	l.layoutChildren(c, st)
	l.flush()
	l.ps = saved
}

// title is the plain text of the first heading.
func title(c *Content) string {
	if c.Elem == ElemHeading {
		return strings.TrimSpace(c.PlainText())
	}
	for _, ch := range c.Children {
		if t := title(ch); t != "" {
			return t
		}
	}
	return ""
}
