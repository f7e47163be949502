package compiler

import (
	"encoding/base64"
	"fmt"
	"html"
	"math"
	"strconv"
	"strings"
)

func num(f float64) string {
	return strconv.FormatFloat(math.Round(f*100)/100, 'f', -1, 64)
}

var imageTypes = map[string]string{
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
	"svg":  "image/svg+xml",
	"webp": "image/webp",
}

// SVG renders every page of doc as a standalone SVG image.
func SVG(doc *Document) []string {
	out := make([]string, len(doc.Pages))
	for i, p := range doc.Pages {
		out[i] = p.SVG()
	}
	return out
}

// SVG renders p as a standalone SVG image. One user unit is one point.
func (p *Page) SVG() string {
	var b strings.Builder
	w, h := num(p.Width), num(p.Height)
	fmt.Fprintf(&b, `<svg class="typst-doc" xmlns="http://www.w3.org/2000/svg" xmlns:xlink="http://www.w3.org/1999/xlink" viewBox="0 0 %s %s" width="%spt" height="%spt">`, w, h, w, h)
	b.WriteByte('\n')
	fill := p.Fill
	if fill == "" {
		fill = "#ffffff"
	}
	fmt.Fprintf(&b, `<rect width="%s" height="%s" fill="%s"/>`+"\n", w, h, fill)
	for _, it := range p.Items {
		switch it.Kind {
		case ItemRect:
			fill, stroke := it.Fill, it.Stroke
			if fill == "" {
				fill = "none"
			}
			if stroke == "" {
				stroke = "none"
			}
			fmt.Fprintf(&b, `<rect x="%s" y="%s" width="%s" height="%s" fill="%s" stroke="%s"/>`+"\n",
				num(it.X), num(it.Y), num(it.Width), num(it.Height), fill, stroke)
		case ItemImage:
			mime, ok := imageTypes[it.Text]
			if !ok || len(it.Data) == 0 {
				fmt.Fprintf(&b, `<rect x="%s" y="%s" width="%s" height="%s" fill="#eeeeee" stroke="#999999"/>`+"\n",
					num(it.X), num(it.Y), num(it.Width), num(it.Height))
				continue
			}
			fmt.Fprintf(&b, `<image x="%s" y="%s" width="%s" height="%s" preserveAspectRatio="xMidYMid meet" xlink:href="data:%s;base64,%s"/>`+"\n",
				num(it.X), num(it.Y), num(it.Width), num(it.Height), mime, base64.StdEncoding.EncodeToString(it.Data))
		case ItemText:
			if it.Link != "" {
				fmt.Fprintf(&b, `<a xlink:href="%s">`, html.EscapeString(it.Link))
			}
			fmt.Fprintf(&b, `<text x="%s" y="%s" font-family="%s" font-size="%s"`,
				num(it.X), num(it.Y), html.EscapeString(it.Family), num(it.Size))
			if it.Bold {
				b.WriteString(` font-weight="bold"`)
			}
			if it.Italic {
				b.WriteString(` font-style="italic"`)
			}
			if it.Fill != "" && it.Fill != "#000000" {
				fmt.Fprintf(&b, ` fill="%s"`, it.Fill)
			}
			b.WriteString(` xml:space="preserve">`)
			b.WriteString(html.EscapeString(it.Text))
			b.WriteString("</text>")
			if it.Link != "" {
				b.WriteString("</a>")
			}
			b.WriteByte('\n')
		}
	}
	b.WriteString("</svg>\n")
	return b.String()
}

// HTML renders the content of doc as a single HTML document. Styles other
// than structure are not carried over.
func HTML(doc *Document) string {
	w := &htmlWriter{}
	w.b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	if doc.Title != "" {
		fmt.Fprintf(&w.b, "<title>%s</title>\n", html.EscapeString(doc.Title))
	}
	w.b.WriteString("</head>\n<body>\n")
	if doc.Content != nil {
		w.block(doc.Content)
	}
	w.closePar()
	w.b.WriteString("</body>\n</html>\n")
	return w.b.String()
}

type htmlWriter struct {
	b     strings.Builder
	inPar bool
	// Inline writes inside list items and cells do not open paragraphs.
	bare int
}

func (w *htmlWriter) openPar() {
	if !w.inPar && w.bare == 0 {
		w.b.WriteString("<p>")
		w.inPar = true
	}
}

func (w *htmlWriter) closePar() {
	if w.inPar {
		w.b.WriteString("</p>\n")
		w.inPar = false
	}
}

func (w *htmlWriter) children(c *Content) {
	for _, ch := range c.Children {
		w.block(ch)
	}
}

func (w *htmlWriter) tag(name string, c *Content) {
	w.openPar()
	fmt.Fprintf(&w.b, "<%s>", name)
	w.children(c)
	fmt.Fprintf(&w.b, "</%s>", name)
}

func (w *htmlWriter) bareChildren(c *Content) {
	w.bare++
	w.children(c)
	w.bare--
}

func (w *htmlWriter) block(c *Content) {
	switch c.Elem {
	case ElemSequence, ElemStyled:
		w.children(c)
	case ElemText:
		w.openPar()
		w.b.WriteString(html.EscapeString(c.Text))
	case ElemSpace, ElemHSpace:
		if w.inPar || w.bare > 0 {
			w.b.WriteByte(' ')
		}
	case ElemLinebreak:
		w.openPar()
		w.b.WriteString("<br>")
	case ElemParbreak, ElemPagebreak, ElemVSpace:
		w.closePar()
	case ElemStrong:
		w.tag("strong", c)
	case ElemEmph:
		w.tag("em", c)
	case ElemRaw:
		w.openPar()
		fmt.Fprintf(&w.b, "<code>%s</code>", html.EscapeString(c.Text))
	case ElemBox:
		w.tag("span", c)
	case ElemLink:
		w.openPar()
		fmt.Fprintf(&w.b, `<a href="%s">`, html.EscapeString(c.Dest))
		if len(c.Children) == 0 {
			w.b.WriteString(html.EscapeString(c.Dest))
		}
		w.children(c)
		w.b.WriteString("</a>")
	case ElemHeading:
		w.closePar()
		level := min(max(c.Level, 1), 5) + 1
		fmt.Fprintf(&w.b, "<h%d>", level)
		w.bareChildren(c)
		fmt.Fprintf(&w.b, "</h%d>\n", level)
	case ElemList:
		w.closePar()
		w.b.WriteString("<ul>\n")
		for _, item := range c.Children {
			w.b.WriteString("<li>")
			w.bareChildren(item)
			w.b.WriteString("</li>\n")
		}
		w.b.WriteString("</ul>\n")
	case ElemListItem:
		w.bareChildren(c)
	case ElemBlock, ElemRect, ElemPar:
		w.closePar()
		if c.Fill != "" {
			fmt.Fprintf(&w.b, `<div style="background-color: %s">`, c.Fill)
		} else {
			w.b.WriteString("<div>")
		}
		w.children(c)
		w.closePar()
		w.b.WriteString("</div>\n")
	case ElemAlign:
		w.closePar()
		fmt.Fprintf(&w.b, `<div style="text-align: %s">`, cssAlign(c.Align))
		w.children(c)
		w.closePar()
		w.b.WriteString("</div>\n")
	case ElemImage:
		w.openPar()
		fmt.Fprintf(&w.b, `<img src="%s" alt="">`, html.EscapeString(strings.TrimPrefix(c.Dest, "/")))
	case ElemTable, ElemGrid:
		w.cells(c)
	}
}

func (w *htmlWriter) cells(c *Content) {
	w.closePar()
	cols := max(c.Columns, 1)
	if c.Elem == ElemGrid {
		fmt.Fprintf(&w.b, `<div style="display: grid; grid-template-columns: repeat(%d, 1fr)">`+"\n", cols)
		for _, cell := range c.Children {
			w.b.WriteString("<div>")
			w.bareChildren(cell)
			w.b.WriteString("</div>\n")
		}
		w.b.WriteString("</div>\n")
		return
	}
	w.b.WriteString("<table>\n")
	for i := 0; i < len(c.Children); i += cols {
		w.b.WriteString("<tr>")
		for j := i; j < i+cols && j < len(c.Children); j++ {
			w.b.WriteString("<td>")
			w.bareChildren(c.Children[j])
			w.b.WriteString("</td>")
		}
		w.b.WriteString("</tr>\n")
	}
	w.b.WriteString("</table>\n")
}

func cssAlign(a Alignment) string {
	switch a {
	case "center", "horizon":
		return "center"
	case "right", "end":
		return "right"
	}
	return "left"
}
