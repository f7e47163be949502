// Package fonts loads font files and groups them into a catalog that the
// compiler can select from by family name.
package fonts

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mattn/go-runewidth"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
)

// Font is one face. Faces from a collection share Data and differ by Index.
type Font struct {
	Family string
	Style  string
	Glyphs int
	Data   []byte
	Index  int

	face *sfnt.Font
}

func (f *Font) String() string {
	return f.Family + " " + f.Style
}

// Measure returns the advance width of s set at size points. Runes the face
// has no glyph for are estimated from their display cell width.
func (f *Font) Measure(s string, size float64) float64 {
	if f.face == nil {
		return Estimate(s, size)
	}
	var (
		buf   sfnt.Buffer
		total fixed.Int26_6
	)
	ppem := fixed.Int26_6(size * 64)
	for _, r := range s {
		gi, err := f.face.GlyphIndex(&buf, r)
		if err == nil && gi != 0 {
			adv, err := f.face.GlyphAdvance(&buf, gi, ppem, font.HintingNone)
			if err == nil {
				total += adv
				continue
			}
		}
		total += fixed.Int26_6(Estimate(string(r), size) * 64)
	}
	return float64(total) / 64
}

// Estimate approximates the width of s at size points without a face: half
// an em per terminal cell.
func Estimate(s string, size float64) float64 {
	return float64(runewidth.StringWidth(s)) * size / 2
}

// Parse reads every face in a TTF, OTF, TTC or OTC file.
func Parse(data []byte) ([]*Font, error) {
	coll, err := sfnt.ParseCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	var out []*Font
	var buf sfnt.Buffer
	for i := 0; i < coll.NumFonts(); i++ {
		f, err := coll.Font(i)
		if err != nil {
			return nil, fmt.Errorf("parse font %d: %w", i, err)
		}
		family, err := f.Name(&buf, sfnt.NameIDFamily)
		if err != nil {
			return nil, fmt.Errorf("font %d has no family name: %w", i, err)
		}
		style, err := f.Name(&buf, sfnt.NameIDSubfamily)
		if err != nil {
			style = "Regular"
		}
		out = append(out, &Font{Family: family, Style: style, Glyphs: f.NumGlyphs(), Data: data, Index: i, face: f})
	}
	return out, nil
}

// Embedded returns the Go font family, which is always available.
func Embedded() ([]*Font, error) {
	var out []*Font
	for _, data := range [][]byte{goregular.TTF, gobold.TTF, goitalic.TTF, gobolditalic.TTF, gomono.TTF} {
		fs, err := Parse(data)
		if err != nil {
			return nil, err
		}
		out = append(out, fs...)
	}
	return out, nil
}

// Book indexes fonts by lowercased family name.
type Book struct {
	fonts    []*Font
	families map[string][]int
}

func NewBook(fonts []*Font) *Book {
	b := &Book{fonts: fonts, families: make(map[string][]int)}
	for i, f := range fonts {
		key := strings.ToLower(f.Family)
		b.families[key] = append(b.families[key], i)
	}
	return b
}

func (b *Book) Len() int { return len(b.fonts) }

// Font returns the face at index.
func (b *Book) Font(index int) (*Font, bool) {
	if index < 0 || index >= len(b.fonts) {
		return nil, false
	}
	return b.fonts[index], true
}

// Select returns the index of the best face of family: its regular style if
// there is one, otherwise the first registered face.
func (b *Book) Select(family string) (int, bool) {
	idx, ok := b.families[strings.ToLower(family)]
	if !ok {
		return 0, false
	}
	for _, i := range idx {
		if strings.EqualFold(b.fonts[i].Style, "Regular") {
			return i, true
		}
	}
	return idx[0], true
}

// Families returns the family names in sorted order.
func (b *Book) Families() []string {
	seen := make(map[string]bool)
	var out []string
	for _, f := range b.fonts {
		if !seen[f.Family] {
			seen[f.Family] = true
			out = append(out, f.Family)
		}
	}
	sort.Strings(out)
	return out
}
