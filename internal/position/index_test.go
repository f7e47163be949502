package position

import (
	"errors"
	"testing"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"
)

var roundTripTexts = []string{
	"",
	"Hello World",
	"a\nb\nc",
	"line one\r\nline two\r\n",
	"old mac\rline",
	"grüße\nαβγ\n",
	"emoji 😀 here\n𝄞 clef\n",
	"#let x = 1 + 2;\n\n#x",
	"\n\n\n",
	"mixed 😀\r\nü\r𝄞\n",
}

func TestRoundTrip(t *testing.T) {
	for _, text := range roundTripTexts {
		ix := NewIndex(text)
		for o := 0; o <= len(text); o++ {
			if o < len(text) && !utf8.RuneStart(text[o]) {
				continue
			}
			line, col, err := ix.ToCoordinate(o)
			if err != nil {
				t.Fatalf("%q: ToCoordinate(%d): %v", text, o, err)
			}
			back, err := ix.ToByteOffset(line, col)
			if err != nil {
				t.Fatalf("%q: ToByteOffset(%d, %d): %v", text, line, col, err)
			}
			if back != o {
				t.Errorf("%q: round trip %d -> (%d,%d) -> %d", text, o, line, col, back)
			}

			p, err := ix.Position(o)
			if err != nil {
				t.Fatalf("%q: Position(%d): %v", text, o, err)
			}
			back, err = ix.Offset(p)
			if err != nil {
				t.Fatalf("%q: Offset(%v): %v", text, p, err)
			}
			if back != o {
				t.Errorf("%q: editor round trip %d -> %v -> %d", text, o, p, back)
			}
		}
	}
}

func TestLineStarts(t *testing.T) {
	tests := []struct {
		text string
		want []int
	}{
		{"", []int{0}},
		{"abc", []int{0}},
		{"a\nb", []int{0, 2}},
		{"a\r\nb", []int{0, 3}},
		{"a\rb", []int{0, 2}},
		{"a\n\nb\n", []int{0, 2, 3, 5}},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			ix := NewIndex(tt.text)
			var got []int
			for i := 0; i < ix.LineCount(); i++ {
				s, err := ix.LineStart(i)
				if err != nil {
					t.Fatal(err)
				}
				got = append(got, s)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("line starts mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestUTF16Columns(t *testing.T) {
	// "a😀b": 😀 is four bytes and two UTF-16 units.
	ix := NewIndex("a😀b\nü")

	tests := []struct {
		offset int
		want   Position
	}{
		{0, Position{1, 1}},
		{1, Position{1, 2}},
		{5, Position{1, 4}},
		{6, Position{1, 5}},
		{7, Position{2, 1}},
		{9, Position{2, 2}},
	}
	for _, tt := range tests {
		got, err := ix.Position(tt.offset)
		if err != nil {
			t.Fatalf("Position(%d): %v", tt.offset, err)
		}
		if got != tt.want {
			t.Errorf("Position(%d) = %v, want %v", tt.offset, got, tt.want)
		}
	}

	if ix.UTF16Len() != 6 {
		t.Errorf("UTF16Len = %d, want 6", ix.UTF16Len())
	}
}

func TestColumnPastLineEndContinues(t *testing.T) {
	ix := NewIndex("ab\ncd")
	off, err := ix.ToByteOffset(0, 4)
	if err != nil {
		t.Fatal(err)
	}
	if off != 4 {
		t.Errorf("got %d, want 4", off)
	}
}

func TestSaturation(t *testing.T) {
	ix := NewIndex("xyz")
	for _, p := range []Position{{0, 0}, {1, 0}, {0, 1}, {-3, -7}} {
		off, err := ix.Offset(p)
		if err != nil {
			t.Fatalf("Offset(%v): %v", p, err)
		}
		if off != 0 {
			t.Errorf("Offset(%v) = %d, want 0", p, off)
		}
	}
}

func TestOutOfRange(t *testing.T) {
	ix := NewIndex("a😀\nb")

	cases := map[string]func() error{
		"negative offset": func() error { _, err := ix.Position(-1); return err },
		"past end":        func() error { _, err := ix.Position(ix.Len() + 1); return err },
		"mid rune":        func() error { _, err := ix.Position(2); return err },
		"line past end":   func() error { _, err := ix.Offset(Position{Line: 3, Column: 1}); return err },
		"column past end": func() error { _, err := ix.Offset(Position{Line: 2, Column: 3}); return err },
		"mid surrogate":   func() error { _, err := ix.UTF16ToByte(2); return err },
		"inverted range": func() error {
			_, _, err := ix.Offsets(Range{Start: Position{2, 1}, End: Position{1, 1}})
			return err
		},
		"inverted bytes": func() error { _, err := ix.Range(3, 1); return err },
	}
	for name, fn := range cases {
		t.Run(name, func(t *testing.T) {
			if err := fn(); !errors.Is(err, ErrOutOfRange) {
				t.Errorf("got %v, want ErrOutOfRange", err)
			}
		})
	}
}

func TestRangeOrZero(t *testing.T) {
	ix := NewIndex("abc")
	zero := Range{Start: Position{1, 1}, End: Position{1, 1}}
	if got := ix.RangeOrZero(5, 9); got != zero {
		t.Errorf("miss = %v, want %v", got, zero)
	}
	want := Range{Start: Position{1, 2}, End: Position{1, 4}}
	if got := ix.RangeOrZero(1, 3); got != want {
		t.Errorf("hit = %v, want %v", got, want)
	}
}

func TestLSPConversion(t *testing.T) {
	p, err := FromLSP(0, 4)
	if err != nil {
		t.Fatal(err)
	}
	if p != (Position{Line: 1, Column: 5}) {
		t.Errorf("FromLSP = %v", p)
	}
	line, char := p.LSP()
	if line != 0 || char != 4 {
		t.Errorf("LSP() = %d, %d", line, char)
	}
}
