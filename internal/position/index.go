// Package position converts between editor coordinates and byte offsets.
//
// Editors address text by line and column where columns count UTF-16 code
// units, while the compiler addresses the same text by UTF-8 byte offsets.
// An Index is built once per text state and answers both directions.
package position

import (
	"errors"
	"fmt"
	"sort"
	"unicode/utf8"
)

// ErrOutOfRange is returned for any lookup outside the indexed text, or one
// that does not land on a character boundary.
var ErrOutOfRange = errors.New("position: out of range")

// Position is an editor coordinate. Both fields are 1-based and Column
// counts UTF-16 code units.
type Position struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Before reports whether p sorts strictly before q.
func (p Position) Before(q Position) bool {
	return p.Line < q.Line || (p.Line == q.Line && p.Column < q.Column)
}

// Range is an editor range, {beginLine, beginColumn, endLine, endColumn}.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

func (r Range) String() string {
	return r.Start.String() + "-" + r.End.String()
}

// Index holds the line-start table of a text, both in bytes and in UTF-16
// code units.
type Index struct {
	text  string
	lines []int
	utf16 []int
	units int
}

// NewIndex scans text once. "\n", "\r\n" and a lone "\r" each end a line.
func NewIndex(text string) *Index {
	ix := &Index{
		text:  text,
		lines: []int{0},
		utf16: []int{0},
	}
	units := 0
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		units += utf16Len(r)
		i += size
		switch r {
		case '\n':
		case '\r':
			if i < len(text) && text[i] == '\n' {
				continue
			}
		default:
			continue
		}
		ix.lines = append(ix.lines, i)
		ix.utf16 = append(ix.utf16, units)
	}
	ix.units = units
	return ix
}

func utf16Len(r rune) int {
	if r >= 0x10000 && r <= utf8.MaxRune {
		return 2
	}
	return 1
}

// Text returns the indexed text.
func (ix *Index) Text() string { return ix.text }

// Len returns the length of the text in bytes.
func (ix *Index) Len() int { return len(ix.text) }

// UTF16Len returns the length of the text in UTF-16 code units.
func (ix *Index) UTF16Len() int { return ix.units }

// LineCount returns the number of lines. Empty text has one line.
func (ix *Index) LineCount() int { return len(ix.lines) }

// LineStart returns the byte offset at which the 0-based line starts.
func (ix *Index) LineStart(line int) (int, error) {
	if line < 0 || line >= len(ix.lines) {
		return 0, fmt.Errorf("%w: line %d of %d", ErrOutOfRange, line, len(ix.lines))
	}
	return ix.lines[line], nil
}

func (ix *Index) boundary(offset int) bool {
	if offset < 0 || offset > len(ix.text) {
		return false
	}
	return offset == len(ix.text) || utf8.RuneStart(ix.text[offset])
}

// ByteToLine returns the 0-based line containing offset.
func (ix *Index) ByteToLine(offset int) (int, error) {
	if offset < 0 || offset > len(ix.text) {
		return 0, fmt.Errorf("%w: byte offset %d of %d", ErrOutOfRange, offset, len(ix.text))
	}
	return sort.Search(len(ix.lines), func(i int) bool { return ix.lines[i] > offset }) - 1, nil
}

// ByteToUTF16 converts a byte offset to an offset in UTF-16 code units.
func (ix *Index) ByteToUTF16(offset int) (int, error) {
	line, err := ix.ByteToLine(offset)
	if err != nil {
		return 0, err
	}
	if !ix.boundary(offset) {
		return 0, fmt.Errorf("%w: byte offset %d splits a character", ErrOutOfRange, offset)
	}
	units := ix.utf16[line]
	for i := ix.lines[line]; i < offset; {
		r, size := utf8.DecodeRuneInString(ix.text[i:])
		units += utf16Len(r)
		i += size
	}
	return units, nil
}

// UTF16ToByte converts an offset in UTF-16 code units to a byte offset.
func (ix *Index) UTF16ToByte(units int) (int, error) {
	if units < 0 || units > ix.units {
		return 0, fmt.Errorf("%w: utf-16 offset %d of %d", ErrOutOfRange, units, ix.units)
	}
	line := sort.Search(len(ix.utf16), func(i int) bool { return ix.utf16[i] > units }) - 1
	offset, cur := ix.lines[line], ix.utf16[line]
	for cur < units {
		r, size := utf8.DecodeRuneInString(ix.text[offset:])
		n := utf16Len(r)
		if cur+n > units {
			return 0, fmt.Errorf("%w: utf-16 offset %d splits a surrogate pair", ErrOutOfRange, units)
		}
		cur += n
		offset += size
	}
	return offset, nil
}

// ToByteOffset converts a 0-based line and UTF-16 column to a byte offset.
// The column is added to the UTF-16 offset of the line start, so a column
// past the end of its line continues into the following line.
func (ix *Index) ToByteOffset(line, column int) (int, error) {
	if column < 0 {
		return 0, fmt.Errorf("%w: column %d", ErrOutOfRange, column)
	}
	start, err := ix.LineStart(line)
	if err != nil {
		return 0, err
	}
	units, err := ix.ByteToUTF16(start)
	if err != nil {
		return 0, err
	}
	return ix.UTF16ToByte(units + column)
}

// ToCoordinate converts a byte offset to a 0-based line and UTF-16 column.
func (ix *Index) ToCoordinate(offset int) (line, column int, err error) {
	line, err = ix.ByteToLine(offset)
	if err != nil {
		return 0, 0, err
	}
	units, err := ix.ByteToUTF16(offset)
	if err != nil {
		return 0, 0, err
	}
	return line, units - ix.utf16[line], nil
}

// saturate maps a 1-based coordinate to 0-based, clamping at zero.
func saturate(n int) int {
	if n <= 1 {
		return 0
	}
	return n - 1
}

// Offset converts an editor position to a byte offset.
func (ix *Index) Offset(p Position) (int, error) {
	return ix.ToByteOffset(saturate(p.Line), saturate(p.Column))
}

// Position converts a byte offset to an editor position.
func (ix *Index) Position(offset int) (Position, error) {
	line, column, err := ix.ToCoordinate(offset)
	if err != nil {
		return Position{}, err
	}
	return Position{Line: line + 1, Column: column + 1}, nil
}

// Offsets converts an editor range to a byte range. The start must not come
// after the end.
func (ix *Index) Offsets(r Range) (start, end int, err error) {
	if r.End.Before(r.Start) {
		return 0, 0, fmt.Errorf("%w: range %s is inverted", ErrOutOfRange, r)
	}
	if start, err = ix.Offset(r.Start); err != nil {
		return 0, 0, err
	}
	if end, err = ix.Offset(r.End); err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

// Range converts a byte range to an editor range.
func (ix *Index) Range(start, end int) (Range, error) {
	if end < start {
		return Range{}, fmt.Errorf("%w: byte range %d..%d is inverted", ErrOutOfRange, start, end)
	}
	s, err := ix.Position(start)
	if err != nil {
		return Range{}, err
	}
	e, err := ix.Position(end)
	if err != nil {
		return Range{}, err
	}
	return Range{Start: s, End: e}, nil
}

// RangeOrZero is Range, except that a miss degrades to the zero-width range
// at 1:1. Only diagnostics rendering uses it.
func (ix *Index) RangeOrZero(start, end int) Range {
	r, err := ix.Range(start, end)
	if err != nil {
		return Range{Start: Position{Line: 1, Column: 1}, End: Position{Line: 1, Column: 1}}
	}
	return r
}
