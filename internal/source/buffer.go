package source

import (
	"fmt"
	"strings"
	"sync"

	"github.com/wolframe-project/wolframe-typstcore/internal/position"
	"github.com/wolframe-project/wolframe-typstcore/internal/syntax"
)

// Buffer is one text state of a source file. It never changes: an edit
// produces a new Buffer, so the lazily built views below are dropped
// together with the text they were built from.
type Buffer struct {
	id    FileID
	text  string
	bytes func() []byte
	index func() *position.Index
	tree  func() *syntax.Tree
}

// NewBuffer creates a buffer. Invalid UTF-8 is replaced with U+FFFD.
func NewBuffer(id FileID, text string) *Buffer {
	text = strings.ToValidUTF8(text, "�")
	b := &Buffer{id: id, text: text}
	b.bytes = sync.OnceValue(func() []byte { return []byte(b.text) })
	b.index = sync.OnceValue(func() *position.Index { return position.NewIndex(b.text) })
	b.tree = sync.OnceValue(func() *syntax.Tree { return syntax.Parse(b.text) })
	return b
}

func (b *Buffer) ID() FileID   { return b.id }
func (b *Buffer) Text() string { return b.text }
func (b *Buffer) Len() int     { return len(b.text) }

// Bytes is the raw byte view handed to the compiler. Callers must not
// modify it.
func (b *Buffer) Bytes() []byte { return b.bytes() }

// Index is the line index of the current text.
func (b *Buffer) Index() *position.Index { return b.index() }

// Tree is the syntax tree of the current text.
func (b *Buffer) Tree() *syntax.Tree { return b.tree() }

// Replace returns a new buffer with text[start:end] replaced.
func (b *Buffer) Replace(start, end int, with string) (*Buffer, error) {
	if err := (ByteRange{Start: start, End: end}).check(b.Index()); err != nil {
		return nil, err
	}
	return NewBuffer(b.id, b.text[:start]+with+b.text[end:]), nil
}

// Region is an edit range, resolved against the text it applies to.
type Region interface {
	Resolve(ix *position.Index) (start, end int, err error)
}

// ByteRange is a half-open byte range.
type ByteRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

func (r ByteRange) Len() int { return r.End - r.Start }

func (r ByteRange) String() string {
	return fmt.Sprintf("%d..%d", r.Start, r.End)
}

func (r ByteRange) check(ix *position.Index) error {
	if r.Start > r.End {
		return fmt.Errorf("%w: byte range %s is inverted", position.ErrOutOfRange, r)
	}
	if _, err := ix.ByteToUTF16(r.Start); err != nil {
		return err
	}
	if _, err := ix.ByteToUTF16(r.End); err != nil {
		return err
	}
	return nil
}

func (r ByteRange) Resolve(ix *position.Index) (int, int, error) {
	if err := r.check(ix); err != nil {
		return 0, 0, err
	}
	return r.Start, r.End, nil
}

// CoordRange is an editor range: 1-based lines, UTF-16 columns.
type CoordRange position.Range

func (r CoordRange) Resolve(ix *position.Index) (int, int, error) {
	return ix.Offsets(position.Range(r))
}
