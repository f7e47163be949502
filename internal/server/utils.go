package server

import (
	protocol "github.com/tliron/glsp/protocol_3_16"

	diffpatch "github.com/sergi/go-diff/diffmatchpatch"

	"github.com/wolframe-project/wolframe-typstcore/internal/position"
)

func fromLSPPosition(p protocol.Position) (position.Position, error) {
	return position.FromLSP(p.Line, p.Character)
}

func fromLSPRange(r protocol.Range) (position.Range, error) {
	start, err := fromLSPPosition(r.Start)
	if err != nil {
		return position.Range{}, err
	}
	end, err := fromLSPPosition(r.End)
	if err != nil {
		return position.Range{}, err
	}
	return position.Range{Start: start, End: end}, nil
}

func toLSPPosition(p position.Position) protocol.Position {
	line, character := p.LSP()
	return protocol.Position{Line: line, Character: character}
}

// toLSPRange maps the zero value to the start of the document.
func toLSPRange(r position.Range) protocol.Range {
	return protocol.Range{Start: toLSPPosition(r.Start), End: toLSPPosition(r.End)}
}

// textEdit replaces old[Start:End] with Text.
type textEdit struct {
	Start, End int
	Text       string
}

// textEdits returns the edits turning old into next, in ascending order and
// non-overlapping. Offsets refer to old.
func textEdits(old, next string) []textEdit {
	dmp := diffpatch.New()
	diffs := dmp.DiffMain(old, next, false)

	var edits []textEdit
	offset := 0
	var cur *textEdit
	flush := func() {
		if cur != nil {
			edits = append(edits, *cur)
			cur = nil
		}
	}
	for _, d := range diffs {
		switch d.Type {
		case diffpatch.DiffEqual:
			flush()
			offset += len(d.Text)
		case diffpatch.DiffDelete:
			if cur == nil {
				cur = &textEdit{Start: offset, End: offset}
			}
			offset += len(d.Text)
			cur.End = offset
		case diffpatch.DiffInsert:
			if cur == nil {
				cur = &textEdit{Start: offset, End: offset}
			}
			cur.Text += d.Text
		}
	}
	flush()
	return edits
}
