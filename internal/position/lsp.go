package position

import (
	"fmt"

	"fortio.org/safecast"
)

// FromLSP converts a 0-based language-server position to an editor position.
func FromLSP(line, character uint32) (Position, error) {
	l, err := safecast.Conv[int](line)
	if err != nil {
		return Position{}, fmt.Errorf("%w: line %d", ErrOutOfRange, line)
	}
	c, err := safecast.Conv[int](character)
	if err != nil {
		return Position{}, fmt.Errorf("%w: character %d", ErrOutOfRange, character)
	}
	return Position{Line: l + 1, Column: c + 1}, nil
}

// LSP converts an editor position to a 0-based language-server position.
func (p Position) LSP() (line, character uint32) {
	l, err := safecast.Conv[uint32](saturate(p.Line))
	if err != nil {
		l = 0
	}
	c, err := safecast.Conv[uint32](saturate(p.Column))
	if err != nil {
		c = 0
	}
	return l, c
}
