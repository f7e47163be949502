// Package compiler evaluates documents written in the supported markup and
// code subset and turns them into paged (SVG) or HTML output.
//
// Everything the compiler knows about its environment comes through the
// World interface: sources, raw files, fonts, the standard library and the
// current date. The compiler never touches the file system or the network
// itself.
package compiler

import (
	"fmt"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/wolframe-project/wolframe-typstcore/internal/diag"
	"github.com/wolframe-project/wolframe-typstcore/internal/fonts"
	"github.com/wolframe-project/wolframe-typstcore/internal/source"
	"github.com/wolframe-project/wolframe-typstcore/internal/stdlib"
)

var log = commonlog.GetLogger("typstcore.compiler")

// World is the environment a compilation runs in.
type World interface {
	// Library is the global scope. It must return the same instance on
	// every call.
	Library() *stdlib.Library
	// Book is the catalog of available fonts.
	Book() *fonts.Book
	// Main is the file compilation starts from.
	Main() source.FileID
	// Source returns the parsed buffer for id. Files of packages that are
	// not available yet are resolved on demand.
	Source(id source.FileID) (*source.Buffer, error)
	// File returns the raw bytes of id.
	File(id source.FileID) ([]byte, error)
	// Font returns the face at index in Book.
	Font(index int) (*fonts.Font, bool)
	// Today returns the current date. With a nil offset the local date is
	// used, otherwise the UTC date shifted by offset hours.
	Today(offset *int) (Date, bool)
}

type Date struct {
	Year  int
	Month int
	Day   int
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// Span is a byte range in one file. A span with a zero File is detached:
// it points at nothing in particular.
type Span struct {
	File  source.FileID
	Start int
	End   int
}

var Detached = Span{}

func (s Span) IsDetached() bool { return s.File.IsZero() }

func (s Span) String() string {
	if s.IsDetached() {
		return "<detached>"
	}
	return fmt.Sprintf("%s:%d..%d", s.File, s.Start, s.End)
}

type Format uint8

const (
	FormatPaged Format = iota
	FormatHTML
)

func (f Format) String() string {
	if f == FormatHTML {
		return "html"
	}
	return "paged"
}

// ParseFormat accepts "paged", "svg" and "html".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "paged", "svg":
		return FormatPaged, nil
	case "html":
		return FormatHTML, nil
	}
	return 0, fmt.Errorf("unknown output format %q", s)
}

// SourceDiagnostic is a problem found during compilation, located by span.
type SourceDiagnostic struct {
	Severity diag.Severity
	Span     Span
	Message  string
	Hints    []string
}

func (d SourceDiagnostic) String() string {
	return fmt.Sprintf("%s: %s: %s", d.Span, d.Severity, d.Message)
}

// Errors is returned by Compile when the document has errors.
type Errors []SourceDiagnostic

func (e Errors) Error() string {
	switch len(e) {
	case 0:
		return "compilation failed"
	case 1:
		return e[0].Message
	}
	return fmt.Sprintf("%s (and %d more errors)", e[0].Message, len(e)-1)
}

// SourceError is an evaluation failure at a span.
type SourceError struct {
	Span    Span
	Message string
	Hints   []string
}

func (e *SourceError) Error() string { return e.Message }

func errorAt(span Span, format string, args ...any) *SourceError {
	return &SourceError{Span: span, Message: fmt.Sprintf(format, args...)}
}

func (e *SourceError) withHint(hint string) *SourceError {
	e.Hints = append(e.Hints, hint)
	return e
}

// at attaches span to err unless it already carries one.
func at(span Span, err error) error {
	if err == nil {
		return nil
	}
	if se, ok := err.(*SourceError); ok {
		if se.Span.IsDetached() {
			se.Span = span
		}
		return se
	}
	return &SourceError{Span: span, Message: err.Error()}
}
