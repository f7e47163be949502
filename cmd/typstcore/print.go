package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"
	"golang.org/x/term"

	"github.com/wolframe-project/wolframe-typstcore/internal/diag"
	"github.com/wolframe-project/wolframe-typstcore/internal/source"
)

var (
	errorColor   = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow, color.Bold)
	pathColor    = color.New(color.Bold)
	hintColor    = color.New(color.FgCyan)
	gutterColor  = color.New(color.FgBlue)
)

// terminalWidth is the width of stderr, or 0 when it is not a terminal.
func terminalWidth() int {
	w, _, err := term.GetSize(int(os.Stderr.Fd()))
	if err != nil {
		return 0
	}
	return w
}

// fileIDOf parses the path of a diagnostic location back into a file id.
func fileIDOf(path string) (source.FileID, bool) {
	if strings.HasPrefix(path, "/") {
		return source.ID(path), true
	}
	colon := strings.Index(path, ":")
	if colon < 0 {
		return source.FileID{}, false
	}
	slash := strings.Index(path[colon:], "/")
	if slash < 0 {
		return source.FileID{}, false
	}
	spec, err := source.ParsePackageSpec(path[:colon+slash])
	if err != nil {
		return source.FileID{}, false
	}
	return source.PackageFile(spec, path[colon+slash:]), true
}

// printDiagnostics writes one block per diagnostic: the header, the source
// line with the span underlined, and the hints.
func printDiagnostics(w io.Writer, store *source.Store, ds []diag.Diagnostic, width int) {
	for _, d := range ds {
		sev := errorColor
		if d.Severity == diag.SeverityWarning {
			sev = warningColor
		}
		loc := d.Location
		if loc.Path != "" {
			pathColor.Fprintf(w, "%s:%d:%d: ", loc.Path, loc.Range.Start.Line, loc.Range.Start.Column)
		}
		sev.Fprint(w, d.Severity.String())
		fmt.Fprintf(w, ": %s\n", d.Message)

		if id, ok := fileIDOf(loc.Path); ok {
			if buf, ok := store.Get(id); ok {
				printSnippet(w, buf, d, width)
			}
		}
		for _, h := range d.Hints {
			hintColor.Fprint(w, "  = hint: ")
			fmt.Fprintln(w, h)
		}
	}
}

// printSnippet prints the first line of the span with a caret underline. The
// underline is measured in display cells so that wide characters line up.
func printSnippet(w io.Writer, buf *source.Buffer, d diag.Diagnostic, width int) {
	ix := buf.Index()
	r := d.Location.Range
	lineNo := r.Start.Line - 1
	start, err := ix.LineStart(lineNo)
	if err != nil {
		return
	}
	end := ix.Len()
	if next, err := ix.LineStart(lineNo + 1); err == nil {
		end = next
	}
	line := strings.TrimRight(ix.Text()[start:end], "\r\n")

	from, err := ix.Offset(r.Start)
	if err != nil {
		return
	}
	to, err := ix.Offset(r.End)
	if err != nil || r.End.Line != r.Start.Line {
		to = start + len(line)
	}
	from = min(max(from-start, 0), len(line))
	to = min(max(to-start, from), len(line))

	gutter := fmt.Sprintf("%4d | ", r.Start.Line)
	if width > 0 {
		line = runewidth.Truncate(line, max(width-len(gutter), 8), "…")
	}
	gutterColor.Fprint(w, gutter)
	fmt.Fprintln(w, line)

	pad := runewidth.StringWidth(line[:min(from, len(line))])
	marks := max(runewidth.StringWidth(line[min(from, len(line)):min(to, len(line))]), 1)
	gutterColor.Fprint(w, strings.Repeat(" ", len(gutter)-2)+"| ")
	sev := errorColor
	if d.Severity == diag.SeverityWarning {
		sev = warningColor
	}
	sev.Fprintln(w, strings.Repeat(" ", pad)+strings.Repeat("^", marks))
}
