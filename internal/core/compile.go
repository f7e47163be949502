package core

import (
	"context"
	"errors"

	"github.com/wolframe-project/wolframe-typstcore/internal/compiler"
	"github.com/wolframe-project/wolframe-typstcore/internal/diag"
	"github.com/wolframe-project/wolframe-typstcore/internal/position"
)

// Output is a rendered document.
type Output struct {
	Format   compiler.Format
	Document *compiler.Document
	// SVG holds one image per page. Empty for HTML output.
	SVG      []string
	HTML     string
	Warnings []diag.Diagnostic
}

var zeroRange = position.Range{
	Start: position.Position{Line: 1, Column: 1},
	End:   position.Position{Line: 1, Column: 1},
}

// Compile compiles the root file. Without a root this is an error, and a
// document with errors fails with a *diag.CompileError that carries every
// diagnostic, warnings included.
func (c *Core) Compile(ctx context.Context, format compiler.Format) (*Output, error) {
	root := c.Root()
	if root.IsZero() {
		return nil, diag.Errorf("no root file set")
	}
	doc, warnings, err := compiler.Compile(session{Core: c, ctx: ctx}, format)
	var errs compiler.Errors
	if err != nil && !errors.As(err, &errs) {
		return nil, err
	}
	if err != nil {
		all := append(append([]compiler.SourceDiagnostic{}, errs...), warnings...)
		ds, rerr := c.Diagnostics(all)
		if rerr != nil {
			return nil, rerr
		}
		log.Infof("%s: %d errors, %d warnings", root, len(errs), len(warnings))
		return nil, &diag.CompileError{Diagnostics: ds}
	}

	ws, err := c.Diagnostics(warnings)
	if err != nil {
		return nil, err
	}
	out := &Output{Format: format, Document: doc, Warnings: ws}
	if format == compiler.FormatHTML {
		out.HTML = compiler.HTML(doc)
	} else {
		out.SVG = compiler.SVG(doc)
	}
	c.mu.Lock()
	c.last = out
	c.mu.Unlock()
	return out, nil
}

// Diagnostics resolves compiler diagnostics to editor ranges. A detached
// span has no path and the zero range. A span in a file the store does not
// know is an error.
func (c *Core) Diagnostics(ds []compiler.SourceDiagnostic) ([]diag.Diagnostic, error) {
	out := make([]diag.Diagnostic, 0, len(ds))
	for _, d := range ds {
		res := diag.Diagnostic{Severity: d.Severity, Message: d.Message, Hints: d.Hints}
		if d.Span.IsDetached() {
			res.Location.Range = zeroRange
			out = append(out, res)
			continue
		}
		buf, ok := c.store.Get(d.Span.File)
		if !ok {
			return nil, diag.Errorf("diagnostic %q in unknown file %s", d.Message, d.Span.File)
		}
		res.Location = diag.Location{
			Path:  d.Span.File.String(),
			Range: buf.Index().RangeOrZero(d.Span.Start, d.Span.End),
		}
		out = append(out, res)
	}
	return out, nil
}
