package compiler

import (
	"errors"
	"sort"

	"github.com/wolframe-project/wolframe-typstcore/internal/diag"
)

// Compile evaluates the main file of world and lays the result out for
// format. Warnings are returned even when compilation fails; a failure is
// always of type Errors.
func Compile(world World, format Format) (*Document, []SourceDiagnostic, error) {
	main := world.Main()
	if main.IsZero() {
		return nil, nil, Errors{{Severity: diag.SeverityError, Message: "no main file"}}
	}
	en := newEngine(world)
	m, err := en.evalFile(main, Detached)
	if err != nil && !errors.Is(err, errReported) {
		en.report(err)
	}
	warnings := sortDiagnostics(en.warnings)
	if len(en.errors) > 0 {
		return nil, warnings, Errors(sortDiagnostics(en.errors))
	}
	log.Infof("compiled %s (%s)", main, format)
	if format == FormatHTML {
		return &Document{Title: title(m.Content), Content: m.Content}, warnings, nil
	}
	return Layout(world, m.Content), warnings, nil
}

// sortDiagnostics orders diagnostics by file and position, keeping the
// report order of diagnostics at the same place.
func sortDiagnostics(ds []SourceDiagnostic) []SourceDiagnostic {
	sort.SliceStable(ds, func(i, j int) bool {
		a, b := ds[i].Span, ds[j].Span
		if a.File != b.File {
			return a.File.String() < b.File.String()
		}
		return a.Start < b.Start
	})
	return ds
}
