package diag

import (
	"fmt"
	"strings"

	"github.com/wolframe-project/wolframe-typstcore/internal/position"
)

type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

func (s Severity) String() string {
	if s == SeverityWarning {
		return "warning"
	}
	return "error"
}

func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Severity) UnmarshalText(b []byte) error {
	switch string(b) {
	case "error":
		*s = SeverityError
	case "warning":
		*s = SeverityWarning
	default:
		return fmt.Errorf("unknown severity %q", b)
	}
	return nil
}

// Location is a resolved source range. A detached span has an empty path.
type Location struct {
	Path  string         `json:"path"`
	Range position.Range `json:"range"`
}

type Diagnostic struct {
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Location Location `json:"location"`
	Hints    []string `json:"hints,omitempty"`
}

func (d Diagnostic) String() string {
	var b strings.Builder
	if d.Location.Path != "" {
		fmt.Fprintf(&b, "%s:%d:%d: ", d.Location.Path, d.Location.Range.Start.Line, d.Location.Range.Start.Column)
	}
	fmt.Fprintf(&b, "%s: %s", d.Severity, d.Message)
	return b.String()
}

// CompileError is returned when compilation produced at least one error.
type CompileError struct {
	Diagnostics []Diagnostic
}

func (e *CompileError) Error() string {
	var errs int
	var first string
	for _, d := range e.Diagnostics {
		if d.Severity != SeverityError {
			continue
		}
		if errs == 0 {
			first = d.String()
		}
		errs++
	}
	switch errs {
	case 0:
		return "compilation failed"
	case 1:
		return first
	}
	return fmt.Sprintf("%s (and %d more errors)", first, errs-1)
}
