package diag

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/wolframe-project/wolframe-typstcore/internal/position"
)

func TestFileErrorMatching(t *testing.T) {
	tests := []struct {
		err  error
		want error
	}{
		{NewFileError(NotFound, "/a.typ"), ErrNotFound},
		{NewFileError(AccessDenied, "/a.typ"), ErrAccessDenied},
		{NewFileError(IsDirectory, "/dir"), ErrIsDirectory},
		{NewFileError(NotSource, "/x.png"), ErrNotSource},
		{NewFileError(InvalidUTF8, "/x.typ"), ErrInvalidUTF8},
	}
	for _, tt := range tests {
		t.Run(tt.want.Error(), func(t *testing.T) {
			wrapped := fmt.Errorf("loading: %w", tt.err)
			if !errors.Is(wrapped, tt.want) {
				t.Errorf("%v does not match %v", wrapped, tt.want)
			}
			if errors.Is(wrapped, ErrPackageOther) {
				t.Errorf("%v unexpectedly matches ErrPackageOther", wrapped)
			}
		})
	}
}

func TestPackageCause(t *testing.T) {
	perr := &PackageError{Kind: NetworkFailed, Spec: "@preview/foo:0.1.0", Err: errors.New("connection refused")}
	ferr := &FileError{Kind: PackageFailed, Path: "/lib.typ", Package: perr}

	if !errors.Is(ferr, ErrNetworkFailed) {
		t.Errorf("file error should unwrap to the package cause")
	}
	var got *PackageError
	if !errors.As(ferr, &got) || got.Spec != "@preview/foo:0.1.0" {
		t.Errorf("errors.As = %v", got)
	}
	if !strings.Contains(ferr.Error(), "connection refused") {
		t.Errorf("message %q lost the cause", ferr.Error())
	}
}

func TestErrorfLocation(t *testing.T) {
	err := Errorf("unexpected %s", "shape")
	if err.Message != "unexpected shape" {
		t.Errorf("message = %q", err.Message)
	}
	if !strings.HasPrefix(err.Location, "errors_test.go:") {
		t.Errorf("location = %q", err.Location)
	}
}

func TestDiagnosticJSON(t *testing.T) {
	d := Diagnostic{
		Severity: SeverityWarning,
		Message:  "unknown font family",
		Location: Location{
			Path:  "/main.typ",
			Range: position.Range{Start: position.Position{Line: 1, Column: 2}, End: position.Position{Line: 1, Column: 5}},
		},
	}
	data, err := json.Marshal(d)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"severity":"warning","message":"unknown font family","location":{"path":"/main.typ","range":{"start":{"line":1,"column":2},"end":{"line":1,"column":5}}}}`
	if string(data) != want {
		t.Errorf("got  %s\nwant %s", data, want)
	}

	var back Diagnostic
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if back.Severity != SeverityWarning {
		t.Errorf("severity = %v", back.Severity)
	}
}

func TestCompileErrorMessage(t *testing.T) {
	err := &CompileError{Diagnostics: []Diagnostic{
		{Severity: SeverityWarning, Message: "w"},
		{Severity: SeverityError, Message: "unknown variable: y", Location: Location{Path: "/main.typ", Range: position.Range{Start: position.Position{Line: 2, Column: 3}}}},
		{Severity: SeverityError, Message: "other"},
	}}
	want := "/main.typ:2:3: error: unknown variable: y (and 1 more errors)"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}
