package core

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"path"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/wolframe-project/wolframe-typstcore/internal/compiler"
	"github.com/wolframe-project/wolframe-typstcore/internal/diag"
	"github.com/wolframe-project/wolframe-typstcore/internal/fonts"
	"github.com/wolframe-project/wolframe-typstcore/internal/packages"
	"github.com/wolframe-project/wolframe-typstcore/internal/position"
	"github.com/wolframe-project/wolframe-typstcore/internal/source"
)

var mainID = source.ID("/main.typ")

func pos(line, column int) position.Position {
	return position.Position{Line: line, Column: column}
}

func offline() packages.Fetcher {
	return packages.FetchFunc(func(ctx context.Context, url string) ([]byte, error) {
		return nil, errors.New("offline")
	})
}

func newCore(t *testing.T, text string) *Core {
	t.Helper()
	c := New(Options{Fetcher: offline()})
	c.AddSource(mainID, text)
	if err := c.SetRoot(mainID); err != nil {
		t.Fatal(err)
	}
	return c
}

func archive(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, body := range files {
		hdr := &tar.Header{Name: name, Mode: 0o644, Typeflag: tar.TypeReg, Size: int64(len(body))}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write([]byte(body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestCompileWithoutRoot(t *testing.T) {
	c := New(Options{Fetcher: offline()})
	_, err := c.Compile(context.Background(), compiler.FormatPaged)
	var derr *diag.Error
	if !errors.As(err, &derr) {
		t.Fatalf("got %v, want a precondition error", err)
	}
	if c.LastDocument() != nil {
		t.Error("failed compile left a document")
	}
}

func TestSetRootRequiresFile(t *testing.T) {
	c := New(Options{Fetcher: offline()})
	if err := c.SetRoot(mainID); !errors.Is(err, diag.ErrNotFound) {
		t.Errorf("got %v, want not found", err)
	}
	if !c.Root().IsZero() {
		t.Errorf("root = %s, want unset", c.Root())
	}
}

func TestHelloWorld(t *testing.T) {
	c := newCore(t, "Hello World")

	out, err := c.Compile(context.Background(), compiler.FormatPaged)
	if err != nil {
		t.Fatal(err)
	}
	if len(out.SVG) != 1 || !strings.Contains(out.SVG[0], ">Hello World</text>") {
		t.Errorf("svg = %q", out.SVG)
	}
	if c.LastDocument() != out {
		t.Error("last document not updated")
	}

	out, err = c.Compile(context.Background(), compiler.FormatHTML)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.HTML, "<p>Hello World</p>") || len(out.SVG) != 0 {
		t.Errorf("html = %q", out.HTML)
	}
}

func TestCompileErrors(t *testing.T) {
	c := newCore(t, "#text(font: \"Nope\")[a]\n#undefined")
	_, err := c.Compile(context.Background(), compiler.FormatPaged)
	var cerr *diag.CompileError
	if !errors.As(err, &cerr) {
		t.Fatalf("got %v, want a compile error", err)
	}
	want := []diag.Diagnostic{
		{
			Severity: diag.SeverityError,
			Message:  "unknown variable: undefined",
			Location: diag.Location{Path: "/main.typ", Range: position.Range{Start: pos(2, 2), End: pos(2, 11)}},
		},
		{
			Severity: diag.SeverityWarning,
			Message:  "unknown font family: nope",
			Location: diag.Location{Path: "/main.typ", Range: position.Range{Start: pos(1, 7), End: pos(1, 19)}},
		},
	}
	if diff := cmp.Diff(want, cerr.Diagnostics); diff != "" {
		t.Errorf("diagnostics mismatch (-want +got):\n%s", diff)
	}
	if c.LastDocument() != nil {
		t.Error("failed compile left a document")
	}
}

func TestDiagnostics(t *testing.T) {
	c := newCore(t, "abc")
	ds, err := c.Diagnostics([]compiler.SourceDiagnostic{
		{Severity: diag.SeverityError, Message: "detached"},
		{Severity: diag.SeverityWarning, Message: "past the end", Span: compiler.Span{File: mainID, Start: 2, End: 40}},
	})
	if err != nil {
		t.Fatal(err)
	}
	want := []diag.Diagnostic{
		{Severity: diag.SeverityError, Message: "detached", Location: diag.Location{Range: zeroRange}},
		{Severity: diag.SeverityWarning, Message: "past the end", Location: diag.Location{Path: "/main.typ", Range: zeroRange}},
	}
	if diff := cmp.Diff(want, ds); diff != "" {
		t.Errorf("diagnostics mismatch (-want +got):\n%s", diff)
	}

	_, err = c.Diagnostics([]compiler.SourceDiagnostic{
		{Message: "elsewhere", Span: compiler.Span{File: source.ID("/gone.typ"), Start: 0, End: 1}},
	})
	var derr *diag.Error
	if !errors.As(err, &derr) {
		t.Errorf("got %v, want an error for the unknown file", err)
	}
}

func TestEditSource(t *testing.T) {
	for _, tt := range []struct {
		name string
		edit func(c *Core) (source.ByteRange, error)
	}{
		{"bytes", func(c *Core) (source.ByteRange, error) {
			return c.EditSourceBytes(mainID, 6, 11, "Typst")
		}},
		{"coordinates", func(c *Core) (source.ByteRange, error) {
			return c.EditSource(mainID, position.Range{Start: pos(1, 7), End: pos(1, 12)}, "Typst")
		}},
	} {
		t.Run(tt.name, func(t *testing.T) {
			c := newCore(t, "Hello World")
			got, err := tt.edit(c)
			if err != nil {
				t.Fatal(err)
			}
			if want := (source.ByteRange{Start: 6, End: 11}); got != want {
				t.Errorf("edited range = %s, want %s", got, want)
			}
			text, err := c.GetSource(mainID)
			if err != nil {
				t.Fatal(err)
			}
			if text != "Hello Typst" {
				t.Errorf("text = %q", text)
			}
		})
	}

	c := newCore(t, "Hello")
	if _, err := c.EditSourceBytes(mainID, 3, 9, "x"); !errors.Is(err, position.ErrOutOfRange) {
		t.Errorf("got %v, want out of range", err)
	}
	if _, err := c.EditSourceBytes(source.ID("/nope.typ"), 0, 0, "x"); !errors.Is(err, diag.ErrNotFound) {
		t.Errorf("got %v, want not found", err)
	}
}

func TestDefinition(t *testing.T) {
	t.Run("use on the same line", func(t *testing.T) {
		c := newCore(t, "#let x = 1 + 2; #x")
		got, err := c.Definition(mainID, pos(1, 18))
		if err != nil {
			t.Fatal(err)
		}
		if got == nil || got.IsStandardLibrary || got.IsCallable || got.DeclarationRange == nil {
			t.Fatalf("got %+v", got)
		}
		if want := (position.Range{Start: pos(1, 6), End: pos(1, 7)}); *got.DeclarationRange != want {
			t.Errorf("range = %s, want %s", got.DeclarationRange, want)
		}
	})

	t.Run("doc cutoff", func(t *testing.T) {
		c := newCore(t, strings.Join([]string{
			"// The circle constant.",
			"// Roughly.",
			"#let pi = 3.1415",
			"",
			"// Stray remark.",
			"",
			"",
			"#let tau = 2 * pi",
			"#pi #tau",
		}, "\n"))
		got, err := c.Definition(mainID, pos(9, 2))
		if err != nil {
			t.Fatal(err)
		}
		if got.Docs != "The circle constant.\nRoughly." {
			t.Errorf("pi docs = %q", got.Docs)
		}
		got, err = c.Definition(mainID, pos(9, 6))
		if err != nil {
			t.Fatal(err)
		}
		if got.Name != "tau" || got.Docs != "" {
			t.Errorf("tau = %+v", got)
		}
	})

	t.Run("library", func(t *testing.T) {
		c := newCore(t, "#block()[]")
		got, err := c.Definition(mainID, pos(1, 3))
		if err != nil {
			t.Fatal(err)
		}
		if !got.IsStandardLibrary || got.Name == "" || got.Kind == "" || got.DeclarationRange != nil {
			t.Errorf("got %+v", got)
		}
	})
}

func TestComplete(t *testing.T) {
	c := newCore(t, "#let value = 1\n#val")
	got, err := c.Complete(mainID, pos(2, 5))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Label != "value" {
		t.Errorf("completions = %+v", got)
	}
}

func TestPackageFetchedOnce(t *testing.T) {
	data := archive(t, map[string]string{
		"typst.toml": "[package]\nname = \"greet\"\nversion = \"0.1.0\"\nentrypoint = \"lib.typ\"\n",
		"lib.typ":    "#let hello(name) = [Hello #name]",
	})
	var fetches atomic.Int64
	c := New(Options{
		Registry: "https://registry.test",
		Fetcher: packages.FetchFunc(func(ctx context.Context, url string) ([]byte, error) {
			fetches.Add(1)
			if url != "https://registry.test/preview/greet-0.1.0.tar.gz" {
				t.Errorf("fetched %s", url)
			}
			return data, nil
		}),
	})
	c.AddSource(mainID, "#import \"@preview/greet:0.1.0\": hello\n#hello(\"you\")")
	if err := c.SetRoot(mainID); err != nil {
		t.Fatal(err)
	}

	for range 2 {
		out, err := c.Compile(context.Background(), compiler.FormatHTML)
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(out.HTML, "Hello you") {
			t.Errorf("html = %q", out.HTML)
		}
	}
	spec := source.PackageSpec{Namespace: "preview", Name: "greet", Version: "0.1.0"}
	if _, err := c.Resolve(context.Background(), spec); err != nil {
		t.Fatal(err)
	}
	if n := fetches.Load(); n != 1 {
		t.Errorf("fetched %d times, want 1", n)
	}
	if _, ok := c.Store().Get(source.PackageFile(spec, "/lib.typ")); !ok {
		t.Error("package file not in the store")
	}
}

func TestPackageFailureIsDiagnostic(t *testing.T) {
	c := New(Options{Fetcher: packages.FetchFunc(func(ctx context.Context, url string) ([]byte, error) {
		return nil, &diag.PackageError{Kind: diag.PackageNotFound}
	})})
	c.AddSource(mainID, "#import \"@preview/missing:1.0.0\": x")
	if err := c.SetRoot(mainID); err != nil {
		t.Fatal(err)
	}
	_, err := c.Compile(context.Background(), compiler.FormatPaged)
	var cerr *diag.CompileError
	if !errors.As(err, &cerr) {
		t.Fatalf("got %v, want a compile error", err)
	}
	got := cerr.Diagnostics[0]
	if !strings.Contains(got.Message, "package not found") {
		t.Errorf("message = %q", got.Message)
	}
	want := diag.Location{Path: "/main.typ", Range: position.Range{Start: pos(1, 9), End: pos(1, 33)}}
	if got.Location != want {
		t.Errorf("location = %+v, want %+v", got.Location, want)
	}
}

func TestFetcherMayEditSources(t *testing.T) {
	data := archive(t, map[string]string{
		"typst.toml": "[package]\nname = \"lib\"\nversion = \"0.1.0\"\nentrypoint = \"lib.typ\"\n",
		"lib.typ":    "#let v = 1",
	})
	var c *Core
	c = New(Options{Fetcher: packages.FetchFunc(func(ctx context.Context, url string) ([]byte, error) {
		c.AddSource(source.ID("/fetched.txt"), path.Base(url))
		if _, err := c.EditSourceBytes(mainID, 0, 0, ""); err != nil {
			return nil, err
		}
		return data, nil
	})})
	c.AddSource(mainID, "#import \"@preview/lib:0.1.0\": v\n#v")
	if err := c.SetRoot(mainID); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Compile(context.Background(), compiler.FormatHTML); err != nil {
		t.Fatal(err)
	}
	if text, _ := c.GetSource(source.ID("/fetched.txt")); text != "lib-0.1.0.tar.gz" {
		t.Errorf("fetched.txt = %q", text)
	}
}

func TestToday(t *testing.T) {
	instant := time.Date(2024, 3, 9, 23, 30, 0, 0, time.UTC)
	c := New(Options{Fetcher: offline(), Now: func() time.Time { return instant }})

	offset := func(n int) *int { return &n }
	for _, tt := range []struct {
		offset *int
		want   compiler.Date
	}{
		{offset(0), compiler.Date{Year: 2024, Month: 3, Day: 9}},
		{offset(2), compiler.Date{Year: 2024, Month: 3, Day: 10}},
		{offset(-24), compiler.Date{Year: 2024, Month: 3, Day: 8}},
	} {
		got, ok := c.Today(tt.offset)
		if !ok || got != tt.want {
			t.Errorf("Today(%d) = %s, want %s", *tt.offset, got, tt.want)
		}
	}

	local := instant.Local()
	want := compiler.Date{Year: local.Year(), Month: int(local.Month()), Day: local.Day()}
	if got, _ := c.Today(nil); got != want {
		t.Errorf("Today(nil) = %s, want %s", got, want)
	}
}

func TestRegisterFont(t *testing.T) {
	c := New(Options{Fetcher: offline()})
	if err := c.RegisterFont(goregular.TTF); err != nil {
		t.Fatal(err)
	}
	if err := c.RegisterFont([]byte("not a font")); err == nil {
		t.Error("garbage registered as a font")
	}
	embedded, err := fonts.Embedded()
	if err != nil {
		t.Fatal(err)
	}
	if got, want := c.Book().Len(), len(embedded)+1; got != want {
		t.Errorf("book has %d faces, want %d", got, want)
	}
	var derr *diag.Error
	if err := c.RegisterFont(goregular.TTF); !errors.As(err, &derr) {
		t.Errorf("got %v, want an error once the book is built", err)
	}
	if c.Library() != c.Library() || c.Book() != c.Book() {
		t.Error("library or book rebuilt")
	}
}

func TestConcurrentEditsAndCompiles(t *testing.T) {
	c := newCore(t, "start")
	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if i%2 == 0 {
				if _, err := c.EditSourceBytes(mainID, 0, 0, "x"); err != nil {
					t.Error(err)
				}
				return
			}
			if _, err := c.Compile(context.Background(), compiler.FormatHTML); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()
	text, _ := c.GetSource(mainID)
	if text != "xxxxstart" {
		t.Errorf("text = %q", text)
	}
}
