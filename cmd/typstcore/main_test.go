package main

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/fatih/color"
	"github.com/google/go-cmp/cmp"

	"github.com/wolframe-project/wolframe-typstcore/internal/compiler"
	"github.com/wolframe-project/wolframe-typstcore/internal/core"
	"github.com/wolframe-project/wolframe-typstcore/internal/diag"
	"github.com/wolframe-project/wolframe-typstcore/internal/position"
	"github.com/wolframe-project/wolframe-typstcore/internal/source"
)

func TestParseLocation(t *testing.T) {
	id, pos, err := parseLocation("chapters/intro.typ:3:14")
	if err != nil {
		t.Fatal(err)
	}
	if id != source.ID("chapters/intro.typ") || pos != (position.Position{Line: 3, Column: 14}) {
		t.Errorf("got %v %v", id, pos)
	}
	for _, bad := range []string{"main.typ", "main.typ:x:1", "main.typ:1:"} {
		if _, _, err := parseLocation(bad); err == nil {
			t.Errorf("parseLocation(%q) succeeded", bad)
		}
	}
}

func TestFileIDOf(t *testing.T) {
	spec := source.PackageSpec{Namespace: "preview", Name: "greet", Version: "0.1.0"}
	tests := []struct {
		path string
		want source.FileID
		ok   bool
	}{
		{"/main.typ", source.ID("main.typ"), true},
		{"@preview/greet:0.1.0/src/lib.typ", source.PackageFile(spec, "src/lib.typ"), true},
		{"", source.FileID{}, false},
		{"@preview/greet", source.FileID{}, false},
	}
	for _, tt := range tests {
		got, ok := fileIDOf(tt.path)
		if got != tt.want || ok != tt.ok {
			t.Errorf("fileIDOf(%q) = %v, %v; want %v, %v", tt.path, got, ok, tt.want, tt.ok)
		}
	}
}

func TestPrintDiagnostics(t *testing.T) {
	color.NoColor = true
	store := source.NewStore()
	store.Add(source.ID("main.typ"), "#let x = 1\n#undefined")

	ds := []diag.Diagnostic{
		{
			Severity: diag.SeverityError,
			Message:  "unknown variable: undefined",
			Location: diag.Location{Path: "/main.typ", Range: position.Range{
				Start: position.Position{Line: 2, Column: 2},
				End:   position.Position{Line: 2, Column: 11},
			}},
			Hints: []string{"define it first"},
		},
		{Severity: diag.SeverityWarning, Message: "detached"},
	}
	var buf bytes.Buffer
	printDiagnostics(&buf, store, ds, 0)

	want := "/main.typ:2:2: error: unknown variable: undefined\n" +
		"   2 | #undefined\n" +
		"     |  ^^^^^^^^^\n" +
		"  = hint: define it first\n" +
		"warning: detached\n"
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteOutput(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "main.typ")

	files, err := writeOutput(&core.Output{Format: compiler.FormatPaged, SVG: []string{"<svg>1</svg>", "<svg>2</svg>"}}, base)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{filepath.Join(dir, "main-1.svg"), filepath.Join(dir, "main-2.svg")}
	if diff := cmp.Diff(want, files); diff != "" {
		t.Errorf("files mismatch (-want +got):\n%s", diff)
	}
	data, err := os.ReadFile(want[1])
	if err != nil || string(data) != "<svg>2</svg>" {
		t.Errorf("page 2 = %q, %v", data, err)
	}

	files, err = writeOutput(&core.Output{Format: compiler.FormatHTML, HTML: "<p>x</p>"}, base)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{filepath.Join(dir, "main.html")}, files); diff != "" {
		t.Errorf("files mismatch (-want +got):\n%s", diff)
	}
}

func greetArchive(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	body := "#let greet(name) = [Hi #name]"
	if err := tw.WriteHeader(&tar.Header{Name: "lib.typ", Mode: 0o644, Size: int64(len(body)), Typeflag: tar.TypeReg}); err != nil {
		t.Fatal(err)
	}
	if _, err := tw.Write([]byte(body)); err != nil {
		t.Fatal(err)
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestFetch(t *testing.T) {
	archive := greetArchive(t)
	var downloads atomic.Int64
	registry := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/preview/greet-0.1.0.tar.gz" {
			http.NotFound(w, r)
			return
		}
		downloads.Add(1)
		w.Write(archive)
	}))
	defer registry.Close()

	dir := t.TempDir()
	config := fmt.Sprintf("registry = %q\ncache_dir = %q\n", registry.URL, filepath.Join(dir, "cache"))
	if err := os.WriteFile(filepath.Join(dir, "typstcore.toml"), []byte(config), 0o644); err != nil {
		t.Fatal(err)
	}

	run := func(refresh bool) string {
		t.Helper()
		var out bytes.Buffer
		fetchCmd.SetOut(&out)
		fetchCmd.SetContext(context.Background())
		for name, value := range map[string]string{"root": dir, "refresh": fmt.Sprint(refresh)} {
			if err := fetchCmd.Flags().Set(name, value); err != nil {
				t.Fatal(err)
			}
		}
		if err := runFetch(fetchCmd, []string{"@preview/greet:0.1.0", "@preview/greet:0.1.0"}); err != nil {
			t.Fatal(err)
		}
		return out.String()
	}

	tests := []struct {
		name      string
		refresh   bool
		want      string
		downloads int64
	}{
		{
			name:      "first fetch downloads",
			want:      "@preview/greet:0.1.0: 1 files, entrypoint /lib.typ\n1 downloaded, 0 from cache\n",
			downloads: 1,
		},
		{
			name:      "second fetch uses the cache",
			want:      "@preview/greet:0.1.0: 1 files, entrypoint /lib.typ\n0 downloaded, 1 from cache\n",
			downloads: 1,
		},
		{
			name:      "refresh downloads again",
			refresh:   true,
			want:      "@preview/greet:0.1.0: 1 files, entrypoint /lib.typ\n1 downloaded, 0 from cache\n",
			downloads: 2,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, run(tt.refresh)); diff != "" {
				t.Errorf("output mismatch (-want +got):\n%s", diff)
			}
			if got := downloads.Load(); got != tt.downloads {
				t.Errorf("registry served %d archives, want %d", got, tt.downloads)
			}
		})
	}
}
