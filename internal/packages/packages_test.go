package packages

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wolframe-project/wolframe-typstcore/internal/diag"
	"github.com/wolframe-project/wolframe-typstcore/internal/source"
)

type tarEntry struct {
	name string
	body string
	typ  byte
}

func makeArchive(t *testing.T, entries ...tarEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for _, e := range entries {
		typ := e.typ
		if typ == 0 {
			typ = tar.TypeReg
		}
		hdr := &tar.Header{Name: e.name, Mode: 0o644, Typeflag: typ}
		if typ == tar.TypeReg {
			hdr.Size = int64(len(e.body))
		}
		if typ == tar.TypeSymlink {
			hdr.Linkname = e.body
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		if typ == tar.TypeReg {
			if _, err := tw.Write([]byte(e.body)); err != nil {
				t.Fatal(err)
			}
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

var example = source.PackageSpec{Namespace: "preview", Name: "example", Version: "0.1.0"}

const exampleManifest = `[package]
name = "example"
version = "0.1.0"
entrypoint = "src/main.typ"
authors = ["Ada"]
license = "MIT"
description = "An example"
`

func exampleArchive(t *testing.T) []byte {
	return makeArchive(t,
		tarEntry{name: "typst.toml", body: exampleManifest},
		tarEntry{name: "src/", typ: tar.TypeDir},
		tarEntry{name: "src/main.typ", body: "#let greet(name) = [Hi #name]"},
		tarEntry{name: "README.md", body: "# example"},
	)
}

func TestURL(t *testing.T) {
	if got, want := URL("", example), "https://packages.typst.org/preview/example-0.1.0.tar.gz"; got != want {
		t.Errorf("URL = %q, want %q", got, want)
	}
	if got, want := URL("http://localhost:8080/", example), "http://localhost:8080/preview/example-0.1.0.tar.gz"; got != want {
		t.Errorf("URL = %q, want %q", got, want)
	}
	if got, want := IndexURL("", "preview"), "https://packages.typst.org/preview/index.json"; got != want {
		t.Errorf("IndexURL = %q, want %q", got, want)
	}
}

func TestExtract(t *testing.T) {
	data := makeArchive(t,
		tarEntry{name: "lib.typ", body: "\ufeff#let x = 1"},
		tarEntry{name: "dir/", typ: tar.TypeDir},
		tarEntry{name: "link.typ", body: "lib.typ", typ: tar.TypeSymlink},
		tarEntry{name: "./dir/bad.typ", body: "a\xffb"},
	)
	archive, err := Extract(data)
	if err != nil {
		t.Fatal(err)
	}
	want := []File{
		{Path: "/lib.typ", Text: "#let x = 1"},
		{Path: "/dir/bad.typ", Text: "a\ufffdb"},
	}
	if diff := cmp.Diff(want, archive.Files); diff != "" {
		t.Errorf("files (-want +got):\n%s", diff)
	}
}

func TestExtractMalformed(t *testing.T) {
	tests := []struct {
		name string
		data func(t *testing.T) []byte
	}{
		{"not gzip", func(*testing.T) []byte { return []byte("plain text") }},
		{"gzip but not tar", func(t *testing.T) []byte {
			var buf bytes.Buffer
			gz := gzip.NewWriter(&buf)
			gz.Write(bytes.Repeat([]byte("x"), 1024))
			gz.Close()
			return buf.Bytes()
		}},
		{"escaping path", func(t *testing.T) []byte {
			return makeArchive(t, tarEntry{name: "../evil.typ", body: "x"})
		}},
		{"invalid utf-8 path", func(t *testing.T) []byte {
			return makeArchive(t, tarEntry{name: "bad\xff.typ", body: "x"})
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Extract(tt.data(t))
			if !errors.Is(err, diag.ErrMalformedArchive) {
				t.Errorf("err = %v, want malformed archive", err)
			}
		})
	}
}

func TestManifest(t *testing.T) {
	m, err := ParseManifest(exampleManifest)
	if err != nil {
		t.Fatal(err)
	}
	want := PackageInfo{
		Name:        "example",
		Version:     "0.1.0",
		Entrypoint:  "src/main.typ",
		Authors:     []string{"Ada"},
		License:     "MIT",
		Description: "An example",
	}
	if diff := cmp.Diff(want, m.Package); diff != "" {
		t.Errorf("manifest (-want +got):\n%s", diff)
	}
	if err := m.Validate(example); err != nil {
		t.Errorf("Validate: %v", err)
	}
	other := source.PackageSpec{Namespace: "preview", Name: "example", Version: "0.2.0"}
	if err := m.Validate(other); !errors.Is(err, diag.ErrPackageOther) {
		t.Errorf("Validate(%s) = %v", other, err)
	}
	if got := m.EntrypointID(example); got != source.PackageFile(example, "/src/main.typ") {
		t.Errorf("EntrypointID = %s", got)
	}

	m, err = ParseManifest("[package]\nname = \"bare\"\n")
	if err != nil {
		t.Fatal(err)
	}
	if m.Package.Entrypoint != "lib.typ" {
		t.Errorf("default entrypoint = %q", m.Package.Entrypoint)
	}
	if _, err := ParseManifest("[package"); err == nil {
		t.Errorf("expected a parse error")
	}
}

func countingFetcher(data []byte) (Fetcher, *atomic.Int64) {
	var n atomic.Int64
	return FetchFunc(func(ctx context.Context, url string) ([]byte, error) {
		n.Add(1)
		return data, nil
	}), &n
}

func TestResolveOnce(t *testing.T) {
	store := source.NewStore()
	fetcher, calls := countingFetcher(exampleArchive(t))
	r := NewResolver(store, fetcher)

	ctx := context.Background()
	first, err := r.Resolve(ctx, example)
	if err != nil {
		t.Fatal(err)
	}
	second, err := r.Resolve(ctx, example)
	if err != nil {
		t.Fatal(err)
	}
	if calls.Load() != 1 || r.Fetches() != 1 {
		t.Errorf("fetched %d times, want 1", calls.Load())
	}
	want := []source.FileID{
		source.PackageFile(example, "/README.md"),
		source.PackageFile(example, "/src/main.typ"),
		source.PackageFile(example, "/typst.toml"),
	}
	if diff := cmp.Diff(want, first); diff != "" {
		t.Errorf("files (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("second resolution differs:\n%s", diff)
	}
	if !r.IsResolved(example) {
		t.Errorf("IsResolved = false")
	}
	text, err := store.Text(source.PackageFile(example, "/src/main.typ"))
	if err != nil || text != "#let greet(name) = [Hi #name]" {
		t.Errorf("Text = %q, %v", text, err)
	}
	entry, err := r.Entrypoint(ctx, example)
	if err != nil || entry != source.PackageFile(example, "/src/main.typ") {
		t.Errorf("Entrypoint = %s, %v", entry, err)
	}
	if diff := cmp.Diff([]source.PackageSpec{example}, r.Resolved()); diff != "" {
		t.Errorf("Resolved (-want +got):\n%s", diff)
	}
}

func TestResolveConcurrent(t *testing.T) {
	store := source.NewStore()
	release := make(chan struct{})
	var calls atomic.Int64
	data := exampleArchive(t)
	r := NewResolver(store, FetchFunc(func(ctx context.Context, url string) ([]byte, error) {
		calls.Add(1)
		<-release
		return data, nil
	}))

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Resolve(context.Background(), example)
			errs <- err
		}()
	}
	close(release)
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Errorf("Resolve: %v", err)
		}
	}
	if calls.Load() != 1 {
		t.Errorf("fetched %d times, want 1", calls.Load())
	}
	if n := len(store.PackageFiles(example)); n != 3 {
		t.Errorf("store holds %d package files, want 3", n)
	}
}

func TestResolveErrors(t *testing.T) {
	notFound := &diag.PackageError{Kind: diag.PackageNotFound}
	tests := []struct {
		name  string
		fetch FetchFunc
		want  error
	}{
		{
			name: "network",
			fetch: func(ctx context.Context, url string) ([]byte, error) {
				return nil, errors.New("connection refused")
			},
			want: diag.ErrNetworkFailed,
		},
		{
			name: "empty body",
			fetch: func(ctx context.Context, url string) ([]byte, error) {
				return nil, nil
			},
			want: diag.ErrNetworkFailed,
		},
		{
			name: "malformed",
			fetch: func(ctx context.Context, url string) ([]byte, error) {
				return []byte("garbage"), nil
			},
			want: diag.ErrMalformedArchive,
		},
		{
			name: "unknown package",
			fetch: func(ctx context.Context, url string) ([]byte, error) {
				if filepath.Base(url) == "index.json" {
					return []byte(`[{"name": "other", "version": "1.0.0"}]`), nil
				}
				return nil, notFound
			},
			want: diag.ErrPackageNotFound,
		},
		{
			name: "unknown version",
			fetch: func(ctx context.Context, url string) ([]byte, error) {
				if filepath.Base(url) == "index.json" {
					return []byte(`[{"name": "example", "version": "0.0.9"}]`), nil
				}
				return nil, notFound
			},
			want: diag.ErrVersionNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := source.NewStore()
			r := NewResolver(store, tt.fetch)
			_, err := r.Resolve(context.Background(), example)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			var perr *diag.PackageError
			if !errors.As(err, &perr) || perr.Spec != example.String() {
				t.Errorf("error does not name the package: %v", err)
			}
			if r.IsResolved(example) || store.Len() != 0 {
				t.Errorf("failed resolution left state behind")
			}
		})
	}
}

func TestFetcherMayUseStore(t *testing.T) {
	store := source.NewStore()
	data := exampleArchive(t)
	r := NewResolver(store, FetchFunc(func(ctx context.Context, url string) ([]byte, error) {
		store.Add(source.ID("/log.txt"), "fetching "+url)
		if _, err := store.Text(source.ID("/main.typ")); err != nil {
			return nil, err
		}
		return data, nil
	}))
	store.Add(source.ID("/main.typ"), "#import \"@preview/example:0.1.0\"")
	if _, err := r.Resolve(context.Background(), example); err != nil {
		t.Fatal(err)
	}
	if !store.Has(source.ID("/log.txt")) {
		t.Errorf("write from fetcher lost")
	}
}

func TestSQLiteCache(t *testing.T) {
	cache, err := NewSQLiteCache(filepath.Join(t.TempDir(), "packages.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer cache.Close()

	if _, ok, err := cache.Load(example); ok || err != nil {
		t.Fatalf("Load on empty cache = %v, %v", ok, err)
	}

	archive := &Archive{Files: []File{{Path: "/lib.typ", Text: "#let x = 1"}}}
	if err := cache.Store(example, archive); err != nil {
		t.Fatal(err)
	}
	got, ok, err := cache.Load(example)
	if err != nil || !ok {
		t.Fatalf("Load = %v, %v", ok, err)
	}
	if diff := cmp.Diff(archive, got); diff != "" {
		t.Errorf("archive (-want +got):\n%s", diff)
	}
	specs, err := cache.Specs()
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]source.PackageSpec{example}, specs); diff != "" {
		t.Errorf("Specs (-want +got):\n%s", diff)
	}

	// A second resolver backed by the cache never fetches.
	r := NewResolver(source.NewStore(), FetchFunc(func(ctx context.Context, url string) ([]byte, error) {
		t.Errorf("unexpected fetch of %s", url)
		return nil, errors.New("offline")
	}), WithCache(cache))
	if _, err := r.Resolve(context.Background(), example); err != nil {
		t.Fatal(err)
	}

	if err := cache.Delete(example); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := cache.Load(example); ok {
		t.Errorf("deleted package still cached")
	}
}

func TestResolverFillsCache(t *testing.T) {
	cache, err := NewSQLiteCache(filepath.Join(t.TempDir(), "packages.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer cache.Close()

	fetcher, _ := countingFetcher(exampleArchive(t))
	r := NewResolver(source.NewStore(), fetcher, WithCache(cache), WithRegistry("http://registry.test"))
	if _, err := r.Resolve(context.Background(), example); err != nil {
		t.Fatal(err)
	}
	archive, ok, err := cache.Load(example)
	if err != nil || !ok {
		t.Fatalf("cache not filled: %v", err)
	}
	if _, ok := archive.Lookup("src/main.typ"); !ok {
		t.Errorf("cached archive lacks src/main.typ")
	}
}

func TestReadManifest(t *testing.T) {
	broken := errors.New("disk on fire")
	tests := []struct {
		name    string
		read    func(source.FileID) ([]byte, error)
		want    string
		wantErr error
	}{
		{
			name: "declared entrypoint",
			read: func(id source.FileID) ([]byte, error) { return []byte(exampleManifest), nil },
			want: "src/main.typ",
		},
		{
			name: "no typst.toml",
			read: func(id source.FileID) ([]byte, error) {
				return nil, diag.NewFileError(diag.NotFound, id.Path)
			},
			want: "lib.typ",
		},
		{
			name:    "read failure",
			read:    func(id source.FileID) ([]byte, error) { return nil, broken },
			wantErr: broken,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := ReadManifest(example, tt.read)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if m.Package.Entrypoint != tt.want {
				t.Errorf("entrypoint = %q, want %q", m.Package.Entrypoint, tt.want)
			}
		})
	}

	// Resolving an archive without a manifest picks the same entrypoint.
	store := source.NewStore()
	r := NewResolver(store, FetchFunc(func(ctx context.Context, url string) ([]byte, error) {
		return makeArchive(t, tarEntry{name: "lib.typ", body: "#let x = 1"}), nil
	}))
	entry, err := r.Entrypoint(context.Background(), example)
	if err != nil {
		t.Fatal(err)
	}
	m, err := ReadManifest(example, func(id source.FileID) ([]byte, error) {
		buf, ok := store.Get(id)
		if !ok {
			return nil, diag.NewFileError(diag.NotFound, id.Path)
		}
		return buf.Bytes(), nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := m.EntrypointID(example); got != entry {
		t.Errorf("entrypoint %s, resolver says %s", got, entry)
	}
}

func TestVersionNotFoundListsPublished(t *testing.T) {
	r := NewResolver(source.NewStore(), FetchFunc(func(ctx context.Context, url string) ([]byte, error) {
		if filepath.Base(url) == "index.json" {
			return []byte(`[{"name": "example", "version": "0.0.8"}, {"name": "other", "version": "1.0.0"}, {"name": "example", "version": "0.0.9"}]`), nil
		}
		return nil, &diag.PackageError{Kind: diag.PackageNotFound}
	}))
	_, err := r.Resolve(context.Background(), example)
	var perr *diag.PackageError
	if !errors.As(err, &perr) || perr.Kind != diag.VersionNotFound {
		t.Fatalf("err = %v", err)
	}
	if want := "version 0.1.0 of example (published: 0.0.8, 0.0.9)"; perr.Message != want {
		t.Errorf("message = %q, want %q", perr.Message, want)
	}
}

func TestPurge(t *testing.T) {
	cache, err := NewSQLiteCache(filepath.Join(t.TempDir(), "packages.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer cache.Close()

	store := source.NewStore()
	store.Add(source.ID("/main.typ"), "")
	fetcher, calls := countingFetcher(exampleArchive(t))
	r := NewResolver(store, fetcher, WithCache(cache))
	ctx := context.Background()
	if _, err := r.Resolve(ctx, example); err != nil {
		t.Fatal(err)
	}

	if err := r.Purge(example); err != nil {
		t.Fatal(err)
	}
	if r.IsResolved(example) {
		t.Errorf("still resolved after purge")
	}
	if files := store.PackageFiles(example); len(files) != 0 {
		t.Errorf("files left in store: %v", files)
	}
	if !store.Has(source.ID("/main.typ")) {
		t.Errorf("purge removed a project file")
	}
	if _, ok, _ := cache.Load(example); ok {
		t.Errorf("archive left in cache")
	}

	if _, err := r.Resolve(ctx, example); err != nil {
		t.Fatal(err)
	}
	if calls.Load() != 2 || r.Fetches() != 2 {
		t.Errorf("fetched %d times after purge, want 2", calls.Load())
	}
}
