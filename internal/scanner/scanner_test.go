package scanner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wolframe-project/wolframe-typstcore/internal/source"
)

func write(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, body := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestFeed(t *testing.T) {
	root := t.TempDir()
	write(t, root, map[string]string{
		"main.typ":          "= Title",
		"chapters/one.typ":  "One",
		"data/table.csv":    "a,b",
		"notes.md":          "# skipped",
		".git/HEAD.typ":     "hidden dir",
		"chapters/.tmp.typ": "hidden file",
	})
	store := source.NewStore()
	ids := Feed(store, root, []string{".typ", ".csv"})

	want := []source.FileID{source.ID("/chapters/one.typ"), source.ID("/data/table.csv"), source.ID("/main.typ")}
	if diff := cmp.Diff(want, ids); diff != "" {
		t.Errorf("ids mismatch (-want +got):\n%s", diff)
	}
	if text, err := store.Text(source.ID("/chapters/one.typ")); err != nil || text != "One" {
		t.Errorf("one.typ = %q, %v", text, err)
	}
	if store.Len() != 3 {
		t.Errorf("store has %d files", store.Len())
	}
}

func TestIgnoreDir(t *testing.T) {
	for _, tt := range []struct {
		path string
		want bool
	}{
		{"/w", false},
		{"/w/.git", true},
		{"/w/src", false},
		{"/w/src/.cache", true},
	} {
		if got := IgnoreDir("/w", tt.path); got != tt.want {
			t.Errorf("IgnoreDir(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
	if IgnoreDir(".", ".") {
		t.Error("root skipped")
	}
}
