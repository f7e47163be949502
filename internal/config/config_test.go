package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/wolframe-project/wolframe-typstcore/internal/compiler"
)

func TestLoad(t *testing.T) {
	cfg, err := Load(map[string]any{"main": "thesis.typ", "format": "html"})
	if err != nil {
		t.Fatal(err)
	}
	want := Default()
	want.Main = "thesis.typ"
	want.Format = "html"
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
	if cfg.OutputFormat() != compiler.FormatHTML {
		t.Errorf("format = %s", cfg.OutputFormat())
	}

	if _, err := Load(map[string]any{"format": "pdf"}); err == nil {
		t.Error("unknown format accepted")
	}
	if cfg, err := Load(nil); err != nil || cfg.Main != "main.typ" {
		t.Errorf("Load(nil) = %+v, %v", cfg, err)
	}
}

func TestLoadFromJSON(t *testing.T) {
	cfg, err := LoadFromJSON(strings.NewReader(`{"fetch_timeout": "5s", "log_level": 2}`))
	if err != nil {
		t.Fatal(err)
	}
	if d, _ := cfg.Timeout(); d != 5*time.Second || cfg.LogLevel != 2 {
		t.Errorf("got %+v", cfg)
	}
	if _, err := LoadFromJSON(strings.NewReader(`{"fetch_timeout": "soon"}`)); err == nil {
		t.Error("invalid timeout accepted")
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	data := `
registry = "https://mirror.test"
main = "doc.typ"
fonts = ["fonts/Inter.ttf", "/abs/Mono.otf"]
cache_dir = ""
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Find(dir)
	if err != nil {
		t.Fatal(err)
	}
	want := Default()
	want.Registry = "https://mirror.test"
	want.Main = "doc.typ"
	want.CacheDir = ""
	want.Root = dir
	want.Fonts = []string{filepath.Join(dir, "fonts/Inter.ttf"), "/abs/Mono.otf"}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
	if cfg.CachePath() != "" {
		t.Errorf("cache path = %q", cfg.CachePath())
	}

	if err := os.WriteFile(path, []byte("colour = true"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFromFile(path); err == nil || !strings.Contains(err.Error(), "colour") {
		t.Errorf("got %v, want an unknown key error", err)
	}
}

func TestFindWithoutFile(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Find(dir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Root != dir || cfg.Main != "main.typ" {
		t.Errorf("got %+v", cfg)
	}
}
