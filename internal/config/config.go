package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/wolframe-project/wolframe-typstcore/internal/compiler"
	"github.com/wolframe-project/wolframe-typstcore/internal/packages"
)

// FileName is the project configuration file looked up in the workspace root.
const FileName = "typstcore.toml"

type Config struct {
	Registry string `json:"registry" toml:"registry"`
	// CacheDir holds the package cache database. Empty disables the cache.
	CacheDir       string   `json:"cache_dir" toml:"cache_dir"`
	Root           string   `json:"root" toml:"root"`
	Main           string   `json:"main" toml:"main"`
	Format         string   `json:"format" toml:"format"`
	FetchTimeout   string   `json:"fetch_timeout" toml:"fetch_timeout"`
	Fonts          []string `json:"fonts" toml:"fonts"`
	FileExtensions []string `json:"file_extensions" toml:"file_extensions"`
	LogLevel       int      `json:"log_level" toml:"log_level"`
}

var defaultConfig = Config{
	Registry:       packages.DefaultRegistry,
	CacheDir:       defaultCacheDir(),
	Root:           ".",
	Main:           "main.typ",
	Format:         "paged",
	FetchTimeout:   "30s",
	FileExtensions: []string{".typ", ".toml", ".bib", ".csv", ".svg"},
	LogLevel:       0,
}

func defaultCacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "typstcore")
}

func Default() Config {
	cfg := defaultConfig
	cfg.FileExtensions = append([]string(nil), defaultConfig.FileExtensions...)
	return cfg
}

func Load(v any) (Config, error) {
	return Default().Merge(v)
}

// Merge overwrites the fields of c that are present in v, which is any
// JSON-shaped value such as LSP initialization options.
func (c Config) Merge(v any) (Config, error) {
	if v == nil {
		return c, nil
	}
	cfg := c
	cfg.FileExtensions = append([]string(nil), c.FileExtensions...)
	cfg.Fonts = append([]string(nil), c.Fonts...)

	data, err := json.Marshal(v)
	if err != nil {
		return Config{}, fmt.Errorf("failed to marshal source: %w", err)
	}

	// only fields present in src will overwrite.
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal into Config: %w", err)
	}

	return cfg, cfg.Validate()
}

// LoadFromJSON reads JSON from r into a Config.
func LoadFromJSON(r io.Reader) (Config, error) {
	cfg := Default()

	decoder := json.NewDecoder(r)
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, cfg.Validate()
}

// LoadFromFile reads a TOML file. Relative paths in it are taken relative
// to the file's directory.
func LoadFromFile(path string) (Config, error) {
	cfg := Default()
	cfg.Root = ""
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("%s: unknown keys %v", path, undecoded)
	}

	dir := filepath.Dir(path)
	if cfg.Root == "" {
		cfg.Root = dir
	} else if !filepath.IsAbs(cfg.Root) {
		cfg.Root = filepath.Join(dir, cfg.Root)
	}
	for i, f := range cfg.Fonts {
		if !filepath.IsAbs(f) {
			cfg.Fonts[i] = filepath.Join(dir, f)
		}
	}
	return cfg, cfg.Validate()
}

// Find loads FileName from dir, or returns the defaults rooted at dir when
// there is none.
func Find(dir string) (Config, error) {
	path := filepath.Join(dir, FileName)
	if _, err := os.Stat(path); err != nil {
		cfg := Default()
		cfg.Root = dir
		return cfg, nil
	}
	return LoadFromFile(path)
}

func (c Config) Validate() error {
	if _, err := compiler.ParseFormat(c.Format); err != nil {
		return err
	}
	if _, err := c.Timeout(); err != nil {
		return err
	}
	return nil
}

func (c Config) OutputFormat() compiler.Format {
	f, _ := compiler.ParseFormat(c.Format)
	return f
}

// Timeout is the package download timeout. Zero means no timeout.
func (c Config) Timeout() (time.Duration, error) {
	if c.FetchTimeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.FetchTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid fetch_timeout %q: %w", c.FetchTimeout, err)
	}
	return d, nil
}

// CachePath is the package cache database, or "" when caching is off.
func (c Config) CachePath() string {
	if c.CacheDir == "" {
		return ""
	}
	return filepath.Join(c.CacheDir, "packages.db")
}
