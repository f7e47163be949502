package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/wolframe-project/wolframe-typstcore/internal/config"
	"github.com/wolframe-project/wolframe-typstcore/internal/core"
	"github.com/wolframe-project/wolframe-typstcore/internal/packages"
	"github.com/wolframe-project/wolframe-typstcore/internal/scanner"
	"github.com/wolframe-project/wolframe-typstcore/internal/source"
)

// project is a workspace loaded from disk.
type project struct {
	config config.Config
	core   *core.Core
	cache  *packages.SQLiteCache
}

func (p *project) Close() error {
	if p.cache == nil {
		return nil
	}
	return p.cache.Close()
}

// addProjectFlags registers the flags that override typstcore.toml.
func addProjectFlags(cmd *cobra.Command) {
	cmd.Flags().String("root", ".", "project root directory")
	cmd.Flags().String("main", "", "root file, relative to the project root")
	cmd.Flags().String("registry", "", "package registry url")
	cmd.Flags().Bool("no-cache", false, "do not use the on-disk package cache")
}

// openProject loads the configuration of the project the flags point to and
// reads every source file below its root. With needRoot, a missing root file
// is an error.
func openProject(cmd *cobra.Command, needRoot bool) (*project, error) {
	flags := cmd.Flags()
	dir, err := flags.GetString("root")
	if err != nil {
		return nil, err
	}
	dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Find(dir)
	if err != nil {
		return nil, err
	}

	overrides := map[string]any{}
	if m, _ := flags.GetString("main"); m != "" {
		overrides["main"] = m
	}
	if r, _ := flags.GetString("registry"); r != "" {
		overrides["registry"] = r
	}
	if noCache, _ := flags.GetBool("no-cache"); noCache {
		overrides["cache_dir"] = ""
	}
	if f := flags.Lookup("format"); f != nil && f.Changed {
		overrides["format"] = f.Value.String()
	}
	if cfg, err = cfg.Merge(overrides); err != nil {
		return nil, err
	}

	p := &project{config: cfg}
	timeout, _ := cfg.Timeout()
	opts := core.Options{Fetcher: packages.NewHTTPFetcher(timeout), Registry: cfg.Registry}
	if path := cfg.CachePath(); path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("package cache: %w", err)
		}
		if p.cache, err = packages.NewSQLiteCache(path); err != nil {
			return nil, err
		}
		opts.Cache = p.cache
	}
	p.core = core.New(opts)

	for _, f := range cfg.Fonts {
		data, err := os.ReadFile(f)
		if err != nil {
			p.Close()
			return nil, err
		}
		if err := p.core.RegisterFont(data); err != nil {
			p.Close()
			return nil, fmt.Errorf("font %s: %w", f, err)
		}
	}

	scanner.Feed(p.core.Store(), cfg.Root, cfg.FileExtensions)
	if err := p.core.SetRoot(source.ID(cfg.Main)); err != nil && needRoot {
		p.Close()
		return nil, err
	}
	return p, nil
}
