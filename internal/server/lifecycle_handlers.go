package server

import (
	"net/url"
	"os"
	"path/filepath"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/wolframe-project/wolframe-typstcore/internal/config"
	"github.com/wolframe-project/wolframe-typstcore/internal/core"
	"github.com/wolframe-project/wolframe-typstcore/internal/packages"
	"github.com/wolframe-project/wolframe-typstcore/internal/scanner"
	"github.com/wolframe-project/wolframe-typstcore/internal/scheduler"
	"github.com/wolframe-project/wolframe-typstcore/internal/source"
)

func (s *Server) initialize(
	context *glsp.Context,
	params *protocol.InitializeParams,
) (any, error) {
	// Root
	s.root = "file:///"
	if params.RootURI != nil {
		s.root = *params.RootURI
	} else if params.RootPath != nil {
		s.root = (&url.URL{Scheme: "file", Path: filepath.ToSlash(*params.RootPath)}).String()
	}
	rootURI, err := url.Parse(s.root)
	if err != nil {
		return nil, err
	}
	rootDir := filepath.FromSlash(rootURI.Path)

	// Config: the project file first, then the client's options.
	cfg, err := config.Find(rootDir)
	if err != nil {
		return nil, err
	}
	if cfg, err = cfg.Merge(params.InitializationOptions); err != nil {
		return nil, err
	}
	cfg.Root = rootDir
	s.config = cfg
	log.Infof("config: %+v", cfg)

	// Package cache
	timeout, _ := cfg.Timeout()
	opts := core.Options{Fetcher: packages.NewHTTPFetcher(timeout), Registry: cfg.Registry}
	if p := cfg.CachePath(); p != "" {
		if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
			log.Warningf("package cache disabled: %s", err)
		} else if c, err := packages.NewSQLiteCache(p); err != nil {
			log.Warningf("package cache disabled: %s", err)
		} else {
			s.cache = c
			opts.Cache = c
		}
	}
	s.core = core.New(opts)

	for _, f := range cfg.Fonts {
		data, err := os.ReadFile(f)
		if err == nil {
			err = s.core.RegisterFont(data)
		}
		if err != nil {
			log.Warningf("font %s: %s", f, err)
		}
	}

	// Workspace scanning
	scanner.Feed(s.core.Store(), rootDir, cfg.FileExtensions)
	if err := s.core.SetRoot(source.ID(cfg.Main)); err != nil {
		log.Infof("no main file yet: %s", err)
	}

	s.scheduler = scheduler.NewScheduler(16)
	s.scheduler.RunScheduler()

	syncKind := protocol.TextDocumentSyncKindIncremental

	capabilities := s.handler.CreateServerCapabilities()
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: &protocol.True,
		Change:    &syncKind,
		Save:      &protocol.SaveOptions{IncludeText: &protocol.True},
	}
	capabilities.CompletionProvider = &protocol.CompletionOptions{TriggerCharacters: []string{"#", "."}}
	capabilities.ExecuteCommandProvider = &protocol.ExecuteCommandOptions{Commands: commands}

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    name,
			Version: &s.version,
		},
	}, nil
}

func (s *Server) initialized(
	context *glsp.Context,
	params *protocol.InitializedParams,
) error {
	log.Info("client initialized")
	s.scheduleCompile(context.Notify)
	return nil
}

func (s *Server) setTrace(context *glsp.Context, params *protocol.SetTraceParams) error {
	protocol.SetTraceValue(params.Value)
	return nil
}

func (s *Server) shutdown(context *glsp.Context) error {
	if s.scheduler != nil {
		s.scheduler.StopScheduler()
	}
	if s.cache != nil {
		return s.cache.Close()
	}
	return nil
}
