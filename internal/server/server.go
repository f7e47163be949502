package server

import (
	"fmt"
	"net/url"
	"path"
	"strings"
	"sync"

	"github.com/tliron/commonlog"
	protocol "github.com/tliron/glsp/protocol_3_16"
	"github.com/tliron/glsp/server"

	"github.com/wolframe-project/wolframe-typstcore/internal/config"
	"github.com/wolframe-project/wolframe-typstcore/internal/core"
	"github.com/wolframe-project/wolframe-typstcore/internal/packages"
	"github.com/wolframe-project/wolframe-typstcore/internal/preview"
	"github.com/wolframe-project/wolframe-typstcore/internal/scheduler"
	"github.com/wolframe-project/wolframe-typstcore/internal/source"
)

var log = commonlog.GetLogger("typstcore.server")

const name = "typstcore"

type Server struct {
	handler   *protocol.Handler
	version   string
	core      *core.Core
	config    config.Config
	root      string // workspace root URI
	scheduler *scheduler.Scheduler
	preview   *preview.Server
	cache     *packages.SQLiteCache

	mu        sync.Mutex
	published map[string]bool
	previewOn bool
}

func NewServer(version string) (*server.Server, error) {
	ls := newServer(version)
	return server.NewServer(ls.handler, name, false), nil
}

func newServer(version string) *Server {
	ls := &Server{
		version:   version,
		preview:   preview.New(),
		published: make(map[string]bool),
	}
	ls.handler = &protocol.Handler{
		Initialize:              ls.initialize,
		Initialized:             ls.initialized,
		Shutdown:                ls.shutdown,
		SetTrace:                ls.setTrace,
		TextDocumentDidOpen:     ls.textDocumentDidOpen,
		TextDocumentDidChange:   ls.textDocumentDidChange,
		TextDocumentDidSave:     ls.textDocumentDidSave,
		TextDocumentDidClose:    ls.textDocumentDidClose,
		TextDocumentDefinition:  ls.textDocumentDefinition,
		TextDocumentHover:       ls.textDocumentHover,
		TextDocumentCompletion:  ls.textDocumentCompletion,
		WorkspaceExecuteCommand: ls.workspaceExecuteCommand,
		WorkspaceSymbol:         ls.workspaceSymbol,
	}
	return ls
}

// URItoID maps a document URI below the workspace root to a file id.
func (s *Server) URItoID(docuri protocol.URI) (source.FileID, error) {
	uri, err := url.Parse(docuri)
	if err != nil {
		return source.FileID{}, fmt.Errorf("failed to parse uri: %w", err)
	}

	root, err := url.Parse(s.root)
	if err != nil {
		return source.FileID{}, fmt.Errorf("failed to parse root uri: %w", err)
	}

	if uri.Scheme != root.Scheme || uri.Host != root.Host {
		return source.FileID{}, fmt.Errorf("uri and root uri do not share the same scheme or host")
	}

	rootPath := strings.TrimRight(root.Path, "/") + "/"
	if !strings.HasPrefix(uri.Path, rootPath) {
		return source.FileID{}, fmt.Errorf("%s is outside the workspace %s", docuri, s.root)
	}
	return source.ID(strings.TrimPrefix(uri.Path, rootPath)), nil
}

// IDtoURI is the inverse of URItoID. Package files have no URI.
func (s *Server) IDtoURI(id source.FileID) (protocol.URI, bool) {
	if id.InPackage() {
		return "", false
	}
	root, err := url.Parse(s.root)
	if err != nil {
		return "", false
	}

	// Join the root path and the relative path
	root.Path = path.Join(root.Path, id.Path)

	// Rebuild the full URI
	return root.String(), true
}
