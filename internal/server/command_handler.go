package server

import (
	"context"
	"fmt"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/wolframe-project/wolframe-typstcore/internal/source"
)

const (
	cmdPreview  = "typstcore.preview"
	cmdSetMain  = "typstcore.setMain"
	cmdCompile  = "typstcore.compile"
	cmdPackages = "typstcore.packages"
	cmdPurge    = "typstcore.purgePackage"
)

var commands = []string{cmdPreview, cmdSetMain, cmdCompile, cmdPackages, cmdPurge}

func (s *Server) workspaceExecuteCommand(
	ctx *glsp.Context,
	params *protocol.ExecuteCommandParams,
) (any, error) {
	log.Infof("called %q", params.Command)
	switch params.Command {
	case cmdPreview:
		return s.showPreview(ctx)
	case cmdSetMain:
		return nil, s.setMain(ctx, params.Arguments)
	case cmdCompile:
		return nil, s.compile(context.Background(), ctx.Notify)
	case cmdPackages:
		return s.packageList()
	case cmdPurge:
		return nil, s.purgePackage(ctx, params.Arguments)
	}
	return nil, fmt.Errorf("unknown command %q", params.Command)
}

// showPreview starts the preview server on first use and asks the client
// to open it.
func (s *Server) showPreview(ctx *glsp.Context) (string, error) {
	url, err := s.preview.Show("127.0.0.1:0")
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.previewOn = true
	s.mu.Unlock()

	if out := s.core.LastDocument(); out != nil {
		if err := s.preview.Publish(out); err != nil {
			return "", err
		}
	} else {
		s.scheduleCompile(ctx.Notify)
	}

	ctx.Notify(
		protocol.ServerWindowShowDocument,
		protocol.ShowDocumentParams{
			URI:      protocol.URI(url),
			External: &protocol.True,
		},
	)
	return url, nil
}

// setMain makes the document given as the first argument the root file.
func (s *Server) setMain(ctx *glsp.Context, args []any) error {
	if len(args) != 1 {
		return fmt.Errorf("%s takes one document uri, got %d arguments", cmdSetMain, len(args))
	}
	uri, ok := args[0].(string)
	if !ok {
		return fmt.Errorf("%s: argument is %T, not a uri", cmdSetMain, args[0])
	}
	id, err := s.URItoID(uri)
	if err != nil {
		return err
	}
	if err := s.core.SetRoot(id); err != nil {
		ctx.Notify(protocol.ServerWindowShowMessage, protocol.ShowMessageParams{
			Type:    protocol.MessageTypeError,
			Message: err.Error(),
		})
		return err
	}
	s.scheduleCompile(ctx.Notify)
	return nil
}

// packageList names the packages loaded in this session and those in the
// on-disk cache.
func (s *Server) packageList() (map[string][]string, error) {
	out := map[string][]string{"resolved": {}, "cached": {}}
	for _, spec := range s.core.Packages().Resolved() {
		out["resolved"] = append(out["resolved"], spec.String())
	}
	if s.cache != nil {
		specs, err := s.cache.Specs()
		if err != nil {
			return nil, err
		}
		for _, spec := range specs {
			out["cached"] = append(out["cached"], spec.String())
		}
	}
	return out, nil
}

// purgePackage drops the package named by the first argument from memory
// and from the cache, then recompiles so the next import fetches it again.
func (s *Server) purgePackage(ctx *glsp.Context, args []any) error {
	if len(args) != 1 {
		return fmt.Errorf("%s takes one package spec, got %d arguments", cmdPurge, len(args))
	}
	text, ok := args[0].(string)
	if !ok {
		return fmt.Errorf("%s: argument is %T, not a package spec", cmdPurge, args[0])
	}
	spec, err := source.ParsePackageSpec(text)
	if err != nil {
		return err
	}
	if err := s.core.Packages().Purge(spec); err != nil {
		return err
	}
	s.scheduleCompile(ctx.Notify)
	return nil
}
