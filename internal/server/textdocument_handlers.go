package server

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/wolframe-project/wolframe-typstcore/internal/source"
)

func (s *Server) textDocumentDidOpen(
	context *glsp.Context,
	params *protocol.DidOpenTextDocumentParams,
) error {
	id, err := s.URItoID(params.TextDocument.URI)
	if err != nil {
		return err
	}
	s.core.AddSource(id, params.TextDocument.Text)
	if s.core.Root().IsZero() && id.Ext() == "typ" {
		if err := s.core.SetRoot(id); err != nil {
			return err
		}
		log.Infof("root file is now %s", id)
	}
	s.scheduleCompile(context.Notify)
	return nil
}

func (s *Server) textDocumentDidChange(
	context *glsp.Context,
	params *protocol.DidChangeTextDocumentParams,
) error {
	id, err := s.URItoID(params.TextDocument.URI)
	if err != nil {
		return err
	}
	for _, raw := range params.ContentChanges {
		switch change := raw.(type) {
		case protocol.TextDocumentContentChangeEvent:
			if change.Range == nil {
				err = s.replaceText(id, change.Text)
				break
			}
			rng, cerr := fromLSPRange(*change.Range)
			if cerr != nil {
				return cerr
			}
			_, err = s.core.EditSource(id, rng, change.Text)
		case protocol.TextDocumentContentChangeEventWhole:
			err = s.replaceText(id, change.Text)
		default:
			return fmt.Errorf("unexpected change event type %T", raw)
		}
		if err != nil {
			return fmt.Errorf("edit %s: %w", id, err)
		}
	}
	s.scheduleCompile(context.Notify)
	return nil
}

// replaceText turns a full-text sync into the minimal set of edits, so
// unchanged regions keep their byte offsets.
func (s *Server) replaceText(id source.FileID, text string) error {
	old, err := s.core.GetSource(id)
	if err != nil {
		s.core.AddSource(id, text)
		return nil
	}
	edits := textEdits(old, text)
	// back to front keeps earlier offsets valid
	for i := len(edits) - 1; i >= 0; i-- {
		e := edits[i]
		if _, err := s.core.EditSourceBytes(id, e.Start, e.End, e.Text); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) textDocumentDidSave(
	context *glsp.Context,
	params *protocol.DidSaveTextDocumentParams,
) error {
	id, err := s.URItoID(params.TextDocument.URI)
	if err != nil {
		return err
	}
	if params.Text != nil {
		if err := s.replaceText(id, *params.Text); err != nil {
			return err
		}
	}
	s.scheduleCompile(context.Notify)
	return nil
}

// textDocumentDidClose drops unsaved changes: the file goes back to its
// content on disk, or away when it was never saved.
func (s *Server) textDocumentDidClose(
	context *glsp.Context,
	params *protocol.DidCloseTextDocumentParams,
) error {
	id, err := s.URItoID(params.TextDocument.URI)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(filepath.Join(s.config.Root, filepath.FromSlash(id.Path)))
	if err != nil {
		s.core.RemoveSource(id)
	} else if err := s.replaceText(id, string(data)); err != nil {
		return err
	}
	s.scheduleCompile(context.Notify)
	return nil
}
