package server

import (
	"errors"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/wolframe-project/wolframe-typstcore/internal/compiler"
	"github.com/wolframe-project/wolframe-typstcore/internal/definition"
	"github.com/wolframe-project/wolframe-typstcore/internal/diag"
	"github.com/wolframe-project/wolframe-typstcore/internal/position"
)

// lookup resolves the name under the cursor. Positions the store cannot
// answer for are not an error to the client, just nothing to show.
func (s *Server) lookup(params protocol.TextDocumentPositionParams) (*definition.Result, error) {
	id, err := s.URItoID(params.TextDocument.URI)
	if err != nil {
		return nil, err
	}
	pos, err := fromLSPPosition(params.Position)
	if err != nil {
		return nil, nil
	}
	res, err := s.core.Definition(id, pos)
	if errors.Is(err, diag.ErrNotFound) || errors.Is(err, position.ErrOutOfRange) {
		return nil, nil
	}
	return res, err
}

func (s *Server) textDocumentDefinition(
	context *glsp.Context,
	params *protocol.DefinitionParams,
) (any, error) {
	res, err := s.lookup(params.TextDocumentPositionParams)
	if err != nil || res == nil || res.DeclarationRange == nil {
		return nil, err
	}
	uri, ok := s.IDtoURI(res.File)
	if !ok {
		return nil, nil
	}
	return protocol.Location{URI: uri, Range: toLSPRange(*res.DeclarationRange)}, nil
}

func (s *Server) textDocumentHover(
	context *glsp.Context,
	params *protocol.HoverParams,
) (*protocol.Hover, error) {
	res, err := s.lookup(params.TextDocumentPositionParams)
	if err != nil || res == nil {
		return nil, err
	}
	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: res.Markdown(),
		},
	}, nil
}

func (s *Server) textDocumentCompletion(
	context *glsp.Context,
	params *protocol.CompletionParams,
) (any, error) {
	id, err := s.URItoID(params.TextDocument.URI)
	if err != nil {
		return nil, err
	}
	pos, err := fromLSPPosition(params.Position)
	if err != nil {
		return nil, nil
	}
	completions, err := s.core.Complete(id, pos)
	if errors.Is(err, diag.ErrNotFound) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	items := make([]protocol.CompletionItem, 0, len(completions))
	for _, c := range completions {
		items = append(items, completionItem(c))
	}
	return items, nil
}

var completionKinds = map[string]protocol.CompletionItemKind{
	"function":  protocol.CompletionItemKindFunction,
	"variable":  protocol.CompletionItemKindVariable,
	"parameter": protocol.CompletionItemKindVariable,
	"module":    protocol.CompletionItemKindModule,
	"type":      protocol.CompletionItemKindClass,
	"color":     protocol.CompletionItemKindConstant,
	"alignment": protocol.CompletionItemKindConstant,
	"float":     protocol.CompletionItemKindConstant,
}

func completionItem(c compiler.Completion) protocol.CompletionItem {
	item := protocol.CompletionItem{Label: c.Label}
	kind, ok := completionKinds[c.Kind]
	if !ok {
		kind = protocol.CompletionItemKindValue
	}
	item.Kind = &kind
	if c.Detail != "" {
		detail := c.Detail
		item.Detail = &detail
	}
	return item
}
