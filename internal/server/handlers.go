package server

import (
	"context"
	"errors"
	"maps"
	"slices"
	"strings"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/wolframe-project/wolframe-typstcore/internal/diag"
	"github.com/wolframe-project/wolframe-typstcore/internal/position"
	"github.com/wolframe-project/wolframe-typstcore/internal/scheduler"
	"github.com/wolframe-project/wolframe-typstcore/internal/source"
)

// scheduleCompile queues a compile of the root file. Bursts of edits
// coalesce into one compile.
func (s *Server) scheduleCompile(notify glsp.NotifyFunc) {
	if s.scheduler == nil {
		return
	}
	s.scheduler.Schedule(scheduler.Task{
		Name:    "compile",
		Execute: func() error { return s.compile(context.Background(), notify) },
	})
}

// compile runs one compile, publishes its diagnostics and, when the preview
// is open, the rendered output.
func (s *Server) compile(ctx context.Context, notify glsp.NotifyFunc) error {
	if s.core.Root().IsZero() {
		return nil
	}
	out, err := s.core.Compile(ctx, s.config.OutputFormat())
	var cerr *diag.CompileError
	var ds []diag.Diagnostic
	switch {
	case errors.As(err, &cerr):
		ds = cerr.Diagnostics
	case err != nil:
		return err
	default:
		ds = out.Warnings
	}
	s.publishDiagnostics(notify, ds)

	s.mu.Lock()
	previewOn := s.previewOn
	s.mu.Unlock()
	if out != nil && previewOn {
		return s.preview.Publish(out)
	}
	return nil
}

// publishDiagnostics sends one notification per affected document and
// clears documents that had diagnostics last time but have none now.
// Diagnostics without a workspace file of their own are reported on the
// root file.
func (s *Server) publishDiagnostics(notify glsp.NotifyFunc, ds []diag.Diagnostic) {
	rootURI, _ := s.IDtoURI(s.core.Root())
	byURI := make(map[string][]protocol.Diagnostic)
	for _, d := range ds {
		uri, rng := rootURI, position.Range{}
		if strings.HasPrefix(d.Location.Path, "/") {
			if u, ok := s.IDtoURI(source.ID(d.Location.Path)); ok {
				uri, rng = u, d.Location.Range
			}
		} else if d.Location.Path != "" {
			d.Message = d.Location.Path + ": " + d.Message
		}
		if uri == "" {
			continue
		}
		byURI[uri] = append(byURI[uri], toLSPDiagnostic(d, rng))
	}

	s.mu.Lock()
	stale := s.published
	s.published = make(map[string]bool, len(byURI))
	for uri := range byURI {
		s.published[uri] = true
		delete(stale, uri)
	}
	s.mu.Unlock()

	for _, uri := range slices.Sorted(maps.Keys(byURI)) {
		notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
			URI:         uri,
			Diagnostics: byURI[uri],
		})
	}
	for _, uri := range slices.Sorted(maps.Keys(stale)) {
		notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
			URI:         uri,
			Diagnostics: []protocol.Diagnostic{},
		})
	}
}

func toLSPDiagnostic(d diag.Diagnostic, rng position.Range) protocol.Diagnostic {
	severity := protocol.DiagnosticSeverityError
	if d.Severity == diag.SeverityWarning {
		severity = protocol.DiagnosticSeverityWarning
	}
	src := name
	msg := d.Message
	for _, h := range d.Hints {
		msg += "\nhint: " + h
	}
	return protocol.Diagnostic{
		Range:    toLSPRange(rng),
		Severity: &severity,
		Source:   &src,
		Message:  msg,
	}
}
