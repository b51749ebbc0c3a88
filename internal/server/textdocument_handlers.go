package server

import (
	"context"
	"fmt"

	"ledgerls/internal/graph"
	"ledgerls/internal/manager"
	"ledgerls/internal/scheduler"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

// diagnosticSource names this server in editor problem lists.
const diagnosticSource = Name

func (s *Server) textDocumentDidOpen(
	context *glsp.Context,
	params *protocol.DidOpenTextDocumentParams,
) error {
	snap := s.docs.Open(params.TextDocument.URI, params.TextDocument.Text, params.TextDocument.Version)
	publishDiagnostics(context, snap)
	s.graph.Update(manager.CanonicalURI(snap.URI), graph.Build(snap.Result()))
	return nil
}

func (s *Server) textDocumentDidChange(
	context *glsp.Context,
	params *protocol.DidChangeTextDocumentParams,
) error {
	changes, err := contentChanges(params.ContentChanges)
	if err != nil {
		return err
	}
	uri := params.TextDocument.URI
	snap, err := s.docs.Change(uri, params.TextDocument.Version, changes)
	if err != nil {
		return fmt.Errorf("failed to apply change to %s: %w", uri, err)
	}
	publishDiagnostics(context, snap)
	s.graph.Update(manager.CanonicalURI(snap.URI), graph.Build(snap.Result()))
	return nil
}

func (s *Server) textDocumentDidSave(
	_ *glsp.Context,
	params *protocol.DidSaveTextDocumentParams,
) error {
	s.mu.Lock()
	sched := s.scheduler
	s.mu.Unlock()
	if sched == nil {
		return nil
	}

	path := manager.URIToPath(params.TextDocument.URI)
	sched.ScheduleHighPriorityTask(scheduler.Task{
		Name: "index " + path,
		Execute: func(ctx context.Context) error {
			ix := s.workspaceIndex()
			if ix == nil {
				return nil
			}
			_, err := ix.IndexFile(ctx, path)
			return err
		},
	})
	return nil
}

func (s *Server) textDocumentDidClose(
	context *glsp.Context,
	params *protocol.DidCloseTextDocumentParams,
) error {
	if err := s.docs.Close(params.TextDocument.URI); err != nil {
		return err
	}
	s.graph.Remove(manager.CanonicalURI(params.TextDocument.URI))
	// problems of closed files are no longer tracked
	context.Notify("textDocument/publishDiagnostics", protocol.PublishDiagnosticsParams{
		URI:         params.TextDocument.URI,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

func contentChanges(raw []any) ([]manager.Change, error) {
	changes := make([]manager.Change, 0, len(raw))
	for _, c := range raw {
		switch change := c.(type) {
		case protocol.TextDocumentContentChangeEvent:
			changes = append(changes, manager.Change{Range: change.Range, Text: change.Text})
		case protocol.TextDocumentContentChangeEventWhole:
			changes = append(changes, manager.Change{Text: change.Text})
		default:
			return nil, fmt.Errorf("unexpected change event type %T", c)
		}
	}
	return changes, nil
}

func publishDiagnostics(context *glsp.Context, snap *manager.Snapshot) {
	context.Notify("textDocument/publishDiagnostics", protocol.PublishDiagnosticsParams{
		URI:         snap.URI,
		Diagnostics: diagnostics(snap),
	})
}

// diagnostics turns the parse errors of a snapshot into protocol
// diagnostics. The result is never nil so that publishing clears old ones.
func diagnostics(snap *manager.Snapshot) []protocol.Diagnostic {
	diagnostics := []protocol.Diagnostic{}
	severity := protocol.DiagnosticSeverityError
	source := diagnosticSource

	for _, perr := range snap.Result().Errors {
		rng, err := snap.Range(perr.Span)
		if err != nil {
			log.Warningf("parse error outside of %s: %s", snap.URI, err)
			continue
		}
		diagnostics = append(diagnostics, protocol.Diagnostic{
			Range:    rng,
			Severity: &severity,
			Code:     &protocol.IntegerOrString{Value: perr.Kind.Code()},
			Source:   &source,
			Message:  perr.Message(),
		})
	}
	return diagnostics
}
