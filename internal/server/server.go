// Package server wires the document store, the semantic token encoder and
// the workspace index to the language server protocol.
package server

import (
	"net/http"
	"sync"

	"ledgerls/internal/config"
	"ledgerls/internal/graph"
	"ledgerls/internal/index"
	"ledgerls/internal/manager"
	"ledgerls/internal/metrics"
	"ledgerls/internal/scheduler"
	"ledgerls/internal/watcher"

	"github.com/tliron/commonlog"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"
)

const Name = "ledgerls"

var log = commonlog.GetLogger("ledgerls.server")

type Server struct {
	handler *protocol.Handler
	version string
	metrics *metrics.Metrics

	// base is the configuration from the command line and config file;
	// initialization options are merged on top of it.
	base   config.Config
	config config.Config
	root   string

	docs  *manager.DocumentManager
	graph *graph.Hub

	mu            sync.Mutex // guards the workspace services below
	index         *index.Index
	scheduler     *scheduler.Scheduler
	watcher       *watcher.Watcher
	metricsServer *http.Server
}

func NewServer(base config.Config, version string) *Server {
	s := &Server{
		base:    base,
		config:  base,
		version: version,
		metrics: metrics.New(),
		graph:   graph.NewHub(),
	}
	s.docs = s.newDocumentManager()
	s.handler = &protocol.Handler{
		Initialize:                      s.initialize,
		Initialized:                     s.initialized,
		Shutdown:                        s.shutdown,
		SetTrace:                        s.setTrace,
		TextDocumentDidOpen:             s.textDocumentDidOpen,
		TextDocumentDidChange:           s.textDocumentDidChange,
		TextDocumentDidSave:             s.textDocumentDidSave,
		TextDocumentDidClose:            s.textDocumentDidClose,
		TextDocumentSemanticTokensFull:  s.textDocumentSemanticTokensFull,
		TextDocumentSemanticTokensRange: s.textDocumentSemanticTokensRange,
		TextDocumentDefinition:          s.textDocumentDefinition,
		TextDocumentDocumentSymbol:      s.textDocumentDocumentSymbol,
		TextDocumentCodeLens:            s.textDocumentCodeLens,
		TextDocumentCodeAction:          s.textDocumentCodeAction,
		TextDocumentFoldingRange:        s.textDocumentFoldingRange,
		WorkspaceSymbol:                 s.workspaceSymbol,
		WorkspaceExecuteCommand:         s.workspaceExecuteCommand,
	}
	return s
}

// LSP returns the protocol server that dispatches to s.
func (s *Server) LSP() *glspserver.Server {
	return glspserver.NewServer(s.handler, Name, false)
}

func (s *Server) newDocumentManager() *manager.DocumentManager {
	return manager.NewDocumentManager(
		manager.WithVersionPolicy(manager.VersionPolicy(s.config.VersionPolicy)),
		manager.WithMetrics(s.metrics),
	)
}

func (s *Server) workspaceIndex() *index.Index {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index
}
