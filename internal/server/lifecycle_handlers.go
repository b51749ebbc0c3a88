package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"ledgerls/internal/config"
	"ledgerls/internal/index"
	"ledgerls/internal/scanner"
	"ledgerls/internal/scheduler"
	"ledgerls/internal/semantic"
	"ledgerls/internal/watcher"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

const (
	watchDebounce   = 200 * time.Millisecond
	shutdownTimeout = 5 * time.Second
)

func (s *Server) initialize(
	context *glsp.Context,
	params *protocol.InitializeParams,
) (any, error) {
	cfg, err := config.Merge(s.base, params.InitializationOptions)
	if err != nil {
		return nil, err
	}
	s.config = cfg
	s.docs = s.newDocumentManager()
	s.root = rootPath(params)
	log.Infof("config: %+v", cfg)
	log.Infof("workspace root: %q", s.root)

	if cfg.MetricsAddress != "" {
		s.startMetrics(cfg.MetricsAddress)
	}
	if s.root != "" && cfg.IndexEnabled {
		// the index only powers cross-file features, so failures are not fatal
		if err := s.startWorkspace(); err != nil {
			log.Errorf("workspace index disabled: %s", err)
		}
	}

	syncKind := protocol.TextDocumentSyncKindIncremental

	capabilities := s.handler.CreateServerCapabilities()
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: &protocol.True,
		Change:    &syncKind,
		Save:      &protocol.SaveOptions{IncludeText: &protocol.False},
	}
	capabilities.SemanticTokensProvider = protocol.SemanticTokensOptions{
		Legend: semantic.Legend(),
		Range:  true,
		Full:   true,
	}
	capabilities.CodeActionProvider = protocol.CodeActionOptions{
		CodeActionKinds: []protocol.CodeActionKind{protocol.CodeActionKindQuickFix},
	}
	capabilities.ExecuteCommandProvider = &protocol.ExecuteCommandOptions{
		Commands: commands,
	}

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    Name,
			Version: &s.version,
		},
	}, nil
}

func (s *Server) initialized(
	context *glsp.Context,
	params *protocol.InitializedParams,
) error {
	log.Info("client initialized")
	return nil
}

func (s *Server) shutdown(context *glsp.Context) error {
	log.Info("shutting down")
	protocol.SetTraceValue(protocol.TraceValueOff)
	s.docs.CloseAll()
	return errors.Join(s.graph.Close(), s.stopWorkspace())
}

func (s *Server) setTrace(context *glsp.Context, params *protocol.SetTraceParams) error {
	protocol.SetTraceValue(params.Value)
	return nil
}

func (s *Server) startMetrics(addr string) {
	srv := s.metrics.HTTPServer(addr)
	s.mu.Lock()
	s.metricsServer = srv
	s.mu.Unlock()

	go func() {
		log.Infof("serving metrics on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("metrics server: %s", err)
		}
	}()
}

// startWorkspace opens the index, queues the initial scan and starts the
// periodic rescan and the file watcher.
func (s *Server) startWorkspace() error {
	path := s.config.IndexPath
	if path == "" {
		var err error
		if path, err = defaultIndexPath(s.root); err != nil {
			return err
		}
	}
	ix, err := index.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open index %s: %w", path, err)
	}
	log.Infof("workspace index: %s", path)

	sched := scheduler.NewScheduler(64)
	sched.RunScheduler()

	s.mu.Lock()
	s.index = ix
	s.scheduler = sched
	s.mu.Unlock()

	scan := scheduler.Task{Name: "scan", Execute: s.rescan}
	sched.ScheduleHighPriorityTask(scan)
	if s.config.RescanIntervalSeconds > 0 {
		sched.SchedulePeriodicTask(time.Duration(s.config.RescanIntervalSeconds)*time.Second, scan)
	}

	if s.config.Watch {
		w, err := watcher.New(s.root, s.config.FileExtensions, watchDebounce, s.onDiskChanges)
		if err != nil {
			log.Errorf("file watcher disabled: %s", err)
			return nil
		}
		if err := w.Start(context.Background()); err != nil {
			log.Errorf("file watcher disabled: %s", err)
			return nil
		}
		s.mu.Lock()
		s.watcher = w
		s.mu.Unlock()
	}
	return nil
}

func (s *Server) stopWorkspace() error {
	s.mu.Lock()
	w, sched, ix, srv := s.watcher, s.scheduler, s.index, s.metricsServer
	s.watcher, s.scheduler, s.index, s.metricsServer = nil, nil, nil, nil
	s.mu.Unlock()

	if w != nil {
		w.Stop()
	}
	if sched != nil {
		sched.StopScheduler(shutdownTimeout)
	}
	var errs []error
	if ix != nil {
		errs = append(errs, ix.Close())
	}
	if srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		errs = append(errs, srv.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

// rescan brings the index in line with the workspace: new and modified
// files are indexed, files that disappeared are dropped.
func (s *Server) rescan(ctx context.Context) error {
	ix := s.workspaceIndex()
	if ix == nil {
		return nil
	}

	var mu sync.Mutex
	seen := make(map[string]struct{})
	_, err := scanner.Scan(ctx, s.root, s.config.FileExtensions, s.config.ScanWorkers, func(ctx context.Context, path string) error {
		mu.Lock()
		seen[path] = struct{}{}
		mu.Unlock()
		_, err := ix.IndexFile(ctx, path)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to scan workspace: %w", err)
	}

	removed, err := ix.Prune(func(path string) bool {
		_, ok := seen[path]
		return ok
	})
	if err != nil {
		return fmt.Errorf("failed to prune index: %w", err)
	}
	if removed > 0 {
		log.Infof("dropped %d vanished files from the index", removed)
	}
	return nil
}

func (s *Server) onDiskChanges(changes []watcher.Change) {
	s.mu.Lock()
	sched := s.scheduler
	s.mu.Unlock()
	if sched == nil {
		return
	}

	sched.ScheduleHighPriorityTask(scheduler.Task{
		Name: "reindex",
		Execute: func(ctx context.Context) error {
			return s.applyDiskChanges(ctx, changes)
		},
	})
}

func (s *Server) applyDiskChanges(ctx context.Context, changes []watcher.Change) error {
	ix := s.workspaceIndex()
	if ix == nil {
		return nil
	}
	var errs []error
	for _, c := range changes {
		switch c.Op {
		case watcher.OpRemove:
			if err := ix.DeleteFile(c.Path); err != nil && !errors.Is(err, index.ErrNotFound) {
				errs = append(errs, err)
			}
		default:
			if _, err := ix.IndexFile(ctx, c.Path); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
