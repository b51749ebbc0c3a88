// Package watcher reports ledger files that change on disk, batched over a
// debounce window.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"ledgerls/internal/scanner"

	"github.com/fsnotify/fsnotify"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("ledgerls.watcher")

type Op int

const (
	OpWrite Op = iota
	OpRemove
)

func (op Op) String() string {
	switch op {
	case OpWrite:
		return "write"
	case OpRemove:
		return "remove"
	default:
		return "unknown"
	}
}

type Change struct {
	Path string
	Op   Op
}

// Handler receives one batch per debounce window, at most one change per
// path (the latest).
type Handler func(changes []Change)

type Watcher struct {
	root       string
	extensions []string
	debounce   time.Duration
	handler    Handler

	watcher  *fsnotify.Watcher
	changes  chan Change
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func New(root string, extensions []string, debounce time.Duration, handler Handler) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		root:       root,
		extensions: extensions,
		debounce:   debounce,
		handler:    handler,
		watcher:    fw,
		changes:    make(chan Change, 1000),
		done:       make(chan struct{}),
	}, nil
}

// Start watches every directory below root until ctx ends or Stop is
// called.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addRecursive(w.root); err != nil {
		return err
	}
	w.wg.Add(2)
	go w.processEvents(ctx)
	go w.debounceLoop(ctx)
	return nil
}

// Stop ends watching and waits until the last batch was delivered.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.watcher.Close()
	})
	w.wg.Wait()
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && scanner.IgnoreDir(path) {
			return filepath.SkipDir
		}
		return w.watcher.Add(path)
	})
}

func (w *Watcher) processEvents(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if !scanner.IgnoreDir(event.Name) {
						if err := w.addRecursive(event.Name); err != nil {
							log.Warningf("failed to watch %s: %s", event.Name, err)
						}
					}
					continue
				}
			}
			if !scanner.Match(event.Name, w.extensions) {
				continue
			}

			change := Change{Path: event.Name, Op: OpWrite}
			if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				change.Op = OpRemove
			} else if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}

			select {
			case w.changes <- change:
			default:
				log.Warningf("dropped change of %s: buffer full", change.Path)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Errorf("watch error: %s", err)
		}
	}
}

func (w *Watcher) debounceLoop(ctx context.Context) {
	defer w.wg.Done()
	var batch []Change
	var timer *time.Timer
	var timerC <-chan time.Time

	flush := func() {
		if len(batch) > 0 && w.handler != nil {
			w.handler(dedupe(batch))
		}
		batch = batch[:0]
		if timer != nil {
			timer.Stop()
			timer = nil
			timerC = nil
		}
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case <-w.done:
			flush()
			return
		case change := <-w.changes:
			batch = append(batch, change)
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}
		case <-timerC:
			flush()
		}
	}
}

func dedupe(changes []Change) []Change {
	seen := make(map[string]int)
	result := make([]Change, 0, len(changes))
	for _, c := range changes {
		if i, ok := seen[c.Path]; ok {
			result[i] = c
			continue
		}
		seen[c.Path] = len(result)
		result = append(result, c)
	}
	return result
}
