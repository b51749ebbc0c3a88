// scanner is used to scan a workspace for ledger files.
package scanner

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/tliron/commonlog"
	"golang.org/x/sync/errgroup"
)

var log = commonlog.GetLogger("ledgerls.scanner")

// ignoredDirs are never descended into, in addition to dot directories.
var ignoredDirs = map[string]struct{}{
	"node_modules": {},
	"__pycache__":  {},
	"vendor":       {},
}

// IgnoreDir reports whether a directory is skipped during scans.
func IgnoreDir(path string) bool {
	name := filepath.Base(path)
	if _, ok := ignoredDirs[name]; ok {
		return true
	}
	return len(name) > 1 && strings.HasPrefix(name, ".")
}

// Match reports whether path has one of the extensions.
func Match(path string, extensions []string) bool {
	ext := filepath.Ext(path)
	for _, e := range extensions {
		if strings.EqualFold(ext, e) {
			return true
		}
	}
	return false
}

// Scan walks the subtree under root and calls visit for every file with a
// matching extension, running at most workers visits at once. Errors from
// visit are logged and do not stop the scan. Scan returns once every visit
// has completed, with the number of visited files.
func Scan(
	ctx context.Context,
	root string,
	extensions []string,
	workers int,
	visit func(ctx context.Context, path string) error,
) (int, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	var visited atomic.Int64

	log.Infof("scanning %q", root)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Warningf("walk error: %s", err)
			return nil
		}
		if cerr := gctx.Err(); cerr != nil {
			return cerr
		}

		if d.IsDir() {
			if path != root && IgnoreDir(path) {
				log.Debugf("skipping %q", path)
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !Match(path, extensions) {
			return nil
		}

		g.Go(func() error {
			if err := visit(gctx, path); err != nil {
				log.Errorf("failed to process %s: %s", path, err)
			}
			visited.Add(1)
			return nil
		})
		return nil
	})

	werr := g.Wait()
	if err == nil {
		err = werr
	}
	if err == nil {
		err = ctx.Err()
	}
	n := int(visited.Load())
	log.Infof("scanned %q: %d files", root, n)
	return n, err
}
