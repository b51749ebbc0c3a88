package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu      sync.Mutex
	changes map[string]Op
}

func (r *recorder) handle(changes []Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range changes {
		r.changes[c.Path] = c.Op
	}
}

func (r *recorder) op(path string) (Op, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	op, ok := r.changes[path]
	return op, ok
}

func TestWatcherReportsLedgerFiles(t *testing.T) {
	root := t.TempDir()
	rec := &recorder{changes: map[string]Op{}}
	w, err := New(root, []string{".beancount"}, 20*time.Millisecond, rec.handle)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	ledger := filepath.Join(root, "main.beancount")
	other := filepath.Join(root, "notes.txt")
	require.NoError(t, os.WriteFile(ledger, []byte("; a\n"), 0o644))
	require.NoError(t, os.WriteFile(other, []byte("x"), 0o644))

	assert.Eventually(t, func() bool {
		op, ok := rec.op(ledger)
		return ok && op == OpWrite
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, os.Remove(ledger))
	assert.Eventually(t, func() bool {
		op, ok := rec.op(ledger)
		return ok && op == OpRemove
	}, 5*time.Second, 10*time.Millisecond)

	_, ok := rec.op(other)
	assert.False(t, ok)
}

func TestWatcherFollowsNewDirectories(t *testing.T) {
	root := t.TempDir()
	rec := &recorder{changes: map[string]Op{}}
	w, err := New(root, []string{".beancount"}, 10*time.Millisecond, rec.handle)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	dir := filepath.Join(root, "2024")
	require.NoError(t, os.Mkdir(dir, 0o755))
	nested := filepath.Join(dir, "jan.beancount")

	assert.Eventually(t, func() bool {
		// rewrite until the new directory is being watched
		_ = os.WriteFile(nested, []byte("; jan\n"), 0o644)
		_, ok := rec.op(nested)
		return ok
	}, 5*time.Second, 20*time.Millisecond)
}

func TestDedupeKeepsLatest(t *testing.T) {
	got := dedupe([]Change{
		{Path: "a", Op: OpWrite},
		{Path: "b", Op: OpWrite},
		{Path: "a", Op: OpRemove},
	})
	assert.Equal(t, []Change{{Path: "a", Op: OpRemove}, {Path: "b", Op: OpWrite}}, got)
}
