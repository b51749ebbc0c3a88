package index

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"ledgerls/internal/ledger"
	"ledgerls/internal/position"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

const accounts = `2024-01-01 open Assets:Bank:Checking USD
2024-01-01 open Expenses:Food
2024-01-01 commodity USD
  name: "US Dollar"

2024-01-05 * "Lunch"
  Expenses:Food  12.00 USD
  Assets:Bank:Checking
`

func openIndex(t *testing.T) *Index {
	t.Helper()
	ix, err := Open(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { ix.Close() })
	return ix
}

func writeLedger(t *testing.T, dir, name, text string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
	return path
}

func TestExtract(t *testing.T) {
	symbols := Extract("/l/main.beancount", position.NewLineIndex(accounts), ledger.Parse(accounts))
	require.Len(t, symbols, 3)

	assert.Equal(t, Symbol{
		Path: "/l/main.beancount",
		Name: "Assets:Bank:Checking",
		Kind: KindAccount,
		Range: protocol.Range{
			Start: protocol.Position{Line: 0, Character: 0},
			End:   protocol.Position{Line: 0, Character: 40},
		},
	}, symbols[0])
	assert.Equal(t, "Expenses:Food", symbols[1].Name)
	assert.Equal(t, KindCommodity, symbols[2].Kind)
	assert.Equal(t, protocol.UInteger(3), symbols[2].Range.End.Line, "metadata extends the directive")
}

func TestSchemaIsReused(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	ix, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, ix.UpdateFile("/a", time.Unix(10, 0), []Symbol{{Name: "Assets:A", Kind: KindAccount}}))
	require.NoError(t, ix.Close())

	ix, err = Open(path)
	require.NoError(t, err)
	defer ix.Close()

	var version int
	require.NoError(t, ix.db.QueryRow("PRAGMA user_version").Scan(&version))
	assert.Equal(t, schemaVersion, version)

	found, err := ix.Lookup("Assets:A", KindAccount)
	require.NoError(t, err)
	assert.Len(t, found, 1)
}

func TestUpdateReplacesSymbols(t *testing.T) {
	ix := openIndex(t)
	require.NoError(t, ix.UpdateFile("/a", time.Unix(1, 0), []Symbol{
		{Name: "Assets:Old", Kind: KindAccount},
		{Name: "USD", Kind: KindCommodity},
	}))
	require.NoError(t, ix.UpdateFile("/a", time.Unix(2, 0), []Symbol{
		{Name: "Assets:New", Kind: KindAccount},
	}))

	found, err := ix.Lookup("Assets:Old", KindAccount)
	require.NoError(t, err)
	assert.Empty(t, found)

	found, err = ix.Lookup("Assets:New", KindAccount)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "/a", found[0].Path)

	mod, err := ix.ModTime("/a")
	require.NoError(t, err)
	assert.True(t, mod.Equal(time.Unix(2, 0)))
}

func TestDeleteFile(t *testing.T) {
	ix := openIndex(t)
	require.NoError(t, ix.UpdateFile("/a", time.Unix(1, 0), []Symbol{{Name: "USD", Kind: KindCommodity}}))
	require.NoError(t, ix.DeleteFile("/a"))

	_, err := ix.ModTime("/a")
	assert.ErrorIs(t, err, ErrNotFound)
	found, err := ix.Lookup("USD", KindCommodity)
	require.NoError(t, err)
	assert.Empty(t, found)

	assert.ErrorIs(t, ix.DeleteFile("/a"), ErrNotFound)
}

func TestSearch(t *testing.T) {
	ix := openIndex(t)
	require.NoError(t, ix.UpdateFile("/a", time.Unix(1, 0), []Symbol{
		{Name: "Assets:Bank:Checking", Kind: KindAccount},
		{Name: "Expenses:Bank-Fees", Kind: KindAccount},
		{Name: "Income:Salary", Kind: KindAccount},
		{Name: "Income:100%", Kind: KindAccount},
	}))

	found, err := ix.Search("bank", 10)
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "Assets:Bank:Checking", found[0].Name)
	assert.Equal(t, "Expenses:Bank-Fees", found[1].Name)

	found, err = ix.Search("bank", 1)
	require.NoError(t, err)
	assert.Len(t, found, 1)

	found, err = ix.Search("%", 10)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Income:100%", found[0].Name)
}

func TestSearchFoldsUnicode(t *testing.T) {
	ix := openIndex(t)
	require.NoError(t, ix.UpdateFile("/a", time.Unix(1, 0), []Symbol{
		{Name: "Assets:Épargne", Kind: KindAccount},
		{Name: "Assets:Bank", Kind: KindAccount},
	}))

	for _, query := range []string{"épargne", "ÉPARGNE", "Épar"} {
		found, err := ix.Search(query, 10)
		require.NoError(t, err)
		require.Len(t, found, 1, query)
		assert.Equal(t, "Assets:Épargne", found[0].Name)
	}
}

func TestOpenUpgradesOldSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec(`
        CREATE TABLE files (path TEXT PRIMARY KEY, mod_time INTEGER NOT NULL);
        CREATE TABLE symbols (path TEXT NOT NULL, name TEXT NOT NULL, kind TEXT NOT NULL);
        PRAGMA user_version = 1;
    `)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	ix, err := Open(path)
	require.NoError(t, err)
	defer ix.Close()

	require.NoError(t, ix.UpdateFile("/a", time.Unix(1, 0), []Symbol{{Name: "Assets:Bank", Kind: KindAccount}}))
	found, err := ix.Search("bank", 10)
	require.NoError(t, err)
	assert.Len(t, found, 1)
}

func TestIndexFileSkipsUnchanged(t *testing.T) {
	ix := openIndex(t)
	path := writeLedger(t, t.TempDir(), "main.beancount", accounts)

	indexed, err := ix.IndexFile(context.Background(), path)
	require.NoError(t, err)
	assert.True(t, indexed)

	indexed, err = ix.IndexFile(context.Background(), path)
	require.NoError(t, err)
	assert.False(t, indexed)

	later := time.Now().Add(time.Minute)
	require.NoError(t, os.WriteFile(path, []byte("2024-01-01 open Assets:Cash\n"), 0o644))
	require.NoError(t, os.Chtimes(path, later, later))

	indexed, err = ix.IndexFile(context.Background(), path)
	require.NoError(t, err)
	assert.True(t, indexed)

	found, err := ix.Lookup("Assets:Cash", KindAccount)
	require.NoError(t, err)
	assert.Len(t, found, 1)
	found, err = ix.Lookup("Expenses:Food", KindAccount)
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestIndexFileConcurrent(t *testing.T) {
	ix := openIndex(t)
	path := writeLedger(t, t.TempDir(), "main.beancount", accounts)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ix.IndexFile(context.Background(), path)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	found, err := ix.Lookup("Expenses:Food", KindAccount)
	require.NoError(t, err)
	assert.Len(t, found, 1)
}

func TestIndexFileErrors(t *testing.T) {
	ix := openIndex(t)
	_, err := ix.IndexFile(context.Background(), filepath.Join(t.TempDir(), "missing.beancount"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = ix.IndexFile(ctx, "/whatever")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPrune(t *testing.T) {
	ix := openIndex(t)
	for _, p := range []string{"/a", "/b", "/c"} {
		require.NoError(t, ix.UpdateFile(p, time.Unix(1, 0), nil))
	}

	removed, err := ix.Prune(func(p string) bool { return p == "/b" })
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	files, err := ix.Files()
	require.NoError(t, err)
	assert.Equal(t, []string{"/b"}, files)
}
