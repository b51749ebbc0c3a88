package manager_test

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"ledgerls/internal/ledger"
	"ledgerls/internal/manager"
	"ledgerls/internal/metrics"
	"ledgerls/internal/position"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

const uri = "file:///ledger/main.beancount"

func edit(sl, sc, el, ec uint32, text string) manager.Change {
	return manager.Change{
		Range: &protocol.Range{
			Start: protocol.Position{Line: sl, Character: sc},
			End:   protocol.Position{Line: el, Character: ec},
		},
		Text: text,
	}
}

func TestIncrementalEditExample(t *testing.T) {
	dm := manager.NewDocumentManager()
	dm.Open(uri, "abc", 1)

	snap, err := dm.Change(uri, 2, []manager.Change{edit(0, 0, 0, 1, "xy")})
	require.NoError(t, err)
	assert.Equal(t, "xybc", snap.Text())
	assert.Equal(t, int32(2), snap.Version)
}

func TestGetAfterClose(t *testing.T) {
	dm := manager.NewDocumentManager()
	dm.Open(uri, "2024-01-01 open Assets:Bank", 0)
	require.NoError(t, dm.Close(uri))

	_, err := dm.Get(uri)
	assert.ErrorIs(t, err, manager.ErrUnknownDocument)

	_, err = dm.Change(uri, 1, []manager.Change{{Text: "x"}})
	assert.ErrorIs(t, err, manager.ErrUnknownDocument)

	assert.ErrorIs(t, dm.Close(uri), manager.ErrUnknownDocument)
}

func TestChangeUnopened(t *testing.T) {
	dm := manager.NewDocumentManager()
	_, err := dm.Change(uri, 1, []manager.Change{{Text: "x"}})
	assert.ErrorIs(t, err, manager.ErrUnknownDocument)
}

func TestOpenReplaces(t *testing.T) {
	dm := manager.NewDocumentManager()
	dm.Open(uri, "first", 5)
	dm.Open(uri, "second", 1)

	snap, err := dm.Get(uri)
	require.NoError(t, err)
	assert.Equal(t, "second", snap.Text())
	assert.Equal(t, int32(1), snap.Version)
}

func TestFullReplacement(t *testing.T) {
	dm := manager.NewDocumentManager()
	dm.Open(uri, "old", 1)

	snap, err := dm.Change(uri, 2, []manager.Change{{Text: "new\ncontent"}, edit(1, 0, 1, 0, ">")})
	require.NoError(t, err)
	assert.Equal(t, "new\n>content", snap.Text())
}

func TestSequentialEditsNeverLost(t *testing.T) {
	dm := manager.NewDocumentManager()
	dm.Open(uri, "", 0)

	want := ""
	for v := int32(1); v <= 50; v++ {
		line := fmt.Sprintf("2024-01-%02d open Assets:A%d\n", v%28+1, v)
		pos := uint32(v - 1)
		_, err := dm.Change(uri, v, []manager.Change{edit(pos, 0, pos, 0, line)})
		require.NoError(t, err)
		want += line
	}

	snap, err := dm.Get(uri)
	require.NoError(t, err)
	assert.Equal(t, want, snap.Text())
	assert.Equal(t, int32(50), snap.Version)
}

func TestMalformedEditKeepsState(t *testing.T) {
	dm := manager.NewDocumentManager()
	dm.Open(uri, "abc\ndef", 3)

	_, err := dm.Change(uri, 4, []manager.Change{
		edit(0, 0, 0, 1, "X"),
		edit(7, 0, 7, 1, "boom"),
	})
	require.ErrorIs(t, err, manager.ErrMalformedEdit)
	assert.ErrorIs(t, err, position.ErrPositionOutOfRange)

	snap, err := dm.Get(uri)
	require.NoError(t, err)
	assert.Equal(t, "abc\ndef", snap.Text(), "earlier edits of the same notification are discarded")
	assert.Equal(t, int32(3), snap.Version)
}

func TestVersionPolicies(t *testing.T) {
	t.Run("accept", func(t *testing.T) {
		dm := manager.NewDocumentManager(manager.WithVersionPolicy(manager.VersionAccept))
		dm.Open(uri, "a", 5)

		snap, err := dm.Change(uri, 3, []manager.Change{{Text: "b"}})
		require.NoError(t, err)
		assert.Equal(t, "b", snap.Text())
		assert.Equal(t, int32(3), snap.Version)

		snap, err = dm.Change(uri, 3, []manager.Change{{Text: "c"}})
		require.NoError(t, err)
		assert.Equal(t, "c", snap.Text())
	})

	t.Run("reject-stale", func(t *testing.T) {
		dm := manager.NewDocumentManager(manager.WithVersionPolicy(manager.VersionRejectStale))
		dm.Open(uri, "a", 5)

		_, err := dm.Change(uri, 3, []manager.Change{{Text: "b"}})
		assert.ErrorIs(t, err, manager.ErrStaleVersion)

		_, err = dm.Change(uri, 5, []manager.Change{{Text: "b"}})
		assert.ErrorIs(t, err, manager.ErrStaleVersion, "duplicate version")

		snap, err := dm.Get(uri)
		require.NoError(t, err)
		assert.Equal(t, "a", snap.Text())

		snap, err = dm.Change(uri, 6, []manager.Change{{Text: "b"}})
		require.NoError(t, err)
		assert.Equal(t, "b", snap.Text())
	})
}

func TestSnapshotIsolation(t *testing.T) {
	dm := manager.NewDocumentManager()
	dm.Open(uri, "2024-01-01 open Assets:Bank\n", 1)

	before, err := dm.Get(uri)
	require.NoError(t, err)

	_, err = dm.Change(uri, 2, []manager.Change{edit(0, 16, 0, 27, "Assets:Cash")})
	require.NoError(t, err)

	// Reading after the change completed still sees the old version.
	assert.Equal(t, "2024-01-01 open Assets:Bank\n", before.Text())
	assert.Equal(t, int32(1), before.Version)
	open := before.Result().Directives[0].Value.(ledger.Open)
	assert.Equal(t, "Assets:Bank", open.Account)

	after, err := dm.Get(uri)
	require.NoError(t, err)
	assert.Equal(t, "Assets:Cash", after.Result().Directives[0].Value.(ledger.Open).Account)
}

func TestParseOncePerVersion(t *testing.T) {
	var calls atomic.Int32
	parse := func(text string) *ledger.ParseResult {
		calls.Add(1)
		return ledger.Parse(text)
	}
	dm := manager.NewDocumentManager(manager.WithParser(parse))
	snap := dm.Open(uri, "2024-01-01 open Assets:Bank", 1)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			snap.Result()
			snap.Lines()
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), calls.Load())
	assert.Same(t, snap.Lines(), snap.Lines())

	next, err := dm.Change(uri, 2, []manager.Change{{Text: "2024-01-01 open Assets:Cash"}})
	require.NoError(t, err)
	next.Result()
	assert.Equal(t, int32(2), calls.Load())
	assert.NotSame(t, snap.Lines(), next.Lines())
}

// Concurrent readers must only ever observe complete versions: every
// published text is a prefix of lines "x\n" whose count equals the version.
func TestConcurrentReadersSeeWholeVersions(t *testing.T) {
	dm := manager.NewDocumentManager()
	dm.Open(uri, "", 0)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for r := 0; r < 8; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				snap, err := dm.Get(uri)
				if !assert.NoError(t, err) {
					return
				}
				text := snap.Text()
				assert.Equal(t, int(snap.Version), strings.Count(text, "x\n"))
				assert.Equal(t, len(text), 2*int(snap.Version))
			}
		}()
	}

	for v := int32(1); v <= 200; v++ {
		line := uint32(v - 1)
		// Two edits per notification: readers must never see only the first.
		_, err := dm.Change(uri, v, []manager.Change{
			edit(line, 0, line, 0, "\n"),
			edit(line, 0, line, 0, "x"),
		})
		require.NoError(t, err)
	}
	close(stop)
	wg.Wait()
}

func TestCanonicalURIKeys(t *testing.T) {
	dm := manager.NewDocumentManager()
	dm.Open("file:///ledger/./sub/../main.beancount", "a", 1)

	snap, err := dm.Get("file:///ledger/main.beancount")
	require.NoError(t, err)
	assert.Equal(t, "a", snap.Text())
	assert.Equal(t, "file:///ledger/./sub/../main.beancount", snap.URI)
}

func TestSnapshotsAndCloseAll(t *testing.T) {
	m := metrics.New()
	dm := manager.NewDocumentManager(manager.WithMetrics(m))
	dm.Open("file:///b.beancount", "b", 1)
	dm.Open("file:///a.beancount", "a", 1)

	snaps := dm.Snapshots()
	require.Len(t, snaps, 2)
	assert.Equal(t, "file:///a.beancount", snaps[0].URI)
	assert.Equal(t, []string{"file:///a.beancount", "file:///b.beancount"}, dm.URIs())

	dm.CloseAll()
	assert.Empty(t, dm.Snapshots())
	_, err := dm.Get("file:///a.beancount")
	assert.ErrorIs(t, err, manager.ErrUnknownDocument)
}

func TestSnapshotRange(t *testing.T) {
	dm := manager.NewDocumentManager()
	snap := dm.Open(uri, "; 😀\n2024-01-01 open Assets:Bank", 1)
	d := snap.Result().Directives[0]

	r, err := snap.Range(d.Span)
	require.NoError(t, err)
	assert.Equal(t, protocol.Position{Line: 1, Character: 0}, r.Start)
	assert.Equal(t, protocol.Position{Line: 1, Character: 27}, r.End)
}

func TestURIConversion(t *testing.T) {
	assert.Equal(t, "/tmp/a b.beancount", manager.URIToPath("file:///tmp/a%20b.beancount"))
	assert.Equal(t, "file:///tmp/a%20b.beancount", manager.PathToURI("/tmp/a b.beancount"))
}
