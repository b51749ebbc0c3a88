// Package manager owns the open documents of the language server.
//
// Each document is published as a sequence of immutable Snapshots. Writers
// for one URI are serialized; readers load the current snapshot without
// taking the writer lock, so they never observe a half-applied change.
package manager

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"ledgerls/internal/buffer"
	"ledgerls/internal/ledger"
	"ledgerls/internal/metrics"

	"github.com/tliron/commonlog"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

var log = commonlog.GetLogger("ledgerls.manager")

// VersionPolicy decides what happens to changes whose version is not
// greater than the recorded one.
type VersionPolicy string

const (
	// VersionAccept trusts the editor and records whatever version it sends.
	VersionAccept VersionPolicy = "accept"
	// VersionRejectStale refuses changes with a version <= the current one.
	VersionRejectStale VersionPolicy = "reject-stale"
)

// Change is one entry of a didChange notification. A nil Range replaces
// the whole document.
type Change struct {
	Range *protocol.Range
	Text  string
}

type document struct {
	mu      sync.Mutex // serializes writers
	closed  bool
	current atomic.Pointer[Snapshot]
}

// DocumentManager is the store of open documents keyed by canonical URI.
type DocumentManager struct {
	mu      sync.RWMutex
	docs    map[string]*document
	policy  VersionPolicy
	parse   ParseFunc
	metrics *metrics.Metrics
}

type Option func(*DocumentManager)

func WithVersionPolicy(p VersionPolicy) Option {
	return func(dm *DocumentManager) { dm.policy = p }
}

// WithParser replaces the parser used to build snapshot parse results.
func WithParser(parse ParseFunc) Option {
	return func(dm *DocumentManager) { dm.parse = parse }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(dm *DocumentManager) { dm.metrics = m }
}

// NewDocumentManager creates an empty store.
func NewDocumentManager(opts ...Option) *DocumentManager {
	dm := &DocumentManager{
		docs:   make(map[string]*document),
		policy: VersionAccept,
		parse:  ledger.Parse,
	}
	for _, opt := range opts {
		opt(dm)
	}
	return dm
}

func (dm *DocumentManager) Policy() VersionPolicy {
	return dm.policy
}

// Open inserts a document, replacing any existing entry for the URI.
func (dm *DocumentManager) Open(uri string, text string, version int32) *Snapshot {
	doc := &document{}
	snap := newSnapshot(uri, version, buffer.New(text), dm.parse, dm.metrics)
	doc.current.Store(snap)

	key := CanonicalURI(uri)
	dm.mu.Lock()
	old := dm.docs[key]
	dm.docs[key] = doc
	dm.mu.Unlock()

	dm.metrics.DocumentOpened()
	if old != nil {
		old.mu.Lock()
		old.closed = true
		old.mu.Unlock()
		dm.metrics.DocumentClosed()
		log.Debugf("reopened %s at version %d", uri, version)
	} else {
		log.Debugf("opened %s at version %d", uri, version)
	}
	return snap
}

func (dm *DocumentManager) lookup(uri string) (*document, error) {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	doc, ok := dm.docs[CanonicalURI(uri)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDocument, uri)
	}
	return doc, nil
}

// Change applies the changes of one notification in order and publishes the
// result as a new snapshot. Either every change applies or none does.
func (dm *DocumentManager) Change(uri string, version int32, changes []Change) (*Snapshot, error) {
	doc, err := dm.lookup(uri)
	if err != nil {
		dm.metrics.EditRejected("unknown_document")
		return nil, err
	}

	doc.mu.Lock()
	defer doc.mu.Unlock()

	if doc.closed {
		dm.metrics.EditRejected("unknown_document")
		return nil, fmt.Errorf("%w: %s", ErrUnknownDocument, uri)
	}

	cur := doc.current.Load()
	if dm.policy == VersionRejectStale && version <= cur.Version {
		dm.metrics.EditRejected("stale_version")
		log.Warningf("rejected change to %s: version %d <= %d", uri, version, cur.Version)
		return nil, fmt.Errorf("%w: %s got %d, have %d", ErrStaleVersion, uri, version, cur.Version)
	}
	if version <= cur.Version {
		log.Debugf("accepting out-of-order version %d for %s (had %d)", version, uri, cur.Version)
	}

	rope := cur.rope
	for i, change := range changes {
		if change.Range == nil {
			rope = rope.ReplaceAll(change.Text)
			dm.metrics.EditApplied("full")
			continue
		}
		next, err := rope.ApplyEdit(*change.Range, change.Text)
		if err != nil {
			dm.metrics.EditRejected("malformed_edit")
			log.Warningf("rejected change %d to %s: %s", i, uri, err)
			return nil, fmt.Errorf("%w: change %d to %s: %w", ErrMalformedEdit, i, uri, err)
		}
		rope = next
		dm.metrics.EditApplied("incremental")
	}

	snap := newSnapshot(cur.URI, version, rope, dm.parse, dm.metrics)
	doc.current.Store(snap)
	return snap, nil
}

// Get returns the current snapshot of a document.
func (dm *DocumentManager) Get(uri string) (*Snapshot, error) {
	doc, err := dm.lookup(uri)
	if err != nil {
		return nil, err
	}
	return doc.current.Load(), nil
}

// Close removes a document. Later Get and Change calls fail with
// ErrUnknownDocument.
func (dm *DocumentManager) Close(uri string) error {
	key := CanonicalURI(uri)
	dm.mu.Lock()
	doc, ok := dm.docs[key]
	delete(dm.docs, key)
	dm.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDocument, uri)
	}

	doc.mu.Lock()
	doc.closed = true
	doc.mu.Unlock()

	dm.metrics.DocumentClosed()
	log.Debugf("closed %s", uri)
	return nil
}

// Snapshots returns the current snapshot of every open document, ordered by
// URI.
func (dm *DocumentManager) Snapshots() []*Snapshot {
	dm.mu.RLock()
	snaps := make([]*Snapshot, 0, len(dm.docs))
	for _, doc := range dm.docs {
		snaps = append(snaps, doc.current.Load())
	}
	dm.mu.RUnlock()

	sort.Slice(snaps, func(i, j int) bool { return snaps[i].URI < snaps[j].URI })
	return snaps
}

// URIs lists the canonical URIs of the open documents.
func (dm *DocumentManager) URIs() []string {
	dm.mu.RLock()
	uris := make([]string, 0, len(dm.docs))
	for uri := range dm.docs {
		uris = append(uris, uri)
	}
	dm.mu.RUnlock()

	sort.Strings(uris)
	return uris
}

// CloseAll drops every open document.
func (dm *DocumentManager) CloseAll() {
	dm.mu.Lock()
	docs := dm.docs
	dm.docs = make(map[string]*document)
	dm.mu.Unlock()

	for _, doc := range docs {
		doc.mu.Lock()
		doc.closed = true
		doc.mu.Unlock()
		dm.metrics.DocumentClosed()
	}
}
