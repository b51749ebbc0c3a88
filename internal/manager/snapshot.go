package manager

import (
	"sync"
	"time"

	"ledgerls/internal/buffer"
	"ledgerls/internal/ledger"
	"ledgerls/internal/metrics"
	"ledgerls/internal/position"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

// ParseFunc produces the parse result for one document text.
type ParseFunc func(text string) *ledger.ParseResult

// Snapshot is an immutable view of one document version. The text, the line
// index and the parse result are each computed at most once per version.
type Snapshot struct {
	URI     string
	Version int32

	rope    *buffer.Rope
	parse   ParseFunc
	metrics *metrics.Metrics

	textOnce sync.Once
	text     string

	linesOnce sync.Once
	lines     *position.LineIndex

	parseOnce sync.Once
	result    *ledger.ParseResult
}

func newSnapshot(uri string, version int32, rope *buffer.Rope, parse ParseFunc, m *metrics.Metrics) *Snapshot {
	return &Snapshot{
		URI:     uri,
		Version: version,
		rope:    rope,
		parse:   parse,
		metrics: m,
	}
}

// Len is the byte length of the document.
func (s *Snapshot) Len() int {
	return s.rope.Len()
}

func (s *Snapshot) Text() string {
	s.textOnce.Do(func() {
		s.text = s.rope.String()
	})
	return s.text
}

// Lines returns the line index of this version, building it on first use.
func (s *Snapshot) Lines() *position.LineIndex {
	s.linesOnce.Do(func() {
		s.lines = position.NewLineIndex(s.Text())
	})
	return s.lines
}

// Result returns the parse result for exactly this version's text.
func (s *Snapshot) Result() *ledger.ParseResult {
	s.parseOnce.Do(func() {
		start := time.Now()
		s.result = s.parse(s.Text())
		s.metrics.ObserveParse(time.Since(start))
	})
	return s.result
}

// Range converts a span of this version into protocol coordinates.
func (s *Snapshot) Range(span ledger.Span) (protocol.Range, error) {
	return s.Lines().SpanToRange(span.Start, span.End)
}
