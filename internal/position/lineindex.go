package position

import (
	"fmt"
	"sort"
	"strings"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

// LineIndex answers repeated offset/position lookups for one immutable text.
// Building it scans the text once; each lookup afterwards is a binary search
// over line starts plus a scan bounded by the length of one line.
type LineIndex struct {
	text       string
	lineStarts []int
}

// NewLineIndex indexes the line starts of text.
func NewLineIndex(text string) *LineIndex {
	starts := make([]int, 1, strings.Count(text, "\n")+1)
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &LineIndex{text: text, lineStarts: starts}
}

// LineCount is the number of line terminators plus one.
func (x *LineIndex) LineCount() int {
	return len(x.lineStarts)
}

// Len is the byte length of the indexed text.
func (x *LineIndex) Len() int {
	return len(x.text)
}

// LineStart returns the byte offset where line begins.
func (x *LineIndex) LineStart(line int) (int, error) {
	if line < 0 || line >= len(x.lineStarts) {
		return 0, fmt.Errorf("%w: line %d of %d", ErrPositionOutOfRange, line, len(x.lineStarts))
	}
	return x.lineStarts[line], nil
}

// Line returns the text of line without its terminator.
func (x *LineIndex) Line(line int) (string, error) {
	start, err := x.LineStart(line)
	if err != nil {
		return "", err
	}
	return x.text[start:x.lineEnd(line)], nil
}

func (x *LineIndex) lineEnd(line int) int {
	if line+1 < len(x.lineStarts) {
		return x.lineStarts[line+1] - 1
	}
	return len(x.text)
}

// OffsetToPosition is the indexed form of the package-level function.
func (x *LineIndex) OffsetToPosition(offset int) (protocol.Position, error) {
	if offset < 0 || offset > len(x.text) {
		return protocol.Position{}, fmt.Errorf("%w: offset %d outside [0, %d]", ErrPositionOutOfRange, offset, len(x.text))
	}
	line := sort.Search(len(x.lineStarts), func(i int) bool {
		return x.lineStarts[i] > offset
	}) - 1

	start := x.lineStarts[line]
	col, err := ByteToColumn(x.text[start:x.lineEnd(line)], offset-start)
	if err != nil {
		return protocol.Position{}, err
	}
	return protocol.Position{
		Line:      protocol.UInteger(line),
		Character: protocol.UInteger(col),
	}, nil
}

// PositionToOffset is the indexed form of the package-level function,
// including the end-of-document clamp.
func (x *LineIndex) PositionToOffset(pos protocol.Position) (int, error) {
	line := int(pos.Line)
	if line == len(x.lineStarts) && pos.Character == 0 {
		return len(x.text), nil
	}
	text, err := x.Line(line)
	if err != nil {
		return 0, err
	}
	b, err := ColumnToByte(text, int(pos.Character))
	if err != nil {
		return 0, fmt.Errorf("line %d: %w", line, err)
	}
	return x.lineStarts[line] + b, nil
}

// SpanToRange converts a half-open byte range into a protocol range.
func (x *LineIndex) SpanToRange(start, end int) (protocol.Range, error) {
	if end < start {
		return protocol.Range{}, fmt.Errorf("%w: span [%d,%d) is inverted", ErrPositionOutOfRange, start, end)
	}
	s, err := x.OffsetToPosition(start)
	if err != nil {
		return protocol.Range{}, err
	}
	e, err := x.OffsetToPosition(end)
	if err != nil {
		return protocol.Range{}, err
	}
	return protocol.Range{Start: s, End: e}, nil
}
