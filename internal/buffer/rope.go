// Package buffer holds document text in a persistent rope.
//
// A Rope is never modified after construction. Edits return a new Rope that
// shares unchanged subtrees with the old one, so a reader holding an older
// Rope keeps seeing exactly the text it was given.
package buffer

import (
	"fmt"
	"strings"

	"ledgerls/internal/position"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

// Rope is an immutable text buffer. The zero value is an empty document.
type Rope struct {
	root *node
}

// New creates a rope holding text.
func New(text string) *Rope {
	return &Rope{root: build(text)}
}

// ReplaceAll returns a rope holding text. The receiver is unchanged.
func (r *Rope) ReplaceAll(text string) *Rope {
	return New(text)
}

// Len is the length of the text in bytes.
func (r *Rope) Len() int {
	if r.root == nil {
		return 0
	}
	return r.root.length
}

// LineCount is the number of line terminators plus one.
func (r *Rope) LineCount() int {
	if r.root == nil {
		return 1
	}
	return r.root.newlines + 1
}

// String materializes the whole text.
func (r *Rope) String() string {
	return r.Slice(0, r.Len())
}

// Slice returns bytes [start, end). Out of range bounds are clamped.
func (r *Rope) Slice(start, end int) string {
	start = max(start, 0)
	end = min(end, r.Len())
	if start >= end {
		return ""
	}
	var sb strings.Builder
	sb.Grow(end - start)
	r.root.writeRange(&sb, start, end)
	return sb.String()
}

// LineStart returns the byte offset at which line begins.
func (r *Rope) LineStart(line int) (int, error) {
	if line < 0 || line >= r.LineCount() {
		return 0, fmt.Errorf("%w: line %d of %d", position.ErrPositionOutOfRange, line, r.LineCount())
	}
	if line == 0 {
		return 0, nil
	}
	return offsetAfterNewline(r.root, line), nil
}

func (r *Rope) lineBounds(line int) (int, int, error) {
	start, err := r.LineStart(line)
	if err != nil {
		return 0, 0, err
	}
	end := r.Len()
	if line+1 < r.LineCount() {
		end = offsetAfterNewline(r.root, line+1) - 1
	}
	return start, end, nil
}

// Line returns the text of line without its terminator.
func (r *Rope) Line(line int) (string, error) {
	start, end, err := r.lineBounds(line)
	if err != nil {
		return "", err
	}
	return r.Slice(start, end), nil
}

// OffsetOf converts a protocol position into a byte offset. The position
// one line past the last line with character 0 maps to Len().
func (r *Rope) OffsetOf(pos protocol.Position) (int, error) {
	line := int(pos.Line)
	if line == r.LineCount() && pos.Character == 0 {
		return r.Len(), nil
	}
	start, end, err := r.lineBounds(line)
	if err != nil {
		return 0, err
	}
	b, err := position.ColumnToByte(r.Slice(start, end), int(pos.Character))
	if err != nil {
		return 0, fmt.Errorf("line %d: %w", line, err)
	}
	return start + b, nil
}

// PositionOf converts a byte offset into a protocol position.
func (r *Rope) PositionOf(offset int) (protocol.Position, error) {
	if offset < 0 || offset > r.Len() {
		return protocol.Position{}, fmt.Errorf("%w: offset %d outside [0, %d]", position.ErrPositionOutOfRange, offset, r.Len())
	}
	line := newlinesBefore(r.root, offset)
	start, end, err := r.lineBounds(line)
	if err != nil {
		return protocol.Position{}, err
	}
	col, err := position.ByteToColumn(r.Slice(start, end), offset-start)
	if err != nil {
		return protocol.Position{}, err
	}
	return protocol.Position{
		Line:      protocol.UInteger(line),
		Character: protocol.UInteger(col),
	}, nil
}

// Replace returns a rope with bytes [start, end) replaced by text.
func (r *Rope) Replace(start, end int, text string) (*Rope, error) {
	if start < 0 || end < start || end > r.Len() {
		return nil, fmt.Errorf("%w: replace [%d,%d) in %d bytes", position.ErrPositionOutOfRange, start, end, r.Len())
	}
	left, rest := split(r.root, start)
	_, right := split(rest, end-start)
	root := concat(concat(left, build(text)), right)
	if root != nil {
		root = rebalance(root)
	}
	return &Rope{root: root}, nil
}

// ApplyEdit replaces the text between two protocol positions.
func (r *Rope) ApplyEdit(rng protocol.Range, text string) (*Rope, error) {
	start, err := r.OffsetOf(rng.Start)
	if err != nil {
		return nil, fmt.Errorf("edit start: %w", err)
	}
	end, err := r.OffsetOf(rng.End)
	if err != nil {
		return nil, fmt.Errorf("edit end: %w", err)
	}
	if end < start {
		return nil, fmt.Errorf("%w: edit range ends before it starts", position.ErrPositionOutOfRange)
	}
	return r.Replace(start, end, text)
}
