// Package position converts between byte offsets into a document and
// editor protocol positions, whose columns count UTF-16 code units.
package position

import (
	"fmt"
	"strings"
	"unicode/utf8"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

// OffsetToPosition maps a byte offset in text to a line/UTF-16 column pair.
// Only the prefix up to offset is scanned. len(text) is a valid offset.
func OffsetToPosition(text string, offset int) (protocol.Position, error) {
	if offset < 0 || offset > len(text) {
		return protocol.Position{}, fmt.Errorf("%w: offset %d outside [0, %d]", ErrPositionOutOfRange, offset, len(text))
	}

	var line, col int
	for i := 0; i < offset; {
		r, size := utf8.DecodeRuneInString(text[i:])
		if i+size > offset {
			return protocol.Position{}, fmt.Errorf("%w: offset %d splits a UTF-8 sequence", ErrPositionOutOfRange, offset)
		}
		if r == '\n' {
			line++
			col = 0
		} else {
			col += runeUnits(r)
		}
		i += size
	}

	return protocol.Position{
		Line:      protocol.UInteger(line),
		Character: protocol.UInteger(col),
	}, nil
}

// PositionToOffset maps a line/UTF-16 column pair to a byte offset in text.
//
// The position one line past the last line with character 0 is clamped to
// len(text); editors use it to append to documents without a final newline.
func PositionToOffset(text string, pos protocol.Position) (int, error) {
	lineStart := 0
	for line := 0; line < int(pos.Line); line++ {
		next := strings.IndexByte(text[lineStart:], '\n')
		if next < 0 {
			if line+1 == int(pos.Line) && pos.Character == 0 {
				return len(text), nil
			}
			return 0, fmt.Errorf("%w: line %d past last line %d", ErrPositionOutOfRange, pos.Line, line)
		}
		lineStart += next + 1
	}

	lineEnd := len(text)
	if next := strings.IndexByte(text[lineStart:], '\n'); next >= 0 {
		lineEnd = lineStart + next
	}

	b, err := ColumnToByte(text[lineStart:lineEnd], int(pos.Character))
	if err != nil {
		return 0, fmt.Errorf("line %d: %w", pos.Line, err)
	}
	return lineStart + b, nil
}
