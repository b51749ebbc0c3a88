package position

import (
	"fmt"
	"unicode/utf8"
)

// runeUnits is the number of UTF-16 code units needed to encode r.
func runeUnits(r rune) int {
	if r >= 0x10000 {
		return 2
	}
	return 1
}

// UTF16Len counts the UTF-16 code units of s.
func UTF16Len(s string) int {
	n := 0
	for _, r := range s {
		n += runeUnits(r)
	}
	return n
}

// ByteToColumn converts a byte offset within a single line into a UTF-16
// column. The offset must fall on a rune boundary.
func ByteToColumn(line string, byteOffset int) (int, error) {
	if byteOffset < 0 || byteOffset > len(line) {
		return 0, fmt.Errorf("%w: byte %d outside line of length %d", ErrPositionOutOfRange, byteOffset, len(line))
	}
	col := 0
	for i := 0; i < byteOffset; {
		r, size := utf8.DecodeRuneInString(line[i:])
		if i+size > byteOffset {
			return 0, fmt.Errorf("%w: byte %d splits a UTF-8 sequence", ErrPositionOutOfRange, byteOffset)
		}
		col += runeUnits(r)
		i += size
	}
	return col, nil
}

// ColumnToByte converts a UTF-16 column within a single line into a byte
// offset. Columns past the end of the line or inside a surrogate pair fail.
func ColumnToByte(line string, column int) (int, error) {
	if column < 0 {
		return 0, fmt.Errorf("%w: negative column %d", ErrPositionOutOfRange, column)
	}
	col := 0
	for i := 0; i < len(line); {
		if col == column {
			return i, nil
		}
		r, size := utf8.DecodeRuneInString(line[i:])
		col += runeUnits(r)
		if col > column {
			return 0, fmt.Errorf("%w: column %d splits a surrogate pair", ErrPositionOutOfRange, column)
		}
		i += size
	}
	if col == column {
		return len(line), nil
	}
	return 0, fmt.Errorf("%w: column %d past end of line (%d units)", ErrPositionOutOfRange, column, col)
}
