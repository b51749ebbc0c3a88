package position

import "fmt"

var (
	// ErrPositionOutOfRange is returned when a line, column or byte offset
	// does not address a valid location in the text.
	ErrPositionOutOfRange = fmt.Errorf("position out of range")
)
