package ledger

import "fmt"

// ErrorKind classifies parse errors. The numeric value is the stable code
// reported to editors.
type ErrorKind int

const (
	ErrUnexpectedLine ErrorKind = iota + 1
	ErrInvalidDate
	ErrUnknownDirective
	ErrMissingField
	ErrInvalidAccount
	ErrInvalidAmount
	ErrInvalidCurrency
	ErrUnexpectedIndent
	ErrUnterminatedString
)

var kindMessages = map[ErrorKind]string{
	ErrUnexpectedLine:     "expected a dated directive or option",
	ErrInvalidDate:        "invalid date",
	ErrUnknownDirective:   "unknown directive",
	ErrMissingField:       "missing field",
	ErrInvalidAccount:     "invalid account name",
	ErrInvalidAmount:      "invalid amount",
	ErrInvalidCurrency:    "invalid currency",
	ErrUnexpectedIndent:   "indented line outside of a directive",
	ErrUnterminatedString: "unterminated string",
}

// Code renders the kind as a machine-readable code, e.g. P0004.
func (k ErrorKind) Code() string {
	return fmt.Sprintf("P%04d", int(k))
}

func (k ErrorKind) String() string {
	if msg, ok := kindMessages[k]; ok {
		return msg
	}
	return "parse error"
}

// ParseError is a recoverable syntax problem tied to a span of the text.
type ParseError struct {
	Span   Span
	Kind   ErrorKind
	Detail string
}

func (e ParseError) Error() string {
	return fmt.Sprintf("%s %s", e.Kind.Code(), e.Message())
}

// Message is the human-readable description shown in editors.
func (e ParseError) Message() string {
	if e.Detail == "" {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Detail
}
