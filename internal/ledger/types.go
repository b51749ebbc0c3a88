// Package ledger parses the beancount plain-text ledger format into spanned
// directives. Every span is a half-open byte range into the parsed text.
package ledger

import "fmt"

// Span is a half-open byte range [Start, End).
type Span struct {
	Start int
	End   int
}

func (s Span) String() string {
	return fmt.Sprintf("[%d,%d)", s.Start, s.End)
}

// Spanned pairs a value with the bytes it was parsed from.
type Spanned[T any] struct {
	Span  Span
	Value T
}

// Directive is one dated entry of the ledger.
type Directive interface {
	// Keyword is the directive keyword; transactions report "txn".
	Keyword() string
	// When is the directive date as written, YYYY-MM-DD.
	When() string
}

type Dated struct {
	Date string
}

func (d Dated) When() string { return d.Date }

type Amount struct {
	Number   string
	Currency string
}

func (a Amount) String() string {
	if a.Currency == "" {
		return a.Number
	}
	return a.Number + " " + a.Currency
}

type Open struct {
	Dated
	Account    string
	Currencies []string
	Booking    string
}

type Close struct {
	Dated
	Account string
}

type Commodity struct {
	Dated
	Currency string
}

type Balance struct {
	Dated
	Account string
	Amount  Amount
}

type Price struct {
	Dated
	Currency string
	Amount   Amount
}

type Note struct {
	Dated
	Account string
	Comment string
}

type Document struct {
	Dated
	Account string
	Path    string
}

type Pad struct {
	Dated
	Account       string
	SourceAccount string
}

type Query struct {
	Dated
	Name  string
	Query string
}

type Custom struct {
	Dated
	Type   string
	Values []string
}

type Event struct {
	Dated
	Type        string
	Description string
}

// Posting is one leg of a transaction. Units is nil for elided amounts.
type Posting struct {
	Span    Span
	Flag    string
	Account string
	Units   *Amount
}

type Transaction struct {
	Dated
	Flag      string
	Payee     string
	Narration string
	Tags      []string
	Links     []string
	Postings  []Posting
}

func (Open) Keyword() string        { return "open" }
func (Close) Keyword() string       { return "close" }
func (Commodity) Keyword() string   { return "commodity" }
func (Balance) Keyword() string     { return "balance" }
func (Price) Keyword() string       { return "price" }
func (Note) Keyword() string        { return "note" }
func (Document) Keyword() string    { return "document" }
func (Pad) Keyword() string         { return "pad" }
func (Query) Keyword() string       { return "query" }
func (Custom) Keyword() string      { return "custom" }
func (Event) Keyword() string       { return "event" }
func (Transaction) Keyword() string { return "txn" }

// ParseResult is everything the parser learned about one text.
type ParseResult struct {
	Directives []Spanned[Directive]
	Errors     []ParseError
	Comments   []Span
}
