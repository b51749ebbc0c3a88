package index

import (
	"ledgerls/internal/ledger"
	"ledgerls/internal/position"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

const (
	KindAccount   = "account"
	KindCommodity = "commodity"
)

// Symbol is a declaration of an account or a commodity.
type Symbol struct {
	Path  string
	Name  string
	Kind  string
	Range protocol.Range
}

// Extract lists the declarations of one parsed file. Accounts are declared
// by open directives and commodities by commodity directives.
func Extract(path string, lines *position.LineIndex, result *ledger.ParseResult) []Symbol {
	var symbols []Symbol
	for _, d := range result.Directives {
		var name, kind string
		switch v := d.Value.(type) {
		case ledger.Open:
			name, kind = v.Account, KindAccount
		case ledger.Commodity:
			name, kind = v.Currency, KindCommodity
		default:
			continue
		}
		rng, err := lines.SpanToRange(d.Span.Start, d.Span.End)
		if err != nil {
			continue
		}
		symbols = append(symbols, Symbol{Path: path, Name: name, Kind: kind, Range: rng})
	}
	return symbols
}
