package server

import (
	"fmt"
	"sort"
	"strings"

	"ledgerls/internal/ledger"
	"ledgerls/internal/manager"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

func (s *Server) textDocumentDocumentSymbol(
	context *glsp.Context,
	params *protocol.DocumentSymbolParams,
) (any, error) {
	snap, err := s.docs.Get(params.TextDocument.URI)
	if err != nil {
		return nil, err
	}
	return documentSymbols(snap), nil
}

func documentSymbols(snap *manager.Snapshot) []protocol.DocumentSymbol {
	symbols := []protocol.DocumentSymbol{}
	for _, d := range snap.Result().Directives {
		rng, err := snap.Range(d.Span)
		if err != nil {
			continue
		}
		detail := d.Value.When() + " " + d.Value.Keyword()
		sym := protocol.DocumentSymbol{
			Name:           directiveName(d.Value),
			Detail:         &detail,
			Kind:           directiveKind(d.Value),
			Range:          rng,
			SelectionRange: rng,
		}
		if txn, ok := d.Value.(ledger.Transaction); ok {
			for _, p := range txn.Postings {
				prng, err := snap.Range(p.Span)
				if err != nil {
					continue
				}
				child := protocol.DocumentSymbol{
					Name:           p.Account,
					Kind:           protocol.SymbolKindField,
					Range:          prng,
					SelectionRange: prng,
				}
				if p.Units != nil {
					units := p.Units.String()
					child.Detail = &units
				}
				sym.Children = append(sym.Children, child)
			}
		}
		symbols = append(symbols, sym)
	}
	return symbols
}

func directiveName(d ledger.Directive) string {
	switch v := d.(type) {
	case ledger.Open:
		return v.Account
	case ledger.Close:
		return v.Account
	case ledger.Commodity:
		return v.Currency
	case ledger.Balance:
		return v.Account
	case ledger.Price:
		return v.Currency
	case ledger.Note:
		return v.Account
	case ledger.Document:
		return v.Account
	case ledger.Pad:
		return v.Account
	case ledger.Query:
		return v.Name
	case ledger.Custom:
		return v.Type
	case ledger.Event:
		return v.Type
	case ledger.Transaction:
		name := strings.TrimSpace(strings.Join([]string{v.Payee, v.Narration}, " "))
		if name == "" {
			return v.When()
		}
		return name
	}
	return d.Keyword()
}

func directiveKind(d ledger.Directive) protocol.SymbolKind {
	switch d.(type) {
	case ledger.Open, ledger.Close, ledger.Pad:
		return protocol.SymbolKindNamespace
	case ledger.Commodity:
		return protocol.SymbolKindConstant
	case ledger.Balance, ledger.Price:
		return protocol.SymbolKindNumber
	case ledger.Transaction, ledger.Event:
		return protocol.SymbolKindEvent
	}
	return protocol.SymbolKindString
}

func (s *Server) textDocumentFoldingRange(
	context *glsp.Context,
	params *protocol.FoldingRangeParams,
) ([]protocol.FoldingRange, error) {
	snap, err := s.docs.Get(params.TextDocument.URI)
	if err != nil {
		return nil, err
	}
	return foldingRanges(snap), nil
}

// foldingRanges folds every directive that spans several lines.
func foldingRanges(snap *manager.Snapshot) []protocol.FoldingRange {
	ranges := []protocol.FoldingRange{}
	for _, d := range snap.Result().Directives {
		rng, err := snap.Range(d.Span)
		if err != nil || rng.End.Line == rng.Start.Line {
			continue
		}
		ranges = append(ranges, protocol.FoldingRange{
			StartLine: rng.Start.Line,
			EndLine:   rng.End.Line,
		})
	}
	return ranges
}

func (s *Server) textDocumentCodeLens(
	context *glsp.Context,
	params *protocol.CodeLensParams,
) ([]protocol.CodeLens, error) {
	snap, err := s.docs.Get(params.TextDocument.URI)
	if err != nil {
		return nil, err
	}
	return codeLenses(snap), nil
}

// codeLenses summarizes accounts, transactions and balance assertions above
// their directives.
func codeLenses(snap *manager.Snapshot) []protocol.CodeLens {
	result := snap.Result()
	postings := postingCounts(result)

	lenses := []protocol.CodeLens{}
	for _, d := range result.Directives {
		pos, err := snap.Lines().OffsetToPosition(d.Span.Start)
		if err != nil {
			continue
		}
		var cmd protocol.Command
		switch v := d.Value.(type) {
		case ledger.Open:
			cmd = protocol.Command{
				Title:     accountLensTitle(postings[v.Account], v.Currencies),
				Command:   commandShowAccount,
				Arguments: []any{v.Account},
			}
		case ledger.Transaction:
			title := fmt.Sprintf("%d postings", len(v.Postings))
			if currencies := postingCurrencies(v); len(currencies) > 0 {
				title += " | " + strings.Join(currencies, ", ")
			}
			cmd = protocol.Command{Title: title, Command: commandShowTransaction}
		case ledger.Balance:
			cmd = protocol.Command{
				Title:   "Balance assertion: " + v.Amount.String(),
				Command: commandShowBalance,
			}
		default:
			continue
		}
		line := protocol.Position{Line: pos.Line}
		lenses = append(lenses, protocol.CodeLens{
			Range:   protocol.Range{Start: line, End: line},
			Command: &cmd,
		})
	}
	return lenses
}

func accountLensTitle(count int, currencies []string) string {
	switch {
	case count > 0 && len(currencies) > 0:
		return fmt.Sprintf("%d transactions | %s", count, strings.Join(currencies, ", "))
	case count > 0:
		return fmt.Sprintf("%d transactions", count)
	case len(currencies) > 0:
		return strings.Join(currencies, ", ")
	}
	return "No transactions"
}

// postingCounts counts the postings per account.
func postingCounts(result *ledger.ParseResult) map[string]int {
	counts := make(map[string]int)
	for _, d := range result.Directives {
		if txn, ok := d.Value.(ledger.Transaction); ok {
			for _, p := range txn.Postings {
				counts[p.Account]++
			}
		}
	}
	return counts
}

func postingCurrencies(txn ledger.Transaction) []string {
	seen := make(map[string]struct{})
	var currencies []string
	for _, p := range txn.Postings {
		if p.Units == nil || p.Units.Currency == "" {
			continue
		}
		if _, ok := seen[p.Units.Currency]; ok {
			continue
		}
		seen[p.Units.Currency] = struct{}{}
		currencies = append(currencies, p.Units.Currency)
	}
	sort.Strings(currencies)
	return currencies
}
