package server

import (
	"fmt"
	"sort"

	"ledgerls/internal/index"
	"ledgerls/internal/ledger"
	"ledgerls/internal/manager"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

// defaultOpenDate is used when a document has no dated directive at all.
const defaultOpenDate = "2000-01-01"

func (s *Server) textDocumentCodeAction(
	context *glsp.Context,
	params *protocol.CodeActionParams,
) (any, error) {
	snap, err := s.docs.Get(params.TextDocument.URI)
	if err != nil {
		return nil, err
	}

	lines := snap.Lines()
	start, err := lines.PositionToOffset(params.Range.Start)
	if err != nil {
		return nil, err
	}
	end, err := lines.PositionToOffset(params.Range.End)
	if err != nil {
		return nil, err
	}

	result := snap.Result()
	wanted := map[string]struct{}{}
	for _, d := range result.Directives {
		if !overlaps(d.Span, start, end) {
			continue
		}
		for _, account := range usedAccounts(d.Value) {
			wanted[account] = struct{}{}
		}
	}

	var missing []string
	for account := range wanted {
		declared, err := s.accountDeclared(snap, account)
		if err != nil {
			return nil, err
		}
		if !declared {
			missing = append(missing, account)
		}
	}
	sort.Strings(missing)

	actions := []protocol.CodeAction{}
	for _, account := range missing {
		action, err := openAccountAction(snap, account)
		if err != nil {
			return nil, err
		}
		actions = append(actions, action)
	}
	return actions, nil
}

// overlaps reports whether span touches the selection [start, end]. A cursor
// right after the last character of an entry still counts.
func overlaps(span ledger.Span, start, end int) bool {
	return span.Start <= end && start <= span.End
}

// usedAccounts lists the accounts a directive refers to without declaring them.
func usedAccounts(d ledger.Directive) []string {
	switch v := d.(type) {
	case ledger.Transaction:
		accounts := make([]string, 0, len(v.Postings))
		for _, p := range v.Postings {
			accounts = append(accounts, p.Account)
		}
		return accounts
	case ledger.Balance:
		return []string{v.Account}
	case ledger.Pad:
		return []string{v.Account, v.SourceAccount}
	case ledger.Note:
		return []string{v.Account}
	case ledger.Document:
		return []string{v.Account}
	case ledger.Close:
		return []string{v.Account}
	}
	return nil
}

// accountDeclared looks for an open directive in the open documents and in
// the index, ignoring the indexed copy of snap itself.
func (s *Server) accountDeclared(snap *manager.Snapshot, account string) (bool, error) {
	snaps := append([]*manager.Snapshot{snap}, s.docs.Snapshots()...)
	for _, other := range snaps {
		for _, sym := range declarations(other) {
			if sym.Name == account && sym.Kind == index.KindAccount {
				return true, nil
			}
		}
	}

	ix := s.workspaceIndex()
	if ix == nil {
		return false, nil
	}
	found, err := ix.Lookup(account, index.KindAccount)
	if err != nil {
		return false, err
	}
	self := manager.URIToPath(snap.URI)
	for _, sym := range found {
		if sym.Path != self {
			return true, nil
		}
	}
	return false, nil
}

// openAccountAction inserts "<earliest date> open <account>" after the last
// open directive of the document, or at its top.
func openAccountAction(snap *manager.Snapshot, account string) (protocol.CodeAction, error) {
	result := snap.Result()
	text := fmt.Sprintf("%s open %s\n", earliestDate(result), account)

	at := protocol.Position{}
	lastOpen := -1
	for i, d := range result.Directives {
		if _, ok := d.Value.(ledger.Open); ok {
			lastOpen = i
		}
	}
	if lastOpen >= 0 {
		lines := snap.Lines()
		end, err := lines.OffsetToPosition(result.Directives[lastOpen].Span.End)
		if err != nil {
			return protocol.CodeAction{}, err
		}
		if int(end.Line)+1 < lines.LineCount() {
			at = protocol.Position{Line: end.Line + 1}
		} else {
			// the open is on the last line, which has no terminator
			if at, err = lines.OffsetToPosition(snap.Len()); err != nil {
				return protocol.CodeAction{}, err
			}
			text = "\n" + text[:len(text)-1]
		}
	}

	kind := protocol.CodeActionKindQuickFix
	preferred := true
	return protocol.CodeAction{
		Title:       fmt.Sprintf("Add 'open %s' directive", account),
		Kind:        &kind,
		IsPreferred: &preferred,
		Edit: &protocol.WorkspaceEdit{
			Changes: map[protocol.DocumentUri][]protocol.TextEdit{
				snap.URI: {{Range: protocol.Range{Start: at, End: at}, NewText: text}},
			},
		},
	}, nil
}

// earliestDate returns the smallest directive date. Dates are YYYY-MM-DD, so
// they order as strings.
func earliestDate(result *ledger.ParseResult) string {
	earliest := ""
	for _, d := range result.Directives {
		if date := d.Value.When(); earliest == "" || date < earliest {
			earliest = date
		}
	}
	if earliest == "" {
		return defaultOpenDate
	}
	return earliest
}
