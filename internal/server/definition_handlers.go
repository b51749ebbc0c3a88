package server

import (
	"sort"
	"strings"

	"ledgerls/internal/index"
	"ledgerls/internal/ledger"
	"ledgerls/internal/manager"
	"ledgerls/internal/position"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

const maxWorkspaceSymbols = 128

func (s *Server) textDocumentDefinition(
	context *glsp.Context,
	params *protocol.DefinitionParams,
) (any, error) {
	snap, err := s.docs.Get(params.TextDocument.URI)
	if err != nil {
		return nil, err
	}
	name, kind := wordAt(snap, params.Position)
	if name == "" {
		return nil, nil
	}

	// the current document, then the other open ones, then the index
	snaps := append([]*manager.Snapshot{snap}, s.docs.Snapshots()...)
	for _, other := range snaps {
		for _, sym := range declarations(other) {
			if sym.Name == name && sym.Kind == kind {
				return protocol.Location{URI: other.URI, Range: sym.Range}, nil
			}
		}
	}

	if ix := s.workspaceIndex(); ix != nil {
		found, err := ix.Lookup(name, kind)
		if err != nil {
			return nil, err
		}
		if len(found) > 0 {
			return protocol.Location{URI: manager.PathToURI(found[0].Path), Range: found[0].Range}, nil
		}
	}
	return nil, nil
}

func (s *Server) workspaceSymbol(
	context *glsp.Context,
	params *protocol.WorkspaceSymbolParams,
) ([]protocol.SymbolInformation, error) {
	query := strings.ToLower(params.Query)
	symbols := []protocol.SymbolInformation{}
	open := make(map[string]struct{})

	// open documents may be ahead of the files on disk
	for _, snap := range s.docs.Snapshots() {
		open[manager.URIToPath(snap.URI)] = struct{}{}
		for _, sym := range declarations(snap) {
			if strings.Contains(strings.ToLower(sym.Name), query) {
				symbols = append(symbols, symbolInformation(snap.URI, sym))
			}
		}
	}

	if ix := s.workspaceIndex(); ix != nil {
		found, err := ix.Search(params.Query, maxWorkspaceSymbols)
		if err != nil {
			return nil, err
		}
		for _, sym := range found {
			if _, ok := open[sym.Path]; ok {
				continue
			}
			symbols = append(symbols, symbolInformation(manager.PathToURI(sym.Path), sym))
		}
	}

	sort.SliceStable(symbols, func(i, j int) bool { return symbols[i].Name < symbols[j].Name })
	if len(symbols) > maxWorkspaceSymbols {
		symbols = symbols[:maxWorkspaceSymbols]
	}
	return symbols, nil
}

func declarations(snap *manager.Snapshot) []index.Symbol {
	return index.Extract(snap.URI, snap.Lines(), snap.Result())
}

func symbolInformation(uri string, sym index.Symbol) protocol.SymbolInformation {
	kind := protocol.SymbolKindNamespace
	if sym.Kind == index.KindCommodity {
		kind = protocol.SymbolKindConstant
	}
	return protocol.SymbolInformation{
		Name:     sym.Name,
		Kind:     kind,
		Location: protocol.Location{URI: uri, Range: sym.Range},
	}
}

// wordAt returns the account or currency under pos and its symbol kind.
func wordAt(snap *manager.Snapshot, pos protocol.Position) (string, string) {
	line, err := snap.Lines().Line(int(pos.Line))
	if err != nil {
		return "", ""
	}
	at, err := position.ColumnToByte(line, int(pos.Character))
	if err != nil {
		return "", ""
	}

	fields, _ := ledger.SplitFields(line)
	for _, f := range fields {
		if at < f.Start || at > f.End || f.Quoted() {
			continue
		}
		// currency lists like USD,EUR
		start := f.Start
		for _, part := range strings.Split(f.Text, ",") {
			end := start + len(part)
			if at >= start && at <= end {
				switch {
				case ledger.IsAccount(part):
					return part, index.KindAccount
				case ledger.IsCurrency(part):
					return part, index.KindCommodity
				}
			}
			start = end + 1
		}
	}
	return "", ""
}
