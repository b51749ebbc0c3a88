// Package semantic produces LSP semantic tokens for ledger documents.
package semantic

import (
	protocol "github.com/tliron/glsp/protocol_3_16"
)

// Token type indices. The order is part of the protocol contract announced
// at initialization and must not change.
const (
	TypeKeyword uint32 = iota
	TypeNumber
	TypeString
	TypeVariable // accounts
	TypeType     // currencies
	TypeComment
	TypeOperator // flags
	TypeMacro    // dates
)

// Token modifier bits.
const (
	ModDefinition uint32 = 1 << iota
	ModDeprecated
	ModReadonly
)

var tokenTypes = []string{
	"keyword",
	"number",
	"string",
	"variable",
	"type",
	"comment",
	"operator",
	"macro",
}

var tokenModifiers = []string{
	"definition",
	"deprecated",
	"readonly",
}

// Legend returns the legend registered with the client.
func Legend() protocol.SemanticTokensLegend {
	return protocol.SemanticTokensLegend{
		TokenTypes:     append([]string(nil), tokenTypes...),
		TokenModifiers: append([]string(nil), tokenModifiers...),
	}
}
