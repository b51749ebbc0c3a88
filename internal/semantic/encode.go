package semantic

import (
	"sort"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

// RawToken is a token in absolute coordinates. Start and Length are in
// UTF-16 code units.
type RawToken struct {
	Line      uint32
	Start     uint32
	Length    uint32
	Type      uint32
	Modifiers uint32
}

// Encode sorts tokens by (line, start) and delta-codes them into the
// five-integer-per-token stream of the protocol. Tokens sharing a position
// keep their emission order and are all emitted. The input is not modified.
func Encode(tokens []RawToken) []protocol.UInteger {
	sorted := make([]RawToken, len(tokens))
	copy(sorted, tokens)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Line != sorted[j].Line {
			return sorted[i].Line < sorted[j].Line
		}
		return sorted[i].Start < sorted[j].Start
	})

	data := make([]protocol.UInteger, 0, 5*len(sorted))
	var prevLine, prevStart uint32
	for _, tok := range sorted {
		deltaLine := tok.Line - prevLine
		deltaStart := tok.Start
		if deltaLine == 0 {
			deltaStart = tok.Start - prevStart
		}
		data = append(data, deltaLine, deltaStart, tok.Length, tok.Type, tok.Modifiers)
		prevLine, prevStart = tok.Line, tok.Start
	}
	return data
}

// Decode expands an encoded stream back into absolute tokens. A trailing
// partial group is ignored.
func Decode(data []protocol.UInteger) []RawToken {
	tokens := make([]RawToken, 0, len(data)/5)
	var line, start uint32
	for i := 0; i+5 <= len(data); i += 5 {
		if data[i] > 0 {
			line += data[i]
			start = data[i+1]
		} else {
			start += data[i+1]
		}
		tokens = append(tokens, RawToken{
			Line:      line,
			Start:     start,
			Length:    data[i+2],
			Type:      data[i+3],
			Modifiers: data[i+4],
		})
	}
	return tokens
}

// InRange keeps the tokens that start inside rng.
func InRange(tokens []RawToken, rng protocol.Range) []RawToken {
	var out []RawToken
	for _, tok := range tokens {
		if before(tok.Line, tok.Start, rng.Start) || !before(tok.Line, tok.Start, rng.End) {
			continue
		}
		out = append(out, tok)
	}
	return out
}

func before(line, char uint32, pos protocol.Position) bool {
	return line < pos.Line || (line == pos.Line && char < pos.Character)
}
