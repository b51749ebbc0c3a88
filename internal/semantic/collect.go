package semantic

import (
	"strings"

	"ledgerls/internal/ledger"
	"ledgerls/internal/manager"
	"ledgerls/internal/position"
)

// Collect returns the semantic tokens of a snapshot in document order.
func Collect(snap *manager.Snapshot) []RawToken {
	c := &collector{text: snap.Text(), lines: snap.Lines()}
	result := snap.Result()

	for _, d := range result.Directives {
		c.directive(d)
	}
	for _, span := range result.Comments {
		c.comment(span)
	}
	return c.tokens
}

type collector struct {
	text   string
	lines  *position.LineIndex
	tokens []RawToken
}

// Cursor walks the fields of one source line and emits tokens for them in
// UTF-16 coordinates.
type Cursor struct {
	c      *collector
	line   uint32
	text   string
	fields []ledger.Field
	next   int
}

func (c *collector) cursorAt(offset int) (*Cursor, bool) {
	pos, err := c.lines.OffsetToPosition(offset)
	if err != nil {
		return nil, false
	}
	text, err := c.lines.Line(int(pos.Line))
	if err != nil {
		return nil, false
	}
	fields, _ := ledger.SplitFields(text)
	return &Cursor{c: c, line: pos.Line, text: text, fields: fields}, true
}

// Next returns the next unvisited field.
func (cur *Cursor) Next() (ledger.Field, bool) {
	if cur.next >= len(cur.fields) {
		return ledger.Field{}, false
	}
	f := cur.fields[cur.next]
	cur.next++
	return f, true
}

// Peek returns the next field without consuming it.
func (cur *Cursor) Peek() (ledger.Field, bool) {
	if cur.next >= len(cur.fields) {
		return ledger.Field{}, false
	}
	return cur.fields[cur.next], true
}

// Emit records a token covering f.
func (cur *Cursor) Emit(f ledger.Field, typ, mods uint32) {
	col, err := position.ByteToColumn(cur.text, f.Start)
	if err != nil {
		return
	}
	cur.c.tokens = append(cur.c.tokens, RawToken{
		Line:      cur.line,
		Start:     uint32(col),
		Length:    uint32(position.UTF16Len(f.Text)),
		Type:      typ,
		Modifiers: mods,
	})
}

// EmitRest classifies every remaining field by its shape. The first
// account or currency seen receives mods.
func (cur *Cursor) EmitRest(mods uint32) {
	for {
		f, ok := cur.Next()
		if !ok {
			return
		}
		for _, part := range splitCommas(f) {
			typ, ok := classify(part)
			if !ok {
				continue
			}
			m := uint32(0)
			if mods != 0 && (typ == TypeVariable || typ == TypeType) {
				m, mods = mods, 0
			}
			cur.Emit(part, typ, m)
		}
	}
}

func (c *collector) directive(d ledger.Spanned[ledger.Directive]) {
	cur, ok := c.cursorAt(d.Span.Start)
	if !ok {
		return
	}
	if date, ok := cur.Next(); ok {
		cur.Emit(date, TypeMacro, 0)
	}
	kw, ok := cur.Next()
	if !ok {
		return
	}

	switch v := d.Value.(type) {
	case ledger.Transaction:
		if kw.Text == "txn" {
			cur.Emit(kw, TypeKeyword, 0)
		} else {
			cur.Emit(kw, TypeOperator, 0)
		}
		cur.EmitRest(0)
		for _, p := range v.Postings {
			c.posting(p)
		}
	case ledger.Open, ledger.Commodity:
		cur.Emit(kw, TypeKeyword, 0)
		cur.EmitRest(ModDefinition)
	case ledger.Close:
		cur.Emit(kw, TypeKeyword, 0)
		cur.EmitRest(ModDeprecated)
	case ledger.Balance:
		cur.Emit(kw, TypeKeyword, 0)
		cur.EmitRest(ModReadonly)
	default:
		cur.Emit(kw, TypeKeyword, 0)
		cur.EmitRest(0)
	}
}

func (c *collector) posting(p ledger.Posting) {
	cur, ok := c.cursorAt(p.Span.Start)
	if !ok {
		return
	}
	if f, ok := cur.Peek(); ok && p.Flag != "" && f.Text == p.Flag {
		cur.Next()
		cur.Emit(f, TypeOperator, 0)
	}
	cur.EmitRest(0)
}

func (c *collector) comment(span ledger.Span) {
	cur, ok := c.cursorAt(span.Start)
	if !ok {
		return
	}
	start, err := c.lines.LineStart(int(cur.line))
	if err != nil {
		return
	}
	cur.Emit(ledger.Field{
		Text:  c.text[span.Start:span.End],
		Start: span.Start - start,
		End:   span.End - start,
	}, TypeComment, 0)
}

func classify(f ledger.Field) (uint32, bool) {
	switch {
	case f.Quoted():
		return TypeString, true
	case ledger.IsAccount(f.Text):
		return TypeVariable, true
	case ledger.IsNumber(f.Text):
		return TypeNumber, true
	case ledger.IsCurrency(f.Text):
		return TypeType, true
	}
	return 0, false
}

// splitCommas breaks a comma separated currency list into one field per
// entry. Numbers with thousands separators stay whole.
func splitCommas(f ledger.Field) []ledger.Field {
	if f.Quoted() || !strings.Contains(f.Text, ",") || ledger.IsNumber(f.Text) {
		return []ledger.Field{f}
	}
	var parts []ledger.Field
	start := 0
	for i := 0; i <= len(f.Text); i++ {
		if i < len(f.Text) && f.Text[i] != ',' {
			continue
		}
		if i > start {
			parts = append(parts, ledger.Field{
				Text:  f.Text[start:i],
				Start: f.Start + start,
				End:   f.Start + i,
			})
		}
		start = i + 1
	}
	return parts
}
