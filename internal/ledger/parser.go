package ledger

import (
	"strings"
	"time"
)

// ignoredKeywords are undated top-level entries that carry no directive.
var ignoredKeywords = map[string]struct{}{
	"option":   {},
	"include":  {},
	"plugin":   {},
	"pushtag":  {},
	"poptag":   {},
	"pushmeta": {},
	"popmeta":  {},
}

type pending struct {
	span Span
	dir  Directive
	txn  *Transaction
}

type parser struct {
	result  ParseResult
	current *pending
}

// Parse parses text. It never fails: problems are reported as ParseErrors
// and the offending entry is skipped.
func Parse(text string) *ParseResult {
	p := &parser{}
	offset := 0
	for {
		lineEnd := len(text)
		if i := strings.IndexByte(text[offset:], '\n'); i >= 0 {
			lineEnd = offset + i
		}
		p.line(offset, text[offset:lineEnd])
		if lineEnd == len(text) {
			break
		}
		offset = lineEnd + 1
	}
	p.flush()
	return &p.result
}

func (p *parser) errorf(base int, f Field, kind ErrorKind, detail string) {
	p.result.Errors = append(p.result.Errors, ParseError{
		Span:   Span{Start: base + f.Start, End: base + f.End},
		Kind:   kind,
		Detail: detail,
	})
}

func (p *parser) flush() {
	if p.current == nil {
		return
	}
	dir := p.current.dir
	if p.current.txn != nil {
		dir = *p.current.txn
	}
	p.result.Directives = append(p.result.Directives, Spanned[Directive]{
		Span:  p.current.span,
		Value: dir,
	})
	p.current = nil
}

func (p *parser) line(base int, line string) {
	fields, comment := SplitFields(line)
	if comment >= 0 {
		end := len(strings.TrimRight(line, " \t\r"))
		p.result.Comments = append(p.result.Comments, Span{Start: base + comment, End: base + end})
	}
	for _, f := range fields {
		if f.Unterminated {
			p.errorf(base, f, ErrUnterminatedString, "")
		}
	}

	indented := strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t")
	if indented {
		if len(fields) > 0 {
			p.indented(base, fields)
		}
		return
	}
	if len(fields) == 0 && comment < 0 {
		// blank line ends the current entry
		p.flush()
		return
	}
	p.flush()
	if len(fields) > 0 {
		p.header(base, fields)
	}
}

func (p *parser) header(base int, fields []Field) {
	first := fields[0]
	if _, ok := ignoredKeywords[first.Text]; ok {
		return
	}
	if strings.HasPrefix(first.Text, "*") || strings.HasPrefix(first.Text, "#") {
		// org-mode heading or hash comment
		return
	}
	if !dateRe.MatchString(first.Text) {
		p.errorf(base, first, ErrUnexpectedLine, first.Text)
		return
	}
	date := strings.ReplaceAll(first.Text, "/", "-")
	if _, err := time.Parse("2006-01-02", date); err != nil {
		p.errorf(base, first, ErrInvalidDate, first.Text)
		return
	}
	if len(fields) < 2 {
		p.errorf(base, first, ErrMissingField, "directive keyword")
		return
	}

	a := args{p: p, base: base, fields: fields[2:], after: fields[1]}
	dated := Dated{Date: date}
	span := Span{Start: base + first.Start, End: base + fields[len(fields)-1].End}

	var dir Directive
	var txn *Transaction
	ok := true
	switch kw := fields[1].Text; kw {
	case "open":
		open := Open{Dated: dated}
		open.Account, ok = a.account(0)
		for _, f := range a.fields[min(1, len(a.fields)):] {
			if !ok || f.Quoted() {
				break
			}
			for _, c := range strings.Split(f.Text, ",") {
				if c == "" {
					continue
				}
				if !IsCurrency(c) {
					p.errorf(base, f, ErrInvalidCurrency, c)
					continue
				}
				open.Currencies = append(open.Currencies, c)
			}
		}
		if n := len(a.fields); ok && n > 1 && a.fields[n-1].Quoted() {
			open.Booking = a.fields[n-1].Unquote()
		}
		dir = open
	case "close":
		c := Close{Dated: dated}
		c.Account, ok = a.account(0)
		dir = c
	case "commodity":
		c := Commodity{Dated: dated}
		c.Currency, ok = a.currency(0)
		dir = c
	case "balance":
		b := Balance{Dated: dated}
		b.Account, ok = a.account(0)
		if ok {
			b.Amount, ok = a.amount(1)
		}
		dir = b
	case "price":
		pr := Price{Dated: dated}
		pr.Currency, ok = a.currency(0)
		if ok {
			pr.Amount, ok = a.amount(1)
		}
		dir = pr
	case "note":
		n := Note{Dated: dated}
		n.Account, ok = a.account(0)
		if ok {
			n.Comment, ok = a.str(1, "comment")
		}
		dir = n
	case "document":
		d := Document{Dated: dated}
		d.Account, ok = a.account(0)
		if ok {
			d.Path, ok = a.str(1, "path")
		}
		dir = d
	case "pad":
		pd := Pad{Dated: dated}
		pd.Account, ok = a.account(0)
		if ok {
			pd.SourceAccount, ok = a.account(1)
		}
		dir = pd
	case "query":
		q := Query{Dated: dated}
		q.Name, ok = a.str(0, "query name")
		if ok {
			q.Query, ok = a.str(1, "query")
		}
		dir = q
	case "custom":
		c := Custom{Dated: dated}
		c.Type, ok = a.str(0, "custom type")
		for _, f := range a.fields[min(1, len(a.fields)):] {
			c.Values = append(c.Values, f.Text)
		}
		dir = c
	case "event":
		e := Event{Dated: dated}
		e.Type, ok = a.str(0, "event type")
		if ok {
			e.Description, ok = a.str(1, "event description")
		}
		dir = e
	default:
		if !isFlag(kw) {
			p.errorf(base, fields[1], ErrUnknownDirective, kw)
			return
		}
		txn = &Transaction{Dated: dated, Flag: kw}
		var strs []string
		for _, f := range a.fields {
			switch {
			case f.Quoted():
				strs = append(strs, f.Unquote())
			case strings.HasPrefix(f.Text, "#"):
				txn.Tags = append(txn.Tags, f.Text[1:])
			case strings.HasPrefix(f.Text, "^"):
				txn.Links = append(txn.Links, f.Text[1:])
			}
		}
		switch {
		case len(strs) >= 2:
			txn.Payee, txn.Narration = strs[0], strs[1]
		case len(strs) == 1:
			txn.Narration = strs[0]
		}
	}
	if !ok {
		return
	}
	p.current = &pending{span: span, dir: dir, txn: txn}
}

func (p *parser) indented(base int, fields []Field) {
	if p.current == nil {
		p.errorf(base, Field{Start: fields[0].Start, End: fields[len(fields)-1].End}, ErrUnexpectedIndent, "")
		return
	}
	end := base + fields[len(fields)-1].End

	first := fields[0]
	if isMetadataKey(first.Text) {
		p.current.span.End = end
		return
	}
	if p.current.txn == nil {
		p.errorf(base, Field{Start: first.Start, End: fields[len(fields)-1].End}, ErrUnexpectedIndent, "postings only belong to transactions")
		return
	}

	posting := Posting{Span: Span{Start: base + first.Start, End: end}}
	i := 0
	if len(first.Text) == 1 && isFlag(first.Text) && len(fields) > 1 {
		posting.Flag = first.Text
		i++
	}
	if !IsAccount(fields[i].Text) {
		p.errorf(base, fields[i], ErrInvalidAccount, fields[i].Text)
		return
	}
	posting.Account = fields[i].Text
	if i+1 < len(fields) && IsNumber(fields[i+1].Text) {
		units := &Amount{Number: fields[i+1].Text}
		if i+2 < len(fields) && IsCurrency(fields[i+2].Text) {
			units.Currency = fields[i+2].Text
		}
		posting.Units = units
	}
	p.current.txn.Postings = append(p.current.txn.Postings, posting)
	p.current.span.End = end
}

func isMetadataKey(s string) bool {
	if len(s) < 2 || !strings.HasSuffix(s, ":") {
		return false
	}
	c := s[0]
	return c >= 'a' && c <= 'z'
}

// args reads the positional arguments following a directive keyword.
type args struct {
	p      *parser
	base   int
	fields []Field
	after  Field
}

func (a args) missing(i int, what string) {
	f := a.after
	if i > 0 && i-1 < len(a.fields) {
		f = a.fields[i-1]
	} else if len(a.fields) > 0 {
		f = a.fields[len(a.fields)-1]
	}
	a.p.errorf(a.base, f, ErrMissingField, what)
}

func (a args) account(i int) (string, bool) {
	if i >= len(a.fields) {
		a.missing(i, "account")
		return "", false
	}
	if !IsAccount(a.fields[i].Text) {
		a.p.errorf(a.base, a.fields[i], ErrInvalidAccount, a.fields[i].Text)
		return "", false
	}
	return a.fields[i].Text, true
}

func (a args) currency(i int) (string, bool) {
	if i >= len(a.fields) {
		a.missing(i, "currency")
		return "", false
	}
	if !IsCurrency(a.fields[i].Text) {
		a.p.errorf(a.base, a.fields[i], ErrInvalidCurrency, a.fields[i].Text)
		return "", false
	}
	return a.fields[i].Text, true
}

func (a args) str(i int, what string) (string, bool) {
	if i >= len(a.fields) {
		a.missing(i, what)
		return "", false
	}
	if !a.fields[i].Quoted() {
		a.p.errorf(a.base, a.fields[i], ErrMissingField, what+" must be a quoted string")
		return "", false
	}
	return a.fields[i].Unquote(), true
}

func (a args) amount(i int) (Amount, bool) {
	if i >= len(a.fields) {
		a.missing(i, "amount")
		return Amount{}, false
	}
	if !IsNumber(a.fields[i].Text) {
		a.p.errorf(a.base, a.fields[i], ErrInvalidAmount, a.fields[i].Text)
		return Amount{}, false
	}
	cur, ok := a.currency(i + 1)
	if !ok {
		return Amount{}, false
	}
	return Amount{Number: a.fields[i].Text, Currency: cur}, true
}
